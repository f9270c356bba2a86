package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"slices"

	"github.com/gocrud/inject/logging"
)

// releaser 登记在作用域上的释放操作
type releaser struct {
	name    string
	release func(ctx context.Context) error
}

// releaserOf 识别值上的释放操作。支持的签名：
//
//	Close(context.Context) error
//	Close() error
//	Close()
//	Close() <-chan struct{}   // 异步，等待通道关闭
//	Close() context.Context   // 异步，等待 Done
//
// 类型和工厂本身不是资源，不会被登记。
func releaserOf(name string, v any) (releaser, bool) {
	switch v.(type) {
	case nil, reflect.Type, *Func, *Bound, valueBinding:
		return releaser{}, false
	}
	if isNilValue(reflect.ValueOf(v)) {
		return releaser{}, false
	}

	var release func(ctx context.Context) error
	switch c := v.(type) {
	case interface{ Close(context.Context) error }:
		release = c.Close
	case io.Closer:
		release = func(context.Context) error { return c.Close() }
	case interface{ Close() }:
		release = func(context.Context) error {
			c.Close()
			return nil
		}
	case interface{ Close() <-chan struct{} }:
		release = func(ctx context.Context) error { return await(ctx, c.Close()) }
	case interface{ Close() context.Context }:
		release = func(ctx context.Context) error { return await(ctx, c.Close().Done()) }
	default:
		return releaser{}, false
	}
	return releaser{name: name, release: release}, true
}

// await 阻塞直到异步释放完成或 ctx 结束
func await(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close 关闭作用域：
//  1. 已关闭则直接返回；
//  2. 深度优先关闭仍然打开的子作用域；
//  3. 按登记的逆序释放资源，收集所有错误；
//  4. 从父作用域的子列表中移除自己。
func (s *state) close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	children := slices.Clone(s.children)
	s.mu.Unlock()

	var errs []error
	for _, child := range children {
		if err := child.state.close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	s.mu.Lock()
	closeables := s.closeables
	s.closeables = nil
	s.mu.Unlock()

	for i := len(closeables) - 1; i >= 0; i-- {
		c := closeables[i]
		if c.release == nil {
			// 仍在解析中的占位
			continue
		}
		if err := c.release(ctx); err != nil {
			s.logger.Error("failed to close binding",
				logging.Field{Key: "name", Value: c.name},
				logging.Field{Key: "error", Value: err.Error()})
			errs = append(errs, fmt.Errorf("close %q: %w", c.name, err))
		}
	}

	if s.parent != nil {
		s.parent.detach(s)
	}

	s.logger.Debug("injector closed",
		logging.Field{Key: "closeables", Value: len(closeables)},
		logging.Field{Key: "children", Value: len(children)})
	return errors.Join(errs...)
}

// collect 由 runtime.AddCleanup 在句柄不可达时调用
func (s *state) collect() {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	s.logger.Warn("injector became unreachable without Close, closing it")
	if err := s.close(context.Background()); err != nil {
		s.logger.Error("failed to close unreachable injector", logging.Field{Key: "error", Value: err.Error()})
	}
}
