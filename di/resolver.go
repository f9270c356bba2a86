package di

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/gocrud/inject/logging"
)

// has 判断名称在本作用域或任一父作用域中是否有绑定
func (s *state) has(name string) bool {
	for cur := s; cur != nil; cur = cur.parent {
		cur.mu.Lock()
		_, ok := cur.bindings[name]
		cur.mu.Unlock()
		if ok {
			return true
		}
	}
	return false
}

// resolve 先查本作用域，找不到再委托给父作用域。
// 在哪个作用域找到绑定，工厂的依赖就从哪个作用域解析。
func (s *state) resolve(name string) (any, error) {
	if s.isClosed() {
		return nil, fmt.Errorf("%w: resolving %q", ErrClosed, name)
	}
	for cur := s; cur != nil; cur = cur.parent {
		cur.mu.Lock()
		sl, ok := cur.bindings[name]
		cur.mu.Unlock()
		if ok {
			return cur.resolveLocal(name, sl)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// resolveLocal 把本作用域的槽从 Unresolved 推进到 Resolved。
// 解析期间槽处于 Resolving，重入同一名称立即返回 ErrCircularDependency。
// 工厂失败时槽恢复为 Unresolved，下次访问会重试。
//
// 进入 Resolving 时就在 closeables 中占位，释放顺序按首次访问排列：
// 工厂里先解析的依赖排在后面，关闭时先释放。
func (s *state) resolveLocal(name string, sl *slot) (any, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: resolving %q", ErrClosed, name)
	}

	switch sl.state {
	case slotResolved:
		v := sl.value
		s.mu.Unlock()
		return v, nil
	case slotResolving:
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrCircularDependency, name)
	}

	factory := sl.factory
	sl.state = slotResolving
	pending := &releaser{name: name}
	s.closeables = append(s.closeables, pending)
	s.mu.Unlock()

	value, err := s.invoke(factory, nil)

	s.mu.Lock()
	if err != nil {
		sl.state = slotUnresolved
		s.dropPending(pending)
		s.mu.Unlock()
		return nil, &ResolveError{Name: name, Err: err}
	}

	// 带参数的可调用结果绑定到本作用域，后续直接调用时继续注入
	if fn, ok := hasDeclaredParams(value); ok {
		value = &Bound{fn: fn, scope: s}
	}

	sl.state = slotResolved
	sl.value = value
	sl.factory = nil

	rel, closeable := releaserOf(name, value)
	closed := s.closed
	if closeable && !closed {
		pending.release = rel.release
	} else {
		s.dropPending(pending)
	}
	s.mu.Unlock()

	if closeable && closed {
		// 解析期间作用域被关闭，资源不会再被登记，立即释放
		return nil, &ResolveError{Name: name, Err: errors.Join(ErrClosed, rel.release(context.Background()))}
	}

	s.logger.Debug("binding resolved", logging.Field{Key: "name", Value: name})
	return value, nil
}

// dropPending 移除未填充的占位，调用方持有 s.mu
func (s *state) dropPending(pending *releaser) {
	s.closeables = slices.DeleteFunc(s.closeables, func(r *releaser) bool { return r == pending })
}
