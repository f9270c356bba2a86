package di

import (
	"context"
	"errors"
	"runtime"
	"slices"
	"weak"
)

// childRef 父作用域对子作用域的弱引用。
// 句柄不可达后 handle 失效，state 仍可用于级联关闭。
type childRef struct {
	handle weak.Pointer[Injector]
	state  *state
}

// attach 登记子作用域，父作用域已关闭时返回 false
func (s *state) attach(child *Injector) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.children = append(s.children, childRef{handle: weak.Make(child), state: child.s})
	return true
}

// detach 从子列表中移除 child
func (s *state) detach(child *state) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children = slices.DeleteFunc(s.children, func(c childRef) bool {
		return c.state == child
	})
}

// ChildCount 返回仍然存活且未关闭的直接子作用域数量。
// 子作用域被关闭或句柄不可达时计数立即减少。
func (i *Injector) ChildCount() int {
	s := i.s
	s.mu.Lock()
	children := slices.Clone(s.children)
	s.mu.Unlock()

	n := 0
	for _, c := range children {
		if c.handle.Value() == nil || c.state.isClosed() {
			continue
		}
		n++
	}
	return n
}

// Scoped 创建子作用域并执行 fn，无论 fn 是否成功都会关闭子作用域。
//
//	err := root.Scoped(di.Bindings{"job": name}, func(s *di.Injector) error {
//		_, err := s.Call(run, nil)
//		return err
//	})
func (i *Injector) Scoped(bindings Bindings, fn func(*Injector) error) error {
	return i.ScopedContext(context.Background(), bindings, fn)
}

// ScopedContext 同 Scoped，关闭子作用域时使用 ctx 限制异步释放的等待时间
func (i *Injector) ScopedContext(ctx context.Context, bindings Bindings, fn func(*Injector) error) (err error) {
	child := i.Sub(bindings)
	defer func() {
		err = errors.Join(err, child.CloseContext(ctx))
	}()
	return fn(child)
}

// Close 关闭作用域：先关闭子作用域，再按逆序释放登记的资源。
// 重复调用是无操作。
func (i *Injector) Close() error {
	return i.CloseContext(context.Background())
}

// CloseContext 同 Close，ctx 限制异步释放的等待时间
func (i *Injector) CloseContext(ctx context.Context) error {
	defer runtime.KeepAlive(i)
	return i.s.close(ctx)
}
