package core

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/logging"
)

var (
	// ErrDuplicateBinding 同一名称在根作用域中被注册了两次
	ErrDuplicateBinding = errors.New("core: duplicate binding")
	// ErrNotBuilt 根作用域尚未创建
	ErrNotBuilt = errors.New("core: runtime not built")
	// ErrAlreadyBuilt 根作用域创建后不能再注册绑定
	ErrAlreadyBuilt = errors.New("core: runtime already built")
)

// Runtime 是框架的状态容器：收集根作用域的绑定、生命周期钩子和托管服务，
// Build 之后持有根 Injector。
type Runtime struct {
	// Features 存放构建时特性（配置、Web 主机等），供其他 Option 读取
	Features FeatureCollection

	// Lifecycle 生命周期管理
	Lifecycle *LifecycleEvents

	// Logger 运行时日志，根作用域使用它的 "di" 类别
	Logger logging.Logger

	// ErrorHandler 用于记录运行时产生的严重错误
	// 外部可以通过设置此字段来接管错误日志
	ErrorHandler func(err error)

	mu       sync.Mutex
	bindings di.Bindings
	root     *di.Injector

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// NewRuntime 创建一个新的运行时实例
func NewRuntime() *Runtime {
	rt := &Runtime{
		Lifecycle:  NewLifecycle(),
		Logger:     logging.NewLogger(),
		bindings:   make(di.Bindings),
		shutdownCh: make(chan struct{}),
	}
	rt.ErrorHandler = func(err error) {
		rt.Logger.Error("runtime error", logging.Field{Key: "error", Value: err})
	}
	return rt
}

// Bind 在根作用域中注册绑定，必须在 Build 之前调用
func (rt *Runtime) Bind(name string, binding any) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.root != nil {
		return fmt.Errorf("%w: cannot bind %q", ErrAlreadyBuilt, name)
	}
	if _, exists := rt.bindings[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateBinding, name)
	}
	rt.bindings[name] = binding
	return nil
}

// BindAll 按名称顺序注册多个绑定
func (rt *Runtime) BindAll(bindings di.Bindings) error {
	var errs []error
	for _, name := range slices.Sorted(maps.Keys(bindings)) {
		if err := rt.Bind(name, bindings[name]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build 创建根作用域并解析全部绑定。
// 根作用域在启动前完成解析，之后并发请求只读取缓存的值。
func (rt *Runtime) Build() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.root != nil {
		return nil
	}

	root := di.New(rt.bindings, di.WithLogger(rt.Logger.WithCategory("di")))
	if err := root.ResolveAll(); err != nil {
		return errors.Join(fmt.Errorf("core: failed to build root injector: %w", err), root.Close())
	}
	rt.root = root
	return nil
}

// Injector 返回根作用域，Build 之前为 nil
func (rt *Runtime) Injector() *di.Injector {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.root
}

// Invoke 在根作用域中调用函数并注入依赖
func (rt *Runtime) Invoke(fn any, args di.Args) (any, error) {
	root := rt.Injector()
	if root == nil {
		return nil, ErrNotBuilt
	}
	return root.Call(fn, args)
}

// Apply 应用多个 Option
func (rt *Runtime) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(rt); err != nil {
			return err
		}
	}
	return nil
}

// Start 执行启动钩子
func (rt *Runtime) Start(ctx context.Context) error {
	if rt.Injector() == nil {
		return ErrNotBuilt
	}
	rt.Logger.Info("runtime starting")
	return rt.Lifecycle.Start(ctx)
}

// Stop 倒序执行停止钩子，然后关闭根作用域（连同所有子作用域和资源）
func (rt *Runtime) Stop(ctx context.Context) error {
	err := rt.Lifecycle.Stop(ctx)
	if root := rt.Injector(); root != nil {
		err = errors.Join(err, root.CloseContext(ctx))
	}
	if err != nil {
		rt.Logger.Error("runtime stopped with errors", logging.Field{Key: "error", Value: err})
		return err
	}
	rt.Logger.Info("runtime stopped")
	return nil
}

// Shutdown 请求应用退出
// 调用此方法会触发应用关闭流程
func (rt *Runtime) Shutdown() {
	rt.shutdownOnce.Do(func() {
		close(rt.shutdownCh)
	})
}

// Done 返回一个通道，当应用需要退出时该通道会关闭
func (rt *Runtime) Done() <-chan struct{} {
	return rt.shutdownCh
}

// fail 记录错误并触发退出 (Fail Fast)
func (rt *Runtime) fail(err error) {
	if rt.ErrorHandler != nil {
		rt.ErrorHandler(err)
	}
	rt.Shutdown()
}
