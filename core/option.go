package core

import (
	"context"
	"fmt"
	"slices"

	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/logging"
)

// Option 定义了修改 Runtime 状态的函数签名
// 这是框架唯一的扩展点
type Option func(rt *Runtime) error

// WithBindings 向根作用域注册绑定
func WithBindings(bindings di.Bindings) Option {
	return func(rt *Runtime) error {
		return rt.BindAll(bindings)
	}
}

// WithLogger 设置运行时日志，并以 "logger" 名称注册到根作用域
func WithLogger(logger logging.Logger) Option {
	return func(rt *Runtime) error {
		rt.Logger = logger
		return rt.Bind("logger", di.Value(logger))
	}
}

// WithLogging 通过 LoggingBuilder 配置日志
//
//	core.WithLogging(func(b *logging.LoggingBuilder) {
//		b.SetMinimumLevel(logging.LogLevelDebug).AddConsole()
//	})
func WithLogging(configure func(*logging.LoggingBuilder)) Option {
	return func(rt *Runtime) error {
		builder := logging.NewLoggingBuilder()
		configure(builder)
		return WithLogger(builder.Build().CreateLogger("app"))(rt)
	}
}

// WithStartup 注册启动时在根作用域中调用的可注入函数。
// 如果函数声明了名为 "ctx" 的参数，传入启动用的 context。
func WithStartup(fn any) Option {
	return func(rt *Runtime) error {
		rt.Lifecycle.OnStart(func(ctx context.Context) error {
			root := rt.Injector()
			if root == nil {
				return ErrNotBuilt
			}

			bound, err := root.Wrap(fn)
			if err != nil {
				return fmt.Errorf("startup: %w", err)
			}

			var args di.Args
			if slices.Contains(bound.Names(), "ctx") {
				args = di.Args{"ctx": ctx}
			}
			if _, err := bound.Call(args); err != nil {
				return fmt.Errorf("startup: %w", err)
			}
			return nil
		})
		return nil
	}
}
