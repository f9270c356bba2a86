package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/logging"
)

// WithHostedService 注册一个托管服务
// binding 按 name 注册到根作用域，解析结果必须实现 HostedService 接口。
// 框架会在 OnStart 时启动 Goroutine 调用 Start，在 OnStop 时调用 Stop。
func WithHostedService(name string, binding any) Option {
	return func(rt *Runtime) error {
		if err := rt.Bind(name, binding); err != nil {
			return fmt.Errorf("WithHostedService: %w", err)
		}

		var (
			service       HostedService
			serviceCancel context.CancelFunc
		)

		rt.Lifecycle.OnStart(func(ctx context.Context) error {
			root := rt.Injector()
			if root == nil {
				return ErrNotBuilt
			}

			val, err := di.Resolve[HostedService](root, name)
			if err != nil {
				return fmt.Errorf("failed to resolve hosted service %q: %w", name, err)
			}
			service = val

			// 服务上下文伴随应用运行，不受启动 ctx 超时影响
			var serviceCtx context.Context
			serviceCtx, serviceCancel = context.WithCancel(context.Background())

			rt.Logger.Info("starting hosted service", logging.Field{Key: "name", Value: name})

			// 异步调用 Start，允许 Start 方法阻塞
			go func() {
				if err := val.Start(serviceCtx); err != nil && !errors.Is(err, context.Canceled) {
					rt.fail(fmt.Errorf("hosted service %q exited with error: %w", name, err))
				}
			}()
			return nil
		})

		rt.Lifecycle.OnStop(func(ctx context.Context) error {
			if serviceCancel != nil {
				serviceCancel()
			}
			if service == nil {
				return nil
			}
			return service.Stop(ctx)
		})

		return nil
	}
}

// WorkerFunc 定义简单的后台任务函数
// 这是一个阻塞函数，通过 ctx.Done() 判断退出。
type WorkerFunc func(ctx context.Context) error

// WithWorker 将一个阻塞的函数注册为后台服务
// 框架会自动将其适配为 HostedService (异步启动，Cancel停止)
func WithWorker(fn WorkerFunc) Option {
	return func(rt *Runtime) error {
		var (
			workerCancel context.CancelFunc
			done         chan struct{}
		)

		rt.Lifecycle.OnStart(func(ctx context.Context) error {
			var workerCtx context.Context
			workerCtx, workerCancel = context.WithCancel(context.Background())
			done = make(chan struct{})

			go func() {
				defer close(done)
				if err := fn(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
					rt.fail(fmt.Errorf("worker exited with error: %w", err))
				}
			}()
			return nil
		})

		rt.Lifecycle.OnStop(func(ctx context.Context) error {
			if workerCancel == nil {
				return nil
			}
			workerCancel()

			// 等待 Worker 退出，超时由 ctx 控制
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return fmt.Errorf("worker did not stop: %w", ctx.Err())
			}
		})

		return nil
	}
}
