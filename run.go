package inject

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gocrud/inject/core"
)

// ShutdownTimeout 优雅关闭的超时时间
var ShutdownTimeout = 5 * time.Second

// Run 启动应用程序，阻塞直到收到退出信号
func Run(opts ...core.Option) error {
	return RunContext(context.Background(), opts...)
}

// RunContext 同 Run，ctx 结束时也会触发退出
func RunContext(ctx context.Context, opts ...core.Option) error {
	rt := core.NewRuntime()

	// 1. 应用所有选项：注册绑定、添加生命周期钩子等
	if err := rt.Apply(opts...); err != nil {
		return err
	}

	// 2. 创建并预热根作用域
	if err := rt.Build(); err != nil {
		return err
	}

	// 3. 启动生命周期
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := rt.Start(ctx); err != nil {
		return errors.Join(err, stop(rt))
	}

	// 4. 阻塞并监听退出信号
	// 支持 OS 信号 (Ctrl+C, kill)、ctx 结束和 Runtime 内部触发的退出 (rt.Shutdown)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case <-ctx.Done():
	case <-rt.Done():
	}

	// 5. 优雅关闭：停止钩子倒序执行，然后关闭根作用域
	return stop(rt)
}

func stop(rt *core.Runtime) error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return rt.Stop(ctx)
}
