package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/logging"
)

// Host Web 主机
type Host struct {
	options     Options
	engine      *gin.Engine
	server      *http.Server
	logger      logging.Logger
	root        func() *di.Injector
	controllers []string

	mountOnce sync.Once
	mountErr  error

	mu    sync.Mutex
	addr  string
	ready chan struct{}

	shutdownOnce sync.Once
	shutdownErr  error
}

// Address 获取监听地址 (e.g., "[::]:50234")
// 仅在 Ready 之后有效
func (h *Host) Address() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addr
}

// Ready 在开始监听后关闭
func (h *Host) Ready() <-chan struct{} {
	return h.ready
}

// Handler 注册控制器路由并返回 http.Handler，可直接用于 httptest
func (h *Host) Handler() (http.Handler, error) {
	if err := h.mount(); err != nil {
		return nil, err
	}
	return h.engine, nil
}

// Start 启动 Web 主机
// 注意：此方法会阻塞，直到服务退出。框架会在独立的 Goroutine 中调用它。
func (h *Host) Start(ctx context.Context) error {
	// 1. 解析并注册控制器路由
	if err := h.mount(); err != nil {
		return err
	}

	// 2. 监听端口 (同步，确保端口可用)
	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("web: failed to listen on %s: %w", h.server.Addr, err)
	}

	h.mu.Lock()
	h.addr = ln.Addr().String()
	h.mu.Unlock()
	close(h.ready)

	h.logger.Info("web host started", logging.Field{Key: "address", Value: h.Address()})

	// 3. 启动服务 (阻塞)，直到 Shutdown 被调用或发生错误
	if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		h.logger.Error("web host error", logging.Field{Key: "error", Value: err})
		return err
	}
	return nil
}

// Stop 停止 Web 主机，实现 core.HostedService
func (h *Host) Stop(ctx context.Context) error {
	return h.Close(ctx)
}

// Close 优雅关闭服务，只执行一次。作用域关闭时调用。
func (h *Host) Close(ctx context.Context) error {
	h.shutdownOnce.Do(func() {
		h.logger.Info("stopping web host")
		if err := h.server.Shutdown(ctx); err != nil {
			h.logger.Error("failed to shutdown web host gracefully",
				logging.Field{Key: "error", Value: err})
			h.shutdownErr = err
			return
		}
		h.logger.Info("web host stopped")
	})
	return h.shutdownErr
}

// mount 从根作用域解析控制器并注册路由
func (h *Host) mount() error {
	h.mountOnce.Do(func() {
		root := h.root()
		if root == nil {
			h.mountErr = errors.New("web: root injector not available")
			return
		}
		for _, name := range h.controllers {
			ctrl, err := di.Resolve[Controller](root, name)
			if err != nil {
				h.mountErr = fmt.Errorf("web: failed to resolve controller %q: %w", name, err)
				return
			}
			ctrl.MountRoutes(h.engine)
			h.logger.Debug("mapped controller routes", logging.Field{Key: "controller", Value: name})
		}
	})
	return h.mountErr
}
