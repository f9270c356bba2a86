package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/inject/config"
	"github.com/gocrud/inject/core"
	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/logging"
)

// BindingName Web 主机在根作用域中的绑定名称
const BindingName = "web"

// Controller 控制器接口
type Controller interface {
	// MountRoutes 注册路由
	MountRoutes(router gin.IRouter)
}

// Builder Web 主机构建器（基于 Gin）
type Builder struct {
	options     *Options
	engine      *gin.Engine
	controllers []string
	bindings    di.Bindings // 控制器绑定，New 时注册到根作用域
	scoped      di.Bindings // 请求级绑定
	root        func() *di.Injector
	errors      []error
}

// NewBuilder 创建 Web 构建器
func NewBuilder() *Builder {
	// 设置 Gin 为发布模式（默认）
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()

	b := &Builder{
		options:  NewDefaultOptions(),
		engine:   engine,
		bindings: make(di.Bindings),
		scoped:   make(di.Bindings),
	}

	// 默认中间件：恢复 panic，然后创建请求作用域
	engine.Use(gin.Recovery(), b.requestScope)
	return b
}

// requestScope 在 Build 之后为每个请求创建子作用域
func (b *Builder) requestScope(c *gin.Context) {
	if b.root == nil {
		c.Next()
		return
	}
	root := b.root()
	if root == nil {
		c.Next()
		return
	}
	Middleware(root, b.scoped)(c)
}

// UsePort 设置端口
func (b *Builder) UsePort(port int) *Builder {
	b.options.Port = port
	return b
}

// FromConfig 从配置节读取选项
func (b *Builder) FromConfig(cfg config.Configuration, section string) *Builder {
	if cfg.Has(section) {
		if err := cfg.Bind(section, b.options); err != nil {
			b.errors = append(b.errors, err)
		}
	}
	return b
}

// Use 使用全局中间件，在请求作用域之后执行
func (b *Builder) Use(middleware ...gin.HandlerFunc) *Builder {
	b.engine.Use(middleware...)
	return b
}

// AddController 注册控制器。binding 按 name 注册到根作用域，
// 可以是可构造类型、工厂函数或实例；解析结果必须实现 Controller。
// binding 为 nil 时只引用根作用域中已有的同名绑定。
func (b *Builder) AddController(name string, binding any) *Builder {
	b.controllers = append(b.controllers, name)
	if binding != nil {
		b.bindings[name] = binding
	}
	return b
}

// AddScoped 注册请求级绑定，每个请求的子作用域中解析一次，请求结束时释放
func (b *Builder) AddScoped(name string, binding any) *Builder {
	if _, exists := b.scoped[name]; exists || name == "ctx" || name == "request" {
		b.errors = append(b.errors, fmt.Errorf("web: scoped binding '%s' already defined", name))
		return b
	}
	b.scoped[name] = binding
	return b
}

// Get 注册 GET 路由
func (b *Builder) Get(path string, handlers ...gin.HandlerFunc) *Builder {
	b.engine.GET(path, handlers...)
	return b
}

// Post 注册 POST 路由
func (b *Builder) Post(path string, handlers ...gin.HandlerFunc) *Builder {
	b.engine.POST(path, handlers...)
	return b
}

// Put 注册 PUT 路由
func (b *Builder) Put(path string, handlers ...gin.HandlerFunc) *Builder {
	b.engine.PUT(path, handlers...)
	return b
}

// Delete 注册 DELETE 路由
func (b *Builder) Delete(path string, handlers ...gin.HandlerFunc) *Builder {
	b.engine.DELETE(path, handlers...)
	return b
}

// Group 创建路由组
func (b *Builder) Group(relativePath string, handlers ...gin.HandlerFunc) *gin.RouterGroup {
	return b.engine.Group(relativePath, handlers...)
}

// Static 服务静态文件
func (b *Builder) Static(relativePath, root string) *Builder {
	b.engine.Static(relativePath, root)
	return b
}

// StaticFS 服务静态文件系统
func (b *Builder) StaticFS(relativePath string, fs http.FileSystem) *Builder {
	b.engine.StaticFS(relativePath, fs)
	return b
}

// NoRoute 处理 404
func (b *Builder) NoRoute(handlers ...gin.HandlerFunc) *Builder {
	b.engine.NoRoute(handlers...)
	return b
}

// Engine 获取 Gin 引擎（用于高级定制）
func (b *Builder) Engine() *gin.Engine {
	return b.engine
}

// Build 构建 Web 主机。控制器在首次 Handler 或 Start 时从 root 解析。
func (b *Builder) Build(root *di.Injector, logger logging.Logger) (*Host, error) {
	return b.build(func() *di.Injector { return root }, logger)
}

func (b *Builder) build(root func() *di.Injector, logger logging.Logger) (*Host, error) {
	if err := b.options.Validate(); err != nil {
		b.errors = append(b.errors, err)
	}
	if len(b.errors) > 0 {
		return nil, fmt.Errorf("web configuration errors: %w", errors.Join(b.errors...))
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	gin.SetMode(b.options.Mode)
	b.root = root

	return &Host{
		options:     *b.options,
		engine:      b.engine,
		root:        root,
		controllers: append([]string(nil), b.controllers...),
		logger:      logger,
		ready:       make(chan struct{}),
		server: &http.Server{
			Addr:         b.options.addr(),
			Handler:      b.engine,
			ReadTimeout:  b.options.ReadTimeout,
			WriteTimeout: b.options.WriteTimeout,
		},
	}, nil
}

// BuilderOption 用于配置 Web Builder
type BuilderOption func(*Builder)

// WithPort 设置端口
func WithPort(port int) BuilderOption {
	return func(b *Builder) {
		b.UsePort(port)
	}
}

// WithController 添加控制器
func WithController(name string, binding any) BuilderOption {
	return func(b *Builder) {
		b.AddController(name, binding)
	}
}

// WithScoped 添加请求级绑定
func WithScoped(name string, binding any) BuilderOption {
	return func(b *Builder) {
		b.AddScoped(name, binding)
	}
}

// WithRoutes 直接配置路由
func WithRoutes(configure func(router gin.IRouter)) BuilderOption {
	return func(b *Builder) {
		configure(b.engine)
	}
}

// New 启用 Web 能力：以 "web" 名称注册 Host 并作为托管服务运行。
// section 非空时从配置读取选项。
func New(section string, opts ...BuilderOption) core.Option {
	return func(rt *core.Runtime) error {
		builder := NewBuilder()
		if section != "" {
			builder.FromConfig(config.FromRuntime(rt), section)
		}
		for _, opt := range opts {
			opt(builder)
		}

		if err := rt.BindAll(builder.bindings); err != nil {
			return fmt.Errorf("web: failed to register controllers: %w", err)
		}

		// Host 在根作用域构建时创建，随根作用域关闭
		factory := func(deps struct {
			Logger logging.Logger `di:"logger,optional"`
		}) (*Host, error) {
			logger := deps.Logger
			if logger != nil {
				logger = logger.WithCategory("web")
			}
			host, err := builder.build(rt.Injector, logger)
			if err != nil {
				return nil, err
			}
			core.Set(&rt.Features, host)
			return host, nil
		}

		return core.WithHostedService(BindingName, factory)(rt)
	}
}
