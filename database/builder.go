package database

import (
	"errors"
	"fmt"

	"github.com/gocrud/inject/config"
	"github.com/gocrud/inject/core"
	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/logging"
)

// Builder 数据库配置构建器
type Builder struct {
	configs []*DatabaseOptions
	names   map[string]bool
	errors  []error
}

// NewBuilder 创建构建器
func NewBuilder() *Builder {
	return &Builder{
		names:  make(map[string]bool),
		errors: make([]error, 0),
	}
}

// Add 添加数据库配置
// name: 绑定名称
// configure: 可选的配置函数
func (b *Builder) Add(name string, configure func(*DatabaseOptions)) *Builder {
	if b.names[name] {
		b.errors = append(b.errors, fmt.Errorf("database '%s' already configured", name))
		return b
	}

	opts := NewDefaultOptions(name)
	if configure != nil {
		configure(opts)
	}

	if err := opts.Validate(); err != nil {
		b.errors = append(b.errors, fmt.Errorf("invalid configuration for '%s': %w", name, err))
		return b
	}

	b.names[name] = true
	b.configs = append(b.configs, opts)
	return b
}

// AddFromConfig 将配置节下的每个子节添加为一个数据库，例如：
//
//	database:
//	  main:
//	    dsn: file::memory:
func (b *Builder) AddFromConfig(cfg config.Configuration, section string) *Builder {
	sub := cfg.GetSection(section)
	for _, name := range sub.Keys() {
		b.Add(name, func(o *DatabaseOptions) {
			if err := sub.Bind(name, o); err != nil {
				b.errors = append(b.errors, err)
			}
		})
	}
	return b
}

// Bindings 构建绑定：每个数据库按名称注册为惰性工厂，首次注入时才打开连接。
func (b *Builder) Bindings() (di.Bindings, error) {
	if len(b.errors) > 0 {
		return nil, fmt.Errorf("database configuration errors: %w", errors.Join(b.errors...))
	}

	bindings := make(di.Bindings, len(b.configs))
	for _, opts := range b.configs {
		bindings[opts.Name] = factory(opts)
	}
	return bindings, nil
}

// factory 返回打开数据库的工厂，logger 可选
func factory(opts *DatabaseOptions) func(deps struct {
	Logger logging.Logger `di:"logger,optional"`
}) (*DB, error) {
	return func(deps struct {
		Logger logging.Logger `di:"logger,optional"`
	}) (*DB, error) {
		db, err := Open(opts, deps.Logger)
		if err != nil {
			return nil, err
		}
		if deps.Logger != nil {
			deps.Logger.Info("database opened",
				logging.Field{Key: "name", Value: opts.Name},
				logging.Field{Key: "dialector", Value: db.Dialector.Name()})
		}
		return db, nil
	}
}

// BuilderOption 用于配置 Database Builder
type BuilderOption func(*Builder)

// WithDatabase 添加数据库配置
func WithDatabase(name string, opts ...func(*DatabaseOptions)) BuilderOption {
	return func(b *Builder) {
		b.Add(name, func(o *DatabaseOptions) {
			for _, opt := range opts {
				opt(o)
			}
		})
	}
}

// Bindings 直接构建 di.Bindings，用于不经过 Runtime 的场景
func Bindings(opts ...BuilderOption) (di.Bindings, error) {
	builder := NewBuilder()
	for _, opt := range opts {
		opt(builder)
	}
	return builder.Bindings()
}

// New 启用数据库能力。
// section 非空时还会从 config.Load 加载的配置中读取该节。
func New(section string, opts ...BuilderOption) core.Option {
	return func(rt *core.Runtime) error {
		builder := NewBuilder()
		if section != "" {
			builder.AddFromConfig(config.FromRuntime(rt), section)
		}
		for _, opt := range opts {
			opt(builder)
		}

		bindings, err := builder.Bindings()
		if err != nil {
			return err
		}
		return rt.BindAll(bindings)
	}
}
