package mongodb

import (
	"errors"
	"fmt"

	"github.com/gocrud/inject/config"
	"github.com/gocrud/inject/core"
	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/logging"
)

// Builder MongoDB 客户端配置构建器
type Builder struct {
	configs []*MongoOptions
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

// Add 添加一个客户端配置
func (b *Builder) Add(name string, uri string, configure func(*MongoOptions)) *Builder {
	if b.names[name] {
		b.errors = append(b.errors, fmt.Errorf("mongo client '%s' already configured", name))
		return b
	}

	opts := NewDefaultOptions(name, uri)
	if configure != nil {
		configure(opts)
	}

	if err := opts.Validate(); err != nil {
		b.errors = append(b.errors, fmt.Errorf("invalid mongo configuration for '%s': %w", name, err))
		return b
	}

	b.names[name] = true
	b.configs = append(b.configs, opts)
	return b
}

// AddFromConfig 将配置节下的每个子节添加为一个客户端
func (b *Builder) AddFromConfig(cfg config.Configuration, section string) *Builder {
	sub := cfg.GetSection(section)
	for _, name := range sub.Keys() {
		b.Add(name, "", func(o *MongoOptions) {
			if err := sub.Bind(name, o); err != nil {
				b.errors = append(b.errors, err)
			}
		})
	}
	return b
}

// Bindings 构建绑定
func (b *Builder) Bindings() (di.Bindings, error) {
	if len(b.errors) > 0 {
		return nil, fmt.Errorf("mongo configuration errors: %w", errors.Join(b.errors...))
	}

	bindings := make(di.Bindings, len(b.configs))
	for _, opts := range b.configs {
		bindings[opts.Name] = factory(opts)
	}
	return bindings, nil
}

type deps struct {
	Logger logging.Logger `di:"logger,optional"`
}

func factory(opts *MongoOptions) func(deps) (*Client, error) {
	return func(d deps) (*Client, error) {
		return Connect(opts, d.Logger)
	}
}

// BuilderOption 用于配置 MongoDB Builder
type BuilderOption func(*Builder)

// WithClient 添加 MongoDB 客户端配置
func WithClient(name string, uri string, opts ...func(*MongoOptions)) BuilderOption {
	return func(b *Builder) {
		b.Add(name, uri, func(o *MongoOptions) {
			for _, opt := range opts {
				opt(o)
			}
		})
	}
}

// Bindings 直接构建 di.Bindings
func Bindings(opts ...BuilderOption) (di.Bindings, error) {
	builder := NewBuilder()
	for _, opt := range opts {
		opt(builder)
	}
	return builder.Bindings()
}

// New 启用 MongoDB 能力
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
