package etcd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gocrud/inject/config"
	"github.com/gocrud/inject/core"
	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/logging"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Builder etcd 客户端配置构建器
type Builder struct {
	configs []*EtcdClientOptions
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

// AddClient 添加一个 etcd 客户端配置
func (b *Builder) AddClient(name string, configure func(*EtcdClientOptions)) *Builder {
	if b.names[name] {
		b.errors = append(b.errors, fmt.Errorf("etcd client '%s' already configured", name))
		return b
	}

	opts := NewDefaultOptions(name)
	if configure != nil {
		configure(opts)
	}

	if err := opts.Validate(); err != nil {
		b.errors = append(b.errors, fmt.Errorf("invalid etcd configuration for '%s': %w", name, err))
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
		b.AddClient(name, func(o *EtcdClientOptions) {
			if err := sub.Bind(name, o); err != nil {
				b.errors = append(b.errors, err)
			}
		})
	}
	return b
}

// Bindings 构建绑定。*clientv3.Client 自带 Close() error，作用域关闭时释放。
func (b *Builder) Bindings() (di.Bindings, error) {
	if len(b.errors) > 0 {
		return nil, fmt.Errorf("etcd configuration errors: %w", errors.Join(b.errors...))
	}

	bindings := make(di.Bindings, len(b.configs))
	for _, opts := range b.configs {
		bindings[opts.Name] = factory(opts)
	}
	return bindings, nil
}

func factory(opts *EtcdClientOptions) func(deps struct {
	Logger logging.Logger `di:"logger,?"`
}) (*clientv3.Client, error) {
	return func(deps struct {
		Logger logging.Logger `di:"logger,?"`
	}) (*clientv3.Client, error) {
		client, err := clientv3.New(opts.clientConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create etcd client '%s': %w", opts.Name, err)
		}
		if deps.Logger != nil {
			deps.Logger.Info("etcd client created",
				logging.Field{Key: "name", Value: opts.Name},
				logging.Field{Key: "endpoints", Value: strings.Join(opts.Endpoints, ",")})
		}
		return client, nil
	}
}

// BuilderOption 用于配置 Etcd Builder
type BuilderOption func(*Builder)

// WithClient 添加 Etcd 客户端配置
func WithClient(name string, opts ...func(*EtcdClientOptions)) BuilderOption {
	return func(b *Builder) {
		b.AddClient(name, func(o *EtcdClientOptions) {
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

// New 启用 Etcd 能力
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
