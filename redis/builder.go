package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/gocrud/inject/config"
	"github.com/gocrud/inject/core"
	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/logging"
	goredis "github.com/redis/go-redis/v9"
)

// Builder Redis 客户端配置构建器
type Builder struct {
	configs []*RedisClientOptions
	names   map[string]bool
	errors  []error
}

// NewBuilder 创建 Redis 构建器
func NewBuilder() *Builder {
	return &Builder{
		names:  make(map[string]bool),
		errors: make([]error, 0),
	}
}

// AddClient 添加一个 Redis 客户端配置
func (b *Builder) AddClient(name string, configure func(*RedisClientOptions)) *Builder {
	// 检查名称冲突
	if b.names[name] {
		b.errors = append(b.errors, fmt.Errorf("redis client '%s' already configured", name))
		return b
	}

	opts := NewDefaultOptions(name)
	if configure != nil {
		configure(opts)
	}

	if err := opts.Validate(); err != nil {
		b.errors = append(b.errors, fmt.Errorf("invalid redis configuration for '%s': %w", name, err))
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
		b.AddClient(name, func(o *RedisClientOptions) {
			if err := sub.Bind(name, o); err != nil {
				b.errors = append(b.errors, err)
			}
		})
	}
	return b
}

// Bindings 构建绑定，客户端在首次注入时创建，作用域关闭时随之关闭
func (b *Builder) Bindings() (di.Bindings, error) {
	if len(b.errors) > 0 {
		return nil, fmt.Errorf("redis configuration errors: %w", errors.Join(b.errors...))
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

func factory(opts *RedisClientOptions) func(deps) (*goredis.Client, error) {
	return func(d deps) (*goredis.Client, error) {
		client := goredis.NewClient(opts.clientOptions())

		if opts.Ping {
			ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
			defer cancel()

			if err := client.Ping(ctx).Err(); err != nil {
				_ = client.Close()
				return nil, fmt.Errorf("failed to connect to redis '%s': %w", opts.Name, err)
			}
		}

		if d.Logger != nil {
			d.Logger.Info("redis client created",
				logging.Field{Key: "name", Value: opts.Name},
				logging.Field{Key: "addr", Value: opts.Addr},
				logging.Field{Key: "db", Value: opts.DB})
		}
		return client, nil
	}
}

// BuilderOption 用于配置 Redis Builder
type BuilderOption func(*Builder)

// WithClient 添加 Redis 客户端配置
func WithClient(name string, opts ...func(*RedisClientOptions)) BuilderOption {
	return func(b *Builder) {
		b.AddClient(name, func(o *RedisClientOptions) {
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

// New 启用 Redis 能力。section 非空时从配置中读取客户端。
//
//	redis:
//	  cache:
//	    addr: localhost:6379
//	    db: 1
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
