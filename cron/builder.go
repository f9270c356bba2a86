package cron

import (
	"context"
	"errors"
	"fmt"

	"github.com/gocrud/inject/config"
	"github.com/gocrud/inject/core"
	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/logging"
)

// BindingName 调度器在根作用域中的绑定名称
const BindingName = "cron"

// jobDefinition 任务定义
type jobDefinition struct {
	spec    string
	name    string
	handler any
}

// Builder Cron 配置构建器
type Builder struct {
	options *Options
	jobs    []jobDefinition
	errors  []error
}

// NewBuilder 创建 Cron 构建器
func NewBuilder() *Builder {
	return &Builder{
		options: NewDefaultOptions(),
		jobs:    make([]jobDefinition, 0),
	}
}

// WithSeconds 启用秒级精度
func (b *Builder) WithSeconds() *Builder {
	b.options.EnableSeconds = true
	return b
}

// WithLocation 设置时区
func (b *Builder) WithLocation(location string) *Builder {
	b.options.Location = location
	return b
}

// EnableCronLogger 启用 cron 库的内部调度日志
func (b *Builder) EnableCronLogger() *Builder {
	b.options.EnableCronLogger = true
	return b
}

// FromConfig 从配置节读取调度器选项
func (b *Builder) FromConfig(cfg config.Configuration, section string) *Builder {
	if cfg.Has(section) {
		if err := cfg.Bind(section, b.options); err != nil {
			b.errors = append(b.errors, err)
		}
	}
	return b
}

// AddJob 添加任务，handler 的参数从作用域注入
//
//	builder.AddJob("0 */5 * * * *", "sync-data", di.Fn(func(svc *DataService) error {
//		return svc.Sync()
//	}, "data"))
func (b *Builder) AddJob(spec, name string, handler any) *Builder {
	b.jobs = append(b.jobs, jobDefinition{
		spec:    spec,
		name:    name,
		handler: handler,
	})
	return b
}

// Binding 返回创建调度器的工厂，logger 可选
func (b *Builder) Binding() (any, error) {
	if err := b.options.Validate(); err != nil {
		b.errors = append(b.errors, err)
	}
	if len(b.errors) > 0 {
		return nil, fmt.Errorf("cron configuration errors: %w", errors.Join(b.errors...))
	}

	opts := *b.options
	return func(deps struct {
		Logger logging.Logger `di:"logger,optional"`
	}) (*Scheduler, error) {
		logger := deps.Logger
		if logger == nil {
			logger = logging.NewNopLogger()
		}
		return newScheduler(&opts, logger)
	}, nil
}

// Schedule 在 scope 中解析调度器并注册全部任务
func (b *Builder) Schedule(scope *di.Injector) (*Scheduler, error) {
	sched, err := di.Resolve[*Scheduler](scope, BindingName)
	if err != nil {
		return nil, err
	}
	for _, j := range b.jobs {
		if err := sched.Schedule(scope, j.spec, j.name, j.handler); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

// BuilderOption 用于配置 Cron Builder
type BuilderOption func(*Builder)

// WithSeconds 启用秒级精度
func WithSeconds() BuilderOption {
	return func(b *Builder) {
		b.WithSeconds()
	}
}

// WithLocation 设置时区
func WithLocation(location string) BuilderOption {
	return func(b *Builder) {
		b.WithLocation(location)
	}
}

// EnableCronLogger 启用 cron 库的内部调度日志
func EnableCronLogger() BuilderOption {
	return func(b *Builder) {
		b.EnableCronLogger()
	}
}

// AddJob 添加任务
func AddJob(spec, name string, handler any) BuilderOption {
	return func(b *Builder) {
		b.AddJob(spec, name, handler)
	}
}

// New 启用 Cron 能力：以 "cron" 名称注册调度器，启动时注册任务并开始调度，
// 停止时等待正在执行的任务。section 非空时从配置读取选项。
func New(section string, opts ...BuilderOption) core.Option {
	return func(rt *core.Runtime) error {
		builder := NewBuilder()
		if section != "" {
			builder.FromConfig(config.FromRuntime(rt), section)
		}
		for _, opt := range opts {
			opt(builder)
		}

		binding, err := builder.Binding()
		if err != nil {
			return err
		}
		if err := rt.Bind(BindingName, binding); err != nil {
			return err
		}

		var sched *Scheduler
		rt.Lifecycle.OnStart(func(ctx context.Context) error {
			root := rt.Injector()
			if root == nil {
				return core.ErrNotBuilt
			}
			s, err := builder.Schedule(root)
			if err != nil {
				return err
			}
			sched = s
			return sched.Start(ctx)
		})

		rt.Lifecycle.OnStop(func(ctx context.Context) error {
			if sched == nil {
				return nil
			}
			return sched.Stop(ctx)
		})
		return nil
	}
}
