package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gocrud/inject/core"
	"github.com/gocrud/inject/logging"
)

// LoadOptions 配置加载选项
type LoadOptions struct {
	Paths     []string     // 配置文件，按顺序加载
	Optional  bool         // 文件不存在时忽略
	EnvPrefix string       // 环境变量前缀，默认 "APP_"
	Etcd      *EtcdOptions // 非空时追加 etcd 配置源
	Memory    map[string]any
	Export    []string // 导出到根作用域的配置节
}

// LoadOption 配置加载选项函数
type LoadOption func(*LoadOptions)

// WithOptionalFile 配置文件不存在时不报错
func WithOptionalFile() LoadOption {
	return func(o *LoadOptions) {
		o.Optional = true
	}
}

// WithEnvPrefix 设置环境变量前缀，空字符串表示不加载环境变量
func WithEnvPrefix(prefix string) LoadOption {
	return func(o *LoadOptions) {
		o.EnvPrefix = prefix
	}
}

// WithEtcd 追加 etcd 配置源，优先级高于文件和环境变量
func WithEtcd(opts EtcdOptions) LoadOption {
	return func(o *LoadOptions) {
		o.Etcd = &opts
	}
}

// WithDefaults 设置默认值，优先级最低
func WithDefaults(data map[string]any) LoadOption {
	return func(o *LoadOptions) {
		o.Memory = data
	}
}

// WithExport 将指定配置节按名称注册到根作用域
func WithExport(sections ...string) LoadOption {
	return func(o *LoadOptions) {
		o.Export = append(o.Export, sections...)
	}
}

// Load 加载配置文件并以 "config" 名称注册到根作用域。
// 支持 YAML（.yaml/.yml）与 JSON（.json）；path 为空时只加载环境变量等其他来源。
func Load(path string, opts ...LoadOption) core.Option {
	return func(rt *core.Runtime) error {
		options := &LoadOptions{EnvPrefix: "APP_"}
		if path != "" {
			options.Paths = []string{path}
		}
		for _, opt := range opts {
			opt(options)
		}

		cfg, err := options.build()
		if err != nil {
			return err
		}

		rt.Logger.Info("configuration loaded",
			logging.Field{Key: "paths", Value: strings.Join(options.Paths, ",")},
			logging.Field{Key: "keys", Value: strings.Join(cfg.Keys(), ",")})

		if err := rt.Bind("config", cfg); err != nil {
			return err
		}
		if len(options.Export) > 0 {
			if err := rt.BindAll(Bindings(cfg, options.Export...)); err != nil {
				return err
			}
		}

		core.Set[Configuration](&rt.Features, cfg)
		return nil
	}
}

func (o *LoadOptions) build() (Configuration, error) {
	builder := NewConfigurationBuilder()
	if o.Memory != nil {
		builder.AddInMemory(o.Memory)
	}

	for _, p := range o.Paths {
		switch strings.ToLower(filepath.Ext(p)) {
		case ".json":
			builder.AddJsonFile(p, o.Optional)
		case ".yaml", ".yml":
			builder.AddYamlFile(p, o.Optional)
		default:
			return nil, fmt.Errorf("config: unsupported file type %q", p)
		}
	}

	if o.EnvPrefix != "" {
		builder.AddEnvironmentVariables(o.EnvPrefix)
	}
	if o.Etcd != nil {
		builder.AddEtcd(*o.Etcd)
	}
	return builder.Build()
}

// FromRuntime 返回 Load 注册的配置，未加载时返回空配置
func FromRuntime(rt *core.Runtime) Configuration {
	if cfg, ok := core.GetFeature[Configuration](rt); ok {
		return cfg
	}
	return newConfiguration(nil)
}
