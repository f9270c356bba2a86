package config

import (
	"fmt"

	"github.com/gocrud/inject/di"
)

// Bindings 把配置导出为 di.Bindings，使配置值可以按名称注入。
// 不指定 sections 时导出所有顶层键；嵌套的节导出为 Configuration。
//
//	inj := di.New(config.Bindings(cfg, "server", "app:name"))
//	inj.Call(di.Fn(func(server config.Configuration) {...}, "server"), nil)
func Bindings(cfg Configuration, sections ...string) di.Bindings {
	if len(sections) == 0 {
		sections = cfg.Keys()
	}

	bindings := make(di.Bindings, len(sections))
	for _, key := range sections {
		if !cfg.Has(key) {
			continue
		}
		value := lookup(cfg, key)
		if _, ok := value.(map[string]any); ok {
			bindings[key] = cfg.GetSection(key)
			continue
		}
		// 标量值原样绑定，Value 保证不会被当作工厂
		bindings[key] = di.Value(value)
	}
	return bindings
}

// lookup 返回键对应的原始值
func lookup(cfg Configuration, key string) any {
	if c, ok := cfg.(*configuration); ok {
		return c.getByPath(key)
	}
	return cfg.Get(key)
}

// Section 加载并绑定指定节的配置到结构体 T
// section 为空时绑定整个配置
func Section[T any](cfg Configuration, section string) (T, error) {
	var t T
	err := cfg.Bind(section, &t)
	return t, err
}

// Bind 返回一个工厂：从名为 "config" 的绑定中读取 section 并绑定到新的 *T。
// defaults 非空时作为默认值，配置中缺失的字段保持默认。
//
//	di.Bindings{"serverOptions": config.Bind("server", NewDefaultServerOptions)}
func Bind[T any](section string, defaults func() *T) *di.Func {
	return di.Fn(func(cfg Configuration) (*T, error) {
		target := new(T)
		if defaults != nil {
			target = defaults()
		}
		if !cfg.Has(section) {
			return target, nil
		}
		if err := cfg.Bind(section, target); err != nil {
			return nil, fmt.Errorf("config: failed to bind section '%s': %w", section, err)
		}
		return target, nil
	}, "config")
}
