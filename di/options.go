package di

import "github.com/gocrud/inject/logging"

// Option 配置 Injector。
type Option func(*options)

type options struct {
	parent *Injector
	logger logging.Logger
}

// WithParent 设置父作用域。找不到的名称委托给父作用域解析，
// 父作用域关闭时会先关闭仍然打开的子作用域。
func WithParent(parent *Injector) Option {
	return func(o *options) {
		o.parent = parent
	}
}

// WithLogger 设置作用域的日志记录器，子作用域默认继承。
func WithLogger(logger logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
