package di

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound 名称在当前作用域及所有父作用域中都没有绑定。
	ErrNotFound = errors.New("di: binding not found")

	// ErrCircularDependency 解析某个名称时再次进入了同一名称的解析。
	ErrCircularDependency = errors.New("di: circular dependency detected")

	// ErrClosed 作用域已关闭，不再解析绑定。
	ErrClosed = errors.New("di: injector closed")

	// ErrInvalidBinding 绑定无法作为工厂调用，例如无法推断参数名。
	ErrInvalidBinding = errors.New("di: invalid binding")

	// ErrMissingArgument 必需参数既没有显式传入，也无法解析。
	ErrMissingArgument = errors.New("di: missing argument")

	// ErrUnexpectedArgument 显式传入了函数未声明的参数名。
	ErrUnexpectedArgument = errors.New("di: unexpected argument")

	// ErrTypeMismatch 解析得到的值无法赋给参数类型。
	ErrTypeMismatch = errors.New("di: type mismatch")
)

// ResolveError 记录解析失败的绑定名称。
// 嵌套的工厂失败会形成链：resolve "a": resolve "b": ...
type ResolveError struct {
	Name string
	Err  error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %q: %v", e.Name, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}
