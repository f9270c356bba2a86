package di

import (
	"fmt"
	"reflect"
)

// Resolve resolves the named binding and asserts it to T.
func Resolve[T any](i *Injector, name string) (T, error) {
	var zero T
	val, err := i.Get(name)
	if err != nil {
		return zero, err
	}
	return as[T](val)
}

// MustResolve is like Resolve but panics on failure.
func MustResolve[T any](i *Injector, name string) T {
	v, err := Resolve[T](i, name)
	if err != nil {
		panic(fmt.Sprintf("di: failed to resolve %q: %v", name, err))
	}
	return v
}

// Invoke calls fn in the scope and asserts the result to T.
func Invoke[T any](i *Injector, fn any, args Args) (T, error) {
	var zero T
	val, err := i.Call(fn, args)
	if err != nil {
		return zero, err
	}
	return as[T](val)
}

func as[T any](val any) (T, error) {
	var zero T
	if val == nil {
		// nil 对接口、指针等类型是合法的零值
		if isNillable(reflect.TypeOf((*T)(nil)).Elem().Kind()) {
			return zero, nil
		}
		return zero, fmt.Errorf("%w: nil is not %v", ErrTypeMismatch, reflect.TypeOf((*T)(nil)).Elem())
	}
	if v, ok := val.(T); ok {
		return v, nil
	}
	return zero, fmt.Errorf("%w: resolved value is %T, expected %v", ErrTypeMismatch, val, reflect.TypeOf((*T)(nil)).Elem())
}
