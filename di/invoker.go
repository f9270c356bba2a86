package di

import (
	"fmt"
	"reflect"
	"sort"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// invoke 在作用域 s 中调用 f：
// 显式参数优先，其余声明的参数从 s 解析，找不到的可选参数注入零值。
func (s *state) invoke(f *Func, args Args) (any, error) {
	if f.err != nil {
		return nil, f.err
	}

	values, err := s.arguments(f.schema, args)
	if err != nil {
		return nil, err
	}

	if f.ctor != nil {
		return construct(f.ctor, f.schema, values), nil
	}

	var in []reflect.Value
	if f.schema.Struct != nil {
		sv := reflect.New(f.schema.Struct).Elem()
		setFields(sv, f.schema, values)
		in = []reflect.Value{sv}
	} else {
		in = values
	}

	return unpackResults(f.fn.Call(in))
}

// arguments 按 schema 顺序准备参数值
func (s *state) arguments(schema *InjectionSchema, args Args) ([]reflect.Value, error) {
	if len(args) > 0 {
		var unexpected []string
		for name := range args {
			if _, ok := schema.param(name); !ok {
				unexpected = append(unexpected, name)
			}
		}
		if len(unexpected) > 0 {
			sort.Strings(unexpected)
			return nil, fmt.Errorf("%w: %q", ErrUnexpectedArgument, unexpected)
		}
	}

	values := make([]reflect.Value, len(schema.Params))
	for i, p := range schema.Params {
		v, ok := args[p.Name]
		if !ok {
			// 未绑定的名称直接省略，由参数是否可选决定结果
			if !s.has(p.Name) {
				if p.Optional {
					values[i] = reflect.Zero(p.Type)
					continue
				}
				return nil, fmt.Errorf("%w: %q", ErrMissingArgument, p.Name)
			}

			resolved, err := s.resolve(p.Name)
			if err != nil {
				return nil, err
			}
			v = resolved
		}

		rv, err := assignable(v, p.Type)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", p.Name, err)
		}
		values[i] = rv
	}
	return values, nil
}

// construct 实例化可构造类型并注入字段。
// 指针类型返回 *T，其他类型返回 T。
func construct(typ reflect.Type, schema *InjectionSchema, values []reflect.Value) any {
	var ptr reflect.Value
	if typ.Kind() == reflect.Ptr {
		ptr = reflect.New(typ.Elem())
	} else {
		ptr = reflect.New(typ)
	}

	if schema.Struct != nil {
		setFields(ptr.Elem(), schema, values)
	}

	if typ.Kind() == reflect.Ptr {
		return ptr.Interface()
	}
	return ptr.Elem().Interface()
}

func setFields(structVal reflect.Value, schema *InjectionSchema, values []reflect.Value) {
	for i, p := range schema.Params {
		structVal.Field(p.Index).Set(values[i])
	}
}

// assignable 将 v 转为可赋给 t 的 reflect.Value
func assignable(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		if isNillable(t.Kind()) {
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("%w: nil is not assignable to %v", ErrTypeMismatch, t)
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	return reflect.Value{}, fmt.Errorf("%w: %v is not assignable to %v", ErrTypeMismatch, rv.Type(), t)
}

// unpackResults 处理工厂返回值：
// ()           -> nil
// (T)          -> T
// (..., error) -> 最后一个返回值非 nil 时作为错误返回
func unpackResults(results []reflect.Value) (any, error) {
	if len(results) == 0 {
		return nil, nil
	}

	last := results[len(results)-1]
	if last.Type().Implements(errorType) && !isNilValue(last) {
		if len(results) > 1 || last.Type() == errorType {
			return nil, last.Interface().(error)
		}
	}

	if len(results) == 1 && last.Type() == errorType {
		return nil, nil
	}
	return results[0].Interface(), nil
}

func isNillable(k reflect.Kind) bool {
	switch k {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

func isNilValue(v reflect.Value) bool {
	return isNillable(v.Kind()) && v.IsNil()
}
