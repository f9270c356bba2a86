package di

import (
	"fmt"
	"reflect"
	"strings"
)

// Func 带参数名的可注入函数。
//
// Go 在运行时拿不到参数名，因此参数名在注册时声明一次：
// 通过 Fn 显式给出，或者由唯一结构体参数上的 di 标签推断。
type Func struct {
	fn     reflect.Value
	ctor   reflect.Type // 非空时为可构造类型
	schema *InjectionSchema
	err    error
}

// Fn 创建可注入函数，names 依次对应 fn 的非变参参数。
// 名称后可以附加选项，语法同 di 标签，例如 "cache,optional" 或 "cache,?"。
//
//	di.Fn(func(a, b string) string { return a + b }, "a", "b")
//
// 不传 names 时，fn 必须没有参数，或者只有一个结构体参数：
//
//	di.Fn(func(in struct {
//		DB    *sql.DB      `di:"db"`
//		Cache *redis.Client `di:"cache,optional"`
//	}) *Repo { ... })
//
// 无效的函数不会 panic，错误在首次调用时以 ErrInvalidBinding 返回。
func Fn(fn any, names ...string) *Func {
	f := &Func{fn: reflect.ValueOf(fn)}
	if fn == nil || (f.fn.Kind() == reflect.Func && f.fn.IsNil()) {
		f.err = fmt.Errorf("%w: nil function", ErrInvalidBinding)
		return f
	}
	f.schema, f.err = analyzeFunction(f.fn.Type(), names)
	return f
}

// TypeOf 获取类型 T 的 reflect.Type，作为可构造类型绑定：
//
//	di.New(di.Bindings{"repo": di.TypeOf[*Repo]()})
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Names 返回声明的参数名
func (f *Func) Names() []string {
	if f.schema == nil {
		return nil
	}
	return f.schema.Names()
}

// Err 返回注册时发现的错误
func (f *Func) Err() error {
	return f.err
}

// newTypeFunc 为可构造类型创建工厂
func newTypeFunc(t reflect.Type) *Func {
	f := &Func{ctor: t}
	f.schema, f.err = analyzeStruct(t)
	return f
}

// asFactory 判断绑定值是否为工厂，是则返回对应的 *Func
func asFactory(v any) (*Func, bool) {
	switch b := v.(type) {
	case *Func:
		return b, true
	case *Bound:
		return b.fn, true
	case reflect.Type:
		return newTypeFunc(b), true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Func && !rv.IsNil() {
		return Fn(v), true
	}
	return nil, false
}

// hasDeclaredParams 判断已解析的值是否为带参数名的可调用对象
func hasDeclaredParams(v any) (*Func, bool) {
	switch b := v.(type) {
	case *Func:
		return b, b.err == nil && len(b.schema.Params) > 0
	case *Bound:
		return b.fn, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return nil, false
	}
	f := Fn(v)
	return f, f.err == nil && len(f.schema.Params) > 0
}

// analyzeFunction 解析函数参数，填充 schema
func analyzeFunction(fnType reflect.Type, names []string) (*InjectionSchema, error) {
	if fnType.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: expected function, got %v", ErrInvalidBinding, fnType)
	}

	// 变参从不注入，调用时传空
	numIn := fnType.NumIn()
	if fnType.IsVariadic() {
		numIn--
	}

	if len(names) == 0 {
		switch {
		case numIn == 0:
			return &InjectionSchema{}, nil
		case numIn == 1 && fnType.In(0).Kind() == reflect.Struct:
			return analyzeStruct(fnType.In(0))
		default:
			return nil, fmt.Errorf("%w: cannot infer parameter names of %v, declare them with di.Fn", ErrInvalidBinding, fnType)
		}
	}

	if len(names) != numIn {
		return nil, fmt.Errorf("%w: %d names declared for %d parameters of %v", ErrInvalidBinding, len(names), numIn, fnType)
	}

	schema := &InjectionSchema{Params: make([]Param, 0, numIn)}
	for i, raw := range names {
		name, optional := parseTag(raw)
		if name == "" {
			return nil, fmt.Errorf("%w: empty name for parameter %d of %v", ErrInvalidBinding, i, fnType)
		}
		if _, dup := schema.param(name); dup {
			return nil, fmt.Errorf("%w: duplicate parameter name %q", ErrInvalidBinding, name)
		}
		schema.Params = append(schema.Params, Param{
			Name:     name,
			Type:     fnType.In(i),
			Optional: optional,
			Index:    i,
		})
	}
	return schema, nil
}

// analyzeStruct 解析带 di 标签的结构体字段。
// 标签为空名称时使用字段名，例如 `di:""` 或 `di:",optional"`。
func analyzeStruct(typ reflect.Type) (*InjectionSchema, error) {
	// 解包指针
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}

	schema := &InjectionSchema{}
	if typ.Kind() != reflect.Struct {
		return schema, nil
	}
	schema.Struct = typ

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tagValue, hasTag := field.Tag.Lookup("di")
		if !hasTag {
			continue
		}
		if !field.IsExported() {
			return nil, fmt.Errorf("%w: field %s.%s is tagged but unexported", ErrInvalidBinding, typ, field.Name)
		}

		name, optional := parseTag(tagValue)
		if name == "" {
			name = field.Name
		}
		if _, dup := schema.param(name); dup {
			return nil, fmt.Errorf("%w: duplicate parameter name %q in %v", ErrInvalidBinding, name, typ)
		}

		schema.Params = append(schema.Params, Param{
			Name:     name,
			Type:     field.Type,
			Optional: optional,
			Index:    i,
		})
	}
	return schema, nil
}

// parseTag 解析 "name,option1,option2"。
// 首段总是名称，只有单独的 "?" 表示可选且名称为空（使用默认名称）。
func parseTag(tag string) (name string, optional bool) {
	parts := strings.Split(tag, ",")
	name = strings.TrimSpace(parts[0])

	if name == "?" {
		name = ""
		optional = true
	}

	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if part == "optional" || part == "?" {
			optional = true
		}
	}
	return name, optional
}
