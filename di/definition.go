package di

import (
	"reflect"
)

// Bindings 名称到绑定的映射，用于创建 Injector。
//
// 支持的绑定值:
//  1. *Func（由 Fn 创建）                -> 工厂，参数按声明的名称注入。
//  2. func(...)（无参数或单个结构体参数） -> 工厂，参数名由 di 标签推断。
//  3. reflect.Type（由 TypeOf 获得）     -> 可构造类型，创建新实例并注入带 di 标签的字段。
//  4. Value(v)                           -> 原样保存 v，即使 v 是函数。
//  5. 其他任意值                          -> 已解析的值。
type Bindings map[string]any

// Args 显式传入的调用参数，按参数名索引。显式参数总是优先于注入值。
type Args map[string]any

// valueBinding 强制按值保存的绑定
type valueBinding struct {
	v any
}

// Value 将 v 原样绑定，不把它当作工厂调用。
//
//	di.New(di.Bindings{"handler": di.Value(func() {...})})
func Value(v any) any {
	return valueBinding{v: v}
}

// Param 单个可注入参数的元数据。
type Param struct {
	Name     string       // 绑定名称
	Type     reflect.Type // 参数（或字段）类型
	Optional bool         // 找不到时注入零值
	Index    int          // 结构体模式下的字段下标
}

// InjectionSchema 预计算的注入元数据，在注册时解析一次，调用时不再反射参数名。
type InjectionSchema struct {
	Params []Param
	// Struct 非空时表示参数通过一个结构体传入（函数的唯一参数或可构造类型本身）
	Struct reflect.Type
}

func (s *InjectionSchema) param(name string) (Param, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Names 返回声明的参数名
func (s *InjectionSchema) Names() []string {
	names := make([]string, len(s.Params))
	for i, p := range s.Params {
		names[i] = p.Name
	}
	return names
}

// slotState 绑定槽的状态
type slotState int

const (
	// slotUnresolved 仍是工厂，尚未解析
	slotUnresolved slotState = iota
	// slotResolving 正在解析，再次进入即为循环依赖
	slotResolving
	// slotResolved 已解析并缓存
	slotResolved
)

// slot 绑定槽：Unresolved(factory) | Resolving | Resolved(value)
type slot struct {
	state   slotState
	factory *Func
	value   any
}
