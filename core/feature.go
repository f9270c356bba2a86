package core

import (
	"reflect"
	"sync"
)

// FeatureCollection 是一个类型安全的特性集合
// 用于在 Option 之间共享构建时对象，例如配置或 Web 主机
type FeatureCollection struct {
	features sync.Map
}

// Set 以 T 为键注册一个特性
func Set[T any](fc *FeatureCollection, feature T) {
	fc.features.Store(reflect.TypeOf((*T)(nil)).Elem(), feature)
}

// Get 获取一个特性
func (fc *FeatureCollection) Get(typ reflect.Type) (any, bool) {
	return fc.features.Load(typ)
}

// GetFeature 泛型辅助函数，从 Runtime 获取特性
func GetFeature[T any](rt *Runtime) (T, bool) {
	var zero T
	// T 是接口时 reflect.TypeOf(zero) 为 nil，必须通过指针取类型
	targetType := reflect.TypeOf((*T)(nil)).Elem()

	if val, ok := rt.Features.Get(targetType); ok {
		return val.(T), true
	}
	return zero, false
}
