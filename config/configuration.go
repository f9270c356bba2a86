package config

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration 只读配置树。
// 键使用 ":" 或 "." 分隔层级，例如 "server:port" 与 "server.port" 等价。
type Configuration interface {
	// Get 获取配置值
	Get(key string) string
	// GetWithDefault 获取配置值，如果不存在则返回默认值
	GetWithDefault(key, defaultValue string) string
	// GetInt 获取整数配置值
	GetInt(key string) (int, error)
	// GetBool 获取布尔配置值
	GetBool(key string) (bool, error)
	// GetDuration 获取时间间隔，支持 "5s" 形式的字符串或纳秒整数
	GetDuration(key string) (time.Duration, error)
	// GetSection 获取配置节
	GetSection(key string) Configuration
	// Has 判断键是否存在
	Has(key string) bool
	// Keys 返回当前层级的键（已排序）
	Keys() []string
	// Bind 绑定配置到结构体，字段使用 yaml 标签
	Bind(key string, target any) error
	// GetAll 获取所有配置
	GetAll() map[string]any
}

// configuration 配置实现，构建后不再修改，可并发读取
type configuration struct {
	data map[string]any
}

func newConfiguration(data map[string]any) *configuration {
	if data == nil {
		data = make(map[string]any)
	}
	return &configuration{data: data}
}

// Get 获取配置值
func (c *configuration) Get(key string) string {
	value := c.getByPath(key)
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// GetWithDefault 获取配置值，如果不存在则返回默认值
func (c *configuration) GetWithDefault(key, defaultValue string) string {
	if value := c.Get(key); value != "" {
		return value
	}
	return defaultValue
}

// GetInt 获取整数配置值
func (c *configuration) GetInt(key string) (int, error) {
	value := c.getByPath(key)
	switch v := value.(type) {
	case nil:
		return 0, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, fmt.Errorf("config: cannot convert %v to int", value)
	}
}

// GetBool 获取布尔配置值
func (c *configuration) GetBool(key string) (bool, error) {
	value := c.getByPath(key)
	switch v := value.(type) {
	case nil:
		return false, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	default:
		return false, fmt.Errorf("config: cannot convert %v to bool", value)
	}
}

// GetDuration 获取时间间隔
func (c *configuration) GetDuration(key string) (time.Duration, error) {
	value := c.getByPath(key)
	switch v := value.(type) {
	case nil:
		return 0, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	case string:
		return time.ParseDuration(v)
	case int:
		return time.Duration(v), nil
	case int64:
		return time.Duration(v), nil
	case float64:
		return time.Duration(v), nil
	default:
		return 0, fmt.Errorf("config: cannot convert %v to duration", value)
	}
}

// GetSection 获取配置节，不存在时返回空配置
func (c *configuration) GetSection(key string) Configuration {
	if m, ok := c.getByPath(key).(map[string]any); ok {
		return &configuration{data: m}
	}
	return newConfiguration(nil)
}

// Has 判断键是否存在
func (c *configuration) Has(key string) bool {
	return c.getByPath(key) != nil
}

// Keys 返回当前层级的键
func (c *configuration) Keys() []string {
	return slices.Sorted(maps.Keys(c.data))
}

// Bind 绑定配置到结构体。
// 通过 YAML 序列化/反序列化完成，target 中已有的值作为默认值保留，
// time.Duration 字段接受 "5s" 形式的字符串。
func (c *configuration) Bind(key string, target any) error {
	data := c.getByPath(key)
	if data == nil {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	raw, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("config: failed to marshal section %q: %w", key, err)
	}
	if err := yaml.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("config: failed to bind section %q: %w", key, err)
	}
	return nil
}

// GetAll 获取所有配置（副本）
func (c *configuration) GetAll() map[string]any {
	result := make(map[string]any, len(c.data))
	mergeMaps(result, c.data)
	return result
}

// getByPath 通过路径获取值（支持 "a:b:c" 或 "a.b.c"）
func (c *configuration) getByPath(path string) any {
	if path == "" {
		return c.data
	}

	current := any(c.data)
	for _, part := range splitKey(path) {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

func splitKey(path string) []string {
	return strings.Split(strings.ReplaceAll(path, ".", ":"), ":")
}

// mergeMaps 深度合并，src 中的嵌套 map 会被复制，dst 不与 src 共享底层数据
func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		if !srcIsMap {
			dst[k] = v
			continue
		}

		dstMap, dstIsMap := dst[k].(map[string]any)
		if !dstIsMap {
			dstMap = make(map[string]any, len(srcMap))
			dst[k] = dstMap
		}
		mergeMaps(dstMap, srcMap)
	}
}
