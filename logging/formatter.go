package logging

import (
	"fmt"
	"time"
)

// Formatter 日志格式化接口
type Formatter interface {
	// Format 格式化日志条目
	Format(entry *LogEntry) ([]byte, error)
}

// FormatterFunc 函数形式的 Formatter
type FormatterFunc func(entry *LogEntry) ([]byte, error)

// Format 实现 Formatter
func (f FormatterFunc) Format(entry *LogEntry) ([]byte, error) {
	return f(entry)
}

// LogEntry 日志条目
type LogEntry struct {
	Time     time.Time
	Level    LogLevel
	Category string
	Message  string
	Fields   []Field
}

// fieldValue 把 error、Duration 等转换为可读的值，其余原样返回
func fieldValue(v any) any {
	switch val := v.(type) {
	case error:
		return val.Error()
	case time.Duration:
		return val.String()
	case fmt.Stringer:
		return val.String()
	}
	return v
}
