package logging

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// TextFormatter 文本格式化器
type TextFormatter struct {
	IncludeTimestamp bool
	TimestampFormat  string
	ColorOutput      bool
}

// NewTextFormatter 创建文本格式化器
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{
		IncludeTimestamp: true,
		TimestampFormat:  "2006-01-02 15:04:05",
	}
}

// Format 格式化日志，输出形如：
//
//	2006-01-02 15:04:05 INFO [category] message {key=value, name="a b"}
func (f *TextFormatter) Format(entry *LogEntry) ([]byte, error) {
	var buf bytes.Buffer

	if f.IncludeTimestamp {
		buf.WriteString(entry.Time.Format(f.TimestampFormat))
		buf.WriteByte(' ')
	}

	if f.ColorOutput {
		buf.WriteString(colorize(entry.Level, entry.Level.String()))
	} else {
		buf.WriteString(entry.Level.String())
	}
	if entry.Category != "" {
		fmt.Fprintf(&buf, " [%s]", entry.Category)
	}
	buf.WriteByte(' ')
	buf.WriteString(entry.Message)

	for i, field := range entry.Fields {
		if i == 0 {
			buf.WriteString(" {")
		} else {
			buf.WriteString(", ")
		}
		buf.WriteString(field.Key)
		buf.WriteByte('=')
		buf.WriteString(textValue(fieldValue(field.Value)))
	}
	if len(entry.Fields) > 0 {
		buf.WriteByte('}')
	}

	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// textValue 含空白、引号或分隔符的值加引号
func textValue(v any) string {
	s := fmt.Sprint(v)
	if _, ok := v.(string); ok && (s == "" || strings.ContainsAny(s, " \t\r\n\",{}=")) {
		return strconv.Quote(s)
	}
	return s
}
