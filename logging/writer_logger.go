package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// entryWriter 接收格式化前的日志条目
type entryWriter interface {
	WriteLog(entry *LogEntry)
}

// syncEntryWriter 同步格式化并写入 io.Writer
type syncEntryWriter struct {
	writer    io.Writer
	formatter Formatter
	mu        sync.Mutex
}

func (w *syncEntryWriter) WriteLog(entry *LogEntry) {
	data, err := w.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: format error: %v\n", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.writer.Write(data)
	if len(data) > 0 && data[len(data)-1] != '\n' {
		w.writer.Write([]byte{'\n'})
	}
}

// ConsoleLoggerOptions 控制台日志选项
type ConsoleLoggerOptions struct {
	IncludeTimestamp bool
	TimestampFormat  string
	ColorOutput      bool
	Output           io.Writer
	// Formatter 为空时使用 TextFormatter
	Formatter Formatter
}

// WriterLoggerProvider 将日志写入 io.Writer 的提供者（控制台、文件共用）
type WriterLoggerProvider struct {
	out          entryWriter
	minimumLevel LogLevel
	mu           sync.RWMutex
}

// NewConsoleLoggerProvider 创建控制台日志提供者
func NewConsoleLoggerProvider(options ConsoleLoggerOptions) *WriterLoggerProvider {
	if options.Output == nil {
		options.Output = os.Stdout
	}
	formatter := options.Formatter
	if formatter == nil {
		text := NewTextFormatter()
		text.IncludeTimestamp = options.IncludeTimestamp
		if options.TimestampFormat != "" {
			text.TimestampFormat = options.TimestampFormat
		}
		text.ColorOutput = options.ColorOutput
		formatter = text
	}
	return NewWriterLoggerProvider(options.Output, formatter)
}

// NewWriterLoggerProvider 创建写入任意 io.Writer 的提供者
func NewWriterLoggerProvider(w io.Writer, formatter Formatter) *WriterLoggerProvider {
	return &WriterLoggerProvider{
		out:          &syncEntryWriter{writer: w, formatter: formatter},
		minimumLevel: LogLevelInfo,
	}
}

// NewAsyncLoggerProvider 创建基于 AsyncWriter 的提供者
// 调用方负责关闭 AsyncWriter（通常将其绑定到作用域中，随作用域关闭）
func NewAsyncLoggerProvider(w *AsyncWriter) *WriterLoggerProvider {
	return &WriterLoggerProvider{
		out:          w,
		minimumLevel: LogLevelInfo,
	}
}

func (p *WriterLoggerProvider) CreateLogger(category string) Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &writerLogger{
		out:          p.out,
		category:     category,
		minimumLevel: p.minimumLevel,
	}
}

func (p *WriterLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minimumLevel = level
}

// writerLogger 单个类别的日志实现
type writerLogger struct {
	out          entryWriter
	category     string
	minimumLevel LogLevel
	fields       []Field
}

func (l *writerLogger) Trace(msg string, fields ...Field) { l.Log(LogLevelTrace, msg, fields...) }
func (l *writerLogger) Debug(msg string, fields ...Field) { l.Log(LogLevelDebug, msg, fields...) }
func (l *writerLogger) Info(msg string, fields ...Field)  { l.Log(LogLevelInfo, msg, fields...) }
func (l *writerLogger) Warn(msg string, fields ...Field)  { l.Log(LogLevelWarn, msg, fields...) }
func (l *writerLogger) Error(msg string, fields ...Field) { l.Log(LogLevelError, msg, fields...) }

func (l *writerLogger) Fatal(msg string, fields ...Field) {
	l.Log(LogLevelFatal, msg, fields...)
	os.Exit(1)
}

func (l *writerLogger) Log(level LogLevel, msg string, fields ...Field) {
	if level < l.minimumLevel {
		return
	}
	l.out.WriteLog(&LogEntry{
		Time:     time.Now(),
		Level:    level,
		Category: l.category,
		Message:  msg,
		Fields:   mergeFields(l.fields, fields),
	})
}

func (l *writerLogger) WithFields(fields ...Field) Logger {
	return &writerLogger{
		out:          l.out,
		category:     l.category,
		minimumLevel: l.minimumLevel,
		fields:       mergeFields(l.fields, fields),
	}
}

func (l *writerLogger) WithCategory(category string) Logger {
	return &writerLogger{
		out:          l.out,
		category:     category,
		minimumLevel: l.minimumLevel,
		fields:       l.fields,
	}
}

// colorize 为日志级别添加颜色
func colorize(level LogLevel, text string) string {
	const (
		reset   = "\033[0m"
		gray    = "\033[90m"
		cyan    = "\033[36m"
		green   = "\033[32m"
		yellow  = "\033[33m"
		red     = "\033[31m"
		magenta = "\033[35m"
	)

	switch level {
	case LogLevelTrace:
		return gray + text + reset
	case LogLevelDebug:
		return cyan + text + reset
	case LogLevelInfo:
		return green + text + reset
	case LogLevelWarn:
		return yellow + text + reset
	case LogLevelError:
		return red + text + reset
	case LogLevelFatal:
		return magenta + text + reset
	default:
		return text
	}
}
