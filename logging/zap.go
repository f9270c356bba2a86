package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLoggerProvider 基于 zap 的日志提供者
type ZapLoggerProvider struct {
	logger       *zap.Logger
	minimumLevel LogLevel
	mu           sync.RWMutex
}

// NewZapLoggerProvider 创建 zap 日志提供者
func NewZapLoggerProvider(logger *zap.Logger) *ZapLoggerProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapLoggerProvider{
		logger:       logger,
		minimumLevel: LogLevelInfo,
	}
}

func (p *ZapLoggerProvider) CreateLogger(category string) Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &zapLogger{
		logger:       p.logger.Named(category),
		base:         p.logger,
		minimumLevel: p.minimumLevel,
	}
}

func (p *ZapLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minimumLevel = level
}

// Close 刷新 zap 缓冲
func (p *ZapLoggerProvider) Close() error {
	err := p.logger.Sync()
	// stdout/stderr 上 Sync 会返回 EINVAL，忽略
	if err != nil && isSyncNoise(err) {
		return nil
	}
	return err
}

type zapLogger struct {
	logger       *zap.Logger
	base         *zap.Logger
	minimumLevel LogLevel
}

func (l *zapLogger) Trace(msg string, fields ...Field) { l.Log(LogLevelTrace, msg, fields...) }
func (l *zapLogger) Debug(msg string, fields ...Field) { l.Log(LogLevelDebug, msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.Log(LogLevelInfo, msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.Log(LogLevelWarn, msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.Log(LogLevelError, msg, fields...) }

func (l *zapLogger) Fatal(msg string, fields ...Field) {
	l.Log(LogLevelFatal, msg, fields...)
	os.Exit(1)
}

func (l *zapLogger) Log(level LogLevel, msg string, fields ...Field) {
	if level < l.minimumLevel {
		return
	}
	if ce := l.logger.Check(zapLevel(level), msg); ce != nil {
		ce.Write(zapFields(fields)...)
	}
}

func (l *zapLogger) WithFields(fields ...Field) Logger {
	return &zapLogger{
		logger:       l.logger.With(zapFields(fields)...),
		base:         l.base,
		minimumLevel: l.minimumLevel,
	}
}

func (l *zapLogger) WithCategory(category string) Logger {
	return &zapLogger{
		logger:       l.base.Named(category),
		base:         l.base,
		minimumLevel: l.minimumLevel,
	}
}

func zapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LogLevelTrace, LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelInfo:
		return zapcore.InfoLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		// Fatal 由调用方退出进程，避免 zap 自身调用 os.Exit
		return zapcore.DPanicLevel
	}
}

func zapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			out = append(out, zap.NamedError(f.Key, err))
			continue
		}
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

func isSyncNoise(err error) bool {
	if pe, ok := err.(*os.PathError); ok {
		return pe.Path == "/dev/stdout" || pe.Path == "/dev/stderr"
	}
	return false
}
