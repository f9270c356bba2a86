package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocrud/inject/logging"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB 命名的数据库连接。
// 嵌入 *gorm.DB，Close 关闭底层连接池，作用域关闭时自动调用。
type DB struct {
	*gorm.DB
	name string
}

// Name 返回实例名称
func (db *DB) Name() string {
	return db.name
}

// Close 关闭底层 sql.DB
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB for '%s': %w", db.name, err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database '%s': %w", db.name, err)
	}
	return nil
}

// Open 按配置打开数据库，配置连接池并执行自动迁移
func Open(opts *DatabaseOptions, logger logging.Logger) (*DB, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for '%s': %w", opts.Name, err)
	}

	dialector, err := opts.dialector()
	if err != nil {
		return nil, err
	}

	gormConfig := opts.GormConfig
	if gormConfig == nil {
		gormConfig = &gorm.Config{}
	}
	if gormConfig.Logger == nil && logger != nil {
		gormConfig.Logger = newGormLogger(logger, opts.LogLevel)
	}

	gdb, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database '%s': %w", opts.Name, err)
	}

	// 配置连接池
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB for '%s': %w", opts.Name, err)
	}
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(opts.MaxLifetime)

	db := &DB{DB: gdb, name: opts.Name}

	// 执行自动迁移
	if len(opts.AutoMigrate) > 0 {
		if err := gdb.AutoMigrate(opts.AutoMigrate...); err != nil {
			return nil, errors.Join(fmt.Errorf("auto migrate failed for '%s': %w", opts.Name, err), db.Close())
		}
	}

	return db, nil
}

// gormLogger 将 GORM 日志转发到 logging.Logger
type gormLogger struct {
	logger        logging.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

func newGormLogger(logger logging.Logger, level string) *gormLogger {
	return &gormLogger{
		logger:        logger.WithCategory("gorm"),
		level:         parseGormLevel(level),
		slowThreshold: 200 * time.Millisecond,
	}
}

func parseGormLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *gormLogger) Info(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		l.logger.Info(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		l.logger.Warn(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		l.logger.Error(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		l.logger.Error("sql failed",
			logging.Field{Key: "sql", Value: sql},
			logging.Field{Key: "rows", Value: rows},
			logging.Field{Key: "elapsed", Value: elapsed},
			logging.Field{Key: "error", Value: err})
	case elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.logger.Warn("slow sql",
			logging.Field{Key: "sql", Value: sql},
			logging.Field{Key: "rows", Value: rows},
			logging.Field{Key: "elapsed", Value: elapsed})
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.logger.Debug("sql",
			logging.Field{Key: "sql", Value: sql},
			logging.Field{Key: "rows", Value: rows},
			logging.Field{Key: "elapsed", Value: elapsed})
	}
}
