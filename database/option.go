package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DatabaseOptions 数据库配置选项
type DatabaseOptions struct {
	Name         string         `yaml:"-"`
	Driver       string         `yaml:"driver"` // 未设置 Dialector 时按名称选择驱动，目前支持 sqlite
	DSN          string         `yaml:"dsn"`
	Dialector    gorm.Dialector `yaml:"-"`
	GormConfig   *gorm.Config   `yaml:"-"`
	MaxIdleConns int            `yaml:"max_idle_conns"`
	MaxOpenConns int            `yaml:"max_open_conns"`
	MaxLifetime  time.Duration  `yaml:"max_lifetime"`
	LogLevel     string         `yaml:"log_level"` // SQL 日志级别：silent, error, warn, info
	AutoMigrate  []any          `yaml:"-"`         // 需要自动迁移的模型
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string) *DatabaseOptions {
	return &DatabaseOptions{
		Name:         name,
		Driver:       "sqlite",
		GormConfig:   &gorm.Config{},
		MaxIdleConns: 10,
		MaxOpenConns: 100,
		MaxLifetime:  time.Hour,
		LogLevel:     "warn",
		AutoMigrate:  make([]any, 0),
	}
}

// Validate 验证配置
func (o *DatabaseOptions) Validate() error {
	if o.Name == "" {
		return errors.New("database name is required")
	}
	if o.Dialector == nil && o.DSN == "" {
		return errors.New("database dsn or dialector is required")
	}
	if o.MaxOpenConns < 0 || o.MaxIdleConns < 0 {
		return errors.New("database pool sizes must be non-negative")
	}
	_, err := o.dialector()
	return err
}

// dialector 返回 GORM 驱动
func (o *DatabaseOptions) dialector() (gorm.Dialector, error) {
	if o.Dialector != nil {
		return o.Dialector, nil
	}
	switch o.Driver {
	case "sqlite", "sqlite3", "":
		return sqlite.Open(o.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", o.Driver)
	}
}
