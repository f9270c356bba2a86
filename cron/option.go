package cron

import (
	"fmt"
	"time"
)

// Options 调度器配置
type Options struct {
	Location         string `yaml:"location"`           // 时区，默认 UTC
	EnableSeconds    bool   `yaml:"enable_seconds"`     // 启用秒级精度（默认分钟级）
	EnableCronLogger bool   `yaml:"enable_cron_logger"` // 启用 cron 库的内部调度日志
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions() *Options {
	return &Options{Location: "UTC"}
}

// Validate 验证配置
func (o *Options) Validate() error {
	_, err := o.location()
	return err
}

func (o *Options) location() (*time.Location, error) {
	if o.Location == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(o.Location)
	if err != nil {
		return nil, fmt.Errorf("cron: invalid location %q: %w", o.Location, err)
	}
	return loc, nil
}
