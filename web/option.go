package web

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// Options Web 主机配置
type Options struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"` // 0 表示随机端口
	Mode         string        `yaml:"mode"` // gin 模式：release, debug, test
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions() *Options {
	return &Options{
		Port:        8080,
		Mode:        gin.ReleaseMode,
		ReadTimeout: 30 * time.Second,
	}
}

// Validate 验证配置
func (o *Options) Validate() error {
	if o.Port < 0 || o.Port > 65535 {
		return fmt.Errorf("web: invalid port %d", o.Port)
	}
	switch o.Mode {
	case gin.ReleaseMode, gin.DebugMode, gin.TestMode:
	default:
		return errors.New("web: mode must be one of release, debug, test")
	}
	return nil
}

func (o *Options) addr() string {
	return fmt.Sprintf("%s:%d", o.Host, o.Port)
}
