package redis

import (
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisClientOptions Redis 客户端配置选项
type RedisClientOptions struct {
	Name         string        `yaml:"-"`              // 绑定名称
	Addr         string        `yaml:"addr"`           // Redis 服务器地址 (host:port)
	Username     string        `yaml:"username"`       // 用户名（可选）
	Password     string        `yaml:"password"`       // 密码（可选）
	DB           int           `yaml:"db"`             // 数据库编号
	DialTimeout  time.Duration `yaml:"dial_timeout"`   // 连接超时时间
	ReadTimeout  time.Duration `yaml:"read_timeout"`   // 读取超时时间
	WriteTimeout time.Duration `yaml:"write_timeout"`  // 写入超时时间
	PoolSize     int           `yaml:"pool_size"`      // 连接池大小
	MinIdleConns int           `yaml:"min_idle_conns"` // 最小空闲连接数
	MaxRetries   int           `yaml:"max_retries"`    // 最大重试次数
	Ping         bool          `yaml:"ping"`           // 创建时检测连接
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string) *RedisClientOptions {
	return &RedisClientOptions{
		Name:         name,
		Addr:         "localhost:6379",
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
		Ping:         true,
	}
}

// Validate 验证配置
func (o *RedisClientOptions) Validate() error {
	if o.Name == "" {
		return errors.New("redis client name is required")
	}
	if o.Addr == "" {
		return errors.New("redis address is required")
	}
	if o.DB < 0 {
		return errors.New("redis database number must be non-negative")
	}
	if o.DialTimeout <= 0 {
		return errors.New("redis dial timeout must be positive")
	}
	return nil
}

func (o *RedisClientOptions) clientOptions() *goredis.Options {
	return &goredis.Options{
		Addr:         o.Addr,
		Username:     o.Username,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  o.DialTimeout,
		ReadTimeout:  o.ReadTimeout,
		WriteTimeout: o.WriteTimeout,
		PoolSize:     o.PoolSize,
		MinIdleConns: o.MinIdleConns,
		MaxRetries:   o.MaxRetries,
	}
}
