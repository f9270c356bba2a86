package etcd

import (
	"errors"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdClientOptions etcd 客户端配置选项
type EtcdClientOptions struct {
	Name               string        `yaml:"-"`                      // 绑定名称
	Endpoints          []string      `yaml:"endpoints"`              // etcd 服务器地址列表
	DialTimeout        time.Duration `yaml:"dial_timeout"`           // 连接超时时间
	Username           string        `yaml:"username"`               // 用户名（可选）
	Password           string        `yaml:"password"`               // 密码（可选）
	AutoSyncInterval   time.Duration `yaml:"auto_sync_interval"`     // 自动同步间隔（可选）
	MaxCallSendMsgSize int           `yaml:"max_call_send_msg_size"` // 最大发送消息大小（可选）
	MaxCallRecvMsgSize int           `yaml:"max_call_recv_msg_size"` // 最大接收消息大小（可选）
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string) *EtcdClientOptions {
	return &EtcdClientOptions{
		Name:        name,
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: 5 * time.Second,
	}
}

// Validate 验证配置
func (o *EtcdClientOptions) Validate() error {
	if o.Name == "" {
		return errors.New("etcd client name is required")
	}
	if len(o.Endpoints) == 0 {
		return errors.New("etcd endpoints are required")
	}
	if o.DialTimeout <= 0 {
		return errors.New("etcd dial timeout must be positive")
	}
	return nil
}

func (o *EtcdClientOptions) clientConfig() clientv3.Config {
	cfg := clientv3.Config{
		Endpoints:   o.Endpoints,
		DialTimeout: o.DialTimeout,
	}

	// 设置认证信息
	if o.Username != "" {
		cfg.Username = o.Username
		cfg.Password = o.Password
	}
	if o.AutoSyncInterval > 0 {
		cfg.AutoSyncInterval = o.AutoSyncInterval
	}
	if o.MaxCallSendMsgSize > 0 {
		cfg.MaxCallSendMsgSize = o.MaxCallSendMsgSize
	}
	if o.MaxCallRecvMsgSize > 0 {
		cfg.MaxCallRecvMsgSize = o.MaxCallRecvMsgSize
	}
	return cfg
}
