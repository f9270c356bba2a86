package config

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"gopkg.in/yaml.v3"
)

// EtcdOptions etcd 配置选项
type EtcdOptions struct {
	Endpoints   []string      // etcd 服务器地址列表
	Username    string        // 用户名（可选）
	Password    string        // 密码（可选）
	Prefix      string        // 键前缀（可选）
	Timeout     time.Duration // 读取超时时间（默认 5 秒）
	DialTimeout time.Duration // 拨号超时时间（默认 5 秒）

	// Client 已有的客户端，设置后不再新建连接，也不会关闭它
	Client *clientv3.Client
}

// EtcdSource etcd 配置源。
// 键 /app/server/port 在前缀 /app 下映射为 server:port，
// 值按 JSON、YAML、字符串的顺序解析。
type EtcdSource struct {
	Options EtcdOptions
}

func (s *EtcdSource) Name() string {
	return fmt.Sprintf("Etcd(%v)", s.Options.Endpoints)
}

func (s *EtcdSource) Load() (map[string]any, error) {
	cli := s.Options.Client
	if cli == nil {
		var err error
		cli, err = clientv3.New(clientv3.Config{
			Endpoints:   s.Options.Endpoints,
			Username:    s.Options.Username,
			Password:    s.Options.Password,
			DialTimeout: s.Options.DialTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create etcd client: %w", err)
		}
		defer cli.Close()
	}

	timeout := s.Options.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	prefix := s.Options.Prefix
	if prefix == "" {
		prefix = "/"
	}

	resp, err := cli.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to get config from etcd: %w", err)
	}

	result := make(map[string]any)
	for _, kv := range resp.Kvs {
		key := etcdKey(string(kv.Key), s.Options.Prefix)
		if key == "" {
			continue
		}
		setNestedValue(result, key, parseEtcdValue(kv.Value))
	}
	return result, nil
}

// etcdKey 去掉前缀和首尾斜杠，并把 / 转换为 :
func etcdKey(key, prefix string) string {
	key = strings.TrimPrefix(key, prefix)
	key = strings.Trim(key, "/")
	return strings.ReplaceAll(key, "/", ":")
}

// parseEtcdValue 依次尝试 JSON、YAML，都失败时作为字符串
func parseEtcdValue(raw []byte) any {
	var jsonValue any
	if err := json.Unmarshal(raw, &jsonValue); err == nil {
		return jsonValue
	}

	var yamlValue any
	if err := yaml.Unmarshal(raw, &yamlValue); err == nil && yamlValue != nil {
		if _, isString := yamlValue.(string); !isString {
			return yamlValue
		}
	}
	return string(raw)
}
