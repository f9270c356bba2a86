package mongodb

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/connstring"
)

// MongoOptions MongoDB 客户端配置选项
type MongoOptions struct {
	Name        string        `yaml:"-"`
	Uri         string        `yaml:"uri"`
	Database    string        `yaml:"database"` // 默认数据库，为空时取 URI 中的库名
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	MaxPoolSize uint64        `yaml:"max_pool_size"`
	MinPoolSize uint64        `yaml:"min_pool_size"`
	Timeout     time.Duration `yaml:"timeout"`
	Ping        bool          `yaml:"ping"` // 创建时检测连接
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string, uri string) *MongoOptions {
	return &MongoOptions{
		Name:        name,
		Uri:         uri,
		MaxPoolSize: 100,
		MinPoolSize: 5,
		Timeout:     10 * time.Second,
		Ping:        true,
	}
}

// Validate 验证配置，并在未指定 Database 时从 URI 中补全
func (o *MongoOptions) Validate() error {
	if o.Name == "" {
		return errors.New("mongo client name is required")
	}
	if o.Uri == "" {
		return errors.New("mongo uri is required")
	}
	cs, err := connstring.ParseAndValidate(o.Uri)
	if err != nil {
		return fmt.Errorf("invalid mongo uri: %w", err)
	}
	if o.Database == "" {
		o.Database = cs.Database
	}
	if o.Timeout <= 0 {
		return errors.New("mongo timeout must be positive")
	}
	return nil
}

func (o *MongoOptions) clientOptions() *options.ClientOptions {
	clientOpts := options.Client().ApplyURI(o.Uri)
	if o.Username != "" || o.Password != "" {
		clientOpts.SetAuth(options.Credential{
			Username: o.Username,
			Password: o.Password,
		})
	}
	if o.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(o.MaxPoolSize)
	}
	if o.MinPoolSize > 0 {
		clientOpts.SetMinPoolSize(o.MinPoolSize)
	}
	clientOpts.SetConnectTimeout(o.Timeout)
	return clientOpts
}
