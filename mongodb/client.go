package mongodb

import (
	"context"
	"fmt"

	"github.com/gocrud/inject/logging"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Client 包装 *mongo.Client，记录绑定名称和默认数据库。
// 作用域关闭时通过 Close(ctx) 断开连接。
type Client struct {
	*mongo.Client
	name     string
	database string
}

// Connect 根据配置创建客户端。驱动按需建立连接，opts.Ping 为 true 时立即检测。
func Connect(opts *MongoOptions, logger logging.Logger) (*Client, error) {
	client, err := mongo.Connect(opts.clientOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client '%s': %w", opts.Name, err)
	}

	if opts.Ping {
		ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
		defer cancel()

		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("failed to connect to mongo '%s': %w", opts.Name, err)
		}
	}

	if logger != nil {
		logger.Info("mongo client created",
			logging.Field{Key: "name", Value: opts.Name},
			logging.Field{Key: "database", Value: opts.Database})
	}
	return &Client{Client: client, name: opts.Name, database: opts.Database}, nil
}

// Name 返回绑定名称
func (c *Client) Name() string {
	return c.name
}

// DB 返回默认数据库
func (c *Client) DB() *mongo.Database {
	return c.Database(c.database)
}

// Collection 返回默认数据库中的集合
func (c *Client) Collection(name string) *mongo.Collection {
	return c.DB().Collection(name)
}

// Close 断开连接
func (c *Client) Close(ctx context.Context) error {
	return c.Disconnect(ctx)
}
