package redis_test

import (
	"context"
	"os"
	"testing"

	"github.com/gocrud/inject/config"
	"github.com/gocrud/inject/core"
	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/logging"
	"github.com/gocrud/inject/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cacheService 依赖 Redis 客户端的服务
type cacheService struct {
	Cache *goredis.Client `di:"cache"`
	Queue *goredis.Client `di:"queue,?"`
}

func noPing(o *redis.RedisClientOptions) {
	o.Ping = false
}

func TestBindings_LazyClient(t *testing.T) {
	bindings, err := redis.Bindings(redis.WithClient("cache", noPing, func(o *redis.RedisClientOptions) {
		o.Addr = "127.0.0.1:6390"
		o.DB = 2
	}))
	require.NoError(t, err)
	bindings["service"] = di.TypeOf[*cacheService]()

	inj := di.New(bindings)
	svc, err := di.Resolve[*cacheService](inj, "service")
	require.NoError(t, err)
	require.NotNil(t, svc.Cache)
	assert.Nil(t, svc.Queue)
	assert.Equal(t, "127.0.0.1:6390", svc.Cache.Options().Addr)
	assert.Equal(t, 2, svc.Cache.Options().DB)

	// 同一作用域内只创建一次
	again := di.MustResolve[*goredis.Client](inj, "cache")
	assert.Same(t, svc.Cache, again)

	require.NoError(t, inj.Close())
	assert.ErrorIs(t, svc.Cache.Ping(context.Background()).Err(), goredis.ErrClosed)
}

func TestBuilder_Errors(t *testing.T) {
	_, err := redis.Bindings(
		redis.WithClient("cache", noPing),
		redis.WithClient("cache", noPing),
		redis.WithClient("bad", func(o *redis.RedisClientOptions) { o.Addr = "" }),
		redis.WithClient("neg", func(o *redis.RedisClientOptions) { o.DB = -1 }),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis client 'cache' already configured")
	assert.Contains(t, err.Error(), "redis address is required")
	assert.Contains(t, err.Error(), "must be non-negative")
}

func TestBuilder_AddFromConfig(t *testing.T) {
	cfg, err := config.NewConfigurationBuilder().AddInMemory(map[string]any{
		"redis": map[string]any{
			"cache": map[string]any{"addr": "cache:6379", "db": 1, "ping": false},
			"queue": map[string]any{"addr": "queue:6379", "dial_timeout": "2s", "ping": false},
		},
	}).Build()
	require.NoError(t, err)

	bindings, err := redis.NewBuilder().AddFromConfig(cfg, "redis").Bindings()
	require.NoError(t, err)
	assert.Len(t, bindings, 2)

	inj := di.New(bindings)
	defer inj.Close()

	queue := di.MustResolve[*goredis.Client](inj, "queue")
	assert.Equal(t, "queue:6379", queue.Options().Addr)
	assert.Equal(t, "2s", queue.Options().DialTimeout.String())
}

func TestNew_RegistersClients(t *testing.T) {
	rt := core.NewRuntime()
	rt.Logger = logging.NewNopLogger()
	require.NoError(t, rt.Apply(redis.New("", redis.WithClient("cache", noPing))))
	require.NoError(t, rt.Build())

	client := di.MustResolve[*goredis.Client](rt.Injector(), "cache")
	require.NoError(t, rt.Stop(context.Background()))
	assert.ErrorIs(t, client.Ping(context.Background()).Err(), goredis.ErrClosed)
}

func TestRedis_Integration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run.")
	}

	bindings, err := redis.Bindings(redis.WithClient("cache"))
	require.NoError(t, err)

	inj := di.New(bindings)
	defer inj.Close()

	_, err = inj.Call(di.Fn(func(cache *goredis.Client) error {
		ctx := context.Background()
		if err := cache.Set(ctx, "inject:test", "value", 0).Err(); err != nil {
			return err
		}
		val, err := cache.Get(ctx, "inject:test").Result()
		assert.Equal(t, "value", val)
		return err
	}, "cache"), nil)
	require.NoError(t, err)
}
