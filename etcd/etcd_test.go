package etcd_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/gocrud/inject/config"
	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/etcd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// mockService 依赖 etcd 客户端的服务
type mockService struct {
	Master *clientv3.Client `di:"master"`
	Slave  *clientv3.Client `di:"slave,?"`
}

func TestBindings_InjectsNamedClient(t *testing.T) {
	bindings, err := etcd.Bindings(etcd.WithClient("master", func(o *etcd.EtcdClientOptions) {
		o.Endpoints = []string{"localhost:2379"}
	}))
	require.NoError(t, err)
	bindings["service"] = di.TypeOf[*mockService]()

	inj := di.New(bindings)
	defer inj.Close()

	svc, err := di.Resolve[*mockService](inj, "service")
	require.NoError(t, err)
	assert.NotNil(t, svc.Master)
	assert.Nil(t, svc.Slave)
	assert.Equal(t, []string{"localhost:2379"}, svc.Master.Endpoints())
}

func TestBuilder_Errors(t *testing.T) {
	_, err := etcd.Bindings(
		etcd.WithClient("master"),
		etcd.WithClient("master"),
		etcd.WithClient("empty", func(o *etcd.EtcdClientOptions) { o.Endpoints = nil }),
		etcd.WithClient("timeout", func(o *etcd.EtcdClientOptions) { o.DialTimeout = 0 }),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "etcd client 'master' already configured")
	assert.Contains(t, err.Error(), "etcd endpoints are required")
	assert.Contains(t, err.Error(), "etcd dial timeout must be positive")
}

func TestBuilder_AddFromConfig(t *testing.T) {
	cfg, err := config.NewConfigurationBuilder().AddInMemory(map[string]any{
		"etcd": map[string]any{
			"master": map[string]any{
				"endpoints":    []any{"etcd-0:2379", "etcd-1:2379"},
				"dial_timeout": "3s",
			},
		},
	}).Build()
	require.NoError(t, err)

	builder := etcd.NewBuilder().AddFromConfig(cfg, "etcd")
	bindings, err := builder.Bindings()
	require.NoError(t, err)
	assert.Contains(t, bindings, "master")
}

func TestEtcd_Integration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run.")
	}

	bindings, err := etcd.Bindings(etcd.WithClient("master"))
	require.NoError(t, err)

	inj := di.New(bindings)
	defer inj.Close()

	client := di.MustResolve[*clientv3.Client](inj, "master")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = client.Put(ctx, "/inject/test", "value")
	require.NoError(t, err)
	resp, err := client.Get(ctx, "/inject/test")
	require.NoError(t, err)
	require.Len(t, resp.Kvs, 1)
	assert.Equal(t, "value", string(resp.Kvs[0].Value))
}
