package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/inject/core"
	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/logging"
	"github.com/gocrud/inject/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// greeter 模拟依赖服务
type greeter struct {
	Prefix string `di:"prefix"`
}

// helloController 带依赖的控制器
type helloController struct {
	Greeter *greeter `di:"greeter"`
}

func (c *helloController) MountRoutes(router gin.IRouter) {
	router.GET("/hello/:name", web.Handle(di.Fn(func(ctx *gin.Context) map[string]string {
		return map[string]string{"message": c.Greeter.Prefix + ctx.Param("name")}
	}, "ctx")))
}

// tx 请求级资源
type tx struct {
	closed *[]string
	path   string
}

func (t *tx) Close() error {
	*t.closed = append(*t.closed, t.path)
	return nil
}

func serve(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func newRoot(t *testing.T) *di.Injector {
	t.Helper()
	root := di.New(di.Bindings{
		"prefix":  "hello, ",
		"greeter": di.TypeOf[*greeter](),
	})
	t.Cleanup(func() { _ = root.Close() })
	return root
}

func TestHost_Controllers(t *testing.T) {
	root := di.New(di.Bindings{
		"prefix":  "hello, ",
		"greeter": di.TypeOf[*greeter](),
		"hello":   di.TypeOf[*helloController](),
	})
	defer root.Close()

	host, err := web.NewBuilder().AddController("hello", nil).Build(root, nil)
	require.NoError(t, err)
	handler, err := host.Handler()
	require.NoError(t, err)

	w := serve(t, handler, "/hello/gopher")
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "hello, gopher", body["message"])
}

func TestHost_ControllerMustImplementInterface(t *testing.T) {
	root := newRoot(t)
	host, err := web.NewBuilder().AddController("greeter", nil).Build(root, nil)
	require.NoError(t, err)

	_, err = host.Handler()
	assert.ErrorIs(t, err, di.ErrTypeMismatch)
}

func TestMiddleware_RequestScope(t *testing.T) {
	root := newRoot(t)

	var closed []string
	builder := web.NewBuilder().
		AddScoped("tx", func(in struct {
			Request *http.Request `di:"request"`
		}) *tx {
			return &tx{closed: &closed, path: in.Request.URL.Path}
		}).
		Get("/a", web.Handle(func(in struct {
			Tx      *tx      `di:"tx"`
			Greeter *greeter `di:"greeter"`
		}) string {
			return in.Greeter.Prefix + in.Tx.path
		})).
		Get("/none", web.Handle(func() {}))

	host, err := builder.Build(root, logging.NewNopLogger())
	require.NoError(t, err)
	handler, err := host.Handler()
	require.NoError(t, err)

	w := serve(t, handler, "/a")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `"hello, /a"`, w.Body.String())

	w = serve(t, handler, "/none")
	assert.Equal(t, http.StatusNoContent, w.Code)

	// 请求结束后子作用域关闭，资源释放
	assert.Equal(t, []string{"/a"}, closed)
	assert.Equal(t, 0, root.ChildCount())
}

func TestHandle_Errors(t *testing.T) {
	root := newRoot(t)
	builder := web.NewBuilder().
		Get("/fail", web.Handle(func() (string, error) { return "", errors.New("boom") })).
		Get("/missing", web.Handle(di.Fn(func(v string) string { return v }, "absent")))

	host, err := builder.Build(root, nil)
	require.NoError(t, err)
	handler, err := host.Handler()
	require.NoError(t, err)

	w := serve(t, handler, "/fail")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"boom"}`, w.Body.String())

	w = serve(t, handler, "/missing")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "absent")
}

func TestHandle_WithoutScope(t *testing.T) {
	engine := gin.New()
	engine.GET("/", web.Handle(func() string { return "x" }))

	w := serve(t, engine, "/")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "request scope not found")
}

func TestBuilder_Errors(t *testing.T) {
	root := newRoot(t)
	_, err := web.NewBuilder().UsePort(-1).Build(root, nil)
	assert.ErrorContains(t, err, "invalid port")

	_, err = web.NewBuilder().AddScoped("request", "x").Build(root, nil)
	assert.ErrorContains(t, err, "scoped binding 'request' already defined")
}

func TestNew_ServesAndStops(t *testing.T) {
	rt := core.NewRuntime()
	rt.Logger = logging.NewNopLogger()

	require.NoError(t, rt.Apply(
		core.WithBindings(di.Bindings{
			"prefix":  "hi, ",
			"greeter": di.TypeOf[*greeter](),
		}),
		web.New("", web.WithPort(0), web.WithController("hello", di.TypeOf[*helloController]())),
	))
	require.NoError(t, rt.Build())
	require.NoError(t, rt.Start(context.Background()))

	host := di.MustResolve[*web.Host](rt.Injector(), web.BindingName)
	select {
	case <-host.Ready():
	case <-time.After(3 * time.Second):
		t.Fatal("web host did not start")
	}

	resp, err := http.Get("http://" + host.Address() + "/hello/go")
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"hi, go"}`, string(data))

	got, ok := core.GetFeature[*web.Host](rt)
	require.True(t, ok)
	assert.Same(t, host, got)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, rt.Stop(ctx))

	_, err = http.Get("http://" + host.Address() + "/hello/go")
	assert.Error(t, err)
}
