package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gocrud/inject/core"
	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type resource struct {
	name string
	rec  *recorder
}

func (r *resource) Close() error {
	r.rec.add("close " + r.name)
	return nil
}

func newRuntime() *core.Runtime {
	rt := core.NewRuntime()
	rt.Logger = logging.NewNopLogger()
	return rt
}

func TestRuntime_BuildResolvesBindings(t *testing.T) {
	rec := &recorder{}
	rt := newRuntime()

	require.NoError(t, rt.Apply(core.WithBindings(di.Bindings{
		"db": func() *resource {
			rec.add("open db")
			return &resource{name: "db", rec: rec}
		},
	})))

	_, err := rt.Invoke(di.Fn(func() {}), nil)
	assert.ErrorIs(t, err, core.ErrNotBuilt)

	require.NoError(t, rt.Build())
	assert.Equal(t, []string{"open db"}, rec.list())

	got, err := rt.Invoke(di.Fn(func(db *resource) string { return db.name }, "db"), nil)
	require.NoError(t, err)
	assert.Equal(t, "db", got)

	assert.ErrorIs(t, rt.Bind("late", 1), core.ErrAlreadyBuilt)

	require.NoError(t, rt.Stop(context.Background()))
	assert.Equal(t, []string{"open db", "close db"}, rec.list())
}

func TestRuntime_DuplicateBinding(t *testing.T) {
	rt := newRuntime()
	require.NoError(t, rt.Bind("a", 1))
	assert.ErrorIs(t, rt.Bind("a", 2), core.ErrDuplicateBinding)
	assert.ErrorIs(t, rt.BindAll(di.Bindings{"a": 3, "b": 4}), core.ErrDuplicateBinding)
}

func TestRuntime_BuildFailureClosesResolved(t *testing.T) {
	rec := &recorder{}
	rt := newRuntime()
	require.NoError(t, rt.Apply(core.WithBindings(di.Bindings{
		"a": func() *resource { return &resource{name: "a", rec: rec} },
		"b": func() (*resource, error) { return nil, errors.New("boom") },
	})))

	err := rt.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Nil(t, rt.Injector())
	assert.Equal(t, []string{"close a"}, rec.list())
}

func TestRuntime_StopHooksRunBeforeClose(t *testing.T) {
	rec := &recorder{}
	rt := newRuntime()
	require.NoError(t, rt.Apply(core.WithBindings(di.Bindings{
		"res": &resource{name: "res", rec: rec},
	})))
	rt.Lifecycle.OnStart(func(context.Context) error { rec.add("start 1"); return nil })
	rt.Lifecycle.OnStart(func(context.Context) error { rec.add("start 2"); return nil })
	rt.Lifecycle.OnStop(func(context.Context) error { rec.add("stop 1"); return nil })
	rt.Lifecycle.OnStop(func(context.Context) error { rec.add("stop 2"); return errors.New("stop failed") })

	require.NoError(t, rt.Build())
	require.NoError(t, rt.Start(context.Background()))

	err := rt.Stop(context.Background())
	assert.ErrorContains(t, err, "stop failed")
	assert.Equal(t, []string{"start 1", "start 2", "stop 2", "stop 1", "close res"}, rec.list())
}

func TestRuntime_StartBeforeBuild(t *testing.T) {
	assert.ErrorIs(t, newRuntime().Start(context.Background()), core.ErrNotBuilt)
}

func TestWithLogger_BindsLogger(t *testing.T) {
	logger := logging.NewLoggingBuilder().Build().CreateLogger("test")
	rt := core.NewRuntime()
	require.NoError(t, rt.Apply(core.WithLogger(logger)))
	require.NoError(t, rt.Build())
	defer rt.Stop(context.Background())

	got, err := di.Resolve[logging.Logger](rt.Injector(), "logger")
	require.NoError(t, err)
	assert.Same(t, logger, got)
}

func TestWithStartup_InjectsContext(t *testing.T) {
	type key struct{}
	rec := &recorder{}
	rt := newRuntime()

	require.NoError(t, rt.Apply(
		core.WithBindings(di.Bindings{"name": "svc"}),
		core.WithStartup(di.Fn(func(ctx context.Context, name string) error {
			rec.add(name + ":" + ctx.Value(key{}).(string))
			return nil
		}, "ctx", "name")),
		core.WithStartup(func(in struct {
			Name string `di:"name"`
		}) {
			rec.add("second " + in.Name)
		}),
	))
	require.NoError(t, rt.Build())

	ctx := context.WithValue(context.Background(), key{}, "started")
	require.NoError(t, rt.Start(ctx))
	assert.Equal(t, []string{"svc:started", "second svc"}, rec.list())
	require.NoError(t, rt.Stop(context.Background()))
}

func TestWithStartup_PropagatesError(t *testing.T) {
	rt := newRuntime()
	require.NoError(t, rt.Apply(core.WithStartup(di.Fn(func(missing string) {}, "missing"))))
	require.NoError(t, rt.Build())

	err := rt.Start(context.Background())
	assert.ErrorIs(t, err, di.ErrMissingArgument)
}

type hosted struct {
	rec     *recorder
	started chan struct{}
}

func (h *hosted) Start(ctx context.Context) error {
	h.rec.add("hosted start")
	close(h.started)
	<-ctx.Done()
	return ctx.Err()
}

func (h *hosted) Stop(ctx context.Context) error {
	h.rec.add("hosted stop")
	return nil
}

func TestWithHostedService(t *testing.T) {
	rec := &recorder{}
	svc := &hosted{rec: rec, started: make(chan struct{})}
	rt := newRuntime()

	require.NoError(t, rt.Apply(core.WithHostedService("svc", func() *hosted { return svc })))
	require.NoError(t, rt.Build())
	require.NoError(t, rt.Start(context.Background()))

	select {
	case <-svc.started:
	case <-time.After(time.Second):
		t.Fatal("hosted service did not start")
	}

	require.NoError(t, rt.Stop(context.Background()))
	assert.Equal(t, []string{"hosted start", "hosted stop"}, rec.list())
}

func TestWithHostedService_NotAService(t *testing.T) {
	rt := newRuntime()
	require.NoError(t, rt.Apply(core.WithHostedService("svc", "not a service")))
	require.NoError(t, rt.Build())

	err := rt.Start(context.Background())
	assert.ErrorIs(t, err, di.ErrTypeMismatch)
}

func TestWithWorker(t *testing.T) {
	rec := &recorder{}
	rt := newRuntime()

	require.NoError(t, rt.Apply(core.WithWorker(func(ctx context.Context) error {
		rec.add("worker running")
		<-ctx.Done()
		rec.add("worker done")
		return ctx.Err()
	})))
	require.NoError(t, rt.Build())
	require.NoError(t, rt.Start(context.Background()))

	assert.Eventually(t, func() bool { return len(rec.list()) == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, rt.Stop(context.Background()))
	assert.Equal(t, []string{"worker running", "worker done"}, rec.list())
}

func TestWithWorker_FailureTriggersShutdown(t *testing.T) {
	rt := newRuntime()
	var reported error
	rt.ErrorHandler = func(err error) { reported = err }

	require.NoError(t, rt.Apply(core.WithWorker(func(ctx context.Context) error {
		return errors.New("crashed")
	})))
	require.NoError(t, rt.Build())
	require.NoError(t, rt.Start(context.Background()))

	select {
	case <-rt.Done():
	case <-time.After(time.Second):
		t.Fatal("runtime did not shut down")
	}
	require.NoError(t, rt.Stop(context.Background()))
	assert.ErrorContains(t, reported, "crashed")
}

func TestFeatures(t *testing.T) {
	rt := newRuntime()
	core.Set(&rt.Features, 42)

	v, ok := core.GetFeature[int](rt)
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok = core.GetFeature[string](rt)
	assert.False(t, ok)
}
