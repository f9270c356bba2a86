package di

import (
	"context"
	"errors"
	"runtime"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder 记录 Close 的调用顺序，清理函数在其他 goroutine 中运行
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(v string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, v)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

func (r *recorder) closer(v string) *closer {
	return &closer{value: v, rec: r}
}

// factory 返回创建 closer 的工厂
func (r *recorder) factory(v string) func() *closer {
	return func() *closer { return r.closer(v) }
}

type closer struct {
	value string
	rec   *recorder
}

func (c *closer) Close() {
	c.rec.add(c.value)
}

type typedCloser struct {
	Rec *recorder `di:"rec"`
}

func (c *typedCloser) Close() error {
	c.Rec.add("Default")
	return nil
}

type failingCloser struct {
	err error
	rec *recorder
}

func (c *failingCloser) Close() error {
	c.rec.add(c.err.Error())
	return c.err
}

type asyncCloser struct {
	value string
	rec   *recorder
	delay time.Duration
}

func (c *asyncCloser) Close() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		time.Sleep(c.delay)
		c.rec.add(c.value)
		close(done)
	}()
	return done
}

type stuckCloser struct{}

func (stuckCloser) Close() <-chan struct{} {
	return make(chan struct{})
}

type contextCloser struct {
	rec *recorder
}

func (c *contextCloser) Close(ctx context.Context) error {
	c.rec.add("ctx")
	return ctx.Err()
}

type stopper struct {
	rec *recorder
}

// Close 模拟 cron.Stop：返回在后台任务结束时完成的 context
func (s *stopper) Close() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		s.rec.add("stopped")
		cancel()
	}()
	return ctx
}

func TestClose_NothingByDefault(t *testing.T) {
	inj := New(nil)
	assert.NoError(t, inj.Close())
}

func TestClose_InitialValue(t *testing.T) {
	rec := &recorder{}
	inj := New(Bindings{"a": rec.closer("A"), "b": rec.factory("B")})

	require.NoError(t, inj.Close())
	assert.Equal(t, []string{"A"}, rec.list())
}

func TestClose_ResolvedValueInReverseOrder(t *testing.T) {
	rec := &recorder{}
	inj := New(Bindings{"a": rec.closer("A"), "b": rec.factory("B")})

	_, err := inj.Get("b")
	require.NoError(t, err)

	require.NoError(t, inj.Close())
	assert.Equal(t, []string{"B", "A"}, rec.list())
}

func TestClose_DependenciesReleasedLast(t *testing.T) {
	rec := &recorder{}
	inj := New(Bindings{
		"a": Fn(func(b *closer) *closer { return rec.closer("A") }, "b"),
		"b": rec.factory("B"),
	})

	_, err := inj.Get("a")
	require.NoError(t, err)

	require.NoError(t, inj.Close())
	assert.Equal(t, []string{"B", "A"}, rec.list())
}

func TestClose_PropagatesToChildren(t *testing.T) {
	rec := &recorder{}
	root := New(Bindings{"a": rec.factory("A")})
	sub := root.Sub(Bindings{"b": rec.factory("B")})

	_, err := sub.Get("b")
	require.NoError(t, err)
	_, err = root.Get("a")
	require.NoError(t, err)

	require.NoError(t, root.Close())
	assert.Equal(t, []string{"B", "A"}, rec.list())

	_, err = sub.Get("b")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClose_LimitedToScope(t *testing.T) {
	rec := &recorder{}
	root := New(Bindings{"a": rec.factory("A")})
	sub := root.Sub(Bindings{"b": rec.factory("B")})

	_, err := sub.Get("b")
	require.NoError(t, err)
	_, err = root.Get("a")
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	assert.Equal(t, []string{"B"}, rec.list())

	// 父作用域不受影响
	_, err = root.Get("a")
	assert.NoError(t, err)
}

func TestClose_OnlyOnce(t *testing.T) {
	rec := &recorder{}
	root := New(Bindings{"a": rec.factory("A")})
	sub := root.Sub(Bindings{"b": rec.factory("B")})

	_, err := sub.Get("b")
	require.NoError(t, err)
	_, err = root.Get("a")
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, root.Close())
	require.NoError(t, root.Close())
	require.NoError(t, sub.Close())
	assert.Equal(t, []string{"B", "A"}, rec.list())
}

func TestClose_TypeBindingIsNotAResource(t *testing.T) {
	rec := &recorder{}
	inj := New(Bindings{"rec": rec, "a": TypeOf[*typedCloser]()})

	require.NoError(t, inj.Close())
	assert.Empty(t, rec.list())
}

func TestClose_ConstructedInstanceIsReleased(t *testing.T) {
	rec := &recorder{}
	inj := New(Bindings{"rec": rec, "a": TypeOf[*typedCloser]()})

	_, err := inj.Get("a")
	require.NoError(t, err)

	require.NoError(t, inj.Close())
	assert.Equal(t, []string{"Default"}, rec.list())
}

func TestClose_CollectsAllErrors(t *testing.T) {
	rec := &recorder{}
	errA := errors.New("A failed")
	errB := errors.New("B failed")
	inj := New(Bindings{
		"a": &failingCloser{err: errA, rec: rec},
		"b": &failingCloser{err: errB, rec: rec},
	})

	err := inj.Close()
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, []string{"B failed", "A failed"}, rec.list())
}

func TestClose_WaitsForAsyncRelease(t *testing.T) {
	rec := &recorder{}
	inj := New(Bindings{
		"a": rec.closer("A"),
		"b": &asyncCloser{value: "B", rec: rec, delay: 20 * time.Millisecond},
		"c": &stopper{rec: rec},
	})

	require.NoError(t, inj.Close())
	assert.Equal(t, []string{"stopped", "B", "A"}, rec.list())
}

func TestCloseContext_BoundsAsyncRelease(t *testing.T) {
	rec := &recorder{}
	inj := New(Bindings{"a": rec.closer("A"), "b": stuckCloser{}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := inj.CloseContext(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	// 超时不会中断剩余的释放
	assert.Equal(t, []string{"A"}, rec.list())
}

func TestCloseContext_PassesContext(t *testing.T) {
	rec := &recorder{}
	inj := New(Bindings{"c": &contextCloser{rec: rec}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := inj.CloseContext(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"ctx"}, rec.list())
}

func TestClose_ResolutionAfterClose(t *testing.T) {
	inj := New(Bindings{"a": "A", "f": Fn(triple, "a")})
	f, err := inj.Wrap(Fn(triple, "a"))
	require.NoError(t, err)

	require.NoError(t, inj.Close())

	_, err = inj.Get("a")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = f.Call(nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSub_OfClosedScopeIsClosed(t *testing.T) {
	rec := &recorder{}
	root := New(nil)
	require.NoError(t, root.Close())

	sub := root.Sub(Bindings{"a": rec.closer("A")})
	assert.Equal(t, 0, root.ChildCount())
	assert.Equal(t, []string{"A"}, rec.list())

	_, err := sub.Get("a")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestScoped(t *testing.T) {
	rec := &recorder{}
	root := New(Bindings{"a": "A"})
	defer root.Close()

	var seen string
	err := root.Scoped(Bindings{"job": rec.factory("job")}, func(s *Injector) error {
		assert.Equal(t, 1, root.ChildCount())
		v, err := Invoke[string](s, Fn(func(a string, job *closer) string { return a + job.value }, "a", "job"), nil)
		seen = v
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "Ajob", seen)
	assert.Equal(t, []string{"job"}, rec.list())
	assert.Equal(t, 0, root.ChildCount())

	boom := errors.New("boom")
	err = root.Scoped(Bindings{"job": rec.factory("again")}, func(s *Injector) error {
		_, err := s.Get("job")
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"job", "again"}, rec.list())
}

func TestChildCount_ExplicitClose(t *testing.T) {
	root := New(nil)
	a := root.Sub(nil)
	b := root.Sub(nil)
	c := root.Sub(nil)
	assert.Equal(t, 3, root.ChildCount())

	require.NoError(t, b.Close())
	assert.Equal(t, 2, root.ChildCount())

	require.NoError(t, c.Close())
	assert.Equal(t, 1, root.ChildCount())

	require.NoError(t, a.Close())
	assert.Equal(t, 0, root.ChildCount())

	// 孙作用域不计入
	child := root.Sub(nil)
	grandchild := child.Sub(nil)
	assert.Equal(t, 1, root.ChildCount())
	assert.Equal(t, 1, child.ChildCount())
	runtime.KeepAlive(grandchild)
}

func TestChildCount_UnreachableChild(t *testing.T) {
	rec := &recorder{}
	root := New(Bindings{"a": rec.factory("A")})
	defer root.Close()

	func() {
		sub := root.Sub(Bindings{"b": rec.factory("B")})
		_, err := sub.Get("b")
		require.NoError(t, err)
		_, err = root.Get("a")
		require.NoError(t, err)
		assert.Equal(t, 1, root.ChildCount())
	}()

	require.Eventually(t, func() bool {
		runtime.GC()
		return root.ChildCount() == 0
	}, 5*time.Second, 10*time.Millisecond)

	// 清理函数异步关闭子作用域
	require.Eventually(t, func() bool {
		return slices.Equal(rec.list(), []string{"B"})
	}, 5*time.Second, 10*time.Millisecond)
}

func TestClose_WhenUnreachable(t *testing.T) {
	rec := &recorder{}

	func() {
		inj := New(Bindings{"a": rec.factory("A")})
		_, err := inj.Get("a")
		require.NoError(t, err)
	}()

	require.Eventually(t, func() bool {
		runtime.GC()
		return slices.Equal(rec.list(), []string{"A"})
	}, 5*time.Second, 10*time.Millisecond)
}

func TestChild_KeepsParentAlive(t *testing.T) {
	rec := &recorder{}

	sub := func() *Injector {
		root := New(Bindings{"a": rec.factory("A")})
		return root.Sub(nil)
	}()

	runtime.GC()
	runtime.GC()

	got, err := sub.Get("a")
	require.NoError(t, err)
	assert.IsType(t, &closer{}, got)
	assert.Empty(t, rec.list())
	runtime.KeepAlive(sub)
}

func TestClose_FailedResolutionNotReleased(t *testing.T) {
	rec := &recorder{}
	inj := New(Bindings{
		"a": Fn(func(b *closer) (*closer, error) { return nil, errors.New("boom") }, "b"),
		"b": rec.factory("B"),
		"c": rec.factory("C"),
	})

	_, err := inj.Get("a")
	require.Error(t, err)
	_, err = inj.Get("c")
	require.NoError(t, err)

	require.NoError(t, inj.Close())
	assert.Equal(t, []string{"C", "B"}, rec.list())
}

func TestClose_ChildNoLongerDelegates(t *testing.T) {
	root := New(Bindings{"a": "A"})
	sub := root.Sub(Bindings{"b": "B"})

	require.NoError(t, sub.Close())

	_, err := sub.Get("a")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = sub.Get("b")
	assert.ErrorIs(t, err, ErrClosed)

	got, err := root.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "A", got)
}

func TestWrap_KeepsScopeAlive(t *testing.T) {
	rec := &recorder{}

	call := func() *Bound {
		inj := New(Bindings{"test": "A", "res": rec.factory("R")})
		_, err := inj.Get("res")
		require.NoError(t, err)
		call, err := inj.Wrap(Fn(triple, "test"))
		require.NoError(t, err)
		return call
	}()

	for range 5 {
		runtime.GC()
	}

	for range 2 {
		got, err := call.Call(nil)
		require.NoError(t, err)
		assert.Equal(t, "AAA", got)
	}
	assert.Empty(t, rec.list())
	runtime.KeepAlive(call)
}
