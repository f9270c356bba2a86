package di

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"sort"
	"sync"

	"github.com/gocrud/inject/logging"
)

// state 作用域的全部可变数据。
// state 从不引用自己的句柄，句柄不可达时 runtime.AddCleanup 才能关闭它。
type state struct {
	mu         sync.Mutex
	parent     *state
	children   []childRef
	bindings   map[string]*slot
	closeables []*releaser
	closed     bool
	logger     logging.Logger
}

// Injector 按名称注入的作用域。
//
// 绑定在首次访问时解析并缓存，工厂的参数按参数名从同一作用域（以及父作用域）解析。
// 解析得到的资源如果有 Close 方法会被登记，Close 时按登记的逆序释放。
//
// Injector 只是句柄：它不可达时作用域会被自动关闭。这只是兜底，
// 调用方应当显式调用 Close，或者使用 Scoped。
// 绑定的值如果引用了句柄本身，句柄永远不会变得不可达。
type Injector struct {
	s *state
	// 子作用域存活时父作用域也存活
	parent *Injector
}

// New 创建作用域。
//
//	inj := di.New(di.Bindings{
//		"dsn": "file::memory:",
//		"db":  di.Fn(openDB, "dsn"),
//	})
//	defer inj.Close()
func New(bindings Bindings, opts ...Option) *Injector {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger
	if logger == nil {
		if o.parent != nil {
			logger = o.parent.s.logger
		} else {
			logger = logging.NewNopLogger()
		}
	}

	s := &state{
		bindings: make(map[string]*slot, len(bindings)),
		logger:   logger,
	}

	// 初始资源按名称顺序登记
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		b := bindings[name]
		if vb, ok := b.(valueBinding); ok {
			s.bindings[name] = &slot{state: slotResolved, value: vb.v}
			s.register(name, vb.v)
			continue
		}
		if f, ok := asFactory(b); ok {
			s.bindings[name] = &slot{state: slotUnresolved, factory: f}
			continue
		}
		s.bindings[name] = &slot{state: slotResolved, value: b}
		s.register(name, b)
	}

	inj := &Injector{s: s}
	if o.parent != nil {
		inj.parent = o.parent
		s.parent = o.parent.s
		if !s.parent.attach(inj) {
			// 父作用域已关闭，子作用域直接关闭
			_ = s.close(context.Background())
		}
	}

	runtime.AddCleanup(inj, (*state).collect, s)
	return inj
}

// register 登记初始值上的释放操作
func (s *state) register(name string, v any) {
	if rel, ok := releaserOf(name, v); ok {
		s.closeables = append(s.closeables, &rel)
	}
}

func (s *state) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Sub 创建子作用域。子作用域的绑定只对子作用域可见，并遮蔽父作用域的同名绑定。
func (i *Injector) Sub(bindings Bindings) *Injector {
	return New(bindings, WithParent(i))
}

// Get 解析名称对应的值。本作用域没有该名称时委托给父作用域。
// 结果会被缓存，同一作用域内重复解析返回同一个值。
func (i *Injector) Get(name string) (any, error) {
	defer runtime.KeepAlive(i)
	return i.s.resolve(name)
}

// Has 判断名称在本作用域或父作用域中是否有绑定
func (i *Injector) Has(name string) bool {
	defer runtime.KeepAlive(i)
	return i.s.has(name)
}

// Names 返回本作用域的绑定名称（已排序）
func (i *Injector) Names() []string {
	s := i.s
	s.mu.Lock()
	names := make([]string, 0, len(s.bindings))
	for name := range s.bindings {
		names = append(names, name)
	}
	s.mu.Unlock()

	sort.Strings(names)
	return names
}

// ResolveAll 按名称顺序解析本作用域的全部绑定，返回所有失败。
func (i *Injector) ResolveAll() error {
	var errs []error
	for _, name := range i.Names() {
		if _, err := i.Get(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Wrap 把 fn 绑定到本作用域，返回可重复调用的 *Bound。
// fn 可以是 *Func、*Bound 或可推断参数名的函数。
func (i *Injector) Wrap(fn any) (*Bound, error) {
	var f *Func
	switch v := fn.(type) {
	case *Func:
		f = v
	case *Bound:
		f = v.fn
	default:
		if rv := reflect.ValueOf(fn); rv.Kind() != reflect.Func {
			return nil, fmt.Errorf("%w: cannot wrap %T", ErrInvalidBinding, fn)
		}
		f = Fn(fn)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &Bound{fn: f, scope: i.s, handle: i}, nil
}

// Call 调用 fn，缺失的参数从本作用域注入，args 中的值优先。
func (i *Injector) Call(fn any, args Args) (any, error) {
	defer runtime.KeepAlive(i)
	b, err := i.Wrap(fn)
	if err != nil {
		return nil, err
	}
	return b.Call(args)
}

// Create 同 Call，用于创建实例时更易读
func (i *Injector) Create(fn any, args Args) (any, error) {
	return i.Call(fn, args)
}

// Bound 绑定到作用域的可注入函数，作用域关闭后调用返回 ErrClosed。
// Wrap 返回的 Bound 持有句柄，作用域至少存活到 Bound 不再可达；
// 作为解析结果缓存在槽里的 Bound 只引用 state。
type Bound struct {
	fn     *Func
	scope  *state
	handle *Injector
}

// Call 调用函数，args 中没有的参数从作用域注入
func (b *Bound) Call(args Args) (any, error) {
	defer runtime.KeepAlive(b.handle)
	if b.scope.isClosed() {
		return nil, ErrClosed
	}
	return b.scope.invoke(b.fn, args)
}

// Names 返回声明的参数名
func (b *Bound) Names() []string {
	return b.fn.Names()
}
