package cron

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/logging"
	"github.com/robfig/cron/v3"
)

// ErrJobNotFound 任务不存在
var ErrJobNotFound = errors.New("cron: job not found")

// job 已注册的任务
type job struct {
	id  cron.EntryID
	run func() error
}

// Scheduler 定时任务调度器，包装 *cron.Cron。
// 每次执行任务时创建一个子作用域，绑定 "job"（任务名称），执行完毕后关闭。
type Scheduler struct {
	cron   *cron.Cron
	logger logging.Logger

	mu   sync.Mutex
	jobs map[string]job
}

func newScheduler(opts *Options, logger logging.Logger) (*Scheduler, error) {
	loc, err := opts.location()
	if err != nil {
		return nil, err
	}

	cronOpts := []cron.Option{
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(newCronLogger(logger))),
	}
	// 只在启用时添加 cron 库的日志记录器
	if opts.EnableCronLogger {
		cronOpts = append(cronOpts, cron.WithLogger(newCronLogger(logger)))
	}
	if opts.EnableSeconds {
		cronOpts = append(cronOpts, cron.WithSeconds())
	}

	return &Scheduler{
		cron:   cron.New(cronOpts...),
		logger: logger,
		jobs:   make(map[string]job),
	}, nil
}

// Schedule 注册定时任务。handler 是可注入函数（*di.Func 或可推断参数名的函数），
// 每次执行时在 scope 的子作用域中调用。
//
//	sched.Schedule(root, "0 */5 * * * *", "sync", func(in struct {
//		Repo *Repo  `di:"repo"`
//		Job  string `di:"job"`
//	}) error {
//		return in.Repo.Sync()
//	})
func (s *Scheduler) Schedule(scope *di.Injector, spec, name string, handler any) error {
	fn, ok := handler.(*di.Func)
	if !ok {
		fn = di.Fn(handler)
	}
	if err := fn.Err(); err != nil {
		return fmt.Errorf("cron: invalid handler for job '%s': %w", name, err)
	}

	run := func() error {
		return scope.Scoped(di.Bindings{"job": name}, func(child *di.Injector) error {
			_, err := child.Call(fn, nil)
			return err
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("cron: job '%s' already scheduled", name)
	}

	id, err := s.cron.AddFunc(spec, func() { s.execute(name, run) })
	if err != nil {
		return fmt.Errorf("failed to add cron job '%s': %w", name, err)
	}
	s.jobs[name] = job{id: id, run: run}

	s.logger.Info("cron job registered",
		logging.Field{Key: "job", Value: name},
		logging.Field{Key: "spec", Value: spec})
	return nil
}

func (s *Scheduler) execute(name string, run func() error) {
	s.logger.Debug("cron job started", logging.Field{Key: "job", Value: name})
	if err := run(); err != nil {
		s.logger.Error("cron job failed",
			logging.Field{Key: "job", Value: name},
			logging.Field{Key: "error", Value: err})
		return
	}
	s.logger.Debug("cron job completed", logging.Field{Key: "job", Value: name})
}

// Run 立即执行一次任务，返回任务的错误
func (s *Scheduler) Run(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return j.run()
}

// Remove 移除定时任务
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j, exists := s.jobs[name]; exists {
		s.cron.Remove(j.id)
		delete(s.jobs, name)
		s.logger.Info("cron job removed", logging.Field{Key: "job", Value: name})
	}
}

// Jobs 返回已注册的任务名称
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start 启动调度，实现 core.HostedService
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("cron scheduler starting", logging.Field{Key: "jobs", Value: len(s.Jobs())})
	s.cron.Start()
	return nil
}

// Stop 停止调度并等待正在执行的任务完成或 ctx 超时
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.Close().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 停止调度，返回的 context 在正在执行的任务全部结束后完成。
// 作用域关闭时会等待它。
func (s *Scheduler) Close() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// cronLogger 适配器：将框架日志接口适配到 cron 的日志接口
type cronLogger struct {
	logger logging.Logger
}

func newCronLogger(logger logging.Logger) cron.Logger {
	return &cronLogger{logger: logger}
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, convertToFields(keysAndValues)...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	fields := convertToFields(keysAndValues)
	fields = append(fields, logging.Field{Key: "error", Value: err})
	l.logger.Error(msg, fields...)
}

func convertToFields(keysAndValues []any) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.Field{Key: fmt.Sprint(keysAndValues[i]), Value: keysAndValues[i+1]})
	}
	return fields
}
