// Package scheduler runs named periodic tasks on cron schedules.
//
// Schedules use the standard five-field cron syntax or descriptors such as
// "@daily" and "@every 1h". When a Locker is configured, each run first takes
// a named lock so only one process in a deployment executes a task at a time.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/memberkit/pkg/logger"
)

// Task is the unit of periodic work.
type Task func(ctx context.Context) error

// Locker guards a task run across processes.
// Acquire reports false without error when another holder owns the key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// TaskInfo is a snapshot of a registered task.
type TaskInfo struct {
	Name     string
	Schedule string
	Next     time.Time
	LastRun  time.Time
	LastErr  error
	Runs     int
}

type task struct {
	name    string
	spec    string
	fn      Task
	entryID cron.EntryID
	lastRun time.Time
	lastErr error
	runs    int
	running sync.Mutex
}

// Scheduler owns a cron instance and the tasks registered on it.
type Scheduler struct {
	cron    *cron.Cron
	tasks   map[string]*task
	mu      sync.RWMutex
	baseCtx context.Context
	logger  *slog.Logger
	locker  Locker
	lockTTL time.Duration
	running bool
}

// New creates a scheduler. Tasks are added with AddTask and executed once Run is called.
func New(opts ...Option) *Scheduler {
	options := &schedulerOptions{
		logger:   slog.Default(),
		location: time.UTC,
		lockTTL:  10 * time.Minute,
	}
	for _, opt := range opts {
		opt(options)
	}

	cl := cronLogger{log: options.logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(options.location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		tasks:   make(map[string]*task),
		baseCtx: context.Background(),
		logger:  options.logger.With(logger.Component("scheduler")),
		locker:  options.locker,
		lockTTL: options.lockTTL,
	}
}

// AddTask registers fn under name with a cron schedule.
func (s *Scheduler) AddTask(name, spec string, fn Task) error {
	if name == "" || fn == nil {
		return ErrInvalidTask
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[name]; exists {
		return ErrTaskAlreadyRegistered
	}

	t := &task{name: name, spec: spec, fn: fn}
	id, err := s.cron.AddFunc(spec, func() {
		s.mu.RLock()
		ctx := s.baseCtx
		s.mu.RUnlock()
		_ = s.execute(ctx, t)
	})
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, spec, err)
	}
	t.entryID = id
	s.tasks[name] = t

	s.logger.Info("registered periodic task",
		slog.String("task_name", name),
		slog.String("schedule", spec))

	return nil
}

// Run starts the cron loop and blocks until ctx is cancelled, then waits
// for in-flight tasks to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if len(s.tasks) == 0 {
		s.mu.Unlock()
		return ErrSchedulerNotConfigured
	}
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerRunning
	}
	s.running = true
	s.baseCtx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started")

	<-ctx.Done()

	<-s.cron.Stop().Done()
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.logger.Info("scheduler shutting down")
	return ctx.Err()
}

// RunNow executes a registered task immediately and returns its error.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	t, ok := s.tasks[name]
	s.mu.RUnlock()
	if !ok {
		return ErrTaskNotFound
	}
	return s.execute(ctx, t)
}

// ListTasks returns registered tasks sorted by name.
func (s *Scheduler) ListTasks() []TaskInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, TaskInfo{
			Name:     t.name,
			Schedule: t.spec,
			Next:     s.cron.Entry(t.entryID).Next,
			LastRun:  t.lastRun,
			LastErr:  t.lastErr,
			Runs:     t.runs,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) execute(ctx context.Context, t *task) error {
	if !t.running.TryLock() {
		s.logger.WarnContext(ctx, "task still running, skipping", slog.String("task_name", t.name))
		return ErrTaskRunning
	}
	defer t.running.Unlock()

	if s.locker != nil {
		release, ok, err := s.locker.Acquire(ctx, "scheduler:"+t.name, s.lockTTL)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to acquire task lock",
				slog.String("task_name", t.name), logger.Error(err))
			return fmt.Errorf("acquire lock for %s: %w", t.name, err)
		}
		if !ok {
			s.logger.DebugContext(ctx, "task locked by another process", slog.String("task_name", t.name))
			return ErrTaskLocked
		}
		defer release()
	}

	ctx = logger.WithRunID(ctx, uuid.NewString())
	start := time.Now()
	err := t.fn(ctx)

	s.mu.Lock()
	t.lastRun = start
	t.lastErr = err
	t.runs++
	s.mu.Unlock()

	if err != nil {
		s.logger.ErrorContext(ctx, "periodic task failed",
			slog.String("task_name", t.name),
			logger.Duration(time.Since(start)),
			logger.Error(err))
		return err
	}
	s.logger.InfoContext(ctx, "periodic task completed",
		slog.String("task_name", t.name),
		logger.Duration(time.Since(start)))
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append([]any{logger.Error(err)}, keysAndValues...)...)
}
