package scheduler

import (
	"log/slog"
	"time"
)

type schedulerOptions struct {
	logger   *slog.Logger
	location *time.Location
	locker   Locker
	lockTTL  time.Duration
}

// Option configures a Scheduler.
type Option func(*schedulerOptions)

func WithLogger(l *slog.Logger) Option {
	return func(o *schedulerOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithLocation sets the time zone schedules are evaluated in. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(o *schedulerOptions) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithLocker enables cross-process locking. ttl bounds how long a crashed
// holder can block other processes.
func WithLocker(l Locker, ttl time.Duration) Option {
	return func(o *schedulerOptions) {
		o.locker = l
		if ttl > 0 {
			o.lockTTL = ttl
		}
	}
}
