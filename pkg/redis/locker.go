package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker is a single-instance lock built on SET NX with a TTL. It keeps two
// daemons from running the same scheduled pass.
type Locker struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

func NewLocker(client redis.UniversalClient, prefix string, log *slog.Logger) *Locker {
	if client == nil {
		panic("redis: client cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Locker{client: client, prefix: prefix, logger: log}
}

// Acquire tries to take key for ttl. ok is false when another holder has it.
// release is safe to call more than once.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	full := l.prefix + "lock:" + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %q: %w", key, err)
	}
	if !ok {
		return func() {}, false, nil
	}

	release := func() {
		// the caller's context may already be cancelled at this point
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		n, err := releaseScript.Run(ctx, l.client, []string{full}, token).Int()
		if err != nil {
			l.logger.Warn("failed to release lock", slog.String("key", full), slog.String("error", err.Error()))
			return
		}
		if n == 0 {
			l.logger.Warn("lock expired before release", slog.String("key", full), slog.String("error", ErrLockNotHeld.Error()))
		}
	}
	return release, true, nil
}
