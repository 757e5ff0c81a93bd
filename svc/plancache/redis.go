package plancache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/memberkit/pkg/logger"
	"github.com/dmitrymomot/memberkit/svc/membership"
)

// Redis stores plans as JSON under prefix+"plan:"+id. Cache failures are
// logged and reported as misses so the catalog falls back to the store.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedis(client redis.UniversalClient, prefix string, ttl time.Duration, log *slog.Logger) *Redis {
	if client == nil {
		panic("plancache: redis client cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl, logger: log.With(logger.Component("plancache"))}
}

var _ membership.PlanCache = (*Redis)(nil)

func (r *Redis) key(id string) string {
	return r.prefix + "plan:" + id
}

func (r *Redis) Get(ctx context.Context, id string) (*membership.Plan, bool) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.WarnContext(ctx, "plan cache read failed", logger.PlanID(id), logger.Error(err))
		}
		return nil, false
	}
	var p membership.Plan
	if err := json.Unmarshal(data, &p); err != nil {
		r.logger.WarnContext(ctx, "plan cache entry is corrupt", logger.PlanID(id), logger.Error(err))
		r.Delete(ctx, id)
		return nil, false
	}
	return &p, true
}

func (r *Redis) Set(ctx context.Context, plan *membership.Plan) {
	if plan == nil {
		return
	}
	data, err := json.Marshal(plan)
	if err != nil {
		r.logger.WarnContext(ctx, "plan cache encode failed", logger.PlanID(plan.ID), logger.Error(err))
		return
	}
	if err := r.client.Set(ctx, r.key(plan.ID), data, r.ttl).Err(); err != nil {
		r.logger.WarnContext(ctx, "plan cache write failed", logger.PlanID(plan.ID), logger.Error(err))
	}
}

func (r *Redis) Delete(ctx context.Context, id string) {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		r.logger.WarnContext(ctx, "plan cache delete failed", logger.PlanID(id), logger.Error(err))
	}
}
