package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/memberkit/core"
	"github.com/dmitrymomot/memberkit/migrations"
	module "github.com/dmitrymomot/memberkit/modules/membership"
	"github.com/dmitrymomot/memberkit/pkg/email"
	"github.com/dmitrymomot/memberkit/pkg/httpserver"
	"github.com/dmitrymomot/memberkit/pkg/logger"
	"github.com/dmitrymomot/memberkit/pkg/pg"
	"github.com/dmitrymomot/memberkit/pkg/redis"
	"github.com/dmitrymomot/memberkit/pkg/scheduler"
	"github.com/dmitrymomot/memberkit/svc/application"
	"github.com/dmitrymomot/memberkit/svc/host"
	"github.com/dmitrymomot/memberkit/svc/membership"
	"github.com/dmitrymomot/memberkit/svc/membership/pgstore"
	"github.com/dmitrymomot/memberkit/svc/plancache"
	"github.com/dmitrymomot/memberkit/svc/reminder"
)

const (
	taskSweep     = "daily-sweep"
	taskReminders = "expiry-reminders"
)

// hostCMS is everything memberkit needs from the host account system.
type hostCMS interface {
	membership.GroupManager
	membership.GroupDirectory
	membership.AccountDisabler
	reminder.Directory
}

type app struct {
	cfg    Config
	log    *slog.Logger
	pool   *pgxpool.Pool
	redis  *goredis.Client
	locker *redis.Locker

	store        *pgstore.Store
	clock        membership.Clock
	engine       *membership.Engine
	positions    *membership.Positions
	throttle     *membership.Throttle
	importer     *membership.Importer
	applications application.Provider
}

func newLogger(cfg BaseConfig) *slog.Logger {
	log := logger.New(
		logger.WithEnvironment(cfg.Env, cfg.ServiceName),
		logger.WithContextExtractors(logger.RunIDExtractor()),
	)
	logger.SetAsDefault(log)
	return log
}

// newApp connects to the stores and wires every service. Close releases
// the connections.
func newApp(ctx context.Context, cfg Config, log *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	loc, err := cfg.location()
	if err != nil {
		return nil, err
	}
	a.clock = membership.SystemClock{Location: loc}

	a.pool, err = pg.Connect(ctx, cfg.PG)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := pg.Migrate(ctx, a.pool, migrations.FS, cfg.PG, log); err != nil {
			return nil, err
		}
	}

	var cache membership.PlanCache = plancache.NewLRU(cfg.Cache.PlanSize, cfg.Cache.PlanTTL)
	if cfg.Cache.RedisEnabled {
		a.redis, err = redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.locker = redis.NewLocker(a.redis, cfg.Redis.KeyPrefix, log)
		cache = plancache.NewRedis(a.redis, cfg.Redis.KeyPrefix, cfg.Cache.PlanTTL, log)
	}

	var cms hostCMS = host.NewPG(a.pool)
	if cfg.HostBackend == "nop" {
		cms = host.NewNop(log)
	}

	a.applications, err = application.New(cfg.Application, a.pool)
	if err != nil {
		return nil, err
	}

	renderOpts, err := cfg.Reminder.rendererOptions()
	if err != nil {
		return nil, err
	}
	renderer, err := reminder.NewTemplateRenderer(cfg.Membership.Currency, renderOpts...)
	if err != nil {
		return nil, err
	}
	sender, err := email.New(cfg.Email)
	if err != nil {
		return nil, err
	}
	outbox := reminder.NewPGOutbox(a.pool)
	dispatcher := reminder.NewDispatcher(cms, renderer, sender, outbox,
		reminder.WithRateLimit(cfg.Reminder.RatePerSecond, cfg.Reminder.Burst),
		reminder.WithBreaker(cfg.Reminder.BreakerFailures, cfg.Reminder.BreakerCooldown),
		reminder.WithClock(a.clock),
		reminder.WithRenewURL(cfg.Reminder.RenewURL),
		reminder.WithDispatcherLogger(log),
	)

	a.store = pgstore.New(a.pool)
	catalog := membership.NewCatalog(a.store,
		membership.WithPlanCache(cache),
		membership.WithCatalogLogger(log),
	)
	if cfg.PlansFile != "" {
		if _, err := a.seed(ctx, catalog, cfg.PlansFile); err != nil {
			return nil, err
		}
	}

	a.positions = membership.NewPositions(a.store, cms, log)
	a.engine = membership.NewEngine(cfg.Membership, catalog, a.store, a.store,
		membership.WithClock(a.clock),
		membership.WithGroupManager(cms),
		membership.WithAccountDisabler(cms),
		membership.WithReminderClearer(outbox),
		membership.WithPositionReleaser(a.positions),
		membership.WithApplicationChecker(a.applications),
		membership.WithLogger(log),
	)
	a.throttle = membership.NewThrottle(cfg.Membership, catalog, a.store, dispatcher, log)
	a.importer = membership.NewImporter(a.engine, cms, a.store, log)
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("failed to close redis client", logger.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func (a *app) seed(ctx context.Context, catalog *membership.Catalog, path string) (int, error) {
	plans, err := membership.LoadPlansFile(path)
	if err != nil {
		return 0, err
	}
	added, err := catalog.Seed(ctx, plans)
	if err != nil {
		return added, err
	}
	a.log.InfoContext(ctx, "plan seed applied", slog.String("file", path), logger.Count("added", added))
	return added, nil
}

func (a *app) sweep(ctx context.Context) (membership.SweepReport, error) {
	return a.engine.RunDailySweep(ctx, a.clock.Today())
}

func (a *app) remind(ctx context.Context) (membership.NotifyReport, error) {
	return a.throttle.Run(ctx, a.clock.Today())
}

// locked runs fn under the scheduler lock of task so manual and scheduled
// runs never overlap across processes.
func (a *app) locked(ctx context.Context, task string, fn func(context.Context) error) error {
	if a.locker == nil {
		return fn(ctx)
	}
	release, ok, err := a.locker.Acquire(ctx, "scheduler:"+task, a.cfg.Schedule.LockTTL)
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrConflict.WithMessage(task + " is already running")
	}
	defer release()
	return fn(ctx)
}

func (a *app) scheduler() (*scheduler.Scheduler, error) {
	loc, err := a.cfg.location()
	if err != nil {
		return nil, err
	}
	opts := []scheduler.Option{scheduler.WithLogger(a.log), scheduler.WithLocation(loc)}
	if a.locker != nil {
		opts = append(opts, scheduler.WithLocker(a.locker, a.cfg.Schedule.LockTTL))
	}
	s := scheduler.New(opts...)

	if err := s.AddTask(taskSweep, a.cfg.Schedule.Sweep, func(ctx context.Context) error {
		report, err := a.sweep(ctx)
		if err != nil {
			return err
		}
		return report.Errors
	}); err != nil {
		return nil, err
	}
	if err := s.AddTask(taskReminders, a.cfg.Schedule.Reminders, func(ctx context.Context) error {
		report, err := a.remind(ctx)
		if err != nil {
			return err
		}
		return report.Errors
	}); err != nil {
		return nil, err
	}
	return s, nil
}

func (a *app) handler() http.Handler {
	checks := []httpserver.Check{{Name: "postgres", Fn: pg.Healthcheck(a.pool)}}
	if a.redis != nil {
		checks = append(checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(a.redis)})
	}
	router := httpserver.NewRouter(a.log, checks...)

	opts := []module.Option{
		module.WithThrottle(a.throttle),
		module.WithImporter(a.importer),
		module.WithPositions(a.positions),
		module.WithLogger(a.log),
		module.WithSweepRunner(func(r *http.Request) (membership.SweepReport, error) {
			var report membership.SweepReport
			err := a.locked(r.Context(), taskSweep, func(ctx context.Context) error {
				var err error
				report, err = a.sweep(ctx)
				return err
			})
			return report, err
		}),
	}
	if _, ok := a.applications.(application.None); !ok {
		opts = append(opts, module.WithApplications(a.applications))
	}
	if a.cfg.Stripe.Enabled() {
		opts = append(opts, module.WithStripe(module.NewStripeWebhook(a.cfg.Stripe, a.engine, a.log)))
	}
	router.Mount("/api", module.New(a.engine, opts...).Router())
	return router
}
