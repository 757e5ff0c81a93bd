package main

import (
	"context"
	"errors"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/memberkit/migrations"
	"github.com/dmitrymomot/memberkit/pkg/config"
	"github.com/dmitrymomot/memberkit/pkg/httpserver"
	"github.com/dmitrymomot/memberkit/pkg/logger"
	"github.com/dmitrymomot/memberkit/pkg/pg"
	"github.com/dmitrymomot/memberkit/svc/membership"
)

// withApp loads the configuration, builds the app and closes it after fn.
func withApp(c *cli.Context, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg.BaseConfig)
	a, err := newApp(c.Context, cfg, log)
	if err != nil {
		log.Error("failed to start", logger.Error(err))
		return err
	}
	defer a.Close()
	return fn(c.Context, a)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API and the scheduled passes",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-scheduler", Usage: "serve HTTP only"},
		},
		Action: func(c *cli.Context) error {
			return withApp(c, func(ctx context.Context, a *app) error {
				srv := httpserver.NewFromConfig(a.cfg.HTTP, httpserver.WithLogger(a.log))

				g, ctx := errgroup.WithContext(ctx)
				g.Go(func() error { return srv.Run(ctx, a.handler()) })
				if !c.Bool("no-scheduler") {
					s, err := a.scheduler()
					if err != nil {
						return err
					}
					g.Go(func() error {
						if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
							return err
						}
						return nil
					})
				}
				return g.Wait()
			})
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply database migrations",
		Action: func(c *cli.Context) error {
			var cfg dbConfig
			if err := config.Load(&cfg); err != nil {
				return err
			}
			log := newLogger(cfg.BaseConfig)
			pool, err := pg.Connect(c.Context, cfg.PG)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := pg.Migrate(c.Context, pool, migrations.FS, cfg.PG, log); err != nil {
				return err
			}
			log.Info("migrations applied")
			return nil
		},
	}
}

func sweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "run the daily status sweep once",
		Action: func(c *cli.Context) error {
			return withApp(c, func(ctx context.Context, a *app) error {
				return a.locked(ctx, taskSweep, func(ctx context.Context) error {
					report, err := a.sweep(ctx)
					if err != nil {
						return err
					}
					a.log.InfoContext(ctx, "sweep finished",
						logger.RunID(report.RunID),
						logger.Count("lapsed", report.Lapsed),
						logger.Count("expired", report.Expired),
						logger.Count("failed", report.Failed))
					return report.Errors
				})
			})
		},
	}
}

func notifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "notify",
		Usage: "send expiration reminders",
		Flags: []cli.Flag{
			&cli.Int64SliceFlag{Name: "uid", Usage: "remind only these accounts, ignoring the schedule"},
		},
		Action: func(c *cli.Context) error {
			return withApp(c, func(ctx context.Context, a *app) error {
				return a.locked(ctx, taskReminders, func(ctx context.Context) error {
					var (
						report membership.NotifyReport
						err    error
					)
					if uids := c.Int64Slice("uid"); len(uids) > 0 {
						report, err = a.throttle.NotifyMembers(ctx, uids)
					} else {
						report, err = a.remind(ctx)
					}
					if err != nil {
						return err
					}
					a.log.InfoContext(ctx, "reminders finished",
						logger.Count("due", report.Due),
						logger.Count("sent", report.Sent),
						logger.Count("skipped", report.Skipped),
						logger.Count("failed", report.Failed))
					return report.Errors
				})
			})
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "add plans from a YAML file; existing plans are left alone",
		Flags: []cli.Flag{
			&cli.PathFlag{Name: "file", Aliases: []string{"f"}, Required: true},
		},
		Action: func(c *cli.Context) error {
			return withApp(c, func(ctx context.Context, a *app) error {
				_, err := a.seed(ctx, a.engine.Catalog(), c.Path("file"))
				return err
			})
		},
	}
}

func importCommand() *cli.Command {
	expires := &cli.TimestampFlag{
		Name:   "expires",
		Usage:  "expiration given to imported rows (YYYY-MM-DD)",
		Layout: time.DateOnly,
	}
	plan := &cli.StringFlag{Name: "plan", Usage: "target plan id", Required: true}

	report := func(ctx context.Context, a *app, r membership.ImportReport) error {
		a.log.InfoContext(ctx, "import finished",
			logger.Count("imported", r.Imported),
			logger.Count("skipped", r.Skipped),
			logger.Count("failed", r.Failed))
		return r.Errors
	}
	expiration := func(c *cli.Context) time.Time {
		if t := c.Timestamp("expires"); t != nil {
			return membership.Date(*t)
		}
		return time.Time{}
	}

	return &cli.Command{
		Name:  "import",
		Usage: "bulk-create memberships",
		Subcommands: []*cli.Command{
			{
				Name:  "group",
				Usage: "import every account of a host group",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "group", Required: true},
					plan,
					expires,
				},
				Action: func(c *cli.Context) error {
					if c.Timestamp("expires") == nil {
						return errors.New("--expires is required for group imports")
					}
					return withApp(c, func(ctx context.Context, a *app) error {
						r, err := a.importer.ImportFromGroup(ctx, c.String("group"), c.String("plan"), expiration(c))
						if err != nil {
							return err
						}
						return report(ctx, a, r)
					})
				},
			},
			{
				Name:  "legacy",
				Usage: "import legacy subscriptions of a source plan",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "source", Usage: "legacy plan id", Required: true},
					plan,
					expires,
				},
				Action: func(c *cli.Context) error {
					return withApp(c, func(ctx context.Context, a *app) error {
						r, err := a.importer.ImportFromLegacySubscriptions(ctx, c.String("source"), c.String("plan"), expiration(c))
						if err != nil {
							return err
						}
						return report(ctx, a, r)
					})
				},
			},
		},
	}
}
