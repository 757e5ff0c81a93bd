// Package pg wires PostgreSQL through pgx/v5.
//
// Connect opens a *pgxpool.Pool from Config with retries, Migrate applies
// goose migrations from an embedded filesystem, WithTx wraps pgx.BeginFunc
// and Healthcheck exposes a ping probe for the HTTP server.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := pg.Migrate(ctx, pool, migrations.FS, cfg, log); err != nil {
//		return err
//	}
//
// The Is*Error helpers classify pgx and pgconn errors so that stores can map
// them onto their own sentinels.
package pg
