// Package httpserver runs memberkit's HTTP surface.
//
// Server wraps http.Server with functional options, start and stop hooks and
// graceful shutdown when the Run context ends. NewRouter builds the chi
// router every module is mounted on, with request ids, panic recovery,
// request logging and the health probes already in place.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	r := httpserver.NewRouter(log, httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)})
//	r.Mount("/api", membershipRouter)
//	err := srv.Run(ctx, r)
package httpserver
