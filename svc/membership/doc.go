// Package membership implements the membership lifecycle: plans and their fee
// schedules, expiration date math, the status state machine, family groups that
// share one lifecycle, the expiration reminder budget and the transaction ledger.
//
// Persistence and host-system integration are reached through small interfaces
// (PlanStore, MemberStore, GroupManager, Dispatcher, ...). MemoryStore backs
// tests and local runs; the pgstore subpackage provides the Postgres
// implementation.
//
// Dates are calendar dates: time.Time values at UTC midnight. Use Date to
// normalise any timestamp before handing it to the package.
//
// Typical wiring:
//
//	store := membership.NewMemoryStore()
//	catalog := membership.NewCatalog(store)
//	engine := membership.NewEngine(cfg, catalog, store, store,
//		membership.WithGroupManager(groups),
//		membership.WithLogger(log),
//	)
//	report, err := engine.RunDailySweep(ctx, membership.Date(time.Now()))
package membership
