package membership

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/dmitrymomot/memberkit/pkg/logger"
)

// Throttle sends expiration reminders against each row's remaining budget.
// A row with n reminders left is due once its expiration is within
// (n-1)·interval days, so reminders are spread interval days apart and the
// last one lands on the expiration date.
type Throttle struct {
	cfg        Config
	catalog    *Catalog
	members    MemberStore
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewThrottle creates a reminder throttle. Panics if a dependency is nil.
func NewThrottle(cfg Config, catalog *Catalog, members MemberStore, dispatcher Dispatcher, log *slog.Logger) *Throttle {
	if catalog == nil || members == nil || dispatcher == nil {
		panic("membership: throttle dependencies cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Throttle{
		cfg:        cfg,
		catalog:    catalog,
		members:    members,
		dispatcher: dispatcher,
		logger:     log.With(logger.Component("throttle")),
	}
}

// NotifyReport summarises a reminder run.
type NotifyReport struct {
	Due     int   `json:"due"`
	Sent    int   `json:"sent"`
	Skipped int   `json:"skipped"`
	Failed  int   `json:"failed"`
	Errors  error `json:"-"`
}

// Window returns the latest expiration that makes a row with notified
// reminders left due on asOf.
func (t *Throttle) Window(notified int, asOf time.Time) time.Time {
	return Date(asOf).AddDate(0, 0, (notified-1)*t.cfg.NotifyIntervalDays)
}

// SelectDue returns active rows with budget left, on plans with reminders
// enabled, whose expiration falls inside their window.
func (t *Throttle) SelectDue(ctx context.Context, asOf time.Time) ([]*Membership, error) {
	rows, err := t.members.ListMembers(ctx, MemberFilter{
		Statuses:    []Status{StatusActive},
		HasNotified: true,
	})
	if err != nil {
		return nil, persistenceError("list reminder candidates", err)
	}

	plans := make(map[string]*Plan)
	var due []*Membership
	for _, m := range rows {
		plan, err := t.plan(ctx, plans, m.PlanID)
		if err != nil || !plan.NotificationsEnabled {
			continue
		}
		if m.Expires.After(t.Window(m.Notified, asOf)) {
			continue
		}
		due = append(due, m)
	}
	return due, nil
}

// Run dispatches reminders to every due row.
func (t *Throttle) Run(ctx context.Context, asOf time.Time) (NotifyReport, error) {
	due, err := t.SelectDue(ctx, asOf)
	if err != nil {
		return NotifyReport{}, err
	}
	return t.dispatch(ctx, due), nil
}

// NotifyMembers sends a reminder to each listed account regardless of status
// and window. Accounts without budget or on plans with reminders disabled
// are skipped. Repeated uids are reminded once.
func (t *Throttle) NotifyMembers(ctx context.Context, uids []int64) (NotifyReport, error) {
	uids = slices.Compact(slices.Sorted(slices.Values(uids)))
	if len(uids) == 0 {
		return NotifyReport{}, nil
	}
	rows, err := t.members.ListMembers(ctx, MemberFilter{UIDs: uids, HasNotified: true})
	if err != nil {
		return NotifyReport{}, persistenceError("list reminder targets", err)
	}

	plans := make(map[string]*Plan)
	targets := rows[:0]
	for _, m := range rows {
		plan, err := t.plan(ctx, plans, m.PlanID)
		if err != nil || !plan.NotificationsEnabled {
			continue
		}
		targets = append(targets, m)
	}
	report := t.dispatch(ctx, targets)
	report.Skipped += len(uids) - len(targets)
	return report, nil
}

// dispatch sends reminders and spends one unit of budget per family. A
// family is charged once when at least one of its accounts was reached.
func (t *Throttle) dispatch(ctx context.Context, due []*Membership) NotifyReport {
	report := NotifyReport{Due: len(due)}
	var errs *multierror.Error
	plans := make(map[string]*Plan)
	charged := make(map[string]bool)

	for _, m := range due {
		plan, err := t.plan(ctx, plans, m.PlanID)
		if err != nil {
			report.Failed++
			errs = multierror.Append(errs, err)
			continue
		}

		key := m.GUID
		if !plan.IsFamily || key == "" {
			key = "uid:" + strconv.FormatInt(m.UID, 10)
		}

		if err := t.dispatcher.Dispatch(ctx, m, plan); err != nil {
			report.Failed++
			errs = multierror.Append(errs, err)
			t.logger.WarnContext(ctx, "reminder dispatch failed", logger.UID(m.UID), logger.Error(err))
			continue
		}
		report.Sent++

		if charged[key] {
			continue
		}
		charged[key] = true

		uids := []int64{m.UID}
		if plan.IsFamily && m.GUID != "" {
			uids = t.familyUIDs(ctx, m)
		}
		if err := t.members.DecrementNotified(ctx, uids...); err != nil {
			errs = multierror.Append(errs, persistenceError("decrement notified", err))
			t.logger.ErrorContext(ctx, "failed to spend reminder budget", logger.UID(m.UID), logger.Error(err))
		}
	}

	report.Errors = errs.ErrorOrNil()
	t.logger.InfoContext(ctx, "reminder run finished",
		logger.Count("due", report.Due), logger.Count("sent", report.Sent), logger.Count("failed", report.Failed))
	return report
}

func (t *Throttle) familyUIDs(ctx context.Context, m *Membership) []int64 {
	rows, err := t.members.ListFamily(ctx, m.GUID)
	if err != nil || len(rows) == 0 {
		return []int64{m.UID}
	}
	uids := make([]int64, 0, len(rows))
	for _, r := range rows {
		uids = append(uids, r.UID)
	}
	return uids
}

func (t *Throttle) plan(ctx context.Context, cache map[string]*Plan, id string) (*Plan, error) {
	if p, ok := cache[id]; ok {
		return p, nil
	}
	p, err := t.catalog.Get(ctx, id)
	if err != nil {
		t.logger.WarnContext(ctx, "plan lookup failed", logger.PlanID(id), logger.Error(err))
		return nil, err
	}
	cache[id] = p
	return p, nil
}
