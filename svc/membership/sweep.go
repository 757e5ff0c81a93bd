package membership

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/dmitrymomot/memberkit/pkg/logger"
)

// SweepReport summarises one daily sweep.
type SweepReport struct {
	RunID     string    `json:"run_id"`
	Date      time.Time `json:"date"`
	Scanned   int       `json:"scanned"`
	Lapsed    int       `json:"lapsed"`
	Expired   int       `json:"expired"`
	Unchanged int       `json:"unchanged"`
	Failed    int       `json:"failed"`
	Errors    error     `json:"-"`
}

// RunDailySweep re-derives the status of every non-dropped row whose
// expiration is before today and moves it forward when due. Each family is
// processed once from the first row seen. Per-row failures are logged and
// collected in the report; the sweep never stops early and can be re-run.
func (e *Engine) RunDailySweep(ctx context.Context, today time.Time) (SweepReport, error) {
	today = Date(today)
	report := SweepReport{RunID: uuid.NewString(), Date: today}
	ctx = logger.WithRunID(ctx, report.RunID)
	start := time.Now()

	candidates, err := e.members.ListMembers(ctx, MemberFilter{
		ExpiresBefore:   today,
		ExcludeStatuses: []Status{StatusDropped},
	})
	if err != nil {
		return report, persistenceError("list sweep candidates", err)
	}
	report.Scanned = len(candidates)

	var errs *multierror.Error
	visited := make(map[string]bool)
	plans := make(map[string]*Plan)

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			errs = multierror.Append(errs, err)
			break
		}

		plan, ok := plans[c.PlanID]
		if !ok {
			plan = e.planOrNil(ctx, c.PlanID)
			plans[c.PlanID] = plan
		}
		if plan != nil && plan.IsFamily && c.GUID != "" {
			if visited[c.GUID] {
				continue
			}
			visited[c.GUID] = true
		}

		ev, move := sweepEvent(c.Status, e.calc.Status(c.Expires, today))
		if !move {
			report.Unchanged++
			continue
		}
		to, err := e.machine.Fire(c, ev, today)
		if err != nil {
			report.Failed++
			errs = multierror.Append(errs, err)
			continue
		}

		c.Status = to
		rows, err := e.family.Propagate(ctx, c, plan)
		if err != nil {
			report.Failed++
			errs = multierror.Append(errs, err)
			e.logger.ErrorContext(ctx, "sweep update failed",
				logger.UID(c.UID), logger.GUID(c.GUID), logger.Event(string(ev)), logger.Error(err))
			continue
		}

		if to == StatusArrears {
			report.Lapsed += len(rows)
		} else {
			report.Expired += len(rows)
		}
		e.applyEffects(ctx, ev, to, plan, rows)
		e.logger.DebugContext(ctx, "sweep moved membership",
			logger.UID(c.UID), logger.Status(to), logger.Count("rows", len(rows)))
	}

	report.Errors = errs.ErrorOrNil()
	e.logger.InfoContext(ctx, "daily sweep finished",
		logger.Date("date", today),
		logger.Count("scanned", report.Scanned),
		logger.Count("lapsed", report.Lapsed),
		logger.Count("expired", report.Expired),
		logger.Count("failed", report.Failed),
		logger.Duration(time.Since(start)))
	return report, nil
}
