package membership

import (
	"net/http"

	"github.com/dmitrymomot/memberkit/core"
	"github.com/dmitrymomot/memberkit/pkg/validator"
	domain "github.com/dmitrymomot/memberkit/svc/membership"
)

type remindersRequest struct {
	// UIDs limits the pass to these accounts and ignores the schedule.
	UIDs []int64 `json:"uids"`
}

type importGroupRequest struct {
	GroupID string `json:"group_id"`
	PlanID  string `json:"plan_id"`
	Expires string `json:"expires"`
}

type importLegacyRequest struct {
	SourcePlanID string `json:"source_plan_id"`
	PlanID       string `json:"plan_id"`
	Expires      string `json:"expires"`
}

// reportMeta exposes collected per-row errors next to a report.
func reportMeta(errs error) map[string]any {
	if errs == nil {
		return nil
	}
	return map[string]any{"errors": errs.Error()}
}

func (m *Module) runSweep() http.HandlerFunc {
	return handle(m, func(r *http.Request, _ empty) core.Response {
		report, err := m.sweep(r)
		if err != nil {
			return m.errorResponse(err)
		}
		return core.JSON("sweep_completed", report, reportMeta(report.Errors))
	})
}

func (m *Module) runReminders() http.HandlerFunc {
	return handle(m, func(r *http.Request, req remindersRequest) core.Response {
		var (
			report domain.NotifyReport
			err    error
		)
		if len(req.UIDs) > 0 {
			report, err = m.throttle.NotifyMembers(r.Context(), req.UIDs)
		} else {
			report, err = m.throttle.Run(r.Context(), m.engine.Today())
		}
		if err != nil {
			return m.errorResponse(err)
		}
		return core.JSON("reminders_sent", report, reportMeta(report.Errors))
	})
}

func (m *Module) importGroup() http.HandlerFunc {
	return handle(m, func(r *http.Request, req importGroupRequest) core.Response {
		if err := validator.Apply(
			validator.Required("group_id", req.GroupID),
			validator.Required("plan_id", req.PlanID),
			validator.Required("expires", req.Expires),
		); err != nil {
			return m.errorResponse(err)
		}
		expires, err := parseDate("expires", req.Expires)
		if err != nil {
			return m.errorResponse(err)
		}
		report, err := m.importer.ImportFromGroup(r.Context(), req.GroupID, req.PlanID, expires)
		if err != nil {
			return m.errorResponse(err)
		}
		return core.JSON("import_completed", report, reportMeta(report.Errors))
	})
}

func (m *Module) importLegacy() http.HandlerFunc {
	return handle(m, func(r *http.Request, req importLegacyRequest) core.Response {
		if err := validator.Apply(
			validator.Required("source_plan_id", req.SourcePlanID),
			validator.Required("plan_id", req.PlanID),
		); err != nil {
			return m.errorResponse(err)
		}
		expires, err := parseDate("expires", req.Expires)
		if err != nil {
			return m.errorResponse(err)
		}
		report, err := m.importer.ImportFromLegacySubscriptions(r.Context(), req.SourcePlanID, req.PlanID, expires)
		if err != nil {
			return m.errorResponse(err)
		}
		return core.JSON("import_completed", report, reportMeta(report.Errors))
	})
}
