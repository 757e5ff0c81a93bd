package membership

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/memberkit/core"
	domain "github.com/dmitrymomot/memberkit/svc/membership"
)

type empty struct{}

// handle binds a JSON body into R and routes failures through m.fail.
func handle[R any](m *Module, h core.HandlerFunc[R]) http.HandlerFunc {
	return core.Wrap(h,
		core.WithBinders[R](core.BindJSON()),
		core.WithErrorHandler[R](m.fail),
	)
}

func (m *Module) listPlans() http.HandlerFunc {
	return handle(m, func(r *http.Request, _ empty) core.Response {
		enabledOnly := r.URL.Query().Get("enabled") == "true"
		plans, err := m.engine.Catalog().List(r.Context(), enabledOnly)
		if err != nil {
			return m.errorResponse(err)
		}
		return core.JSON("plans", plans, map[string]any{"total": len(plans)})
	})
}

func (m *Module) getPlan() http.HandlerFunc {
	return handle(m, func(r *http.Request, _ empty) core.Response {
		plan, err := m.engine.Catalog().Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			return m.errorResponse(err)
		}
		return core.JSON("plan", plan, nil)
	})
}

func (m *Module) savePlan() http.HandlerFunc {
	return handle(m, func(r *http.Request, plan domain.Plan) core.Response {
		id := chi.URLParam(r, "id")
		if plan.ID != "" && plan.ID != id {
			return m.errorResponse(core.ErrBadRequest.WithMessage("plan id does not match the path"))
		}
		plan.ID = id
		if err := m.engine.Catalog().Save(r.Context(), &plan); err != nil {
			return m.errorResponse(err)
		}
		return core.JSON("plan_saved", plan, nil)
	})
}

func (m *Module) deletePlan() http.HandlerFunc {
	return handle(m, func(r *http.Request, _ empty) core.Response {
		id := chi.URLParam(r, "id")
		transferTo := r.URL.Query().Get("transfer_to")
		if err := m.engine.Catalog().Delete(r.Context(), id, transferTo); err != nil {
			return m.errorResponse(err)
		}
		return core.NoContent()
	})
}
