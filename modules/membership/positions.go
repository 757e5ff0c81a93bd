package membership

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/memberkit/core"
	domain "github.com/dmitrymomot/memberkit/svc/membership"
)

type assignRequest struct {
	UID int64 `json:"uid"`
}

func (m *Module) listPositions() http.HandlerFunc {
	return handle(m, func(r *http.Request, _ empty) core.Response {
		list, err := m.positions.List(r.Context(), r.URL.Query().Get("group"))
		if err != nil {
			return m.errorResponse(err)
		}
		return core.JSON("positions", list, map[string]any{"total": len(list)})
	})
}

// savePosition creates a position on POST and updates one on PUT.
func (m *Module) savePosition() http.HandlerFunc {
	return handle(m, func(r *http.Request, pos domain.Position) core.Response {
		pos.ID = 0
		pos.OccupantUID = 0
		status := http.StatusCreated
		if chi.URLParam(r, "id") != "" {
			id, err := pathInt(r, "id")
			if err != nil {
				return m.errorResponse(err)
			}
			pos.ID = id
			status = http.StatusOK
		}
		if err := m.positions.Save(r.Context(), &pos); err != nil {
			return m.errorResponse(err)
		}
		return core.JSONStatus(status, "position_saved", pos, nil)
	})
}

func (m *Module) assignPosition() http.HandlerFunc {
	return handle(m, func(r *http.Request, req assignRequest) core.Response {
		id, err := pathInt(r, "id")
		if err != nil {
			return m.errorResponse(err)
		}
		if err := m.positions.Assign(r.Context(), id, req.UID); err != nil {
			return m.errorResponse(err)
		}
		return core.NoContent()
	})
}

func (m *Module) vacatePosition() http.HandlerFunc {
	return handle(m, func(r *http.Request, _ empty) core.Response {
		id, err := pathInt(r, "id")
		if err != nil {
			return m.errorResponse(err)
		}
		if err := m.positions.Vacate(r.Context(), id); err != nil {
			return m.errorResponse(err)
		}
		return core.NoContent()
	})
}
