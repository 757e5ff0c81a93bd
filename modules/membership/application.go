package membership

import (
	"net/http"

	"github.com/dmitrymomot/memberkit/core"
	"github.com/dmitrymomot/memberkit/svc/application"
)

type applicationView struct {
	UID     int64               `json:"uid"`
	Applied bool                `json:"applied"`
	Fields  []application.Field `json:"fields"`
}

func (m *Module) applicationFields() http.HandlerFunc {
	return handle(m, func(r *http.Request, _ empty) core.Response {
		uid, err := pathInt(r, "uid")
		if err != nil {
			return m.errorResponse(err)
		}
		applied, err := m.applications.HasApplied(r.Context(), uid)
		if err != nil {
			return m.errorResponse(err)
		}
		return core.JSON("application", applicationView{UID: uid, Applied: applied, Fields: m.applications.Fields()}, nil)
	})
}

func (m *Module) saveApplication() http.HandlerFunc {
	return handle(m, func(r *http.Request, answers application.Answers) core.Response {
		uid, err := pathInt(r, "uid")
		if err != nil {
			return m.errorResponse(err)
		}
		if err := m.applications.Save(r.Context(), uid, answers); err != nil {
			return m.errorResponse(err)
		}
		return core.JSON("application_saved", applicationView{UID: uid, Applied: true, Fields: m.applications.Fields()}, nil)
	})
}
