package membership

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/memberkit/core"
	domain "github.com/dmitrymomot/memberkit/svc/membership"
)

type memberView struct {
	UID      int64         `json:"uid"`
	PlanID   string        `json:"plan_id,omitempty"`
	Joined   string        `json:"joined,omitempty"`
	Expires  string        `json:"expires,omitempty"`
	Status   domain.Status `json:"status,omitempty"`
	GUID     string        `json:"guid,omitempty"`
	Number   string        `json:"number,omitempty"`
	Notified int           `json:"notified"`
	IsTrial  bool          `json:"is_trial"`
	IsNew    bool          `json:"is_new"`
}

func viewMember(m *domain.Membership) memberView {
	return memberView{
		UID:      m.UID,
		PlanID:   m.PlanID,
		Joined:   formatDate(m.Joined),
		Expires:  formatDate(m.Expires),
		Status:   m.Status,
		GUID:     m.GUID,
		Number:   m.Number,
		Notified: m.Notified,
		IsTrial:  m.IsTrial,
		IsNew:    m.IsNew(),
	}
}

func viewMembers(rows []*domain.Membership) []memberView {
	out := make([]memberView, 0, len(rows))
	for _, m := range rows {
		out = append(out, viewMember(m))
	}
	return out
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

// parseDate accepts an empty string as the zero date.
func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := domain.ParseDate(s)
	if err != nil {
		return time.Time{}, core.ErrBadRequest.WithMessage(field + ": expected YYYY-MM-DD")
	}
	return t, nil
}

func pathInt(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || v <= 0 {
		return 0, core.ErrBadRequest.WithMessage(name + " must be a positive integer")
	}
	return v, nil
}

type failure struct {
	m   *Module
	err error
}

func (f failure) Render(w http.ResponseWriter, r *http.Request) error {
	f.m.fail(w, r, f.err)
	return nil
}

// errorResponse maps err and renders it as the JSON error envelope.
func (m *Module) errorResponse(err error) core.Response {
	return failure{m: m, err: err}
}
