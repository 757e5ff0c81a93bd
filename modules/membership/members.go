package membership

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/memberkit/core"
	domain "github.com/dmitrymomot/memberkit/svc/membership"
)

// memberRequest is an admin edit. Omitted fields keep their stored value.
type memberRequest struct {
	PlanID   *string        `json:"plan_id"`
	Joined   *string        `json:"joined"`
	Expires  *string        `json:"expires"`
	Status   *domain.Status `json:"status"`
	GUID     *string        `json:"guid"`
	Number   *string        `json:"number"`
	Notified *int           `json:"notified"`
	IsTrial  *bool          `json:"is_trial"`
}

func (req memberRequest) apply(m *domain.Membership) error {
	if req.PlanID != nil {
		m.PlanID = *req.PlanID
	}
	if req.Joined != nil {
		d, err := parseDate("joined", *req.Joined)
		if err != nil {
			return err
		}
		m.Joined = d
	}
	if req.Expires != nil {
		d, err := parseDate("expires", *req.Expires)
		if err != nil {
			return err
		}
		m.Expires = d
	}
	if req.Status != nil {
		m.Status = *req.Status
	}
	if req.GUID != nil {
		m.GUID = *req.GUID
	}
	if req.Number != nil {
		m.Number = *req.Number
	}
	if req.Notified != nil {
		m.Notified = *req.Notified
	}
	if req.IsTrial != nil {
		m.IsTrial = *req.IsTrial
	}
	return nil
}

type renewRequest struct {
	PlanID     string `json:"plan_id"`
	Expires    string `json:"expires"`
	Amount     int64  `json:"amount"`
	Gateway    string `json:"gateway"`
	ExternalID string `json:"external_id"`
	Comment    string `json:"comment"`
	By         int64  `json:"by"`
	IsTrial    bool   `json:"is_trial"`
}

type purchaseRequest struct {
	UID        int64  `json:"uid"`
	PlanID     string `json:"plan_id"`
	Amount     int64  `json:"amount"`
	Gateway    string `json:"gateway"`
	ExternalID string `json:"external_id"`
}

type linkRequest struct {
	MasterUID int64 `json:"master_uid"`
}

type eligibilityView struct {
	UID      int64  `json:"uid"`
	PlanID   string `json:"plan_id"`
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
	Price    int64  `json:"price"`
}

func (m *Module) getMember() http.HandlerFunc {
	return handle(m, func(r *http.Request, _ empty) core.Response {
		uid, err := pathInt(r, "uid")
		if err != nil {
			return m.errorResponse(err)
		}
		mem, err := m.engine.Read(r.Context(), uid)
		if err != nil {
			return m.errorResponse(err)
		}
		return core.JSON("member", viewMember(mem), nil)
	})
}

func (m *Module) saveMember() http.HandlerFunc {
	return handle(m, func(r *http.Request, req memberRequest) core.Response {
		uid, err := pathInt(r, "uid")
		if err != nil {
			return m.errorResponse(err)
		}
		current, err := m.engine.Read(r.Context(), uid)
		if err != nil {
			return m.errorResponse(err)
		}
		next := current.Clone()
		if err := req.apply(next); err != nil {
			return m.errorResponse(err)
		}
		saved, err := m.engine.Save(r.Context(), next)
		if err != nil {
			return m.errorResponse(err)
		}
		return core.JSON("member_saved", viewMember(saved), nil)
	})
}

func (m *Module) deleteMember() http.HandlerFunc {
	return handle(m, func(r *http.Request, _ empty) core.Response {
		uid, err := pathInt(r, "uid")
		if err != nil {
			return m.errorResponse(err)
		}
		if err := m.engine.Delete(r.Context(), uid); err != nil {
			return m.errorResponse(err)
		}
		return core.NoContent()
	})
}

func (m *Module) eligibility() http.HandlerFunc {
	return handle(m, func(r *http.Request, _ empty) core.Response {
		uid, err := pathInt(r, "uid")
		if err != nil {
			return m.errorResponse(err)
		}
		planID := r.URL.Query().Get("plan_id")
		if planID == "" {
			return m.errorResponse(core.ErrBadRequest.WithMessage("plan_id query parameter is required"))
		}
		price, err := m.engine.Price(r.Context(), uid, planID)
		if err != nil {
			return m.errorResponse(err)
		}
		view := eligibilityView{UID: uid, PlanID: planID, Eligible: true, Price: price}
		if err := m.engine.CanRenew(r.Context(), uid, planID); err != nil {
			var httpErr core.HTTPError
			if !errors.As(mapError(err), &httpErr) || httpErr.Code != http.StatusConflict {
				return m.errorResponse(err)
			}
			view.Eligible = false
			view.Reason = err.Error()
		}
		return core.JSON("eligibility", view, nil)
	})
}

func (m *Module) renew() http.HandlerFunc {
	return handle(m, func(r *http.Request, req renewRequest) core.Response {
		uid, err := pathInt(r, "uid")
		if err != nil {
			return m.errorResponse(err)
		}
		expires, err := parseDate("expires", req.Expires)
		if err != nil {
			return m.errorResponse(err)
		}
		mem, err := m.engine.Add(r.Context(), domain.AddRequest{
			UID:        uid,
			PlanID:     req.PlanID,
			Expires:    expires,
			Amount:     req.Amount,
			Gateway:    req.Gateway,
			ExternalID: req.ExternalID,
			Comment:    req.Comment,
			By:         req.By,
			IsTrial:    req.IsTrial,
		})
		if err != nil {
			return m.errorResponse(err)
		}
		return core.JSON("member_renewed", viewMember(mem), nil)
	})
}

func (m *Module) transition(fn func(*domain.Engine, context.Context, int64) (*domain.Membership, error)) http.HandlerFunc {
	return handle(m, func(r *http.Request, _ empty) core.Response {
		uid, err := pathInt(r, "uid")
		if err != nil {
			return m.errorResponse(err)
		}
		mem, err := fn(m.engine, r.Context(), uid)
		if err != nil {
			return m.errorResponse(err)
		}
		return core.JSON("member_"+string(mem.Status), viewMember(mem), nil)
	})
}

func (m *Module) family() http.HandlerFunc {
	return handle(m, func(r *http.Request, _ empty) core.Response {
		uid, err := pathInt(r, "uid")
		if err != nil {
			return m.errorResponse(err)
		}
		mem, err := m.engine.Read(r.Context(), uid)
		if err != nil {
			return m.errorResponse(err)
		}
		if mem.IsNew() {
			return m.errorResponse(domain.ErrMemberNotFound)
		}
		rows, err := m.engine.Family().Members(r.Context(), mem.GUID)
		if err != nil {
			return m.errorResponse(err)
		}
		meta := map[string]any{"guid": mem.GUID, "consistent": true}
		if err := m.engine.Family().Verify(r.Context(), mem.GUID); err != nil {
			if !domain.IsConsistencyError(err) {
				return m.errorResponse(err)
			}
			meta["consistent"] = false
		}
		return core.JSON("family", viewMembers(rows), meta)
	})
}

func (m *Module) link() http.HandlerFunc {
	return handle(m, func(r *http.Request, req linkRequest) core.Response {
		uid, err := pathInt(r, "uid")
		if err != nil {
			return m.errorResponse(err)
		}
		rows, err := m.engine.Link(r.Context(), req.MasterUID, uid)
		if err != nil {
			return m.errorResponse(err)
		}
		return core.JSON("family_linked", viewMembers(rows), nil)
	})
}

func (m *Module) unlink() http.HandlerFunc {
	return handle(m, func(r *http.Request, _ empty) core.Response {
		uid, err := pathInt(r, "uid")
		if err != nil {
			return m.errorResponse(err)
		}
		mem, err := m.engine.Unlink(r.Context(), uid)
		if err != nil {
			return m.errorResponse(err)
		}
		return core.JSON("family_unlinked", viewMember(mem), nil)
	})
}

func (m *Module) transactions() http.HandlerFunc {
	return handle(m, func(r *http.Request, _ empty) core.Response {
		uid, err := pathInt(r, "uid")
		if err != nil {
			return m.errorResponse(err)
		}
		txs, err := m.engine.Transactions(r.Context(), uid)
		if err != nil {
			return m.errorResponse(err)
		}
		return core.JSON("transactions", txs, map[string]any{"total": len(txs)})
	})
}

func (m *Module) updateTransaction() http.HandlerFunc {
	return handle(m, func(r *http.Request, tx domain.Transaction) core.Response {
		tx.ID = chi.URLParam(r, "id")
		tx.Date = domain.Date(tx.Date)
		tx.NewExpires = domain.Date(tx.NewExpires)
		if err := m.engine.UpdateTransaction(r.Context(), &tx); err != nil {
			return m.errorResponse(err)
		}
		return core.JSON("transaction_updated", tx, nil)
	})
}

type purchaseView struct {
	UID     int64  `json:"uid"`
	PlanID  string `json:"plan_id"`
	Expires string `json:"expires"`
}

func (m *Module) purchase() http.HandlerFunc {
	return handle(m, func(r *http.Request, req purchaseRequest) core.Response {
		expires, err := m.engine.RecordPurchase(r.Context(), domain.Purchase{
			UID:        req.UID,
			PlanID:     req.PlanID,
			Amount:     req.Amount,
			Gateway:    req.Gateway,
			ExternalID: req.ExternalID,
		})
		if err != nil {
			return m.errorResponse(err)
		}
		return core.JSONStatus(http.StatusCreated, "purchase_recorded",
			purchaseView{UID: req.UID, PlanID: req.PlanID, Expires: formatDate(expires)}, nil)
	})
}
