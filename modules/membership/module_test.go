package membership_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	module "github.com/dmitrymomot/memberkit/modules/membership"
	"github.com/dmitrymomot/memberkit/svc/membership"
)

func TestPlans(t *testing.T) {
	t.Parallel()

	t.Run("list and get", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		code, env := do[[]membership.Plan](t, f, http.MethodGet, "/plans", nil)
		require.Equal(t, http.StatusOK, code)
		assert.Len(t, env.Data, 2)
		assert.EqualValues(t, 2, env.Meta["total"])

		code, plan := do[membership.Plan](t, f, http.MethodGet, "/plans/annual", nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "Annual", plan.Data.ShortName)

		code, missing := do[any](t, f, http.MethodGet, "/plans/nope", nil)
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "not_found", missing.Code)
	})

	t.Run("save", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		body := map[string]any{
			"short_name": "Student",
			"enabled":    true,
			"fees":       map[string]any{"fixed": map[string]any{"new": 1000, "renew": 900}},
		}
		code, env := do[membership.Plan](t, f, http.MethodPut, "/plans/student", body)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "student", env.Data.ID)

		p, err := f.engine.Catalog().Get(context.Background(), "student")
		require.NoError(t, err)
		assert.EqualValues(t, 900, p.Fees.Fixed.Renew)
	})

	t.Run("save rejects mismatched id", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		code, _ := do[any](t, f, http.MethodPut, "/plans/student", map[string]any{"id": "other", "short_name": "S"})
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("save validates", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		code, env := do[any](t, f, http.MethodPut, "/plans/BAD", map[string]any{"short_name": ""})
		require.Equal(t, http.StatusUnprocessableEntity, code)
		require.NotNil(t, env.Error)
		assert.Contains(t, env.Error.Details, "id")
		assert.Contains(t, env.Error.Details, "short_name")
	})

	t.Run("delete needs transfer when members exist", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		code, _ := do[any](t, f, http.MethodPost, "/members/1/renew", map[string]any{"plan_id": "annual"})
		require.Equal(t, http.StatusOK, code)

		code, _ = do[any](t, f, http.MethodDelete, "/plans/annual", nil)
		assert.Equal(t, http.StatusConflict, code)

		code, _ = do[any](t, f, http.MethodDelete, "/plans/annual?transfer_to=annual", nil)
		assert.Equal(t, http.StatusConflict, code)

		code, _ = do[any](t, f, http.MethodDelete, "/plans/annual?transfer_to=family", nil)
		assert.Equal(t, http.StatusNoContent, code)

		m, err := f.store.GetMember(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "family", m.PlanID)
	})
}

func TestMembers(t *testing.T) {
	t.Parallel()

	t.Run("unknown account reads as new", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		code, env := do[member](t, f, http.MethodGet, "/members/7", nil)
		require.Equal(t, http.StatusOK, code)
		assert.True(t, env.Data.IsNew)
		assert.Equal(t, int64(7), env.Data.UID)
	})

	t.Run("bad uid", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		for _, path := range []string{"/members/abc", "/members/0", "/members/-3"} {
			code, _ := do[any](t, f, http.MethodGet, path, nil)
			assert.Equal(t, http.StatusBadRequest, code, path)
		}
	})

	t.Run("renew creates membership", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		code, env := do[member](t, f, http.MethodPost, "/members/1/renew",
			map[string]any{"plan_id": "annual", "amount": 5050, "comment": "desk"})
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "active", env.Data.Status)
		assert.Equal(t, "2025-05-31", env.Data.Expires)
		assert.Equal(t, today, env.Data.Joined)
		assert.True(t, f.groups.members["members"][1])
		assert.True(t, f.groups.members["annual-access"][1])

		code, txs := do[[]membership.Transaction](t, f, http.MethodGet, "/members/1/transactions", nil)
		require.Equal(t, http.StatusOK, code)
		require.Len(t, txs.Data, 1)
		assert.EqualValues(t, 5050, txs.Data[0].Amount)
		assert.Equal(t, "manual", txs.Data[0].Gateway)
	})

	t.Run("renew with explicit expiration", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		code, env := do[member](t, f, http.MethodPost, "/members/1/renew",
			map[string]any{"plan_id": "annual", "expires": "2026-01-15"})
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "2026-01-15", env.Data.Expires)

		code, _ = do[any](t, f, http.MethodPost, "/members/1/renew", map[string]any{"plan_id": "annual", "expires": "15/01/2026"})
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("renew validates", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		code, env := do[any](t, f, http.MethodPost, "/members/1/renew", map[string]any{"amount": -1})
		require.Equal(t, http.StatusUnprocessableEntity, code)
		assert.Contains(t, env.Error.Details, "plan_id")
		assert.Contains(t, env.Error.Details, "amount")
	})

	t.Run("unknown json field", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		code, _ := do[any](t, f, http.MethodPost, "/members/1/renew", map[string]any{"plan": "annual"})
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("admin edit keeps omitted fields", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, created := do[member](t, f, http.MethodPost, "/members/1/renew", map[string]any{"plan_id": "annual"})

		code, env := do[member](t, f, http.MethodPut, "/members/1", map[string]any{"expires": "2024-05-01", "status": "arrears"})
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "2024-05-01", env.Data.Expires)
		assert.Equal(t, "arrears", env.Data.Status)
		assert.Equal(t, "annual", env.Data.PlanID)
		assert.Equal(t, created.Data.GUID, env.Data.GUID)
		assert.Equal(t, created.Data.Number, env.Data.Number)
	})

	t.Run("admin edit of new account needs plan", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		code, env := do[any](t, f, http.MethodPut, "/members/9", map[string]any{"expires": "2025-01-01"})
		require.Equal(t, http.StatusUnprocessableEntity, code)
		assert.Contains(t, env.Error.Details, "plan_id")
	})

	t.Run("transitions", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		do[any](t, f, http.MethodPost, "/members/1/renew", map[string]any{"plan_id": "annual"})

		code, env := do[member](t, f, http.MethodPost, "/members/1/expire", nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "member_expired", env.Code)
		assert.Equal(t, "expired", env.Data.Status)
		assert.False(t, f.groups.members["members"][1])

		code, env = do[member](t, f, http.MethodPost, "/members/1/drop", nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "dropped", env.Data.Status)

		code, _ = do[any](t, f, http.MethodPost, "/members/1/drop", nil)
		assert.Equal(t, http.StatusConflict, code)

		code, _ = do[any](t, f, http.MethodPost, "/members/404/expire", nil)
		assert.Equal(t, http.StatusNotFound, code)
	})

	t.Run("delete", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		do[any](t, f, http.MethodPost, "/members/1/renew", map[string]any{"plan_id": "annual"})

		code, _ := do[any](t, f, http.MethodDelete, "/members/1", nil)
		assert.Equal(t, http.StatusNoContent, code)
		code, _ = do[any](t, f, http.MethodDelete, "/members/1", nil)
		assert.Equal(t, http.StatusNotFound, code)
	})

	t.Run("eligibility", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		code, env := do[map[string]any](t, f, http.MethodGet, "/members/1/eligibility?plan_id=annual", nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, true, env.Data["eligible"])
		assert.EqualValues(t, 5050, env.Data["price"])

		do[any](t, f, http.MethodPost, "/members/1/renew", map[string]any{"plan_id": "annual"})
		code, env = do[map[string]any](t, f, http.MethodGet, "/members/1/eligibility?plan_id=annual", nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, false, env.Data["eligible"])
		assert.EqualValues(t, 4550, env.Data["price"])
		assert.NotEmpty(t, env.Data["reason"])

		code, _ = do[any](t, f, http.MethodGet, "/members/1/eligibility", nil)
		assert.Equal(t, http.StatusBadRequest, code)
		code, _ = do[any](t, f, http.MethodGet, "/members/1/eligibility?plan_id=nope", nil)
		assert.Equal(t, http.StatusNotFound, code)
	})
}

func TestPurchases(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	body := map[string]any{"uid": 1, "plan_id": "annual", "amount": 5050, "gateway": "paypal", "external_id": "PP-1"}
	code, env := do[map[string]any](t, f, http.MethodPost, "/purchases", body)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "2025-05-31", env.Data["expires"])

	code, again := do[map[string]any](t, f, http.MethodPost, "/purchases", body)
	require.Equal(t, http.StatusCreated, code, "same payment reference is recorded once")
	assert.Equal(t, "2025-05-31", again.Data["expires"])

	_, txs := do[[]map[string]any](t, f, http.MethodGet, "/members/1/transactions", nil)
	assert.Len(t, txs.Data, 1)

	body["external_id"] = "PP-2"
	code, tooEarly := do[any](t, f, http.MethodPost, "/purchases", body)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "conflict", tooEarly.Code)

	code, _ = do[any](t, f, http.MethodPost, "/purchases", map[string]any{"uid": 3, "plan_id": "annual"})
	assert.Equal(t, http.StatusConflict, code, "account 3 has no application")
}

func TestFamilyRoutes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	code, _ := do[any](t, f, http.MethodPost, "/members/1/renew", map[string]any{"plan_id": "family"})
	require.Equal(t, http.StatusOK, code)

	code, linked := do[[]member](t, f, http.MethodPost, "/members/2/link", map[string]any{"master_uid": 1})
	require.Equal(t, http.StatusOK, code)
	require.Len(t, linked.Data, 1)
	master, err := f.store.GetMember(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, master.GUID, linked.Data[0].GUID)
	assert.Equal(t, "family", linked.Data[0].PlanID)

	code, fam := do[[]member](t, f, http.MethodGet, "/members/2/family", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, fam.Data, 2)
	assert.Equal(t, true, fam.Meta["consistent"])

	code, _ = do[any](t, f, http.MethodPost, "/members/1/link", map[string]any{"master_uid": 1})
	assert.Equal(t, http.StatusConflict, code)

	code, unlinked := do[member](t, f, http.MethodDelete, "/members/2/link", nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotEqual(t, linked.Data[0].GUID, unlinked.Data.GUID)

	code, _ = do[any](t, f, http.MethodGet, "/members/99/family", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUpdateTransaction(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	do[any](t, f, http.MethodPost, "/members/1/renew", map[string]any{"plan_id": "annual", "amount": 100})
	_, txs := do[[]membership.Transaction](t, f, http.MethodGet, "/members/1/transactions", nil)
	require.Len(t, txs.Data, 1)

	tx := txs.Data[0]
	tx.Comment = "corrected"
	tx.Amount = 150
	code, _ := do[any](t, f, http.MethodPut, "/transactions/"+tx.ID, tx)
	require.Equal(t, http.StatusOK, code)

	_, txs = do[[]membership.Transaction](t, f, http.MethodGet, "/members/1/transactions", nil)
	assert.EqualValues(t, 150, txs.Data[0].Amount)
	assert.Equal(t, "corrected", txs.Data[0].Comment)

	code, _ = do[any](t, f, http.MethodPut, "/transactions/missing", tx)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPositionRoutes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	code, created := do[membership.Position](t, f, http.MethodPost, "/positions",
		map[string]any{"group_tag": "board", "title": "Treasurer", "linked_group": "officers", "enabled": true})
	require.Equal(t, http.StatusCreated, code)
	require.NotZero(t, created.Data.ID)
	id := created.Data.ID

	path := "/positions/" + itoa(id)
	code, _ = do[any](t, f, http.MethodPost, path+"/assign", map[string]any{"uid": 5})
	require.Equal(t, http.StatusNoContent, code)
	assert.True(t, f.groups.members["officers"][5])

	code, list := do[[]membership.Position](t, f, http.MethodGet, "/positions?group=board", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, list.Data, 1)
	assert.Equal(t, int64(5), list.Data[0].OccupantUID)

	code, updated := do[membership.Position](t, f, http.MethodPut, path, map[string]any{"group_tag": "board", "title": "Chief Treasurer", "linked_group": "officers"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(5), updated.Data.OccupantUID)

	code, _ = do[any](t, f, http.MethodPost, path+"/vacate", nil)
	require.Equal(t, http.StatusNoContent, code)
	assert.False(t, f.groups.members["officers"][5])

	code, _ = do[any](t, f, http.MethodPost, "/positions/999/vacate", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do[any](t, f, http.MethodPost, "/positions", map[string]any{"group_tag": "board"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestApplicationRoutes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	code, env := do[map[string]any](t, f, http.MethodGet, "/members/3/application", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, env.Data["applied"])

	code, _ = do[any](t, f, http.MethodPut, "/members/3/application", map[string]any{"address": ""})
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = do[any](t, f, http.MethodPut, "/members/3/application", map[string]any{"address": "3 Main St"})
	require.Equal(t, http.StatusOK, code)

	code, _ = do[any](t, f, http.MethodPost, "/purchases", map[string]any{"uid": 3, "plan_id": "annual", "amount": 5050})
	assert.Equal(t, http.StatusCreated, code)
}

func TestAdminRoutes(t *testing.T) {
	t.Parallel()

	t.Run("sweep", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		do[any](t, f, http.MethodPost, "/members/1/renew", map[string]any{"plan_id": "annual", "expires": "2024-05-01"})

		code, env := do[membership.SweepReport](t, f, http.MethodPost, "/admin/sweep", nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, 1, env.Data.Lapsed)

		m, err := f.store.GetMember(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, membership.StatusArrears, m.Status)
	})

	t.Run("custom sweep runner", func(t *testing.T) {
		t.Parallel()
		called := false
		f := newFixture(t, module.WithSweepRunner(func(*http.Request) (membership.SweepReport, error) {
			called = true
			return membership.SweepReport{RunID: "locked"}, nil
		}))
		code, env := do[membership.SweepReport](t, f, http.MethodPost, "/admin/sweep", nil)
		require.Equal(t, http.StatusOK, code)
		assert.True(t, called)
		assert.Equal(t, "locked", env.Data.RunID)
	})

	t.Run("reminders", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		do[any](t, f, http.MethodPost, "/members/1/renew", map[string]any{"plan_id": "annual", "expires": "2024-05-25"})
		do[any](t, f, http.MethodPost, "/members/2/renew", map[string]any{"plan_id": "annual", "expires": "2025-05-25"})

		code, env := do[membership.NotifyReport](t, f, http.MethodPost, "/admin/reminders", nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, 1, env.Data.Sent)
		assert.Equal(t, []int64{1}, f.dispatcher.sent)

		code, env = do[membership.NotifyReport](t, f, http.MethodPost, "/admin/reminders", map[string]any{"uids": []int64{2}})
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, 1, env.Data.Sent)
		assert.Equal(t, []int64{1, 2}, f.dispatcher.sent)
	})

	t.Run("import group", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()
		require.NoError(t, f.groups.AddToGroup(ctx, "legacy-members", 20))
		require.NoError(t, f.groups.AddToGroup(ctx, "legacy-members", 21))

		code, env := do[membership.ImportReport](t, f, http.MethodPost, "/admin/import/group",
			map[string]any{"group_id": "legacy-members", "plan_id": "annual", "expires": "2024-12-31"})
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, 2, env.Data.Imported)

		code, _ = do[any](t, f, http.MethodPost, "/admin/import/group", map[string]any{"plan_id": "annual"})
		assert.Equal(t, http.StatusUnprocessableEntity, code)
	})

	t.Run("import legacy", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		code, env := do[membership.ImportReport](t, f, http.MethodPost, "/admin/import/legacy",
			map[string]any{"source_plan_id": "old", "plan_id": "annual"})
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, 2, env.Data.Imported)

		m, err := f.store.GetMember(context.Background(), 51)
		require.NoError(t, err)
		assert.Equal(t, "2025-03-31", m.Expires.Format("2006-01-02"))
	})
}

func TestUnknownRoute(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	code, env := do[any](t, f, http.MethodGet, "/nothing", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", env.Code)
}

func TestNewPanicsWithoutEngine(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { module.New(nil) })
}
