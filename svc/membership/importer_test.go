package membership_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/memberkit/svc/membership"
)

type legacyRows []membership.LegacySubscription

func (l legacyRows) ListLegacySubscriptions(_ context.Context, source string) ([]membership.LegacySubscription, error) {
	var out []membership.LegacySubscription
	for _, s := range l {
		if s.PlanID == source {
			out = append(out, s)
		}
	}
	return out, nil
}

func TestImportFromGroup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, "2024-01-20")
	f.seed(t, &membership.Membership{UID: 2, PlanID: "family", GUID: "g2", Status: membership.StatusActive, Expires: date("2024-06-01")})
	for _, uid := range []int64{1, 2, 3} {
		require.NoError(t, f.host.AddToGroup(ctx, "legacy-members", uid))
	}

	imp := membership.NewImporter(f.engine, f.host, nil, discard)
	report, err := imp.ImportFromGroup(ctx, "legacy-members", "annual", date("2024-12-31"))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, 1, report.Skipped)
	assert.NoError(t, report.Errors)

	m := f.get(t, 1)
	assert.Equal(t, "annual", m.PlanID)
	assert.Equal(t, "2024-12-31", day(m.Expires))
	assert.Equal(t, "family", f.get(t, 2).PlanID)

	txs, err := f.engine.Transactions(ctx, 3)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "import", txs[0].Gateway)

	report, err = imp.ImportFromGroup(ctx, "legacy-members", "annual", date("2024-12-31"))
	require.NoError(t, err)
	assert.Zero(t, report.Imported)
	assert.Equal(t, 3, report.Skipped)

	_, err = imp.ImportFromGroup(ctx, "legacy-members", "missing", date("2024-12-31"))
	assert.ErrorIs(t, err, membership.ErrPlanNotFound)

	_, err = membership.NewImporter(f.engine, nil, nil, discard).ImportFromGroup(ctx, "x", "annual", date("2024-12-31"))
	assert.Error(t, err)
}

func TestImportFromLegacySubscriptions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	legacy := legacyRows{
		{UID: 1, PlanID: "gold", Expires: date("2024-08-15"), Amount: 3000},
		{UID: 2, PlanID: "gold", Expires: date("2024-03-01"), Amount: 3000},
		{UID: 3, PlanID: "silver", Expires: date("2024-09-01"), Amount: 1000},
	}

	t.Run("keeps later expirations", func(t *testing.T) {
		f := newFixture(t, "2024-01-20")
		f.seed(t, &membership.Membership{UID: 2, PlanID: "annual", GUID: "g2", Status: membership.StatusActive, Expires: date("2024-05-01")})

		imp := membership.NewImporter(f.engine, nil, legacy, discard)
		report, err := imp.ImportFromLegacySubscriptions(ctx, "gold", "annual", date(""))
		require.NoError(t, err)
		assert.Equal(t, 1, report.Imported)
		assert.Equal(t, 1, report.Skipped)

		m := f.get(t, 1)
		assert.Equal(t, "2024-08-15", day(m.Expires))
		assert.Equal(t, membership.StatusActive, m.Status)
		assert.Equal(t, "2024-05-01", day(f.get(t, 2).Expires))

		txs, err := f.engine.Transactions(ctx, 1)
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, int64(3000), txs[0].Amount)
	})

	t.Run("override replaces dates", func(t *testing.T) {
		f := newFixture(t, "2024-01-20")
		f.seed(t, &membership.Membership{UID: 2, PlanID: "annual", GUID: "g2", Status: membership.StatusActive, Expires: date("2024-05-01")})

		imp := membership.NewImporter(f.engine, nil, legacy, discard)
		report, err := imp.ImportFromLegacySubscriptions(ctx, "gold", "annual", date("2024-12-31"))
		require.NoError(t, err)
		assert.Equal(t, 2, report.Imported)
		assert.Equal(t, "2024-12-31", day(f.get(t, 1).Expires))
		assert.Equal(t, "2024-12-31", day(f.get(t, 2).Expires))
	})

	t.Run("not configured", func(t *testing.T) {
		f := newFixture(t, "2024-01-20")
		_, err := membership.NewImporter(f.engine, nil, nil, discard).ImportFromLegacySubscriptions(ctx, "gold", "annual", date(""))
		assert.Error(t, err)
	})
}
