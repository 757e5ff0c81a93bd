package host_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/memberkit/internal/pgtest"
	"github.com/dmitrymomot/memberkit/svc/host"
	"github.com/dmitrymomot/memberkit/svc/reminder"
)

func TestPG(t *testing.T) {
	pool := pgtest.Pool(t)
	h := host.NewPG(pool)
	ctx := context.Background()

	require.NoError(t, h.SaveAccount(ctx, &host.Account{UID: 1, Email: "ada@example.com", Name: "Ada"}))
	require.NoError(t, h.SaveAccount(ctx, &host.Account{UID: 2, Email: "bob@example.com", Name: "Bob"}))

	t.Run("groups", func(t *testing.T) {
		require.NoError(t, h.AddToGroup(ctx, "members", 2))
		require.NoError(t, h.AddToGroup(ctx, "members", 1))
		require.NoError(t, h.AddToGroup(ctx, "members", 1))
		require.NoError(t, h.AddToGroup(ctx, "", 1))

		uids, err := h.ListGroupMembers(ctx, "members")
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, uids)

		require.NoError(t, h.RemoveFromGroup(ctx, "members", 2))
		require.NoError(t, h.RemoveFromGroup(ctx, "members", 2))
		uids, err = h.ListGroupMembers(ctx, "members")
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, uids)

		uids, err = h.ListGroupMembers(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, uids)
	})

	t.Run("lookup", func(t *testing.T) {
		r, err := h.Lookup(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, reminder.Recipient{Email: "ada@example.com", Name: "Ada"}, r)

		_, err = h.Lookup(ctx, 99)
		require.ErrorIs(t, err, reminder.ErrRecipientNotFound)
	})

	t.Run("disable", func(t *testing.T) {
		require.NoError(t, h.DisableAccount(ctx, 2))
		a, err := h.GetAccount(ctx, 2)
		require.NoError(t, err)
		assert.True(t, a.Disabled)

		_, err = h.Lookup(ctx, 2)
		require.ErrorIs(t, err, reminder.ErrRecipientNotFound)

		require.ErrorIs(t, h.DisableAccount(ctx, 99), host.ErrAccountNotFound)
	})
}

func TestNewPGPanicsOnNilPool(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { host.NewPG(nil) })
}
