package reminder_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/memberkit/internal/pgtest"
	"github.com/dmitrymomot/memberkit/svc/reminder"
)

func exerciseOutbox(t *testing.T, outbox reminder.Outbox) {
	t.Helper()
	ctx := context.Background()
	expires := time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC)
	base := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)

	first := &reminder.Entry{UID: 1, Email: "a@example.com", Subject: "first", Expires: expires, CreatedAt: base}
	require.NoError(t, outbox.Record(ctx, first))
	assert.NotEmpty(t, first.ID)

	require.NoError(t, outbox.Record(ctx, &reminder.Entry{UID: 1, Email: "a@example.com", Subject: "second", Expires: expires, CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, outbox.Record(ctx, &reminder.Entry{UID: 2, Email: "b@example.com", Subject: "other", Expires: expires}))

	entries, err := outbox.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Subject)
	assert.Equal(t, "second", entries[1].Subject)
	assert.Equal(t, first.ID, entries[0].ID)

	require.NoError(t, outbox.Clear(ctx, 1))
	entries, err = outbox.List(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = outbox.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, outbox.Clear(ctx, 99))
}

func TestMemoryOutbox(t *testing.T) {
	t.Parallel()
	exerciseOutbox(t, reminder.NewMemoryOutbox())
}

func TestPGOutbox(t *testing.T) {
	pool := pgtest.Pool(t)
	exerciseOutbox(t, reminder.NewPGOutbox(pool))

	t.Run("invalid id", func(t *testing.T) {
		err := reminder.NewPGOutbox(pool).Record(context.Background(), &reminder.Entry{ID: "nope", UID: 3})
		require.Error(t, err)
	})
}

func TestNewPGOutboxPanicsOnNilPool(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { reminder.NewPGOutbox(nil) })
}
