package host_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/memberkit/svc/host"
	"github.com/dmitrymomot/memberkit/svc/membership"
	"github.com/dmitrymomot/memberkit/svc/reminder"
)

func TestNop(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	n := host.NewNop(slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()

	var (
		_ membership.GroupManager    = n
		_ membership.GroupDirectory  = n
		_ membership.AccountDisabler = n
		_ reminder.Directory         = n
	)

	require.NoError(t, n.AddToGroup(ctx, "members", 7))
	require.NoError(t, n.RemoveFromGroup(ctx, "members", 7))
	require.NoError(t, n.DisableAccount(ctx, 7))
	uids, err := n.ListGroupMembers(ctx, "members")
	require.NoError(t, err)
	assert.Empty(t, uids)

	_, err = n.Lookup(ctx, 7)
	require.ErrorIs(t, err, reminder.ErrRecipientNotFound)

	out := buf.String()
	assert.Contains(t, out, "add to group")
	assert.Contains(t, out, "disable account")
	assert.Contains(t, out, "component=host")
}
