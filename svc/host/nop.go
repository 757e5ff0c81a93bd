package host

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/memberkit/pkg/logger"
	"github.com/dmitrymomot/memberkit/svc/reminder"
)

// Nop logs every call and changes nothing. Lookup always fails.
type Nop struct {
	log *slog.Logger
}

func NewNop(log *slog.Logger) *Nop {
	if log == nil {
		log = slog.Default()
	}
	return &Nop{log: log.With(logger.Component("host"))}
}

func (n *Nop) AddToGroup(ctx context.Context, groupID string, uid int64) error {
	n.log.InfoContext(ctx, "add to group", slog.String("group", groupID), logger.UID(uid))
	return nil
}

func (n *Nop) RemoveFromGroup(ctx context.Context, groupID string, uid int64) error {
	n.log.InfoContext(ctx, "remove from group", slog.String("group", groupID), logger.UID(uid))
	return nil
}

func (n *Nop) ListGroupMembers(ctx context.Context, groupID string) ([]int64, error) {
	n.log.InfoContext(ctx, "list group members", slog.String("group", groupID))
	return nil, nil
}

func (n *Nop) DisableAccount(ctx context.Context, uid int64) error {
	n.log.InfoContext(ctx, "disable account", logger.UID(uid))
	return nil
}

func (n *Nop) Lookup(_ context.Context, uid int64) (reminder.Recipient, error) {
	return reminder.Recipient{}, reminder.ErrRecipientNotFound
}
