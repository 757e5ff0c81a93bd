package host

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/memberkit/pkg/pg"
	"github.com/dmitrymomot/memberkit/svc/membership"
	"github.com/dmitrymomot/memberkit/svc/reminder"
)

// Account is a host CMS account.
type Account struct {
	UID      int64
	Email    string
	Name     string
	Disabled bool
}

type PG struct {
	pool *pgxpool.Pool
}

var (
	_ membership.GroupManager    = (*PG)(nil)
	_ membership.GroupDirectory  = (*PG)(nil)
	_ membership.AccountDisabler = (*PG)(nil)
	_ reminder.Directory         = (*PG)(nil)
)

func NewPG(pool *pgxpool.Pool) *PG {
	if pool == nil {
		panic("host: pool cannot be nil")
	}
	return &PG{pool: pool}
}

// AddToGroup is idempotent.
func (h *PG) AddToGroup(ctx context.Context, groupID string, uid int64) error {
	if groupID == "" {
		return nil
	}
	_, err := h.pool.Exec(ctx, `
		INSERT INTO group_members (group_id, uid) VALUES ($1, $2)
		ON CONFLICT (group_id, uid) DO NOTHING`, groupID, uid)
	if err != nil {
		return fmt.Errorf("add %d to group %q: %w", uid, groupID, err)
	}
	return nil
}

// RemoveFromGroup is idempotent.
func (h *PG) RemoveFromGroup(ctx context.Context, groupID string, uid int64) error {
	if groupID == "" {
		return nil
	}
	_, err := h.pool.Exec(ctx, `DELETE FROM group_members WHERE group_id = $1 AND uid = $2`, groupID, uid)
	if err != nil {
		return fmt.Errorf("remove %d from group %q: %w", uid, groupID, err)
	}
	return nil
}

func (h *PG) ListGroupMembers(ctx context.Context, groupID string) ([]int64, error) {
	rows, _ := h.pool.Query(ctx, `SELECT uid FROM group_members WHERE group_id = $1 ORDER BY uid`, groupID)
	uids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("list group %q: %w", groupID, err)
	}
	return uids, nil
}

func (h *PG) DisableAccount(ctx context.Context, uid int64) error {
	tag, err := h.pool.Exec(ctx, `UPDATE accounts SET disabled = TRUE WHERE uid = $1`, uid)
	if err != nil {
		return fmt.Errorf("disable account %d: %w", uid, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("disable account %d: %w", uid, ErrAccountNotFound)
	}
	return nil
}

// Lookup resolves uid for the reminder dispatcher. Disabled accounts are not
// reminded.
func (h *PG) Lookup(ctx context.Context, uid int64) (reminder.Recipient, error) {
	a, err := h.GetAccount(ctx, uid)
	if errors.Is(err, ErrAccountNotFound) || (err == nil && a.Disabled) {
		return reminder.Recipient{}, reminder.ErrRecipientNotFound
	}
	if err != nil {
		return reminder.Recipient{}, err
	}
	return reminder.Recipient{Email: a.Email, Name: a.Name}, nil
}

func (h *PG) GetAccount(ctx context.Context, uid int64) (*Account, error) {
	var a Account
	err := h.pool.QueryRow(ctx, `SELECT uid, email, name, disabled FROM accounts WHERE uid = $1`, uid).
		Scan(&a.UID, &a.Email, &a.Name, &a.Disabled)
	if pg.IsNotFoundError(err) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account %d: %w", uid, err)
	}
	return &a, nil
}

// SaveAccount upserts a. The host normally owns this table; memberkit writes
// it only when it runs standalone.
func (h *PG) SaveAccount(ctx context.Context, a *Account) error {
	_, err := h.pool.Exec(ctx, `
		INSERT INTO accounts (uid, email, name, disabled) VALUES ($1, $2, $3, $4)
		ON CONFLICT (uid) DO UPDATE SET email = EXCLUDED.email, name = EXCLUDED.name, disabled = EXCLUDED.disabled`,
		a.UID, a.Email, a.Name, a.Disabled)
	if err != nil {
		return fmt.Errorf("save account %d: %w", a.UID, err)
	}
	return nil
}
