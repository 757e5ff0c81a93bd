package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/memberkit/pkg/logger"
)

// Family keeps linked accounts in sync. A family is every row sharing a GUID.
type Family struct {
	members MemberStore
	clock   Clock
	numbers func(uid int64) string
	logger  *slog.Logger
}

// NewFamily creates a family linker. numbers generates member numbers for
// accounts that join a family without a row of their own; it may be nil.
func NewFamily(members MemberStore, clock Clock, numbers func(uid int64) string, log *slog.Logger) *Family {
	if members == nil {
		panic("membership: member store cannot be nil")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if numbers == nil {
		numbers = func(int64) string { return "" }
	}
	if log == nil {
		log = slog.Default()
	}
	return &Family{
		members: members,
		clock:   clock,
		numbers: numbers,
		logger:  log.With(logger.Component("family")),
	}
}

// NewGUID returns a fresh family identifier.
func NewGUID() string {
	return uuid.NewString()
}

// Members returns every row of the family.
func (f *Family) Members(ctx context.Context, guid string) ([]*Membership, error) {
	rows, err := f.members.ListFamily(ctx, guid)
	if err != nil {
		return nil, persistenceError("list family", err)
	}
	return rows, nil
}

// Propagate writes m and, for family plans, copies its shared fields onto
// every other row of its family in the same atomic write. It returns the
// rows written, m first.
func (f *Family) Propagate(ctx context.Context, m *Membership, plan *Plan) ([]*Membership, error) {
	rows := []*Membership{m}
	if plan != nil && plan.IsFamily && m.GUID != "" {
		group, err := f.members.ListFamily(ctx, m.GUID)
		if err != nil {
			return nil, persistenceError("list family", err)
		}
		for _, other := range group {
			if other.UID == m.UID {
				continue
			}
			other.adopt(m)
			rows = append(rows, other)
		}
	}

	if err := f.members.SaveMembers(ctx, rows...); err != nil {
		f.logger.ErrorContext(ctx, "family write failed",
			logger.UID(m.UID), logger.GUID(m.GUID), logger.Count("rows", len(rows)), logger.Error(err))
		return nil, persistenceError("save family", err)
	}
	for _, r := range rows {
		r.isNew = false
	}
	return rows, nil
}

// AddLink moves newUID into masterUID's family. newUID adopts the master's
// shared fields and keeps its own joined date and member number. When newUID
// already shared a family with others, that whole family moves along.
func (f *Family) AddLink(ctx context.Context, masterUID, newUID int64) ([]*Membership, error) {
	if masterUID == newUID {
		return nil, ErrSelfLink
	}
	if masterUID <= 0 || newUID <= 0 {
		return nil, ErrInvalidUID
	}

	master, err := f.members.GetMember(ctx, masterUID)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			return nil, fmt.Errorf("master account %d: %w", masterUID, ErrMemberNotFound)
		}
		return nil, persistenceError("get master", err)
	}

	target, err := f.members.GetMember(ctx, newUID)
	switch {
	case errors.Is(err, ErrMemberNotFound):
		target = &Membership{
			UID:    newUID,
			Joined: f.clock.Today(),
			Number: f.numbers(newUID),
			isNew:  true,
		}
	case err != nil:
		return nil, persistenceError("get member", err)
	}

	rows := []*Membership{target}
	if !target.isNew && target.GUID != "" && target.GUID != master.GUID {
		group, err := f.members.ListFamily(ctx, target.GUID)
		if err != nil {
			return nil, persistenceError("list family", err)
		}
		for _, other := range group {
			if other.UID != target.UID && other.UID != master.UID {
				rows = append(rows, other)
			}
		}
	}
	for _, r := range rows {
		r.GUID = master.GUID
		r.adopt(master)
	}

	if err := f.members.SaveMembers(ctx, rows...); err != nil {
		return nil, persistenceError("link family", err)
	}
	for _, r := range rows {
		r.isNew = false
	}

	f.logger.InfoContext(ctx, "account linked",
		logger.UID(newUID), slog.Int64("master_uid", masterUID),
		logger.GUID(master.GUID), logger.Count("moved", len(rows)))
	return rows, nil
}

// RemoveLink gives uid a family of its own. Nothing else changes.
func (f *Family) RemoveLink(ctx context.Context, uid int64) (*Membership, error) {
	m, err := f.members.GetMember(ctx, uid)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, persistenceError("get member", err)
	}
	old := m.GUID
	m.GUID = NewGUID()
	if err := f.members.SaveMembers(ctx, m); err != nil {
		return nil, persistenceError("unlink", err)
	}
	f.logger.InfoContext(ctx, "account unlinked", logger.UID(uid), slog.String("old_guid", old), logger.GUID(m.GUID))
	return m, nil
}

// Verify returns a *ConsistencyError when rows of the family disagree on
// shared fields. The lowest uid is the reference row.
func (f *Family) Verify(ctx context.Context, guid string) error {
	rows, err := f.Members(ctx, guid)
	if err != nil {
		return err
	}
	if len(rows) < 2 {
		return nil
	}
	ref := rows[0]
	diverged := make(map[int64]error)
	for _, r := range rows[1:] {
		if !r.sharesStateWith(ref) {
			diverged[r.UID] = fmt.Errorf("account %d differs from account %d", r.UID, ref.UID)
		}
	}
	if len(diverged) > 0 {
		return &ConsistencyError{GUID: guid, Diverged: diverged}
	}
	return nil
}
