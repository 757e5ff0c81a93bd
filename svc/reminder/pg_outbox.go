package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGOutbox stores reminders in the reminders table.
type PGOutbox struct {
	pool *pgxpool.Pool
}

func NewPGOutbox(pool *pgxpool.Pool) *PGOutbox {
	if pool == nil {
		panic("reminder: pool cannot be nil")
	}
	return &PGOutbox{pool: pool}
}

func (o *PGOutbox) Record(ctx context.Context, e *Entry) error {
	prepare(e, time.Now)
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return fmt.Errorf("record reminder: invalid id %q: %w", e.ID, err)
	}
	_, err = o.pool.Exec(ctx, `
		INSERT INTO reminders (id, uid, email, subject, expires, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, e.UID, e.Email, e.Subject, e.Expires, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("record reminder: %w", err)
	}
	return nil
}

func (o *PGOutbox) List(ctx context.Context, uid int64) ([]*Entry, error) {
	rows, _ := o.pool.Query(ctx, `
		SELECT id, uid, email, subject, expires, created_at
		FROM reminders WHERE uid = $1 ORDER BY created_at`, uid)
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Entry, error) {
		var (
			e  Entry
			id uuid.UUID
		)
		if err := row.Scan(&id, &e.UID, &e.Email, &e.Subject, &e.Expires, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ID = id.String()
		return &e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return entries, nil
}

func (o *PGOutbox) Clear(ctx context.Context, uid int64) error {
	if _, err := o.pool.Exec(ctx, `DELETE FROM reminders WHERE uid = $1`, uid); err != nil {
		return fmt.Errorf("clear reminders: %w", err)
	}
	return nil
}
