package application

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/memberkit/pkg/pg"
)

// Profile treats the host profile as the application: an account has applied
// once every required profile field holds a value.
type Profile struct {
	pool   *pgxpool.Pool
	fields []Field
}

func NewProfile(pool *pgxpool.Pool, fields []Field) *Profile {
	if pool == nil {
		panic("application: pool cannot be nil")
	}
	return &Profile{pool: pool, fields: fields}
}

func (p *Profile) Fields() []Field {
	return append([]Field(nil), p.fields...)
}

func (p *Profile) Validate(answers Answers) error {
	return validate(p.fields, answers)
}

// Save writes each declared field to user_profiles.
func (p *Profile) Save(ctx context.Context, uid int64, answers Answers) error {
	if err := p.Validate(answers); err != nil {
		return err
	}
	values := known(p.fields, answers)
	if len(values) == 0 {
		return nil
	}
	return pg.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for field, value := range values {
			batch.Queue(`
				INSERT INTO user_profiles (uid, field, value) VALUES ($1, $2, $3)
				ON CONFLICT (uid, field) DO UPDATE SET value = EXCLUDED.value`,
				uid, field, value)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("save profile %d: %w", uid, err)
		}
		return nil
	})
}

func (p *Profile) Answers(ctx context.Context, uid int64) (Answers, error) {
	rows, _ := p.pool.Query(ctx, `SELECT field, value FROM user_profiles WHERE uid = $1`, uid)
	out := make(Answers)
	var field, value string
	_, err := pgx.ForEachRow(rows, []any{&field, &value}, func() error {
		out[field] = value
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load profile %d: %w", uid, err)
	}
	return out, nil
}

func (p *Profile) HasApplied(ctx context.Context, uid int64) (bool, error) {
	if len(p.fields) == 0 {
		return true, nil
	}
	a, err := p.Answers(ctx, uid)
	if err != nil {
		return false, err
	}
	return p.Validate(a) == nil, nil
}
