package application

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/memberkit/pkg/pg"
)

// Forms stores application answers as one jsonb document per account.
type Forms struct {
	pool   *pgxpool.Pool
	fields []Field
}

func NewForms(pool *pgxpool.Pool, fields []Field) *Forms {
	if pool == nil {
		panic("application: pool cannot be nil")
	}
	return &Forms{pool: pool, fields: fields}
}

func (f *Forms) Fields() []Field {
	return append([]Field(nil), f.fields...)
}

func (f *Forms) Validate(answers Answers) error {
	return validate(f.fields, answers)
}

// Save validates and replaces the stored answers.
func (f *Forms) Save(ctx context.Context, uid int64, answers Answers) error {
	if err := f.Validate(answers); err != nil {
		return err
	}
	_, err := f.pool.Exec(ctx, `
		INSERT INTO application_forms (uid, answers, submitted_at) VALUES ($1, $2, now())
		ON CONFLICT (uid) DO UPDATE SET answers = EXCLUDED.answers, submitted_at = EXCLUDED.submitted_at`,
		uid, known(f.fields, answers))
	if err != nil {
		return fmt.Errorf("save application %d: %w", uid, err)
	}
	return nil
}

func (f *Forms) Answers(ctx context.Context, uid int64) (Answers, error) {
	var a Answers
	err := f.pool.QueryRow(ctx, `SELECT answers FROM application_forms WHERE uid = $1`, uid).Scan(&a)
	if err != nil {
		return nil, fmt.Errorf("load application %d: %w", uid, err)
	}
	return a, nil
}

// HasApplied reports whether a stored form still satisfies the current fields.
func (f *Forms) HasApplied(ctx context.Context, uid int64) (bool, error) {
	var a Answers
	err := f.pool.QueryRow(ctx, `SELECT answers FROM application_forms WHERE uid = $1`, uid).Scan(&a)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("check application %d: %w", uid, err)
	}
	return f.Validate(a) == nil, nil
}
