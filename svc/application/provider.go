package application

import (
	"context"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/memberkit/pkg/validator"
	"github.com/dmitrymomot/memberkit/svc/membership"
)

// Answers maps field names to submitted values.
type Answers map[string]string

// Field is one question of the application.
type Field struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
	MaxLen   int    `json:"max_len,omitempty"`
}

// Provider is the full application capability.
type Provider interface {
	membership.ApplicationChecker
	Fields() []Field
	Validate(answers Answers) error
	Save(ctx context.Context, uid int64, answers Answers) error
}

// Config selects the provider.
type Config struct {
	Provider string   `env:"APPLICATION_PROVIDER" envDefault:"none"`
	Fields   []string `env:"APPLICATION_FIELDS" envSeparator:","`
	MaxLen   int      `env:"APPLICATION_FIELD_MAX_LEN" envDefault:"500"`
}

// RequiredFields turns the configured names into required fields.
func (c Config) RequiredFields() []Field {
	fields := make([]Field, 0, len(c.Fields))
	for _, name := range c.Fields {
		if name == "" || slices.ContainsFunc(fields, func(f Field) bool { return f.Name == name }) {
			continue
		}
		fields = append(fields, Field{Name: name, Required: true, MaxLen: c.MaxLen})
	}
	return fields
}

// New builds the provider named in cfg.
func New(cfg Config, pool *pgxpool.Pool) (Provider, error) {
	switch cfg.Provider {
	case "", "none":
		return None{}, nil
	case "forms":
		if pool == nil {
			return nil, ErrNoDatabase
		}
		return NewForms(pool, cfg.RequiredFields()), nil
	case "profile":
		if pool == nil {
			return nil, ErrNoDatabase
		}
		return NewProfile(pool, cfg.RequiredFields()), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
}

func validate(fields []Field, answers Answers) error {
	var rules []validator.Rule
	for _, f := range fields {
		v := answers[f.Name]
		if f.Required {
			rules = append(rules, validator.Required(f.Name, v))
		}
		if f.MaxLen > 0 {
			rules = append(rules, validator.MaxLen(f.Name, v, f.MaxLen))
		}
	}
	return validator.Apply(rules...)
}

// known keeps only answers for declared fields.
func known(fields []Field, answers Answers) Answers {
	out := make(Answers, len(fields))
	for _, f := range fields {
		if v, ok := answers[f.Name]; ok {
			out[f.Name] = v
		}
	}
	return out
}

// None treats every account as having applied.
type None struct{}

func (None) HasApplied(context.Context, int64) (bool, error) { return true, nil }
func (None) Fields() []Field                                 { return nil }
func (None) Validate(Answers) error                          { return nil }
func (None) Save(context.Context, int64, Answers) error      { return nil }
