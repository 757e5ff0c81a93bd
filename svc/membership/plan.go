package membership

import (
	"regexp"
	"time"

	"github.com/dmitrymomot/memberkit/pkg/validator"
)

var planIDPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// IsRolling reports whether the plan renews one year from the prior expiration.
func (p *Plan) IsRolling() bool {
	return p.RenewalMonth == 0
}

// Price returns the fee for a purchase in month, processing fee included.
func (p *Plan) Price(isNew bool, month time.Month) int64 {
	pair := p.Fees.Fixed
	if !p.IsRolling() && len(p.Fees.Monthly) == 12 && month >= time.January && month <= time.December {
		pair = p.Fees.Monthly[month-1]
	}
	fee := pair.Renew
	if isNew {
		fee = pair.New
	}
	return fee + p.Fees.Processing
}

func (p *Plan) Clone() *Plan {
	c := *p
	c.Fees.Monthly = append([]FeePair(nil), p.Fees.Monthly...)
	return &c
}

// Validate checks required fields and the fee schedule shape.
func (p *Plan) Validate() error {
	rules := []validator.Rule{
		validator.Required("id", p.ID),
		validator.MaxLen("id", p.ID, 40),
		{
			Check: func() bool { return p.ID == "" || planIDPattern.MatchString(p.ID) },
			Error: validator.ValidationError{
				Field:   "id",
				Message: "may contain only lowercase letters, digits, dashes and underscores",
				Key:     "validation.plan_id",
				Values:  map[string]any{"field": "id"},
			},
		},
		validator.Required("short_name", p.ShortName),
		validator.MaxLen("short_name", p.ShortName, 40),
		validator.Min("renewal_month", int(p.RenewalMonth), 0),
		validator.Max("renewal_month", int(p.RenewalMonth), 12),
		validator.Min("fees.processing", p.Fees.Processing, 0),
		validator.Min("fees.fixed.new", p.Fees.Fixed.New, 0),
		validator.Min("fees.fixed.renew", p.Fees.Fixed.Renew, 0),
	}
	rules = append(rules, validator.When(!p.IsRolling(), validator.Len("fees.monthly", p.Fees.Monthly, 12))...)
	for _, pair := range p.Fees.Monthly {
		rules = append(rules,
			validator.Min("fees.monthly.new", pair.New, 0),
			validator.Min("fees.monthly.renew", pair.Renew, 0),
		)
	}
	return validator.Apply(rules...)
}
