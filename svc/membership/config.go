package membership

import (
	"fmt"
	"time"

	"github.com/dmitrymomot/memberkit/pkg/validator"
)

// Config holds lifecycle settings. Load it with config.Load.
type Config struct {
	GraceDays          int    `env:"MEMBERSHIP_GRACE_DAYS" envDefault:"30"`
	EarlyRenewalDays   int    `env:"MEMBERSHIP_EARLY_RENEWAL_DAYS" envDefault:"45"`
	NotifyCount        int    `env:"MEMBERSHIP_NOTIFY_COUNT" envDefault:"3"`
	NotifyIntervalDays int    `env:"MEMBERSHIP_NOTIFY_INTERVAL_DAYS" envDefault:"14"`
	MemberGroup        string `env:"MEMBERSHIP_MEMBER_GROUP"`
	DisableExpired     bool   `env:"MEMBERSHIP_DISABLE_EXPIRED" envDefault:"false"`
	MemberNumberFormat string `env:"MEMBERSHIP_NUMBER_FORMAT"`
	RequireApplication bool   `env:"MEMBERSHIP_REQUIRE_APPLICATION" envDefault:"false"`
	Currency           string `env:"MEMBERSHIP_CURRENCY" envDefault:"USD"`
}

// DefaultConfig mirrors the env defaults.
func DefaultConfig() Config {
	return Config{
		GraceDays:          30,
		EarlyRenewalDays:   45,
		NotifyCount:        3,
		NotifyIntervalDays: 14,
		Currency:           "USD",
	}
}

// Validate checks every setting against its allowed range.
func (c Config) Validate() error {
	return validator.Apply(
		validator.Min("grace_days", c.GraceDays, 0),
		validator.Min("early_renewal_days", c.EarlyRenewalDays, 0),
		validator.Min("notify_count", c.NotifyCount, 0),
		validator.Min("notify_interval_days", c.NotifyIntervalDays, 1),
		validator.Required("currency", c.Currency),
	)
}

// MemberNumber formats an automatic member number. Empty when numbers are free-form.
func (c Config) MemberNumber(uid int64) string {
	if c.MemberNumberFormat == "" {
		return ""
	}
	return fmt.Sprintf(c.MemberNumberFormat, uid)
}

// Thresholds are the two date boundaries used by the lifecycle.
type Thresholds struct {
	// BeginRenewal is the latest expiration that may still be renewed early.
	BeginRenewal time.Time
	// EndGrace is the oldest expiration still treated as arrears.
	EndGrace time.Time
}

// Thresholds returns the renewal and grace boundaries as of today.
func (c Config) Thresholds(today time.Time) Thresholds {
	today = Date(today)
	return Thresholds{
		BeginRenewal: today.AddDate(0, 0, c.EarlyRenewalDays),
		EndGrace:     today.AddDate(0, 0, -c.GraceDays),
	}
}

// Clock supplies the current calendar date.
type Clock interface {
	Today() time.Time
}

// SystemClock reads the wall clock in Location, UTC when nil.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Today() time.Time {
	now := time.Now()
	if c.Location != nil {
		now = now.In(c.Location)
	}
	return Date(now)
}

// FixedClock always returns the same date.
type FixedClock time.Time

func (c FixedClock) Today() time.Time {
	return Date(time.Time(c))
}
