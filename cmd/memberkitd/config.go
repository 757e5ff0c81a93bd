package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/language"

	module "github.com/dmitrymomot/memberkit/modules/membership"
	"github.com/dmitrymomot/memberkit/pkg/config"
	"github.com/dmitrymomot/memberkit/pkg/email"
	"github.com/dmitrymomot/memberkit/pkg/httpserver"
	"github.com/dmitrymomot/memberkit/pkg/pg"
	"github.com/dmitrymomot/memberkit/pkg/redis"
	"github.com/dmitrymomot/memberkit/svc/application"
	"github.com/dmitrymomot/memberkit/svc/membership"
	"github.com/dmitrymomot/memberkit/svc/reminder"
)

// BaseConfig is needed by every command.
type BaseConfig struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"memberkitd"`
	Timezone    string `env:"MEMBERSHIP_TIMEZONE" envDefault:"UTC"`
}

func (c BaseConfig) location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("MEMBERSHIP_TIMEZONE: %w", err)
	}
	return loc, nil
}

type cacheConfig struct {
	RedisEnabled bool          `env:"REDIS_ENABLED" envDefault:"true"`
	PlanTTL      time.Duration `env:"PLAN_CACHE_TTL" envDefault:"5m"`
	PlanSize     int           `env:"PLAN_CACHE_SIZE" envDefault:"128"`
}

type scheduleConfig struct {
	Sweep     string        `env:"SWEEP_SCHEDULE" envDefault:"15 0 * * *"`
	Reminders string        `env:"REMINDER_SCHEDULE" envDefault:"0 9 * * *"`
	LockTTL   time.Duration `env:"SCHEDULER_LOCK_TTL" envDefault:"30m"`
}

type reminderConfig struct {
	RatePerSecond   float64       `env:"REMINDER_RATE" envDefault:"5"`
	Burst           int           `env:"REMINDER_BURST" envDefault:"5"`
	BreakerFailures uint32        `env:"REMINDER_BREAKER_FAILURES" envDefault:"5"`
	BreakerCooldown time.Duration `env:"REMINDER_BREAKER_COOLDOWN" envDefault:"1m"`
	RenewURL        string        `env:"REMINDER_RENEW_URL"`
	Language        string        `env:"REMINDER_LANGUAGE" envDefault:"en"`
	// TemplateDir may hold subject.tmpl, body.html.tmpl and body.txt.tmpl.
	// Missing files keep the built-in template.
	TemplateDir string `env:"REMINDER_TEMPLATE_DIR"`
}

func (c reminderConfig) rendererOptions() ([]reminder.RendererOption, error) {
	tag, err := language.Parse(c.Language)
	if err != nil {
		return nil, fmt.Errorf("REMINDER_LANGUAGE: %w", err)
	}
	opts := []reminder.RendererOption{reminder.WithLanguage(tag)}
	if c.TemplateDir == "" {
		return opts, nil
	}
	read := func(name string) (string, error) {
		raw, err := os.ReadFile(filepath.Join(c.TemplateDir, name))
		if os.IsNotExist(err) {
			return "", nil
		}
		return string(raw), err
	}
	subject, err := read("subject.tmpl")
	if err != nil {
		return nil, err
	}
	html, err := read("body.html.tmpl")
	if err != nil {
		return nil, err
	}
	text, err := read("body.txt.tmpl")
	if err != nil {
		return nil, err
	}
	return append(opts, reminder.WithTemplates(subject, html, text)), nil
}

// Config is the full daemon configuration.
type Config struct {
	BaseConfig
	HostBackend string `env:"HOST_BACKEND" envDefault:"pg"`
	PlansFile   string `env:"PLANS_FILE"`
	AutoMigrate bool   `env:"PG_AUTO_MIGRATE" envDefault:"true"`

	Cache       cacheConfig
	Schedule    scheduleConfig
	Reminder    reminderConfig
	HTTP        httpserver.Config
	PG          pg.Config
	Redis       redis.Config
	Email       email.Config
	Membership  membership.Config
	Application application.Config
	Stripe      module.StripeConfig
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Membership.Validate(); err != nil {
		return cfg, fmt.Errorf("membership config: %w", err)
	}
	return cfg, nil
}

// dbConfig is enough for migrate.
type dbConfig struct {
	BaseConfig
	PG pg.Config
}
