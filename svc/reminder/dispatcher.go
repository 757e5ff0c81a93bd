package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/dmitrymomot/memberkit/pkg/email"
	"github.com/dmitrymomot/memberkit/pkg/logger"
	"github.com/dmitrymomot/memberkit/svc/membership"
)

// Recipient is the contact data of an account.
type Recipient struct {
	Email string
	Name  string
}

// Directory resolves accounts to recipients.
type Directory interface {
	Lookup(ctx context.Context, uid int64) (Recipient, error)
}

// Dispatcher sends reminders. It implements membership.Dispatcher.
type Dispatcher struct {
	directory Directory
	renderer  Renderer
	sender    email.EmailSender
	outbox    Outbox
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	clock     membership.Clock
	renewURL  string
	tag       string
	logger    *slog.Logger
}

var _ membership.Dispatcher = (*Dispatcher)(nil)

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRateLimit caps sends per second. Zero or negative disables the limit.
func WithRateLimit(perSecond float64, burst int) DispatcherOption {
	return func(d *Dispatcher) {
		if perSecond <= 0 {
			d.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		d.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// WithBreaker opens the circuit after failures consecutive send errors and
// probes again after cooldown.
func WithBreaker(failures uint32, cooldown time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.breaker = newBreaker(failures, cooldown, d)
	}
}

func WithClock(c membership.Clock) DispatcherOption {
	return func(d *Dispatcher) {
		if c != nil {
			d.clock = c
		}
	}
}

// WithRenewURL sets the link rendered into reminders. "%d" is replaced by the uid.
func WithRenewURL(url string) DispatcherOption {
	return func(d *Dispatcher) {
		d.renewURL = url
	}
}

func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher panics if a dependency is nil.
func NewDispatcher(directory Directory, renderer Renderer, sender email.EmailSender, outbox Outbox, opts ...DispatcherOption) *Dispatcher {
	if directory == nil || renderer == nil || sender == nil || outbox == nil {
		panic("reminder: dispatcher dependencies cannot be nil")
	}
	d := &Dispatcher{
		directory: directory,
		renderer:  renderer,
		sender:    sender,
		outbox:    outbox,
		limiter:   rate.NewLimiter(rate.Limit(5), 5),
		clock:     membership.SystemClock{},
		tag:       "expiry-reminder",
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(logger.Component("reminder"))
	if d.breaker == nil {
		d.breaker = newBreaker(5, time.Minute, d)
	}
	return d
}

func newBreaker(failures uint32, cooldown time.Duration, d *Dispatcher) *gobreaker.CircuitBreaker {
	failures = max(failures, 1)
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "reminder-email",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if d.logger != nil {
				d.logger.Warn("email circuit changed state",
					slog.String("breaker", name), slog.String("from", from.String()), slog.String("to", to.String()))
			}
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, email.ErrInvalidParams)
		},
	})
}

// Dispatch sends one reminder to m's account.
func (d *Dispatcher) Dispatch(ctx context.Context, m *membership.Membership, plan *membership.Plan) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	rcpt, err := d.directory.Lookup(ctx, m.UID)
	if err != nil {
		return fmt.Errorf("lookup account %d: %w", m.UID, err)
	}
	if rcpt.Email == "" {
		return fmt.Errorf("account %d: %w", m.UID, ErrNoEmail)
	}

	today := d.clock.Today()
	fields := Fields{
		Name:         rcpt.Name,
		Email:        rcpt.Email,
		UID:          m.UID,
		MemberNumber: m.Number,
		PlanName:     planName(plan),
		Expires:      m.Expires,
		DaysLeft:     int(m.Expires.Sub(today).Hours() / 24),
		Price:        plan.Price(false, today.Month()),
	}
	if d.renewURL != "" {
		fields.RenewURL = renewURL(d.renewURL, m.UID)
	}

	msg, err := d.renderer.Render(ctx, fields)
	if err != nil {
		return err
	}

	_, err = d.breaker.Execute(func() (any, error) {
		return nil, d.sender.SendEmail(ctx, email.SendEmailParams{
			SendTo:   rcpt.Email,
			Subject:  msg.Subject,
			BodyHTML: msg.BodyHTML,
			BodyText: msg.BodyText,
			Tag:      d.tag,
		})
	})
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}

	if err := d.outbox.Record(ctx, &Entry{
		UID:     m.UID,
		Email:   rcpt.Email,
		Subject: msg.Subject,
		Expires: m.Expires,
	}); err != nil {
		// the mail is out; a missing outbox row only affects Clear
		d.logger.WarnContext(ctx, "failed to record reminder", logger.UID(m.UID), logger.Error(err))
	}

	d.logger.DebugContext(ctx, "reminder sent", logger.UID(m.UID), logger.PlanID(plan.ID), logger.Date("expires", m.Expires))
	return nil
}

func planName(p *membership.Plan) string {
	if p.LongName != "" {
		return p.LongName
	}
	return p.ShortName
}

func renewURL(pattern string, uid int64) string {
	if strings.Contains(pattern, "%d") {
		return fmt.Sprintf(pattern, uid)
	}
	return pattern
}
