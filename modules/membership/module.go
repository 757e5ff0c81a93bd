package membership

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/memberkit/core"
	"github.com/dmitrymomot/memberkit/pkg/logger"
	"github.com/dmitrymomot/memberkit/svc/application"
	domain "github.com/dmitrymomot/memberkit/svc/membership"
)

// SweepRunner runs one daily sweep. The daemon passes a lock-guarded runner.
type SweepRunner func(r *http.Request) (domain.SweepReport, error)

// Module holds the services behind the HTTP routes.
type Module struct {
	engine       *domain.Engine
	throttle     *domain.Throttle
	importer     *domain.Importer
	positions    *domain.Positions
	applications application.Provider
	stripe       *StripeWebhook
	sweep        SweepRunner
	logger       *slog.Logger
}

type Option func(*Module)

func WithThrottle(t *domain.Throttle) Option {
	return func(m *Module) { m.throttle = t }
}

func WithImporter(i *domain.Importer) Option {
	return func(m *Module) { m.importer = i }
}

func WithPositions(p *domain.Positions) Option {
	return func(m *Module) { m.positions = p }
}

func WithApplications(p application.Provider) Option {
	return func(m *Module) { m.applications = p }
}

// WithStripe mounts POST /webhooks/stripe.
func WithStripe(w *StripeWebhook) Option {
	return func(m *Module) { m.stripe = w }
}

// WithSweepRunner replaces the direct engine call behind POST /admin/sweep.
func WithSweepRunner(fn SweepRunner) Option {
	return func(m *Module) { m.sweep = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Module) {
		if l != nil {
			m.logger = l
		}
	}
}

// New panics when engine is nil. Routes backed by a missing optional
// service are not mounted.
func New(engine *domain.Engine, opts ...Option) *Module {
	if engine == nil {
		panic("membership module: engine cannot be nil")
	}
	m := &Module{engine: engine, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(logger.Component("membership-http"))
	if m.sweep == nil {
		m.sweep = func(r *http.Request) (domain.SweepReport, error) {
			return engine.RunDailySweep(r.Context(), engine.Today())
		}
	}
	return m
}

// Router returns the routes of the module.
func (m *Module) Router() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		m.fail(w, req, core.ErrNotFound)
	})

	r.Route("/plans", func(r chi.Router) {
		r.Get("/", m.listPlans())
		r.Get("/{id}", m.getPlan())
		r.Put("/{id}", m.savePlan())
		r.Delete("/{id}", m.deletePlan())
	})

	r.Route("/members/{uid}", func(r chi.Router) {
		r.Get("/", m.getMember())
		r.Put("/", m.saveMember())
		r.Delete("/", m.deleteMember())
		r.Get("/eligibility", m.eligibility())
		r.Post("/renew", m.renew())
		r.Post("/expire", m.transition((*domain.Engine).Expire))
		r.Post("/cancel", m.transition((*domain.Engine).Cancel))
		r.Post("/drop", m.transition((*domain.Engine).Drop))
		r.Get("/family", m.family())
		r.Post("/link", m.link())
		r.Delete("/link", m.unlink())
		r.Get("/transactions", m.transactions())
		if m.applications != nil {
			r.Get("/application", m.applicationFields())
			r.Put("/application", m.saveApplication())
		}
	})

	r.Put("/transactions/{id}", m.updateTransaction())
	r.Post("/purchases", m.purchase())

	if m.positions != nil {
		r.Route("/positions", func(r chi.Router) {
			r.Get("/", m.listPositions())
			r.Post("/", m.savePosition())
			r.Put("/{id}", m.savePosition())
			r.Post("/{id}/assign", m.assignPosition())
			r.Post("/{id}/vacate", m.vacatePosition())
		})
	}

	if m.stripe != nil {
		r.Post("/webhooks/stripe", m.stripe.ServeHTTP)
	}

	r.Route("/admin", func(r chi.Router) {
		r.Post("/sweep", m.runSweep())
		if m.throttle != nil {
			r.Post("/reminders", m.runReminders())
		}
		if m.importer != nil {
			r.Post("/import/group", m.importGroup())
			r.Post("/import/legacy", m.importLegacy())
		}
	})
	return r
}

func (m *Module) fail(w http.ResponseWriter, r *http.Request, err error) {
	core.JSONErrorHandler(m.logger)(w, r, mapError(err))
}
