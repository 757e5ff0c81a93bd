package membership_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	module "github.com/dmitrymomot/memberkit/modules/membership"
	"github.com/dmitrymomot/memberkit/pkg/validator"
	"github.com/dmitrymomot/memberkit/svc/application"
	"github.com/dmitrymomot/memberkit/svc/membership"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type groups struct {
	mu      sync.Mutex
	members map[string]map[int64]bool
}

func (g *groups) AddToGroup(_ context.Context, group string, uid int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.members[group] == nil {
		g.members[group] = make(map[int64]bool)
	}
	g.members[group][uid] = true
	return nil
}

func (g *groups) RemoveFromGroup(_ context.Context, group string, uid int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.members[group], uid)
	return nil
}

func (g *groups) ListGroupMembers(_ context.Context, group string) ([]int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []int64
	for uid := range g.members[group] {
		out = append(out, uid)
	}
	return out, nil
}

type dispatcher struct {
	mu   sync.Mutex
	sent []int64
}

func (d *dispatcher) Dispatch(_ context.Context, m *membership.Membership, _ *membership.Plan) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, m.UID)
	return nil
}

type legacy []membership.LegacySubscription

func (l legacy) ListLegacySubscriptions(_ context.Context, source string) ([]membership.LegacySubscription, error) {
	var out []membership.LegacySubscription
	for _, s := range l {
		if s.PlanID == source {
			out = append(out, s)
		}
	}
	return out, nil
}

type applications struct {
	mu      sync.Mutex
	applied map[int64]application.Answers
}

func (a *applications) HasApplied(_ context.Context, uid int64) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.applied[uid]
	return ok, nil
}

func (a *applications) Fields() []application.Field {
	return []application.Field{{Name: "address", Required: true}}
}

func (a *applications) Validate(answers application.Answers) error {
	return validator.Apply(validator.Required("address", answers["address"]))
}

func (a *applications) Save(_ context.Context, uid int64, answers application.Answers) error {
	if err := a.Validate(answers); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied[uid] = answers
	return nil
}

const today = "2024-05-20"

type fixture struct {
	store      *membership.MemoryStore
	engine     *membership.Engine
	groups     *groups
	dispatcher *dispatcher
	apps       *applications
	base       []module.Option
	handler    http.Handler
}

// mount rebuilds the router with extra options on top of the fixture services.
func (f *fixture) mount(opts ...module.Option) {
	f.handler = module.New(f.engine, append(append([]module.Option(nil), f.base...), opts...)...).Router()
}

func annualPlan() *membership.Plan {
	return &membership.Plan{
		ID:                   "annual",
		ShortName:            "Annual",
		Enabled:              true,
		AccessGroup:          "annual-access",
		ExpireEndOfMonth:     true,
		Fees:                 membership.Fees{Fixed: membership.FeePair{New: 5000, Renew: 4500}, Processing: 50},
		NotificationsEnabled: true,
	}
}

func familyPlan() *membership.Plan {
	return &membership.Plan{
		ID:                   "family",
		ShortName:            "Family",
		Enabled:              true,
		Fees:                 membership.Fees{Fixed: membership.FeePair{New: 8000, Renew: 7500}},
		IsFamily:             true,
		NotificationsEnabled: true,
	}
}

func newFixture(t *testing.T, opts ...module.Option) *fixture {
	t.Helper()
	ctx := context.Background()
	cfg := membership.DefaultConfig()
	cfg.MemberGroup = "members"
	cfg.RequireApplication = true

	store := membership.NewMemoryStore()
	catalog := membership.NewCatalog(store, membership.WithCatalogLogger(discard))
	require.NoError(t, catalog.Save(ctx, annualPlan()))
	require.NoError(t, catalog.Save(ctx, familyPlan()))

	g := &groups{members: make(map[string]map[int64]bool)}
	apps := &applications{applied: map[int64]application.Answers{1: {"address": "x"}, 2: {"address": "y"}}}
	positions := membership.NewPositions(store, g, discard)
	engine := membership.NewEngine(cfg, catalog, store, store,
		membership.WithClock(membership.FixedClock(membership.MustParseDate(today))),
		membership.WithGroupManager(g),
		membership.WithPositionReleaser(positions),
		membership.WithApplicationChecker(apps),
		membership.WithLogger(discard),
	)
	d := &dispatcher{}
	throttle := membership.NewThrottle(cfg, catalog, store, d, discard)
	importer := membership.NewImporter(engine, g, legacy{
		{UID: 50, PlanID: "old", Expires: membership.MustParseDate("2024-12-31"), Amount: 100},
		{UID: 51, PlanID: "old", Expires: membership.MustParseDate("2025-03-31"), Amount: 100},
	}, discard)

	base := []module.Option{
		module.WithThrottle(throttle),
		module.WithImporter(importer),
		module.WithPositions(positions),
		module.WithApplications(apps),
		module.WithLogger(discard),
	}
	f := &fixture{store: store, engine: engine, groups: g, dispatcher: d, apps: apps, base: base}
	f.mount(opts...)
	return f
}

type envelope[T any] struct {
	Code  string         `json:"code"`
	Data  T              `json:"data"`
	Meta  map[string]any `json:"meta"`
	Error *struct {
		Code    string              `json:"code"`
		Message string              `json:"message"`
		Details map[string][]string `json:"details"`
	} `json:"error"`
}

func do[T any](t *testing.T, f *fixture, method, path string, body any) (int, envelope[T]) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	var env envelope[T]
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

type member struct {
	UID      int64  `json:"uid"`
	PlanID   string `json:"plan_id"`
	Joined   string `json:"joined"`
	Expires  string `json:"expires"`
	Status   string `json:"status"`
	GUID     string `json:"guid"`
	Number   string `json:"number"`
	Notified int    `json:"notified"`
	IsNew    bool   `json:"is_new"`
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
