package membership_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/memberkit/svc/membership"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func day(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

func date(s string) time.Time {
	return membership.MustParseDate(s)
}

// host records calls made to the host CMS.
type host struct {
	mu       sync.Mutex
	groups   map[string]map[int64]bool
	disabled []int64
	cleared  []int64
	fail     error
}

func newHost() *host {
	return &host{groups: make(map[string]map[int64]bool)}
}

func (h *host) AddToGroup(_ context.Context, group string, uid int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail != nil {
		return h.fail
	}
	if h.groups[group] == nil {
		h.groups[group] = make(map[int64]bool)
	}
	h.groups[group][uid] = true
	return nil
}

func (h *host) RemoveFromGroup(_ context.Context, group string, uid int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail != nil {
		return h.fail
	}
	delete(h.groups[group], uid)
	return nil
}

func (h *host) DisableAccount(_ context.Context, uid int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disabled = append(h.disabled, uid)
	return nil
}

func (h *host) Clear(_ context.Context, uid int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleared = append(h.cleared, uid)
	return nil
}

func (h *host) ListGroupMembers(_ context.Context, group string) ([]int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []int64
	for uid := range h.groups[group] {
		out = append(out, uid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (h *host) inGroup(group string, uid int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.groups[group][uid]
}

func (h *host) disabledAccounts() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int64(nil), h.disabled...)
}

const memberGroup = "members"

func annualPlan() *membership.Plan {
	return &membership.Plan{
		ID:                   "annual",
		ShortName:            "Annual",
		Enabled:              true,
		AccessGroup:          "annual-access",
		ExpireEndOfMonth:     true,
		Fees:                 membership.Fees{Fixed: membership.FeePair{New: 5000, Renew: 4500}, Processing: 100},
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

func summerPlan() *membership.Plan {
	monthly := make([]membership.FeePair, 12)
	for i := range monthly {
		monthly[i] = membership.FeePair{New: int64(1000 * (i + 1)), Renew: int64(900 * (i + 1))}
	}
	return &membership.Plan{
		ID:                   "summer",
		ShortName:            "Summer",
		Enabled:              true,
		RenewalMonth:         time.July,
		Fees:                 membership.Fees{Monthly: monthly, Processing: 50},
		NotificationsEnabled: true,
	}
}

type fixture struct {
	store   *membership.MemoryStore
	catalog *membership.Catalog
	engine  *membership.Engine
	host    *host
	cfg     membership.Config
	today   time.Time
}

func newFixture(t *testing.T, today string, mutate ...func(*membership.Config)) *fixture {
	t.Helper()
	cfg := membership.DefaultConfig()
	cfg.MemberGroup = memberGroup
	cfg.MemberNumberFormat = "M%05d"
	for _, m := range mutate {
		m(&cfg)
	}

	store := membership.NewMemoryStore()
	catalog := membership.NewCatalog(store, membership.WithCatalogLogger(discard))
	ctx := context.Background()
	for _, p := range []*membership.Plan{annualPlan(), familyPlan(), summerPlan()} {
		require.NoError(t, catalog.Save(ctx, p))
	}

	h := newHost()
	positions := membership.NewPositions(store, h, discard)
	engine := membership.NewEngine(cfg, catalog, store, store,
		membership.WithClock(membership.FixedClock(date(today))),
		membership.WithGroupManager(h),
		membership.WithAccountDisabler(h),
		membership.WithReminderClearer(h),
		membership.WithPositionReleaser(positions),
		membership.WithLogger(discard),
	)
	return &fixture{store: store, catalog: catalog, engine: engine, host: h, cfg: cfg, today: date(today)}
}

// seed writes rows directly, bypassing the engine.
func (f *fixture) seed(t *testing.T, rows ...*membership.Membership) {
	t.Helper()
	require.NoError(t, f.store.SaveMembers(context.Background(), rows...))
}

func (f *fixture) get(t *testing.T, uid int64) *membership.Membership {
	t.Helper()
	m, err := f.store.GetMember(context.Background(), uid)
	require.NoError(t, err)
	return m
}

var errBoom = errors.New("boom")
