package membership

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/memberkit/pkg/logger"
	"github.com/dmitrymomot/memberkit/pkg/validator"
)

// Engine applies lifecycle operations: purchases, admin edits, cancellation,
// family links and the daily sweep.
type Engine struct {
	cfg          Config
	clock        Clock
	calc         Calculator
	machine      *Machine
	catalog      *Catalog
	members      MemberStore
	transactions TransactionStore
	family       *Family
	groups       GroupManager
	accounts     AccountDisabler
	reminders    ReminderClearer
	positions    PositionReleaser
	applications ApplicationChecker
	logger       *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

func WithClock(c Clock) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

func WithGroupManager(g GroupManager) EngineOption {
	return func(e *Engine) {
		if g != nil {
			e.groups = g
		}
	}
}

func WithAccountDisabler(a AccountDisabler) EngineOption {
	return func(e *Engine) {
		if a != nil {
			e.accounts = a
		}
	}
}

func WithReminderClearer(r ReminderClearer) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.reminders = r
		}
	}
}

func WithPositionReleaser(p PositionReleaser) EngineOption {
	return func(e *Engine) {
		if p != nil {
			e.positions = p
		}
	}
}

// WithApplicationChecker is consulted by CanRenew when Config.RequireApplication is set.
func WithApplicationChecker(a ApplicationChecker) EngineOption {
	return func(e *Engine) {
		e.applications = a
	}
}

func WithMachine(m *Machine) EngineOption {
	return func(e *Engine) {
		if m != nil {
			e.machine = m
		}
	}
}

func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates a lifecycle engine. Panics if a required dependency is nil.
func NewEngine(cfg Config, catalog *Catalog, members MemberStore, transactions TransactionStore, opts ...EngineOption) *Engine {
	if catalog == nil {
		panic("membership: catalog cannot be nil")
	}
	if members == nil {
		panic("membership: member store cannot be nil")
	}
	if transactions == nil {
		panic("membership: transaction store cannot be nil")
	}

	e := &Engine{
		cfg:          cfg,
		clock:        SystemClock{},
		calc:         NewCalculator(cfg.GraceDays),
		machine:      NewMachine(),
		catalog:      catalog,
		members:      members,
		transactions: transactions,
		groups:       nopCollaborator{},
		accounts:     nopCollaborator{},
		reminders:    nopCollaborator{},
		positions:    nopCollaborator{},
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(logger.Component("membership"))
	e.family = NewFamily(members, e.clock, cfg.MemberNumber, e.logger)
	return e
}

func (e *Engine) Config() Config           { return e.cfg }
func (e *Engine) Calculator() Calculator   { return e.calc }
func (e *Engine) Catalog() *Catalog        { return e.catalog }
func (e *Engine) Family() *Family          { return e.family }
func (e *Engine) Machine() *Machine        { return e.machine }
func (e *Engine) Today() time.Time         { return e.clock.Today() }
func (e *Engine) Thresholds() Thresholds   { return e.cfg.Thresholds(e.clock.Today()) }
func (e *Engine) Members() MemberStore     { return e.members }
func (e *Engine) Ledger() TransactionStore { return e.transactions }

// Read returns the membership of uid. Accounts without a row get a
// placeholder for which IsNew reports true.
func (e *Engine) Read(ctx context.Context, uid int64) (*Membership, error) {
	if uid <= 0 {
		return nil, ErrInvalidUID
	}
	m, err := e.members.GetMember(ctx, uid)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			return &Membership{UID: uid, Notified: e.cfg.NotifyCount, isNew: true}, nil
		}
		return nil, persistenceError("get member", err)
	}
	return m, nil
}

// Save stores an admin edit. An expiration after today forces the row to
// active. Family plans carry the change to every linked account.
func (e *Engine) Save(ctx context.Context, m *Membership) (*Membership, error) {
	if m.UID <= 0 {
		return nil, ErrInvalidUID
	}
	if err := validator.Apply(
		validator.Required("plan_id", m.PlanID),
		validator.RequiredDate("expires", m.Expires),
		validator.InList("status", m.Status, allStatuses),
		validator.Min("notified", m.Notified, 0),
		validator.ValidUUID("guid", m.GUID),
	); err != nil {
		return nil, err
	}

	plan, err := e.catalog.Get(ctx, m.PlanID)
	if err != nil {
		return nil, err
	}
	prev, err := e.Read(ctx, m.UID)
	if err != nil {
		return nil, err
	}

	today := e.clock.Today()
	next := m.Clone()
	next.Joined = Date(next.Joined)
	next.Expires = Date(next.Expires)
	if prev.IsNew() {
		if next.Joined.IsZero() {
			next.Joined = today
		}
		if next.Number == "" {
			next.Number = e.cfg.MemberNumber(next.UID)
		}
		if next.GUID == "" {
			next.GUID = NewGUID()
		}
	} else if next.GUID == "" {
		next.GUID = prev.GUID
	}
	if next.Expires.After(today) {
		next.Status = StatusActive
	}

	rows, err := e.family.Propagate(ctx, next, plan)
	if err != nil {
		return nil, err
	}

	e.switchPlan(ctx, prev, next, plan, rows)
	if prev.IsNew() || prev.Status != next.Status {
		e.applyEffects(ctx, adminEvent(next.Status), next.Status, plan, rows)
	}

	e.logger.InfoContext(ctx, "membership saved",
		logger.UID(next.UID), logger.PlanID(next.PlanID), logger.Status(next.Status),
		logger.Date("expires", next.Expires), logger.Count("rows", len(rows)))
	return next, nil
}

// AddRequest describes a purchase, manual renewal or import.
type AddRequest struct {
	UID    int64
	PlanID string
	// Expires overrides the calculated expiration when set.
	Expires    time.Time
	Amount     int64
	Gateway    string
	ExternalID string
	Comment    string
	// By is the acting account; zero or negative means the system.
	By      int64
	IsTrial bool
}

// Add renews or creates the membership, propagates it to the family and
// records a ledger entry.
func (e *Engine) Add(ctx context.Context, req AddRequest) (*Membership, error) {
	r, err := e.prepareRenewal(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := e.applyRenewal(ctx, r, req); err != nil {
		return nil, err
	}
	if err := e.transactions.RecordTransaction(ctx, r.ledgerEntry(req)); err != nil {
		e.logger.ErrorContext(ctx, "failed to record transaction",
			logger.UID(r.next.UID), logger.PlanID(r.plan.ID), logger.Error(err))
		return r.next, persistenceError("record transaction", err)
	}
	return r.next, nil
}

func (req AddRequest) gateway() string {
	if req.Gateway == "" {
		return "manual"
	}
	return req.Gateway
}

// renewal is a computed but not yet stored renewal.
type renewal struct {
	plan  *Plan
	prev  *Membership
	next  *Membership
	today time.Time
}

func (r *renewal) ledgerEntry(req AddRequest) *Transaction {
	return &Transaction{
		Date:       r.today,
		By:         req.By,
		UID:        r.next.UID,
		PlanID:     r.plan.ID,
		Gateway:    req.gateway(),
		Amount:     req.Amount,
		NewExpires: r.next.Expires,
		ExternalID: req.ExternalID,
		Comment:    req.Comment,
	}
}

func (e *Engine) prepareRenewal(ctx context.Context, req AddRequest) (*renewal, error) {
	if req.UID <= 0 {
		return nil, ErrInvalidUID
	}
	if err := validator.Apply(
		validator.Required("plan_id", req.PlanID),
		validator.Min("amount", req.Amount, 0),
	); err != nil {
		return nil, err
	}

	plan, err := e.catalog.Get(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	prev, err := e.Read(ctx, req.UID)
	if err != nil {
		return nil, err
	}

	today := e.clock.Today()
	status, err := e.machine.Fire(prev, EventRenew, today)
	if err != nil {
		return nil, err
	}

	next := prev.Clone()
	next.PlanID = plan.ID
	next.Status = status
	next.Notified = e.cfg.NotifyCount
	next.IsTrial = req.IsTrial
	next.Expires = Date(req.Expires)
	if next.Expires.IsZero() {
		next.Expires = e.calc.Next(plan, prev.Expires, today)
	}
	if prev.IsNew() {
		next.Joined = today
		next.Number = e.cfg.MemberNumber(next.UID)
		next.GUID = NewGUID()
	}
	return &renewal{plan: plan, prev: prev, next: next, today: today}, nil
}

func (e *Engine) applyRenewal(ctx context.Context, r *renewal, req AddRequest) error {
	rows, err := e.family.Propagate(ctx, r.next, r.plan)
	if err != nil {
		return err
	}

	e.switchPlan(ctx, r.prev, r.next, r.plan, rows)
	e.applyEffects(ctx, EventRenew, StatusActive, r.plan, rows)

	e.logger.InfoContext(ctx, "membership renewed",
		logger.UID(r.next.UID), logger.PlanID(r.plan.ID),
		logger.Date("expires", r.next.Expires), slog.String("gateway", req.gateway()),
		slog.Bool("new", r.prev.IsNew()), logger.Count("rows", len(rows)))
	return nil
}

// Purchase is the payment callback payload.
type Purchase struct {
	UID        int64
	PlanID     string
	Amount     int64
	Gateway    string
	ExternalID string
}

// RecordPurchase checks eligibility, renews the membership and returns the
// new expiration.
//
// A purchase carrying an ExternalID is recorded at most once per gateway. The
// ledger entry is written before the member row, so a repeated notification
// either returns the stored expiration or finishes the interrupted renewal.
func (e *Engine) RecordPurchase(ctx context.Context, p Purchase) (time.Time, error) {
	req := AddRequest{
		UID:        p.UID,
		PlanID:     p.PlanID,
		Amount:     p.Amount,
		Gateway:    p.Gateway,
		ExternalID: p.ExternalID,
	}
	if p.ExternalID != "" {
		prior, err := e.transactions.FindTransaction(ctx, req.gateway(), p.ExternalID)
		switch {
		case err == nil:
			return e.resumePurchase(ctx, req, prior)
		case !errors.Is(err, ErrTransactionNotFound):
			return time.Time{}, persistenceError("find transaction", err)
		}
	}

	if err := e.CanRenew(ctx, p.UID, p.PlanID); err != nil {
		return time.Time{}, err
	}
	r, err := e.prepareRenewal(ctx, req)
	if err != nil {
		return time.Time{}, err
	}
	if err := e.transactions.RecordTransaction(ctx, r.ledgerEntry(req)); err != nil {
		e.logger.ErrorContext(ctx, "failed to record transaction",
			logger.UID(p.UID), logger.PlanID(p.PlanID), logger.Error(err))
		return time.Time{}, persistenceError("record transaction", err)
	}
	if err := e.applyRenewal(ctx, r, req); err != nil {
		return time.Time{}, err
	}
	return r.next.Expires, nil
}

func (e *Engine) resumePurchase(ctx context.Context, req AddRequest, prior *Transaction) (time.Time, error) {
	m, err := e.Read(ctx, prior.UID)
	if err != nil {
		return time.Time{}, err
	}
	if !m.IsNew() && !m.Expires.Before(prior.NewExpires) {
		e.logger.InfoContext(ctx, "duplicate purchase ignored",
			logger.UID(prior.UID), slog.String("gateway", prior.Gateway), slog.String("external_id", prior.ExternalID))
		return prior.NewExpires, nil
	}

	req.UID = prior.UID
	req.PlanID = prior.PlanID
	req.Expires = prior.NewExpires
	r, err := e.prepareRenewal(ctx, req)
	if err != nil {
		return time.Time{}, err
	}
	if err := e.applyRenewal(ctx, r, req); err != nil {
		return time.Time{}, err
	}
	e.logger.InfoContext(ctx, "interrupted purchase completed",
		logger.UID(prior.UID), slog.String("external_id", prior.ExternalID))
	return r.next.Expires, nil
}

// CanRenew returns nil when uid may buy planID today.
func (e *Engine) CanRenew(ctx context.Context, uid int64, planID string) error {
	plan, err := e.catalog.Get(ctx, planID)
	if err != nil {
		return err
	}
	if !plan.Enabled {
		return ErrPlanDisabled
	}
	m, err := e.Read(ctx, uid)
	if err != nil {
		return err
	}
	if !m.IsNew() && m.Status != StatusDropped && m.Expires.After(e.Thresholds().BeginRenewal) {
		return ErrRenewalTooEarly
	}
	if m.IsNew() && e.cfg.RequireApplication && e.applications != nil {
		ok, err := e.applications.HasApplied(ctx, uid)
		if err != nil {
			return persistenceError("check application", err)
		}
		if !ok {
			return ErrApplicationRequired
		}
	}
	return nil
}

// Price quotes the fee uid would pay for planID today.
func (e *Engine) Price(ctx context.Context, uid int64, planID string) (int64, error) {
	plan, err := e.catalog.Get(ctx, planID)
	if err != nil {
		return 0, err
	}
	m, err := e.Read(ctx, uid)
	if err != nil {
		return 0, err
	}
	return plan.Price(m.IsNew(), e.clock.Today().Month()), nil
}

// Expire ends the membership now.
func (e *Engine) Expire(ctx context.Context, uid int64) (*Membership, error) {
	return e.transition(ctx, uid, EventExpire)
}

// Cancel is Expire.
func (e *Engine) Cancel(ctx context.Context, uid int64) (*Membership, error) {
	return e.transition(ctx, uid, EventExpire)
}

// Drop takes the membership out of the automatic lifecycle.
func (e *Engine) Drop(ctx context.Context, uid int64) (*Membership, error) {
	return e.transition(ctx, uid, EventDrop)
}

func (e *Engine) transition(ctx context.Context, uid int64, ev Event) (*Membership, error) {
	if uid <= 0 {
		return nil, ErrInvalidUID
	}
	m, err := e.members.GetMember(ctx, uid)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, persistenceError("get member", err)
	}
	to, err := e.machine.Fire(m, ev, e.clock.Today())
	if err != nil {
		return nil, err
	}
	plan := e.planOrNil(ctx, m.PlanID)

	m.Status = to
	rows, err := e.family.Propagate(ctx, m, plan)
	if err != nil {
		return nil, err
	}
	e.applyEffects(ctx, ev, to, plan, rows)

	e.logger.InfoContext(ctx, "membership status changed",
		logger.UID(uid), logger.Event(string(ev)), logger.Status(to), logger.Count("rows", len(rows)))
	return m, nil
}

// Delete removes the row of uid, which also takes it out of its family.
// The account leaves its groups and positions.
func (e *Engine) Delete(ctx context.Context, uid int64) error {
	if uid <= 0 {
		return ErrInvalidUID
	}
	m, err := e.members.GetMember(ctx, uid)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			return ErrMemberNotFound
		}
		return persistenceError("get member", err)
	}
	if err := e.members.DeleteMember(ctx, uid); err != nil {
		return persistenceError("delete member", err)
	}

	if err := e.leave(ctx, m.UID, e.planOrNil(ctx, m.PlanID), false); err != nil {
		e.logger.WarnContext(ctx, "lifecycle effects failed", logger.UID(uid), logger.Error(err))
	}
	e.logger.InfoContext(ctx, "membership deleted", logger.UID(uid), logger.GUID(m.GUID))
	return nil
}

// Link adds newUID to the family of masterUID and syncs group membership
// for every account that moved.
func (e *Engine) Link(ctx context.Context, masterUID, newUID int64) ([]*Membership, error) {
	rows, err := e.family.AddLink(ctx, masterUID, newUID)
	if err != nil {
		return nil, err
	}
	plan := e.planOrNil(ctx, rows[0].PlanID)
	for _, r := range rows {
		var effErr error
		if r.Status.IsCurrent() {
			effErr = e.join(ctx, r.UID, plan)
		} else {
			effErr = e.leave(ctx, r.UID, plan, e.cfg.DisableExpired)
		}
		if effErr != nil {
			e.logger.WarnContext(ctx, "lifecycle effects failed", logger.UID(r.UID), logger.Error(effErr))
		}
	}
	return rows, nil
}

// Unlink gives uid its own family.
func (e *Engine) Unlink(ctx context.Context, uid int64) (*Membership, error) {
	return e.family.RemoveLink(ctx, uid)
}

// Transactions lists the ledger of uid, oldest first.
func (e *Engine) Transactions(ctx context.Context, uid int64) ([]*Transaction, error) {
	txs, err := e.transactions.ListTransactions(ctx, uid)
	if err != nil {
		return nil, persistenceError("list transactions", err)
	}
	return txs, nil
}

// UpdateTransaction corrects a ledger entry.
func (e *Engine) UpdateTransaction(ctx context.Context, tx *Transaction) error {
	if err := validator.Apply(
		validator.Required("id", tx.ID),
		validator.RequiredNum("uid", tx.UID),
		validator.Required("plan_id", tx.PlanID),
		validator.RequiredDate("date", tx.Date),
	); err != nil {
		return err
	}
	if _, err := e.transactions.GetTransaction(ctx, tx.ID); err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			return ErrTransactionNotFound
		}
		return persistenceError("get transaction", err)
	}
	if err := e.transactions.UpdateTransaction(ctx, tx); err != nil {
		return persistenceError("update transaction", err)
	}
	e.logger.InfoContext(ctx, "transaction corrected", slog.String("tx_id", tx.ID), logger.UID(tx.UID))
	return nil
}

func (e *Engine) planOrNil(ctx context.Context, id string) *Plan {
	plan, err := e.catalog.Get(ctx, id)
	if err != nil {
		e.logger.WarnContext(ctx, "plan lookup failed", logger.PlanID(id), logger.Error(err))
		return nil
	}
	return plan
}

func adminEvent(to Status) Event {
	switch to {
	case StatusActive:
		return EventReactivate
	case StatusArrears:
		return EventLapse
	case StatusExpired:
		return EventExpire
	default:
		return EventDrop
	}
}
