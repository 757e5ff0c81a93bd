package membership

import "context"

// PlanStore persists plans.
type PlanStore interface {
	GetPlan(ctx context.Context, id string) (*Plan, error)
	ListPlans(ctx context.Context) ([]*Plan, error)
	SavePlan(ctx context.Context, plan *Plan) error
	// DeletePlan removes the plan. A non-empty transferTo first moves every
	// member to that plan; both steps happen atomically.
	DeletePlan(ctx context.Context, id, transferTo string) error
	CountMembers(ctx context.Context, planID string) (int, error)
}

// MemberStore persists membership rows.
type MemberStore interface {
	GetMember(ctx context.Context, uid int64) (*Membership, error)
	// SaveMembers upserts every row or none.
	SaveMembers(ctx context.Context, members ...*Membership) error
	DeleteMember(ctx context.Context, uid int64) error
	ListFamily(ctx context.Context, guid string) ([]*Membership, error)
	ListMembers(ctx context.Context, filter MemberFilter) ([]*Membership, error)
	// DecrementNotified lowers each row's reminder budget by one, never below zero.
	DecrementNotified(ctx context.Context, uids ...int64) error
}

// TransactionStore is the append-only ledger.
type TransactionStore interface {
	RecordTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	// FindTransaction looks an entry up by its payment gateway reference.
	FindTransaction(ctx context.Context, gateway, externalID string) (*Transaction, error)
	ListTransactions(ctx context.Context, uid int64) ([]*Transaction, error)
	// UpdateTransaction is the admin correction path.
	UpdateTransaction(ctx context.Context, tx *Transaction) error
}

// PositionStore persists board and committee positions.
type PositionStore interface {
	GetPosition(ctx context.Context, id int64) (*Position, error)
	SavePosition(ctx context.Context, p *Position) error
	ListPositions(ctx context.Context, groupTag string) ([]*Position, error)
	ListPositionsByOccupant(ctx context.Context, uid int64) ([]*Position, error)
}

// GroupManager adds and removes accounts from host groups.
type GroupManager interface {
	AddToGroup(ctx context.Context, groupID string, uid int64) error
	RemoveFromGroup(ctx context.Context, groupID string, uid int64) error
}

// GroupDirectory lists the accounts in a host group.
type GroupDirectory interface {
	ListGroupMembers(ctx context.Context, groupID string) ([]int64, error)
}

// AccountDisabler disables host accounts.
type AccountDisabler interface {
	DisableAccount(ctx context.Context, uid int64) error
}

// ReminderClearer drops pending expiration reminders for an account.
type ReminderClearer interface {
	Clear(ctx context.Context, uid int64) error
}

// PositionReleaser vacates every position an account holds.
type PositionReleaser interface {
	ReleaseAll(ctx context.Context, uid int64) error
}

// ApplicationChecker reports whether an account has completed the membership application.
type ApplicationChecker interface {
	HasApplied(ctx context.Context, uid int64) (bool, error)
}

// Dispatcher delivers one expiration reminder.
type Dispatcher interface {
	Dispatch(ctx context.Context, m *Membership, plan *Plan) error
}

// PlanCache is a read-through cache in front of PlanStore.
type PlanCache interface {
	Get(ctx context.Context, id string) (*Plan, bool)
	Set(ctx context.Context, plan *Plan)
	Delete(ctx context.Context, id string)
}

type nopCollaborator struct{}

func (nopCollaborator) AddToGroup(context.Context, string, int64) error      { return nil }
func (nopCollaborator) RemoveFromGroup(context.Context, string, int64) error { return nil }
func (nopCollaborator) DisableAccount(context.Context, int64) error          { return nil }
func (nopCollaborator) Clear(context.Context, int64) error                   { return nil }
func (nopCollaborator) ReleaseAll(context.Context, int64) error              { return nil }
func (nopCollaborator) Get(context.Context, string) (*Plan, bool)            { return nil, false }
func (nopCollaborator) Set(context.Context, *Plan)                           {}
func (nopCollaborator) Delete(context.Context, string)                       {}
