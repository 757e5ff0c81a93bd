package membership

import (
	"slices"
	"time"
)

// Status is the lifecycle state of a membership.
type Status string

const (
	StatusActive  Status = "active"
	StatusArrears Status = "arrears"
	StatusExpired Status = "expired"
	StatusDropped Status = "dropped"
)

var allStatuses = []Status{StatusActive, StatusArrears, StatusExpired, StatusDropped}

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	return slices.Contains(allStatuses, s)
}

// IsCurrent reports whether the account still counts as a member.
func (s Status) IsCurrent() bool {
	return s == StatusActive || s == StatusArrears
}

// rank orders the time-driven states. The sweep only ever moves a row to a
// higher rank.
func (s Status) rank() int {
	switch s {
	case StatusActive:
		return 0
	case StatusArrears:
		return 1
	case StatusExpired:
		return 2
	default:
		return 3
	}
}

// FeePair holds the price for new and renewing members.
type FeePair struct {
	New   int64 `json:"new" yaml:"new"`
	Renew int64 `json:"renew" yaml:"renew"`
}

// Fees is a plan's fee schedule in the smallest currency unit.
// Rolling plans use Fixed; fixed-period plans use Monthly, indexed January first.
type Fees struct {
	Fixed      FeePair   `json:"fixed" yaml:"fixed"`
	Monthly    []FeePair `json:"monthly,omitempty" yaml:"monthly,omitempty"`
	Processing int64     `json:"processing" yaml:"processing"`
}

// Plan is a purchasable membership tier.
type Plan struct {
	ID          string `json:"id" yaml:"id"`
	ShortName   string `json:"short_name" yaml:"short_name"`
	LongName    string `json:"long_name,omitempty" yaml:"long_name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	AccessGroup string `json:"access_group,omitempty" yaml:"access_group,omitempty"`

	// RenewalMonth is zero for rolling plans. Fixed-period plans expire on the
	// last day of the month before it.
	RenewalMonth     time.Month `json:"renewal_month" yaml:"renewal_month"`
	ExpireEndOfMonth bool       `json:"expire_end_of_month" yaml:"expire_end_of_month"`
	Fees             Fees       `json:"fees" yaml:"fees"`

	IsFamily             bool `json:"is_family" yaml:"is_family"`
	NotificationsEnabled bool `json:"notifications_enabled" yaml:"notifications_enabled"`
}

// Membership is one account's membership row.
type Membership struct {
	UID      int64     `json:"uid"`
	PlanID   string    `json:"plan_id"`
	Joined   time.Time `json:"joined"`
	Expires  time.Time `json:"expires"`
	Status   Status    `json:"status"`
	GUID     string    `json:"guid"`
	Number   string    `json:"number,omitempty"`
	Notified int       `json:"notified"`
	IsTrial  bool      `json:"is_trial"`

	isNew bool
}

// IsNew reports whether the value is the placeholder returned for an account
// that has no membership row yet.
func (m *Membership) IsNew() bool {
	return m.isNew
}

func (m *Membership) Clone() *Membership {
	c := *m
	return &c
}

// adopt copies the fields a family shares from src.
func (m *Membership) adopt(src *Membership) {
	m.PlanID = src.PlanID
	m.Expires = src.Expires
	m.Status = src.Status
	m.Notified = src.Notified
	m.IsTrial = src.IsTrial
}

// sharesStateWith reports whether the family-shared fields match.
func (m *Membership) sharesStateWith(o *Membership) bool {
	return m.PlanID == o.PlanID &&
		m.Expires.Equal(o.Expires) &&
		m.Status == o.Status &&
		m.Notified == o.Notified &&
		m.IsTrial == o.IsTrial
}

// Transaction records a payment, manual renewal or import.
type Transaction struct {
	ID         string    `json:"id"`
	Date       time.Time `json:"date"`
	By         int64     `json:"by"`
	UID        int64     `json:"uid"`
	PlanID     string    `json:"plan_id"`
	Gateway    string    `json:"gateway"`
	Amount     int64     `json:"amount"`
	NewExpires time.Time `json:"new_expires"`
	ExternalID string    `json:"external_id,omitempty"`
	Comment    string    `json:"comment,omitempty"`
}

// IsSystem reports whether the transaction was not performed by a person.
func (t *Transaction) IsSystem() bool {
	return t.By <= 0
}

// Position is an elected board or committee seat.
type Position struct {
	ID          int64  `json:"id"`
	GroupTag    string `json:"group_tag"`
	Title       string `json:"title"`
	OccupantUID int64  `json:"occupant_uid"`
	Order       int    `json:"order"`
	Enabled     bool   `json:"enabled"`
	ShowVacant  bool   `json:"show_vacant"`
	Contact     string `json:"contact,omitempty"`
	LinkedGroup string `json:"linked_group,omitempty"`
}

func (p *Position) IsVacant() bool {
	return p.OccupantUID == 0
}

// MemberFilter narrows ListMembers. Zero fields do not filter.
type MemberFilter struct {
	UIDs            []int64
	GUID            string
	PlanID          string
	Statuses        []Status
	ExcludeStatuses []Status
	// ExpiresBefore keeps rows with expires strictly before the date.
	ExpiresBefore time.Time
	// HasNotified keeps rows with a remaining reminder budget.
	HasNotified bool
}

// Match reports whether m passes the filter.
func (f MemberFilter) Match(m *Membership) bool {
	if len(f.UIDs) > 0 && !slices.Contains(f.UIDs, m.UID) {
		return false
	}
	if f.GUID != "" && m.GUID != f.GUID {
		return false
	}
	if f.PlanID != "" && m.PlanID != f.PlanID {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, m.Status) {
		return false
	}
	if slices.Contains(f.ExcludeStatuses, m.Status) {
		return false
	}
	if !f.ExpiresBefore.IsZero() && !m.Expires.Before(f.ExpiresBefore) {
		return false
	}
	if f.HasNotified && m.Notified <= 0 {
		return false
	}
	return true
}
