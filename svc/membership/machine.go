package membership

import (
	"slices"
	"time"
)

// Event drives a status transition.
type Event string

const (
	// EventRenew records a purchase or manual renewal.
	EventRenew Event = "renew"
	// EventReactivate returns a lapsed row to active after an admin edit
	// moved its expiration into the future.
	EventReactivate Event = "reactivate"
	// EventLapse moves an active row into the grace window.
	EventLapse Event = "lapse"
	// EventExpire ends the membership. Cancellation uses the same event.
	EventExpire Event = "expire"
	// EventDrop removes the row from the automatic lifecycle.
	EventDrop Event = "drop"
)

// Guard vetoes a transition for a specific row.
type Guard func(m *Membership, today time.Time) bool

// Transition maps an event from a set of states to a target state.
type Transition struct {
	From   []Status
	To     Status
	Event  Event
	Guards []Guard
}

// Machine holds the lifecycle transition table. It is stateless; the current
// state is the row's Status.
type Machine struct {
	transitions map[Event][]Transition
}

// NewMachine builds the default lifecycle:
//
//	renew:      any → active
//	reactivate: arrears | expired | dropped → active
//	lapse:      active → arrears (only once expires is in the past)
//	expire:     active | arrears → expired
//	drop:       active | arrears | expired → dropped
func NewMachine() *Machine {
	m := &Machine{transitions: make(map[Event][]Transition)}
	m.AddTransition(Transition{
		From:  allStatuses,
		To:    StatusActive,
		Event: EventRenew,
	})
	m.AddTransition(Transition{
		From:  []Status{StatusArrears, StatusExpired, StatusDropped},
		To:    StatusActive,
		Event: EventReactivate,
	})
	m.AddTransition(Transition{
		From:   []Status{StatusActive},
		To:     StatusArrears,
		Event:  EventLapse,
		Guards: []Guard{expiredBefore},
	})
	m.AddTransition(Transition{
		From:  []Status{StatusActive, StatusArrears},
		To:    StatusExpired,
		Event: EventExpire,
	})
	m.AddTransition(Transition{
		From:  []Status{StatusActive, StatusArrears, StatusExpired},
		To:    StatusDropped,
		Event: EventDrop,
	})
	return m
}

// AddTransition registers t. Earlier transitions win when several match.
func (m *Machine) AddTransition(t Transition) {
	m.transitions[t.Event] = append(m.transitions[t.Event], t)
}

// Fire returns the status mem moves to on ev, or a *TransitionError.
// A row that does not exist yet may only be renewed.
func (m *Machine) Fire(mem *Membership, ev Event, today time.Time) (Status, error) {
	from := mem.Status
	if mem.IsNew() {
		if ev == EventRenew {
			return StatusActive, nil
		}
		return "", &TransitionError{From: from, Event: ev}
	}

	matched := false
	for _, t := range m.transitions[ev] {
		if !slices.Contains(t.From, from) {
			continue
		}
		matched = true
		if passes(t.Guards, mem, today) {
			return t.To, nil
		}
	}
	return "", &TransitionError{From: from, Event: ev, Rejected: matched}
}

// CanFire reports whether Fire would succeed.
func (m *Machine) CanFire(mem *Membership, ev Event, today time.Time) bool {
	_, err := m.Fire(mem, ev, today)
	return err == nil
}

// Events lists the events that can currently be fired for mem.
func (m *Machine) Events(mem *Membership, today time.Time) []Event {
	var out []Event
	for _, ev := range []Event{EventRenew, EventReactivate, EventLapse, EventExpire, EventDrop} {
		if m.CanFire(mem, ev, today) {
			out = append(out, ev)
		}
	}
	return out
}

func passes(guards []Guard, mem *Membership, today time.Time) bool {
	for _, g := range guards {
		if g != nil && !g(mem, today) {
			return false
		}
	}
	return true
}

func expiredBefore(m *Membership, today time.Time) bool {
	return m.Expires.Before(Date(today))
}

// sweepEvent picks the forward move, if any, the sweep applies to a row.
func sweepEvent(current, derived Status) (Event, bool) {
	if current == StatusDropped || derived.rank() <= current.rank() {
		return "", false
	}
	if derived == StatusArrears {
		return EventLapse, true
	}
	return EventExpire, true
}
