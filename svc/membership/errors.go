package membership

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

var (
	ErrPlanNotFound        = errors.New("membership: plan not found")
	ErrMemberNotFound      = errors.New("membership: member not found")
	ErrTransactionNotFound = errors.New("membership: transaction not found")
	ErrPositionNotFound    = errors.New("membership: position not found")
	ErrPlanHasMembers      = errors.New("membership: plan has members and no transfer target was given")
	ErrInvalidTransfer     = errors.New("membership: cannot transfer members to the plan being deleted")
	ErrPlanDisabled        = errors.New("membership: plan is not available")
	ErrRenewalTooEarly     = errors.New("membership: membership is not yet eligible for renewal")
	ErrApplicationRequired = errors.New("membership: an application is required before purchase")
	ErrSelfLink            = errors.New("membership: cannot link an account to itself")
	ErrInvalidUID          = errors.New("membership: invalid account id")
	ErrPersistence         = errors.New("membership: storage failure")
)

// TransitionError reports an event that cannot be applied to a status.
type TransitionError struct {
	From     Status
	Event    Event
	Rejected bool
}

func (e *TransitionError) Error() string {
	if e.Rejected {
		return fmt.Sprintf("membership: transition from %q on %q was rejected by guards", e.From, e.Event)
	}
	return fmt.Sprintf("membership: no transition from %q on %q", e.From, e.Event)
}

func IsTransitionError(err error) bool {
	var e *TransitionError
	return errors.As(err, &e)
}

// ConsistencyError reports a family group whose rows disagree on shared fields.
type ConsistencyError struct {
	GUID     string
	Diverged map[int64]error
}

func (e *ConsistencyError) Error() string {
	uids := slices.Sorted(maps.Keys(e.Diverged))
	return fmt.Sprintf("membership: family %s is inconsistent for accounts %v", e.GUID, uids)
}

func IsConsistencyError(err error) bool {
	var e *ConsistencyError
	return errors.As(err, &e)
}

func persistenceError(op string, err error) error {
	return errors.Join(ErrPersistence, fmt.Errorf("%s: %w", op, err))
}
