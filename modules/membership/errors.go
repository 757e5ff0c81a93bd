package membership

import (
	"errors"

	"github.com/dmitrymomot/memberkit/core"
	domain "github.com/dmitrymomot/memberkit/svc/membership"
)

// mapError turns engine errors into HTTP errors. Validation errors and
// HTTPError values pass through unchanged.
func mapError(err error) error {
	var httpErr core.HTTPError
	if errors.As(err, &httpErr) {
		return err
	}
	switch {
	case errors.Is(err, domain.ErrPlanNotFound),
		errors.Is(err, domain.ErrMemberNotFound),
		errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrPositionNotFound):
		return core.ErrNotFound.WithMessage(err.Error())
	case errors.Is(err, domain.ErrInvalidUID):
		return core.ErrUnprocessableEntity.WithMessage(err.Error())
	case errors.Is(err, domain.ErrPlanHasMembers),
		errors.Is(err, domain.ErrInvalidTransfer),
		errors.Is(err, domain.ErrPlanDisabled),
		errors.Is(err, domain.ErrRenewalTooEarly),
		errors.Is(err, domain.ErrApplicationRequired),
		errors.Is(err, domain.ErrSelfLink),
		domain.IsTransitionError(err),
		domain.IsConsistencyError(err):
		return core.ErrConflict.WithMessage(err.Error())
	}
	return err
}
