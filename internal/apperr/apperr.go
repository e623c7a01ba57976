// Package apperr classifies domain errors into the coarse kinds the façade
// layer maps onto transport codes. Callers never retry validation or
// business-rule failures; conflicts are retryable against other targets;
// infrastructure failures may be retried whole if no commit happened yet.
package apperr

import (
	"errors"

	"rideHailing/models"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindBusinessRule
	KindConflict
	KindNotFound
	KindInfrastructure
)

// KindOf inspects err and its chain and returns its classification.
// Anything unrecognized is treated as an infrastructure failure.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var insufficient *models.InsufficientFundsError
	switch {
	case errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrInvalidCoordinates):
		return KindValidation
	case errors.As(err, &insufficient),
		errors.Is(err, models.ErrDistanceExceeded),
		errors.Is(err, models.ErrCustomerBlocked),
		errors.Is(err, models.ErrDriverBlocked),
		errors.Is(err, models.ErrIllegalTransition),
		errors.Is(err, models.ErrNotAssignedDriver):
		return KindBusinessRule
	case errors.Is(err, models.ErrOrderAlreadyAccepted):
		return KindConflict
	case errors.Is(err, models.ErrCustomerNotFound),
		errors.Is(err, models.ErrDriverNotFound),
		errors.Is(err, models.ErrOrderNotFound):
		return KindNotFound
	default:
		return KindInfrastructure
	}
}

// Retryable reports whether the caller may usefully retry the same operation.
func Retryable(err error) bool {
	k := KindOf(err)
	return k == KindConflict || k == KindInfrastructure
}
