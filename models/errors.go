package models

import (
	"errors"
	"fmt"
)

var (
	// ErrCustomerNotFound is returned when a customer does not exist yet.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrDriverNotFound is returned when a driver does not exist yet.
	ErrDriverNotFound = errors.New("driver not found")

	// ErrOrderNotFound is returned when an order does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrCustomerBlocked is returned for every ledger or order operation
	// attempted by a blocked customer.
	ErrCustomerBlocked = errors.New("customer is blocked")

	// ErrDriverBlocked is returned when a blocked driver tries to accept an order.
	ErrDriverBlocked = errors.New("driver is blocked")

	// ErrInvalidAmount is returned for a top-up amount outside (0, ceiling].
	ErrInvalidAmount = errors.New("invalid top-up amount")

	// ErrInvalidCoordinates is returned for latitude or longitude outside
	// the valid range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")

	// ErrDistanceExceeded is returned when the raw trip distance is over the
	// maximum; the order is rejected before any state is mutated.
	ErrDistanceExceeded = errors.New("trip distance exceeds the maximum")

	// ErrIllegalTransition is returned for an order transition attempted from
	// a non-matching state.
	ErrIllegalTransition = errors.New("illegal order state transition")

	// ErrOrderAlreadyAccepted is returned to the loser of a concurrent accept
	// race. The caller may retry against a different order.
	ErrOrderAlreadyAccepted = errors.New("order already accepted by another driver")

	// ErrNotAssignedDriver is returned when a pickup or finish is attempted by
	// a driver other than the one assigned to the order.
	ErrNotAssignedDriver = errors.New("caller is not the assigned driver")
)

// InsufficientFundsError reports a debit that would overdraw the balance.
// Deficit is the amount the customer must top up first.
type InsufficientFundsError struct {
	Deficit int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance: %d short", e.Deficit)
}
