package models

import (
	"errors"
	"fmt"
)

// Error kinds returned by the order, reservation and inventory services.
// Callers test for them with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrCapacityExceeded  = errors.New("capacity exceeded")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrNotFound          = errors.New("not found")
	ErrLedgerWrite       = errors.New("ledger write failure")
	ErrConflict          = errors.New("concurrent update")
	ErrForbidden         = errors.New("forbidden")
)

// Validationf wraps ErrValidation with a formatted message
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf wraps ErrNotFound with a formatted message
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// CapacityError reports a reservation that does not fit on its table
type CapacityError struct {
	TableID   uint
	Requested int
	Remaining int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity exceeded: table %d has %d seats left, %d requested",
		e.TableID, e.Remaining, e.Requested)
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExceeded }

// TransitionError reports a status change the lifecycle does not allow
type TransitionError struct {
	OrderID uint
	From    OrderStatus
	To      OrderStatus
	Reason  string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("invalid transition: order %d cannot move from %s to %s", e.OrderID, e.From, e.To)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
