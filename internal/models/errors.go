package models

import (
	"errors"
	"fmt"
)

// Domain errors. All of them are caller-facing outcomes; anything else coming
// out of the store is an infrastructure failure.
var (
	// ErrNotFound is returned when a referenced entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrUnknownMenuItem is returned when an order names a missing menu item
	ErrUnknownMenuItem = fmt.Errorf("unknown menu item: %w", ErrNotFound)
	// ErrUnknownFood is returned when a menu item names a missing food
	ErrUnknownFood = fmt.Errorf("unknown food: %w", ErrNotFound)
	// ErrSoldOut is returned when a menu item has no portions left
	ErrSoldOut = errors.New("sold out")
	// ErrInactiveFood is returned when a deactivated food is referenced or edited
	ErrInactiveFood = errors.New("food is inactive")
	// ErrInvalidTransition is returned for status changes outside the lifecycle
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidStatus is returned for status names that don't exist
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrInvalidPortions is returned for negative portion allotments
	ErrInvalidPortions = errors.New("portions must not be negative")
	// ErrConflict is returned when a concurrent write kept winning
	ErrConflict = errors.New("concurrent update conflict")
)

// TransitionError describes a rejected status change.
type TransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

// Is makes errors.Is(err, ErrInvalidTransition) hold.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
