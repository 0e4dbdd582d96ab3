package ordering

import (
	"slices"

	"minute/internal/models"
)

// legalTransitions lists, for every status, the statuses an order may move
// to next. Staying in the same status is always allowed and is not listed.
// Completed is terminal.
var legalTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPreparing: {
		models.OrderStatusReady,
		models.OrderStatusCancelled,
		// Preparing -> Completed covers "customer informed" without a Ready step.
		models.OrderStatusCompleted,
	},
	models.OrderStatusReady: {
		models.OrderStatusCompleted,
	},
	models.OrderStatusCancelled: {
		models.OrderStatusCompleted,
	},
	models.OrderStatusCompleted: {},
}

// CanTransition reports whether an order in status from may move to status to.
func CanTransition(from, to models.OrderStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	return slices.Contains(legalTransitions[from], to)
}

// ValidateTransition returns a *models.TransitionError when the move is not allowed.
func ValidateTransition(from, to models.OrderStatus) error {
	if !CanTransition(from, to) {
		return &models.TransitionError{From: from, To: to}
	}
	return nil
}
