package ordering

import (
	"context"
	"time"

	"minute/internal/models"
)

// EventType names something that happened to an order.
type EventType string

const (
	EventOrderCreated       EventType = "order.created"
	EventOrderStatusChanged EventType = "order.status_changed"
	EventOrderRejected      EventType = "order.rejected"
	EventTransitionRejected EventType = "order.transition_rejected"
)

// Rejection reasons carried by EventOrderRejected.
const (
	ReasonSoldOut         = "sold_out"
	ReasonUnknownMenuItem = "unknown_menu_item"
)

// Event is emitted after the change it describes has been committed.
type Event struct {
	Type       EventType          `json:"type"`
	OrderID    uint               `json:"orderId,omitempty"`
	MenuItemID uint               `json:"menuItemId,omitempty"`
	Order      *models.Order      `json:"order,omitempty"`
	From       models.OrderStatus `json:"from,omitempty"`
	To         models.OrderStatus `json:"to,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	At         time.Time          `json:"at"`
}

// Notifier receives order events. Notify is called on the request path and
// must not block.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event)

func (f NotifierFunc) Notify(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// Notifiers fans an event out to every notifier in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, ev Event) {
	for _, n := range ns {
		if n != nil {
			n.Notify(ctx, ev)
		}
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) {}
