package ordering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"minute/internal/models"
	"minute/internal/storage"
)

// maxStatusAttempts bounds how often AdvanceStatus re-reads an order whose
// status changed between the read and the write. The longest lifecycle path
// has two edges, so a handful of attempts always suffices without outside
// interference.
const maxStatusAttempts = 4

// Lifecycle admits new orders and moves existing ones through their statuses.
type Lifecycle struct {
	store    storage.Store
	ledger   *Ledger
	notifier Notifier
	now      func() time.Time
	tracer   trace.Tracer
	logger   *zap.Logger
}

// Option configures a Lifecycle.
type Option func(*Lifecycle)

// WithNotifier wires a receiver for order events.
func WithNotifier(n Notifier) Option {
	return func(l *Lifecycle) {
		l.notifier = n
	}
}

// WithClock overrides the clock used for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) {
		l.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Lifecycle) {
		l.logger = logger
	}
}

// WithTracer sets the tracer; the global otel tracer is used otherwise.
func WithTracer(tracer trace.Tracer) Option {
	return func(l *Lifecycle) {
		l.tracer = tracer
	}
}

// NewLifecycle builds the order lifecycle over store. A nil ledger gets a
// default one sharing the lifecycle's clock.
func NewLifecycle(store storage.Store, ledger *Ledger, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		store:    store,
		notifier: nopNotifier{},
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.tracer == nil {
		l.tracer = otel.Tracer("minute/ordering")
	}
	if ledger == nil {
		ledger = NewLedger(l.now)
	}
	l.ledger = ledger
	return l
}

// CreateOrder reserves one portion of the menu item and records a new order
// in the preparing status. Reservation and insert commit together: if the
// order cannot be stored the portion is not consumed.
//
// Not idempotent: every successful call consumes a portion.
func (l *Lifecycle) CreateOrder(ctx context.Context, menuItemID uint) (*models.Order, error) {
	ctx, span := l.tracer.Start(ctx, "ordering.CreateOrder",
		trace.WithAttributes(attribute.Int64("menu_item.id", int64(menuItemID))))
	defer span.End()

	var order *models.Order
	err := l.store.Transact(ctx, func(q storage.Queries) error {
		res, err := l.ledger.Reserve(ctx, q, menuItemID)
		if err != nil {
			return err
		}
		o := &models.Order{
			MenuItemID: menuItemID,
			CreatedAt:  l.now().UTC(),
			Status:     models.OrderStatusPreparing,
		}
		if err := q.InsertOrder(ctx, o); err != nil {
			return err
		}
		o.MenuItem = res.MenuItem
		order = o
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			err = fmt.Errorf("menu item %d: %w", menuItemID, models.ErrUnknownMenuItem)
			l.reject(ctx, span, menuItemID, ReasonUnknownMenuItem)
		case errors.Is(err, models.ErrSoldOut):
			l.reject(ctx, span, menuItemID, ReasonSoldOut)
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, "create order failed")
			l.logger.Error("failed to create order", zap.Uint("menu_item_id", menuItemID), zap.Error(err))
		}
		return nil, err
	}

	span.SetAttributes(attribute.Int64("order.id", int64(order.ID)))
	l.logger.Info("order created",
		zap.Uint("order_id", order.ID),
		zap.Uint("menu_item_id", menuItemID))
	l.notifier.Notify(ctx, Event{
		Type:       EventOrderCreated,
		OrderID:    order.ID,
		MenuItemID: menuItemID,
		Order:      order,
		To:         order.Status,
		At:         order.CreatedAt,
	})
	return order, nil
}

func (l *Lifecycle) reject(ctx context.Context, span trace.Span, menuItemID uint, reason string) {
	span.SetAttributes(attribute.String("order.rejected", reason))
	l.logger.Info("order rejected",
		zap.Uint("menu_item_id", menuItemID),
		zap.String("reason", reason))
	l.notifier.Notify(ctx, Event{
		Type:       EventOrderRejected,
		MenuItemID: menuItemID,
		Reason:     reason,
		At:         l.now().UTC(),
	})
}

// AdvanceStatus moves the order to requested. Requesting the current status
// succeeds without writing, so retries are safe. The write is a
// compare-and-swap on the status that was validated; if another writer got
// there first the order is re-read and validated again.
func (l *Lifecycle) AdvanceStatus(ctx context.Context, orderID uint, requested models.OrderStatus) error {
	ctx, span := l.tracer.Start(ctx, "ordering.AdvanceStatus",
		trace.WithAttributes(
			attribute.Int64("order.id", int64(orderID)),
			attribute.String("order.requested_status", string(requested)),
		))
	defer span.End()

	if !requested.Valid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidStatus, requested)
	}

	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		order, err := l.store.GetOrderByID(ctx, orderID)
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("order %d: %w", orderID, models.ErrNotFound)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "load order failed")
			return err
		}

		current := order.Status
		if current == requested {
			return nil
		}
		if err := ValidateTransition(current, requested); err != nil {
			span.SetAttributes(attribute.String("order.status", string(current)))
			l.notifier.Notify(ctx, Event{
				Type:    EventTransitionRejected,
				OrderID: orderID,
				From:    current,
				To:      requested,
				At:      l.now().UTC(),
			})
			return err
		}

		swapped, err := l.store.CompareAndSwapOrderStatus(ctx, orderID, current, requested)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "update status failed")
			l.logger.Error("failed to update order status",
				zap.Uint("order_id", orderID), zap.Error(err))
			return err
		}
		if swapped {
			order.Status = requested
			l.logger.Info("order status changed",
				zap.Uint("order_id", orderID),
				zap.String("from", string(current)),
				zap.String("to", string(requested)))
			l.notifier.Notify(ctx, Event{
				Type:       EventOrderStatusChanged,
				OrderID:    orderID,
				MenuItemID: order.MenuItemID,
				Order:      order,
				From:       current,
				To:         requested,
				At:         l.now().UTC(),
			})
			return nil
		}
		l.logger.Debug("order status changed concurrently, revalidating",
			zap.Uint("order_id", orderID), zap.Int("attempt", attempt+1))
	}
	return fmt.Errorf("order %d: %w", orderID, models.ErrConflict)
}

// GetOrder returns the order with its menu item and food.
func (l *Lifecycle) GetOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	order, err := l.store.GetOrderByID(ctx, orderID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("order %d: %w", orderID, models.ErrNotFound)
	}
	return order, err
}

// ListOrders returns stored orders matching filter, newest first unless the
// filter asks otherwise.
func (l *Lifecycle) ListOrders(ctx context.Context, filter storage.OrderFilter) ([]models.Order, error) {
	return l.store.ListOrders(ctx, filter)
}

// OpenOrders is the kitchen queue: every order not yet completed, oldest first.
func (l *Lifecycle) OpenOrders(ctx context.Context) ([]models.Order, error) {
	return l.store.ListOrders(ctx, storage.OrderFilter{OpenOnly: true, OldestFirst: true})
}
