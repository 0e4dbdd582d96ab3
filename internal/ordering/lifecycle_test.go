package ordering_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"minute/internal/models"
	"minute/internal/ordering"
	"minute/internal/storage"
	"minute/internal/storage/storagetest"
)

// recorder collects emitted events.
type recorder struct {
	mu     sync.Mutex
	events []ordering.Event
}

func (r *recorder) Notify(_ context.Context, ev ordering.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) ofType(typ ordering.EventType) []ordering.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ordering.Event
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func newLifecycle(t *testing.T, store storage.Store) (*ordering.Lifecycle, *recorder) {
	t.Helper()
	rec := &recorder{}
	l := ordering.NewLifecycle(store, nil,
		ordering.WithClock(clock),
		ordering.WithNotifier(rec),
		ordering.WithLogger(zaptest.NewLogger(t)),
	)
	return l, rec
}

func portions(t *testing.T, store storage.Queries, id uint) int {
	t.Helper()
	item, err := store.GetMenuItemByID(context.Background(), id)
	require.NoError(t, err)
	return item.AvailablePortions
}

func status(t *testing.T, store storage.Queries, id uint) models.OrderStatus {
	t.Helper()
	order, err := store.GetOrderByID(context.Background(), id)
	require.NoError(t, err)
	return order.Status
}

func TestCreateOrder(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewStore(t)
	food := storagetest.Food(t, store, "Soup", 45)
	item := storagetest.MenuItem(t, store, models.DateOf(fixedNow), food, 3)
	l, rec := newLifecycle(t, store)

	order, err := l.CreateOrder(ctx, item.ID)
	require.NoError(t, err)
	assert.NotZero(t, order.ID)
	assert.Equal(t, models.OrderStatusPreparing, order.Status)
	assert.Equal(t, fixedNow, order.CreatedAt)
	require.NotNil(t, order.MenuItem)
	assert.Equal(t, 2, order.MenuItem.AvailablePortions)
	assert.Equal(t, 2, portions(t, store, item.ID))

	stored, err := l.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPreparing, stored.Status)
	assert.Equal(t, item.ID, stored.MenuItem.ID)

	created := rec.ofType(ordering.EventOrderCreated)
	require.Len(t, created, 1)
	assert.Equal(t, order.ID, created[0].OrderID)
	assert.Equal(t, item.ID, created[0].MenuItemID)
	assert.Equal(t, models.OrderStatusPreparing, created[0].To)
}

// Two buyers race for the last portion.
func TestCreateOrder_LastPortionRace(t *testing.T) {
	store := storagetest.NewStore(t)
	food := storagetest.Food(t, store, "Soup", 45)
	item := storagetest.MenuItem(t, store, models.DateOf(fixedNow), food, 1)
	l, _ := newLifecycle(t, store)

	results := make([]error, 2)
	orders := make([]*models.Order, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			orders[i], results[i] = l.CreateOrder(context.Background(), item.ID)
		}()
	}
	wg.Wait()

	var won, soldOut int
	for i, err := range results {
		switch {
		case err == nil:
			won++
			assert.Equal(t, models.OrderStatusPreparing, orders[i].Status)
		case errors.Is(err, models.ErrSoldOut):
			soldOut++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, soldOut)
	assert.Equal(t, 0, portions(t, store, item.ID))
}

func TestCreateOrder_NoOversell(t *testing.T) {
	assertNoOversell(t, storagetest.NewStore(t))
}

func TestCreateOrder_NoOversell_Postgres(t *testing.T) {
	assertNoOversell(t, storagetest.NewPostgresStore(t))
}

func assertNoOversell(t *testing.T, store storage.Store) {
	t.Helper()
	const (
		stock  = 5
		buyers = 20
	)
	food := storagetest.Food(t, store, "Soup", 45)
	item := storagetest.MenuItem(t, store, models.DateOf(fixedNow), food, stock)
	l, rec := newLifecycle(t, store)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		won     int
		soldOut int
	)
	for range buyers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.CreateOrder(context.Background(), item.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case errors.Is(err, models.ErrSoldOut):
				soldOut++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, stock, won)
	assert.Equal(t, buyers-stock, soldOut)
	assert.Equal(t, 0, portions(t, store, item.ID))

	orders, err := l.ListOrders(context.Background(), storage.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, orders, stock)
	assert.Len(t, rec.ofType(ordering.EventOrderRejected), buyers-stock)
}

func TestCreateOrder_UnknownMenuItem(t *testing.T) {
	store := storagetest.NewStore(t)
	food := storagetest.Food(t, store, "Soup", 45)
	other := storagetest.MenuItem(t, store, models.DateOf(fixedNow), food, 4)
	l, rec := newLifecycle(t, store)

	_, err := l.CreateOrder(context.Background(), 404)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, err, models.ErrUnknownMenuItem)
	assert.Equal(t, 4, portions(t, store, other.ID))

	rejected := rec.ofType(ordering.EventOrderRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, ordering.ReasonUnknownMenuItem, rejected[0].Reason)
	assert.Empty(t, rec.ofType(ordering.EventOrderCreated))
}

func TestCreateOrder_SoldOut(t *testing.T) {
	store := storagetest.NewStore(t)
	food := storagetest.Food(t, store, "Soup", 45)
	item := storagetest.MenuItem(t, store, models.DateOf(fixedNow), food, 0)
	l, rec := newLifecycle(t, store)

	_, err := l.CreateOrder(context.Background(), item.ID)
	assert.ErrorIs(t, err, models.ErrSoldOut)
	assert.Equal(t, 0, portions(t, store, item.ID))

	rejected := rec.ofType(ordering.EventOrderRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, ordering.ReasonSoldOut, rejected[0].Reason)
	assert.Equal(t, item.ID, rejected[0].MenuItemID)
}

var errInsert = errors.New("insert failed")

type failingInsert struct {
	storage.Queries
}

func (failingInsert) InsertOrder(context.Context, *models.Order) error {
	return errInsert
}

// failingStore hands transactions a Queries whose order insert always fails.
type failingStore struct {
	*storage.GormStore
}

func (s failingStore) Transact(ctx context.Context, fn func(q storage.Queries) error) error {
	return s.GormStore.Transact(ctx, func(q storage.Queries) error {
		return fn(failingInsert{q})
	})
}

func TestCreateOrder_InsertFailureKeepsPortion(t *testing.T) {
	store := storagetest.NewStore(t)
	food := storagetest.Food(t, store, "Soup", 45)
	item := storagetest.MenuItem(t, store, models.DateOf(fixedNow), food, 1)
	l, rec := newLifecycle(t, failingStore{store})

	_, err := l.CreateOrder(context.Background(), item.ID)
	assert.ErrorIs(t, err, errInsert)
	assert.Equal(t, 1, portions(t, store, item.ID))
	assert.Empty(t, rec.ofType(ordering.EventOrderCreated))
	assert.Empty(t, rec.ofType(ordering.EventOrderRejected))
}

// A cancelled order can only be completed.
func TestAdvanceStatus_CancelledOrder(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewStore(t)
	food := storagetest.Food(t, store, "Soup", 45)
	item := storagetest.MenuItem(t, store, models.DateOf(fixedNow), food, 1)
	l, rec := newLifecycle(t, store)

	order, err := l.CreateOrder(ctx, item.ID)
	require.NoError(t, err)

	require.NoError(t, l.AdvanceStatus(ctx, order.ID, models.OrderStatusCancelled))
	assert.Equal(t, models.OrderStatusCancelled, status(t, store, order.ID))

	err = l.AdvanceStatus(ctx, order.ID, models.OrderStatusReady)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Equal(t, models.OrderStatusCancelled, status(t, store, order.ID))

	require.NoError(t, l.AdvanceStatus(ctx, order.ID, models.OrderStatusCompleted))
	assert.Equal(t, models.OrderStatusCompleted, status(t, store, order.ID))

	// Cancelling never gives the portion back.
	assert.Equal(t, 0, portions(t, store, item.ID))

	changes := rec.ofType(ordering.EventOrderStatusChanged)
	require.Len(t, changes, 2)
	assert.Equal(t, models.OrderStatusPreparing, changes[0].From)
	assert.Equal(t, models.OrderStatusCancelled, changes[0].To)
	assert.Equal(t, models.OrderStatusCompleted, changes[1].To)
	require.NotNil(t, changes[1].Order)
	assert.Equal(t, models.OrderStatusCompleted, changes[1].Order.Status)

	rejected := rec.ofType(ordering.EventTransitionRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, models.OrderStatusCancelled, rejected[0].From)
	assert.Equal(t, models.OrderStatusReady, rejected[0].To)
}

func TestAdvanceStatus_IllegalEdgesLeaveStatus(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewStore(t)
	food := storagetest.Food(t, store, "Soup", 45)
	item := storagetest.MenuItem(t, store, models.DateOf(fixedNow), food, 0)
	l, _ := newLifecycle(t, store)

	for _, from := range models.OrderStatuses {
		for _, to := range models.OrderStatuses {
			if from == to || ordering.CanTransition(from, to) {
				continue
			}
			order := storagetest.Order(t, store, item, from)
			err := l.AdvanceStatus(ctx, order.ID, to)
			assert.ErrorIs(t, err, models.ErrInvalidTransition, "%s -> %s", from, to)
			assert.Equal(t, from, status(t, store, order.ID), "%s -> %s", from, to)
		}
	}
}

func TestAdvanceStatus_SameStatusIsNoop(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewStore(t)
	food := storagetest.Food(t, store, "Soup", 45)
	item := storagetest.MenuItem(t, store, models.DateOf(fixedNow), food, 0)
	l, rec := newLifecycle(t, store)

	for _, s := range models.OrderStatuses {
		order := storagetest.Order(t, store, item, s)
		before, err := store.GetOrderByID(ctx, order.ID)
		require.NoError(t, err)

		require.NoError(t, l.AdvanceStatus(ctx, order.ID, s))
		require.NoError(t, l.AdvanceStatus(ctx, order.ID, s))

		after, err := store.GetOrderByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, before.Status, after.Status)
		assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt), "status %s was rewritten", s)
	}
	assert.Empty(t, rec.ofType(ordering.EventOrderStatusChanged))
}

func TestAdvanceStatus_CompletedIsTerminal(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewStore(t)
	food := storagetest.Food(t, store, "Soup", 45)
	item := storagetest.MenuItem(t, store, models.DateOf(fixedNow), food, 1)
	l, _ := newLifecycle(t, store)

	order, err := l.CreateOrder(ctx, item.ID)
	require.NoError(t, err)
	require.NoError(t, l.AdvanceStatus(ctx, order.ID, models.OrderStatusReady))
	require.NoError(t, l.AdvanceStatus(ctx, order.ID, models.OrderStatusCompleted))

	for _, s := range models.OrderStatuses {
		if s == models.OrderStatusCompleted {
			continue
		}
		assert.ErrorIs(t, l.AdvanceStatus(ctx, order.ID, s), models.ErrInvalidTransition, s.String())
	}
	assert.NoError(t, l.AdvanceStatus(ctx, order.ID, models.OrderStatusCompleted))
	assert.Equal(t, models.OrderStatusCompleted, status(t, store, order.ID))
}

func TestAdvanceStatus_Errors(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewStore(t)
	l, _ := newLifecycle(t, store)

	assert.ErrorIs(t, l.AdvanceStatus(ctx, 1, "served"), models.ErrInvalidStatus)
	assert.ErrorIs(t, l.AdvanceStatus(ctx, 404, models.OrderStatusReady), models.ErrNotFound)

	_, err := l.GetOrder(ctx, 404)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

// Concurrent moves out of preparing to ready and to cancelled exclude each
// other: whichever lands second is no longer a legal edge.
func TestAdvanceStatus_ConcurrentConflictingMoves(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewStore(t)
	food := storagetest.Food(t, store, "Soup", 45)
	item := storagetest.MenuItem(t, store, models.DateOf(fixedNow), food, 0)
	l, _ := newLifecycle(t, store)

	for range 10 {
		order := storagetest.Order(t, store, item, models.OrderStatusPreparing)
		targets := []models.OrderStatus{models.OrderStatusReady, models.OrderStatusCancelled}
		errs := make([]error, len(targets))

		var wg sync.WaitGroup
		for i, target := range targets {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = l.AdvanceStatus(ctx, order.ID, target)
			}()
		}
		wg.Wait()

		var ok int
		for i, err := range errs {
			if err == nil {
				ok++
				assert.Equal(t, targets[i], status(t, store, order.ID))
				continue
			}
			assert.ErrorIs(t, err, models.ErrInvalidTransition)
		}
		assert.Equal(t, 1, ok)
	}
}

// losingStore reports every status swap as lost to a concurrent writer.
type losingStore struct {
	*storage.GormStore
}

func (losingStore) CompareAndSwapOrderStatus(context.Context, uint, models.OrderStatus, models.OrderStatus) (bool, error) {
	return false, nil
}

func TestAdvanceStatus_GivesUpAfterRepeatedConflicts(t *testing.T) {
	store := storagetest.NewStore(t)
	food := storagetest.Food(t, store, "Soup", 45)
	item := storagetest.MenuItem(t, store, models.DateOf(fixedNow), food, 0)
	order := storagetest.Order(t, store, item, models.OrderStatusPreparing)
	l, rec := newLifecycle(t, losingStore{store})

	err := l.AdvanceStatus(context.Background(), order.ID, models.OrderStatusReady)
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.Equal(t, models.OrderStatusPreparing, status(t, store, order.ID))
	assert.Empty(t, rec.ofType(ordering.EventOrderStatusChanged))
}

func TestOpenOrders(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewStore(t)
	food := storagetest.Food(t, store, "Soup", 45)
	item := storagetest.MenuItem(t, store, models.DateOf(fixedNow), food, 0)
	l, _ := newLifecycle(t, store)

	first := storagetest.Order(t, store, item, models.OrderStatusReady)
	storagetest.Order(t, store, item, models.OrderStatusCompleted)
	third := storagetest.Order(t, store, item, models.OrderStatusCancelled)

	open, err := l.OpenOrders(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, first.ID, open[0].ID)
	assert.Equal(t, third.ID, open[1].ID)
	assert.Equal(t, "Soup", open[0].MenuItem.Food.Name)
}

func TestCreateOrder_RecordsSpans(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	store := storagetest.NewStore(t)
	food := storagetest.Food(t, store, "Soup", 45)
	item := storagetest.MenuItem(t, store, models.DateOf(fixedNow), food, 1)

	var created []uint
	l := ordering.NewLifecycle(store, nil,
		ordering.WithClock(clock),
		ordering.WithTracer(tp.Tracer("test")),
		ordering.WithNotifier(ordering.NotifierFunc(func(_ context.Context, ev ordering.Event) {
			if ev.Type == ordering.EventOrderCreated {
				created = append(created, ev.OrderID)
			}
		})),
	)

	order, err := l.CreateOrder(context.Background(), item.ID)
	require.NoError(t, err)
	_, err = l.CreateOrder(context.Background(), item.ID)
	require.ErrorIs(t, err, models.ErrSoldOut)
	assert.Equal(t, []uint{order.ID}, created)

	ended := spans.Ended()
	require.Len(t, ended, 2)
	for _, span := range ended {
		assert.Equal(t, "ordering.CreateOrder", span.Name())
	}
	assert.Contains(t, ended[0].Attributes(), attribute.Int64("order.id", int64(order.ID)))
	assert.Contains(t, ended[1].Attributes(), attribute.String("order.rejected", ordering.ReasonSoldOut))
}
