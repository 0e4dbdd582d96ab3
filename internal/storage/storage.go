package storage

import (
	"context"

	"minute/internal/models"
)

// Queries is the set of operations available both on the store and inside a
// transaction. Point lookups return models.ErrNotFound when the row is absent.
type Queries interface {
	// Foods
	GetFoodByID(ctx context.Context, id uint) (*models.Food, error)
	ListFoods(ctx context.Context) ([]models.Food, error)
	InsertFood(ctx context.Context, food *models.Food) error
	UpdateFood(ctx context.Context, food *models.Food) error
	DeactivateFood(ctx context.Context, id uint) error

	// Menu items
	GetMenuItemByID(ctx context.Context, id uint) (*models.MenuItem, error)
	ListMenuItems(ctx context.Context, filter MenuItemFilter) ([]models.MenuItem, error)
	InsertMenuItem(ctx context.Context, item *models.MenuItem) error
	UpdateMenuItemPlacement(ctx context.Context, id uint, date models.Date, foodID uint) error
	DeleteMenuItem(ctx context.Context, id uint) error

	// Portion counter. DecrementPortionsIfPositive must be a single
	// conditional update; it reports false when nothing was decremented.
	DecrementPortionsIfPositive(ctx context.Context, menuItemID uint) (bool, error)
	SetPortions(ctx context.Context, menuItemID uint, portions int) error

	// Orders
	GetOrderByID(ctx context.Context, id uint) (*models.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	InsertOrder(ctx context.Context, order *models.Order) error
	// CompareAndSwapOrderStatus writes to only if the stored status is still
	// from. It reports false when the row is missing or has moved on.
	CompareAndSwapOrderStatus(ctx context.Context, id uint, from, to models.OrderStatus) (bool, error)
}

// Store is the persistence collaborator used by the ordering core and the
// catalog.
type Store interface {
	Queries

	// Transact runs fn inside one database transaction. The transaction
	// commits only if fn returns nil.
	Transact(ctx context.Context, fn func(q Queries) error) error

	// Reset drops and recreates the schema.
	Reset(ctx context.Context) error

	Close() error
}

// MenuItemFilter narrows menu item listings. Zero values match everything.
type MenuItemFilter struct {
	Date models.Date
}

// OrderFilter narrows order listings. Zero values match everything.
type OrderFilter struct {
	Status models.OrderStatus
	// OpenOnly excludes completed orders.
	OpenOnly bool
	// Date matches the date of the ordered menu item.
	Date models.Date
	// OldestFirst flips the default newest-first ordering.
	OldestFirst bool
}
