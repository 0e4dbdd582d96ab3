package ordering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"minute/internal/models"
)

// PortionCounter is the slice of the store the ledger works against. It is
// usually the transaction-bound storage.Queries of the caller.
type PortionCounter interface {
	GetMenuItemByID(ctx context.Context, id uint) (*models.MenuItem, error)
	DecrementPortionsIfPositive(ctx context.Context, menuItemID uint) (bool, error)
	SetPortions(ctx context.Context, menuItemID uint, portions int) error
}

// Reservation is proof that one portion of a menu item was taken.
type Reservation struct {
	MenuItemID uint
	// MenuItem is the item as seen right after the decrement.
	MenuItem   *models.MenuItem
	ReservedAt time.Time
}

// Ledger is the only writer of menu item portion counters.
//
// Portions only ever go down through Reserve. Cancelling an order does not
// give its portion back; there is deliberately no release operation.
type Ledger struct {
	now func() time.Time
}

// NewLedger creates a ledger stamping reservations with now.
func NewLedger(now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{now: now}
}

// Reserve takes one portion of the menu item. It fails with
// models.ErrNotFound when the item does not exist and models.ErrSoldOut when
// no portion is left; in both cases nothing is written.
func (l *Ledger) Reserve(ctx context.Context, q PortionCounter, menuItemID uint) (Reservation, error) {
	taken, err := q.DecrementPortionsIfPositive(ctx, menuItemID)
	if err != nil {
		return Reservation{}, err
	}

	item, err := q.GetMenuItemByID(ctx, menuItemID)
	if !taken {
		switch {
		case errors.Is(err, models.ErrNotFound):
			return Reservation{}, fmt.Errorf("menu item %d: %w", menuItemID, models.ErrNotFound)
		case err != nil:
			return Reservation{}, err
		}
		return Reservation{}, fmt.Errorf("menu item %d: %w", menuItemID, models.ErrSoldOut)
	}
	if err != nil {
		return Reservation{}, err
	}

	return Reservation{
		MenuItemID: menuItemID,
		MenuItem:   item,
		ReservedAt: l.now().UTC(),
	}, nil
}

// Allot sets the number of portions a menu item has left. It is the
// administrative counterpart of Reserve, used when the menu is edited.
func (l *Ledger) Allot(ctx context.Context, q PortionCounter, menuItemID uint, portions int) error {
	if portions < 0 {
		return fmt.Errorf("%w: %d", models.ErrInvalidPortions, portions)
	}
	return q.SetPortions(ctx, menuItemID, portions)
}
