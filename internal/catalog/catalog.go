package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"minute/internal/models"
	"minute/internal/ordering"
	"minute/internal/storage"
)

// Service manages foods and the daily menu.
type Service struct {
	store  storage.Store
	ledger *ordering.Ledger
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates the catalog service. Portion allotments on menu edits go
// through ledger.
func NewService(store storage.Store, ledger *ordering.Ledger, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		ledger: ledger,
		now:    time.Now,
		logger: logger,
	}
}

// WithClock replaces the clock that decides what "today" is.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// FoodInput holds the editable fields of a food.
type FoodInput struct {
	Name        string
	Description *string
	Price       float64
}

func (in FoodInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if in.Price < 0 {
		return &ValidationError{Field: "price", Reason: "must not be negative"}
	}
	return nil
}

// MenuItemInput holds the editable fields of a menu item.
type MenuItemInput struct {
	Date              models.Date
	FoodID            uint
	AvailablePortions int
}

func (in MenuItemInput) validate() error {
	if _, err := models.ParseDate(string(in.Date)); err != nil {
		return &ValidationError{Field: "date", Reason: err.Error()}
	}
	if in.AvailablePortions < 0 {
		return fmt.Errorf("%w: %d", models.ErrInvalidPortions, in.AvailablePortions)
	}
	return nil
}

// ValidationError reports a malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

// Foods

// CreateFood adds a new, active food.
func (s *Service) CreateFood(ctx context.Context, in FoodInput) (*models.Food, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	food := &models.Food{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		IsActive:    true,
	}
	if err := s.store.InsertFood(ctx, food); err != nil {
		return nil, err
	}
	s.logger.Info("food created", zap.Uint("food_id", food.ID), zap.String("name", food.Name))
	return food, nil
}

// ListFoods returns every food ordered by name.
func (s *Service) ListFoods(ctx context.Context) ([]models.Food, error) {
	return s.store.ListFoods(ctx)
}

// GetFood returns one food.
func (s *Service) GetFood(ctx context.Context, id uint) (*models.Food, error) {
	food, err := s.store.GetFoodByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "food", id)
	}
	return food, nil
}

// UpdateFood edits name, description and price. Inactive foods are frozen.
func (s *Service) UpdateFood(ctx context.Context, id uint, in FoodInput) error {
	if err := in.validate(); err != nil {
		return err
	}
	return s.store.Transact(ctx, func(q storage.Queries) error {
		food, err := q.GetFoodByID(ctx, id)
		if err != nil {
			return wrapNotFound(err, "food", id)
		}
		if !food.IsActive {
			return fmt.Errorf("food %d: %w", id, models.ErrInactiveFood)
		}
		food.Name = strings.TrimSpace(in.Name)
		food.Description = in.Description
		food.Price = in.Price
		return q.UpdateFood(ctx, food)
	})
}

// DeactivateFood takes a food off the catalogue for good. Menu items that
// already reference it are kept. Deactivating twice is a no-op.
func (s *Service) DeactivateFood(ctx context.Context, id uint) error {
	if err := s.store.DeactivateFood(ctx, id); err != nil {
		return wrapNotFound(err, "food", id)
	}
	s.logger.Info("food deactivated", zap.Uint("food_id", id))
	return nil
}

// Menu items

// CreateMenuItem puts an active food on the menu for a day.
func (s *Service) CreateMenuItem(ctx context.Context, in MenuItemInput) (*models.MenuItem, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var item *models.MenuItem
	err := s.store.Transact(ctx, func(q storage.Queries) error {
		food, err := activeFood(ctx, q, in.FoodID)
		if err != nil {
			return err
		}
		item = &models.MenuItem{
			Date:              in.Date,
			FoodID:            food.ID,
			AvailablePortions: in.AvailablePortions,
		}
		if err := q.InsertMenuItem(ctx, item); err != nil {
			return err
		}
		item.Food = food
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("menu item created",
		zap.Uint("menu_item_id", item.ID),
		zap.String("date", item.Date.String()),
		zap.Int("portions", item.AvailablePortions))
	return item, nil
}

// ListMenuItems returns menu items ordered by date and food name.
func (s *Service) ListMenuItems(ctx context.Context, filter storage.MenuItemFilter) ([]models.MenuItem, error) {
	return s.store.ListMenuItems(ctx, filter)
}

// TodayMenu returns the menu for the current UTC day.
func (s *Service) TodayMenu(ctx context.Context) ([]models.MenuItem, error) {
	return s.store.ListMenuItems(ctx, storage.MenuItemFilter{Date: models.DateOf(s.now())})
}

// UpdateMenuItem moves a menu item and resets its portion allotment.
func (s *Service) UpdateMenuItem(ctx context.Context, id uint, in MenuItemInput) error {
	if err := in.validate(); err != nil {
		return err
	}
	return s.store.Transact(ctx, func(q storage.Queries) error {
		if _, err := q.GetMenuItemByID(ctx, id); err != nil {
			return wrapNotFound(err, "menu item", id)
		}
		if _, err := activeFood(ctx, q, in.FoodID); err != nil {
			return err
		}
		if err := q.UpdateMenuItemPlacement(ctx, id, in.Date, in.FoodID); err != nil {
			return err
		}
		return s.ledger.Allot(ctx, q, id, in.AvailablePortions)
	})
}

// DeleteMenuItem removes a menu item from the menu. Orders placed for it stay
// readable.
func (s *Service) DeleteMenuItem(ctx context.Context, id uint) error {
	if err := s.store.DeleteMenuItem(ctx, id); err != nil {
		return wrapNotFound(err, "menu item", id)
	}
	return nil
}

// activeFood loads a food that may be referenced by a menu item.
func activeFood(ctx context.Context, q storage.Queries, id uint) (*models.Food, error) {
	food, err := q.GetFoodByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("food %d: %w", id, models.ErrUnknownFood)
	}
	if err != nil {
		return nil, err
	}
	if !food.IsActive {
		return nil, fmt.Errorf("food %d: %w", id, models.ErrInactiveFood)
	}
	return food, nil
}

func wrapNotFound(err error, kind string, id uint) error {
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("%s %d: %w", kind, id, models.ErrNotFound)
	}
	return err
}
