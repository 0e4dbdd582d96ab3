package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jinzhu/gorm"

	"minute/internal/models"
)

// GormStore implements Store on top of a GORM connection.
type GormStore struct {
	db   *gorm.DB
	inTx bool
}

// NewGormStore wraps db and migrates the schema.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	s := &GormStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

var schema = []interface{}{
	&models.Food{},
	&models.MenuItem{},
	&models.Order{},
}

func (s *GormStore) migrate() error {
	if err := s.db.AutoMigrate(schema...).Error; err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Reset drops every table and recreates the schema.
func (s *GormStore) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Children first so foreign keys never dangle.
	if err := s.db.DropTableIfExists(&models.Order{}, &models.MenuItem{}, &models.Food{}).Error; err != nil {
		return fmt.Errorf("failed to drop schema: %w", err)
	}
	return s.migrate()
}

// Close closes the underlying connection.
func (s *GormStore) Close() error {
	return s.db.Close()
}

// Transact runs fn in a transaction, rolling back on error or panic.
func (s *GormStore) Transact(ctx context.Context, fn func(q Queries) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.inTx {
		return fn(s)
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(&GormStore{db: tx, inTx: true}); err != nil {
		if rbErr := tx.Rollback().Error; rbErr != nil {
			return errors.Join(err, fmt.Errorf("failed to roll back: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// first loads one row into out and maps a missing row to models.ErrNotFound.
func first(db *gorm.DB, out interface{}, id uint) error {
	err := db.Where("id = ?", id).First(out).Error
	if gorm.IsRecordNotFoundError(err) {
		return models.ErrNotFound
	}
	return err
}

// Food operations

func (s *GormStore) GetFoodByID(ctx context.Context, id uint) (*models.Food, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var food models.Food
	if err := first(s.db, &food, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load food %d: %w", id, err)
	}
	return &food, nil
}

func (s *GormStore) ListFoods(ctx context.Context) ([]models.Food, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	foods := []models.Food{}
	if err := s.db.Order("name ASC").Order("id ASC").Find(&foods).Error; err != nil {
		return nil, fmt.Errorf("failed to list foods: %w", err)
	}
	return foods, nil
}

func (s *GormStore) InsertFood(ctx context.Context, food *models.Food) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.Create(food).Error; err != nil {
		return fmt.Errorf("failed to create food: %w", err)
	}
	return nil
}

// UpdateFood overwrites the descriptive fields of an existing food.
func (s *GormStore) UpdateFood(ctx context.Context, food *models.Food) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res := s.db.Model(&models.Food{}).Where("id = ?", food.ID).UpdateColumns(map[string]interface{}{
		"name":        food.Name,
		"description": food.Description,
		"price":       food.Price,
		"updated_at":  time.Now().UTC(),
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update food %d: %w", food.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *GormStore) DeactivateFood(ctx context.Context, id uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res := s.db.Model(&models.Food{}).Where("id = ?", id).UpdateColumns(map[string]interface{}{
		"is_active":  false,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return fmt.Errorf("failed to deactivate food %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Menu item operations

func (s *GormStore) GetMenuItemByID(ctx context.Context, id uint) (*models.MenuItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var item models.MenuItem
	if err := first(s.db.Preload("Food"), &item, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load menu item %d: %w", id, err)
	}
	return &item, nil
}

func (s *GormStore) ListMenuItems(ctx context.Context, filter MenuItemFilter) ([]models.MenuItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := s.db.Select("menu_items.*").
		Joins("JOIN foods ON foods.id = menu_items.food_id").
		Preload("Food")
	if filter.Date != "" {
		q = q.Where("menu_items.date = ?", string(filter.Date))
	}
	items := []models.MenuItem{}
	err := q.Order("menu_items.date ASC").
		Order("foods.name ASC").
		Order("menu_items.id ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list menu items: %w", err)
	}
	return items, nil
}

func (s *GormStore) InsertMenuItem(ctx context.Context, item *models.MenuItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	food := item.Food
	item.Food = nil
	err := s.db.Set("gorm:save_associations", false).Create(item).Error
	item.Food = food
	if err != nil {
		return fmt.Errorf("failed to create menu item: %w", err)
	}
	return nil
}

// UpdateMenuItemPlacement moves a menu item to another date or food. The
// portion counter is left alone.
func (s *GormStore) UpdateMenuItemPlacement(ctx context.Context, id uint, date models.Date, foodID uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res := s.db.Model(&models.MenuItem{}).Where("id = ?", id).UpdateColumns(map[string]interface{}{
		"date":       string(date),
		"food_id":    foodID,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update menu item %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteMenuItem soft-deletes the item so existing orders keep resolving it.
func (s *GormStore) DeleteMenuItem(ctx context.Context, id uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res := s.db.Where("id = ?", id).Delete(&models.MenuItem{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete menu item %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Portion counter

// DecrementPortionsIfPositive takes one portion in a single conditional
// UPDATE, so two callers can never both consume the last portion.
func (s *GormStore) DecrementPortionsIfPositive(ctx context.Context, menuItemID uint) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	res := s.db.Model(&models.MenuItem{}).
		Where("id = ? AND available_portions > 0", menuItemID).
		UpdateColumn("available_portions", gorm.Expr("available_portions - ?", 1))
	if res.Error != nil {
		return false, fmt.Errorf("failed to reserve portion of menu item %d: %w", menuItemID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) SetPortions(ctx context.Context, menuItemID uint, portions int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res := s.db.Model(&models.MenuItem{}).
		Where("id = ?", menuItemID).
		UpdateColumn("available_portions", portions)
	if res.Error != nil {
		return fmt.Errorf("failed to set portions of menu item %d: %w", menuItemID, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Order operations

// withMenuItem preloads the ordered menu item, including soft-deleted ones,
// and its food.
func withMenuItem(db *gorm.DB) *gorm.DB {
	return db.
		Preload("MenuItem", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Preload("MenuItem.Food")
}

func (s *GormStore) GetOrderByID(ctx context.Context, id uint) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var order models.Order
	if err := first(withMenuItem(s.db), &order, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load order %d: %w", id, err)
	}
	return &order, nil
}

func (s *GormStore) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := withMenuItem(s.db.Select("orders.*"))
	if filter.Status != "" {
		q = q.Where("orders.status = ?", string(filter.Status))
	}
	if filter.OpenOnly {
		q = q.Where("orders.status <> ?", string(models.OrderStatusCompleted))
	}
	if filter.Date != "" {
		q = q.Joins("JOIN menu_items ON menu_items.id = orders.menu_item_id").
			Where("menu_items.date = ?", string(filter.Date))
	}
	if filter.OldestFirst {
		q = q.Order("orders.created_at ASC").Order("orders.id ASC")
	} else {
		q = q.Order("orders.created_at DESC").Order("orders.id DESC")
	}

	orders := []models.Order{}
	if err := q.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *GormStore) InsertOrder(ctx context.Context, order *models.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	item := order.MenuItem
	order.MenuItem = nil
	err := s.db.Set("gorm:save_associations", false).Create(order).Error
	order.MenuItem = item
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (s *GormStore) CompareAndSwapOrderStatus(ctx context.Context, id uint, from, to models.OrderStatus) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	res := s.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", id, string(from)).
		UpdateColumns(map[string]interface{}{
			"status":     string(to),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to update status of order %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}
