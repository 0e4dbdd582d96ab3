package storage

import (
	"context"
	"fmt"
	"time"

	"minute/internal/models"
)

// Seed fills an empty schema with demo data: four foods (one inactive),
// menu items for today and tomorrow (one sold out) and one order in every
// status. It runs in a single transaction.
func Seed(ctx context.Context, store Store, now time.Time) error {
	return store.Transact(ctx, func(q Queries) error {
		foods := []*models.Food{
			{Name: "Chicken schnitzel", Description: strPtr("Served with potatoes"), Price: 129, IsActive: true},
			{Name: "Pasta carbonara", Description: strPtr("Classic Italian pasta"), Price: 119, IsActive: true},
			{Name: "Caesar salad", Description: strPtr("Chicken, croutons, parmesan"), Price: 99, IsActive: true},
			{Name: "Goulash", Description: strPtr("Beef goulash with bread"), Price: 135, IsActive: false},
		}
		for _, food := range foods {
			if err := q.InsertFood(ctx, food); err != nil {
				return fmt.Errorf("seed food %q: %w", food.Name, err)
			}
		}

		today := models.DateOf(now)
		tomorrow := today.AddDays(1)
		items := []*models.MenuItem{
			{Date: today, FoodID: foods[0].ID, AvailablePortions: 10},
			{Date: today, FoodID: foods[1].ID, AvailablePortions: 0},
			{Date: today, FoodID: foods[2].ID, AvailablePortions: 5},
			{Date: tomorrow, FoodID: foods[0].ID, AvailablePortions: 8},
		}
		for _, item := range items {
			if err := q.InsertMenuItem(ctx, item); err != nil {
				return fmt.Errorf("seed menu item: %w", err)
			}
		}

		orders := []*models.Order{
			{MenuItemID: items[0].ID, Status: models.OrderStatusPreparing},
			{MenuItemID: items[2].ID, Status: models.OrderStatusReady},
			{MenuItemID: items[0].ID, Status: models.OrderStatusCancelled},
			{MenuItemID: items[2].ID, Status: models.OrderStatusCompleted},
		}
		for i, order := range orders {
			order.CreatedAt = now.UTC().Add(time.Duration(i-len(orders)) * time.Minute)
			if err := q.InsertOrder(ctx, order); err != nil {
				return fmt.Errorf("seed order: %w", err)
			}
		}
		return nil
	})
}

// SeedIfEmpty seeds only when no food exists yet and reports whether it did.
func SeedIfEmpty(ctx context.Context, store Store, now time.Time) (bool, error) {
	foods, err := store.ListFoods(ctx)
	if err != nil {
		return false, err
	}
	if len(foods) > 0 {
		return false, nil
	}
	return true, Seed(ctx, store, now)
}

func strPtr(s string) *string {
	return &s
}
