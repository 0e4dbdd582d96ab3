// Package storagetest provides stores and fixtures for tests. Stores are
// SQLite-backed unless a test asks for Postgres.
package storagetest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"minute/internal/database"
	"minute/internal/models"
	"minute/internal/storage"
)

// NewStore opens a migrated store on a fresh SQLite file that is removed with
// the test's temp dir.
func NewStore(t testing.TB) *storage.GormStore {
	t.Helper()
	db, err := database.Open(database.Config{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "minute.db"),
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	store, err := storage.NewGormStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// PostgresDSNEnv names the variable holding a disposable Postgres database
// for tests. Tests needing Postgres are skipped when it is unset.
const PostgresDSNEnv = "MINUTE_TEST_POSTGRES_DSN"

// NewPostgresStore opens a store on the database named by PostgresDSNEnv and
// resets its schema. The database is wiped again on cleanup.
func NewPostgresStore(t testing.TB) *storage.GormStore {
	t.Helper()
	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}
	db, err := database.Open(database.Config{
		Driver:       database.DriverPostgres,
		DSN:          dsn,
		MaxOpenConns: 16,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	store, err := storage.NewGormStore(db)
	require.NoError(t, err)
	require.NoError(t, store.Reset(context.Background()))
	t.Cleanup(func() {
		_ = store.Reset(context.Background())
		_ = store.Close()
	})
	return store
}

// Food inserts an active food.
func Food(t testing.TB, store storage.Queries, name string, price float64) *models.Food {
	t.Helper()
	food := &models.Food{Name: name, Price: price, IsActive: true}
	require.NoError(t, store.InsertFood(context.Background(), food))
	return food
}

// MenuItem inserts a menu item for food on date with the given portions.
func MenuItem(t testing.TB, store storage.Queries, date models.Date, food *models.Food, portions int) *models.MenuItem {
	t.Helper()
	item := &models.MenuItem{Date: date, FoodID: food.ID, AvailablePortions: portions}
	require.NoError(t, store.InsertMenuItem(context.Background(), item))
	item.Food = food
	return item
}

// Order inserts an order in the given status without touching portions.
func Order(t testing.TB, store storage.Queries, item *models.MenuItem, status models.OrderStatus) *models.Order {
	t.Helper()
	order := &models.Order{MenuItemID: item.ID, Status: status}
	require.NoError(t, store.InsertOrder(context.Background(), order))
	return order
}
