package models

import (
	"fmt"
	"strings"
	"time"
)

// Order is one portion of a menu item claimed by a customer.
type Order struct {
	ID         uint        `gorm:"primary_key" json:"id"`
	MenuItemID uint        `gorm:"not null;index" json:"-"`
	MenuItem   *MenuItem   `json:"menuItem"`
	CreatedAt  time.Time   `gorm:"not null;index" json:"createdAt"`
	UpdatedAt  time.Time   `json:"-"`
	Status     OrderStatus `gorm:"type:varchar(16);not null;index" json:"status"`
}

// OrderStatus represents the possible states of an order
type OrderStatus string

const (
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusCompleted OrderStatus = "completed"
)

// OrderStatuses lists every known status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusCancelled,
	OrderStatusCompleted,
}

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPreparing, OrderStatusReady, OrderStatusCancelled, OrderStatusCompleted:
		return true
	}
	return false
}

func (s OrderStatus) String() string {
	return string(s)
}

// ParseOrderStatus accepts a status name in any letter case.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}
