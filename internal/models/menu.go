package models

import (
	"time"
)

// Food is a catalogue entry that menu items are built from.
// Once deactivated a food can no longer be placed on the menu or edited.
type Food struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Description *string   `json:"description"`
	Price       float64   `gorm:"type:numeric(10,2);not null" json:"price"`
	IsActive    bool      `gorm:"not null" json:"isActive"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

// MenuItem offers a food on a given day with a limited number of portions.
type MenuItem struct {
	ID                uint       `gorm:"primary_key" json:"id"`
	Date              Date       `gorm:"type:varchar(10);not null;index" json:"date"`
	FoodID            uint       `gorm:"not null;index" json:"-"`
	Food              *Food      `json:"food"`
	AvailablePortions int        `gorm:"not null" json:"availablePortions"`
	CreatedAt         time.Time  `json:"-"`
	UpdatedAt         time.Time  `json:"-"`
	DeletedAt         *time.Time `sql:"index" json:"-"`
}
