package model

import (
	"time"

	"github.com/google/uuid"
)

// InventoryHistory is an append-only record of one stock transition.
// ProductID is not a foreign key; history outlives deleted products.
type InventoryHistory struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ProductID   uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	OldQuantity int       `gorm:"not null" json:"old_quantity"`
	NewQuantity int       `gorm:"not null" json:"new_quantity"`
	ChangeDate  time.Time `gorm:"not null;index" json:"change_date"`
	UserInfo    *string   `gorm:"type:text" json:"user_info"`
}
