package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one variant line inside a cart. It deliberately carries no
// price: pricing is resolved from the catalog when the order is created.
type CartItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CartID    uuid.UUID `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:idx_cart_items_cart_variant" json:"cart_id"`
	VariantID uuid.UUID `gorm:"column:variant_id;type:uuid;not null;uniqueIndex:idx_cart_items_cart_variant" json:"variant_id"`
	Quantity  int       `gorm:"column:quantity;not null" json:"quantity"`
	Note      *string   `gorm:"column:note" json:"note,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
