package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/belanjaid/storefront-backend/pkg/enums"
)

// Order is the immutable snapshot of a completed checkout. TotalAmount is
// fixed at creation time and never recomputed from current catalog prices.
type Order struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID        uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	TotalAmount   decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null" json:"total_amount"`
	OrderStatus   enums.OrderStatus   `gorm:"column:order_status;not null;default:'pending'" json:"order_status"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;not null;default:'pending'" json:"payment_status"`
	Items         []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"order_items,omitempty"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
