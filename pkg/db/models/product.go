package models

import (
	"time"

	"github.com/google/uuid"
)

// Product groups the purchasable variants presented on a catalog page.
type Product struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string           `gorm:"column:name;not null" json:"name"`
	Description *string          `gorm:"column:description" json:"description,omitempty"`
	Category    *string          `gorm:"column:category" json:"category,omitempty"`
	Variants    []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"variants,omitempty"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
