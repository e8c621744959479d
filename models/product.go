package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID             int             `gorm:"primary_key" json:"id"`
	CompanyId      string          `gorm:"uniqueIndex:idx_product_sku,priority:1;size:36;not null" json:"company_id" binding:"required"`
	Sku            string          `gorm:"uniqueIndex:idx_product_sku,priority:2;size:100;not null" json:"sku" binding:"required"`
	Barcode        string          `gorm:"size:100" json:"barcode"`
	Name           string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Description    string          `gorm:"size:255" json:"description"`
	SalesPrice     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sales_price"`
	PurchasePrice  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"purchase_price"`
	TrackInventory *bool           `gorm:"not null;default:true" json:"track_inventory"`
	IsActive       *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
