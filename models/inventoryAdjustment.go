package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type InventoryAdjustment struct {
	ID              int                         `gorm:"primary_key" json:"id"`
	CompanyId       string                      `gorm:"index;size:36;not null" json:"company_id" binding:"required"`
	ReferenceNumber string                      `gorm:"size:255;not null" json:"reference_number" binding:"required"`
	AdjustmentDate  time.Time                   `gorm:"not null" json:"adjustment_date" binding:"required"`
	AdjustmentType  AdjustmentType              `gorm:"type:enum('Quantity','Value');default:Quantity" json:"adjustment_type"`
	Reason          string                      `gorm:"size:255" json:"reason"`
	Notes           string                      `gorm:"type:text;default:null" json:"notes"`
	CurrentStatus   AdjustmentStatus            `gorm:"type:enum('Draft','Adjusted','Void');default:Draft" json:"current_status"`
	TotalValueDelta decimal.Decimal             `gorm:"type:decimal(20,4);default:0" json:"total_value_delta"`
	Details         []InventoryAdjustmentDetail `json:"adjustment_details"`
	CreatedAt       time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
}

type InventoryAdjustmentDetail struct {
	ID                    int             `gorm:"primary_key" json:"id"`
	InventoryAdjustmentId int             `gorm:"index;not null" json:"inventory_adjustment_id"`
	ProductId             int             `gorm:"index;not null" json:"product_id"`
	Name                  string          `gorm:"size:100" json:"name"`
	QuantityDelta         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity_delta"`
	ValueDelta            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"value_delta"`
	CreatedAt             time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
