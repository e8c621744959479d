package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type SalesOrder struct {
	ID                   int                `gorm:"primary_key" json:"id"`
	CompanyId            string             `gorm:"index;size:36;not null" json:"company_id" binding:"required"`
	CustomerId           int                `gorm:"index;not null" json:"customer_id" binding:"required"`
	OrderNumber          string             `gorm:"size:255;not null" json:"order_number" binding:"required"`
	ReferenceNumber      string             `gorm:"size:255;default:null" json:"reference_number"`
	OrderDate            time.Time          `gorm:"not null" json:"order_date" binding:"required"`
	ExpectedShipmentDate *time.Time         `gorm:"default:null" json:"expected_shipment_date"`
	Notes                string             `gorm:"type:text;default:null" json:"notes"`
	CurrentStatus        SalesOrderStatus   `gorm:"type:enum('Draft','Confirmed','Closed','Cancelled');default:Draft" json:"current_status"`
	OrderSubtotal        decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"order_subtotal"`
	OrderTotalTax        decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"order_total_tax"`
	OrderTotalAmount     decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"order_total_amount"`
	Details              []SalesOrderDetail `json:"order_details"`
	CreatedAt            time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

type SalesOrderDetail struct {
	ID                int             `gorm:"primary_key" json:"id"`
	SalesOrderId      int             `gorm:"index;not null" json:"sales_order_id"`
	ProductId         int             `gorm:"index" json:"product_id"`
	Name              string          `gorm:"size:100" json:"name" binding:"required"`
	Description       string          `gorm:"size:255;default:null" json:"description"`
	DetailQty         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_qty" binding:"required"`
	DetailUnitRate    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_unit_rate" binding:"required"`
	DetailTaxAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_tax_amount"`
	DetailTotalAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_total_amount"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
