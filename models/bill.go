package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Bill struct {
	ID               int             `gorm:"primary_key" json:"id"`
	CompanyId        string          `gorm:"index;size:36;not null" json:"company_id" binding:"required"`
	SupplierId       int             `gorm:"index;not null" json:"supplier_id" binding:"required"`
	BillNumber       string          `gorm:"size:255;not null" json:"bill_number" binding:"required"`
	ReferenceNumber  string          `gorm:"size:255;default:null" json:"reference_number"`
	BillDate         time.Time       `gorm:"not null" json:"bill_date" binding:"required"`
	BillDueDate      *time.Time      `gorm:"default:null" json:"bill_due_date"`
	BillPaymentTerms PaymentTerms    `gorm:"type:enum('Net15','Net30','Net45','Net60','DueOnReceipt','Custom');not null" json:"bill_payment_terms"`
	Notes            string          `gorm:"type:text;default:null" json:"notes"`
	CurrentStatus    BillStatus      `gorm:"type:enum('Draft','Submitted','Confirmed','Void','Partial Paid','Paid');default:Draft" json:"current_status"`
	BillSubtotal     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"bill_subtotal"`
	BillTotalTax     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"bill_total_tax"`
	BillTotalAmount  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"bill_total_amount"`
	Details          []BillDetail    `json:"bill_details"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type BillDetail struct {
	ID                int             `gorm:"primary_key" json:"id"`
	BillId            int             `gorm:"index;not null" json:"bill_id"`
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
