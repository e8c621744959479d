package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type SalesInvoice struct {
	ID                  int                  `gorm:"primary_key" json:"id"`
	CompanyId           string               `gorm:"index;size:36;not null" json:"company_id" binding:"required"`
	CustomerId          int                  `gorm:"index;not null" json:"customer_id" binding:"required"`
	InvoiceNumber       string               `gorm:"size:255;not null" json:"invoice_number" binding:"required"`
	ReferenceNumber     string               `gorm:"size:255;default:null" json:"reference_number"`
	InvoiceDate         time.Time            `gorm:"not null" json:"invoice_date" binding:"required"`
	InvoiceDueDate      *time.Time           `gorm:"default:null" json:"invoice_due_date"`
	InvoicePaymentTerms PaymentTerms         `gorm:"type:enum('Net15','Net30','Net45','Net60','DueOnReceipt','Custom');not null" json:"invoice_payment_terms"`
	Notes               string               `gorm:"type:text;default:null" json:"notes"`
	CurrentStatus       SalesInvoiceStatus   `gorm:"type:enum('Draft','Confirmed','Partial Paid','Paid','Void');default:Draft" json:"current_status"`
	InvoiceSubtotal     decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"invoice_subtotal"`
	InvoiceTotalTax     decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"invoice_total_tax"`
	InvoiceTotalAmount  decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"invoice_total_amount"`
	Details             []SalesInvoiceDetail `json:"invoice_details"`
	CreatedAt           time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

type SalesInvoiceDetail struct {
	ID                int             `gorm:"primary_key" json:"id"`
	SalesInvoiceId    int             `gorm:"index;not null" json:"sales_invoice_id"`
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
