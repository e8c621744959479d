package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	ID                   int             `gorm:"primary_key" json:"id"`
	CompanyId            string          `gorm:"index;size:36;not null" json:"company_id" binding:"required"`
	Name                 string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Email                string          `gorm:"size:100" json:"email"`
	Phone                string          `gorm:"size:20" json:"phone"`
	Mobile               string          `gorm:"size:20" json:"mobile"`
	CustomerPaymentTerms PaymentTerms    `gorm:"type:enum('Net15','Net30','Net45','Net60','DueOnReceipt','Custom');not null;default:'DueOnReceipt'" json:"customer_payment_terms"`
	CreditLimit          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit_limit"`
	Notes                string          `gorm:"type:text" json:"notes"`
	IsActive             *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
