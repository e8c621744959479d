package models

type PaymentTerms string

const (
	PaymentTermsNet15        PaymentTerms = "Net15"
	PaymentTermsNet30        PaymentTerms = "Net30"
	PaymentTermsNet45        PaymentTerms = "Net45"
	PaymentTermsNet60        PaymentTerms = "Net60"
	PaymentTermsDueOnReceipt PaymentTerms = "DueOnReceipt"
	PaymentTermsCustom       PaymentTerms = "Custom"
)

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "P"
	DiscountTypeAmount     DiscountType = "A"
)

type BillStatus string

const (
	BillStatusDraft       BillStatus = "Draft"
	BillStatusSubmitted   BillStatus = "Submitted"
	BillStatusConfirmed   BillStatus = "Confirmed"
	BillStatusPartialPaid BillStatus = "Partial Paid"
	BillStatusPaid        BillStatus = "Paid"
	BillStatusVoid        BillStatus = "Void"
)

type SalesInvoiceStatus string

const (
	SalesInvoiceStatusDraft       SalesInvoiceStatus = "Draft"
	SalesInvoiceStatusConfirmed   SalesInvoiceStatus = "Confirmed"
	SalesInvoiceStatusPartialPaid SalesInvoiceStatus = "Partial Paid"
	SalesInvoiceStatusPaid        SalesInvoiceStatus = "Paid"
	SalesInvoiceStatusVoid        SalesInvoiceStatus = "Void"
)

type PurchaseOrderStatus string

const (
	PurchaseOrderStatusDraft     PurchaseOrderStatus = "Draft"
	PurchaseOrderStatusConfirmed PurchaseOrderStatus = "Confirmed"
	PurchaseOrderStatusClosed    PurchaseOrderStatus = "Closed"
	PurchaseOrderStatusCancelled PurchaseOrderStatus = "Cancelled"
)

type SalesOrderStatus string

const (
	SalesOrderStatusDraft     SalesOrderStatus = "Draft"
	SalesOrderStatusConfirmed SalesOrderStatus = "Confirmed"
	SalesOrderStatusClosed    SalesOrderStatus = "Closed"
	SalesOrderStatusCancelled SalesOrderStatus = "Cancelled"
)

type AdjustmentStatus string

const (
	AdjustmentStatusDraft    AdjustmentStatus = "Draft"
	AdjustmentStatusAdjusted AdjustmentStatus = "Adjusted"
	AdjustmentStatusVoid     AdjustmentStatus = "Void"
)

type AdjustmentType string

const (
	AdjustmentTypeQuantity AdjustmentType = "Quantity"
	AdjustmentTypeValue    AdjustmentType = "Value"
)

type UserRole string

const (
	UserRoleAdmin UserRole = "Admin"
	UserRoleOwner UserRole = "Owner"
	UserRoleStaff UserRole = "Staff"
)
