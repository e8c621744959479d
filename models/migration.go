package models

import (
	"log"

	"github.com/mmdatafocus/factory_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Company{}, &User{},
		&Customer{}, &Supplier{}, &Product{},
		&Bill{}, &BillDetail{},
		&SalesInvoice{}, &SalesInvoiceDetail{},
		&PurchaseOrder{}, &PurchaseOrderDetail{},
		&SalesOrder{}, &SalesOrderDetail{},
		&InventoryAdjustment{}, &InventoryAdjustmentDetail{},
		&IntegrationConnection{}, &IntegrationSyncRun{},
		&IntegrationEntityMapping{}, &IntegrationSyncError{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
