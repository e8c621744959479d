package zentrysync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mmdatafocus/factory_backend/models"
	"gorm.io/gorm"
)

// purchaseOrderSyncer maps local purchase orders to remote purchase orders in
// both directions.
type purchaseOrderSyncer struct {
	companyId string
	cfg       Config
}

func NewPurchaseOrderSyncer(companyId string, cfg Config) EntitySyncer {
	return &purchaseOrderSyncer{companyId: companyId, cfg: cfg}
}

func (s *purchaseOrderSyncer) EntityType() string { return EntityPurchaseOrder }
func (s *purchaseOrderSyncer) PushOnly() bool     { return false }

func (s *purchaseOrderSyncer) ShouldSync(ctx context.Context, local *LocalEntity) (bool, string) {
	switch models.PurchaseOrderStatus(local.Status) {
	case models.PurchaseOrderStatusDraft:
		return false, "purchase order still in Draft status"
	case models.PurchaseOrderStatusCancelled:
		return false, "purchase order is Cancelled"
	}
	return true, ""
}

func (s *purchaseOrderSyncer) FetchLocal(ctx context.Context, db *gorm.DB, id string) (*LocalEntity, error) {
	out, err := s.FetchLocalBatch(ctx, db, []string{id})
	if err != nil {
		return nil, err
	}
	return out[id], nil
}

func (s *purchaseOrderSyncer) FetchLocalBatch(ctx context.Context, db *gorm.DB, ids []string) (map[string]*LocalEntity, error) {
	var rows []models.PurchaseOrder
	if err := db.WithContext(ctx).
		Preload("Details").
		Where("company_id = ? AND id IN ?", s.companyId, ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]*LocalEntity, len(rows))
	for i := range rows {
		row := rows[i]
		out[strconv.Itoa(row.ID)] = &LocalEntity{
			Id:        strconv.Itoa(row.ID),
			CompanyId: row.CompanyId,
			Status:    string(row.CurrentStatus),
			UpdatedAt: row.UpdatedAt,
			Data:      &row,
		}
	}
	return out, nil
}

func (s *purchaseOrderSyncer) ListLocalModifiedSince(ctx context.Context, db *gorm.DB, since time.Time) ([]string, error) {
	var ids []int
	if err := db.WithContext(ctx).
		Model(&models.PurchaseOrder{}).
		Where("company_id = ? AND updated_at > ?", s.companyId, since).
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.Itoa(id)
	}
	return out, nil
}

func (s *purchaseOrderSyncer) MapToRemote(ctx context.Context, deps *DependencyResolver, local *LocalEntity) (*RemotePayload, error) {
	order, ok := local.Data.(*models.PurchaseOrder)
	if !ok {
		return nil, fmt.Errorf("purchase order %q: unexpected local data shape", local.Id)
	}

	contactId, err := deps.EnsureSynced(ctx, EntityVendor, strconv.Itoa(order.SupplierId))
	if err != nil {
		return nil, err
	}

	lines, err := remoteLineBodies(ctx, deps, purchaseOrderLines(order.Details), s.cfg.PurchaseAccountCode)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"Contact":             map[string]any{"ContactID": contactId},
		"PurchaseOrderNumber": order.OrderNumber,
		"Reference":           EmbedReference(order.ReferenceNumber, EntityPurchaseOrder, local.Id),
		"Date":                formatZentryDay(order.OrderDate),
		"Status":              remotePurchaseOrderStatus(order.CurrentStatus),
		"LineItems":           lines,
	}
	if order.ExpectedDeliveryDate != nil {
		body["DeliveryDate"] = formatZentryDay(*order.ExpectedDeliveryDate)
	}

	remoteId, err := deps.ExternalId(ctx, EntityPurchaseOrder, local.Id)
	if err != nil {
		return nil, err
	}
	if remoteId != "" {
		body[purchaseOrderSpec.idField] = remoteId
	}

	return &RemotePayload{LocalId: local.Id, Body: body}, nil
}

func (s *purchaseOrderSyncer) FetchRemote(ctx context.Context, api Transport, remoteId string) (*RemoteEntity, error) {
	return fetchRemoteByID(ctx, api, purchaseOrderSpec, remoteId)
}

func (s *purchaseOrderSyncer) FetchRemoteBatch(ctx context.Context, api Transport, remoteIds []string) (map[string]*RemoteEntity, error) {
	return fetchRemoteByIDs(ctx, api, purchaseOrderSpec, remoteIds)
}

func (s *purchaseOrderSyncer) FetchRemoteModifiedSince(ctx context.Context, api Transport, since time.Time, page int) ([]*RemoteEntity, bool, error) {
	return fetchRemotePage(ctx, api, purchaseOrderSpec, "", since, page, s.cfg.PageSize)
}

func (s *purchaseOrderSyncer) RemoteUpdatedAt(remote *RemoteEntity) *time.Time {
	return remoteUpdatedAtOf(remote.Data)
}

// zentryPurchaseOrder is the provider wire shape.
type zentryPurchaseOrder struct {
	PurchaseOrderID string `json:"PurchaseOrderID"`
	Contact         struct {
		ContactID string `json:"ContactID"`
	} `json:"Contact"`
	PurchaseOrderNumber string       `json:"PurchaseOrderNumber"`
	Reference           string       `json:"Reference"`
	Date                string       `json:"Date"`
	DeliveryDate        string       `json:"DeliveryDate"`
	Status              string       `json:"Status"`
	LineItems           []zentryLine `json:"LineItems"`
	UpdatedDateUTC      string       `json:"UpdatedDateUTC"`
}

type purchaseOrderPatch struct {
	SupplierId   int
	OrderNumber  string
	Reference    string
	Date         time.Time
	DeliveryDate *time.Time
	Status       models.PurchaseOrderStatus
	Lines        []docLine
}

func (s *purchaseOrderSyncer) MapToLocal(ctx context.Context, deps *DependencyResolver, remote *RemoteEntity) (*LocalPatch, error) {
	var order zentryPurchaseOrder
	if err := json.Unmarshal(remote.Data, &order); err != nil {
		return nil, &StructuralError{Path: purchaseOrderSpec.path, Detail: err.Error()}
	}
	if order.Contact.ContactID == "" {
		return nil, &StructuralError{Path: purchaseOrderSpec.path, Detail: "purchase order has no contact"}
	}

	supplierLocal, err := deps.ResolveLocal(ctx, EntityVendor, order.Contact.ContactID)
	if err != nil {
		return nil, err
	}
	supplierId, err := strconv.Atoi(supplierLocal)
	if err != nil {
		return nil, err
	}

	date, err := parseRemoteDay(order.Date)
	if err != nil {
		return nil, &StructuralError{Path: purchaseOrderSpec.path, Detail: "bad order date: " + err.Error()}
	}

	lines, err := localLines(ctx, deps, order.LineItems)
	if err != nil {
		return nil, err
	}

	patch := &purchaseOrderPatch{
		SupplierId:  supplierId,
		OrderNumber: order.PurchaseOrderNumber,
		Reference:   stripReference(order.Reference, EntityPurchaseOrder),
		Date:        date,
		Status:      localPurchaseOrderStatus(order.Status),
		Lines:       lines,
	}
	if order.DeliveryDate != "" {
		delivery, err := parseRemoteDay(order.DeliveryDate)
		if err == nil {
			patch.DeliveryDate = &delivery
		}
	}

	res := &LocalPatch{Data: patch}
	if entityType, localId, _, ok := ExtractReference(order.Reference); ok && entityType == EntityPurchaseOrder {
		res.LocalId = localId
	}
	return res, nil
}

func (s *purchaseOrderSyncer) UpsertLocal(ctx context.Context, tx *gorm.DB, patch *LocalPatch, remoteId string) (string, error) {
	data, ok := patch.Data.(*purchaseOrderPatch)
	if !ok {
		return "", fmt.Errorf("purchase order upsert: unexpected patch shape")
	}

	var row models.PurchaseOrder
	if patch.LocalId != "" {
		if err := tx.WithContext(ctx).Where("company_id = ? AND id = ?", s.companyId, patch.LocalId).Take(&row).Error; err != nil {
			return "", err
		}
	} else {
		err := tx.WithContext(ctx).
			Where("company_id = ? AND supplier_id = ? AND order_number = ?", s.companyId, data.SupplierId, data.OrderNumber).
			Take(&row).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", err
		}
	}

	subtotal, tax, total := lineTotals(data.Lines)
	row.CompanyId = s.companyId
	row.SupplierId = data.SupplierId
	row.OrderNumber = data.OrderNumber
	row.ReferenceNumber = data.Reference
	row.OrderDate = data.Date
	row.ExpectedDeliveryDate = data.DeliveryDate
	row.CurrentStatus = data.Status
	row.OrderSubtotal = subtotal
	row.OrderTotalTax = tax
	row.OrderTotalAmount = total
	row.Details = nil
	if err := tx.WithContext(ctx).Save(&row).Error; err != nil {
		return "", err
	}

	if err := tx.WithContext(ctx).Where("purchase_order_id = ?", row.ID).Delete(&models.PurchaseOrderDetail{}).Error; err != nil {
		return "", err
	}
	for _, line := range data.Lines {
		detail := models.PurchaseOrderDetail{
			PurchaseOrderId:   row.ID,
			ProductId:         line.ProductId,
			Name:              line.Name,
			Description:       line.Description,
			DetailQty:         line.Qty,
			DetailUnitRate:    line.UnitRate,
			DetailTaxAmount:   line.TaxAmount,
			DetailTotalAmount: line.total(),
		}
		if err := tx.WithContext(ctx).Create(&detail).Error; err != nil {
			return "", err
		}
	}
	return strconv.Itoa(row.ID), nil
}

func (s *purchaseOrderSyncer) UpsertRemoteBatch(ctx context.Context, api Transport, payloads []*RemotePayload) ([]RemoteResult, error) {
	return postPositionalBatch(ctx, api, purchaseOrderSpec, payloads)
}

func purchaseOrderLines(details []models.PurchaseOrderDetail) []docLine {
	out := make([]docLine, 0, len(details))
	for _, d := range details {
		out = append(out, docLine{
			ProductId:   d.ProductId,
			Name:        d.Name,
			Description: d.Description,
			Qty:         d.DetailQty,
			UnitRate:    d.DetailUnitRate,
			TaxAmount:   d.DetailTaxAmount,
		})
	}
	return out
}

func remotePurchaseOrderStatus(status models.PurchaseOrderStatus) string {
	if status == models.PurchaseOrderStatusClosed {
		return "BILLED"
	}
	return "AUTHORISED"
}

func localPurchaseOrderStatus(status string) models.PurchaseOrderStatus {
	switch status {
	case "DRAFT", "SUBMITTED":
		return models.PurchaseOrderStatusDraft
	case "BILLED":
		return models.PurchaseOrderStatusClosed
	case "DELETED":
		return models.PurchaseOrderStatusCancelled
	default:
		return models.PurchaseOrderStatusConfirmed
	}
}
