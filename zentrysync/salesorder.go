package zentrysync

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mmdatafocus/factory_backend/models"
	"gorm.io/gorm"
)

// salesOrderSyncer pushes confirmed sales orders as remote quotes, the closest
// document type the provider offers for an unbilled order.
type salesOrderSyncer struct {
	pushOnlyEntity
	companyId string
	cfg       Config
}

func NewSalesOrderSyncer(companyId string, cfg Config) EntitySyncer {
	return &salesOrderSyncer{
		pushOnlyEntity: pushOnlyEntity{entityType: EntitySalesOrder},
		companyId:      companyId,
		cfg:            cfg,
	}
}

func (s *salesOrderSyncer) EntityType() string { return EntitySalesOrder }

func (s *salesOrderSyncer) ShouldSync(ctx context.Context, local *LocalEntity) (bool, string) {
	switch models.SalesOrderStatus(local.Status) {
	case models.SalesOrderStatusDraft:
		return false, "sales order still in Draft status"
	case models.SalesOrderStatusCancelled:
		return false, "sales order is Cancelled"
	}
	return true, ""
}

func (s *salesOrderSyncer) FetchLocal(ctx context.Context, db *gorm.DB, id string) (*LocalEntity, error) {
	out, err := s.FetchLocalBatch(ctx, db, []string{id})
	if err != nil {
		return nil, err
	}
	return out[id], nil
}

func (s *salesOrderSyncer) FetchLocalBatch(ctx context.Context, db *gorm.DB, ids []string) (map[string]*LocalEntity, error) {
	var rows []models.SalesOrder
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

func (s *salesOrderSyncer) ListLocalModifiedSince(ctx context.Context, db *gorm.DB, since time.Time) ([]string, error) {
	var ids []int
	if err := db.WithContext(ctx).
		Model(&models.SalesOrder{}).
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

func (s *salesOrderSyncer) MapToRemote(ctx context.Context, deps *DependencyResolver, local *LocalEntity) (*RemotePayload, error) {
	order, ok := local.Data.(*models.SalesOrder)
	if !ok {
		return nil, fmt.Errorf("sales order %q: unexpected local data shape", local.Id)
	}

	contactId, err := deps.EnsureSynced(ctx, EntityCustomer, strconv.Itoa(order.CustomerId))
	if err != nil {
		return nil, err
	}

	lines, err := remoteLineBodies(ctx, deps, salesOrderLines(order.Details), s.cfg.SalesAccountCode)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"Contact":     map[string]any{"ContactID": contactId},
		"QuoteNumber": order.OrderNumber,
		"Reference":   EmbedReference(order.ReferenceNumber, EntitySalesOrder, local.Id),
		"Date":        formatZentryDay(order.OrderDate),
		"Status":      remoteQuoteStatus(order.CurrentStatus),
		"LineItems":   lines,
	}
	if order.ExpectedShipmentDate != nil {
		body["ExpiryDate"] = formatZentryDay(*order.ExpectedShipmentDate)
	}

	remoteId, err := deps.ExternalId(ctx, EntitySalesOrder, local.Id)
	if err != nil {
		return nil, err
	}
	if remoteId != "" {
		body[quoteSpec.idField] = remoteId
	}

	return &RemotePayload{LocalId: local.Id, Body: body}, nil
}

func (s *salesOrderSyncer) UpsertRemoteBatch(ctx context.Context, api Transport, payloads []*RemotePayload) ([]RemoteResult, error) {
	return postPositionalBatch(ctx, api, quoteSpec, payloads)
}

func salesOrderLines(details []models.SalesOrderDetail) []docLine {
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

func remoteQuoteStatus(status models.SalesOrderStatus) string {
	if status == models.SalesOrderStatusClosed {
		return "INVOICED"
	}
	return "ACCEPTED"
}
