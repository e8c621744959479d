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

// invoiceSyncer maps local sales invoices to remote ACCREC invoices.
type invoiceSyncer struct {
	companyId string
	cfg       Config
}

func NewInvoiceSyncer(companyId string, cfg Config) EntitySyncer {
	return &invoiceSyncer{companyId: companyId, cfg: cfg}
}

func (s *invoiceSyncer) EntityType() string { return EntityInvoice }
func (s *invoiceSyncer) PushOnly() bool     { return false }

func (s *invoiceSyncer) ShouldSync(ctx context.Context, local *LocalEntity) (bool, string) {
	switch models.SalesInvoiceStatus(local.Status) {
	case models.SalesInvoiceStatusDraft:
		return false, "invoice still in Draft status"
	case models.SalesInvoiceStatusVoid:
		return false, "invoice is Void"
	}
	return true, ""
}

func (s *invoiceSyncer) FetchLocal(ctx context.Context, db *gorm.DB, id string) (*LocalEntity, error) {
	out, err := s.FetchLocalBatch(ctx, db, []string{id})
	if err != nil {
		return nil, err
	}
	return out[id], nil
}

func (s *invoiceSyncer) FetchLocalBatch(ctx context.Context, db *gorm.DB, ids []string) (map[string]*LocalEntity, error) {
	var rows []models.SalesInvoice
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

func (s *invoiceSyncer) ListLocalModifiedSince(ctx context.Context, db *gorm.DB, since time.Time) ([]string, error) {
	var ids []int
	if err := db.WithContext(ctx).
		Model(&models.SalesInvoice{}).
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

func (s *invoiceSyncer) FetchRemote(ctx context.Context, api Transport, remoteId string) (*RemoteEntity, error) {
	return fetchRemoteByID(ctx, api, invoiceSpec, remoteId)
}

func (s *invoiceSyncer) FetchRemoteBatch(ctx context.Context, api Transport, remoteIds []string) (map[string]*RemoteEntity, error) {
	return fetchRemoteByIDs(ctx, api, invoiceSpec, remoteIds)
}

func (s *invoiceSyncer) FetchRemoteModifiedSince(ctx context.Context, api Transport, since time.Time, page int) ([]*RemoteEntity, bool, error) {
	return fetchRemotePage(ctx, api, invoiceSpec, `Type=="ACCREC"`, since, page, s.cfg.PageSize)
}

func (s *invoiceSyncer) RemoteUpdatedAt(remote *RemoteEntity) *time.Time {
	return remoteUpdatedAtOf(remote.Data)
}

func (s *invoiceSyncer) MapToRemote(ctx context.Context, deps *DependencyResolver, local *LocalEntity) (*RemotePayload, error) {
	invoice, ok := local.Data.(*models.SalesInvoice)
	if !ok {
		return nil, fmt.Errorf("invoice %q: unexpected local data shape", local.Id)
	}

	contactId, err := deps.EnsureSynced(ctx, EntityCustomer, strconv.Itoa(invoice.CustomerId))
	if err != nil {
		return nil, err
	}

	lines, err := remoteLineBodies(ctx, deps, invoiceLines(invoice.Details), s.cfg.SalesAccountCode)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"Type":          "ACCREC",
		"Contact":       map[string]any{"ContactID": contactId},
		"InvoiceNumber": invoice.InvoiceNumber,
		"Reference":     EmbedReference(invoice.ReferenceNumber, EntityInvoice, local.Id),
		"Date":          formatZentryDay(invoice.InvoiceDate),
		"Status":        remoteInvoiceStatus(string(invoice.CurrentStatus)),
		"LineItems":     lines,
	}
	if invoice.InvoiceDueDate != nil {
		body["DueDate"] = formatZentryDay(*invoice.InvoiceDueDate)
	}

	remoteId, err := deps.ExternalId(ctx, EntityInvoice, local.Id)
	if err != nil {
		return nil, err
	}
	if remoteId != "" {
		body[invoiceSpec.idField] = remoteId
	}

	return &RemotePayload{LocalId: local.Id, Body: body}, nil
}

type invoicePatch struct {
	CustomerId    int
	InvoiceNumber string
	Reference     string
	Date          time.Time
	DueDate       *time.Time
	Status        models.SalesInvoiceStatus
	Lines         []docLine
}

func (s *invoiceSyncer) MapToLocal(ctx context.Context, deps *DependencyResolver, remote *RemoteEntity) (*LocalPatch, error) {
	var invoice zentryInvoice
	if err := json.Unmarshal(remote.Data, &invoice); err != nil {
		return nil, &StructuralError{Path: invoiceSpec.path, Detail: err.Error()}
	}
	if invoice.Type != "ACCREC" {
		return nil, &StructuralError{Path: invoiceSpec.path, Detail: "expected an ACCREC invoice, got " + invoice.Type}
	}
	if invoice.Contact.ContactID == "" {
		return nil, &StructuralError{Path: invoiceSpec.path, Detail: "invoice has no contact"}
	}

	customerLocal, err := deps.ResolveLocal(ctx, EntityCustomer, invoice.Contact.ContactID)
	if err != nil {
		return nil, err
	}
	customerId, err := strconv.Atoi(customerLocal)
	if err != nil {
		return nil, err
	}

	date, err := parseRemoteDay(invoice.Date)
	if err != nil {
		return nil, &StructuralError{Path: invoiceSpec.path, Detail: "bad invoice date: " + err.Error()}
	}

	lines, err := localLines(ctx, deps, invoice.LineItems)
	if err != nil {
		return nil, err
	}

	patch := &invoicePatch{
		CustomerId:    customerId,
		InvoiceNumber: invoice.InvoiceNumber,
		Reference:     stripReference(invoice.Reference, EntityInvoice),
		Date:          date,
		Status:        localInvoiceStatus(invoice.Status),
		Lines:         lines,
	}
	if invoice.DueDate != "" {
		due, err := parseRemoteDay(invoice.DueDate)
		if err == nil {
			patch.DueDate = &due
		}
	}

	res := &LocalPatch{Data: patch}
	if entityType, localId, _, ok := ExtractReference(invoice.Reference); ok && entityType == EntityInvoice {
		res.LocalId = localId
	}
	return res, nil
}

func (s *invoiceSyncer) UpsertLocal(ctx context.Context, tx *gorm.DB, patch *LocalPatch, remoteId string) (string, error) {
	data, ok := patch.Data.(*invoicePatch)
	if !ok {
		return "", fmt.Errorf("invoice upsert: unexpected patch shape")
	}

	var row models.SalesInvoice
	if patch.LocalId != "" {
		if err := tx.WithContext(ctx).Where("company_id = ? AND id = ?", s.companyId, patch.LocalId).Take(&row).Error; err != nil {
			return "", err
		}
	} else {
		err := tx.WithContext(ctx).
			Where("company_id = ? AND customer_id = ? AND invoice_number = ?", s.companyId, data.CustomerId, data.InvoiceNumber).
			Take(&row).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", err
		}
	}

	subtotal, tax, total := lineTotals(data.Lines)
	row.CompanyId = s.companyId
	row.CustomerId = data.CustomerId
	row.InvoiceNumber = data.InvoiceNumber
	row.ReferenceNumber = data.Reference
	row.InvoiceDate = data.Date
	row.InvoiceDueDate = data.DueDate
	row.CurrentStatus = data.Status
	row.InvoiceSubtotal = subtotal
	row.InvoiceTotalTax = tax
	row.InvoiceTotalAmount = total
	if row.InvoicePaymentTerms == "" {
		row.InvoicePaymentTerms = models.PaymentTermsDueOnReceipt
	}
	row.Details = nil
	if err := tx.WithContext(ctx).Save(&row).Error; err != nil {
		return "", err
	}

	if err := tx.WithContext(ctx).Where("sales_invoice_id = ?", row.ID).Delete(&models.SalesInvoiceDetail{}).Error; err != nil {
		return "", err
	}
	for _, line := range data.Lines {
		detail := models.SalesInvoiceDetail{
			SalesInvoiceId:    row.ID,
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

func (s *invoiceSyncer) UpsertRemoteBatch(ctx context.Context, api Transport, payloads []*RemotePayload) ([]RemoteResult, error) {
	return postPositionalBatch(ctx, api, invoiceSpec, payloads)
}

func invoiceLines(details []models.SalesInvoiceDetail) []docLine {
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

func localInvoiceStatus(status string) models.SalesInvoiceStatus {
	switch status {
	case "DRAFT", "SUBMITTED":
		return models.SalesInvoiceStatusDraft
	case "PAID":
		return models.SalesInvoiceStatusPaid
	case "VOIDED":
		return models.SalesInvoiceStatusVoid
	default:
		return models.SalesInvoiceStatusConfirmed
	}
}
