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

// billSyncer maps local supplier bills to remote ACCPAY invoices.
type billSyncer struct {
	companyId string
	cfg       Config
}

func NewBillSyncer(companyId string, cfg Config) EntitySyncer {
	return &billSyncer{companyId: companyId, cfg: cfg}
}

func (s *billSyncer) EntityType() string { return EntityBill }
func (s *billSyncer) PushOnly() bool     { return false }

func (s *billSyncer) ShouldSync(ctx context.Context, local *LocalEntity) (bool, string) {
	switch models.BillStatus(local.Status) {
	case models.BillStatusDraft:
		return false, "bill still in Draft status"
	case models.BillStatusVoid:
		return false, "bill is Void"
	}
	return true, ""
}

func (s *billSyncer) FetchLocal(ctx context.Context, db *gorm.DB, id string) (*LocalEntity, error) {
	out, err := s.FetchLocalBatch(ctx, db, []string{id})
	if err != nil {
		return nil, err
	}
	return out[id], nil
}

func (s *billSyncer) FetchLocalBatch(ctx context.Context, db *gorm.DB, ids []string) (map[string]*LocalEntity, error) {
	var rows []models.Bill
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

func (s *billSyncer) ListLocalModifiedSince(ctx context.Context, db *gorm.DB, since time.Time) ([]string, error) {
	var ids []int
	if err := db.WithContext(ctx).
		Model(&models.Bill{}).
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

func (s *billSyncer) FetchRemote(ctx context.Context, api Transport, remoteId string) (*RemoteEntity, error) {
	return fetchRemoteByID(ctx, api, invoiceSpec, remoteId)
}

func (s *billSyncer) FetchRemoteBatch(ctx context.Context, api Transport, remoteIds []string) (map[string]*RemoteEntity, error) {
	return fetchRemoteByIDs(ctx, api, invoiceSpec, remoteIds)
}

func (s *billSyncer) FetchRemoteModifiedSince(ctx context.Context, api Transport, since time.Time, page int) ([]*RemoteEntity, bool, error) {
	return fetchRemotePage(ctx, api, invoiceSpec, `Type=="ACCPAY"`, since, page, s.cfg.PageSize)
}

func (s *billSyncer) RemoteUpdatedAt(remote *RemoteEntity) *time.Time {
	return remoteUpdatedAtOf(remote.Data)
}

func (s *billSyncer) MapToRemote(ctx context.Context, deps *DependencyResolver, local *LocalEntity) (*RemotePayload, error) {
	bill, ok := local.Data.(*models.Bill)
	if !ok {
		return nil, fmt.Errorf("bill %q: unexpected local data shape", local.Id)
	}

	contactId, err := deps.EnsureSynced(ctx, EntityVendor, strconv.Itoa(bill.SupplierId))
	if err != nil {
		return nil, err
	}

	lines, err := remoteLineBodies(ctx, deps, billLines(bill.Details), s.cfg.PurchaseAccountCode)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"Type":          "ACCPAY",
		"Contact":       map[string]any{"ContactID": contactId},
		"InvoiceNumber": bill.BillNumber,
		"Reference":     EmbedReference(bill.ReferenceNumber, EntityBill, local.Id),
		"Date":          formatZentryDay(bill.BillDate),
		"Status":        remoteInvoiceStatus(string(bill.CurrentStatus)),
		"LineItems":     lines,
	}
	if bill.BillDueDate != nil {
		body["DueDate"] = formatZentryDay(*bill.BillDueDate)
	}

	remoteId, err := deps.ExternalId(ctx, EntityBill, local.Id)
	if err != nil {
		return nil, err
	}
	if remoteId != "" {
		body[invoiceSpec.idField] = remoteId
	}

	return &RemotePayload{LocalId: local.Id, Body: body}, nil
}

// zentryInvoice is the wire shape shared by ACCPAY and ACCREC invoices.
type zentryInvoice struct {
	InvoiceID string `json:"InvoiceID"`
	Type      string `json:"Type"`
	Contact   struct {
		ContactID string `json:"ContactID"`
	} `json:"Contact"`
	InvoiceNumber  string       `json:"InvoiceNumber"`
	Reference      string       `json:"Reference"`
	Date           string       `json:"Date"`
	DueDate        string       `json:"DueDate"`
	Status         string       `json:"Status"`
	LineItems      []zentryLine `json:"LineItems"`
	UpdatedDateUTC string       `json:"UpdatedDateUTC"`
}

// billPatch carries the converted inbound document into the upsert.
type billPatch struct {
	SupplierId int
	BillNumber string
	Reference  string
	Date       time.Time
	DueDate    *time.Time
	Status     models.BillStatus
	Lines      []docLine
}

func (s *billSyncer) MapToLocal(ctx context.Context, deps *DependencyResolver, remote *RemoteEntity) (*LocalPatch, error) {
	var invoice zentryInvoice
	if err := json.Unmarshal(remote.Data, &invoice); err != nil {
		return nil, &StructuralError{Path: invoiceSpec.path, Detail: err.Error()}
	}
	if invoice.Type != "ACCPAY" {
		return nil, &StructuralError{Path: invoiceSpec.path, Detail: "expected an ACCPAY invoice, got " + invoice.Type}
	}
	if invoice.Contact.ContactID == "" {
		return nil, &StructuralError{Path: invoiceSpec.path, Detail: "invoice has no contact"}
	}

	supplierLocal, err := deps.ResolveLocal(ctx, EntityVendor, invoice.Contact.ContactID)
	if err != nil {
		return nil, err
	}
	supplierId, err := strconv.Atoi(supplierLocal)
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

	patch := &billPatch{
		SupplierId: supplierId,
		BillNumber: invoice.InvoiceNumber,
		Reference:  stripReference(invoice.Reference, EntityBill),
		Date:       date,
		Status:     localBillStatus(invoice.Status),
		Lines:      lines,
	}
	if invoice.DueDate != "" {
		due, err := parseRemoteDay(invoice.DueDate)
		if err == nil {
			patch.DueDate = &due
		}
	}

	// A reference marker written by a previous push pins the local row even
	// when the mapping row was lost.
	res := &LocalPatch{Data: patch}
	if entityType, localId, _, ok := ExtractReference(invoice.Reference); ok && entityType == EntityBill {
		res.LocalId = localId
	}
	return res, nil
}

func (s *billSyncer) UpsertLocal(ctx context.Context, tx *gorm.DB, patch *LocalPatch, remoteId string) (string, error) {
	data, ok := patch.Data.(*billPatch)
	if !ok {
		return "", fmt.Errorf("bill upsert: unexpected patch shape")
	}

	var row models.Bill
	if patch.LocalId != "" {
		if err := tx.WithContext(ctx).Where("company_id = ? AND id = ?", s.companyId, patch.LocalId).Take(&row).Error; err != nil {
			return "", err
		}
	} else {
		err := tx.WithContext(ctx).
			Where("company_id = ? AND supplier_id = ? AND bill_number = ?", s.companyId, data.SupplierId, data.BillNumber).
			Take(&row).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", err
		}
	}

	subtotal, tax, total := lineTotals(data.Lines)
	row.CompanyId = s.companyId
	row.SupplierId = data.SupplierId
	row.BillNumber = data.BillNumber
	row.ReferenceNumber = data.Reference
	row.BillDate = data.Date
	row.BillDueDate = data.DueDate
	row.CurrentStatus = data.Status
	row.BillSubtotal = subtotal
	row.BillTotalTax = tax
	row.BillTotalAmount = total
	if row.BillPaymentTerms == "" {
		row.BillPaymentTerms = models.PaymentTermsDueOnReceipt
	}
	row.Details = nil
	if err := tx.WithContext(ctx).Save(&row).Error; err != nil {
		return "", err
	}

	// Detail rows are replaced wholesale; the remote document is the source
	// of truth for its own lines.
	if err := tx.WithContext(ctx).Where("bill_id = ?", row.ID).Delete(&models.BillDetail{}).Error; err != nil {
		return "", err
	}
	for _, line := range data.Lines {
		detail := models.BillDetail{
			BillId:            row.ID,
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

func (s *billSyncer) UpsertRemoteBatch(ctx context.Context, api Transport, payloads []*RemotePayload) ([]RemoteResult, error) {
	return postPositionalBatch(ctx, api, invoiceSpec, payloads)
}

func billLines(details []models.BillDetail) []docLine {
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

func remoteInvoiceStatus(status string) string {
	switch status {
	case string(models.BillStatusSubmitted):
		return "SUBMITTED"
	case string(models.BillStatusPaid):
		return "PAID"
	default:
		return "AUTHORISED"
	}
}

func localBillStatus(status string) models.BillStatus {
	switch status {
	case "DRAFT":
		return models.BillStatusDraft
	case "SUBMITTED":
		return models.BillStatusSubmitted
	case "PAID":
		return models.BillStatusPaid
	case "VOIDED":
		return models.BillStatusVoid
	default:
		return models.BillStatusConfirmed
	}
}
