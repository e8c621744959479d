package zentrysync

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mmdatafocus/factory_backend/models"
	"gorm.io/gorm"
)

// inventoryAdjustmentSyncer pushes posted adjustments as manual journals. Each
// detail row becomes a balanced debit/credit pair against the inventory asset
// and adjustment expense accounts.
type inventoryAdjustmentSyncer struct {
	pushOnlyEntity
	companyId string
	cfg       Config
}

func NewInventoryAdjustmentSyncer(companyId string, cfg Config) EntitySyncer {
	return &inventoryAdjustmentSyncer{
		pushOnlyEntity: pushOnlyEntity{entityType: EntityInventoryAdjustment},
		companyId:      companyId,
		cfg:            cfg,
	}
}

func (s *inventoryAdjustmentSyncer) EntityType() string { return EntityInventoryAdjustment }

func (s *inventoryAdjustmentSyncer) ShouldSync(ctx context.Context, local *LocalEntity) (bool, string) {
	if models.AdjustmentStatus(local.Status) != models.AdjustmentStatusAdjusted {
		return false, "adjustment has not been posted"
	}
	adj, ok := local.Data.(*models.InventoryAdjustment)
	if ok && adj.TotalValueDelta.IsZero() {
		return false, "adjustment has no value impact"
	}
	return true, ""
}

func (s *inventoryAdjustmentSyncer) FetchLocal(ctx context.Context, db *gorm.DB, id string) (*LocalEntity, error) {
	out, err := s.FetchLocalBatch(ctx, db, []string{id})
	if err != nil {
		return nil, err
	}
	return out[id], nil
}

func (s *inventoryAdjustmentSyncer) FetchLocalBatch(ctx context.Context, db *gorm.DB, ids []string) (map[string]*LocalEntity, error) {
	var rows []models.InventoryAdjustment
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

func (s *inventoryAdjustmentSyncer) ListLocalModifiedSince(ctx context.Context, db *gorm.DB, since time.Time) ([]string, error) {
	var ids []int
	if err := db.WithContext(ctx).
		Model(&models.InventoryAdjustment{}).
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

func (s *inventoryAdjustmentSyncer) MapToRemote(ctx context.Context, deps *DependencyResolver, local *LocalEntity) (*RemotePayload, error) {
	adj, ok := local.Data.(*models.InventoryAdjustment)
	if !ok {
		return nil, fmt.Errorf("inventory adjustment %q: unexpected local data shape", local.Id)
	}

	var journalLines []map[string]any
	for _, d := range adj.Details {
		if d.ValueDelta.IsZero() {
			continue
		}
		narration := d.Name
		if !d.QuantityDelta.IsZero() {
			narration = fmt.Sprintf("%s (qty %s)", d.Name, d.QuantityDelta.String())
		}
		// A positive delta increases inventory: debit the asset account and
		// credit the adjustment account. Negative deltas invert naturally
		// because the provider treats negative LineAmount as the other side.
		journalLines = append(journalLines,
			map[string]any{
				"Description": narration,
				"LineAmount":  d.ValueDelta,
				"AccountCode": s.cfg.InventoryAccountCode,
			},
			map[string]any{
				"Description": narration,
				"LineAmount":  d.ValueDelta.Neg(),
				"AccountCode": s.cfg.AdjustmentAccountCode,
			},
		)
	}
	if len(journalLines) == 0 {
		return nil, fmt.Errorf("inventory adjustment %q has no lines with a value delta", local.Id)
	}

	body := map[string]any{
		"Narration":    journalNarration(adj, local.Id),
		"Date":         formatZentryDay(adj.AdjustmentDate),
		"Status":       "POSTED",
		"JournalLines": journalLines,
	}

	remoteId, err := deps.ExternalId(ctx, EntityInventoryAdjustment, local.Id)
	if err != nil {
		return nil, err
	}
	if remoteId != "" {
		body[manualJournalSpec.idField] = remoteId
	}

	return &RemotePayload{LocalId: local.Id, Body: body}, nil
}

func (s *inventoryAdjustmentSyncer) UpsertRemoteBatch(ctx context.Context, api Transport, payloads []*RemotePayload) ([]RemoteResult, error) {
	return postPositionalBatch(ctx, api, manualJournalSpec, payloads)
}

func journalNarration(adj *models.InventoryAdjustment, localId string) string {
	text := "Inventory adjustment " + adj.ReferenceNumber
	if adj.Reason != "" {
		text += ": " + adj.Reason
	}
	return EmbedReference(text, EntityInventoryAdjustment, localId)
}
