package zentrysync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/factory_backend/config"
	"github.com/mmdatafocus/factory_backend/models"
	"github.com/mmdatafocus/factory_backend/utils"
	"gorm.io/gorm"
)

// syncOrder lists entity types dependency-first. Contacts and items go before
// the documents that reference them, so document pushes mostly hit warm
// mappings instead of recursing through the resolver.
var syncOrder = []string{
	EntityCustomer,
	EntityVendor,
	EntityItem,
	EntityBill,
	EntityInvoice,
	EntityPurchaseOrder,
	EntitySalesOrder,
	EntityInventoryAdjustment,
}

// ProcessSyncRun executes one queued sync run end to end. It is safe to call
// with an already finished run (redelivered message); those return nil
// without touching anything.
func ProcessSyncRun(ctx context.Context, payload SyncPubSubPayload) error {
	if payload.RunId == 0 || payload.CompanyId == "" {
		return errors.New("invalid payload")
	}

	ctx = utils.SetCompanyIdInContext(ctx, payload.CompanyId)
	db := config.GetDB().WithContext(ctx)
	logger := config.GetLogger()

	var run models.IntegrationSyncRun
	if err := db.Where("id = ? AND company_id = ?", payload.RunId, payload.CompanyId).Take(&run).Error; err != nil {
		return err
	}
	if run.Status == models.SyncRunStatusSuccess || run.Status == models.SyncRunStatusFailed || run.Status == models.SyncRunStatusPartial {
		return nil
	}

	var conn models.IntegrationConnection
	if err := db.Where("id = ? AND company_id = ?", run.ConnectionId, payload.CompanyId).Take(&conn).Error; err != nil {
		return err
	}
	if conn.Status != models.IntegrationStatusConnected {
		return finalizeRunFailed(ctx, db, &run, errors.New("zentry not connected"))
	}

	// One run per connection at a time. A redelivery racing a live run gives
	// up immediately and lets pubsub retry later.
	locker := config.GetRedisLock()
	lock, err := locker.Obtain(ctx, fmt.Sprintf("zentry-sync:conn:%d", conn.ID), 15*time.Minute, nil)
	if err == redislock.ErrNotObtained {
		return errors.New("another sync is running for this connection")
	}
	if err != nil {
		return err
	}
	defer lock.Release(context.WithoutCancel(ctx))

	modules := DecodeModules(run.ModulesJSON)
	cursors := DecodeCursorState(conn.CursorStateJSON)

	now := time.Now()
	startedAt := run.StartedAt
	if startedAt == nil {
		startedAt = &now
	}
	if err := db.Model(&run).Updates(map[string]interface{}{
		"status":     models.SyncRunStatusRunning,
		"started_at": startedAt,
	}).Error; err != nil {
		return err
	}

	client, err := NewClient(ClientCredentials{
		AccessToken:    conn.AccessToken,
		RefreshToken:   conn.RefreshToken,
		TokenExpiresAt: conn.TokenExpiresAt,
		TenantRef:      conn.TenantRef,
	})
	if err != nil {
		return finalizeRunFailed(ctx, db, &run, err)
	}
	defer client.Close()

	cfg := DefaultConfig()
	mappings := NewMappingStore(payload.CompanyId, conn.ID, models.IntegrationProviderZentry)
	orch := NewOrchestrator(db, client, mappings, cfg, logger, payload.CompanyId)
	orch.Register(NewCustomerSyncer(payload.CompanyId, cfg))
	orch.Register(NewVendorSyncer(payload.CompanyId, cfg))
	orch.Register(NewItemSyncer(payload.CompanyId, cfg))
	orch.Register(NewBillSyncer(payload.CompanyId, cfg))
	orch.Register(NewInvoiceSyncer(payload.CompanyId, cfg))
	orch.Register(NewPurchaseOrderSyncer(payload.CompanyId, cfg))
	orch.Register(NewSalesOrderSyncer(payload.CompanyId, cfg))
	orch.Register(NewInventoryAdjustmentSyncer(payload.CompanyId, cfg))

	// The watermark for the next run is taken before any work so changes made
	// while this run is in flight are picked up again rather than lost.
	watermark := time.Now().UTC().Format(time.RFC3339)

	stats := map[string]int{}
	totalSynced := 0
	skipCount := 0
	errorCount := 0

	for _, entityType := range syncOrder {
		if !modules.Enabled(entityType) {
			continue
		}
		s, err := orch.Syncer(entityType)
		if err != nil {
			return err
		}
		entry := cursors[entityType]

		pushSince := sinceFor(entry.PushedSince, conn.LastSuccessSyncAt)
		report, err := orch.SyncLocallyModified(ctx, entityType, pushSince)
		if report != nil {
			synced, skipped, failed := recordReport(ctx, db, run.ID, payload.CompanyId, report)
			stats[entityType] += synced
			totalSynced += synced
			skipCount += skipped
			errorCount += failed
		}
		if err != nil {
			errorCount++
			_ = createSyncError(ctx, db, run.ID, payload.CompanyId, entityType, "", "", "push_failed", err.Error(), nil, retryableFor(err))
		} else {
			entry.PushedSince = watermark
		}

		if !s.PushOnly() {
			pullSince := sinceFor(entry.PulledSince, conn.LastSuccessSyncAt)
			pullReport, nextPage, err := orch.PullModifiedSince(ctx, entityType, pullSince, entry.Page)
			if pullReport != nil {
				synced, skipped, failed := recordReport(ctx, db, run.ID, payload.CompanyId, pullReport)
				stats[entityType] += synced
				totalSynced += synced
				skipCount += skipped
				errorCount += failed
			}
			if err != nil {
				errorCount++
				// Resume from the page that failed next time.
				entry.Page = nextPage
				_ = createSyncError(ctx, db, run.ID, payload.CompanyId, entityType, "", "", "pull_failed", err.Error(), nil, retryableFor(err))
			} else {
				entry.PulledSince = watermark
				entry.Page = 1
			}
		}

		cursors[entityType] = entry
	}

	finishedAt := time.Now()
	durationMs := finishedAt.Sub(*startedAt).Milliseconds()
	status := models.SyncRunStatusSuccess
	if errorCount > 0 && totalSynced == 0 {
		status = models.SyncRunStatusFailed
	} else if errorCount > 0 {
		status = models.SyncRunStatusPartial
	}

	statsJSON, _ := json.Marshal(stats)
	cursorJSON := EncodeCursorState(cursors)
	if err := db.Model(&run).Updates(map[string]interface{}{
		"status":            status,
		"finished_at":       finishedAt,
		"duration_ms":       durationMs,
		"records_synced":    totalSynced,
		"skip_count":        skipCount,
		"error_count":       errorCount,
		"stats_json":        statsJSON,
		"cursor_state_json": cursorJSON,
	}).Error; err != nil {
		return err
	}

	// The provider rotates refresh tokens; losing the rotated one would force
	// a manual reconnect.
	token := client.Token()
	connUpdates := map[string]interface{}{
		"last_sync_at":      finishedAt,
		"cursor_state_json": cursorJSON,
		"access_token":      token.AccessToken,
		"refresh_token":     token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		connUpdates["token_expires_at"] = token.Expiry
	}
	if status == models.SyncRunStatusSuccess {
		connUpdates["last_success_sync_at"] = finishedAt
	}
	return db.Model(&models.IntegrationConnection{}).
		Where("id = ? AND company_id = ?", conn.ID, payload.CompanyId).
		Updates(connUpdates).Error
}

// sinceFor picks the incremental watermark: the per-entity cursor, then the
// connection-level last success, then a 30 day backstop for first runs.
func sinceFor(cursor string, lastSuccess *time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(cursor)); err == nil {
		return t
	}
	if lastSuccess != nil {
		return lastSuccess.UTC()
	}
	return time.Now().Add(-30 * 24 * time.Hour).UTC()
}

// recordReport persists one error row per failed outcome and returns the
// success/skip/failure tallies.
func recordReport(ctx context.Context, db *gorm.DB, runId uint, companyId string, report *BatchReport) (synced, skipped, failed int) {
	for _, o := range report.Outcomes {
		switch o.Status {
		case OutcomeSuccess:
			synced++
		case OutcomeSkipped:
			skipped++
		case OutcomeFailed:
			failed++
			msg := o.Reason
			if o.Err != nil {
				msg = o.Err.Error()
			}
			_ = createSyncError(ctx, db, runId, companyId, o.EntityType, o.LocalId, o.RemoteId, "entity_failed", msg, nil, retryableFor(o.Err))
		}
	}
	return synced, skipped, failed
}

// retryableFor classifies an error for the retry endpoint. Structural
// payloads and wrong-direction calls never heal on their own; everything else
// (rate limits, timeouts, unresolved dependencies) might.
func retryableFor(err error) bool {
	if err == nil {
		return false
	}
	if IsStructural(err) || IsUnsupportedDirection(err) {
		return false
	}
	return true
}

// finalizeRunFailed marks a run failed before any module work happened and
// returns the original cause.
func finalizeRunFailed(ctx context.Context, db *gorm.DB, run *models.IntegrationSyncRun, cause error) error {
	now := time.Now()
	_ = createSyncError(ctx, db, run.ID, run.CompanyId, "", "", "", "run_failed", cause.Error(), nil, true)
	_ = db.Model(run).Updates(map[string]interface{}{
		"status":      models.SyncRunStatusFailed,
		"finished_at": now,
		"error_count": 1,
	}).Error
	return cause
}

func createSyncError(ctx context.Context, db *gorm.DB, runId uint, companyId string, entityType string, localId string, externalId string, code string, message string, payload []byte, retryable bool) error {
	errRec := models.IntegrationSyncError{
		SyncRunId:   runId,
		CompanyId:   companyId,
		EntityType:  entityType,
		LocalId:     localId,
		ExternalId:  externalId,
		ErrorCode:   code,
		Message:     message,
		PayloadJSON: payload,
		Retryable:   retryable,
	}
	return db.WithContext(ctx).Create(&errRec).Error
}
