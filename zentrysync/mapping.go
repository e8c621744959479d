package zentrysync

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/factory_backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MappingStore is the persistent local<->remote id linkage. Pure key/value
// lookup with composite uniqueness; no entity-specific knowledge. Every method
// takes the caller's db handle so Link can participate in the same transaction
// as the local-entity write it accompanies.
type MappingStore interface {
	// GetExternalId returns the remote id and last-known remote update time for
	// a local entity, or ("", nil, nil) when no mapping exists.
	GetExternalId(ctx context.Context, db *gorm.DB, entityType, localId string) (string, *time.Time, error)
	// GetEntityId is the inverse lookup; returns "" when no mapping exists.
	GetEntityId(ctx context.Context, db *gorm.DB, entityType, externalId string) (string, error)
	// Link upserts the mapping. Idempotent under retry: identical arguments
	// leave the store in the same observable state.
	Link(ctx context.Context, db *gorm.DB, entityType, localId, externalId string, remoteUpdatedAt *time.Time) error
}

type gormMappingStore struct {
	companyId    string
	connectionId uint
	provider     string
}

func NewMappingStore(companyId string, connectionId uint, provider string) MappingStore {
	return &gormMappingStore{
		companyId:    companyId,
		connectionId: connectionId,
		provider:     provider,
	}
}

func (s *gormMappingStore) GetExternalId(ctx context.Context, db *gorm.DB, entityType, localId string) (string, *time.Time, error) {
	var mapping models.IntegrationEntityMapping
	err := db.WithContext(ctx).
		Where("company_id = ? AND provider = ? AND entity_type = ? AND internal_id = ?",
			s.companyId, s.provider, entityType, localId).
		Take(&mapping).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, nil
		}
		return "", nil, err
	}
	return mapping.ExternalId, mapping.RemoteUpdatedAt, nil
}

func (s *gormMappingStore) GetEntityId(ctx context.Context, db *gorm.DB, entityType, externalId string) (string, error) {
	var mapping models.IntegrationEntityMapping
	err := db.WithContext(ctx).
		Where("company_id = ? AND provider = ? AND entity_type = ? AND external_id = ?",
			s.companyId, s.provider, entityType, externalId).
		Take(&mapping).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return mapping.InternalId, nil
}

func (s *gormMappingStore) Link(ctx context.Context, db *gorm.DB, entityType, localId, externalId string, remoteUpdatedAt *time.Time) error {
	if localId == "" || externalId == "" {
		return errors.New("mapping link requires both local and external ids")
	}
	now := time.Now()
	mapping := models.IntegrationEntityMapping{
		CompanyId:       s.companyId,
		ConnectionId:    s.connectionId,
		Provider:        s.provider,
		EntityType:      entityType,
		ExternalId:      externalId,
		InternalId:      localId,
		RemoteUpdatedAt: remoteUpdatedAt,
		LastSeenAt:      &now,
	}
	// ON DUPLICATE KEY covers both composite unique indexes, which keeps the
	// bijection intact when either side of the pair already exists.
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			DoUpdates: clause.AssignmentColumns([]string{
				"connection_id", "external_id", "internal_id", "remote_updated_at", "last_seen_at",
			}),
		}).
		Create(&mapping).Error
}
