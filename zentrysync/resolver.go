package zentrysync

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// DependencyResolver guarantees that a referenced entity has a committed
// remote mapping before the referencing entity's payload is built. The
// dependency graph across entity types is acyclic by construction (contacts
// and items never reference documents); re-entry on the same pair is asserted
// defensively rather than handled.
type DependencyResolver struct {
	db       *gorm.DB
	mappings MappingStore
	push     func(ctx context.Context, entityType, localId string) (string, *time.Time, error)
	inflight map[string]bool
}

func newDependencyResolver(db *gorm.DB, mappings MappingStore, push func(ctx context.Context, entityType, localId string) (string, *time.Time, error)) *DependencyResolver {
	return &DependencyResolver{
		db:       db,
		mappings: mappings,
		push:     push,
		inflight: map[string]bool{},
	}
}

// EnsureSynced returns the remote id for a dependency, push-syncing it first
// when no mapping exists. The dependency's mapping is committed before this
// returns, so the caller may embed the remote id in its own payload.
func (r *DependencyResolver) EnsureSynced(ctx context.Context, entityType, localId string) (string, error) {
	if localId == "" || localId == "0" {
		return "", &DependencyUnresolvableError{EntityType: entityType, LocalId: localId}
	}

	remoteId, _, err := r.mappings.GetExternalId(ctx, r.db, entityType, localId)
	if err != nil {
		return "", err
	}
	if remoteId != "" {
		return remoteId, nil
	}

	key := entityType + ":" + localId
	if r.inflight[key] {
		return "", &DependencyUnresolvableError{
			EntityType: entityType,
			LocalId:    localId,
			Err:        fmt.Errorf("%w: %s", errCyclicDependency, key),
		}
	}
	r.inflight[key] = true
	defer delete(r.inflight, key)

	remoteId, _, err = r.push(ctx, entityType, localId)
	if err != nil {
		return "", &DependencyUnresolvableError{EntityType: entityType, LocalId: localId, Err: err}
	}
	if remoteId == "" {
		return "", &DependencyUnresolvableError{EntityType: entityType, LocalId: localId}
	}
	return remoteId, nil
}

// ExternalId is a lookup-only passthrough used by transforms that embed the
// entity's own remote id on the update path. No sync is triggered.
func (r *DependencyResolver) ExternalId(ctx context.Context, entityType, localId string) (string, error) {
	remoteId, _, err := r.mappings.GetExternalId(ctx, r.db, entityType, localId)
	return remoteId, err
}

// ResolveLocal looks up the local id for a remote dependency during a pull.
// Lookup only: a missing mapping is DependencyUnresolvable so that no partial
// local record is created for a document whose contact was never synced.
func (r *DependencyResolver) ResolveLocal(ctx context.Context, entityType, remoteId string) (string, error) {
	if remoteId == "" {
		return "", &DependencyUnresolvableError{EntityType: entityType}
	}
	localId, err := r.mappings.GetEntityId(ctx, r.db, entityType, remoteId)
	if err != nil {
		return "", err
	}
	if localId == "" {
		return "", &DependencyUnresolvableError{
			EntityType: entityType,
			LocalId:    "",
			Err:        fmt.Errorf("no local mapping for remote %s %q", entityType, remoteId),
		}
	}
	return localId, nil
}
