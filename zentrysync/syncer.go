package zentrysync

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Entity type identifiers used as mapping-store keys. These strings, not table
// names, are the contract between syncers and the mapping store.
const (
	EntityCustomer            = "customer"
	EntityVendor              = "vendor"
	EntityItem                = "item"
	EntityBill                = "bill"
	EntityInvoice             = "invoice"
	EntityPurchaseOrder       = "purchaseOrder"
	EntitySalesOrder          = "salesOrder"
	EntityInventoryAdjustment = "inventoryAdjustment"
)

type Direction string

const (
	DirectionPush Direction = "push"
	DirectionPull Direction = "pull"
)

// Config carries the per-connection sync settings that the original code read
// from an ambient settings object. Passed explicitly at construction.
type Config struct {
	// PageSize bounds remote batch/list calls (provider limit: 100).
	PageSize int
	// TieBreak decides direction when local and remote timestamps are equal.
	TieBreak Direction
	// InitialDirection decides push vs pull for entities with no mapping yet.
	InitialDirection map[string]Direction
	// AllowCreate permits creating a brand-new record (remote on push, local on
	// pull) when smart matching finds nothing. Keyed by entity type.
	AllowCreate map[string]bool

	SalesAccountCode      string
	PurchaseAccountCode   string
	InventoryAccountCode  string
	AdjustmentAccountCode string
}

func DefaultConfig() Config {
	return Config{
		PageSize: 100,
		TieBreak: DirectionPush,
		InitialDirection: map[string]Direction{
			EntityCustomer:            DirectionPush,
			EntityVendor:              DirectionPush,
			EntityItem:                DirectionPush,
			EntityBill:                DirectionPush,
			EntityInvoice:             DirectionPush,
			EntityPurchaseOrder:       DirectionPush,
			EntitySalesOrder:          DirectionPush,
			EntityInventoryAdjustment: DirectionPush,
		},
		AllowCreate: map[string]bool{
			EntityCustomer:            true,
			EntityVendor:              true,
			EntityItem:                true,
			EntityBill:                true,
			EntityInvoice:             true,
			EntityPurchaseOrder:       true,
			EntitySalesOrder:          true,
			EntityInventoryAdjustment: true,
		},
		SalesAccountCode:      "200",
		PurchaseAccountCode:   "300",
		InventoryAccountCode:  "630",
		AdjustmentAccountCode: "631",
	}
}

// LocalEntity is the normalized in-memory shape of one tenant-owned record,
// assembled from header + line rows. Data holds the typed model; Raw keeps the
// untransformed source rows for debugging.
type LocalEntity struct {
	Id        string
	CompanyId string
	Status    string
	UpdatedAt time.Time
	Data      any
	Raw       any
}

// RemoteEntity is the provider's representation, kept as raw JSON plus the
// fields every syncer needs.
type RemoteEntity struct {
	Id   string
	Data json.RawMessage
}

// RemotePayload is the provider-shaped write for one local entity.
type RemotePayload struct {
	LocalId string
	Body    map[string]any
}

// LocalPatch is the result of an inverse transform, applied by UpsertLocal
// inside the orchestrator's transaction. LocalId is filled in by the
// orchestrator when an existing mapping already names the target record.
type LocalPatch struct {
	LocalId string
	Data    any
}

// RemoteResult attributes one slot of a positionally-matched batch response
// back to the local id that produced it.
type RemoteResult struct {
	LocalId         string
	RemoteId        string
	RemoteUpdatedAt *time.Time
	Err             error
}

// EntitySyncer is the per-entity-type sync contract. Shared orchestration
// stays generic over this interface.
type EntitySyncer interface {
	EntityType() string
	// PushOnly reports that no inverse transform exists; MapToLocal and
	// UpsertLocal must return UnsupportedDirectionError.
	PushOnly() bool
	// ShouldSync gates every push/pull. A false return with a reason string
	// means "skip and record the reason", not an error.
	ShouldSync(ctx context.Context, local *LocalEntity) (bool, string)

	FetchLocal(ctx context.Context, db *gorm.DB, id string) (*LocalEntity, error)
	FetchLocalBatch(ctx context.Context, db *gorm.DB, ids []string) (map[string]*LocalEntity, error)
	ListLocalModifiedSince(ctx context.Context, db *gorm.DB, since time.Time) ([]string, error)

	FetchRemote(ctx context.Context, api Transport, remoteId string) (*RemoteEntity, error)
	// FetchRemoteBatch fetches many entities by id in one provider call,
	// keyed by remote id. Ids absent from the result were deleted remotely.
	FetchRemoteBatch(ctx context.Context, api Transport, remoteIds []string) (map[string]*RemoteEntity, error)
	FetchRemoteModifiedSince(ctx context.Context, api Transport, since time.Time, page int) ([]*RemoteEntity, bool, error)
	RemoteUpdatedAt(remote *RemoteEntity) *time.Time

	MapToRemote(ctx context.Context, deps *DependencyResolver, local *LocalEntity) (*RemotePayload, error)
	MapToLocal(ctx context.Context, deps *DependencyResolver, remote *RemoteEntity) (*LocalPatch, error)

	UpsertLocal(ctx context.Context, tx *gorm.DB, patch *LocalPatch, remoteId string) (string, error)
	UpsertRemoteBatch(ctx context.Context, api Transport, payloads []*RemotePayload) ([]RemoteResult, error)
}

// chooseDirection implements last-write-wins at whole-entity granularity.
// Field-level merge is deliberately not attempted; simultaneous edits on both
// sides lose the older side entirely.
func chooseDirection(localUpdatedAt time.Time, remoteUpdatedAt *time.Time, cfg Config) Direction {
	if remoteUpdatedAt == nil {
		return DirectionPush
	}
	if localUpdatedAt.After(*remoteUpdatedAt) {
		return DirectionPush
	}
	if remoteUpdatedAt.After(localUpdatedAt) {
		return DirectionPull
	}
	return cfg.TieBreak
}

var refPattern = regexp.MustCompile(`\[erp:([a-zA-Z]+):([A-Za-z0-9-]+)\]`)

// pushOnlyEntity supplies the pull-side methods for entity types that only
// flow outward. The orchestrator never calls these for a push-only type, so
// reaching one is a programming error surfaced as UnsupportedDirectionError.
type pushOnlyEntity struct {
	entityType string
}

func (p pushOnlyEntity) PushOnly() bool { return true }

func (p pushOnlyEntity) FetchRemote(ctx context.Context, api Transport, remoteId string) (*RemoteEntity, error) {
	return nil, &UnsupportedDirectionError{EntityType: p.entityType, Operation: "fetchRemote"}
}

func (p pushOnlyEntity) FetchRemoteBatch(ctx context.Context, api Transport, remoteIds []string) (map[string]*RemoteEntity, error) {
	return nil, &UnsupportedDirectionError{EntityType: p.entityType, Operation: "fetchRemoteBatch"}
}

func (p pushOnlyEntity) FetchRemoteModifiedSince(ctx context.Context, api Transport, since time.Time, page int) ([]*RemoteEntity, bool, error) {
	return nil, false, &UnsupportedDirectionError{EntityType: p.entityType, Operation: "fetchRemoteModifiedSince"}
}

func (p pushOnlyEntity) RemoteUpdatedAt(remote *RemoteEntity) *time.Time { return nil }

func (p pushOnlyEntity) MapToLocal(ctx context.Context, deps *DependencyResolver, remote *RemoteEntity) (*LocalPatch, error) {
	return nil, &UnsupportedDirectionError{EntityType: p.entityType, Operation: "mapToLocal"}
}

func (p pushOnlyEntity) UpsertLocal(ctx context.Context, tx *gorm.DB, patch *LocalPatch, remoteId string) (string, error) {
	return "", &UnsupportedDirectionError{EntityType: p.entityType, Operation: "upsertLocal"}
}

// EmbedReference encodes a local back-reference inside a free-text remote
// field, because the provider schema has no native field for it. The marker
// survives a round trip as long as the field is not truncated below the marker
// length; ExtractReference is the inverse.
func EmbedReference(text, entityType, localId string) string {
	marker := fmt.Sprintf("[erp:%s:%s]", entityType, localId)
	if text == "" {
		return marker
	}
	return text + " " + marker
}

// ExtractReference recovers the embedded back-reference, returning the
// remaining text with the marker stripped.
func ExtractReference(text string) (entityType string, localId string, rest string, ok bool) {
	m := refPattern.FindStringSubmatchIndex(text)
	if m == nil {
		return "", "", text, false
	}
	entityType = text[m[2]:m[3]]
	localId = text[m[4]:m[5]]
	rest = strings.TrimSpace(text[:m[0]] + text[m[1]:])
	return entityType, localId, rest, true
}

var zentryDatePattern = regexp.MustCompile(`/Date\((-?\d+)(?:[+-]\d{4})?\)/`)

// parseZentryDate extracts a timestamp from the provider's epoch-wrapped date
// string, e.g. "/Date(1700000000000+0000)/". Returns nil when absent or
// malformed so callers fall back to push-wins.
func parseZentryDate(value string) *time.Time {
	m := zentryDatePattern.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return nil
	}
	ms, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

func formatZentryDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func parseZentryDay(value string) (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(value))
}

// parseRemoteDay accepts either the epoch-wrapped or the plain day form; the
// provider emits both depending on endpoint.
func parseRemoteDay(value string) (time.Time, error) {
	if t := parseZentryDate(value); t != nil {
		return *t, nil
	}
	return parseZentryDay(value)
}

// stripReference removes our embedded marker of the given type from inbound
// free text so it does not accumulate on round trips.
func stripReference(text, entityType string) string {
	extracted, _, rest, ok := ExtractReference(text)
	if ok && extracted == entityType {
		return rest
	}
	return text
}
