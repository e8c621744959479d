package models

import "time"

const (
	IntegrationProviderZentry = "zentry"
)

const (
	IntegrationStatusConnected    = "connected"
	IntegrationStatusDisconnected = "disconnected"
	IntegrationStatusError        = "error"
)

const (
	SyncRunStatusQueued  = "queued"
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusFailed  = "failed"
	SyncRunStatusPartial = "partial"
)

const (
	SyncTriggeredManual = "manual"
	SyncTriggeredRetry  = "retry"
	SyncTriggeredSystem = "system"
)

type IntegrationConnection struct {
	ID                uint       `gorm:"primary_key" json:"id"`
	CompanyId         string     `gorm:"index;size:36;not null" json:"company_id"`
	Provider          string     `gorm:"index;size:50;not null" json:"provider"`
	Status            string     `gorm:"size:20;not null" json:"status"`
	AuthType          string     `gorm:"size:20" json:"auth_type"`
	AccessToken       string     `gorm:"type:text" json:"-"`
	RefreshToken      string     `gorm:"type:text" json:"-"`
	TokenExpiresAt    *time.Time `json:"token_expires_at"`
	TenantRef         string     `gorm:"size:100" json:"tenant_ref"`
	OrgName           string     `gorm:"size:255" json:"org_name"`
	SettingsJSON      []byte     `gorm:"type:json" json:"settings"`
	CursorStateJSON   []byte     `gorm:"type:json" json:"cursor_state"`
	LastSyncAt        *time.Time `json:"last_sync_at"`
	LastSuccessSyncAt *time.Time `json:"last_success_sync_at"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type IntegrationSyncRun struct {
	ID              uint       `gorm:"primary_key" json:"id"`
	CompanyId       string     `gorm:"index;size:36;not null" json:"company_id"`
	ConnectionId    uint       `gorm:"index;not null" json:"connection_id"`
	Provider        string     `gorm:"index;size:50;not null" json:"provider"`
	Status          string     `gorm:"size:20;not null" json:"status"`
	TriggeredBy     string     `gorm:"size:20" json:"triggered_by"`
	ModulesJSON     []byte     `gorm:"type:json" json:"modules"`
	StatsJSON       []byte     `gorm:"type:json" json:"stats"`
	CursorStateJSON []byte     `gorm:"type:json" json:"cursor_state"`
	RecordsSynced   int        `json:"records_synced"`
	ErrorCount      int        `json:"error_count"`
	SkipCount       int        `json:"skip_count"`
	ParentRunId     *uint      `gorm:"index" json:"parent_run_id"`
	StartedAt       *time.Time `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at"`
	DurationMs      int64      `json:"duration_ms"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IntegrationEntityMapping is the persisted local<->remote linkage. The two
// composite unique indexes make the mapping a bijection per
// (company, provider, entity type) in both lookup directions. A single local
// record may still map under several entity types (a contact synced as both
// "customer" and "vendor"), which the indexes deliberately allow.
type IntegrationEntityMapping struct {
	ID              uint       `gorm:"primary_key" json:"id"`
	CompanyId       string     `gorm:"uniqueIndex:idx_mapping_ext,priority:1;uniqueIndex:idx_mapping_int,priority:1;size:36;not null" json:"company_id"`
	ConnectionId    uint       `gorm:"index;not null" json:"connection_id"`
	Provider        string     `gorm:"uniqueIndex:idx_mapping_ext,priority:2;uniqueIndex:idx_mapping_int,priority:2;size:50;not null" json:"provider"`
	EntityType      string     `gorm:"uniqueIndex:idx_mapping_ext,priority:3;uniqueIndex:idx_mapping_int,priority:3;size:50;not null" json:"entity_type"`
	ExternalId      string     `gorm:"uniqueIndex:idx_mapping_ext,priority:4;size:128;not null" json:"external_id"`
	InternalId      string     `gorm:"uniqueIndex:idx_mapping_int,priority:4;size:128;not null" json:"internal_id"`
	RemoteUpdatedAt *time.Time `json:"remote_updated_at"`
	LastSeenAt      *time.Time `json:"last_seen_at"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type IntegrationSyncError struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	SyncRunId   uint      `gorm:"index;not null" json:"sync_run_id"`
	CompanyId   string    `gorm:"index;size:36;not null" json:"company_id"`
	EntityType  string    `gorm:"size:50" json:"entity_type"`
	LocalId     string    `gorm:"size:128" json:"local_id"`
	ExternalId  string    `gorm:"size:128" json:"external_id"`
	ErrorCode   string    `gorm:"size:64" json:"error_code"`
	Message     string    `gorm:"type:text" json:"message"`
	PayloadJSON []byte    `gorm:"type:json" json:"payload"`
	Retryable   bool      `gorm:"default:false" json:"retryable"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
