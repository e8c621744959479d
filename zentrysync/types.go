package zentrysync

import "encoding/json"

type SyncModules struct {
	Customers            bool `json:"customers"`
	Vendors              bool `json:"vendors"`
	Items                bool `json:"items"`
	Bills                bool `json:"bills"`
	Invoices             bool `json:"invoices"`
	PurchaseOrders       bool `json:"purchaseOrders"`
	SalesOrders          bool `json:"salesOrders"`
	InventoryAdjustments bool `json:"inventoryAdjustments"`
}

func DefaultModules() SyncModules {
	return SyncModules{
		Customers:            true,
		Vendors:              true,
		Items:                true,
		Bills:                true,
		Invoices:             true,
		PurchaseOrders:       false,
		SalesOrders:          false,
		InventoryAdjustments: false,
	}
}

func NormalizeModules(mod SyncModules) SyncModules {
	// Documents cannot sync without their referenced contacts and items, so
	// the master-data modules are always on.
	mod.Customers = true
	mod.Vendors = true
	mod.Items = true
	return mod
}

func DecodeModules(raw []byte) SyncModules {
	if len(raw) == 0 {
		return DefaultModules()
	}
	var mod SyncModules
	if err := json.Unmarshal(raw, &mod); err != nil {
		return DefaultModules()
	}
	return NormalizeModules(mod)
}

func EncodeModules(mod SyncModules) []byte {
	b, _ := json.Marshal(NormalizeModules(mod))
	return b
}

// Enabled reports whether the module covering the entity type is on.
func (m SyncModules) Enabled(entityType string) bool {
	switch entityType {
	case EntityCustomer:
		return m.Customers
	case EntityVendor:
		return m.Vendors
	case EntityItem:
		return m.Items
	case EntityBill:
		return m.Bills
	case EntityInvoice:
		return m.Invoices
	case EntityPurchaseOrder:
		return m.PurchaseOrders
	case EntitySalesOrder:
		return m.SalesOrders
	case EntityInventoryAdjustment:
		return m.InventoryAdjustments
	default:
		return false
	}
}

// CursorEntry tracks incremental progress per entity type and direction.
// PushedSince/PulledSince are RFC3339 watermarks; Page survives a partially
// consumed remote listing.
type CursorEntry struct {
	PushedSince string `json:"pushed_since"`
	PulledSince string `json:"pulled_since"`
	Page        int    `json:"page"`
}

type CursorState map[string]CursorEntry

func DecodeCursorState(raw []byte) CursorState {
	state := CursorState{}
	if len(raw) == 0 {
		return state
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return CursorState{}
	}
	return state
}

func EncodeCursorState(state CursorState) []byte {
	b, _ := json.Marshal(state)
	return b
}

type ConnectRequest struct {
	TenantRef    string `json:"tenantRef"`
	OrgName      string `json:"orgName"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type UpdateSettingsRequest struct {
	Modules SyncModules `json:"modules"`
}

type TriggerSyncRequest struct {
	Modules SyncModules `json:"modules"`
}

type StatusResponse struct {
	Connection        ConnectionResponse `json:"connection"`
	LastSyncAt        *string            `json:"lastSyncAt"`
	LastSuccessSyncAt *string            `json:"lastSuccessSyncAt"`
	Modules           SyncModules        `json:"modules"`
}

type ConnectionResponse struct {
	Status    string `json:"status"`
	TenantRef string `json:"tenantRef"`
	OrgName   string `json:"orgName"`
}

type SyncHistoryResponse struct {
	Items []SyncRunResponse `json:"items"`
}

type SyncRunResponse struct {
	ID            uint    `json:"id"`
	Status        string  `json:"status"`
	StartedAt     *string `json:"startedAt"`
	FinishedAt    *string `json:"finishedAt"`
	DurationMs    int64   `json:"durationMs"`
	RecordsSynced int     `json:"recordsSynced"`
	SkipCount     int     `json:"skipCount"`
	ErrorCount    int     `json:"errorCount"`
	TriggeredBy   string  `json:"triggeredBy"`
}

type SyncRunDetailResponse struct {
	SyncRunResponse
	Errors []SyncErrorResponse `json:"errors"`
}

type SyncErrorResponse struct {
	ID         uint   `json:"id"`
	EntityType string `json:"entityType"`
	LocalId    string `json:"localId"`
	ExternalId string `json:"externalId"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
}

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type SyncPubSubPayload struct {
	RunId        uint   `json:"run_id"`
	CompanyId    string `json:"company_id"`
	ConnectionId uint   `json:"connection_id"`
}
