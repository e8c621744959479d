package zentrysync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// remoteSpec describes one provider collection: its endpoint, the wrapper key
// the API nests arrays under, and the field carrying the remote id.
type remoteSpec struct {
	path    string
	wrapKey string
	idField string
}

var (
	contactSpec       = remoteSpec{path: "/v2/Contacts", wrapKey: "Contacts", idField: "ContactID"}
	itemSpec          = remoteSpec{path: "/v2/Items", wrapKey: "Items", idField: "ItemID"}
	invoiceSpec       = remoteSpec{path: "/v2/Invoices", wrapKey: "Invoices", idField: "InvoiceID"}
	purchaseOrderSpec = remoteSpec{path: "/v2/PurchaseOrders", wrapKey: "PurchaseOrders", idField: "PurchaseOrderID"}
	quoteSpec         = remoteSpec{path: "/v2/Quotes", wrapKey: "Quotes", idField: "QuoteID"}
	manualJournalSpec = remoteSpec{path: "/v2/ManualJournals", wrapKey: "ManualJournals", idField: "ManualJournalID"}
)

func stringField(raw json.RawMessage, field string) string {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	var v string
	if err := json.Unmarshal(probe[field], &v); err != nil {
		return ""
	}
	return v
}

func remoteUpdatedAtOf(raw json.RawMessage) *time.Time {
	return parseZentryDate(stringField(raw, "UpdatedDateUTC"))
}

// unwrapItems parses the provider's standard wrapped-array envelope. A success
// response missing the expected array is a StructuralError, never an empty
// result.
func unwrapItems(raw json.RawMessage, spec remoteSpec) ([]json.RawMessage, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &StructuralError{Path: spec.path, Detail: err.Error()}
	}
	arrRaw, ok := envelope[spec.wrapKey]
	if !ok {
		return nil, &StructuralError{Path: spec.path, Detail: fmt.Sprintf("missing %q array", spec.wrapKey)}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(arrRaw, &items); err != nil {
		return nil, &StructuralError{Path: spec.path, Detail: fmt.Sprintf("%q is not an array", spec.wrapKey)}
	}
	return items, nil
}

func fetchRemoteByID(ctx context.Context, api Transport, spec remoteSpec, remoteId string) (*RemoteEntity, error) {
	raw, err := api.Request(ctx, http.MethodGet, spec.path+"/"+url.PathEscape(remoteId), nil, nil)
	if err != nil {
		return nil, err
	}
	items, err := unwrapItems(raw, spec)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &StructuralError{Path: spec.path, Detail: "empty result for " + remoteId}
	}
	id := stringField(items[0], spec.idField)
	if id == "" {
		return nil, &StructuralError{Path: spec.path, Detail: "result missing " + spec.idField}
	}
	return &RemoteEntity{Id: id, Data: items[0]}, nil
}

// fetchRemoteByIDs fetches many entities in one call via the provider's IDs
// filter. Keyed by remote id; an id missing from the result no longer exists
// remotely, which is not an error here.
func fetchRemoteByIDs(ctx context.Context, api Transport, spec remoteSpec, remoteIds []string) (map[string]*RemoteEntity, error) {
	out := make(map[string]*RemoteEntity, len(remoteIds))
	if len(remoteIds) == 0 {
		return out, nil
	}

	params := url.Values{}
	params.Set("IDs", strings.Join(remoteIds, ","))
	params.Set("pageSize", strconv.Itoa(len(remoteIds)))

	raw, err := api.Request(ctx, http.MethodGet, spec.path, params, nil)
	if err != nil {
		return nil, err
	}
	items, err := unwrapItems(raw, spec)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		id := stringField(item, spec.idField)
		if id == "" {
			return nil, &StructuralError{Path: spec.path, Detail: "list entry missing " + spec.idField}
		}
		out[id] = &RemoteEntity{Id: id, Data: item}
	}
	return out, nil
}

// fetchRemotePage lists one page of entities modified after the given time.
// hasMore is inferred from a full page, the provider's contract for its
// 100-per-page list endpoints.
func fetchRemotePage(ctx context.Context, api Transport, spec remoteSpec, where string, since time.Time, page, pageSize int) ([]*RemoteEntity, bool, error) {
	if pageSize <= 0 {
		pageSize = 100
	}
	params := url.Values{}
	params.Set("ModifiedAfter", since.UTC().Format(time.RFC3339))
	params.Set("page", strconv.Itoa(page))
	params.Set("pageSize", strconv.Itoa(pageSize))
	if where != "" {
		params.Set("where", where)
	}

	raw, err := api.Request(ctx, http.MethodGet, spec.path, params, nil)
	if err != nil {
		return nil, false, err
	}
	items, err := unwrapItems(raw, spec)
	if err != nil {
		return nil, false, err
	}

	out := make([]*RemoteEntity, 0, len(items))
	for _, item := range items {
		id := stringField(item, spec.idField)
		if id == "" {
			return nil, false, &StructuralError{Path: spec.path, Detail: "list entry missing " + spec.idField}
		}
		out = append(out, &RemoteEntity{Id: id, Data: item})
	}
	return out, len(items) == pageSize, nil
}

// escapeWhere quotes a literal for use inside a where filter expression.
func escapeWhere(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, `"`, `\"`)
}

// findRemoteByKey smart-matches one remote entity by a stable human-meaningful
// key (name, code) before the create path, to avoid duplicate remote records
// during backfill. Returns nil when nothing matches.
func findRemoteByKey(ctx context.Context, api Transport, spec remoteSpec, where string) (*RemoteEntity, error) {
	params := url.Values{}
	params.Set("where", where)
	params.Set("pageSize", "1")

	raw, err := api.Request(ctx, http.MethodGet, spec.path, params, nil)
	if err != nil {
		return nil, err
	}
	items, err := unwrapItems(raw, spec)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	id := stringField(items[0], spec.idField)
	if id == "" {
		return nil, &StructuralError{Path: spec.path, Detail: "match missing " + spec.idField}
	}
	return &RemoteEntity{Id: id, Data: items[0]}, nil
}

// postPositionalBatch performs one batched upsert. The provider returns
// results as a positionally-matched array, so each slot is zipped against the
// submitted localIdOrder; a response shorter than the request fails the
// unmatched tail without writing any mapping for it.
func postPositionalBatch(ctx context.Context, api Transport, spec remoteSpec, payloads []*RemotePayload) ([]RemoteResult, error) {
	bodies := make([]map[string]any, len(payloads))
	localIdOrder := make([]string, len(payloads))
	for i, p := range payloads {
		bodies[i] = p.Body
		localIdOrder[i] = p.LocalId
	}

	raw, err := api.Request(ctx, http.MethodPost, spec.path, nil, map[string]any{spec.wrapKey: bodies})
	if err != nil {
		return nil, err
	}
	items, err := unwrapItems(raw, spec)
	if err != nil {
		return nil, err
	}

	results := make([]RemoteResult, len(payloads))
	for i := range payloads {
		results[i].LocalId = localIdOrder[i]
		if i >= len(items) {
			results[i].Err = &StructuralError{
				Path:   spec.path,
				Detail: fmt.Sprintf("response has %d results for %d submitted entities", len(items), len(payloads)),
			}
			continue
		}
		id := stringField(items[i], spec.idField)
		if id == "" {
			results[i].Err = &StructuralError{Path: spec.path, Detail: "result missing " + spec.idField}
			continue
		}
		results[i].RemoteId = id
		results[i].RemoteUpdatedAt = remoteUpdatedAtOf(items[i])
	}
	return results, nil
}
