package zentrysync_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"encoding/json"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/mmdatafocus/factory_backend/zentrysync"
)

// The orchestrator only needs transaction begin/commit from the database in
// these tests; every read and write goes through fakes. This driver supplies
// that and fails loudly on any real SQL.
type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) { return stubConn{}, nil }

type stubConnector struct{}

func (stubConnector) Connect(context.Context) (driver.Conn, error) { return stubConn{}, nil }
func (stubConnector) Driver() driver.Driver                        { return stubDriver{} }

type stubConn struct{}

func (stubConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("unexpected SQL: " + query)
}
func (stubConn) Close() error              { return nil }
func (stubConn) Begin() (driver.Tx, error) { return stubTx{}, nil }

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

func newStubDB(t *testing.T) *gorm.DB {
	t.Helper()
	sqlDB := sql.OpenDB(stubConnector{})
	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	return db
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type linkRecord struct {
	entityType string
	localId    string
	externalId string
}

// memMappings is an in-memory MappingStore. The db handle is accepted and
// ignored so the same fake serves both transactional and plain lookups.
type memMappings struct {
	external map[string]string
	local    map[string]string
	links    []linkRecord
}

func newMemMappings() *memMappings {
	return &memMappings{external: map[string]string{}, local: map[string]string{}}
}

func (m *memMappings) GetExternalId(ctx context.Context, db *gorm.DB, entityType, localId string) (string, *time.Time, error) {
	return m.external[entityType+":"+localId], nil, nil
}

func (m *memMappings) GetEntityId(ctx context.Context, db *gorm.DB, entityType, externalId string) (string, error) {
	return m.local[entityType+":"+externalId], nil
}

func (m *memMappings) Link(ctx context.Context, db *gorm.DB, entityType, localId, externalId string, remoteUpdatedAt *time.Time) error {
	m.external[entityType+":"+localId] = externalId
	m.local[entityType+":"+externalId] = localId
	m.links = append(m.links, linkRecord{entityType: entityType, localId: localId, externalId: externalId})
	return nil
}

type nopTransport struct{}

func (nopTransport) Request(ctx context.Context, method, path string, params url.Values, body any) (json.RawMessage, error) {
	return nil, errors.New("unexpected remote call")
}

// fakeEntity implements EntitySyncer with overridable hooks. Defaults: every
// known local pushes cleanly and maps to remote id "R-"+localId.
type fakeEntity struct {
	entityType string
	pushOnly   bool

	locals  map[string]*zentrysync.LocalEntity
	remotes map[string]*zentrysync.RemoteEntity
	skip    map[string]string

	mapToRemote func(ctx context.Context, deps *zentrysync.DependencyResolver, local *zentrysync.LocalEntity) (*zentrysync.RemotePayload, error)
	mapToLocal  func(ctx context.Context, deps *zentrysync.DependencyResolver, remote *zentrysync.RemoteEntity) (*zentrysync.LocalPatch, error)
	upsertBatch func(payloads []*zentrysync.RemotePayload) ([]zentrysync.RemoteResult, error)

	pushedBatches [][]string
	upserted      []*zentrysync.LocalPatch
	singleFetches int
	batchFetches  [][]string
}

func newFakeEntity(entityType string) *fakeEntity {
	return &fakeEntity{
		entityType: entityType,
		locals:     map[string]*zentrysync.LocalEntity{},
		remotes:    map[string]*zentrysync.RemoteEntity{},
		skip:       map[string]string{},
	}
}

func (f *fakeEntity) addLocal(id string, updatedAt time.Time) {
	f.locals[id] = &zentrysync.LocalEntity{Id: id, UpdatedAt: updatedAt}
}

func (f *fakeEntity) EntityType() string { return f.entityType }
func (f *fakeEntity) PushOnly() bool     { return f.pushOnly }

func (f *fakeEntity) ShouldSync(ctx context.Context, local *zentrysync.LocalEntity) (bool, string) {
	if reason, ok := f.skip[local.Id]; ok {
		return false, reason
	}
	return true, ""
}

func (f *fakeEntity) FetchLocal(ctx context.Context, db *gorm.DB, id string) (*zentrysync.LocalEntity, error) {
	return f.locals[id], nil
}

func (f *fakeEntity) FetchLocalBatch(ctx context.Context, db *gorm.DB, ids []string) (map[string]*zentrysync.LocalEntity, error) {
	out := map[string]*zentrysync.LocalEntity{}
	for _, id := range ids {
		if local, ok := f.locals[id]; ok {
			out[id] = local
		}
	}
	return out, nil
}

func (f *fakeEntity) ListLocalModifiedSince(ctx context.Context, db *gorm.DB, since time.Time) ([]string, error) {
	var ids []string
	for id, local := range f.locals {
		if local.UpdatedAt.After(since) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeEntity) FetchRemote(ctx context.Context, api zentrysync.Transport, remoteId string) (*zentrysync.RemoteEntity, error) {
	f.singleFetches++
	remote, ok := f.remotes[remoteId]
	if !ok {
		return nil, errors.New("remote not found: " + remoteId)
	}
	return remote, nil
}

func (f *fakeEntity) FetchRemoteBatch(ctx context.Context, api zentrysync.Transport, remoteIds []string) (map[string]*zentrysync.RemoteEntity, error) {
	f.batchFetches = append(f.batchFetches, remoteIds)
	out := map[string]*zentrysync.RemoteEntity{}
	for _, id := range remoteIds {
		if remote, ok := f.remotes[id]; ok {
			out[id] = remote
		}
	}
	return out, nil
}

func (f *fakeEntity) FetchRemoteModifiedSince(ctx context.Context, api zentrysync.Transport, since time.Time, page int) ([]*zentrysync.RemoteEntity, bool, error) {
	if page > 1 {
		return nil, false, nil
	}
	var out []*zentrysync.RemoteEntity
	for _, remote := range f.remotes {
		out = append(out, remote)
	}
	return out, false, nil
}

func (f *fakeEntity) RemoteUpdatedAt(remote *zentrysync.RemoteEntity) *time.Time {
	var doc struct {
		UpdatedAt time.Time `json:"updatedAt"`
	}
	if err := json.Unmarshal(remote.Data, &doc); err != nil || doc.UpdatedAt.IsZero() {
		return nil
	}
	return &doc.UpdatedAt
}

func (f *fakeEntity) MapToRemote(ctx context.Context, deps *zentrysync.DependencyResolver, local *zentrysync.LocalEntity) (*zentrysync.RemotePayload, error) {
	if f.mapToRemote != nil {
		return f.mapToRemote(ctx, deps, local)
	}
	return &zentrysync.RemotePayload{LocalId: local.Id, Body: map[string]any{"localId": local.Id}}, nil
}

func (f *fakeEntity) MapToLocal(ctx context.Context, deps *zentrysync.DependencyResolver, remote *zentrysync.RemoteEntity) (*zentrysync.LocalPatch, error) {
	if f.mapToLocal != nil {
		return f.mapToLocal(ctx, deps, remote)
	}
	return &zentrysync.LocalPatch{Data: remote.Id}, nil
}

func (f *fakeEntity) UpsertLocal(ctx context.Context, tx *gorm.DB, patch *zentrysync.LocalPatch, remoteId string) (string, error) {
	f.upserted = append(f.upserted, patch)
	if patch.LocalId != "" {
		return patch.LocalId, nil
	}
	return "new-" + remoteId, nil
}

func (f *fakeEntity) UpsertRemoteBatch(ctx context.Context, api zentrysync.Transport, payloads []*zentrysync.RemotePayload) ([]zentrysync.RemoteResult, error) {
	order := make([]string, len(payloads))
	for i, p := range payloads {
		order[i] = p.LocalId
	}
	f.pushedBatches = append(f.pushedBatches, order)
	if f.upsertBatch != nil {
		return f.upsertBatch(payloads)
	}
	results := make([]zentrysync.RemoteResult, len(payloads))
	for i, p := range payloads {
		results[i] = zentrysync.RemoteResult{LocalId: p.LocalId, RemoteId: "R-" + p.LocalId}
	}
	return results, nil
}

func newTestOrchestrator(t *testing.T, mappings zentrysync.MappingStore, syncers ...zentrysync.EntitySyncer) *zentrysync.Orchestrator {
	t.Helper()
	return newTestOrchestratorCfg(t, zentrysync.DefaultConfig(), mappings, syncers...)
}

func newTestOrchestratorCfg(t *testing.T, cfg zentrysync.Config, mappings zentrysync.MappingStore, syncers ...zentrysync.EntitySyncer) *zentrysync.Orchestrator {
	t.Helper()
	o := zentrysync.NewOrchestrator(newStubDB(t), nopTransport{}, mappings, cfg, quietLogger(), "company-1")
	for _, s := range syncers {
		o.Register(s)
	}
	return o
}

func TestSyncBatchPushCommitsMappings(t *testing.T) {
	now := time.Now()
	customers := newFakeEntity(zentrysync.EntityCustomer)
	customers.addLocal("1", now)
	customers.addLocal("2", now)
	mappings := newMemMappings()

	report, err := newTestOrchestrator(t, mappings, customers).
		SyncBatch(context.Background(), zentrysync.EntityCustomer, []string{"1", "2"})
	if err != nil {
		t.Fatal(err)
	}
	if report.Count(zentrysync.OutcomeSuccess) != 2 {
		t.Fatalf("outcomes: %+v", report.Outcomes)
	}
	if len(customers.pushedBatches) != 1 || strings.Join(customers.pushedBatches[0], ",") != "1,2" {
		t.Errorf("batch order: %v", customers.pushedBatches)
	}
	if got, _, _ := mappings.GetExternalId(context.Background(), nil, zentrysync.EntityCustomer, "1"); got != "R-1" {
		t.Errorf("mapping for 1 = %q", got)
	}
	if got, _, _ := mappings.GetExternalId(context.Background(), nil, zentrysync.EntityCustomer, "2"); got != "R-2" {
		t.Errorf("mapping for 2 = %q", got)
	}
}

func TestSyncBatchSiblingIsolation(t *testing.T) {
	now := time.Now()
	items := newFakeEntity(zentrysync.EntityItem)
	items.addLocal("10", now)
	items.addLocal("11", now)
	items.addLocal("12", now)
	items.upsertBatch = func(payloads []*zentrysync.RemotePayload) ([]zentrysync.RemoteResult, error) {
		results := make([]zentrysync.RemoteResult, len(payloads))
		for i, p := range payloads {
			if p.LocalId == "11" {
				results[i] = zentrysync.RemoteResult{LocalId: p.LocalId, Err: errors.New("validation: duplicate code")}
				continue
			}
			results[i] = zentrysync.RemoteResult{LocalId: p.LocalId, RemoteId: "R-" + p.LocalId}
		}
		return results, nil
	}
	mappings := newMemMappings()

	report, err := newTestOrchestrator(t, mappings, items).
		SyncBatch(context.Background(), zentrysync.EntityItem, []string{"10", "11", "12"})
	if err != nil {
		t.Fatal(err)
	}
	if report.Count(zentrysync.OutcomeSuccess) != 2 || report.Count(zentrysync.OutcomeFailed) != 1 {
		t.Fatalf("outcomes: %+v", report.Outcomes)
	}
	if len(mappings.links) != 2 {
		t.Errorf("links: %+v", mappings.links)
	}
	if got, _, _ := mappings.GetExternalId(context.Background(), nil, zentrysync.EntityItem, "11"); got != "" {
		t.Errorf("failed slot must not be linked, got %q", got)
	}
}

func TestSyncBatchWholeChunkFailureWritesNothing(t *testing.T) {
	now := time.Now()
	items := newFakeEntity(zentrysync.EntityItem)
	items.addLocal("10", now)
	items.addLocal("11", now)
	items.upsertBatch = func(payloads []*zentrysync.RemotePayload) ([]zentrysync.RemoteResult, error) {
		return nil, &zentrysync.TransientError{Err: errors.New("gateway timeout")}
	}
	mappings := newMemMappings()

	report, err := newTestOrchestrator(t, mappings, items).
		SyncBatch(context.Background(), zentrysync.EntityItem, []string{"10", "11"})
	if err != nil {
		t.Fatal(err)
	}
	if report.Count(zentrysync.OutcomeFailed) != 2 {
		t.Fatalf("outcomes: %+v", report.Outcomes)
	}
	if len(mappings.links) != 0 {
		t.Errorf("chunk failure must not write mappings: %+v", mappings.links)
	}
}

func TestSyncBatchRecordsSkips(t *testing.T) {
	now := time.Now()
	bills := newFakeEntity(zentrysync.EntityBill)
	bills.addLocal("5", now)
	bills.addLocal("6", now)
	bills.skip["6"] = "bill still in Draft status"

	report, err := newTestOrchestrator(t, newMemMappings(), bills).
		SyncBatch(context.Background(), zentrysync.EntityBill, []string{"5", "6"})
	if err != nil {
		t.Fatal(err)
	}
	if report.Count(zentrysync.OutcomeSuccess) != 1 || report.Count(zentrysync.OutcomeSkipped) != 1 {
		t.Fatalf("outcomes: %+v", report.Outcomes)
	}
	if len(bills.pushedBatches) != 1 || strings.Join(bills.pushedBatches[0], ",") != "5" {
		t.Errorf("skipped entity reached the remote: %v", bills.pushedBatches)
	}
	for _, o := range report.Outcomes {
		if o.Status == zentrysync.OutcomeSkipped && o.Reason != "bill still in Draft status" {
			t.Errorf("skip reason = %q", o.Reason)
		}
	}
}

func TestSyncBatchMissingLocalFails(t *testing.T) {
	customers := newFakeEntity(zentrysync.EntityCustomer)
	customers.addLocal("1", time.Now())

	report, err := newTestOrchestrator(t, newMemMappings(), customers).
		SyncBatch(context.Background(), zentrysync.EntityCustomer, []string{"1", "999"})
	if err != nil {
		t.Fatal(err)
	}
	if report.Count(zentrysync.OutcomeSuccess) != 1 || report.Count(zentrysync.OutcomeFailed) != 1 {
		t.Fatalf("outcomes: %+v", report.Outcomes)
	}
}

func TestSyncBatchPullsWhenRemoteNewer(t *testing.T) {
	localAt := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	remoteAt := localAt.Add(time.Hour)

	customers := newFakeEntity(zentrysync.EntityCustomer)
	customers.addLocal("1", localAt)
	customers.remotes["R-1"] = &zentrysync.RemoteEntity{
		Id:   "R-1",
		Data: json.RawMessage(`{"updatedAt":"` + remoteAt.Format(time.RFC3339) + `"}`),
	}
	mappings := newMemMappings()
	mappings.Link(context.Background(), nil, zentrysync.EntityCustomer, "1", "R-1", nil)
	mappings.links = nil

	report, err := newTestOrchestrator(t, mappings, customers).
		SyncBatch(context.Background(), zentrysync.EntityCustomer, []string{"1"})
	if err != nil {
		t.Fatal(err)
	}
	if report.Count(zentrysync.OutcomeSuccess) != 1 {
		t.Fatalf("outcomes: %+v", report.Outcomes)
	}
	if len(customers.pushedBatches) != 0 {
		t.Errorf("a newer remote must not be pushed over: %v", customers.pushedBatches)
	}
	if len(customers.upserted) != 1 {
		t.Fatalf("upserts: %d", len(customers.upserted))
	}
	// The existing mapping names the local record to update.
	if customers.upserted[0].LocalId != "1" {
		t.Errorf("patch targeted %q, want the mapped local id", customers.upserted[0].LocalId)
	}
}

func TestSyncBatchMappedPushWhenLocalNewer(t *testing.T) {
	remoteAt := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	localAt := remoteAt.Add(time.Hour)

	customers := newFakeEntity(zentrysync.EntityCustomer)
	customers.addLocal("1", localAt)
	customers.remotes["R-1"] = &zentrysync.RemoteEntity{
		Id:   "R-1",
		Data: json.RawMessage(`{"updatedAt":"` + remoteAt.Format(time.RFC3339) + `"}`),
	}
	mappings := newMemMappings()
	mappings.Link(context.Background(), nil, zentrysync.EntityCustomer, "1", "R-1", nil)

	report, err := newTestOrchestrator(t, mappings, customers).
		SyncBatch(context.Background(), zentrysync.EntityCustomer, []string{"1"})
	if err != nil {
		t.Fatal(err)
	}
	if report.Count(zentrysync.OutcomeSuccess) != 1 {
		t.Fatalf("outcomes: %+v", report.Outcomes)
	}
	if len(customers.pushedBatches) != 1 {
		t.Errorf("expected a push, got %v", customers.pushedBatches)
	}
	if len(customers.upserted) != 0 {
		t.Error("a newer local must not be overwritten by a pull")
	}
}

func TestSyncBatchResolvesDependencyFirst(t *testing.T) {
	now := time.Now()
	customers := newFakeEntity(zentrysync.EntityCustomer)
	customers.addLocal("7", now)

	invoices := newFakeEntity(zentrysync.EntityInvoice)
	invoices.addLocal("100", now)
	invoices.mapToRemote = func(ctx context.Context, deps *zentrysync.DependencyResolver, local *zentrysync.LocalEntity) (*zentrysync.RemotePayload, error) {
		contactId, err := deps.EnsureSynced(ctx, zentrysync.EntityCustomer, "7")
		if err != nil {
			return nil, err
		}
		return &zentrysync.RemotePayload{LocalId: local.Id, Body: map[string]any{"ContactID": contactId}}, nil
	}
	mappings := newMemMappings()

	report, err := newTestOrchestrator(t, mappings, customers, invoices).
		SyncBatch(context.Background(), zentrysync.EntityInvoice, []string{"100"})
	if err != nil {
		t.Fatal(err)
	}
	if report.Count(zentrysync.OutcomeSuccess) != 1 {
		t.Fatalf("outcomes: %+v", report.Outcomes)
	}
	// The customer was pushed and linked before the invoice payload shipped.
	if len(customers.pushedBatches) != 1 {
		t.Fatalf("customer pushes: %v", customers.pushedBatches)
	}
	if len(mappings.links) != 2 || mappings.links[0].entityType != zentrysync.EntityCustomer {
		t.Errorf("link order: %+v", mappings.links)
	}
	if got := mappings.external[zentrysync.EntityInvoice+":100"]; got != "R-100" {
		t.Errorf("invoice mapping = %q", got)
	}
}

func TestSyncBatchUnresolvableDependencyFailsEntity(t *testing.T) {
	now := time.Now()
	customers := newFakeEntity(zentrysync.EntityCustomer)
	// Customer 7 does not exist locally, so the dependency push fails.
	invoices := newFakeEntity(zentrysync.EntityInvoice)
	invoices.addLocal("100", now)
	invoices.mapToRemote = func(ctx context.Context, deps *zentrysync.DependencyResolver, local *zentrysync.LocalEntity) (*zentrysync.RemotePayload, error) {
		if _, err := deps.EnsureSynced(ctx, zentrysync.EntityCustomer, "7"); err != nil {
			return nil, err
		}
		t.Fatal("dependency resolution should have failed")
		return nil, nil
	}

	report, err := newTestOrchestrator(t, newMemMappings(), customers, invoices).
		SyncBatch(context.Background(), zentrysync.EntityInvoice, []string{"100"})
	if err != nil {
		t.Fatal(err)
	}
	if report.Count(zentrysync.OutcomeFailed) != 1 {
		t.Fatalf("outcomes: %+v", report.Outcomes)
	}
	if !zentrysync.IsDependencyUnresolvable(report.Outcomes[0].Err) {
		t.Errorf("got %v, want DependencyUnresolvableError", report.Outcomes[0].Err)
	}
	if len(invoices.pushedBatches) != 0 {
		t.Error("an invoice with an unresolved contact must not reach the remote")
	}
}

func TestSyncBatchEmptyRemoteIdIsStructural(t *testing.T) {
	items := newFakeEntity(zentrysync.EntityItem)
	items.addLocal("10", time.Now())
	items.upsertBatch = func(payloads []*zentrysync.RemotePayload) ([]zentrysync.RemoteResult, error) {
		return []zentrysync.RemoteResult{{LocalId: "10"}}, nil
	}
	mappings := newMemMappings()

	report, err := newTestOrchestrator(t, mappings, items).
		SyncBatch(context.Background(), zentrysync.EntityItem, []string{"10"})
	if err != nil {
		t.Fatal(err)
	}
	if report.Count(zentrysync.OutcomeFailed) != 1 {
		t.Fatalf("outcomes: %+v", report.Outcomes)
	}
	if !zentrysync.IsStructural(report.Outcomes[0].Err) {
		t.Errorf("got %v, want StructuralError", report.Outcomes[0].Err)
	}
	if len(mappings.links) != 0 {
		t.Errorf("empty remote id must not be linked: %+v", mappings.links)
	}
}

func TestPullModifiedSinceRejectsPushOnly(t *testing.T) {
	orders := newFakeEntity(zentrysync.EntitySalesOrder)
	orders.pushOnly = true

	_, _, err := newTestOrchestrator(t, newMemMappings(), orders).
		PullModifiedSince(context.Background(), zentrysync.EntitySalesOrder, time.Now(), 1)
	if !zentrysync.IsUnsupportedDirection(err) {
		t.Errorf("got %v, want UnsupportedDirectionError", err)
	}
}

func TestPullFailedTransformWritesNothing(t *testing.T) {
	invoices := newFakeEntity(zentrysync.EntityInvoice)
	invoices.remotes["R-9"] = &zentrysync.RemoteEntity{Id: "R-9", Data: json.RawMessage(`{}`)}
	invoices.mapToLocal = func(ctx context.Context, deps *zentrysync.DependencyResolver, remote *zentrysync.RemoteEntity) (*zentrysync.LocalPatch, error) {
		return nil, &zentrysync.DependencyUnresolvableError{EntityType: zentrysync.EntityCustomer}
	}
	mappings := newMemMappings()

	report, nextPage, err := newTestOrchestrator(t, mappings, invoices).
		PullModifiedSince(context.Background(), zentrysync.EntityInvoice, time.Time{}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if nextPage != 1 {
		t.Errorf("nextPage = %d", nextPage)
	}
	if report.Count(zentrysync.OutcomeFailed) != 1 {
		t.Fatalf("outcomes: %+v", report.Outcomes)
	}
	if len(invoices.upserted) != 0 {
		t.Error("a failed transform must not touch local data")
	}
	if len(mappings.links) != 0 {
		t.Errorf("a failed transform must not link: %+v", mappings.links)
	}
}

func TestPullCreatesAndLinksNewLocal(t *testing.T) {
	customers := newFakeEntity(zentrysync.EntityCustomer)
	customers.remotes["R-42"] = &zentrysync.RemoteEntity{Id: "R-42", Data: json.RawMessage(`{}`)}
	mappings := newMemMappings()

	report, _, err := newTestOrchestrator(t, mappings, customers).
		PullModifiedSince(context.Background(), zentrysync.EntityCustomer, time.Time{}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if report.Count(zentrysync.OutcomeSuccess) != 1 {
		t.Fatalf("outcomes: %+v", report.Outcomes)
	}
	if got := mappings.local[zentrysync.EntityCustomer+":R-42"]; got != "new-R-42" {
		t.Errorf("mapping = %q", got)
	}
}

func TestPullSweepSkipsNewerLocal(t *testing.T) {
	remoteAt := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	localAt := remoteAt.Add(2 * time.Hour)

	customers := newFakeEntity(zentrysync.EntityCustomer)
	customers.addLocal("1", localAt)
	customers.remotes["R-1"] = &zentrysync.RemoteEntity{
		Id:   "R-1",
		Data: json.RawMessage(`{"updatedAt":"` + remoteAt.Format(time.RFC3339) + `"}`),
	}
	mappings := newMemMappings()
	mappings.Link(context.Background(), nil, zentrysync.EntityCustomer, "1", "R-1", nil)
	mappings.links = nil

	report, _, err := newTestOrchestrator(t, mappings, customers).
		PullModifiedSince(context.Background(), zentrysync.EntityCustomer, time.Time{}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if report.Count(zentrysync.OutcomeSkipped) != 1 {
		t.Fatalf("outcomes: %+v", report.Outcomes)
	}
	if len(customers.upserted) != 0 {
		t.Error("an older remote change must not overwrite a newer local record")
	}
	if len(mappings.links) != 0 {
		t.Errorf("skipped pull must not relink: %+v", mappings.links)
	}
}

func TestPullSweepHonorsGate(t *testing.T) {
	localAt := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	remoteAt := localAt.Add(time.Hour)

	bills := newFakeEntity(zentrysync.EntityBill)
	bills.addLocal("5", localAt)
	bills.skip["5"] = "bill still in Draft status"
	bills.remotes["R-5"] = &zentrysync.RemoteEntity{
		Id:   "R-5",
		Data: json.RawMessage(`{"updatedAt":"` + remoteAt.Format(time.RFC3339) + `"}`),
	}
	mappings := newMemMappings()
	mappings.Link(context.Background(), nil, zentrysync.EntityBill, "5", "R-5", nil)

	report, _, err := newTestOrchestrator(t, mappings, bills).
		PullModifiedSince(context.Background(), zentrysync.EntityBill, time.Time{}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if report.Count(zentrysync.OutcomeSkipped) != 1 {
		t.Fatalf("outcomes: %+v", report.Outcomes)
	}
	if len(bills.upserted) != 0 {
		t.Error("a vetoed entity must not be written by the sweep")
	}
}

func TestSyncBatchPullFirstUnmappedSkips(t *testing.T) {
	cfg := zentrysync.DefaultConfig()
	cfg.InitialDirection[zentrysync.EntityCustomer] = zentrysync.DirectionPull

	customers := newFakeEntity(zentrysync.EntityCustomer)
	customers.addLocal("1", time.Now())
	mappings := newMemMappings()

	report, err := newTestOrchestratorCfg(t, cfg, mappings, customers).
		SyncBatch(context.Background(), zentrysync.EntityCustomer, []string{"1"})
	if err != nil {
		t.Fatal(err)
	}
	if report.Count(zentrysync.OutcomeSkipped) != 1 {
		t.Fatalf("outcomes: %+v", report.Outcomes)
	}
	if len(customers.pushedBatches) != 0 || len(customers.upserted) != 0 {
		t.Error("pull-first with no mapping must not touch either side")
	}
	if len(mappings.links) != 0 {
		t.Errorf("nothing to link yet: %+v", mappings.links)
	}
}

func TestSyncBatchFetchesMappedRemotesInOneCall(t *testing.T) {
	remoteAt := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	localAt := remoteAt.Add(time.Hour)

	customers := newFakeEntity(zentrysync.EntityCustomer)
	mappings := newMemMappings()
	ids := []string{"1", "2", "3"}
	for _, id := range ids {
		customers.addLocal(id, localAt)
		customers.remotes["R-"+id] = &zentrysync.RemoteEntity{
			Id:   "R-" + id,
			Data: json.RawMessage(`{"updatedAt":"` + remoteAt.Format(time.RFC3339) + `"}`),
		}
		mappings.Link(context.Background(), nil, zentrysync.EntityCustomer, id, "R-"+id, nil)
	}

	report, err := newTestOrchestrator(t, mappings, customers).
		SyncBatch(context.Background(), zentrysync.EntityCustomer, ids)
	if err != nil {
		t.Fatal(err)
	}
	if report.Count(zentrysync.OutcomeSuccess) != 3 {
		t.Fatalf("outcomes: %+v", report.Outcomes)
	}
	if len(customers.batchFetches) != 1 || len(customers.batchFetches[0]) != 3 {
		t.Errorf("batch fetches: %v", customers.batchFetches)
	}
	if customers.singleFetches != 0 {
		t.Errorf("made %d per-entity remote fetches, want 0", customers.singleFetches)
	}
}

func TestSyncBatchRecreatesRemotelyDeleted(t *testing.T) {
	customers := newFakeEntity(zentrysync.EntityCustomer)
	customers.addLocal("1", time.Now())
	// Mapping exists but the remote record is gone.
	mappings := newMemMappings()
	mappings.Link(context.Background(), nil, zentrysync.EntityCustomer, "1", "R-gone", nil)

	report, err := newTestOrchestrator(t, mappings, customers).
		SyncBatch(context.Background(), zentrysync.EntityCustomer, []string{"1"})
	if err != nil {
		t.Fatal(err)
	}
	if report.Count(zentrysync.OutcomeSuccess) != 1 {
		t.Fatalf("outcomes: %+v", report.Outcomes)
	}
	if len(customers.pushedBatches) != 1 {
		t.Errorf("expected a recreating push, got %v", customers.pushedBatches)
	}
}

func TestSyncLocallyModifiedEmpty(t *testing.T) {
	customers := newFakeEntity(zentrysync.EntityCustomer)
	report, err := newTestOrchestrator(t, newMemMappings(), customers).
		SyncLocallyModified(context.Background(), zentrysync.EntityCustomer, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Outcomes) != 0 {
		t.Errorf("outcomes: %+v", report.Outcomes)
	}
}
