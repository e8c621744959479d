package zentrysync

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

// SyncOutcome is the per-entity result of one reconciliation attempt. Failures
// never abort sibling entities; the orchestrator collects outcomes and
// surfaces an aggregate report.
type SyncOutcome struct {
	EntityType string
	LocalId    string
	RemoteId   string
	Direction  Direction
	Status     OutcomeStatus
	Reason     string
	Err        error
}

type BatchReport struct {
	Outcomes []SyncOutcome
}

func (r *BatchReport) Count(status OutcomeStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

func (r *BatchReport) add(o SyncOutcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Orchestrator drives the reconciliation loop over a set of entities: gate,
// direction decision, fetch/resolve/map/upsert, mapping commit. Local writes
// for one entity happen in one transaction; remote upserts happen outside any
// open transaction so an HTTP round-trip never holds a DB transaction open.
type Orchestrator struct {
	db        *gorm.DB
	api       Transport
	mappings  MappingStore
	cfg       Config
	logger    *logrus.Logger
	companyId string
	registry  map[string]EntitySyncer
	resolver  *DependencyResolver
}

func NewOrchestrator(db *gorm.DB, api Transport, mappings MappingStore, cfg Config, logger *logrus.Logger, companyId string) *Orchestrator {
	o := &Orchestrator{
		db:        db,
		api:       api,
		mappings:  mappings,
		cfg:       cfg,
		logger:    logger,
		companyId: companyId,
		registry:  map[string]EntitySyncer{},
	}
	o.resolver = newDependencyResolver(db, mappings, o.pushOne)
	return o
}

func (o *Orchestrator) Register(s EntitySyncer) {
	o.registry[s.EntityType()] = s
}

func (o *Orchestrator) Syncer(entityType string) (EntitySyncer, error) {
	s, ok := o.registry[entityType]
	if !ok {
		return nil, fmt.Errorf("no syncer registered for entity type %q", entityType)
	}
	return s, nil
}

// SyncBatch reconciles a batch of local ids for one entity type. Remote
// upserts are chunked to the provider limit; each returned remote id is
// attributed positionally against the submitted order, and each success gets
// its mapping committed even when siblings in the same chunk fail.
func (o *Orchestrator) SyncBatch(ctx context.Context, entityType string, localIds []string) (*BatchReport, error) {
	s, err := o.Syncer(entityType)
	if err != nil {
		return nil, err
	}

	report := &BatchReport{}
	locals, err := s.FetchLocalBatch(ctx, o.db, localIds)
	if err != nil {
		return nil, err
	}

	pageSize := o.cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	// Resolve mappings up front so that all mapped remotes can be fetched in
	// chunked batch calls instead of one GET per entity.
	remoteIdOf := map[string]string{}
	entityErrs := map[string]error{}
	var mappedRemoteIds []string
	for _, id := range localIds {
		if local, ok := locals[id]; !ok || local == nil {
			continue
		}
		remoteId, _, err := o.mappings.GetExternalId(ctx, o.db, entityType, id)
		if err != nil {
			entityErrs[id] = err
			continue
		}
		if remoteId != "" {
			remoteIdOf[id] = remoteId
			if !s.PushOnly() {
				mappedRemoteIds = append(mappedRemoteIds, remoteId)
			}
		}
	}

	remotes := map[string]*RemoteEntity{}
	for start := 0; start < len(mappedRemoteIds); start += pageSize {
		end := start + pageSize
		if end > len(mappedRemoteIds) {
			end = len(mappedRemoteIds)
		}
		chunk := mappedRemoteIds[start:end]
		fetched, err := s.FetchRemoteBatch(ctx, o.api, chunk)
		if err != nil {
			// Entities in this chunk cannot be direction-decided.
			failed := map[string]bool{}
			for _, remoteId := range chunk {
				failed[remoteId] = true
			}
			for id, remoteId := range remoteIdOf {
				if failed[remoteId] && entityErrs[id] == nil {
					entityErrs[id] = err
				}
			}
			continue
		}
		for id, remote := range fetched {
			remotes[id] = remote
		}
	}

	var pushReady []*RemotePayload
	for _, id := range localIds {
		local, ok := locals[id]
		if !ok || local == nil {
			report.add(SyncOutcome{EntityType: entityType, LocalId: id, Status: OutcomeFailed,
				Err: fmt.Errorf("local %s %q not found", entityType, id)})
			continue
		}
		if err := entityErrs[id]; err != nil {
			report.add(SyncOutcome{EntityType: entityType, LocalId: id, Status: OutcomeFailed, Err: err})
			continue
		}

		if ok, reason := s.ShouldSync(ctx, local); !ok {
			report.add(SyncOutcome{EntityType: entityType, LocalId: id, Status: OutcomeSkipped, Reason: reason})
			continue
		}

		remoteId := remoteIdOf[id]
		var direction Direction
		var remote *RemoteEntity
		switch {
		case remoteId == "":
			direction = o.cfg.InitialDirection[entityType]
			if direction == "" || s.PushOnly() {
				direction = DirectionPush
			}
		case s.PushOnly():
			direction = DirectionPush
		default:
			remote = remotes[remoteId]
			if remote == nil {
				// Deleted remotely; pushing recreates it.
				direction = DirectionPush
			} else {
				direction = chooseDirection(local.UpdatedAt, s.RemoteUpdatedAt(remote), o.cfg)
			}
		}

		if direction == DirectionPull {
			if remote == nil {
				// Pull-first with no mapping: there is nothing to pull yet.
				// The pull sweep owns discovering the remote counterpart.
				report.add(SyncOutcome{EntityType: entityType, LocalId: id, Direction: DirectionPull,
					Status: OutcomeSkipped, Reason: "no remote counterpart mapped yet"})
				continue
			}
			outcome := o.applyPull(ctx, s, remote)
			outcome.LocalId = id
			report.add(outcome)
			continue
		}

		payload, err := s.MapToRemote(ctx, o.resolver, local)
		if err != nil {
			report.add(SyncOutcome{EntityType: entityType, LocalId: id, Direction: DirectionPush,
				Status: OutcomeFailed, Err: err})
			continue
		}
		pushReady = append(pushReady, payload)
	}

	for start := 0; start < len(pushReady); start += pageSize {
		end := start + pageSize
		if end > len(pushReady) {
			end = len(pushReady)
		}
		chunk := pushReady[start:end]

		results, err := s.UpsertRemoteBatch(ctx, o.api, chunk)
		if err != nil {
			// Whole chunk failed; previously-good mappings stay untouched.
			for _, p := range chunk {
				report.add(SyncOutcome{EntityType: entityType, LocalId: p.LocalId,
					Direction: DirectionPush, Status: OutcomeFailed, Err: err})
			}
			continue
		}
		for _, res := range results {
			report.add(o.commitPush(ctx, entityType, res))
		}
	}

	return report, nil
}

// commitPush links one positional batch result. A failed slot writes nothing,
// so a previously-good mapping is never overwritten with partial data.
func (o *Orchestrator) commitPush(ctx context.Context, entityType string, res RemoteResult) SyncOutcome {
	outcome := SyncOutcome{EntityType: entityType, LocalId: res.LocalId, Direction: DirectionPush}
	if res.Err != nil {
		outcome.Status = OutcomeFailed
		outcome.Err = res.Err
		return outcome
	}
	if res.RemoteId == "" {
		outcome.Status = OutcomeFailed
		outcome.Err = &StructuralError{Path: entityType, Detail: "batch result carries no remote id"}
		return outcome
	}

	err := o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return o.mappings.Link(ctx, tx, entityType, res.LocalId, res.RemoteId, res.RemoteUpdatedAt)
	})
	if err != nil {
		outcome.Status = OutcomeFailed
		outcome.Err = err
		return outcome
	}

	outcome.Status = OutcomeSuccess
	outcome.RemoteId = res.RemoteId
	return outcome
}

// pushOne is the single-entity push pipeline, also used by the dependency
// resolver. The mapping is committed before returning.
func (o *Orchestrator) pushOne(ctx context.Context, entityType, localId string) (string, *time.Time, error) {
	s, err := o.Syncer(entityType)
	if err != nil {
		return "", nil, err
	}

	local, err := s.FetchLocal(ctx, o.db, localId)
	if err != nil {
		return "", nil, err
	}
	if local == nil {
		return "", nil, fmt.Errorf("local %s %q not found", entityType, localId)
	}
	if ok, reason := s.ShouldSync(ctx, local); !ok {
		return "", nil, fmt.Errorf("%s %q vetoed: %s", entityType, localId, reason)
	}

	payload, err := s.MapToRemote(ctx, o.resolver, local)
	if err != nil {
		return "", nil, err
	}

	results, err := s.UpsertRemoteBatch(ctx, o.api, []*RemotePayload{payload})
	if err != nil {
		return "", nil, err
	}
	if len(results) != 1 {
		return "", nil, &StructuralError{Path: entityType, Detail: "expected exactly one batch result"}
	}
	res := results[0]
	if res.Err != nil {
		return "", nil, res.Err
	}
	if res.RemoteId == "" {
		return "", nil, &StructuralError{Path: entityType, Detail: "batch result carries no remote id"}
	}

	err = o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return o.mappings.Link(ctx, tx, entityType, localId, res.RemoteId, res.RemoteUpdatedAt)
	})
	if err != nil {
		return "", nil, err
	}
	return res.RemoteId, res.RemoteUpdatedAt, nil
}

// applyPull transforms a remote entity and commits the local upsert plus its
// mapping link in one transaction. The transform runs before the transaction
// opens, so a DependencyUnresolvable pull leaves no partial local record.
func (o *Orchestrator) applyPull(ctx context.Context, s EntitySyncer, remote *RemoteEntity) SyncOutcome {
	entityType := s.EntityType()
	outcome := SyncOutcome{EntityType: entityType, RemoteId: remote.Id, Direction: DirectionPull}

	patch, err := s.MapToLocal(ctx, o.resolver, remote)
	if err != nil {
		outcome.Status = OutcomeFailed
		outcome.Err = err
		return outcome
	}

	remoteAt := s.RemoteUpdatedAt(remote)

	// An existing mapping names the exact local record to update; smart
	// matching inside UpsertLocal only runs for never-before-seen pairs.
	if hint, err := o.mappings.GetEntityId(ctx, o.db, entityType, remote.Id); err != nil {
		outcome.Status = OutcomeFailed
		outcome.Err = err
		return outcome
	} else if hint != "" {
		patch.LocalId = hint

		// A mapped local record still gets the gate and last-write-wins
		// before being overwritten. This also keeps the pull sweep from
		// echoing back entities a push just wrote.
		local, err := s.FetchLocal(ctx, o.db, hint)
		if err != nil {
			outcome.Status = OutcomeFailed
			outcome.Err = err
			return outcome
		}
		if local != nil {
			outcome.LocalId = hint
			if ok, reason := s.ShouldSync(ctx, local); !ok {
				outcome.Status = OutcomeSkipped
				outcome.Reason = reason
				return outcome
			}
			if chooseDirection(local.UpdatedAt, remoteAt, o.cfg) == DirectionPush {
				outcome.Status = OutcomeSkipped
				outcome.Reason = "local copy is newer than the remote change"
				return outcome
			}
		}
	}
	var localId string
	err = o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		localId, txErr = s.UpsertLocal(ctx, tx, patch, remote.Id)
		if txErr != nil {
			return txErr
		}
		return o.mappings.Link(ctx, tx, entityType, localId, remote.Id, remoteAt)
	})
	if err != nil {
		outcome.Status = OutcomeFailed
		outcome.Err = err
		return outcome
	}

	outcome.Status = OutcomeSuccess
	outcome.LocalId = localId
	return outcome
}

// PullModifiedSince sweeps the provider's list endpoint for entities modified
// after the cursor and applies each one. Page order mirrors the provider's
// pagination; entities within a page are independent.
func (o *Orchestrator) PullModifiedSince(ctx context.Context, entityType string, since time.Time, startPage int) (*BatchReport, int, error) {
	s, err := o.Syncer(entityType)
	if err != nil {
		return nil, startPage, err
	}
	if s.PushOnly() {
		return nil, startPage, &UnsupportedDirectionError{EntityType: entityType, Operation: "pull"}
	}

	report := &BatchReport{}
	page := startPage
	if page < 1 {
		page = 1
	}
	for {
		remotes, hasMore, err := s.FetchRemoteModifiedSince(ctx, o.api, since, page)
		if err != nil {
			return report, page, err
		}
		for _, remote := range remotes {
			outcome := o.applyPull(ctx, s, remote)
			report.add(outcome)
			if outcome.Status == OutcomeFailed && o.logger != nil {
				o.logger.WithFields(logrus.Fields{
					"module":     "zentrysync",
					"entityType": entityType,
					"remoteId":   remote.Id,
				}).Warn(outcome.Err)
			}
		}
		if !hasMore {
			return report, 1, nil
		}
		page++
	}
}

// SyncLocallyModified pushes every local entity of one type modified after the
// cursor timestamp.
func (o *Orchestrator) SyncLocallyModified(ctx context.Context, entityType string, since time.Time) (*BatchReport, error) {
	s, err := o.Syncer(entityType)
	if err != nil {
		return nil, err
	}
	ids, err := s.ListLocalModifiedSince(ctx, o.db, since)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &BatchReport{}, nil
	}
	return o.SyncBatch(ctx, entityType, ids)
}
