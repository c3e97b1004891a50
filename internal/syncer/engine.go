// Package syncer implements the offline-first synchronization engine: push
// and pull per entity type with timestamp watermarks, last-write-wins
// conflict resolution, and tombstone propagation.
//
// Each entity type runs an independent idle → pushing → pulling → idle
// cycle. Types are processed in the fixed foreign-key-safe order from
// models.SyncOrder, and a cycle stops at the first failing type so a
// dependent type is never synced past a failed parent.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tallyapp/tally/internal/events"
	"github.com/tallyapp/tally/internal/models"
	"github.com/tallyapp/tally/internal/remote"
	"github.com/tallyapp/tally/internal/storage"
)

const (
	// DefaultDebounce collapses bursts of local edits into one round-trip.
	DefaultDebounce = 5 * time.Second

	// DefaultMaxRetries bounds transient-failure retries per operation.
	DefaultMaxRetries = 4

	// DefaultBaseBackoff is the first retry delay; it doubles per attempt.
	DefaultBaseBackoff = 500 * time.Millisecond
)

// Options tunes engine behavior. Zero values fall back to the defaults.
type Options struct {
	Debounce    time.Duration
	MaxRetries  int
	BaseBackoff time.Duration

	// OnError is invoked when a cycle gives up on an entity type, so the
	// caller can surface a transient status indicator. Optional.
	OnError func(entity models.EntityType, err error)
}

// Engine orchestrates push and pull against the remote store.
type Engine struct {
	store  storage.Store
	remote remote.Client
	bus    *events.Bus
	owner  uuid.UUID

	debounce    time.Duration
	maxRetries  int
	baseBackoff time.Duration
	onError     func(models.EntityType, error)

	syncers []entitySyncer

	mu      sync.Mutex
	busy    map[models.EntityType]bool
	pending map[models.EntityType]bool
	timer   *time.Timer
}

// entitySyncer binds one entity type's typed store and client calls into
// the shape the cycle loop works with.
type entitySyncer struct {
	entity models.EntityType
	push   func(ctx context.Context, since time.Time) (int, error)
	pull   func(ctx context.Context, since time.Time) (int, time.Time, error)
}

// New creates an engine for the given owner's dataset.
func New(store storage.Store, client remote.Client, bus *events.Bus, owner uuid.UUID, opts Options) *Engine {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = DefaultBaseBackoff
	}

	e := &Engine{
		store:       store,
		remote:      client,
		bus:         bus,
		owner:       owner,
		debounce:    opts.Debounce,
		maxRetries:  opts.MaxRetries,
		baseBackoff: opts.BaseBackoff,
		onError:     opts.OnError,
		busy:        make(map[models.EntityType]bool),
		pending:     make(map[models.EntityType]bool),
	}
	e.syncers = e.buildSyncers()
	return e
}

// buildSyncers wires every entity type, in models.SyncOrder.
func (e *Engine) buildSyncers() []entitySyncer {
	s, c := e.store, e.remote
	return []entitySyncer{
		{
			entity: models.EntityPersons,
			push:   makePush(e.owner, s.ChangedPersons, c.UpsertPersons),
			pull: makePull(e, models.EntityPersons, c.PullPersons,
				metaOf(s.GetPerson), s.UpsertPerson, s.DeletePerson),
		},
		{
			entity: models.EntityGroups,
			push:   makePush(e.owner, s.ChangedGroups, c.UpsertGroups),
			pull: makePull(e, models.EntityGroups, c.PullGroups,
				metaOf(s.GetGroup), s.UpsertGroup, s.DeleteGroup),
		},
		{
			entity: models.EntityGroupMembers,
			push:   makePush(e.owner, s.ChangedGroupMembers, c.UpsertGroupMembers),
			pull: makePull(e, models.EntityGroupMembers, c.PullGroupMembers,
				metaOf(s.GetGroupMember), s.UpsertGroupMember, s.DeleteGroupMember),
		},
		{
			entity: models.EntityTransactions,
			push:   makePush(e.owner, s.ChangedTransactions, c.UpsertTransactions),
			pull: makePull(e, models.EntityTransactions, c.PullTransactions,
				metaOf(s.GetTransaction), s.UpsertTransaction, s.DeleteTransaction),
		},
		{
			entity: models.EntitySplits,
			push:   makePush(e.owner, s.ChangedSplits, c.UpsertSplits),
			pull: makePull(e, models.EntitySplits, c.PullSplits,
				metaOf(s.GetSplit), s.UpsertSplit, s.DeleteSplit),
		},
		{
			entity: models.EntityPayers,
			push:   makePush(e.owner, s.ChangedPayers, c.UpsertPayers),
			pull: makePull(e, models.EntityPayers, c.PullPayers,
				metaOf(s.GetPayer), s.UpsertPayer, s.DeletePayer),
		},
		{
			entity: models.EntitySettlements,
			push:   makePush(e.owner, s.ChangedSettlements, c.UpsertSettlements),
			pull: makePull(e, models.EntitySettlements, c.PullSettlements,
				metaOf(s.GetSettlement), s.UpsertSettlement, s.DeleteSettlement),
		},
		{
			entity: models.EntityReminders,
			push:   makePush(e.owner, s.ChangedReminders, c.UpsertReminders),
			pull: makePull(e, models.EntityReminders, c.PullReminders,
				metaOf(s.GetReminder), s.UpsertReminder, s.DeleteReminder),
		},
	}
}

// record is satisfied by every model through the embedded SyncMeta.
type record interface {
	Meta() models.SyncMeta
}

// metaOf adapts a typed store getter into a meta-only lookup, preserving
// the "absent row means nil" convention across the pointer type.
func metaOf[T record](get func(context.Context, uuid.UUID) (T, error)) func(context.Context, uuid.UUID) (*models.SyncMeta, error) {
	return func(ctx context.Context, id uuid.UUID) (*models.SyncMeta, error) {
		row, err := get(ctx, id)
		if err != nil {
			return nil, err
		}
		// A typed nil pointer means the row is absent.
		var zero T
		if any(row) == any(zero) {
			return nil, nil
		}
		meta := row.Meta()
		return &meta, nil
	}
}

// makePush builds the push half of a cycle: query local rows changed after
// the watermark and upsert them remotely. Idempotent end to end.
func makePush[T any](
	owner uuid.UUID,
	changed func(context.Context, uuid.UUID, time.Time) ([]T, error),
	upsert func(context.Context, []T) error,
) func(context.Context, time.Time) (int, error) {
	return func(ctx context.Context, since time.Time) (int, error) {
		rows, err := changed(ctx, owner, since)
		if err != nil {
			return 0, fmt.Errorf("failed to query changed rows: %w", err)
		}
		if len(rows) == 0 {
			return 0, nil
		}
		if err := upsert(ctx, rows); err != nil {
			return 0, err
		}
		return len(rows), nil
	}
}

// makePull builds the pull half: fetch remote rows changed after the
// watermark, run each through the conflict resolver, and apply the winners.
// Returns the applied count and the newest remote timestamp seen, which
// becomes the next pull watermark. Watermarks advance on remote timestamps,
// not the local clock, so clock skew cannot skip rows.
func makePull[T record](
	e *Engine,
	entity models.EntityType,
	fetch func(context.Context, time.Time) ([]T, error),
	localMeta func(context.Context, uuid.UUID) (*models.SyncMeta, error),
	applyUpsert func(context.Context, T) error,
	applyDelete func(context.Context, uuid.UUID) error,
) func(context.Context, time.Time) (int, time.Time, error) {
	return func(ctx context.Context, since time.Time) (int, time.Time, error) {
		rows, err := fetch(ctx, since)
		if err != nil {
			return 0, time.Time{}, err
		}

		newWatermark := since
		applied := 0
		for _, row := range rows {
			meta := row.Meta()
			if meta.UpdatedAt.After(newWatermark) {
				newWatermark = meta.UpdatedAt
			}

			local, err := localMeta(ctx, meta.ID)
			if err != nil {
				return applied, newWatermark, fmt.Errorf("failed to load local row: %w", err)
			}

			decision := Resolve(local, &meta)
			resolutions.WithLabelValues(string(entity), decision.String()).Inc()
			if decision == KeepLocal {
				continue
			}

			if meta.Deleted() {
				// Tombstone observed and applied: remove the row physically.
				if err := applyDelete(ctx, meta.ID); err != nil {
					return applied, newWatermark, fmt.Errorf("failed to apply tombstone: %w", err)
				}
				e.bus.Publish(events.Event{Entity: entity, Kind: events.ChangeDeleted, ID: meta.ID})
			} else {
				if err := applyUpsert(ctx, row); err != nil {
					return applied, newWatermark, fmt.Errorf("failed to apply remote row: %w", err)
				}
				e.bus.Publish(events.Event{Entity: entity, Kind: events.ChangePulled, ID: meta.ID})
			}
			applied++
		}
		return applied, newWatermark, nil
	}
}

// SyncAll runs one full push+pull cycle over every entity type in
// dependency order, stopping at the first type that fails so no dependent
// type syncs past a failed parent.
func (e *Engine) SyncAll(ctx context.Context) error {
	for _, ts := range e.syncers {
		if err := e.syncType(ctx, ts); err != nil {
			if e.onError != nil {
				e.onError(ts.entity, err)
			}
			return fmt.Errorf("sync %s: %w", ts.entity, err)
		}
	}
	return nil
}

// Start runs the app-foreground sync.
func (e *Engine) Start(ctx context.Context) error {
	return e.SyncAll(ctx)
}

// TriggerRefresh runs an explicit user-triggered sync (pull-to-refresh).
func (e *Engine) TriggerRefresh(ctx context.Context) error {
	return e.SyncAll(ctx)
}

// NotifyOnline runs a sync after network reconnection.
func (e *Engine) NotifyOnline(ctx context.Context) error {
	return e.SyncAll(ctx)
}

// NotifyLocalSave schedules a debounced sync. A newer save supersedes the
// pending timer outright, collapsing bursts of edits into one round-trip.
func (e *Engine) NotifyLocalSave() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.debounce, func() {
		if err := e.SyncAll(context.Background()); err != nil {
			slog.Warn("debounced sync failed", "error", err)
		}
	})
}

// Stop cancels any pending debounced sync. In-flight cycles complete; their
// results are still applied.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// syncType runs one cycle for a type, coalescing concurrent triggers: if a
// cycle is already in flight the trigger sets a pending bit instead of
// queueing a second cycle.
func (e *Engine) syncType(ctx context.Context, ts entitySyncer) error {
	e.mu.Lock()
	if e.busy[ts.entity] {
		e.pending[ts.entity] = true
		e.mu.Unlock()
		return nil
	}
	e.busy[ts.entity] = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.busy[ts.entity] = false
		rerun := e.pending[ts.entity]
		e.pending[ts.entity] = false
		e.mu.Unlock()

		if rerun {
			go func() {
				if err := e.syncType(context.Background(), ts); err != nil {
					slog.Warn("coalesced sync failed", "entity", ts.entity, "error", err)
				}
			}()
		}
	}()

	return e.runCycle(ctx, ts)
}

// runCycle pushes then pulls one entity type. The watermark for each
// direction advances only after its whole batch succeeds, so a partial
// failure re-syncs the same window next time instead of drifting past it.
func (e *Engine) runCycle(ctx context.Context, ts entitySyncer) error {
	start := time.Now()
	defer func() {
		cycleDuration.WithLabelValues(string(ts.entity)).Observe(time.Since(start).Seconds())
	}()

	pushWM, pullWM, err := e.store.Watermarks(ctx, ts.entity)
	if err != nil {
		return fmt.Errorf("failed to load watermarks: %w", err)
	}

	// Capture "now" before querying so rows changed mid-push fall after the
	// new watermark and get pushed again (harmless, upserts are idempotent).
	pushStart := time.Now().UTC()
	var pushed int
	err = e.withRetry(ctx, ts.entity, func() error {
		n, err := ts.push(ctx, pushWM)
		pushed = n
		return err
	})
	if err != nil {
		return fmt.Errorf("push failed: %w", err)
	}
	if pushed > 0 {
		if err := e.store.SetPushWatermark(ctx, ts.entity, pushStart); err != nil {
			return err
		}
		pushedRows.WithLabelValues(string(ts.entity)).Add(float64(pushed))
		slog.Debug("pushed batch", "entity", ts.entity, "rows", pushed)
	}

	var pulled int
	var newPullWM time.Time
	err = e.withRetry(ctx, ts.entity, func() error {
		n, wm, err := ts.pull(ctx, pullWM)
		pulled, newPullWM = n, wm
		return err
	})
	if err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}
	if newPullWM.After(pullWM) {
		if err := e.store.SetPullWatermark(ctx, ts.entity, newPullWM); err != nil {
			return err
		}
	}
	if pulled > 0 {
		pulledRows.WithLabelValues(string(ts.entity)).Add(float64(pulled))
		slog.Debug("applied pulled batch", "entity", ts.entity, "rows", pulled)
	}
	return nil
}

// withRetry retries transient failures with exponential backoff. Permanent
// failures (validation rejects) are surfaced immediately, not retried.
func (e *Engine) withRetry(ctx context.Context, entity models.EntityType, op func() error) error {
	backoff := e.baseBackoff
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if !remote.IsTemporary(err) {
			syncErrors.WithLabelValues(string(entity), "permanent").Inc()
			return err
		}
		syncErrors.WithLabelValues(string(entity), "transient").Inc()
		if attempt >= e.maxRetries {
			return err
		}
		slog.Warn("transient sync failure, backing off",
			"entity", entity,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
