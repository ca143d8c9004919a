// Package reconcile merges scraped events into the carnival store. Each
// incoming event resolves to exactly one of: insert, whole update, claim-aware
// partial update, or a manual-entry skip. Re-running on unchanged input is a
// no-op apart from the sync timestamp.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/masterscarnivals/sidelinesync/internal/audit"
	"github.com/masterscarnivals/sidelinesync/internal/clock"
	"github.com/masterscarnivals/sidelinesync/internal/model"
	"github.com/masterscarnivals/sidelinesync/internal/store"
)

const (
	retryInitialInterval = 500 * time.Millisecond
	retryMultiplier      = 2.0
	maxAttempts          = 3
)

// Reconciler applies scraped events to the store under a per-key lock, so
// two concurrent events with the same duplicate key cannot both insert.
type Reconciler struct {
	store store.EventStore
	sink  audit.Sink
	clk   clock.Clock
	log   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(st store.EventStore, sink audit.Sink, clk clock.Clock, log *slog.Logger) *Reconciler {
	return &Reconciler{
		store: st,
		sink:  sink,
		clk:   clk,
		log:   log,
		locks: make(map[string]*sync.Mutex),
	}
}

// Reconcile merges one normalised event into the store and reports what was
// done. Transient store failures are retried with exponential backoff before
// the error is surfaced.
func (r *Reconciler) Reconcile(ctx context.Context, ev *model.NormalisedEvent) (*model.ReconcileResult, error) {
	key := store.KeyFor(ev)
	unlock := r.lockKey(key.String())
	defer unlock()

	var result *model.ReconcileResult
	op := func() error {
		res, err := r.apply(ctx, key, ev)
		if err != nil {
			if store.IsTransient(err) {
				r.log.Warn("transient store failure, retrying",
					"key", key.String(), "error", err)
				return err
			}
			return backoff.Permanent(err)
		}
		result = res
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryInitialInterval
	policy.Multiplier = retryMultiplier
	policy.RandomizationFactor = 0

	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(policy, maxAttempts-1), ctx))
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		return nil, err
	}
	return result, nil
}

func (r *Reconciler) apply(ctx context.Context, key store.Key, ev *model.NormalisedEvent) (*model.ReconcileResult, error) {
	now := r.clk.Now()

	stored, err := r.store.FindByKey(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return r.insert(ctx, key, ev, now)
	case err != nil:
		return nil, err
	}

	if stored.IsManuallyEntered {
		r.sink.Emit(audit.EventConflictManual, map[string]any{
			"id":    stored.ID,
			"title": ev.Title,
			"key":   key.String(),
		})
		return &model.ReconcileResult{Action: model.ActionSkippedManual, ID: stored.ID}, nil
	}

	if stored.ClaimedAt != nil {
		return r.updateClaimed(ctx, stored, ev, now)
	}
	return r.updateWhole(ctx, key, stored, ev, now)
}

func (r *Reconciler) insert(ctx context.Context, key store.Key, ev *model.NormalisedEvent, now time.Time) (*model.ReconcileResult, error) {
	id, err := r.store.Insert(ctx, ev, now)
	if err != nil {
		return nil, err
	}
	r.sink.Emit(audit.EventImported, map[string]any{
		"id":    id,
		"title": ev.Title,
		"key":   key.String(),
	})
	return &model.ReconcileResult{Action: model.ActionInserted, ID: id}, nil
}

func (r *Reconciler) updateWhole(ctx context.Context, key store.Key, stored *model.StoredEvent, ev *model.NormalisedEvent, now time.Time) (*model.ReconcileResult, error) {
	changed := store.ChangedFields(stored, ev)
	if err := r.store.UpdateWhole(ctx, stored.ID, ev, now); err != nil {
		return nil, err
	}
	fields := append(changed, model.FieldLastSync)
	r.sink.Emit(audit.EventUpdated, map[string]any{
		"id":     stored.ID,
		"title":  ev.Title,
		"key":    key.String(),
		"fields": fields,
	})
	return &model.ReconcileResult{
		Action:        model.ActionUpdated,
		ID:            stored.ID,
		FieldsWritten: fields,
	}, nil
}

func (r *Reconciler) updateClaimed(ctx context.Context, stored *model.StoredEvent, ev *model.NormalisedEvent, now time.Time) (*model.ReconcileResult, error) {
	fields, err := r.store.UpdateClaimed(ctx, stored.ID, ev, *stored.ClaimedAt, now)
	if err != nil {
		return nil, err
	}
	r.sink.Emit(audit.EventUpdatedClaimed, map[string]any{
		"id":     stored.ID,
		"title":  ev.Title,
		"fields": fields,
	})
	return &model.ReconcileResult{
		Action:        model.ActionUpdatedClaimed,
		ID:            stored.ID,
		FieldsWritten: fields,
	}, nil
}

// lockKey serialises reconciliation per duplicate key. Lock entries live for
// the process lifetime; the key space is small (one entry per carnival).
func (r *Reconciler) lockKey(key string) func() {
	r.mu.Lock()
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}
