// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package syncengine

import (
	"context"
	"fmt"
	"time"

	"github.com/streamforge/discovery/internal/metrics"
)

// Engine ties together the OR-Set watchlist, the LWW progress register,
// the HLC clock, and the NATS transport for one connected device, per
// spec.md §4.E.
type Engine struct {
	userID   string
	deviceID string

	clock     *Clock
	watchlist *Watchlist
	progress  *Progress

	pub   DeltaPublisher
	batch *BatchPublisher
	sub   DeltaSubscriber
}

// New builds an Engine for one user/device pair.
func New(userStore WatchlistStore, progressStore ProgressStore, pub DeltaPublisher, sub DeltaSubscriber, userID, deviceID string) *Engine {
	clock := NewClock()
	e := &Engine{
		userID:    userID,
		deviceID:  deviceID,
		clock:     clock,
		watchlist: NewWatchlist(userStore, clock),
		progress:  NewProgress(progressStore, clock),
		pub:       pub,
		sub:       sub,
	}
	e.batch = NewBatchPublisher(pub, userID)
	return e
}

// SetOfflineQueue attaches a durable fallback queue the engine's batch
// publisher enqueues into when a publish is ultimately not deliverable,
// so the CRDT delta survives to be replayed once connectivity returns.
func (e *Engine) SetOfflineQueue(q OfflineQueue) {
	e.batch.SetOfflineQueue(q)
}

// Serve subscribes to the user's sync topic and runs the batch-flush
// loop until ctx is cancelled. A device must call this once per
// connection, per spec.md §4.E ("every device subscribes on connect").
func (e *Engine) Serve(ctx context.Context) error {
	if err := e.subscribe(ctx); err != nil {
		return fmt.Errorf("subscribe sync topic: %w", err)
	}
	return e.batch.Serve(ctx)
}

// AddToWatchlist performs a local add and publishes the resulting delta.
func (e *Engine) AddToWatchlist(ctx context.Context, contentID string) error {
	d, err := e.watchlist.Add(ctx, e.userID, contentID, e.deviceID, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	metrics.SyncOperationsTotal.WithLabelValues("watchlist_add").Inc()
	e.batch.Enqueue(Envelope{Type: DeltaWatchlistAdd, Payload: d})
	return nil
}

// RemoveFromWatchlist performs a local remove, publishing one delta per
// tombstoned tag.
func (e *Engine) RemoveFromWatchlist(ctx context.Context, contentID string) error {
	deltas, err := e.watchlist.Remove(ctx, e.userID, contentID, e.deviceID, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	for _, d := range deltas {
		metrics.SyncOperationsTotal.WithLabelValues("watchlist_remove").Inc()
		e.batch.Enqueue(Envelope{Type: DeltaWatchlistRemove, Payload: d})
	}
	return nil
}

// Watchlist returns the current effective watchlist content ids.
func (e *Engine) Watchlist(ctx context.Context) ([]string, error) {
	return e.watchlist.Effective(ctx, e.userID)
}

// UpdateProgress performs a local LWW progress write and publishes the
// resulting delta.
func (e *Engine) UpdateProgress(ctx context.Context, contentID string, position, duration float64) error {
	d, err := e.progress.Set(ctx, e.userID, contentID, position, duration, e.deviceID, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	metrics.SyncOperationsTotal.WithLabelValues("progress").Inc()
	e.batch.Enqueue(Envelope{Type: DeltaProgress, Payload: d})
	return nil
}

// FlushNow forces an immediate publish of any buffered deltas, bypassing
// the batch timer/size thresholds. Intended for graceful disconnect.
func (e *Engine) FlushNow(ctx context.Context) {
	e.batch.flush(ctx)
}
