// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package offlinequeue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/streamforge/discovery/internal/metrics"
	"github.com/streamforge/discovery/internal/wal"
)

// OperationType classifies one queued mutation, per spec.md §4.F.
type OperationType string

const (
	OpWatchlistAdd    OperationType = "watchlist_add"
	OpWatchlistRemove OperationType = "watchlist_remove"
	OpProgressUpdate  OperationType = "progress_update"
	OpDeviceCommand   OperationType = "device_command"
	// OpSyncBatch classifies a queued internal/syncengine batch envelope,
	// which may itself carry a mix of watchlist and progress deltas.
	OpSyncBatch OperationType = "sync_batch"
)

const defaultMaxRetries = 3

// Item is one durable queue entry: a sync_queue row, per spec.md §4.F.
type Item struct {
	ID          string          `json:"-"`
	Operation   OperationType   `json:"operation_type"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAtMS int64           `json:"created_at_ms"`
	RetryCount  int             `json:"retry_count"`
}

// BackingWAL is the subset of internal/wal a Queue persists through. Both
// the BadgerDB-backed WAL and its no-op stub (selected by the `wal` build
// tag) satisfy it.
type BackingWAL interface {
	Write(ctx context.Context, event interface{}) (string, error)
	Confirm(ctx context.Context, entryID string) error
	GetPending(ctx context.Context) ([]*wal.Entry, error)
}

var _ BackingWAL = (wal.WAL)(nil)

// Queue is a durable FIFO queue of offline sync operations. Retries are
// tracked by re-appending a bumped-RetryCount copy of an item and
// confirming the stale one (two separate calls) — the same append-only update pattern
// internal/personalize's adapter Registry uses, since the underlying WAL
// exposes no in-place mutation either.
type Queue struct {
	backing    BackingWAL
	maxRetries int
}

// New builds a Queue backed by w. maxRetries <= 0 defaults to 3, per
// spec.md §4.F's "at most 3 delivery attempts" invariant.
func New(w BackingWAL, maxRetries int) *Queue {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Queue{backing: w, maxRetries: maxRetries}
}

// Enqueue durably appends one operation and returns its queue id.
func (q *Queue) Enqueue(ctx context.Context, op OperationType, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal queue payload: %w", err)
	}
	item := Item{Operation: op, Payload: body, CreatedAtMS: time.Now().UnixMilli()}

	id, err := q.backing.Write(ctx, item)
	if err != nil {
		return "", fmt.Errorf("write queue item: %w", err)
	}
	metrics.OfflineQueueEnqueued.Inc()
	metrics.OfflineQueueDepth.Inc()
	return id, nil
}

// Envelope wraps a sync delta with the broker topic it must be redelivered
// to on replay. The queue itself is a single shared durable log, so every
// payload needs enough addressing to route it back out; callers that want
// replay to reach the broker go through EnqueueEnvelope rather than
// Enqueue-ing a bare payload.
type Envelope struct {
	Topic string          `json:"topic"`
	Body  json.RawMessage `json:"body"`
}

// EnqueueEnvelope marshals body and enqueues it wrapped in an Envelope
// addressed at topic.
func (q *Queue) EnqueueEnvelope(ctx context.Context, op OperationType, topic string, body any) (string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal envelope body: %w", err)
	}
	return q.Enqueue(ctx, op, Envelope{Topic: topic, Body: raw})
}

// Peek returns up to n pending items in FIFO order (oldest created_at_ms
// first) without removing them.
func (q *Queue) Peek(ctx context.Context, n int) ([]Item, error) {
	items, err := q.pendingFIFO(ctx)
	if err != nil {
		return nil, err
	}
	if n >= 0 && n < len(items) {
		items = items[:n]
	}
	return items, nil
}

// Dequeue returns the oldest pending item without removing it; callers
// remove it explicitly once processed, mirroring spec.md §4.F's
// dequeue/remove split.
func (q *Queue) Dequeue(ctx context.Context) (*Item, error) {
	items, err := q.Peek(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// Remove confirms id, taking it out of the active queue.
func (q *Queue) Remove(ctx context.Context, id string) error {
	if err := q.backing.Confirm(ctx, id); err != nil {
		return fmt.Errorf("remove queue item %s: %w", id, err)
	}
	metrics.OfflineQueueDepth.Dec()
	return nil
}

// Clear removes every pending item.
func (q *Queue) Clear(ctx context.Context) error {
	items, err := q.pendingFIFO(ctx)
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := q.Remove(ctx, it.ID); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the current number of pending items.
func (q *Queue) Len(ctx context.Context) (int, error) {
	items, err := q.pendingFIFO(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Replayer delivers one queued item. A nil error confirms and removes
// the item; a non-nil error bumps its retry count (or drops it once the
// retry cap is reached).
type Replayer func(ctx context.Context, item Item) error

// ReplayResult summarizes one ReplayPending pass, per spec.md §4.F's
// replay_pending() report contract: total items attempted, how many
// succeeded or were ultimately dropped, and the id/error of every failed
// delivery (including ones still retrying) for audit purposes.
type ReplayResult struct {
	Total         int
	Replayed      int
	Dropped       int
	FailedIDs     []string
	ErrorMessages []string
}

// ReplayPending walks the queue in FIFO order, delivering each item via
// replay. Per spec.md §4.F: retry_count >= 3 drops the item and records
// it as failed instead of retrying indefinitely.
func (q *Queue) ReplayPending(ctx context.Context, replay Replayer) (ReplayResult, error) {
	items, err := q.pendingFIFO(ctx)
	if err != nil {
		return ReplayResult{}, err
	}

	result := ReplayResult{Total: len(items)}
	for _, item := range items {
		err := replay(ctx, item)
		if err == nil {
			if rmErr := q.Remove(ctx, item.ID); rmErr != nil {
				return result, rmErr
			}
			metrics.OfflineQueueReplayed.Inc()
			result.Replayed++
			continue
		}

		result.FailedIDs = append(result.FailedIDs, item.ID)
		result.ErrorMessages = append(result.ErrorMessages, err.Error())

		item.RetryCount++
		if item.RetryCount >= q.maxRetries {
			if rmErr := q.Remove(ctx, item.ID); rmErr != nil {
				return result, rmErr
			}
			metrics.OfflineQueueDropped.Inc()
			result.Dropped++
			continue
		}

		if _, reErr := q.backing.Write(ctx, item); reErr != nil {
			return result, fmt.Errorf("requeue item after failed replay: %w", reErr)
		}
		if rmErr := q.Remove(ctx, item.ID); rmErr != nil {
			return result, rmErr
		}
	}
	return result, nil
}

func (q *Queue) pendingFIFO(ctx context.Context) ([]Item, error) {
	entries, err := q.backing.GetPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("get pending queue entries: %w", err)
	}

	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		var item Item
		if err := e.UnmarshalPayload(&item); err != nil {
			return nil, fmt.Errorf("decode queue entry %s: %w", e.ID, err)
		}
		item.ID = e.ID
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAtMS < items[j].CreatedAtMS })
	return items, nil
}
