// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package syncengine

import (
	"context"
	"sync"
	"time"

	"github.com/streamforge/discovery/internal/broker"
	"github.com/streamforge/discovery/internal/logging"
	"github.com/streamforge/discovery/internal/offlinequeue"
)

// OfflineQueue is the subset of internal/offlinequeue a BatchPublisher
// falls back to once every publish retry is exhausted, so the batch
// survives to be replayed when the device reconnects.
type OfflineQueue interface {
	EnqueueEnvelope(ctx context.Context, op offlinequeue.OperationType, topic string, body any) (string, error)
}

var _ OfflineQueue = (*offlinequeue.Queue)(nil)

const (
	batchMaxSize = 50
	batchMaxWait = 1 * time.Second
)

// BatchPublisher buffers outgoing deltas and flushes as one batch
// envelope when the buffer reaches 50 items or 1s elapses, per spec.md
// §4.E's optional batching.
type BatchPublisher struct {
	pub     DeltaPublisher
	userID  string
	offline OfflineQueue

	mu  sync.Mutex
	buf []Envelope

	flushCh chan struct{}
}

// NewBatchPublisher builds a BatchPublisher for one user's sync topic.
func NewBatchPublisher(pub DeltaPublisher, userID string) *BatchPublisher {
	return &BatchPublisher{pub: pub, userID: userID, flushCh: make(chan struct{}, 1)}
}

// SetOfflineQueue attaches the durable fallback queue, per spec.md §4.F's
// "a single publish failure enqueues the delta in the offline queue for
// later replay" policy. Optional — a BatchPublisher with no offline queue
// attached just logs and drops on exhausted retries, same as before.
func (b *BatchPublisher) SetOfflineQueue(q OfflineQueue) {
	b.offline = q
}

// Enqueue buffers env for the next flush, triggering an immediate flush
// signal if the buffer just reached its size cap.
func (b *BatchPublisher) Enqueue(env Envelope) {
	b.mu.Lock()
	b.buf = append(b.buf, env)
	full := len(b.buf) >= batchMaxSize
	b.mu.Unlock()

	if full {
		select {
		case b.flushCh <- struct{}{}:
		default:
		}
	}
}

// Serve runs the flush loop (one batch-flush task per publisher, per
// spec.md §5) until ctx is cancelled, flushing any remaining buffer
// before returning.
func (b *BatchPublisher) Serve(ctx context.Context) error {
	ticker := time.NewTicker(batchMaxWait)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.flush(context.Background())
			return ctx.Err()
		case <-ticker.C:
			b.flush(ctx)
		case <-b.flushCh:
			b.flush(ctx)
			ticker.Reset(batchMaxWait)
		}
	}
}

func (b *BatchPublisher) flush(ctx context.Context) {
	b.mu.Lock()
	if len(b.buf) == 0 {
		b.mu.Unlock()
		return
	}
	pending := b.buf
	b.buf = nil
	b.mu.Unlock()

	env := Envelope{Type: DeltaBatch, Payload: Batch{Envelopes: pending}}
	if err := publishWithRetry(ctx, b.pub, b.userID, env); err != nil {
		logging.Error().Err(err).Str("user_id", b.userID).Msg("sync batch publish failed")
		b.enqueueOffline(ctx, env)
	}
}

func (b *BatchPublisher) enqueueOffline(ctx context.Context, env Envelope) {
	if b.offline == nil {
		return
	}
	topic := broker.UserSyncTopic(b.userID)
	if _, err := b.offline.EnqueueEnvelope(ctx, offlinequeue.OpSyncBatch, topic, env); err != nil {
		logging.Error().Err(err).Str("user_id", b.userID).Msg("failed to enqueue sync delta to offline queue")
	}
}
