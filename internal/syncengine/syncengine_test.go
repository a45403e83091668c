// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package syncengine

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/streamforge/discovery/internal/offlinequeue"
	"github.com/streamforge/discovery/internal/store"
)

func TestHLCNowAdvancesLogicalOnSameTick(t *testing.T) {
	c := NewClock()
	first := c.Now(1000)
	second := c.Now(1000)
	if second.Physical != 1000 || second.Logical != first.Logical+1 {
		t.Fatalf("expected logical to bump on same wall tick, got %+v -> %+v", first, second)
	}

	third := c.Now(2000)
	if third.Physical != 2000 || third.Logical != 0 {
		t.Fatalf("expected logical reset on wall tick advance, got %+v", third)
	}
}

func TestHLCReceiveFourBranches(t *testing.T) {
	c := NewClock()
	c.Now(1000) // prev = {1000, 0}

	// p == prev.physical == incoming.physical -> max(logical)+1
	got := c.Receive(1000, HLC{Physical: 1000, Logical: 5})
	if got.Physical != 1000 || got.Logical != 6 {
		t.Fatalf("branch1: got %+v", got)
	}

	// p == incoming.physical > prev.physical -> incoming.logical+1
	got = c.Receive(500, HLC{Physical: 2000, Logical: 3})
	if got.Physical != 2000 || got.Logical != 4 {
		t.Fatalf("branch2: got %+v", got)
	}

	// p == prev.physical > incoming.physical -> prev.logical+1
	got = c.Receive(2000, HLC{Physical: 100, Logical: 9})
	if got.Physical != 2000 || got.Logical != 5 {
		t.Fatalf("branch3: got %+v", got)
	}

	// otherwise (wall time strictly greatest) -> 0
	got = c.Receive(5000, HLC{Physical: 100, Logical: 9})
	if got.Physical != 5000 || got.Logical != 0 {
		t.Fatalf("branch4: got %+v", got)
	}
}

func TestHLCCompareOrdering(t *testing.T) {
	a := HLC{Physical: 10, Logical: 2}
	b := HLC{Physical: 10, Logical: 3}
	if !b.After(a) {
		t.Fatal("expected b to be after a on logical tiebreak")
	}
	if a.After(b) {
		t.Fatal("a should not be after b")
	}
	if (HLC{Physical: 5}).After(a) {
		t.Fatal("lower physical should never be after")
	}
}

type fakeWatchlistStore struct {
	entries map[string]store.WatchlistEntry // keyed by unique_tag
}

func newFakeWatchlistStore() *fakeWatchlistStore {
	return &fakeWatchlistStore{entries: make(map[string]store.WatchlistEntry)}
}

func (f *fakeWatchlistStore) UpsertWatchlistEntry(_ context.Context, e store.WatchlistEntry) error {
	f.entries[e.UniqueTag] = e
	return nil
}

func (f *fakeWatchlistStore) ListWatchlist(_ context.Context, userID string) ([]store.WatchlistEntry, error) {
	var out []store.WatchlistEntry
	for _, e := range f.entries {
		if e.UserID == userID && !e.IsRemoved {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeWatchlistStore) AllWatchlistTags(_ context.Context, userID, contentID string) ([]store.WatchlistEntry, error) {
	var out []store.WatchlistEntry
	for _, e := range f.entries {
		if e.UserID == userID && e.ContentID == contentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestWatchlistAddRemoveEffective(t *testing.T) {
	fs := newFakeWatchlistStore()
	w := NewWatchlist(fs, NewClock())
	ctx := context.Background()

	if _, err := w.Add(ctx, "u1", "c1", "dev-a", 1000); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := w.Add(ctx, "u1", "c2", "dev-a", 1000); err != nil {
		t.Fatalf("add: %v", err)
	}

	effective, err := w.Effective(ctx, "u1")
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	if len(effective) != 2 {
		t.Fatalf("expected 2 effective entries, got %d", len(effective))
	}

	deltas, err := w.Remove(ctx, "u1", "c1", "dev-a", 2000)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(deltas) != 1 {
		t.Fatalf("expected 1 tombstone delta, got %d", len(deltas))
	}

	effective, _ = w.Effective(ctx, "u1")
	if len(effective) != 1 || effective[0] != "c2" {
		t.Fatalf("expected only c2 to remain, got %v", effective)
	}

	// removing again yields no deltas - idempotent
	deltas, err = w.Remove(ctx, "u1", "c1", "dev-a", 3000)
	if err != nil {
		t.Fatalf("remove again: %v", err)
	}
	if len(deltas) != 0 {
		t.Fatalf("expected no-op remove, got %d deltas", len(deltas))
	}
}

func TestWatchlistMergeIsIdempotent(t *testing.T) {
	fs := newFakeWatchlistStore()
	w := NewWatchlist(fs, NewClock())
	ctx := context.Background()

	d := WatchlistAddDelta{UserID: "u1", ContentID: "c1", UniqueTag: "tag-1", Physical: 1000, Logical: 0, DeviceID: "dev-b"}
	if err := w.MergeAdd(ctx, d, 1500); err != nil {
		t.Fatalf("merge add: %v", err)
	}
	if err := w.MergeAdd(ctx, d, 1600); err != nil {
		t.Fatalf("merge add again: %v", err)
	}

	effective, _ := w.Effective(ctx, "u1")
	if len(effective) != 1 {
		t.Fatalf("expected exactly one effective entry after duplicate merge, got %d", len(effective))
	}
}

type fakeProgressStore struct {
	byKey map[string]store.ProgressEntry
}

func newFakeProgressStore() *fakeProgressStore {
	return &fakeProgressStore{byKey: make(map[string]store.ProgressEntry)}
}

func key(userID, contentID string) string { return userID + "|" + contentID }

func (f *fakeProgressStore) UpsertProgress(_ context.Context, p store.ProgressEntry) error {
	f.byKey[key(p.UserID, p.ContentID)] = p
	return nil
}

func (f *fakeProgressStore) GetProgress(_ context.Context, userID, contentID string) (*store.ProgressEntry, error) {
	p, ok := f.byKey[key(userID, contentID)]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func TestProgressMergeRespectsLWW(t *testing.T) {
	fs := newFakeProgressStore()
	p := NewProgress(fs, NewClock())
	ctx := context.Background()

	newer := ProgressDelta{UserID: "u1", ContentID: "c1", PositionSeconds: 120, DurationSeconds: 3600, Physical: 2000, Logical: 0, DeviceID: "dev-b"}
	if err := p.Merge(ctx, newer, 2500); err != nil {
		t.Fatalf("merge newer: %v", err)
	}

	stale := ProgressDelta{UserID: "u1", ContentID: "c1", PositionSeconds: 10, DurationSeconds: 3600, Physical: 1000, Logical: 0, DeviceID: "dev-c"}
	if err := p.Merge(ctx, stale, 2600); err != nil {
		t.Fatalf("merge stale: %v", err)
	}

	got, err := fs.GetProgress(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if got == nil || got.PositionSeconds != 120 {
		t.Fatalf("expected stale delta to be rejected, stored position = %+v", got)
	}
}

type flakyPublisher struct {
	failures int
	calls    int
}

func (f *flakyPublisher) Publish(_ context.Context, _ string, _ *message.Message) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("transient broker error")
	}
	return nil
}

func TestPublishWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	pub := &flakyPublisher{failures: 2}
	err := publishWithRetry(context.Background(), pub, "u1", Envelope{Type: DeltaProgress, Payload: ProgressDelta{UserID: "u1"}})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if pub.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", pub.calls)
	}
}

func TestPublishWithRetryExhaustsAttempts(t *testing.T) {
	pub := &flakyPublisher{failures: 10}
	err := publishWithRetry(context.Background(), pub, "u1", Envelope{Type: DeltaProgress, Payload: ProgressDelta{UserID: "u1"}})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if pub.calls != publishMaxAttempts {
		t.Fatalf("expected exactly %d attempts, got %d", publishMaxAttempts, pub.calls)
	}
}

func TestBatchPublisherFlushesAtSizeCap(t *testing.T) {
	pub := &flakyPublisher{}
	bp := NewBatchPublisher(pub, "u1")
	for i := 0; i < batchMaxSize; i++ {
		bp.Enqueue(Envelope{Type: DeltaProgress, Payload: ProgressDelta{UserID: "u1"}})
	}
	bp.flush(context.Background())
	if pub.calls != 1 {
		t.Fatalf("expected exactly one batch publish, got %d", pub.calls)
	}
	if len(bp.buf) != 0 {
		t.Fatalf("expected buffer drained after flush, has %d items", len(bp.buf))
	}
}

type fakeOfflineQueue struct {
	enqueued []offlinequeue.OperationType
	topics   []string
}

func (f *fakeOfflineQueue) EnqueueEnvelope(_ context.Context, op offlinequeue.OperationType, topic string, _ any) (string, error) {
	f.enqueued = append(f.enqueued, op)
	f.topics = append(f.topics, topic)
	return "q1", nil
}

func TestBatchPublisherFallsBackToOfflineQueueOnExhaustedRetries(t *testing.T) {
	pub := &flakyPublisher{failures: 10}
	offline := &fakeOfflineQueue{}

	bp := NewBatchPublisher(pub, "u1")
	bp.SetOfflineQueue(offline)
	bp.Enqueue(Envelope{Type: DeltaProgress, Payload: ProgressDelta{UserID: "u1"}})
	bp.flush(context.Background())

	if len(offline.enqueued) != 1 {
		t.Fatalf("expected one offline-queue enqueue, got %d", len(offline.enqueued))
	}
	if offline.enqueued[0] != offlinequeue.OpSyncBatch {
		t.Fatalf("expected OpSyncBatch, got %v", offline.enqueued[0])
	}
	if offline.topics[0] != "user.u1.sync" {
		t.Fatalf("expected user.u1.sync topic, got %q", offline.topics[0])
	}
}

func TestBatchPublisherWithoutOfflineQueueStillDropsSilently(t *testing.T) {
	pub := &flakyPublisher{failures: 10}
	bp := NewBatchPublisher(pub, "u1")
	bp.Enqueue(Envelope{Type: DeltaProgress, Payload: ProgressDelta{UserID: "u1"}})
	bp.flush(context.Background()) // must not panic with offline == nil
}

func TestEngineDispatchSkipsSelfOriginatedDeltas(t *testing.T) {
	fs := newFakeWatchlistStore()
	ps := newFakeProgressStore()
	e := New(fs, ps, &flakyPublisher{}, nil, "u1", "dev-self")
	ctx := context.Background()

	self := WatchlistAddDelta{UserID: "u1", ContentID: "c1", UniqueTag: "t1", Physical: 10, Logical: 0, DeviceID: "dev-self"}
	if err := e.dispatch(ctx, Envelope{Type: DeltaWatchlistAdd, Payload: self}); err != nil {
		t.Fatalf("dispatch self delta: %v", err)
	}
	effective, _ := e.watchlist.Effective(ctx, "u1")
	if len(effective) != 0 {
		t.Fatalf("expected self-originated delta to be skipped, got %v", effective)
	}

	peer := WatchlistAddDelta{UserID: "u1", ContentID: "c2", UniqueTag: "t2", Physical: 10, Logical: 0, DeviceID: "dev-peer"}
	if err := e.dispatch(ctx, Envelope{Type: DeltaWatchlistAdd, Payload: peer}); err != nil {
		t.Fatalf("dispatch peer delta: %v", err)
	}
	effective, _ = e.watchlist.Effective(ctx, "u1")
	if len(effective) != 1 || effective[0] != "c2" {
		t.Fatalf("expected peer delta to merge, got %v", effective)
	}
}

func TestEngineDispatchExpandsBatch(t *testing.T) {
	fs := newFakeWatchlistStore()
	ps := newFakeProgressStore()
	e := New(fs, ps, &flakyPublisher{}, nil, "u1", "dev-self")
	ctx := context.Background()

	batch := Batch{Envelopes: []Envelope{
		{Type: DeltaWatchlistAdd, Payload: WatchlistAddDelta{UserID: "u1", ContentID: "c1", UniqueTag: "t1", DeviceID: "dev-peer"}},
		{Type: DeltaWatchlistAdd, Payload: WatchlistAddDelta{UserID: "u1", ContentID: "c2", UniqueTag: "t2", DeviceID: "dev-peer"}},
	}}
	if err := e.dispatch(ctx, Envelope{Type: DeltaBatch, Payload: batch}); err != nil {
		t.Fatalf("dispatch batch: %v", err)
	}
	effective, _ := e.watchlist.Effective(ctx, "u1")
	if len(effective) != 2 {
		t.Fatalf("expected both batched deltas applied, got %v", effective)
	}
}
