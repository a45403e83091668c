// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package offlinequeue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/streamforge/discovery/internal/wal"
)

// fakeWAL is an in-memory stand-in for internal/wal's durable store,
// matching the narrow BackingWAL surface this package depends on.
type fakeWAL struct {
	pending map[string]*wal.Entry
}

func newFakeWAL() *fakeWAL {
	return &fakeWAL{pending: make(map[string]*wal.Entry)}
}

func (f *fakeWAL) Write(_ context.Context, event interface{}) (string, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	f.pending[id] = &wal.Entry{ID: id, Payload: body}
	return id, nil
}

func (f *fakeWAL) Confirm(_ context.Context, entryID string) error {
	if _, ok := f.pending[entryID]; !ok {
		return errors.New("entry not found")
	}
	delete(f.pending, entryID)
	return nil
}

func (f *fakeWAL) GetPending(_ context.Context) ([]*wal.Entry, error) {
	out := make([]*wal.Entry, 0, len(f.pending))
	for _, e := range f.pending {
		out = append(out, e)
	}
	return out, nil
}

func TestEnqueuePeekIsFIFO(t *testing.T) {
	fw := newFakeWAL()
	q := New(fw, 3)
	ctx := context.Background()

	for i, id := range []string{"c1", "c2", "c3"} {
		if _, err := q.Enqueue(ctx, OpWatchlistAdd, map[string]string{"content_id": id}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	items, err := q.Peek(ctx, 10)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i].CreatedAtMS < items[i-1].CreatedAtMS {
			t.Fatalf("items not in FIFO order: %+v", items)
		}
	}
}

func TestRemoveDropsItem(t *testing.T) {
	fw := newFakeWAL()
	q := New(fw, 3)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, OpProgressUpdate, ProgressUpdatePayload{ContentID: "c1", Value: 10})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Remove(ctx, id); err != nil {
		t.Fatalf("remove: %v", err)
	}

	n, err := q.Len(ctx)
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty queue after remove, got %d", n)
	}
}

func TestReplayPendingConfirmsOnSuccess(t *testing.T) {
	fw := newFakeWAL()
	q := New(fw, 3)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, OpWatchlistAdd, map[string]string{"content_id": "c1"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	result, err := q.ReplayPending(ctx, func(_ context.Context, _ Item) error { return nil })
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if result.Replayed != 1 || result.Dropped != 0 {
		t.Fatalf("expected 1 replayed 0 dropped, got %+v", result)
	}

	n, _ := q.Len(ctx)
	if n != 0 {
		t.Fatalf("expected queue drained, got %d", n)
	}
}

func TestReplayPendingDropsAfterMaxRetries(t *testing.T) {
	fw := newFakeWAL()
	q := New(fw, 3)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, OpDeviceCommand, map[string]string{"command": "play"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	alwaysFail := func(_ context.Context, _ Item) error { return errors.New("delivery failed") }

	for attempt := 1; attempt <= 2; attempt++ {
		result, err := q.ReplayPending(ctx, alwaysFail)
		if err != nil {
			t.Fatalf("replay attempt %d: %v", attempt, err)
		}
		if result.Dropped != 0 {
			t.Fatalf("attempt %d: item dropped too early: %+v", attempt, result)
		}
		n, _ := q.Len(ctx)
		if n != 1 {
			t.Fatalf("attempt %d: expected item retained after failed replay, got %d pending", attempt, n)
		}
	}

	result, err := q.ReplayPending(ctx, alwaysFail)
	if err != nil {
		t.Fatalf("final replay: %v", err)
	}
	if result.Dropped != 1 {
		t.Fatalf("expected item dropped on 3rd failed attempt, got %+v", result)
	}
	n, _ := q.Len(ctx)
	if n != 0 {
		t.Fatalf("expected queue empty after drop, got %d", n)
	}
}

func TestProgressDeltaEncoderFirstEmissionIsAbsolute(t *testing.T) {
	enc := NewProgressDeltaEncoder()

	first := enc.Encode("c1", 120, 3600, "dev-a")
	if first.IsDelta {
		t.Fatal("expected first emission to be absolute")
	}
	if first.Value != 120 {
		t.Fatalf("expected absolute value 120, got %v", first.Value)
	}

	second := enc.Encode("c1", 150, 3600, "dev-a")
	if !second.IsDelta {
		t.Fatal("expected second emission to be delta-encoded")
	}
	if second.Value != 30 {
		t.Fatalf("expected delta of 30, got %v", second.Value)
	}
}

func TestProgressDeltaEncoderResetForcesAbsolute(t *testing.T) {
	enc := NewProgressDeltaEncoder()
	enc.Encode("c1", 120, 3600, "dev-a")
	enc.Reset("c1")

	after := enc.Encode("c1", 500, 3600, "dev-a")
	if after.IsDelta {
		t.Fatal("expected emission after reset to be absolute")
	}
	if after.Value != 500 {
		t.Fatalf("expected absolute value 500, got %v", after.Value)
	}
}
