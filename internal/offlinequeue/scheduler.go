// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package offlinequeue

import (
	"context"
	"time"

	"github.com/streamforge/discovery/internal/logging"
)

// ReplayScheduler periodically drains the durable queue through a
// Replayer, the same ticker-loop shape internal/ingest's schedulers use.
// It is the "offline-sync-queue replay loop" the data supervision
// sub-tree hosts.
type ReplayScheduler struct {
	queue    *Queue
	replay   Replayer
	interval time.Duration
}

// NewReplayScheduler builds a ReplayScheduler draining queue on the given
// interval.
func NewReplayScheduler(queue *Queue, replay Replayer, interval time.Duration) *ReplayScheduler {
	return &ReplayScheduler{queue: queue, replay: replay, interval: interval}
}

// Serve implements suture.Service: it replays pending items once
// immediately, then on every tick, until ctx is cancelled.
func (s *ReplayScheduler) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *ReplayScheduler) tick(ctx context.Context) {
	result, err := s.queue.ReplayPending(ctx, s.replay)
	if err != nil {
		logging.Error().Err(err).Msg("offline queue replay failed")
		return
	}
	if result.Replayed > 0 || result.Dropped > 0 {
		logging.Info().
			Int("replayed", result.Replayed).
			Int("dropped", result.Dropped).
			Msg("offline queue replay tick")
	}
}
