// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package personalize

import (
	"context"
	"time"

	"github.com/streamforge/discovery/internal/logging"
	"github.com/streamforge/discovery/internal/metrics"
	"github.com/streamforge/discovery/internal/store"
)

// TrainingStore is the subset of internal/store the training scheduler
// reads from and writes adapters through.
type TrainingStore interface {
	AdapterStore
	ContentStore
	AllUserIDsWithHistory(ctx context.Context) ([]string, error)
}

var _ TrainingStore = (*store.Store)(nil)

// TrainingScheduler periodically retrains every user's LoRA adapter from
// their accumulated watch history and refreshes the Ranker's collaborative
// fallback neighbor pool, the same ticker-loop shape internal/ingest's
// schedulers use.
type TrainingScheduler struct {
	store    TrainingStore
	registry *Registry
	ranker   *Ranker
	config   Config
	interval time.Duration
}

// NewTrainingScheduler builds a TrainingScheduler. ranker may be nil if no
// live re-scoring is wired up (e.g. in offline batch jobs).
func NewTrainingScheduler(s TrainingStore, registry *Registry, ranker *Ranker, cfg Config, interval time.Duration) *TrainingScheduler {
	return &TrainingScheduler{store: s, registry: registry, ranker: ranker, config: cfg, interval: interval}
}

// Serve runs the training loop until ctx is cancelled.
func (t *TrainingScheduler) Serve(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *TrainingScheduler) tick(ctx context.Context) {
	start := time.Now()
	userIDs, err := t.store.AllUserIDsWithHistory(ctx)
	if err != nil {
		metrics.IngestErrors.WithLabelValues("personalize", "store", "list_users").Inc()
		logging.Error().Err(err).Msg("personalize training: list users failed")
		return
	}

	interactionsByUser := make(map[string][]Interaction, len(userIDs))
	genresByContent := make(map[string][]string)
	tasteByUser := make(map[string][]float64, len(userIDs))

	genreLists := make([][]string, 0, 256)

	for _, userID := range userIDs {
		history, err := t.store.WatchHistoryForUser(ctx, userID)
		if err != nil {
			metrics.IngestErrors.WithLabelValues("personalize", "store", "watch_history").Inc()
			continue
		}
		interactions := make([]Interaction, 0, len(history))
		for _, h := range history {
			if _, ok := genresByContent[h.ContentID]; !ok {
				c, err := t.store.GetContent(ctx, h.ContentID)
				if err != nil {
					continue
				}
				genresByContent[h.ContentID] = c.Genres
				genreLists = append(genreLists, c.Genres)
			}
			interactions = append(interactions, InteractionFromWatchHistory(userID, h.ContentID, h.PositionSeconds, h.DurationSeconds))
		}
		interactionsByUser[userID] = interactions
	}

	taxonomy := BuildTaxonomy(genreLists)
	adapters := TrainAll(t.config, taxonomy, interactionsByUser, genresByContent)

	for userID, adapter := range adapters {
		if _, err := t.registry.Save(ctx, adapter, t.config.Iterations); err != nil {
			metrics.IngestErrors.WithLabelValues("personalize", "store", "save_adapter").Inc()
			logging.Error().Err(err).Str("user_id", userID).Msg("save lora adapter failed")
			continue
		}
		items := buildTrainingItems(taxonomy, interactionsByUser[userID], genresByContent)
		tasteByUser[userID] = userTasteVector(items, taxonomy.Dim())
	}

	if t.ranker != nil {
		t.ranker.SetNeighborPool(tasteByUser)
	}

	metrics.IngestItemsProcessed.WithLabelValues("personalize", "adapters_trained").Add(float64(len(adapters)))
	metrics.RecordIngestBatch("personalize", time.Since(start))
}
