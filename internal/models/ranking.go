// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"math"
	"time"
)

// WeightSumTolerance is epsilon for the ranking-weight sum-to-one check
// (spec §8 invariant 1: |sum(weights) - 1.0| <= 1e-4).
const WeightSumTolerance = 1e-4

// RankingWeights are the four non-negative weights of a ranking
// configuration, required to sum to 1.0 within WeightSumTolerance.
type RankingWeights struct {
	Vector    float64 `json:"vector"`
	Keyword   float64 `json:"keyword"`
	Quality   float64 `json:"quality"`
	Freshness float64 `json:"freshness"`
}

// Sum returns the sum of the four weights.
func (w RankingWeights) Sum() float64 {
	return w.Vector + w.Keyword + w.Quality + w.Freshness
}

// Valid reports whether the weights sum to 1.0 within tolerance and are
// all non-negative.
func (w RankingWeights) Valid() bool {
	if w.Vector < 0 || w.Keyword < 0 || w.Quality < 0 || w.Freshness < 0 {
		return false
	}
	return math.Abs(w.Sum()-1.0) <= WeightSumTolerance
}

// RankingConfig is a versioned ranking-weight record. A "named variant"
// additionally carries Active and TrafficPercent for A/B routing.
type RankingConfig struct {
	Name        string         `json:"name"` // "" for the unnamed default configuration
	Version     int64          `json:"version"`
	Weights     RankingWeights `json:"weights"`
	Active      bool           `json:"active"`
	TrafficPct  int            `json:"traffic_percent"` // 0-100, named variants only
	CreatedAt   time.Time      `json:"created_at"`
	Creator     string         `json:"creator"`
	Description string         `json:"description"`
}
