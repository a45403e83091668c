// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package bandwidth

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// SourceLimiter holds one token-bucket rate limiter per content source
// (e.g. "tmdb", "tvdb", "gracenote"), so a slow or rate-limit-happy
// upstream never starves ingestion of the others.
type SourceLimiter struct {
	mu       sync.Mutex
	perRate  rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// NewSourceLimiter builds a SourceLimiter where each source gets its own
// bucket refilling at ratePerSecond with the given burst.
func NewSourceLimiter(ratePerSecond float64, burst int) *SourceLimiter {
	return &SourceLimiter{
		perRate:  rate.Limit(ratePerSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until source is permitted to issue its next request, or ctx
// is done.
func (s *SourceLimiter) Wait(ctx context.Context, source string) error {
	return s.limiterFor(source).Wait(ctx)
}

// Allow reports, without blocking, whether source may issue a request now.
func (s *SourceLimiter) Allow(source string) bool {
	return s.limiterFor(source).Allow()
}

func (s *SourceLimiter) limiterFor(source string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.limiters[source]
	if !ok {
		l = rate.NewLimiter(s.perRate, s.burst)
		s.limiters[source] = l
	}
	return l
}
