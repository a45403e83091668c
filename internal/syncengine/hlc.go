// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package syncengine

import "sync"

// HLC is a hybrid logical clock timestamp: a physical component (wall
// clock milliseconds) and a logical tiebreaker.
type HLC struct {
	Physical int64
	Logical  int32
}

// Compare orders two HLC timestamps: negative if h < other, 0 if equal,
// positive if h > other.
func (h HLC) Compare(other HLC) int {
	if h.Physical != other.Physical {
		if h.Physical < other.Physical {
			return -1
		}
		return 1
	}
	if h.Logical != other.Logical {
		if h.Logical < other.Logical {
			return -1
		}
		return 1
	}
	return 0
}

// After reports whether h strictly follows other.
func (h HLC) After(other HLC) bool { return h.Compare(other) > 0 }

// Clock is a per-device hybrid logical clock, safe for concurrent use by
// the single publisher task and any number of merge callers.
type Clock struct {
	mu   sync.Mutex
	prev HLC
}

// NewClock starts a clock at the zero timestamp.
func NewClock() *Clock { return &Clock{} }

// Now advances the clock for a new local event, per spec.md §4.E's HLC
// now() rule: p = max(wallMS, prev.physical); logical resets to 0 unless
// the physical component didn't advance, in which case it increments.
func (c *Clock) Now(wallMS int64) HLC {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := maxInt64(wallMS, c.prev.Physical)
	var l int32
	if p == c.prev.Physical {
		l = c.prev.Logical + 1
	}
	c.prev = HLC{Physical: p, Logical: l}
	return c.prev
}

// Receive merges an incoming timestamp (p', l') into the clock on
// receiving a remote event, per spec.md §4.E's receive rule.
func (c *Clock) Receive(wallMS int64, incoming HLC) HLC {
	c.mu.Lock()
	defer c.mu.Unlock()

	prevP, prevL := c.prev.Physical, c.prev.Logical
	p := maxInt64(maxInt64(wallMS, prevP), incoming.Physical)

	var l int32
	switch {
	case p == prevP && p == incoming.Physical:
		l = maxInt32(prevL, incoming.Logical) + 1
	case p == incoming.Physical && p > prevP:
		l = incoming.Logical + 1
	case p == prevP && p > incoming.Physical:
		l = prevL + 1
	default:
		l = 0
	}

	c.prev = HLC{Physical: p, Logical: l}
	return c.prev
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func maxInt32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
