// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import "fmt"

// HLC is a hybrid logical clock timestamp: wall-clock microseconds paired
// with a 16-bit logical counter. Total order is lexicographic on
// (Physical, Logical).
type HLC struct {
	Physical int64  `json:"physical"` // microseconds since epoch
	Logical  uint16 `json:"logical"`
}

// Less reports whether h sorts strictly before other.
func (h HLC) Less(other HLC) bool {
	if h.Physical != other.Physical {
		return h.Physical < other.Physical
	}
	return h.Logical < other.Logical
}

// Equal reports whether h and other are the identical timestamp.
func (h HLC) Equal(other HLC) bool {
	return h.Physical == other.Physical && h.Logical == other.Logical
}

// Compare returns -1, 0, or 1 as h is less than, equal to, or greater than
// other, breaking ties by deviceID (spec §3 HLC: "breaks ties by logical
// counter then device id").
func Compare(h HLC, hDevice string, other HLC, otherDevice string) int {
	switch {
	case h.Less(other):
		return -1
	case other.Less(h):
		return 1
	case hDevice < otherDevice:
		return -1
	case hDevice > otherDevice:
		return 1
	default:
		return 0
	}
}

func (h HLC) String() string {
	return fmt.Sprintf("%d.%d", h.Physical, h.Logical)
}
