// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package offlinequeue

import (
	"strconv"
	"sync"

	"github.com/streamforge/discovery/internal/metrics"
)

// ProgressUpdatePayload is the queued payload for OpProgressUpdate. Value
// is either an absolute playback position (IsDelta false) or a delta
// since the last emission for the same content id (IsDelta true), per
// spec.md §4.F's delta-encoding requirement.
type ProgressUpdatePayload struct {
	ContentID string  `json:"content_id"`
	Value     float64 `json:"value"`
	IsDelta   bool    `json:"is_delta"`
	Duration  float64 `json:"duration_seconds"`
	DeviceID  string  `json:"device_id"`
}

// ProgressDeltaEncoder tracks the last emitted absolute position per
// content id so subsequent progress-update enqueues can transmit just
// the delta. The first emission after process start is always absolute,
// per spec.md §4.F.
type ProgressDeltaEncoder struct {
	mu   sync.Mutex
	last map[string]float64
}

// NewProgressDeltaEncoder builds an empty encoder.
func NewProgressDeltaEncoder() *ProgressDeltaEncoder {
	return &ProgressDeltaEncoder{last: make(map[string]float64)}
}

// Encode returns the payload to enqueue for a progress update at
// position, delta-encoded against the last position seen for contentID.
// It also accounts the bytes saved versus transmitting the absolute
// value, using each number's decimal string length as the size proxy.
func (e *ProgressDeltaEncoder) Encode(contentID string, position, duration float64, deviceID string) ProgressUpdatePayload {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev, seen := e.last[contentID]
	e.last[contentID] = position

	if !seen {
		return ProgressUpdatePayload{ContentID: contentID, Value: position, IsDelta: false, Duration: duration, DeviceID: deviceID}
	}

	delta := position - prev
	if saved := bytesSaved(position, delta); saved > 0 {
		metrics.OfflineQueueBytesSaved.Add(float64(saved))
	}
	return ProgressUpdatePayload{ContentID: contentID, Value: delta, IsDelta: true, Duration: duration, DeviceID: deviceID}
}

// Reset forgets the last position for contentID, forcing the next
// Encode call to emit an absolute value.
func (e *ProgressDeltaEncoder) Reset(contentID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.last, contentID)
}

func bytesSaved(absolute, delta float64) int {
	absoluteLen := len(strconv.FormatFloat(absolute, 'f', 2, 64))
	deltaLen := len(strconv.FormatFloat(delta, 'f', 2, 64))
	return absoluteLen - deltaLen
}
