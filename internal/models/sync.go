// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import "time"

// WatchlistEntry is a single OR-Set add-record: content_id, unique_tag,
// HLC timestamp, originating device id, tombstone flag.
//
// An element is present iff there exists an add-record with tag T and no
// remove-record for tag T. Adds and removes from different devices are
// commutative; the empty set is the initial state.
type WatchlistEntry struct {
	ContentID  string `json:"content_id"`
	UniqueTag  string `json:"unique_tag"`
	Timestamp  HLC    `json:"timestamp"`
	DeviceID   string `json:"device_id"`
	Tombstone  bool   `json:"tombstone"`
}

// PlaybackState enumerates the LWW playback-register states.
type PlaybackState string

const (
	PlaybackPlaying PlaybackState = "playing"
	PlaybackPaused  PlaybackState = "paused"
	PlaybackStopped PlaybackState = "stopped"
)

// PlaybackPosition is the LWW register keyed by (user_id, content_id).
// For a given key the stored record is the one with the maximum HLC
// timestamp ever observed.
type PlaybackPosition struct {
	UserID     string        `json:"user_id"`
	ContentID  string        `json:"content_id"`
	Position   float64       `json:"position_seconds"`
	Duration   float64       `json:"duration_seconds"`
	State      PlaybackState `json:"state"`
	Timestamp  HLC           `json:"timestamp"`
	DeviceID   string        `json:"device_id"`
}

// DeviceType enumerates the device-record type field.
type DeviceType string

const (
	DeviceTV      DeviceType = "tv"
	DevicePhone   DeviceType = "phone"
	DeviceTablet  DeviceType = "tablet"
	DeviceWeb     DeviceType = "web"
	DeviceDesktop DeviceType = "desktop"
)

// Capabilities describes what a device can do for remote command validation.
type Capabilities struct {
	MaxResolution      string   `json:"max_resolution"`
	HDRFormats         []string `json:"hdr_formats"`
	AudioCodecs        []string `json:"audio_codecs"`
	RemoteControllable bool     `json:"remote_controllable"`
	CanCast            bool     `json:"can_cast"`
	ScreenSize         string   `json:"screen_size"`
}

// Device is a registered device record.
type Device struct {
	DeviceID     string       `json:"device_id"`
	UserID       string       `json:"user_id"`
	Type         DeviceType   `json:"type"`
	Platform     string       `json:"platform"`
	Capabilities Capabilities `json:"capabilities"`
	AppVersion   string       `json:"app_version"`
	LastSeen     time.Time    `json:"last_seen"`
	Online       bool         `json:"online"`
	FriendlyName string       `json:"friendly_name"`
}

// SyncOperationKind enumerates offline-queue operation kinds.
type SyncOperationKind string

const (
	OpWatchlistAdd    SyncOperationKind = "watchlist-add"
	OpWatchlistRemove SyncOperationKind = "watchlist-remove"
	OpProgressUpdate  SyncOperationKind = "progress-update"
	OpDeviceCommand   SyncOperationKind = "device-command"
)

// SyncQueueEntry is a durable offline-queue row. Dequeue order is strict
// FIFO by (CreatedAtMS, ID).
type SyncQueueEntry struct {
	ID          uint64            `json:"id"`
	Kind        SyncOperationKind `json:"operation_type"`
	Payload     []byte            `json:"payload"`
	CreatedAtMS int64             `json:"created_at_ms"`
	RetryCount  int               `json:"retry_count"`
}
