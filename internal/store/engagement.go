// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/streamforge/discovery/internal/metrics"
)

// UpsertWatchlistEntry applies one OR-Set add/remove tombstone. Callers
// resolve CRDT merge order before calling; this is a raw upsert keyed on
// the unique tag the sync engine assigns to each add operation.
// is_removed is monotonic: once a tag is tombstoned, a later upsert can
// never flip it back to live, since a tag's remove-record and add-record
// can arrive in either order under at-least-once redelivery.
func (s *Store) UpsertWatchlistEntry(ctx context.Context, e WatchlistEntry) error {
	start := time.Now()
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO user_watchlists (user_id, content_id, unique_tag, timestamp_physical, timestamp_logical, device_id, is_removed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, unique_tag) DO UPDATE SET
			is_removed = user_watchlists.is_removed OR excluded.is_removed,
			timestamp_physical = excluded.timestamp_physical,
			timestamp_logical = excluded.timestamp_logical,
			device_id = excluded.device_id`,
		e.UserID, e.ContentID, e.UniqueTag, e.TimestampPhysical, e.TimestampLogical, e.DeviceID, e.IsRemoved)
	metrics.RecordStoreQuery("upsert", "user_watchlists", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("upsert watchlist entry: %w", err)
	}
	return nil
}

// ListWatchlist returns every live (non-removed) entry for a user.
func (s *Store) ListWatchlist(ctx context.Context, userID string) ([]WatchlistEntry, error) {
	start := time.Now()
	rows, err := s.conn.QueryContext(ctx, `
		SELECT user_id, content_id, unique_tag, timestamp_physical, timestamp_logical, device_id, is_removed
		FROM user_watchlists WHERE user_id = ? AND is_removed = false`, userID)
	if err != nil {
		metrics.RecordStoreQuery("select", "user_watchlists", time.Since(start), err)
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	defer rows.Close()

	var out []WatchlistEntry
	for rows.Next() {
		var e WatchlistEntry
		if err := rows.Scan(&e.UserID, &e.ContentID, &e.UniqueTag, &e.TimestampPhysical, &e.TimestampLogical, &e.DeviceID, &e.IsRemoved); err != nil {
			return nil, fmt.Errorf("scan watchlist entry: %w", err)
		}
		out = append(out, e)
	}
	metrics.RecordStoreQuery("select", "user_watchlists", time.Since(start), nil)
	return out, rows.Err()
}

// AllWatchlistTags returns every tag (including tombstones) for one
// (user, content) pair, the OR-Set state the sync engine needs to merge
// against an incoming op.
func (s *Store) AllWatchlistTags(ctx context.Context, userID, contentID string) ([]WatchlistEntry, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT user_id, content_id, unique_tag, timestamp_physical, timestamp_logical, device_id, is_removed
		FROM user_watchlists WHERE user_id = ? AND content_id = ?`, userID, contentID)
	if err != nil {
		return nil, fmt.Errorf("list watchlist tags: %w", err)
	}
	defer rows.Close()

	var out []WatchlistEntry
	for rows.Next() {
		var e WatchlistEntry
		if err := rows.Scan(&e.UserID, &e.ContentID, &e.UniqueTag, &e.TimestampPhysical, &e.TimestampLogical, &e.DeviceID, &e.IsRemoved); err != nil {
			return nil, fmt.Errorf("scan watchlist tag: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertProgress applies an LWW playback-position update. Callers are
// expected to have already compared HLC timestamps against GetProgress;
// this performs the unconditional write of the winning value.
func (s *Store) UpsertProgress(ctx context.Context, p ProgressEntry) error {
	start := time.Now()
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO user_progress (user_id, content_id, position_seconds, duration_seconds, timestamp_physical, timestamp_logical, device_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, content_id) DO UPDATE SET
			position_seconds = excluded.position_seconds,
			duration_seconds = excluded.duration_seconds,
			timestamp_physical = excluded.timestamp_physical,
			timestamp_logical = excluded.timestamp_logical,
			device_id = excluded.device_id`,
		p.UserID, p.ContentID, p.PositionSeconds, p.DurationSeconds, p.TimestampPhysical, p.TimestampLogical, p.DeviceID)
	metrics.RecordStoreQuery("upsert", "user_progress", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

// GetProgress returns the current LWW playback position, if any.
func (s *Store) GetProgress(ctx context.Context, userID, contentID string) (*ProgressEntry, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT user_id, content_id, position_seconds, duration_seconds, timestamp_physical, timestamp_logical, device_id
		FROM user_progress WHERE user_id = ? AND content_id = ?`, userID, contentID)

	var p ProgressEntry
	err := row.Scan(&p.UserID, &p.ContentID, &p.PositionSeconds, &p.DurationSeconds, &p.TimestampPhysical, &p.TimestampLogical, &p.DeviceID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return &p, nil
}

// UpsertDevice registers or refreshes a device's presence.
func (s *Store) UpsertDevice(ctx context.Context, d Device) error {
	start := time.Now()
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO user_devices (user_id, device_id, device_name, platform, last_seen, is_online, push_token, remote_controllable, can_cast)
		VALUES (?, ?, ?, ?, current_timestamp, ?, ?, ?, ?)
		ON CONFLICT (user_id, device_id) DO UPDATE SET
			device_name = excluded.device_name,
			platform = excluded.platform,
			last_seen = current_timestamp,
			is_online = excluded.is_online,
			push_token = excluded.push_token,
			remote_controllable = excluded.remote_controllable,
			can_cast = excluded.can_cast`,
		d.UserID, d.DeviceID, d.DeviceName, d.Platform, d.IsOnline, d.PushToken, d.RemoteControllable, d.CanCast)
	metrics.RecordStoreQuery("upsert", "user_devices", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("upsert device: %w", err)
	}
	return nil
}

// GetDevice returns one registered device, if present.
func (s *Store) GetDevice(ctx context.Context, userID, deviceID string) (*Device, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT user_id, device_id, device_name, platform, last_seen, is_online, push_token, remote_controllable, can_cast
		FROM user_devices WHERE user_id = ? AND device_id = ?`, userID, deviceID)

	var d Device
	err := row.Scan(&d.UserID, &d.DeviceID, &d.DeviceName, &d.Platform, &d.LastSeen, &d.IsOnline, &d.PushToken, &d.RemoteControllable, &d.CanCast)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}
	return &d, nil
}

// ListDevices returns every device registered to a user.
func (s *Store) ListDevices(ctx context.Context, userID string) ([]Device, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT user_id, device_id, device_name, platform, last_seen, is_online, push_token, remote_controllable, can_cast
		FROM user_devices WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var out []Device
	for rows.Next() {
		var d Device
		if err := rows.Scan(&d.UserID, &d.DeviceID, &d.DeviceName, &d.Platform, &d.LastSeen, &d.IsOnline, &d.PushToken, &d.RemoteControllable, &d.CanCast); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RecordWatchHistory upserts the denormalized watch-history row personalization
// training reads in bulk.
func (s *Store) RecordWatchHistory(ctx context.Context, h WatchHistoryEntry) error {
	start := time.Now()
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO watch_history (user_id, content_id, position_seconds, duration_seconds, updated_at)
		VALUES (?, ?, ?, ?, current_timestamp)
		ON CONFLICT (user_id, content_id) DO UPDATE SET
			position_seconds = excluded.position_seconds,
			duration_seconds = excluded.duration_seconds,
			updated_at = current_timestamp`,
		h.UserID, h.ContentID, h.PositionSeconds, h.DurationSeconds)
	metrics.RecordStoreQuery("upsert", "watch_history", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("record watch history: %w", err)
	}
	return nil
}

// WatchHistoryForUser returns every watch-history row for a user, the raw
// training set for that user's LoRA adapter.
func (s *Store) WatchHistoryForUser(ctx context.Context, userID string) ([]WatchHistoryEntry, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT user_id, content_id, position_seconds, duration_seconds, updated_at
		FROM watch_history WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("list watch history: %w", err)
	}
	defer rows.Close()

	var out []WatchHistoryEntry
	for rows.Next() {
		var h WatchHistoryEntry
		if err := rows.Scan(&h.UserID, &h.ContentID, &h.PositionSeconds, &h.DurationSeconds, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan watch history: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

const (
	resumeMinSeconds = 30.0
	resumeMaxRatio   = 0.95
)

// ResumePosition returns where playback should resume for (userID,
// contentID), per spec.md §8's boundary behavior: below 30 seconds in or
// above 95% of duration, resume is "start at 0" and this returns nil;
// otherwise it returns the stored position.
func (s *Store) ResumePosition(ctx context.Context, userID, contentID string) (*float64, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT position_seconds, duration_seconds
		FROM watch_history WHERE user_id = ? AND content_id = ?`, userID, contentID)
	if err != nil {
		return nil, fmt.Errorf("resume position: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var position, duration float64
	if err := rows.Scan(&position, &duration); err != nil {
		return nil, fmt.Errorf("scan resume position: %w", err)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if position < resumeMinSeconds {
		return nil, nil
	}
	if duration > 0 && position/duration > resumeMaxRatio {
		return nil, nil
	}
	return &position, nil
}

// AllUserIDsWithHistory returns the distinct set of users with at least one
// watch-history row, the training scheduler's iteration set.
func (s *Store) AllUserIDsWithHistory(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT DISTINCT user_id FROM watch_history`)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
