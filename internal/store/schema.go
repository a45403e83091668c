// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

// schemaStatements is executed in order against a fresh or existing
// database. Every CREATE TABLE uses IF NOT EXISTS so startup is idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS content (
		id VARCHAR PRIMARY KEY,
		canonical_title VARCHAR NOT NULL,
		release_year INTEGER,
		content_type VARCHAR NOT NULL,
		runtime_minutes INTEGER,
		synopsis VARCHAR,
		quality_score DOUBLE,
		popularity_score DOUBLE,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
		updated_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,

	`CREATE TABLE IF NOT EXISTS external_ids (
		content_id VARCHAR NOT NULL,
		namespace VARCHAR NOT NULL,
		external_id VARCHAR NOT NULL,
		PRIMARY KEY (content_id, namespace)
	)`,

	`CREATE TABLE IF NOT EXISTS platform_ids (
		content_id VARCHAR NOT NULL,
		platform VARCHAR NOT NULL,
		platform_content_id VARCHAR NOT NULL,
		PRIMARY KEY (content_id, platform)
	)`,

	`CREATE TABLE IF NOT EXISTS content_genres (
		content_id VARCHAR NOT NULL,
		genre VARCHAR NOT NULL,
		PRIMARY KEY (content_id, genre)
	)`,

	`CREATE TABLE IF NOT EXISTS content_ratings (
		content_id VARCHAR NOT NULL,
		system VARCHAR NOT NULL,
		rating VARCHAR NOT NULL,
		PRIMARY KEY (content_id, system)
	)`,

	`CREATE TABLE IF NOT EXISTS platform_availability (
		content_id VARCHAR NOT NULL,
		platform VARCHAR NOT NULL,
		region VARCHAR NOT NULL,
		offer_type VARCHAR NOT NULL,
		price_cents INTEGER,
		deep_link VARCHAR,
		available_from TIMESTAMP,
		available_until TIMESTAMP,
		last_seen TIMESTAMP NOT NULL DEFAULT current_timestamp,
		PRIMARY KEY (content_id, platform, region, offer_type)
	)`,

	`CREATE TABLE IF NOT EXISTS entity_mappings (
		content_id VARCHAR NOT NULL,
		source VARCHAR NOT NULL,
		source_record_id VARCHAR NOT NULL,
		method VARCHAR NOT NULL,
		confidence DOUBLE NOT NULL,
		resolved_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
		PRIMARY KEY (source, source_record_id)
	)`,

	`CREATE TABLE IF NOT EXISTS lora_adapters (
		user_id VARCHAR NOT NULL,
		adapter_name VARCHAR NOT NULL,
		version INTEGER NOT NULL,
		weights BLOB NOT NULL,
		size_bytes BIGINT NOT NULL,
		training_iterations INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
		updated_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
		UNIQUE (user_id, adapter_name, version)
	)`,

	`CREATE TABLE IF NOT EXISTS user_watchlists (
		user_id VARCHAR NOT NULL,
		content_id VARCHAR NOT NULL,
		unique_tag VARCHAR NOT NULL,
		timestamp_physical BIGINT NOT NULL,
		timestamp_logical INTEGER NOT NULL,
		device_id VARCHAR NOT NULL,
		is_removed BOOLEAN NOT NULL DEFAULT false,
		UNIQUE (user_id, unique_tag)
	)`,

	`CREATE TABLE IF NOT EXISTS user_progress (
		user_id VARCHAR NOT NULL,
		content_id VARCHAR NOT NULL,
		position_seconds DOUBLE NOT NULL,
		duration_seconds DOUBLE,
		timestamp_physical BIGINT NOT NULL,
		timestamp_logical INTEGER NOT NULL,
		device_id VARCHAR NOT NULL,
		UNIQUE (user_id, content_id)
	)`,

	`CREATE TABLE IF NOT EXISTS user_devices (
		user_id VARCHAR NOT NULL,
		device_id VARCHAR NOT NULL,
		device_name VARCHAR,
		platform VARCHAR,
		last_seen TIMESTAMP NOT NULL DEFAULT current_timestamp,
		is_online BOOLEAN NOT NULL DEFAULT false,
		push_token VARCHAR,
		remote_controllable BOOLEAN NOT NULL DEFAULT true,
		can_cast BOOLEAN NOT NULL DEFAULT false,
		UNIQUE (user_id, device_id)
	)`,

	`CREATE TABLE IF NOT EXISTS watch_history (
		user_id VARCHAR NOT NULL,
		content_id VARCHAR NOT NULL,
		position_seconds DOUBLE NOT NULL,
		duration_seconds DOUBLE,
		updated_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
		UNIQUE (user_id, content_id)
	)`,

	`CREATE SEQUENCE IF NOT EXISTS search_events_id_seq`,
	`CREATE TABLE IF NOT EXISTS search_events (
		id BIGINT PRIMARY KEY DEFAULT nextval('search_events_id_seq'),
		query VARCHAR NOT NULL,
		user_id VARCHAR,
		result_count INTEGER NOT NULL,
		latency_ms INTEGER NOT NULL,
		filters_json VARCHAR,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,

	`CREATE SEQUENCE IF NOT EXISTS search_clicks_id_seq`,
	`CREATE TABLE IF NOT EXISTS search_clicks (
		id BIGINT PRIMARY KEY DEFAULT nextval('search_clicks_id_seq'),
		search_event_id BIGINT NOT NULL,
		content_id VARCHAR NOT NULL,
		position INTEGER NOT NULL,
		clicked_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,

	`CREATE TABLE IF NOT EXISTS popular_searches (
		query_normalized VARCHAR PRIMARY KEY,
		count BIGINT NOT NULL DEFAULT 0,
		last_seen TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,

	`CREATE INDEX IF NOT EXISTS idx_content_type ON content (content_type)`,
	`CREATE INDEX IF NOT EXISTS idx_platform_availability_region ON platform_availability (region, platform)`,
	`CREATE INDEX IF NOT EXISTS idx_user_watchlists_user ON user_watchlists (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_user_progress_user ON user_progress (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_watch_history_user ON watch_history (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_search_clicks_event ON search_clicks (search_event_id)`,
}
