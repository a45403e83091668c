// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/streamforge/discovery/internal/apierr"
	"github.com/streamforge/discovery/internal/metrics"
)

// SaveLoRAAdapter persists a trained adapter as a new version. Versions are
// append-only; callers needing a prior version use GetLoRAAdapterVersion.
func (s *Store) SaveLoRAAdapter(ctx context.Context, a LoRAAdapter) error {
	start := time.Now()
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO lora_adapters (user_id, adapter_name, version, weights, size_bytes, training_iterations, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, current_timestamp)
		ON CONFLICT (user_id, adapter_name, version) DO UPDATE SET
			weights = excluded.weights,
			size_bytes = excluded.size_bytes,
			training_iterations = excluded.training_iterations,
			updated_at = current_timestamp`,
		a.UserID, a.AdapterName, a.Version, a.Weights, a.SizeBytes, a.TrainingIterations)
	metrics.RecordStoreQuery("upsert", "lora_adapters", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("save lora adapter: %w", err)
	}
	return nil
}

// GetLatestLoRAAdapter returns the highest-version adapter for a user/name pair.
func (s *Store) GetLatestLoRAAdapter(ctx context.Context, userID, adapterName string) (*LoRAAdapter, error) {
	start := time.Now()
	row := s.conn.QueryRowContext(ctx, `
		SELECT user_id, adapter_name, version, weights, size_bytes, training_iterations, created_at, updated_at
		FROM lora_adapters WHERE user_id = ? AND adapter_name = ?
		ORDER BY version DESC LIMIT 1`, userID, adapterName)

	var a LoRAAdapter
	err := row.Scan(&a.UserID, &a.AdapterName, &a.Version, &a.Weights, &a.SizeBytes, &a.TrainingIterations, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		metrics.RecordStoreQuery("select", "lora_adapters", time.Since(start), nil)
		return nil, apierr.ErrNotFound
	}
	if err != nil {
		metrics.RecordStoreQuery("select", "lora_adapters", time.Since(start), err)
		return nil, fmt.Errorf("get latest lora adapter: %w", err)
	}
	metrics.RecordStoreQuery("select", "lora_adapters", time.Since(start), nil)
	return &a, nil
}

// GetLoRAAdapterVersion returns one specific version of an adapter.
func (s *Store) GetLoRAAdapterVersion(ctx context.Context, userID, adapterName string, version int) (*LoRAAdapter, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT user_id, adapter_name, version, weights, size_bytes, training_iterations, created_at, updated_at
		FROM lora_adapters WHERE user_id = ? AND adapter_name = ? AND version = ?`, userID, adapterName, version)

	var a LoRAAdapter
	err := row.Scan(&a.UserID, &a.AdapterName, &a.Version, &a.Weights, &a.SizeBytes, &a.TrainingIterations, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apierr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lora adapter version: %w", err)
	}
	return &a, nil
}
