// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store wraps the canonical relational datastore (DuckDB): content
// and its external-id mappings, LoRA adapters, watchlists, playback
// progress, devices, watch history, and search analytics.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/streamforge/discovery/internal/config"
	"github.com/streamforge/discovery/internal/logging"
)

// Store wraps the DuckDB connection used for all canonical relational data.
type Store struct {
	conn *sql.DB
	cfg  config.StoreConfig
}

// Open creates the database file's parent directory if needed, opens the
// DuckDB connection, and applies the schema.
func Open(cfg config.StoreConfig) (*Store, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	if cfg.Path != ":memory:" {
		dir := filepath.Dir(cfg.Path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create store directory %s: %w", dir, err)
			}
		}
	}

	maxMemory := fmt.Sprintf("%dMB", cfg.MaxMemoryMB)
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s", cfg.Path, threads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	conn.SetMaxOpenConns(runtime.NumCPU())
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)

	s := &Store{conn: conn, cfg: cfg}

	if err := s.createSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Ping verifies the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Conn exposes the underlying *sql.DB for callers that need direct access.
func (s *Store) Conn() *sql.DB {
	return s.conn
}

func (s *Store) createSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	for _, stmt := range schemaStatements {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}

	logging.Info().Str("path", s.cfg.Path).Msg("store schema ready")
	return nil
}
