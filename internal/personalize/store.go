// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package personalize

import (
	"context"
	"errors"
	"fmt"

	"github.com/streamforge/discovery/internal/apierr"
	"github.com/streamforge/discovery/internal/store"
)

// AdapterStore is the subset of internal/store the package persists
// trained adapters through. Versions are append-only; Save always writes
// the next version after whatever is currently latest.
type AdapterStore interface {
	SaveLoRAAdapter(ctx context.Context, a store.LoRAAdapter) error
	GetLatestLoRAAdapter(ctx context.Context, userID, adapterName string) (*store.LoRAAdapter, error)
	GetLoRAAdapterVersion(ctx context.Context, userID, adapterName string, version int) (*store.LoRAAdapter, error)
}

var _ AdapterStore = (*store.Store)(nil)

// Registry wraps an AdapterStore with adapter encode/decode and the
// version-increment logic spec.md §4.D's persistence contract describes:
// save(adapter, name) -> version, load(user_id, name) -> adapter.
type Registry struct {
	store AdapterStore
}

// NewRegistry builds a Registry over the given adapter store.
func NewRegistry(s AdapterStore) *Registry {
	return &Registry{store: s}
}

// Save persists a newly trained adapter as the next version for its
// (user, name) pair and returns that version.
func (r *Registry) Save(ctx context.Context, a Adapter, iterations int) (int, error) {
	name := a.Name
	if name == "" {
		name = defaultAdapterName
	}

	next := 1
	if latest, err := r.store.GetLatestLoRAAdapter(ctx, a.UserID, name); err == nil {
		next = latest.Version + 1
	} else if !errors.Is(err, apierr.ErrNotFound) {
		return 0, fmt.Errorf("lookup latest adapter version: %w", err)
	}

	blob, err := EncodeAdapter(a)
	if err != nil {
		return 0, err
	}

	if err := r.store.SaveLoRAAdapter(ctx, store.LoRAAdapter{
		UserID:             a.UserID,
		AdapterName:        name,
		Version:            next,
		Weights:            blob,
		SizeBytes:          int64(len(blob)),
		TrainingIterations: iterations,
	}); err != nil {
		return 0, fmt.Errorf("save adapter: %w", err)
	}
	return next, nil
}

// Load returns the highest-version adapter for (userID, name). It returns
// apierr.ErrNotFound when the user has no trained adapter yet.
func (r *Registry) Load(ctx context.Context, userID, name string) (Adapter, error) {
	if name == "" {
		name = defaultAdapterName
	}
	row, err := r.store.GetLatestLoRAAdapter(ctx, userID, name)
	if err != nil {
		return Adapter{}, err
	}
	a, err := DecodeAdapter(row.Weights)
	if err != nil {
		return Adapter{}, err
	}
	a.UserID = userID
	a.Name = name
	a.Version = row.Version
	return a, nil
}

// LoadVersion returns one specific historical adapter version.
func (r *Registry) LoadVersion(ctx context.Context, userID, name string, version int) (Adapter, error) {
	row, err := r.store.GetLoRAAdapterVersion(ctx, userID, name, version)
	if err != nil {
		return Adapter{}, err
	}
	a, err := DecodeAdapter(row.Weights)
	if err != nil {
		return Adapter{}, err
	}
	a.UserID = userID
	a.Name = name
	a.Version = row.Version
	return a, nil
}
