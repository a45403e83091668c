// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/streamforge/discovery/internal/logging"
)

// metricsService runs an http.Server exposing /metrics and satisfies
// suture.Service so the API supervision sub-tree can host it alongside the
// rest of the process's always-on work.
type metricsService struct {
	server *http.Server
}

// newMetricsService builds a metricsService listening on addr.
func newMetricsService(addr string, handler http.Handler) *metricsService {
	return &metricsService{server: &http.Server{Addr: addr, Handler: handler}}
}

// Serve implements suture.Service: it runs the listener until ctx is
// cancelled, then shuts down gracefully.
func (m *metricsService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- m.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := m.server.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("metrics server shutdown error")
		}
		return ctx.Err()
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
