// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package embedclient

import (
	"testing"

	"github.com/streamforge/discovery/internal/config"
)

func TestSynopsisCompletenessBounds(t *testing.T) {
	if got := synopsisCompleteness(""); got != 0 {
		t.Fatalf("expected 0 for empty synopsis, got %f", got)
	}
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'a'
	}
	if got := synopsisCompleteness(string(long)); got != 1 {
		t.Fatalf("expected 1 for long synopsis, got %f", got)
	}
	half := make([]byte, 140)
	for i := range half {
		half[i] = 'a'
	}
	got := synopsisCompleteness(string(half))
	if got <= 0 || got >= 1 {
		t.Fatalf("expected a value strictly between 0 and 1, got %f", got)
	}
}

func TestNewPanicsOnEmptyModel(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on empty model")
		}
	}()
	New(config.EmbeddingConfig{})
}
