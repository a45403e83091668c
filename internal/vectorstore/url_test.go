// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package vectorstore

import "testing"

func TestHostFromURL(t *testing.T) {
	cases := map[string]string{
		"http://qdrant.internal:6334": "qdrant.internal",
		"qdrant.internal:6334":        "qdrant.internal",
		"localhost":                   "localhost",
	}
	for in, want := range cases {
		if got := hostFromURL(in); got != want {
			t.Errorf("hostFromURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPortFromURL(t *testing.T) {
	cases := map[string]int{
		"http://qdrant.internal:6334": 6334,
		"qdrant.internal:6333":        6333,
		"localhost":                   defaultQdrantPort,
	}
	for in, want := range cases {
		if got := portFromURL(in); got != want {
			t.Errorf("portFromURL(%q) = %d, want %d", in, got, want)
		}
	}
}
