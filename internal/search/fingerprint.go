// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// fingerprint returns the cache key for a request: a SHA-256 digest over a
// canonical, order-independent serialization of the query, filters, page
// window, user, and experiment variant.
func fingerprint(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "q=%s;", strings.ToLower(strings.TrimSpace(req.Query)))
	fmt.Fprintf(&b, "genres=%s;", canonicalList(req.Filters.Genres))
	fmt.Fprintf(&b, "platforms=%s;", canonicalList(req.Filters.Platforms))
	fmt.Fprintf(&b, "year=%d-%d;", req.Filters.YearMin, req.Filters.YearMax)
	fmt.Fprintf(&b, "rating=%.3f-%.3f;", req.Filters.RatingMin, req.Filters.RatingMax)
	fmt.Fprintf(&b, "page=%d;size=%d;", req.Page, req.PageSize)
	fmt.Fprintf(&b, "user=%s;variant=%s", req.UserID, req.ExperimentVariant)

	sum := sha256.Sum256([]byte(b.String()))
	return "search:fp:" + hex.EncodeToString(sum[:])
}

func canonicalList(vals []string) string {
	sorted := make([]string, len(vals))
	copy(sorted, vals)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// intentCacheKey is keyed by raw query text only, shared across all
// requesters of the same query regardless of filters or pagination.
func intentCacheKey(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return "search:intent:" + hex.EncodeToString(sum[:])
}
