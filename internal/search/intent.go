// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"regexp"
	"strconv"
	"strings"
)

// Intent is the structured signal extracted from free-text query terms,
// cached separately from the full response since many distinct requests
// share the same underlying query text.
type Intent struct {
	Genre    string
	Era      string
	Mood     string
	Platform string
}

var (
	decadeRe = regexp.MustCompile(`\b(19|20)(\d)0s\b`)
	yearRe   = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

var knownGenres = []string{
	"action", "comedy", "drama", "horror", "documentary", "animation",
	"thriller", "romance", "sci-fi", "fantasy", "mystery", "crime",
}

var knownMoods = []string{"feel-good", "dark", "lighthearted", "intense", "nostalgic"}

var knownPlatforms = []string{"netflix", "hulu", "max", "prime", "disney+", "peacock", "paramount+"}

// parseIntent extracts genre/era/mood/platform hints from free-text query
// terms. It is deliberately simple keyword matching, not a classifier.
// The engine caches the result under the intent key; retrieval, fusion
// and filtering do not read it.
func parseIntent(query string) Intent {
	lower := strings.ToLower(query)
	var intent Intent

	for _, g := range knownGenres {
		if strings.Contains(lower, g) {
			intent.Genre = g
			break
		}
	}
	for _, m := range knownMoods {
		if strings.Contains(lower, m) {
			intent.Mood = m
			break
		}
	}
	for _, p := range knownPlatforms {
		if strings.Contains(lower, p) {
			intent.Platform = p
			break
		}
	}

	if m := decadeRe.FindStringSubmatch(lower); m != nil {
		intent.Era = m[1] + m[2] + "0s"
	} else if y := yearRe.FindString(lower); y != "" {
		if _, err := strconv.Atoi(y); err == nil {
			intent.Era = y
		}
	}

	return intent
}
