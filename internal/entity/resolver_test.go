// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package entity

import (
	"context"
	"testing"

	"github.com/streamforge/discovery/internal/models"
	"github.com/streamforge/discovery/internal/store"
)

type fakeStore struct {
	byNamespace map[string]string // "namespace:id" -> canonical id
	saved       []store.EntityMapping
}

func newFakeStore() *fakeStore {
	return &fakeStore{byNamespace: make(map[string]string)}
}

func (f *fakeStore) FindByExternalID(_ context.Context, namespace, externalID string) (string, error) {
	id, ok := f.byNamespace[namespace+":"+externalID]
	if !ok {
		return "", nil
	}
	return id, nil
}

func (f *fakeStore) UpsertEntityMapping(_ context.Context, m store.EntityMapping) error {
	f.saved = append(f.saved, m)
	return nil
}

func TestResolveEIDRExact(t *testing.T) {
	r := New(newFakeStore())
	r.LoadIndex([]models.ExternalIDMapping{
		{ExternalID: "10.5240/MATX-1", IDType: models.ExternalEIDR, CanonicalID: "c1"},
	})

	res, err := r.Resolve(context.Background(), Candidate{SourceRecordID: "s1", EIDR: "10.5240/MATX-1"}, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Method != models.MethodEIDRExact || res.Confidence != 1.0 || res.CanonicalID != "c1" {
		t.Errorf("res = %+v, want eidr-exact match on c1 conf 1.0", res)
	}
}

func TestResolvePriorityEIDROverExternalID(t *testing.T) {
	r := New(newFakeStore())
	r.LoadIndex([]models.ExternalIDMapping{
		{ExternalID: "tt0133093", IDType: models.ExternalIMDb, CanonicalID: "c1"},
		{ExternalID: "10.5240/MATX-1", IDType: models.ExternalEIDR, CanonicalID: "c1"},
	})

	first, err := r.Resolve(context.Background(), Candidate{SourceRecordID: "s1", IMDbID: "tt0133093"}, nil)
	if err != nil {
		t.Fatalf("resolve first: %v", err)
	}
	if first.Method != models.MethodExternalIMDb || first.Confidence != 0.99 {
		t.Errorf("first = %+v, want external-id(imdb) conf 0.99", first)
	}

	second, err := r.Resolve(context.Background(), Candidate{SourceRecordID: "s2", EIDR: "10.5240/MATX-1", IMDbID: "tt0133093"}, nil)
	if err != nil {
		t.Fatalf("resolve second: %v", err)
	}
	if second.Method != models.MethodEIDRExact || second.CanonicalID != first.CanonicalID {
		t.Errorf("second = %+v, want eidr-exact mapping to same canonical id", second)
	}
}

func TestResolveFuzzyTitleYear(t *testing.T) {
	r := New(newFakeStore())
	known := []KnownEntity{
		{CanonicalID: "c1", Title: "The Matrix", Year: 1999},
	}

	res, err := r.Resolve(context.Background(), Candidate{SourceRecordID: "s1", Title: "the matrix!", Year: 1999}, known)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Method != models.MethodFuzzyTitleYear || res.CanonicalID != "c1" {
		t.Errorf("res = %+v, want fuzzy-title-year match on c1", res)
	}
	if res.Confidence < 0.90 || res.Confidence > 0.98 {
		t.Errorf("confidence = %v, want in [0.90, 0.98]", res.Confidence)
	}
}

func TestResolveFuzzyTitleYearOutOfRange(t *testing.T) {
	r := New(newFakeStore())
	known := []KnownEntity{
		{CanonicalID: "c1", Title: "The Matrix", Year: 1999},
	}

	res, err := r.Resolve(context.Background(), Candidate{SourceRecordID: "s1", Title: "The Matrix", Year: 2005}, known)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Matched() {
		t.Errorf("res = %+v, want no match outside +/-1 year window", res)
	}
}

func TestResolveEmbeddingSimilarity(t *testing.T) {
	r := New(newFakeStore())
	known := []KnownEntity{
		{CanonicalID: "c1", Embedding: []float32{1, 0, 0}},
	}

	res, err := r.Resolve(context.Background(), Candidate{SourceRecordID: "s1", Embedding: []float32{0.99, 0.01, 0}}, known)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Method != models.MethodEmbedding || res.CanonicalID != "c1" {
		t.Errorf("res = %+v, want embedding-similarity match on c1", res)
	}
}

func TestResolveNoMatch(t *testing.T) {
	r := New(newFakeStore())
	res, err := r.Resolve(context.Background(), Candidate{SourceRecordID: "s1", Title: "Completely Unrelated Title"}, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Matched() {
		t.Errorf("res = %+v, want no match", res)
	}
}

func TestResolvePersistsNonExactMatch(t *testing.T) {
	fs := newFakeStore()
	r := New(fs)
	known := []KnownEntity{{CanonicalID: "c1", Title: "The Matrix", Year: 1999}}

	if _, err := r.Resolve(context.Background(), Candidate{SourceRecordID: "s1", Title: "the matrix", Year: 1999}, known); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(fs.saved) != 1 {
		t.Fatalf("saved mappings = %d, want 1", len(fs.saved))
	}
	if fs.saved[0].Method != string(models.MethodFuzzyTitleYear) {
		t.Errorf("saved method = %q, want fuzzy-title-year", fs.saved[0].Method)
	}
}

func TestResolveCachesRepeatedLookup(t *testing.T) {
	r := New(newFakeStore())
	r.LoadIndex([]models.ExternalIDMapping{
		{ExternalID: "tt0133093", IDType: models.ExternalIMDb, CanonicalID: "c1"},
	})

	first, _ := r.Resolve(context.Background(), Candidate{SourceRecordID: "s1", IMDbID: "tt0133093"}, nil)
	second, _ := r.Resolve(context.Background(), Candidate{SourceRecordID: "s1", IMDbID: "tt0133093"}, nil)
	if first != second {
		t.Errorf("cached result differs: %+v vs %+v", first, second)
	}
}
