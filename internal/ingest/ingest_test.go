// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/streamforge/discovery/internal/entity"
	"github.com/streamforge/discovery/internal/store"
	"github.com/streamforge/discovery/internal/vectorstore"
)

type fakeEntityStore struct {
	byNamespace map[string]string
	saved       []store.EntityMapping
}

func newFakeEntityStore() *fakeEntityStore {
	return &fakeEntityStore{byNamespace: make(map[string]string)}
}

func (f *fakeEntityStore) FindByExternalID(_ context.Context, namespace, externalID string) (string, error) {
	if id, ok := f.byNamespace[namespace+":"+externalID]; ok {
		return id, nil
	}
	return "", errNotFoundStub{}
}

func (f *fakeEntityStore) UpsertEntityMapping(_ context.Context, m store.EntityMapping) error {
	f.saved = append(f.saved, m)
	return nil
}

type errNotFoundStub struct{}

func (errNotFoundStub) Error() string { return "not found" }

type fakeIngestStore struct {
	byPlatform   map[string]string
	upserted     []store.Content
	availability []store.Availability
}

func newFakeIngestStore() *fakeIngestStore {
	return &fakeIngestStore{byPlatform: make(map[string]string)}
}

func (f *fakeIngestStore) UpsertContent(_ context.Context, c store.Content) error {
	f.upserted = append(f.upserted, c)
	return nil
}

func (f *fakeIngestStore) UpsertAvailability(_ context.Context, a store.Availability) error {
	f.availability = append(f.availability, a)
	return nil
}

func (f *fakeIngestStore) FindByPlatformID(_ context.Context, platform, platformContentID string) (string, error) {
	if id, ok := f.byPlatform[platform+":"+platformContentID]; ok {
		return id, nil
	}
	return "", errNotFoundStub{}
}

type fakeVectorStore struct {
	collection string
	upserted   []vectorstore.Point
}

func (f *fakeVectorStore) UpsertPoints(_ context.Context, _ string, points []vectorstore.Point) error {
	f.upserted = append(f.upserted, points...)
	return nil
}

func (f *fakeVectorStore) ContentCollection() string { return f.collection }

type fakeSource struct {
	name    string
	records []RawRecord
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) FetchCatalogDelta(_ context.Context, _ time.Time, _ string) ([]RawRecord, error) {
	return s.records, nil
}

func TestRegistryAllAndGet(t *testing.T) {
	a := &fakeSource{name: "plexhub"}
	b := &fakeSource{name: "streamvault"}
	reg := NewRegistry(a, b)

	if len(reg.All()) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(reg.All()))
	}
	if _, ok := reg.Get("plexhub"); !ok {
		t.Fatal("expected to find plexhub")
	}
	if _, ok := reg.Get("missing"); ok {
		t.Fatal("expected missing source to be absent")
	}
}

func TestWriterWriteBatchMintsNewContentID(t *testing.T) {
	es := newFakeEntityStore()
	resolver := entity.New(es)
	is := newFakeIngestStore()
	vs := &fakeVectorStore{collection: "content-vectors"}
	w := NewWriter(is, vs, resolver, "plexhub")

	records := []RawRecord{
		{
			PlatformContentID: "px-1",
			Title:             "The Last Signal",
			Year:              2021,
			ContentType:       "movie",
			Embedding:         []float32{0.1, 0.2, 0.3},
			Availability: []RawAvailability{
				{Region: "US", OfferType: "subscription"},
			},
		},
	}

	if err := w.WriteBatch(context.Background(), records, "US", nil); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	if len(is.upserted) != 1 {
		t.Fatalf("expected 1 upserted content row, got %d", len(is.upserted))
	}
	if len(is.availability) != 1 {
		t.Fatalf("expected 1 availability row, got %d", len(is.availability))
	}
	if len(vs.upserted) != 1 {
		t.Fatalf("expected 1 vector point flushed, got %d", len(vs.upserted))
	}
}

func TestAvailabilitySyncSkipsUnknownTitles(t *testing.T) {
	is := newFakeIngestStore()
	src := &fakeSource{
		name: "plexhub",
		records: []RawRecord{
			{PlatformContentID: "unknown-1", Availability: []RawAvailability{{Region: "US"}}},
		},
	}
	reg := NewRegistry(src)
	sched := NewAvailabilitySyncScheduler(time.Hour, reg, Regions{"US"}, nil, is)

	if err := sched.runOne(context.Background(), src, "US"); err != nil {
		t.Fatalf("runOne: %v", err)
	}
	if len(is.availability) != 0 {
		t.Fatalf("expected no availability rows written for unresolved title, got %d", len(is.availability))
	}
}

func TestAvailabilitySyncUpsertsKnownTitles(t *testing.T) {
	is := newFakeIngestStore()
	is.byPlatform["plexhub:known-1"] = "content-abc"
	src := &fakeSource{
		name: "plexhub",
		records: []RawRecord{
			{PlatformContentID: "known-1", Availability: []RawAvailability{{Region: "US", OfferType: "subscription"}}},
		},
	}
	reg := NewRegistry(src)
	sched := NewAvailabilitySyncScheduler(time.Hour, reg, Regions{"US"}, nil, is)

	if err := sched.runOne(context.Background(), src, "US"); err != nil {
		t.Fatalf("runOne: %v", err)
	}
	if len(is.availability) != 1 || is.availability[0].ContentID != "content-abc" {
		t.Fatalf("expected availability written against resolved content id, got %+v", is.availability)
	}
}

type fakeExpiringStore struct {
	rows []store.Availability
}

func (f *fakeExpiringStore) ExpiringAvailability(_ context.Context, _ time.Duration) ([]store.Availability, error) {
	return f.rows, nil
}

type fakePublisher struct {
	published []string
}

func (f *fakePublisher) Publish(_ context.Context, topic string, _ *message.Message) error {
	f.published = append(f.published, topic)
	return nil
}

func TestExpiringContentSchedulerPublishesPerRow(t *testing.T) {
	until := time.Now().Add(48 * time.Hour)
	es := &fakeExpiringStore{rows: []store.Availability{
		{ContentID: "c1", Platform: "plexhub", Region: "US", AvailableUntil: &until},
		{ContentID: "c2", Platform: "plexhub", Region: "US", AvailableUntil: &until},
	}}
	pub := &fakePublisher{}
	sched := NewExpiringContentScheduler(15*time.Minute, es, pub, "content.expiring")

	sched.tick(context.Background())

	if len(pub.published) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(pub.published))
	}
	for _, topic := range pub.published {
		if topic != "content.expiring" {
			t.Fatalf("unexpected topic %q", topic)
		}
	}
}

type fakeStaleStore struct {
	rows     []store.Content
	upserted []store.Content
}

func (f *fakeStaleStore) ListStaleContent(_ context.Context, _ time.Time, _ int) ([]store.Content, error) {
	return f.rows, nil
}

func (f *fakeStaleStore) UpsertContent(_ context.Context, c store.Content) error {
	f.upserted = append(f.upserted, c)
	return nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, _, _ string) ([]float32, float64, error) {
	return []float32{0.4, 0.5, 0.6}, 0.73, nil
}

func TestMetadataEnrichmentSchedulerUpdatesStaleRows(t *testing.T) {
	ss := &fakeStaleStore{rows: []store.Content{{ID: "c1", CanonicalTitle: "Old Title"}}}
	vs := &fakeVectorStore{collection: "content-vectors"}
	sched := NewMetadataEnrichmentScheduler(24*time.Hour, 24*time.Hour, 100, ss, vs, fakeEmbedder{})

	sched.tick(context.Background())

	if len(ss.upserted) != 1 || ss.upserted[0].QualityScore != 0.73 {
		t.Fatalf("expected quality score refreshed, got %+v", ss.upserted)
	}
	if len(vs.upserted) != 1 || vs.upserted[0].ID != "c1" {
		t.Fatalf("expected embedding re-flushed for c1, got %+v", vs.upserted)
	}
}
