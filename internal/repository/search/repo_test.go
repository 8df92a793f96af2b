package search

import (
	"context"
	"errors"
	"testing"

	"github.com/timtro-cloud/timtro/internal/db"
	"github.com/timtro-cloud/timtro/internal/domain"
	"github.com/timtro-cloud/timtro/internal/domain/listing"
	"github.com/timtro-cloud/timtro/internal/domain/search/filter"
)

type mockStore struct {
	searchKNNFn  func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchTextFn func(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if m.searchTextFn != nil {
		return m.searchTextFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func sampleEntry() db.SearchEntry {
	return db.SearchEntry{
		Key:   "timtro:listing:abc",
		Score: 2.5,
		Fields: map[string]string{
			listing.FieldListingID:    "lst-1",
			listing.FieldRoomID:       "room-1",
			listing.FieldTitle:        "Phòng trọ <em>Quận 7</em> giá rẻ",
			listing.FieldDescription:  "Gần chợ",
			listing.FieldCategory:     "phong-tro",
			listing.FieldWardCode:     "27477",
			listing.FieldPrice:        "4500000",
			listing.FieldArea:         "25",
			listing.FieldGeo:          "106.7212,10.7411",
			listing.FieldCreatedAt:    "1756339200",
			listing.FieldBuildingName: "Sky Garden",
		},
	}
}

func TestSearchText_ParsesCandidates(t *testing.T) {
	ms := &mockStore{
		searchTextFn: func(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
			if q.IndexName != domain.ListingIndexName {
				t.Errorf("index = %q", q.IndexName)
			}
			if len(q.HighlightFields) == 0 {
				t.Error("expected highlight fields to be requested")
			}
			return &db.SearchResult{Total: 42, Entries: []db.SearchEntry{sampleEntry()}}, nil
		},
	}
	repo := New(ms)

	cands, total, err := repo.SearchText(
		context.Background(), "phong tro quan 7", false, filter.Expression{}, 10, 0, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 42 {
		t.Errorf("total = %d, want 42", total)
	}
	if len(cands) != 1 {
		t.Fatalf("got %d candidates", len(cands))
	}

	c := cands[0]
	if c.ListingID != "lst-1" || c.RoomID != "room-1" {
		t.Errorf("ids: %+v", c)
	}
	if c.Price != 4500000 || c.Area != 25 {
		t.Errorf("price=%v area=%v", c.Price, c.Area)
	}
	if c.Latitude != 10.7411 || c.Longitude != 106.7212 {
		t.Errorf("geo parsed as lat=%v lon=%v", c.Latitude, c.Longitude)
	}
	if c.CreatedAt.IsZero() {
		t.Error("created_at not parsed")
	}
	if c.TextScore != 2.5 || c.Score != 2.5 {
		t.Errorf("scores: text=%v score=%v", c.TextScore, c.Score)
	}
	if c.BuildingKey != "b:sky garden" {
		t.Errorf("building key = %q", c.BuildingKey)
	}
	if _, ok := c.Highlights[listing.FieldTitle]; !ok {
		t.Error("expected title highlight")
	}
	if _, ok := c.Highlights[listing.FieldDescription]; ok {
		t.Error("un-matched field must not appear in highlights")
	}
}

func TestSearchText_BackendErrorWrapped(t *testing.T) {
	ms := &mockStore{
		searchTextFn: func(context.Context, *db.TextQuery) (*db.SearchResult, error) {
			return nil, errors.New("connection refused")
		},
	}
	repo := New(ms)

	_, _, err := repo.SearchText(context.Background(), "x", false, filter.Expression{}, 1, 0, false)
	if !errors.Is(err, domain.ErrSearchBackend) {
		t.Errorf("expected ErrSearchBackend, got %v", err)
	}
}

func TestSearchKNN_BackendErrorWrapped(t *testing.T) {
	ms := &mockStore{
		searchKNNFn: func(context.Context, *db.KNNQuery) (*db.SearchResult, error) {
			return nil, errors.New("index missing")
		},
	}
	repo := New(ms)

	_, err := repo.SearchKNN(context.Background(), []float32{0.1}, filter.Expression{}, 5)
	if !errors.Is(err, domain.ErrSearchBackend) {
		t.Errorf("expected ErrSearchBackend, got %v", err)
	}
}

func TestBuildingKeyFallbacks(t *testing.T) {
	if got := buildingKey("Masteri Thảo Điền", "lst", "key"); got != "b:masteri thao dien" {
		t.Errorf("folded building key = %q", got)
	}
	if got := buildingKey("", "lst", "key"); got != "l:lst" {
		t.Errorf("listing fallback = %q", got)
	}
	if got := buildingKey("", "", "key"); got != "k:key" {
		t.Errorf("doc key fallback = %q", got)
	}
}

func TestParseGeoField(t *testing.T) {
	lat, lon := parseGeoField("106.6297,10.8231")
	if lat != 10.8231 || lon != 106.6297 {
		t.Errorf("lat=%v lon=%v", lat, lon)
	}
	if lat, lon := parseGeoField("garbage"); lat != 0 || lon != 0 {
		t.Error("garbage must parse to zero point")
	}
}
