package geocode

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/timtro-cloud/timtro/internal/db"
	"github.com/timtro-cloud/timtro/internal/domain/geo"
)

// --- Mocks ---

type mockProvider struct {
	candidates []geo.Point
	err        error
	calls      int
}

func (m *mockProvider) Geocode(_ context.Context, _ string) ([]geo.Point, error) {
	m.calls++
	return m.candidates, m.err
}

type mockCache struct {
	data map[string][]byte
	sets int
}

func newMockCache() *mockCache {
	return &mockCache{data: map[string][]byte{}}
}

func (m *mockCache) Get(_ context.Context, key string) ([]byte, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockCache) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	m.sets++
	return nil
}

func newGeocoder(p Provider, c cacheStore) *Geocoder {
	return New(p, c, Config{}, nil, zap.NewNop())
}

// --- Tests ---

func TestGeocode_InsideBoxIsAcceptedAndCached(t *testing.T) {
	inside := geo.Point{Latitude: 10.78, Longitude: 106.68}
	prov := &mockProvider{candidates: []geo.Point{inside}}
	cache := newMockCache()
	g := newGeocoder(prov, cache)

	pt, ok := g.Geocode(context.Background(), "chợ Bến Thành", "")
	if !ok {
		t.Fatal("expected hit")
	}
	if pt != inside {
		t.Errorf("got %+v, want %+v", pt, inside)
	}
	if cache.sets != 1 {
		t.Errorf("expected result cached once, got %d sets", cache.sets)
	}

	// Second call must come from cache.
	if _, ok := g.Geocode(context.Background(), "chợ Bến Thành", ""); !ok {
		t.Fatal("expected cached hit")
	}
	if prov.calls != 1 {
		t.Errorf("provider called %d times, want 1", prov.calls)
	}
}

func TestGeocode_OutsideBoxNeverReturned(t *testing.T) {
	hanoi := geo.Point{Latitude: 21.02, Longitude: 105.85}
	prov := &mockProvider{candidates: []geo.Point{hanoi}}
	g := newGeocoder(prov, newMockCache())

	if _, ok := g.Geocode(context.Background(), "hồ Gươm", ""); ok {
		t.Error("coordinates outside the service box must be rejected")
	}
}

func TestGeocode_SkipsToFirstServiceableCandidate(t *testing.T) {
	hanoi := geo.Point{Latitude: 21.02, Longitude: 105.85}
	hcmc := geo.Point{Latitude: 10.85, Longitude: 106.77}
	prov := &mockProvider{candidates: []geo.Point{hanoi, hcmc}}
	g := newGeocoder(prov, newMockCache())

	pt, ok := g.Geocode(context.Background(), "đại học bách khoa", "")
	if !ok {
		t.Fatal("expected hit on second candidate")
	}
	if pt != hcmc {
		t.Errorf("got %+v, want %+v", pt, hcmc)
	}
}

func TestGeocode_ProviderErrorSwallowed(t *testing.T) {
	prov := &mockProvider{err: errors.New("upstream down")}
	g := newGeocoder(prov, newMockCache())

	if _, ok := g.Geocode(context.Background(), "IUH", ""); ok {
		t.Error("provider errors must surface as a miss, not a result")
	}
}

func TestGeocode_EmptyPhrase(t *testing.T) {
	prov := &mockProvider{}
	g := newGeocoder(prov, newMockCache())

	if _, ok := g.Geocode(context.Background(), "", ""); ok {
		t.Error("empty phrase must miss")
	}
	if prov.calls != 0 {
		t.Error("provider must not be called for empty phrase")
	}
}
