package geocode

import (
	"context"
	"fmt"

	geogolang "github.com/codingsince1985/geo-golang"

	"github.com/timtro-cloud/timtro/internal/domain/geo"
)

// GeoGolangProvider adapts a geo-golang Geocoder (OpenStreetMap, Google,
// HERE, ...) to the Provider contract. geo-golang returns its single best
// candidate, so the candidate list has at most one entry.
type GeoGolangProvider struct {
	inner geogolang.Geocoder
}

// NewGeoGolangProvider wraps a geo-golang geocoder.
func NewGeoGolangProvider(inner geogolang.Geocoder) *GeoGolangProvider {
	return &GeoGolangProvider{inner: inner}
}

// Geocode implements Provider. geo-golang has no context support, so the
// lookup runs in a goroutine raced against ctx; an abandoned lookup finishes
// in the background and its result is discarded.
func (p *GeoGolangProvider) Geocode(ctx context.Context, query string) ([]geo.Point, error) {
	type outcome struct {
		loc *geogolang.Location
		err error
	}
	ch := make(chan outcome, 1)

	go func() {
		loc, err := p.inner.Geocode(query)
		ch <- outcome{loc: loc, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("geocode %q: %w", query, ctx.Err())
	case out := <-ch:
		if out.err != nil {
			return nil, fmt.Errorf("geocode %q: %w", query, out.err)
		}
		if out.loc == nil {
			return nil, nil
		}
		return []geo.Point{{Latitude: out.loc.Lat, Longitude: out.loc.Lng}}, nil
	}
}
