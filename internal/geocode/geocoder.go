// Package geocode resolves point-of-interest phrases ("IUH", "chợ Bến
// Thành") to coordinates through an external geocoding provider, validated
// against the serviceable metro area and cached by query string. Misses and
// provider failures are swallowed: the caller gets "no geo narrowing", never
// an error.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/timtro-cloud/timtro/internal/db"
	"github.com/timtro-cloud/timtro/internal/domain"
	"github.com/timtro-cloud/timtro/internal/domain/geo"
	"github.com/timtro-cloud/timtro/internal/vntext"
)

var cacheKeyPrefix = domain.KeyPrefix + "geocode:"

// DefaultCityHint anchors ambiguous place names to the primary metro area.
const DefaultCityHint = "Hồ Chí Minh, Việt Nam"

// Provider returns ranked candidate coordinates for a free-text place query.
type Provider interface {
	Geocode(ctx context.Context, query string) ([]geo.Point, error)
}

// cacheStore is the consumer interface for the geocode cache (ISP).
type cacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Geocoder caches provider lookups and rejects results outside the service
// area rather than returning a wrong-city location.
type Geocoder struct {
	provider   Provider
	cache      cacheStore
	box        geo.BoundingBox
	ttl        time.Duration
	timeout    time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// Config holds geocoder settings.
type Config struct {
	ServiceArea geo.BoundingBox
	CacheTTL    time.Duration
	Timeout     time.Duration
}

// New creates a geocoder. cacheTotal is a counter vec with label "result"
// ("hit"/"miss"), passed explicitly.
func New(p Provider, cache cacheStore, cfg Config, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Geocoder {
	box := cfg.ServiceArea
	if box.IsZero() {
		box = geo.HoChiMinhCityBox
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Geocoder{
		provider:   p,
		cache:      cache,
		box:        box,
		ttl:        ttl,
		timeout:    timeout,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Geocode resolves a POI phrase to coordinates inside the service area.
// Returns ok=false on any miss, provider failure, or timeout.
func (g *Geocoder) Geocode(ctx context.Context, poi, cityHint string) (geo.Point, bool) {
	if poi == "" {
		return geo.Point{}, false
	}
	if cityHint == "" {
		cityHint = DefaultCityHint
	}
	query := fmt.Sprintf("%s, %s", poi, cityHint)
	key := cacheKeyPrefix + vntext.Normalize(query)

	if pt, ok := g.fromCache(ctx, key); ok {
		g.incCache("hit")
		return pt, true
	}
	g.incCache("miss")

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	candidates, err := g.provider.Geocode(ctx, query)
	if err != nil {
		g.logger.Debug("Geocode provider failed", zap.String("query", query), zap.Error(err))
		return geo.Point{}, false
	}

	// Take the first candidate inside the box; reject the rest silently.
	for _, c := range candidates {
		if !geo.ValidateCoordinates(c.Latitude, c.Longitude) {
			continue
		}
		if g.box.Contains(c.Latitude, c.Longitude) {
			g.toCache(ctx, key, c)
			return c, true
		}
	}

	g.logger.Debug("No serviceable geocode candidate",
		zap.String("query", query), zap.Int("candidates", len(candidates)))
	return geo.Point{}, false
}

func (g *Geocoder) fromCache(ctx context.Context, key string) (geo.Point, bool) {
	data, err := g.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			g.logger.Warn("Failed to read geocode cache", zap.String("key", key), zap.Error(err))
		}
		return geo.Point{}, false
	}

	var pt geo.Point
	if err := json.Unmarshal(data, &pt); err != nil {
		g.logger.Warn("Failed to parse cached geocode", zap.String("key", key), zap.Error(err))
		return geo.Point{}, false
	}
	return pt, true
}

func (g *Geocoder) toCache(ctx context.Context, key string, pt geo.Point) {
	data, err := json.Marshal(pt)
	if err != nil {
		return
	}
	if err := g.cache.SetWithTTL(ctx, key, data, g.ttl); err != nil {
		g.logger.Warn("Failed to cache geocode", zap.String("key", key), zap.Error(err))
	}
}

func (g *Geocoder) incCache(result string) {
	if g.cacheTotal != nil {
		g.cacheTotal.WithLabelValues(result).Inc()
	}
}
