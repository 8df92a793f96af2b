// Package resultcache holds finished search responses for a short window so
// identical follow-up requests (pagination back-and-forth, double submits)
// skip the whole retrieval pipeline.
package resultcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/timtro-cloud/timtro/internal/db"
	"github.com/timtro-cloud/timtro/internal/domain"
	"github.com/timtro-cloud/timtro/internal/domain/listing"
	"github.com/timtro-cloud/timtro/internal/vntext"
)

var cacheKeyPrefix = domain.KeyPrefix + "result_cache:"

// DefaultTTL keeps entries short-lived: new listings must surface quickly.
const DefaultTTL = 60 * time.Second

// store is the consumer interface for the result cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache stores serialized search responses keyed by the request fingerprint.
type Cache struct {
	store  store
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a result cache.
func New(s store, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: s, ttl: ttl, logger: logger}
}

// Key fingerprints a request. rawQuery is normalized first so trivial
// variants share an entry; overrides is the canonical JSON of any structured
// filter overrides the client sent alongside the text. strict changes the
// result set (relaxation off), so it is part of the fingerprint.
func Key(rawQuery string, overrides []byte, page, limit int, strict bool) string {
	h := sha256.New()
	h.Write([]byte(vntext.NormalizeFold(rawQuery)))
	h.Write([]byte{0})
	h.Write(overrides)
	strictByte := byte(0)
	if strict {
		strictByte = 1
	}
	h.Write([]byte{0, byte(page >> 8), byte(page), byte(limit), strictByte})
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Key is the method form of the package-level fingerprint, satisfying the
// usecase cache contract.
func (c *Cache) Key(rawQuery string, overrides []byte, page, limit int, strict bool) string {
	return Key(rawQuery, overrides, page, limit, strict)
}

// Get returns a cached response, or ok=false on miss or any cache error.
func (c *Cache) Get(ctx context.Context, key string) (*listing.SearchResponse, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to read result cache", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var resp listing.SearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.Warn("Failed to parse cached result", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &resp, true
}

// Put stores a response; failures are logged and swallowed.
func (c *Cache) Put(ctx context.Context, key string, resp *listing.SearchResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to write result cache", zap.String("key", key), zap.Error(err))
	}
}
