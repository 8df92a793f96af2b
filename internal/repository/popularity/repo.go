// Package popularity reads and updates per-room and per-listing view
// counters plus the capped per-room interaction log.
package popularity

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/timtro-cloud/timtro/internal/domain"
)

// viewLogCap bounds the per-room interaction log; one entry per recorded
// view, newest first.
const viewLogCap = 200

// viewLogTTL expires idle interaction logs.
const viewLogTTL = 30 * 24 * time.Hour

// store is the consumer interface for popularity counters (ISP).
type store interface {
	HMGet(ctx context.Context, key string, fields ...string) ([]string, error)
	HIncrBy(ctx context.Context, key, field string, delta int64) error
	LPush(ctx context.Context, key string, values ...string) error
	LTrim(ctx context.Context, key string, start, stop int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Repo implements the popularity side of the rerank pipeline.
type Repo struct {
	store  store
	logger *zap.Logger
}

// New creates a popularity repository.
func New(s store, logger *zap.Logger) *Repo {
	return &Repo{store: s, logger: logger}
}

// RoomViews bulk-fetches view counts for the given room ids. Missing rooms
// map to zero. Order of the result matches the input.
func (r *Repo) RoomViews(ctx context.Context, roomIDs []string) (map[string]int64, error) {
	return r.views(ctx, domain.PopularityRoomKey, roomIDs)
}

// ListingViews bulk-fetches view counts for the given listing ids.
func (r *Repo) ListingViews(ctx context.Context, listingIDs []string) (map[string]int64, error) {
	return r.views(ctx, domain.PopularityListingKey, listingIDs)
}

func (r *Repo) views(ctx context.Context, key string, ids []string) (map[string]int64, error) {
	if len(ids) == 0 {
		return map[string]int64{}, nil
	}

	vals, err := r.store.HMGet(ctx, key, ids...)
	if err != nil {
		return nil, fmt.Errorf("fetch view counts: %w", err)
	}

	out := make(map[string]int64, len(ids))
	for i, id := range ids {
		if i >= len(vals) || vals[i] == "" {
			out[id] = 0
			continue
		}
		n, err := strconv.ParseInt(vals[i], 10, 64)
		if err != nil {
			r.logger.Warn("Malformed view counter",
				zap.String("key", key), zap.String("field", id), zap.String("value", vals[i]))
			n = 0
		}
		out[id] = n
	}
	return out, nil
}

// RecordView increments the room and listing counters and appends to the
// room's capped interaction log. Counter errors fail the call; log trimming
// errors are logged and swallowed since the counters already advanced.
func (r *Repo) RecordView(ctx context.Context, roomID, listingID, viewerID string) error {
	if roomID == "" {
		return fmt.Errorf("record view: empty room id")
	}

	if err := r.store.HIncrBy(ctx, domain.PopularityRoomKey, roomID, 1); err != nil {
		return fmt.Errorf("increment room views: %w", err)
	}
	if listingID != "" {
		if err := r.store.HIncrBy(ctx, domain.PopularityListingKey, listingID, 1); err != nil {
			return fmt.Errorf("increment listing views: %w", err)
		}
	}

	logKey := domain.ViewLogKey(roomID)
	entry := fmt.Sprintf("%d|%s", time.Now().Unix(), viewerID)
	if err := r.store.LPush(ctx, logKey, entry); err != nil {
		r.logger.Warn("Failed to append view log", zap.String("key", logKey), zap.Error(err))
		return nil
	}
	if err := r.store.LTrim(ctx, logKey, 0, viewLogCap-1); err != nil {
		r.logger.Warn("Failed to trim view log", zap.String("key", logKey), zap.Error(err))
	}
	if err := r.store.Expire(ctx, logKey, viewLogTTL, false); err != nil {
		r.logger.Warn("Failed to refresh view log TTL", zap.String("key", logKey), zap.Error(err))
	}
	return nil
}
