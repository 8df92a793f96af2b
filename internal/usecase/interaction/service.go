// Package interaction records listing view events into the popularity
// counters consumed by the rerank pipeline's boost stage.
package interaction

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/timtro-cloud/timtro/internal/domain"
)

// Recorder persists a single view event.
type Recorder interface {
	RecordView(ctx context.Context, roomID, listingID, viewerID string) error
}

// Service validates and records view interactions.
type Service struct {
	rec    Recorder
	logger *zap.Logger
}

// New creates a Service.
func New(rec Recorder, logger *zap.Logger) *Service {
	return &Service{rec: rec, logger: logger}
}

// RecordView counts one view of a room. listingID and viewerID are optional.
func (s *Service) RecordView(ctx context.Context, roomID, listingID, viewerID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return fmt.Errorf("%w: room id is required", domain.ErrInvalidInput)
	}

	if err := s.rec.RecordView(ctx, roomID, strings.TrimSpace(listingID), strings.TrimSpace(viewerID)); err != nil {
		s.logger.Warn("Failed to record view",
			zap.String("room_id", roomID), zap.Error(err))
		return err
	}
	return nil
}
