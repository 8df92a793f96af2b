package rerank

import "context"

// Completer is the AI scorer behind the rerank stage.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// PopularityReader bulk-reads recent interaction counters.
type PopularityReader interface {
	RoomViews(ctx context.Context, roomIDs []string) (map[string]int64, error)
	ListingViews(ctx context.Context, listingIDs []string) (map[string]int64, error)
}
