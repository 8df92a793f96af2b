package search

import (
	"context"

	"github.com/timtro-cloud/timtro/internal/domain"
	"github.com/timtro-cloud/timtro/internal/domain/listing"
	"github.com/timtro-cloud/timtro/internal/domain/query"
	"github.com/timtro-cloud/timtro/internal/domain/search/filter"
)

// Repository defines the index retrieval contract.
type Repository interface {
	SearchText(
		ctx context.Context, text string, fuzzy bool,
		filters filter.Expression, topK, offset int, highlight bool,
	) ([]listing.Candidate, int, error)

	SearchKNN(
		ctx context.Context, vector []float32,
		filters filter.Expression, k int,
	) ([]listing.Candidate, error)
}

// Parser turns raw text into a structured query; it never fails.
type Parser interface {
	Parse(ctx context.Context, raw string) *query.StructuredQuery
}

// Embedder vectorizes query text for the semantic arm.
type Embedder interface {
	Embed(ctx context.Context, text string, kind domain.EmbedKind) ([]float32, error)
}

// LocationResolver expands district and ward mentions into location codes.
type LocationResolver interface {
	ExpandDistrictToLocationCodes(name string) ([]string, bool)
	ResolveWardByName(name string) (string, bool)
	SiblingCodesInSameDistrict(codeOrName string) ([]string, bool)
}

// Reranker is the post-retrieval pipeline (AI rerank, popularity boost,
// diversification). It must always return a usable window.
type Reranker interface {
	Process(ctx context.Context, q *query.StructuredQuery, window []listing.Candidate, pageSize int) []listing.Candidate
}

// ResultCache short-circuits identical requests.
type ResultCache interface {
	Key(rawQuery string, overrides []byte, page, limit int, strict bool) string
	Get(ctx context.Context, key string) (*listing.SearchResponse, bool)
	Put(ctx context.Context, key string, resp *listing.SearchResponse)
}
