package domain

import "context"

// EmbedKind distinguishes query-time embeddings from document embeddings.
// Only query embeddings are cached here; document embeddings are produced at
// index-build time by the ETL.
type EmbedKind string

// Embedding kinds.
const (
	EmbedQuery    EmbedKind = "query"
	EmbedDocument EmbedKind = "document"
)

// Embedder is the shared text vectorization contract between layers. An
// error (including a timeout) means "vector search unavailable for this
// call"; retrieval must degrade to lexical-only scoring, never block.
type Embedder interface {
	Embed(ctx context.Context, text string, kind EmbedKind) ([]float32, error)
}

// HealthChecker verifies external provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
