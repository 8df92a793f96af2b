package domain

import "errors"

var (
	// ErrSearchBackend signals that the search index backend failed or is
	// unreachable. This is the only error class surfaced to API callers:
	// an empty result set must always mean "no matching listings".
	ErrSearchBackend = errors.New("search backend error")
	// ErrEmbeddingUnavailable signals that no query vector could be produced
	// in time. Retrieval falls back to lexical-only scoring.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrAIUnavailable signals that the AI scoring provider failed, timed out,
	// or returned output that could not be parsed.
	ErrAIUnavailable = errors.New("ai provider unavailable")
	// ErrGeocodeMiss signals that no serviceable coordinates were found for a
	// place phrase. Callers treat this as "no geo narrowing", never a failure.
	ErrGeocodeMiss = errors.New("no serviceable geocode result")
	// ErrRerankSkipped signals that the rerank stage was bypassed (gate or
	// open circuit breaker). It is a normal state, not a failure.
	ErrRerankSkipped = errors.New("rerank skipped")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput signals a malformed or incomplete request.
	ErrInvalidInput = errors.New("invalid input")
)
