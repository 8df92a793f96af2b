package db

import "github.com/timtro-cloud/timtro/internal/domain/search/filter"

// KNNQuery is the input for vector similarity search. Filters act as a
// pre-filter: only matching documents enter the KNN scan.
type KNNQuery struct {
	IndexName    string
	Filters      filter.Expression
	Vector       []float32
	K            int
	ReturnFields []string
}

// TextQuery is the input for weighted multi-field BM25 text search.
type TextQuery struct {
	IndexName string
	// Query is the free text; it is tokenized and escaped by the store.
	Query string
	// TextFields are the text field names the query matches against.
	// Per-field weighting is defined at index-creation time.
	TextFields []string
	// Fuzzy enables per-token fuzzy matching (edit distance 1).
	Fuzzy   bool
	Filters filter.Expression
	TopK    int
	Offset  int

	ReturnFields []string
	// HighlightFields, when non-empty, requests highlighted snippets for the
	// named fields, wrapped in HighlightTags.
	HighlightFields []string
	HighlightTags   [2]string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
