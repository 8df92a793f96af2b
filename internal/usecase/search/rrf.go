package search

import (
	"github.com/timtro-cloud/timtro/internal/domain/listing"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// fuseRRF merges the lexical and vector rankings via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) for each ranking where d appears.
// When a document appears in both lists, the lexical entry is kept (it
// carries the highlights and the BM25 text score used for tie-breaking).
func fuseRRF(lexical, knn []listing.Candidate, topK int) []listing.Candidate {
	type scored struct {
		cand  listing.Candidate
		score float64
	}

	merged := make(map[string]*scored, len(lexical)+len(knn))

	for rank, c := range lexical {
		merged[c.ID] = &scored{cand: c, score: 1.0 / float64(rrfK+rank+1)}
	}

	for rank, c := range knn {
		s := 1.0 / float64(rrfK+rank+1)
		if existing, ok := merged[c.ID]; ok {
			existing.score += s
		} else {
			c.TextScore = 0
			merged[c.ID] = &scored{cand: c, score: s}
		}
	}

	out := make([]listing.Candidate, 0, len(merged))
	for _, s := range merged {
		s.cand.Score = s.score
		out = append(out, s.cand)
	}

	sortCandidates(out)

	if len(out) > topK {
		out = out[:topK]
	}
	return out
}
