package search

import (
	"math"
	"sort"
	"time"

	"github.com/timtro-cloud/timtro/internal/domain/geo"
	"github.com/timtro-cloud/timtro/internal/domain/listing"
	"github.com/timtro-cloud/timtro/internal/domain/query"
)

// relatedCategory maps each category to its nearest substitute, used for the
// tier-C boost: a serviced apartment is an acceptable answer to a room-rental
// query, and so on.
var relatedCategory = map[query.Category]query.Category{
	query.CategoryPhongTro:     query.CategoryCanHoDichVu,
	query.CategoryCanHoDichVu:  query.CategoryPhongTro,
	query.CategoryChungCu:      query.CategoryCanHoDichVu,
	query.CategoryNhaNguyenCan: query.CategoryPhongTro,
	query.CategoryMatBang:      query.CategoryNhaNguyenCan,
}

// Weights are the additive scoring weights. The tier weights must satisfy
// A-B, B-C, and C-0 gaps each larger than TextWeight+Proximity+Recency+
// PriceHint combined, so a better tier always outranks a worse one whatever
// the continuous signals say.
type Weights struct {
	TierA     float64
	TierB     float64
	TierC     float64
	Text      float64
	Proximity float64
	Recency   float64
	PriceHint float64

	// ProximityScaleMeters and RecencyScaleDays set the exponential decay
	// half-widths of the two continuous boosts.
	ProximityScaleMeters float64
	RecencyScaleDays     float64
}

// ApplyDefaults fills unset weights with the tuned defaults.
func (w *Weights) ApplyDefaults() {
	if w.TierA <= 0 {
		w.TierA = 4.0
	}
	if w.TierB <= 0 {
		w.TierB = 2.5
	}
	if w.TierC <= 0 {
		w.TierC = 1.2
	}
	if w.Text <= 0 {
		w.Text = 0.5
	}
	if w.Proximity <= 0 {
		w.Proximity = 0.25
	}
	if w.Recency <= 0 {
		w.Recency = 0.15
	}
	if w.PriceHint <= 0 {
		w.PriceHint = 0.05
	}
	if w.ProximityScaleMeters <= 0 {
		w.ProximityScaleMeters = 2000
	}
	if w.RecencyScaleDays <= 0 {
		w.RecencyScaleDays = 14
	}
}

// scoreWindow recomputes every candidate's Score as the additive combination
// of normalized retrieval relevance, the categorical tier boost, and the
// continuous proximity/recency/price boosts, then sorts deterministically.
func scoreWindow(cands []listing.Candidate, q *query.StructuredQuery, locs locationSet, w Weights, now time.Time) {
	if len(cands) == 0 {
		return
	}

	exact := toSet(locs.exact)
	expanded := toSet(locs.expanded)

	maxBase := 0.0
	maxPrice := 0.0
	for i := range cands {
		if cands[i].Score > maxBase {
			maxBase = cands[i].Score
		}
		if cands[i].Price > maxPrice {
			maxPrice = cands[i].Price
		}
	}

	for i := range cands {
		c := &cands[i]

		score := 0.0
		if maxBase > 0 {
			score += w.Text * (c.Score / maxBase)
		}
		score += tierBoost(c, q, exact, expanded, w)

		if q.HasGeo() && c.Latitude != 0 && c.Longitude != 0 {
			dist := geo.Haversine(*q.Latitude, *q.Longitude, c.Latitude, c.Longitude)
			score += w.Proximity * math.Exp(-dist/w.ProximityScaleMeters)
		}
		if !c.CreatedAt.IsZero() {
			ageDays := now.Sub(c.CreatedAt).Hours() / 24
			if ageDays < 0 {
				ageDays = 0
			}
			score += w.Recency * math.Exp(-ageDays/w.RecencyScaleDays)
		}
		score += priceHintBoost(c, q, maxPrice, w)

		c.Score = score
	}

	sortCandidates(cands)
}

// tierBoost implements the A > B > C ladder:
// A - requested category and exact location code,
// B - requested category and a sibling code in the same district,
// C - the related category on an exact code.
func tierBoost(c *listing.Candidate, q *query.StructuredQuery, exact, expanded map[string]bool, w Weights) float64 {
	if q.Category == nil || len(exact) == 0 {
		return 0
	}
	switch {
	case c.Category == string(*q.Category) && exact[c.WardCode]:
		return w.TierA
	case c.Category == string(*q.Category) && expanded[c.WardCode]:
		return w.TierB
	case c.Category == string(relatedCategory[*q.Category]) && exact[c.WardCode]:
		return w.TierC
	}
	return 0
}

// priceHintBoost nudges ordering when the user asked for "cheaper" or "more
// expensive" without giving a number.
func priceHintBoost(c *listing.Candidate, q *query.StructuredQuery, maxPrice float64, w Weights) float64 {
	if q.PriceCompare == nil || maxPrice <= 0 || c.Price <= 0 {
		return 0
	}
	rel := c.Price / maxPrice
	if *q.PriceCompare == query.PriceCheaper {
		return w.PriceHint * (1 - rel)
	}
	return w.PriceHint * rel
}

// sortCandidates orders by score descending with a fixed tie-break: text
// relevance, then recency, then id. The id step makes ordering fully
// deterministic so identical searches return identical pages.
func sortCandidates(cands []listing.Candidate) {
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.TextScore != b.TextScore {
			return a.TextScore > b.TextScore
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, s := range items {
		m[s] = true
	}
	return m
}
