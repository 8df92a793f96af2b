// Package search translates retrieval requests into index queries and parses
// raw index hits into ranking candidates.
package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/timtro-cloud/timtro/internal/db"
	"github.com/timtro-cloud/timtro/internal/domain"
	"github.com/timtro-cloud/timtro/internal/domain/listing"
	"github.com/timtro-cloud/timtro/internal/domain/search/filter"
	"github.com/timtro-cloud/timtro/internal/vntext"
)

// HighlightOpen and HighlightClose wrap matched terms in highlighted snippets.
const (
	HighlightOpen  = "<em>"
	HighlightClose = "</em>"
)

// textSearchFields are the weighted TEXT fields a free-text query matches
// against. Folded variants catch diacritic-less input.
var textSearchFields = []string{
	listing.FieldTitle,
	listing.FieldTitleFolded,
	listing.FieldDescription,
	listing.FieldDescFolded,
	listing.FieldUnitDescription,
	listing.FieldUnitDescFolded,
	listing.FieldAddress,
	listing.FieldBuildingName,
}

// highlightFields are the only fields highlighted snippets are produced for.
var highlightFields = []string{
	listing.FieldTitle,
	listing.FieldDescription,
	listing.FieldAddress,
	listing.FieldBuildingName,
}

// returnFields is everything the ranking pipeline and response builder need.
// The vector is never returned.
var returnFields = []string{
	listing.FieldListingID,
	listing.FieldRoomID,
	listing.FieldTitle,
	listing.FieldDescription,
	listing.FieldUnitDescription,
	listing.FieldCategory,
	listing.FieldPostType,
	listing.FieldFurniture,
	listing.FieldLegalStatus,
	listing.FieldPropertyType,
	listing.FieldBuildingName,
	listing.FieldDirection,
	listing.FieldPrice,
	listing.FieldDeposit,
	listing.FieldArea,
	listing.FieldBedrooms,
	listing.FieldBathrooms,
	listing.FieldFloor,
	listing.FieldAddress,
	listing.FieldCity,
	listing.FieldDistrict,
	listing.FieldWard,
	listing.FieldWardCode,
	listing.FieldGeo,
	listing.FieldAmenities,
	listing.FieldImages,
	listing.FieldCreatedAt,
}

// store is the consumer interface for index search (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// Repo implements the retrieval side of usecase/search against the listing
// index.
type Repo struct {
	store store
}

// New creates a search repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// SearchText runs a weighted BM25 query and returns parsed candidates plus
// the backend's total match count.
func (r *Repo) SearchText(
	ctx context.Context, text string, fuzzy bool,
	filters filter.Expression, topK, offset int, highlight bool,
) ([]listing.Candidate, int, error) {
	q := &db.TextQuery{
		IndexName:    domain.ListingIndexName,
		Query:        text,
		TextFields:   textSearchFields,
		Fuzzy:        fuzzy,
		Filters:      filters,
		TopK:         topK,
		Offset:       offset,
		ReturnFields: returnFields,
	}
	if highlight {
		q.HighlightFields = highlightFields
		q.HighlightTags = [2]string{HighlightOpen, HighlightClose}
	}

	sr, err := r.store.SearchText(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("text search: %w: %v", domain.ErrSearchBackend, err)
	}

	cands := make([]listing.Candidate, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		cands = append(cands, parseCandidate(e, highlight))
	}
	return cands, sr.Total, nil
}

// SearchKNN runs a filtered vector similarity scan.
func (r *Repo) SearchKNN(ctx context.Context, vector []float32, filters filter.Expression, k int) ([]listing.Candidate, error) {
	q := &db.KNNQuery{
		IndexName:    domain.ListingIndexName,
		Filters:      filters,
		Vector:       vector,
		K:            k,
		ReturnFields: returnFields,
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("knn search: %w: %v", domain.ErrSearchBackend, err)
	}

	cands := make([]listing.Candidate, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		cands = append(cands, parseCandidate(e, false))
	}
	return cands, nil
}

// parseCandidate maps a raw index hit to a ranking candidate. Unparseable
// numeric fields degrade to zero values rather than failing the whole page.
func parseCandidate(entry db.SearchEntry, highlighted bool) listing.Candidate {
	f := entry.Fields

	c := listing.Candidate{
		ID:        entry.Key,
		ListingID: f[listing.FieldListingID],
		RoomID:    f[listing.FieldRoomID],
		Score:     entry.Score,
		TextScore: entry.Score,
		Category:  f[listing.FieldCategory],
		WardCode:  f[listing.FieldWardCode],
		Fields:    f,
	}

	c.Price, _ = strconv.ParseFloat(f[listing.FieldPrice], 64)
	c.Area, _ = strconv.ParseFloat(f[listing.FieldArea], 64)
	c.Latitude, c.Longitude = parseGeoField(f[listing.FieldGeo])
	c.CreatedAt = parseEpoch(f[listing.FieldCreatedAt])
	c.BuildingKey = buildingKey(f[listing.FieldBuildingName], c.ListingID, entry.Key)

	if highlighted {
		c.Highlights = extractHighlights(f)
	}

	return c
}

// parseGeoField parses the "lon,lat" GEO field format.
func parseGeoField(s string) (lat, lon float64) {
	lonStr, latStr, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0
	}
	lon, err1 := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	lat, err2 := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err1 != nil || err2 != nil {
		return 0, 0
	}
	return lat, lon
}

func parseEpoch(s string) time.Time {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil || sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// buildingKey groups same-building candidates for diversification. Documents
// without a building name fall back to their listing id so they never group
// with each other.
func buildingKey(buildingName, listingID, docKey string) string {
	if name := vntext.NormalizeFold(buildingName); name != "" {
		return "b:" + name
	}
	if listingID != "" {
		return "l:" + listingID
	}
	return "k:" + docKey
}

// extractHighlights keeps only fields that actually contain a highlight tag.
// The index echoes un-matched fields verbatim; those are noise for the API.
func extractHighlights(fields map[string]string) map[string]string {
	var hl map[string]string
	for _, name := range highlightFields {
		v, ok := fields[name]
		if !ok || !strings.Contains(v, HighlightOpen) {
			continue
		}
		if hl == nil {
			hl = make(map[string]string, 2)
		}
		hl[name] = v
	}
	return hl
}
