package search

import (
	"strconv"
	"strings"

	"github.com/timtro-cloud/timtro/internal/domain/listing"
)

// slicePages cuts the final window into the requested page plus prefetch
// pages. offset is the absolute result index the window starts at: zero for
// ranked windows, the requested page's start for deep pages. limit <= 0
// means unlimited: everything in one page, no prefetch.
func slicePages(window []listing.Candidate, page, limit, prefetchPages, total, offset int) *listing.SearchResponse {
	if limit <= 0 {
		return &listing.SearchResponse{
			Page:  1,
			Limit: len(window),
			Total: total,
			Items: toSummaries(window),
		}
	}
	if page < 1 {
		page = 1
	}

	resp := &listing.SearchResponse{
		Page:  page,
		Limit: limit,
		Total: total,
		Items: toSummaries(sliceWindow(window, page, limit, offset)),
	}

	for p := page + 1; p <= page+prefetchPages; p++ {
		items := sliceWindow(window, p, limit, offset)
		if len(items) == 0 {
			break
		}
		resp.Prefetch = append(resp.Prefetch, listing.PrefetchPage{
			Page:  p,
			Items: toSummaries(items),
		})
	}
	return resp
}

func sliceWindow(window []listing.Candidate, page, limit, offset int) []listing.Candidate {
	start := (page-1)*limit - offset
	if start < 0 || start >= len(window) {
		return nil
	}
	end := start + limit
	if end > len(window) {
		end = len(window)
	}
	return window[start:end]
}

func toSummaries(cands []listing.Candidate) []listing.Summary {
	out := make([]listing.Summary, 0, len(cands))
	for i := range cands {
		out = append(out, toSummary(&cands[i]))
	}
	return out
}

// toSummary maps a candidate's raw index fields into the API item shape.
func toSummary(c *listing.Candidate) listing.Summary {
	f := c.Fields

	s := listing.Summary{
		ID:           c.ID,
		Score:        c.Score,
		ListingID:    c.ListingID,
		RoomID:       c.RoomID,
		Title:        f[listing.FieldTitle],
		Description:  f[listing.FieldDescription],
		Category:     c.Category,
		Type:         f[listing.FieldPostType],
		Price:        int64(c.Price),
		Area:         c.Area,
		Latitude:     c.Latitude,
		Longitude:    c.Longitude,
		CreatedAt:    c.CreatedAt,
		Furniture:    f[listing.FieldFurniture],
		LegalStatus:  f[listing.FieldLegalStatus],
		PropertyType: f[listing.FieldPropertyType],
		BuildingName: f[listing.FieldBuildingName],
		Direction:    f[listing.FieldDirection],
		Highlights:   c.Highlights,
		Address: listing.AddressBlock{
			Full:     f[listing.FieldAddress],
			City:     f[listing.FieldCity],
			District: f[listing.FieldDistrict],
			Ward:     f[listing.FieldWard],
			WardCode: c.WardCode,
		},
	}

	s.Bedrooms = atoiField(f[listing.FieldBedrooms])
	s.Bathrooms = atoiField(f[listing.FieldBathrooms])
	s.Floor = atoiField(f[listing.FieldFloor])
	if d, err := strconv.ParseFloat(f[listing.FieldDeposit], 64); err == nil {
		s.Deposit = int64(d)
	}
	if imgs := f[listing.FieldImages]; imgs != "" {
		s.Images = strings.Split(imgs, ",")
	}
	return s
}

func atoiField(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
