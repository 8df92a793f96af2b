package chi

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/timtro-cloud/timtro/internal/domain/query"
	searchuc "github.com/timtro-cloud/timtro/internal/usecase/search"
)

// searchRequest is the POST /api/v1/search body. Filters always win over
// parser-derived values; the raw filter bytes also feed the result-cache key.
type searchRequest struct {
	Query     string          `json:"query"`
	Filters   json.RawMessage `json:"filters,omitempty"`
	Page      int             `json:"page,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Unlimited bool            `json:"unlimited,omitempty"`
	Strict    bool            `json:"strict,omitempty"`
	UserID    string          `json:"userId,omitempty"`
}

type searchFilters struct {
	PostType     string   `json:"postType,omitempty"`
	Category     string   `json:"category,omitempty"`
	MinPrice     *int64   `json:"minPrice,omitempty"`
	MaxPrice     *int64   `json:"maxPrice,omitempty"`
	MinArea      *float64 `json:"minArea,omitempty"`
	MaxArea      *float64 `json:"maxArea,omitempty"`
	MinBedrooms  *int     `json:"minBedrooms,omitempty"`
	MaxBedrooms  *int     `json:"maxBedrooms,omitempty"`
	MinBathrooms *int     `json:"minBathrooms,omitempty"`
	MaxBathrooms *int     `json:"maxBathrooms,omitempty"`

	Furniture    string `json:"furniture,omitempty"`
	LegalStatus  string `json:"legalStatus,omitempty"`
	PropertyType string `json:"propertyType,omitempty"`
	BuildingName string `json:"buildingName,omitempty"`

	Amenities        []string `json:"amenities,omitempty"`
	ExcludeAmenities []string `json:"excludeAmenities,omitempty"`
	Districts        []string `json:"districts,omitempty"`
	ExcludeDistricts []string `json:"excludeDistricts,omitempty"`

	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	RadiusMeters float64  `json:"radiusMeters,omitempty"`

	CreatedAfter *time.Time `json:"createdAfter,omitempty"`
	PriceCompare string     `json:"priceCompare,omitempty"`
}

type viewRequest struct {
	RoomID    string `json:"roomId"`
	ListingID string `json:"listingId,omitempty"`
	ViewerID  string `json:"viewerId,omitempty"`
}

func (r *searchRequest) toUsecase() (*searchuc.Request, error) {
	req := &searchuc.Request{
		RawQuery:      r.Query,
		OverridesJSON: r.Filters,
		Page:          r.Page,
		Limit:         r.Limit,
		Unlimited:     r.Unlimited,
		Strict:        r.Strict,
		UserID:        r.UserID,
	}

	if len(r.Filters) > 0 {
		var f searchFilters
		if err := json.Unmarshal(r.Filters, &f); err != nil {
			return nil, fmt.Errorf("invalid filters: %w", err)
		}
		overrides, err := f.toQuery()
		if err != nil {
			return nil, err
		}
		req.Overrides = overrides
	}
	return req, nil
}

func (f *searchFilters) toQuery() (*query.StructuredQuery, error) {
	q := &query.StructuredQuery{
		BuildingName:     f.BuildingName,
		Amenities:        f.Amenities,
		ExcludeAmenities: f.ExcludeAmenities,
		Districts:        f.Districts,
		ExcludeDistricts: f.ExcludeDistricts,
		MinCreatedAt:     f.CreatedAfter,
	}

	if f.PostType != "" {
		pt := query.PostType(f.PostType)
		if !pt.IsValid() {
			return nil, fmt.Errorf("unknown post type %q", f.PostType)
		}
		q.PostType = &pt
	}
	if f.Category != "" {
		c := query.Category(f.Category)
		if !c.IsValid() {
			return nil, fmt.Errorf("unknown category %q", f.Category)
		}
		q.Category = &c
	}
	if f.Furniture != "" {
		fu := query.Furniture(f.Furniture)
		if !fu.IsValid() {
			return nil, fmt.Errorf("unknown furniture level %q", f.Furniture)
		}
		q.Furniture = &fu
	}
	if f.LegalStatus != "" {
		ls := query.LegalStatus(f.LegalStatus)
		if !ls.IsValid() {
			return nil, fmt.Errorf("unknown legal status %q", f.LegalStatus)
		}
		q.LegalStatus = &ls
	}
	if f.PropertyType != "" {
		pt := query.PropertyType(f.PropertyType)
		if !pt.IsValid() {
			return nil, fmt.Errorf("unknown property type %q", f.PropertyType)
		}
		q.PropertyType = &pt
	}
	if f.PriceCompare != "" {
		pc := query.PriceCompare(f.PriceCompare)
		if pc != query.PriceCheaper && pc != query.PriceMoreExpensive {
			return nil, fmt.Errorf("unknown price comparison %q", f.PriceCompare)
		}
		q.PriceCompare = &pc
	}

	if f.MinPrice != nil || f.MaxPrice != nil {
		q.Price = &query.MoneyRange{Min: f.MinPrice, Max: f.MaxPrice}
	}
	if f.MinArea != nil || f.MaxArea != nil {
		q.Area = &query.FloatRange{Min: f.MinArea, Max: f.MaxArea}
	}
	if f.MinBedrooms != nil || f.MaxBedrooms != nil {
		q.Bedrooms = &query.IntRange{Min: f.MinBedrooms, Max: f.MaxBedrooms}
	}
	if f.MinBathrooms != nil || f.MaxBathrooms != nil {
		q.Bathrooms = &query.IntRange{Min: f.MinBathrooms, Max: f.MaxBathrooms}
	}

	if f.Latitude != nil && f.Longitude != nil {
		q.Latitude, q.Longitude = f.Latitude, f.Longitude
		q.RadiusMeters = f.RadiusMeters
	}

	return q, nil
}
