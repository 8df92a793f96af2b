// Package query defines the structured search query produced by the natural
// language parser and consumed by the retrieval engine. Every field except the
// raw text is optional: an absent field means the parser could not confidently
// extract it, and absence is represented by nil, never by a zero value (zero
// is a valid price and area boundary).
package query

import "time"

// PostType distinguishes regular rental posts from roommate-seeking posts.
type PostType string

// Post types.
const (
	PostTypeRent     PostType = "rent"
	PostTypeRoommate PostType = "roommate"
)

// IsValid reports whether p is a known post type.
func (p PostType) IsValid() bool {
	return p == PostTypeRent || p == PostTypeRoommate
}

// Category is the listing category, a closed enum.
type Category string

// Listing categories.
const (
	CategoryPhongTro     Category = "phong-tro"
	CategoryChungCu      Category = "chung-cu"
	CategoryNhaNguyenCan Category = "nha-nguyen-can"
	CategoryCanHoDichVu  Category = "can-ho-dich-vu"
	CategoryMatBang      Category = "mat-bang"
)

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	switch c {
	case CategoryPhongTro, CategoryChungCu, CategoryNhaNguyenCan,
		CategoryCanHoDichVu, CategoryMatBang:
		return true
	}
	return false
}

// Furniture is the furnishing level of a unit.
type Furniture string

// Furnishing levels.
const (
	FurnitureFull  Furniture = "full"
	FurnitureBasic Furniture = "basic"
	FurnitureNone  Furniture = "none"
)

// IsValid reports whether f is a known furnishing level.
func (f Furniture) IsValid() bool {
	return f == FurnitureFull || f == FurnitureBasic || f == FurnitureNone
}

// LegalStatus is the documented legal standing of a listing.
type LegalStatus string

// Legal statuses.
const (
	LegalSoHong        LegalStatus = "so-hong"
	LegalHopDongCongChung LegalStatus = "hop-dong-cong-chung"
)

// IsValid reports whether l is a known legal status.
func (l LegalStatus) IsValid() bool {
	return l == LegalSoHong || l == LegalHopDongCongChung
}

// PropertyType is the physical unit type.
type PropertyType string

// Property types.
const (
	PropertyStudio    PropertyType = "studio"
	PropertyDuplex    PropertyType = "duplex"
	PropertyPenthouse PropertyType = "penthouse"
)

// IsValid reports whether t is a known property type.
func (t PropertyType) IsValid() bool {
	return t == PropertyStudio || t == PropertyDuplex || t == PropertyPenthouse
}

// PriceCompare is a qualitative price direction hint ("giá rẻ", "cao cấp").
type PriceCompare string

// Price comparison hints.
const (
	PriceCheaper       PriceCompare = "cheaper"
	PriceMoreExpensive PriceCompare = "more_expensive"
)

// MoneyRange is an inclusive price range in minor currency units (VND).
type MoneyRange struct {
	Min *int64
	Max *int64
}

// FloatRange is an inclusive numeric range (area in m2).
type FloatRange struct {
	Min *float64
	Max *float64
}

// IntRange is an inclusive integer range (bedroom/bathroom counts).
type IntRange struct {
	Min *int
	Max *int
}

// StructuredQuery is the parser output consumed by retrieval.
//
// Invariant: ranges always satisfy min <= max after heuristic widening;
// Normalize enforces this by swapping inverted bounds.
type StructuredQuery struct {
	Raw        string
	Normalized string

	PostType     *PostType
	Category     *Category
	Price        *MoneyRange
	Area         *FloatRange
	Bedrooms     *IntRange
	Bathrooms    *IntRange
	Furniture    *Furniture
	LegalStatus  *LegalStatus
	PropertyType *PropertyType
	BuildingName string

	Amenities        []string
	ExcludeAmenities []string
	Districts        []string
	ExcludeDistricts []string
	POIKeywords      []string

	Latitude     *float64
	Longitude    *float64
	RadiusMeters float64

	MinCreatedAt *time.Time
	PriceCompare *PriceCompare
}

// HasGeo reports whether the query carries a usable proximity anchor.
func (q *StructuredQuery) HasGeo() bool {
	return q.Latitude != nil && q.Longitude != nil && q.RadiusMeters > 0
}

// Normalize enforces the min<=max invariant on all ranges, swapping inverted
// bounds in place.
func (q *StructuredQuery) Normalize() {
	if q.Price != nil && q.Price.Min != nil && q.Price.Max != nil && *q.Price.Min > *q.Price.Max {
		q.Price.Min, q.Price.Max = q.Price.Max, q.Price.Min
	}
	if q.Area != nil && q.Area.Min != nil && q.Area.Max != nil && *q.Area.Min > *q.Area.Max {
		q.Area.Min, q.Area.Max = q.Area.Max, q.Area.Min
	}
	if q.Bedrooms != nil && q.Bedrooms.Min != nil && q.Bedrooms.Max != nil && *q.Bedrooms.Min > *q.Bedrooms.Max {
		q.Bedrooms.Min, q.Bedrooms.Max = q.Bedrooms.Max, q.Bedrooms.Min
	}
	if q.Bathrooms != nil && q.Bathrooms.Min != nil && q.Bathrooms.Max != nil && *q.Bathrooms.Min > *q.Bathrooms.Max {
		q.Bathrooms.Min, q.Bathrooms.Max = q.Bathrooms.Max, q.Bathrooms.Min
	}
}

// Merge overlays explicit user-selected overrides on top of parser-derived
// values. Override fields always win: NLP guesses never silently replace a
// filter the user picked by hand.
func (q *StructuredQuery) Merge(o *StructuredQuery) {
	if o == nil {
		return
	}
	if o.PostType != nil {
		q.PostType = o.PostType
	}
	if o.Category != nil {
		q.Category = o.Category
	}
	if o.Price != nil {
		q.Price = o.Price
	}
	if o.Area != nil {
		q.Area = o.Area
	}
	if o.Bedrooms != nil {
		q.Bedrooms = o.Bedrooms
	}
	if o.Bathrooms != nil {
		q.Bathrooms = o.Bathrooms
	}
	if o.Furniture != nil {
		q.Furniture = o.Furniture
	}
	if o.LegalStatus != nil {
		q.LegalStatus = o.LegalStatus
	}
	if o.PropertyType != nil {
		q.PropertyType = o.PropertyType
	}
	if o.BuildingName != "" {
		q.BuildingName = o.BuildingName
	}
	if len(o.Amenities) > 0 {
		q.Amenities = o.Amenities
	}
	if len(o.ExcludeAmenities) > 0 {
		q.ExcludeAmenities = o.ExcludeAmenities
	}
	if len(o.Districts) > 0 {
		q.Districts = o.Districts
	}
	if len(o.POIKeywords) > 0 {
		q.POIKeywords = o.POIKeywords
	}
	if len(o.ExcludeDistricts) > 0 {
		q.ExcludeDistricts = o.ExcludeDistricts
	}
	if o.Latitude != nil && o.Longitude != nil {
		q.Latitude, q.Longitude = o.Latitude, o.Longitude
		if o.RadiusMeters > 0 {
			q.RadiusMeters = o.RadiusMeters
		}
	}
	if o.MinCreatedAt != nil {
		q.MinCreatedAt = o.MinCreatedAt
	}
	if o.PriceCompare != nil {
		q.PriceCompare = o.PriceCompare
	}
}

// WidenMoney builds a symmetric range around a stated point value. Users
// rarely mean an exact number, so a single extracted price never becomes an
// exact-match filter.
func WidenMoney(v int64, tolerance float64) *MoneyRange {
	delta := int64(float64(v) * tolerance)
	lo, hi := v-delta, v+delta
	return &MoneyRange{Min: &lo, Max: &hi}
}

// WidenFloat builds a symmetric range around a stated point value.
func WidenFloat(v, tolerance float64) *FloatRange {
	lo, hi := v*(1-tolerance), v*(1+tolerance)
	return &FloatRange{Min: &lo, Max: &hi}
}
