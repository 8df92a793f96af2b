// Package listing defines the index-side document schema and the API-facing
// result shapes for rental listings. Index documents are produced by an
// external ETL; this core only reads them.
package listing

import "time"

// Flat hash field names of an indexed listing document. Text fields exist in
// two normalization variants: diacritic-preserving and diacritic-folded (the
// folded variant additionally carries prefix n-grams for typo-tolerant
// matching).
const (
	FieldListingID = "listing_id"
	FieldRoomID    = "room_id"

	FieldTitle           = "title"
	FieldTitleFolded     = "title_folded"
	FieldDescription     = "description"
	FieldDescFolded      = "description_folded"
	FieldUnitDescription = "unit_description"
	FieldUnitDescFolded  = "unit_description_folded"

	FieldCategory     = "category"
	FieldPostType     = "post_type"
	FieldStatus       = "status"
	FieldIsActive     = "is_active"
	FieldFurniture    = "furniture"
	FieldLegalStatus  = "legal_status"
	FieldPropertyType = "property_type"
	FieldBuildingName = "building_name"
	FieldDirection    = "direction"

	FieldPrice     = "price"
	FieldDeposit   = "deposit"
	FieldArea      = "area"
	FieldBedrooms  = "bedrooms"
	FieldBathrooms = "bathrooms"
	FieldFloor     = "floor"

	FieldAddress      = "address"
	FieldCity         = "city"
	FieldDistrict     = "district"
	FieldWard         = "ward"
	FieldProvinceCode = "province_code"
	FieldWardCode     = "ward_code"
	FieldGeo          = "geo"

	FieldAmenities = "amenities"
	FieldImages    = "images"
	FieldCreatedAt = "created_at"
	FieldVector    = "vector"
)

// StatusActive is the only document status eligible for retrieval. Every
// search phase filters on it unconditionally.
const StatusActive = "active"

// Candidate is a retrieved document inside the ranking pipeline. It is
// created from an index hit, mutated in place by the rerank/boost/diversify
// stages, and discarded once the response is built.
type Candidate struct {
	ID        string
	ListingID string
	RoomID    string

	Score     float64 // current pipeline score (fused, then boosted)
	TextScore float64 // lexical relevance as returned by the index
	AIScore   *float64

	Category  string
	WardCode  string
	Price     float64
	Area      float64
	Latitude  float64
	Longitude float64
	CreatedAt time.Time

	// BuildingKey groups candidates for the per-building diversity cap.
	// Falls back to the listing id when the document has no building name.
	BuildingKey string

	Fields     map[string]string
	Highlights map[string]string
}

// Summary is the API item shape for a single listing result.
type Summary struct {
	ID           string            `json:"id"`
	Score        float64           `json:"score"`
	ListingID    string            `json:"listingId"`
	RoomID       string            `json:"roomId"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Category     string            `json:"category"`
	Type         string            `json:"type"`
	Price        int64             `json:"price"`
	Area         float64           `json:"area"`
	Address      AddressBlock      `json:"address"`
	Images       []string          `json:"images,omitempty"`
	Latitude     float64           `json:"latitude"`
	Longitude    float64           `json:"longitude"`
	CreatedAt    time.Time         `json:"createdAt"`
	Bedrooms     int               `json:"bedrooms,omitempty"`
	Bathrooms    int               `json:"bathrooms,omitempty"`
	Furniture    string            `json:"furniture,omitempty"`
	LegalStatus  string            `json:"legalStatus,omitempty"`
	PropertyType string            `json:"propertyType,omitempty"`
	BuildingName string            `json:"buildingName,omitempty"`
	Floor        int               `json:"floor,omitempty"`
	Direction    string            `json:"direction,omitempty"`
	Deposit      int64             `json:"deposit,omitempty"`
	Highlights   map[string]string `json:"highlights,omitempty"`
}

// AddressBlock is the denormalized address of a listing.
type AddressBlock struct {
	Full     string `json:"full"`
	City     string `json:"city"`
	District string `json:"district"`
	Ward     string `json:"ward"`
	WardCode string `json:"wardCode,omitempty"`
}

// PrefetchPage is one pre-sliced follow-up page of results.
type PrefetchPage struct {
	Page  int       `json:"page"`
	Items []Summary `json:"items"`
}

// SearchResponse is the paginated response envelope.
type SearchResponse struct {
	Page     int            `json:"page"`
	Limit    int            `json:"limit"`
	Total    int            `json:"total"`
	Items    []Summary      `json:"items"`
	Prefetch []PrefetchPage `json:"prefetch,omitempty"`
}
