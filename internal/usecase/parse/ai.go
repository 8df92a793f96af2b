package parse

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/timtro-cloud/timtro/internal/domain/query"
)

const systemPrompt = `Bạn là bộ phân tích truy vấn tìm phòng trọ/căn hộ cho thuê tại Việt Nam.
Trích xuất các bộ lọc có trong câu truy vấn của người dùng và trả về DUY NHẤT một object JSON, không giải thích.

Schema (bỏ qua field nếu truy vấn không nhắc tới, không bao giờ đoán giá trị mặc định):
{
  "postType": "rent" | "roommate",
  "category": "phong-tro" | "chung-cu" | "nha-nguyen-can" | "can-ho-dich-vu" | "mat-bang",
  "minPrice": number (VND), "maxPrice": number (VND),
  "minArea": number (m2), "maxArea": number (m2),
  "bedrooms": number, "bathrooms": number,
  "furniture": "full" | "basic" | "none",
  "legalStatus": "so-hong" | "hop-dong-cong-chung",
  "propertyType": "studio" | "duplex" | "penthouse",
  "buildingName": string,
  "amenities": [string], "excludeAmenities": [string],
  "districts": [string], "excludeDistricts": [string],
  "poiKeywords": [string],
  "priceCompare": "cheaper" | "more_expensive"
}`

// aiPayload is the loosely-typed wire shape of the AI response. Every field
// is re-validated before it reaches a StructuredQuery.
type aiPayload struct {
	PostType         string   `json:"postType"`
	Category         string   `json:"category"`
	MinPrice         *int64   `json:"minPrice"`
	MaxPrice         *int64   `json:"maxPrice"`
	MinArea          *float64 `json:"minArea"`
	MaxArea          *float64 `json:"maxArea"`
	Bedrooms         *int     `json:"bedrooms"`
	Bathrooms        *int     `json:"bathrooms"`
	Furniture        string   `json:"furniture"`
	LegalStatus      string   `json:"legalStatus"`
	PropertyType     string   `json:"propertyType"`
	BuildingName     string   `json:"buildingName"`
	Amenities        []string `json:"amenities"`
	ExcludeAmenities []string `json:"excludeAmenities"`
	Districts        []string `json:"districts"`
	ExcludeDistricts []string `json:"excludeDistricts"`
	POIKeywords      []string `json:"poiKeywords"`
	PriceCompare     string   `json:"priceCompare"`
}

// parseAIResponse extracts the JSON object from a completion and validates
// it field by field. Invalid enum values are dropped, never propagated.
func parseAIResponse(text string) (*query.StructuredQuery, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in completion")
	}

	var p aiPayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &p); err != nil {
		return nil, fmt.Errorf("malformed completion JSON: %w", err)
	}

	q := &query.StructuredQuery{}

	if pt := query.PostType(p.PostType); pt.IsValid() {
		q.PostType = &pt
	}
	if c := query.Category(p.Category); c.IsValid() {
		q.Category = &c
	}
	if p.MinPrice != nil || p.MaxPrice != nil {
		q.Price = &query.MoneyRange{Min: nonNegInt64(p.MinPrice), Max: nonNegInt64(p.MaxPrice)}
		if q.Price.Min == nil && q.Price.Max == nil {
			q.Price = nil
		}
	}
	if p.MinArea != nil || p.MaxArea != nil {
		q.Area = &query.FloatRange{Min: nonNegFloat(p.MinArea), Max: nonNegFloat(p.MaxArea)}
		if q.Area.Min == nil && q.Area.Max == nil {
			q.Area = nil
		}
	}
	if p.Bedrooms != nil && *p.Bedrooms > 0 {
		q.Bedrooms = &query.IntRange{Min: p.Bedrooms, Max: p.Bedrooms}
	}
	if p.Bathrooms != nil && *p.Bathrooms > 0 {
		q.Bathrooms = &query.IntRange{Min: p.Bathrooms, Max: p.Bathrooms}
	}
	if f := query.Furniture(p.Furniture); f.IsValid() {
		q.Furniture = &f
	}
	if l := query.LegalStatus(p.LegalStatus); l.IsValid() {
		q.LegalStatus = &l
	}
	if t := query.PropertyType(p.PropertyType); t.IsValid() {
		q.PropertyType = &t
	}
	q.BuildingName = strings.TrimSpace(p.BuildingName)
	q.Amenities = cleanList(p.Amenities)
	q.ExcludeAmenities = cleanList(p.ExcludeAmenities)
	q.Districts = cleanList(p.Districts)
	q.ExcludeDistricts = cleanList(p.ExcludeDistricts)
	q.POIKeywords = cleanList(p.POIKeywords)
	if p.PriceCompare == string(query.PriceCheaper) || p.PriceCompare == string(query.PriceMoreExpensive) {
		pc := query.PriceCompare(p.PriceCompare)
		q.PriceCompare = &pc
	}

	q.Normalize()
	return q, nil
}

func nonNegInt64(v *int64) *int64 {
	if v == nil || *v < 0 {
		return nil
	}
	return v
}

func nonNegFloat(v *float64) *float64 {
	if v == nil || *v < 0 {
		return nil
	}
	return v
}

func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = appendUnique(out, t)
		}
	}
	return out
}
