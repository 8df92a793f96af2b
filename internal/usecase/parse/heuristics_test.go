package parse

import (
	"math"
	"testing"
	"time"

	"github.com/timtro-cloud/timtro/internal/domain/query"
	"github.com/timtro-cloud/timtro/internal/lexicon"
	"github.com/timtro-cloud/timtro/internal/location"
)

func newHeuristics(t *testing.T) *heuristics {
	t.Helper()
	lex, err := lexicon.Default()
	if err != nil {
		t.Fatalf("load lexicon: %v", err)
	}
	loc, err := location.Default()
	if err != nil {
		t.Fatalf("load location resolver: %v", err)
	}
	return &heuristics{lex: lex, loc: loc}
}

var testNow = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

func TestHeuristics_PointPriceWidensSymmetrically(t *testing.T) {
	h := newHeuristics(t)
	q := h.parse("phòng trọ 6 triệu", testNow)

	if q.Price == nil || q.Price.Min == nil || q.Price.Max == nil {
		t.Fatalf("price not extracted: %+v", q.Price)
	}
	mid := (*q.Price.Min + *q.Price.Max) / 2
	if mid != 6_000_000 {
		t.Errorf("midpoint = %d, want 6000000", mid)
	}
	if 6_000_000-*q.Price.Min != *q.Price.Max-6_000_000 {
		t.Errorf("bounds not symmetric: [%d, %d]", *q.Price.Min, *q.Price.Max)
	}
}

func TestHeuristics_CompactPriceIdiom(t *testing.T) {
	h := newHeuristics(t)

	cases := []struct {
		text string
		mid  int64
	}{
		{"phòng 6tr5", 6_500_000},
		{"phòng 6 triệu rưỡi", 6_500_000},
		{"phòng 1tr2", 1_200_000},
		{"phòng 800k", 800_000},
		{"phòng 5.000.000", 5_000_000},
	}
	for _, tc := range cases {
		q := h.parse(tc.text, testNow)
		if q.Price == nil || q.Price.Min == nil || q.Price.Max == nil {
			t.Errorf("%q: price not extracted", tc.text)
			continue
		}
		if mid := (*q.Price.Min + *q.Price.Max) / 2; mid != tc.mid {
			t.Errorf("%q: midpoint = %d, want %d", tc.text, mid, tc.mid)
		}
	}
}

func TestHeuristics_PriceCeilingAndRange(t *testing.T) {
	h := newHeuristics(t)

	q := h.parse("phòng trọ quận 7 dưới 5 triệu", testNow)
	if q.Category == nil || *q.Category != query.CategoryPhongTro {
		t.Errorf("category = %v, want phong-tro", q.Category)
	}
	if len(q.Districts) != 1 {
		t.Fatalf("districts = %v", q.Districts)
	}
	if q.Price == nil || q.Price.Min != nil || q.Price.Max == nil || *q.Price.Max != 5_000_000 {
		t.Errorf("price = %+v, want max-only 5000000", q.Price)
	}

	q = h.parse("căn hộ từ 4 triệu đến 6 triệu", testNow)
	if q.Price == nil || q.Price.Min == nil || q.Price.Max == nil {
		t.Fatalf("range not extracted: %+v", q.Price)
	}
	if *q.Price.Min != 4_000_000 || *q.Price.Max != 6_000_000 {
		t.Errorf("range = [%d, %d]", *q.Price.Min, *q.Price.Max)
	}

	q = h.parse("phòng trọ giá rẻ", testNow)
	if q.Price == nil || q.Price.Max == nil || *q.Price.Max != cheapCeiling {
		t.Errorf("qualitative cheap = %+v, want max %d", q.Price, cheapCeiling)
	}
}

func TestHeuristics_CategoryDetection(t *testing.T) {
	h := newHeuristics(t)

	cases := []struct {
		text string
		want query.Category
	}{
		{"phòng trọ quận 7", query.CategoryPhongTro},
		{"thuê chung cư 2PN", query.CategoryChungCu},
		{"căn hộ dịch vụ q1", query.CategoryCanHoDichVu},
		{"nhà nguyên căn gò vấp", query.CategoryNhaNguyenCan},
		{"mặt bằng kinh doanh", query.CategoryMatBang},
	}
	for _, tc := range cases {
		q := h.parse(tc.text, testNow)
		if q.Category == nil || *q.Category != tc.want {
			t.Errorf("%q: category = %v, want %s", tc.text, q.Category, tc.want)
		}
	}
}

func TestHeuristics_RoomsFurnitureRecencyArea(t *testing.T) {
	h := newHeuristics(t)
	q := h.parse("chung cư 2PN 2WC full nội thất 70m2 đăng 3 ngày trước", testNow)

	if q.Bedrooms == nil || *q.Bedrooms.Min != 2 || *q.Bedrooms.Max != 2 {
		t.Errorf("bedrooms = %+v", q.Bedrooms)
	}
	if q.Bathrooms == nil || *q.Bathrooms.Min != 2 {
		t.Errorf("bathrooms = %+v", q.Bathrooms)
	}
	if q.Furniture == nil || *q.Furniture != query.FurnitureFull {
		t.Errorf("furniture = %v", q.Furniture)
	}
	if q.Area == nil || q.Area.Min == nil || q.Area.Max == nil {
		t.Fatalf("area = %+v", q.Area)
	}
	if math.Abs(*q.Area.Min-63) > 1e-9 || math.Abs(*q.Area.Max-77) > 1e-9 {
		t.Errorf("area band = [%v, %v], want [63, 77]", *q.Area.Min, *q.Area.Max)
	}
	if q.MinCreatedAt == nil || !q.MinCreatedAt.Equal(testNow.AddDate(0, 0, -3)) {
		t.Errorf("minCreatedAt = %v", q.MinCreatedAt)
	}
}

func TestHeuristics_AmenitiesWithNegation(t *testing.T) {
	h := newHeuristics(t)
	q := h.parse("phòng trọ có máy lạnh không nuôi thú cưng", testNow)

	if len(q.Amenities) != 1 || q.Amenities[0] != "may-lanh" {
		t.Errorf("amenities = %v", q.Amenities)
	}
	if len(q.ExcludeAmenities) != 1 || q.ExcludeAmenities[0] != "nuoi-thu-cung" {
		t.Errorf("exclude = %v", q.ExcludeAmenities)
	}
}

func TestHeuristics_POIExtraction(t *testing.T) {
	h := newHeuristics(t)

	q := h.parse("chung cư gần IUH", testNow)
	if len(q.POIKeywords) != 1 || q.POIKeywords[0] != "iuh" {
		t.Errorf("poi = %v", q.POIKeywords)
	}
	if q.Category == nil || *q.Category != query.CategoryChungCu {
		t.Errorf("category = %v", q.Category)
	}
	if q.Price != nil || len(q.Amenities) != 0 {
		t.Error("price and amenities must stay absent")
	}

	// A district after a proximity marker is narrowing, not a POI.
	q = h.parse("phòng trọ khu vực quận 7", testNow)
	if len(q.POIKeywords) != 0 {
		t.Errorf("district phrase leaked into POIs: %v", q.POIKeywords)
	}
	if len(q.Districts) == 0 {
		t.Error("district not extracted")
	}

	// Implicit landmark without a marker.
	q = h.parse("phòng trọ đại học bách khoa", testNow)
	if len(q.POIKeywords) != 1 || q.POIKeywords[0] != "dai hoc bach khoa" {
		t.Errorf("landmark poi = %v", q.POIKeywords)
	}
}

func TestHeuristics_BuildingBrand(t *testing.T) {
	h := newHeuristics(t)
	q := h.parse("căn hộ sunrise city 2PN", testNow)
	if q.BuildingName != "Sunrise City" {
		t.Errorf("building = %q", q.BuildingName)
	}
}

func TestHeuristics_InvertedRangeNormalized(t *testing.T) {
	h := newHeuristics(t)
	q := h.parse("phòng từ 6 triệu đến 4 triệu", testNow)
	if q.Price == nil || q.Price.Min == nil || q.Price.Max == nil {
		t.Fatal("range missing")
	}
	if *q.Price.Min > *q.Price.Max {
		t.Errorf("inverted bounds survived: [%d, %d]", *q.Price.Min, *q.Price.Max)
	}
}
