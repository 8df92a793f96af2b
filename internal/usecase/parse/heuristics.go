package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/timtro-cloud/timtro/internal/domain/query"
	"github.com/timtro-cloud/timtro/internal/vntext"
)

// pointTolerance widens a single extracted price or area into a symmetric
// range. Users stating "6 triệu" do not mean exactly 6,000,000.
const pointTolerance = 0.10

// cheapCeiling is the price ceiling implied by qualitative "giá rẻ" when no
// amount is given.
const cheapCeiling = int64(3_000_000)

const million = int64(1_000_000)

// All patterns run against folded text (lowercase, diacritics stripped,
// whitespace collapsed), so they are plain ASCII.
var (
	// "6tr5", "6 trieu 5", "6 trieu ruoi"
	reMoneyCompact = regexp.MustCompile(`\b(\d+)\s*tr(?:ieu)?\s*(ruoi|\d)\b`)
	// "6tr", "6.5 trieu"
	reMoneyMillion = regexp.MustCompile(`\b(\d+(?:[.,]\d+)?)\s*tr(?:ieu)?\b`)
	// "800k", "800 nghin"
	reMoneyThousand = regexp.MustCompile(`\b(\d+)\s*(?:k|nghin|ngan)\b`)
	// "5.000.000", bare 7+ digit amounts
	reMoneyRaw = regexp.MustCompile(`\b\d{1,3}(?:\.\d{3}){2,}\b|\b\d{7,}\b`)

	reArea      = regexp.MustCompile(`\b(\d+(?:[.,]\d+)?)\s*(?:m2|met vuong)\b`)
	reBedrooms  = regexp.MustCompile(`\b(\d+)\s*(?:pn|phong ngu)\b`)
	reBathrooms = regexp.MustCompile(`\b(\d+)\s*(?:wc|toilet|nha ve sinh|nha tam)\b`)
	reDaysAgo   = regexp.MustCompile(`\b(\d+)\s*ngay\s*(?:truoc|qua|gan day)\b`)
)

// maxQualifiers lower or raise a money/area mention into a one-sided bound.
var maxQualifiers = []string{"duoi", "toi da", "khong qua", "max", "it hon", "khong den"}

var minQualifiers = []string{"tren", "toi thieu", "min", "hon", "it nhat"}

// proximityMarkers introduce a point-of-interest phrase.
var proximityMarkers = []string{"gan", "canh", "sat", "doi dien", "khu vuc", "xung quanh"}

// poiStopwords terminate a captured POI or building phrase.
// Note "cho" is absent: it is both "chợ" (market, a common POI) and the
// preposition "cho", and dropping market names costs more than the noise.
var poiStopwords = map[string]bool{
	"duoi": true, "tren": true, "gia": true, "quan": true, "phuong": true,
	"co": true, "khong": true, "full": true, "tu": true, "den": true,
	"va": true, "thue": true, "o": true, "re": true, "day": true,
}

// landmarkPrefixes start an implicit POI phrase without a proximity marker.
var landmarkPrefixes = []string{
	"dai hoc", "truong", "benh vien", "cong vien", "san bay",
	"khu cong nghiep", "kcn", "nga tu", "ben xe", "cho",
}

// knownBuildings maps folded brand substrings to display building names.
var knownBuildings = map[string]string{
	"vinhomes":          "Vinhomes",
	"masteri":           "Masteri",
	"sunrise city":      "Sunrise City",
	"sky garden":        "Sky Garden",
	"saigon pearl":      "Saigon Pearl",
	"the manor":         "The Manor",
	"landmark 81":       "Landmark 81",
	"eco green":         "Eco Green",
	"midtown":           "Midtown",
	"happy residence":   "Happy Residence",
	"celadon city":      "Celadon City",
	"richstar":          "RichStar",
	"topaz elite":       "Topaz Elite",
	"saigon south":      "Saigon South Residences",
	"scenic valley":     "Scenic Valley",
	"hung phat":         "Hưng Phát",
	"opal boulevard":    "Opal Boulevard",
	"gateway thao dien": "Gateway Thảo Điền",
}

// heuristics is the deterministic rule battery. It never fails; unmatched
// rules leave their fields absent.
type heuristics struct {
	lex AmenityExtractor
	loc DistrictMatcher
}

func (h *heuristics) parse(raw string, now time.Time) *query.StructuredQuery {
	q := &query.StructuredQuery{
		Raw:        raw,
		Normalized: vntext.Normalize(raw),
	}
	folded := vntext.NormalizeFold(raw)
	if folded == "" {
		return q
	}

	h.detectCategory(folded, q)
	h.detectPostType(folded, q)
	h.extractPrice(folded, q)
	h.extractDistrict(raw, q)
	h.extractRooms(folded, q)
	h.detectFurnitureLegal(folded, q)
	h.extractRecency(folded, now, q)
	h.extractArea(folded, q)
	h.extractBuilding(folded, q)
	h.extractAmenities(raw, q)
	h.extractPOI(folded, q)

	q.Normalize()
	return q
}

func (h *heuristics) detectCategory(folded string, q *query.StructuredQuery) {
	// Longer, more specific phrases first.
	switch {
	case strings.Contains(folded, "can ho dich vu"):
		q.Category = categoryPtr(query.CategoryCanHoDichVu)
	case strings.Contains(folded, "nguyen can"):
		q.Category = categoryPtr(query.CategoryNhaNguyenCan)
	case strings.Contains(folded, "chung cu") || strings.Contains(folded, "can ho"):
		q.Category = categoryPtr(query.CategoryChungCu)
	case strings.Contains(folded, "mat bang"):
		q.Category = categoryPtr(query.CategoryMatBang)
	case strings.Contains(folded, "phong tro") || strings.Contains(folded, "nha tro") ||
		containsToken(folded, "tro"):
		q.Category = categoryPtr(query.CategoryPhongTro)
	case containsToken(folded, "phong") && !strings.Contains(folded, "phong ngu"):
		q.Category = categoryPtr(query.CategoryPhongTro)
	}
}

func (h *heuristics) detectPostType(folded string, q *query.StructuredQuery) {
	if strings.Contains(folded, "o ghep") || containsToken(folded, "ghep") ||
		strings.Contains(folded, "roommate") || strings.Contains(folded, "share phong") {
		q.PostType = postTypePtr(query.PostTypeRoommate)
		return
	}
	if containsToken(folded, "thue") || q.Category != nil {
		q.PostType = postTypePtr(query.PostTypeRent)
	}
}

type moneyMention struct {
	pos int
	end int
	val int64
}

func (h *heuristics) extractPrice(folded string, q *query.StructuredQuery) {
	switch {
	case strings.Contains(folded, "re hon"):
		q.PriceCompare = priceComparePtr(query.PriceCheaper)
	case strings.Contains(folded, "dat hon") || strings.Contains(folded, "mac hon"):
		q.PriceCompare = priceComparePtr(query.PriceMoreExpensive)
	}

	mentions := findMoney(folded)
	if len(mentions) == 0 {
		if strings.Contains(folded, "gia re") || strings.Contains(folded, "gia sinh vien") {
			maxV := cheapCeiling
			q.Price = &query.MoneyRange{Max: &maxV}
		}
		return
	}

	// "tu 4 trieu den 6 trieu", "4tr - 6tr"
	if len(mentions) >= 2 && isRangeConnector(folded[mentions[0].end:mentions[1].pos]) {
		lo, hi := mentions[0].val, mentions[1].val
		q.Price = &query.MoneyRange{Min: &lo, Max: &hi}
		return
	}

	m := mentions[0]
	switch {
	case qualifierBefore(folded, m.pos, maxQualifiers):
		v := m.val
		q.Price = &query.MoneyRange{Max: &v}
	case qualifierBefore(folded, m.pos, minQualifiers):
		v := m.val
		q.Price = &query.MoneyRange{Min: &v}
	default:
		q.Price = query.WidenMoney(m.val, pointTolerance)
	}
}

// findMoney collects money mentions in text order; more specific patterns
// claim their span first so "6tr5" never also matches as "6tr".
func findMoney(folded string) []moneyMention {
	var out []moneyMention
	claimed := make([]bool, len(folded))

	claim := func(pos, end int, val int64) {
		for i := pos; i < end; i++ {
			if claimed[i] {
				return
			}
		}
		for i := pos; i < end; i++ {
			claimed[i] = true
		}
		out = append(out, moneyMention{pos: pos, end: end, val: val})
	}

	for _, m := range reMoneyCompact.FindAllStringSubmatchIndex(folded, -1) {
		whole, _ := strconv.ParseInt(folded[m[2]:m[3]], 10, 64)
		frac := folded[m[4]:m[5]]
		val := whole * million
		if frac == "ruoi" {
			val += million / 2
		} else if d, err := strconv.ParseInt(frac, 10, 64); err == nil {
			val += d * million / 10
		}
		claim(m[0], m[1], val)
	}
	for _, m := range reMoneyMillion.FindAllStringSubmatchIndex(folded, -1) {
		num := strings.ReplaceAll(folded[m[2]:m[3]], ",", ".")
		f, err := strconv.ParseFloat(num, 64)
		if err != nil {
			continue
		}
		claim(m[0], m[1], int64(f*float64(million)))
	}
	for _, m := range reMoneyThousand.FindAllStringSubmatchIndex(folded, -1) {
		n, _ := strconv.ParseInt(folded[m[2]:m[3]], 10, 64)
		claim(m[0], m[1], n*1000)
	}
	for _, m := range reMoneyRaw.FindAllStringIndex(folded, -1) {
		n, err := strconv.ParseInt(strings.ReplaceAll(folded[m[0]:m[1]], ".", ""), 10, 64)
		if err != nil {
			continue
		}
		claim(m[0], m[1], n)
	}

	// Restore text order; the pattern passes appended out of order.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].pos < out[j-1].pos; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func isRangeConnector(between string) bool {
	t := strings.TrimSpace(between)
	return t == "den" || t == "toi" || t == "-" || t == "~" || t == "đen"
}

// qualifierBefore checks the few tokens immediately preceding pos.
func qualifierBefore(folded string, pos int, qualifiers []string) bool {
	prefix := strings.TrimSpace(folded[:pos])
	for _, w := range qualifiers {
		if strings.HasSuffix(prefix, w) {
			return true
		}
	}
	return false
}

func (h *heuristics) extractDistrict(raw string, q *query.StructuredQuery) {
	if h.loc == nil {
		return
	}
	if alias, ok := h.loc.MatchDistrictInText(raw); ok {
		q.Districts = append(q.Districts, alias)
	}
}

func (h *heuristics) extractRooms(folded string, q *query.StructuredQuery) {
	if m := reBedrooms.FindStringSubmatch(folded); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			q.Bedrooms = &query.IntRange{Min: &n, Max: &n}
		}
	}
	if m := reBathrooms.FindStringSubmatch(folded); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			q.Bathrooms = &query.IntRange{Min: &n, Max: &n}
		}
	}
}

func (h *heuristics) detectFurnitureLegal(folded string, q *query.StructuredQuery) {
	switch {
	case strings.Contains(folded, "khong noi that") || strings.Contains(folded, "nha trong"):
		q.Furniture = furniturePtr(query.FurnitureNone)
	case strings.Contains(folded, "noi that co ban"):
		q.Furniture = furniturePtr(query.FurnitureBasic)
	case strings.Contains(folded, "full noi that") || strings.Contains(folded, "noi that day du") ||
		strings.Contains(folded, "day du noi that") || strings.Contains(folded, "full nt"):
		q.Furniture = furniturePtr(query.FurnitureFull)
	}

	switch {
	case strings.Contains(folded, "so hong") || strings.Contains(folded, "so do"):
		q.LegalStatus = legalPtr(query.LegalSoHong)
	case strings.Contains(folded, "cong chung"):
		q.LegalStatus = legalPtr(query.LegalHopDongCongChung)
	}

	switch {
	case strings.Contains(folded, "studio"):
		q.PropertyType = propertyPtr(query.PropertyStudio)
	case strings.Contains(folded, "duplex"):
		q.PropertyType = propertyPtr(query.PropertyDuplex)
	case strings.Contains(folded, "penthouse"):
		q.PropertyType = propertyPtr(query.PropertyPenthouse)
	}
}

func (h *heuristics) extractRecency(folded string, now time.Time, q *query.StructuredQuery) {
	days := 0
	switch {
	case reDaysAgo.MatchString(folded):
		m := reDaysAgo.FindStringSubmatch(folded)
		days, _ = strconv.Atoi(m[1])
	case strings.Contains(folded, "tuan qua") || strings.Contains(folded, "tuan truoc") ||
		strings.Contains(folded, "trong tuan"):
		days = 7
	case strings.Contains(folded, "thang qua") || strings.Contains(folded, "thang truoc"):
		days = 30
	case strings.Contains(folded, "moi dang") || strings.Contains(folded, "tin moi"):
		days = 3
	}
	if days > 0 {
		t := now.AddDate(0, 0, -days)
		q.MinCreatedAt = &t
	}
}

func (h *heuristics) extractArea(folded string, q *query.StructuredQuery) {
	m := reArea.FindStringSubmatchIndex(folded)
	if m == nil {
		return
	}
	num := strings.ReplaceAll(folded[m[2]:m[3]], ",", ".")
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || v <= 0 {
		return
	}

	switch {
	case qualifierBefore(folded, m[0], maxQualifiers):
		q.Area = &query.FloatRange{Max: &v}
	case qualifierBefore(folded, m[0], minQualifiers):
		q.Area = &query.FloatRange{Min: &v}
	default:
		q.Area = query.WidenFloat(v, pointTolerance)
	}
}

func (h *heuristics) extractBuilding(folded string, q *query.StructuredQuery) {
	for key, name := range knownBuildings {
		if strings.Contains(folded, key) {
			// Deterministic pick: longest match wins.
			if len(key) > len(vntext.NormalizeFold(q.BuildingName)) {
				q.BuildingName = name
			}
		}
	}
	if q.BuildingName != "" {
		return
	}
	if phrase := captureAfter(folded, []string{"toa nha", "toa"}, 3); phrase != "" {
		q.BuildingName = phrase
	}
}

func (h *heuristics) extractAmenities(raw string, q *query.StructuredQuery) {
	if h.lex == nil {
		return
	}
	inc, exc := h.lex.Extract(raw)
	q.Amenities = inc
	q.ExcludeAmenities = exc
}

func (h *heuristics) extractPOI(folded string, q *query.StructuredQuery) {
	for _, marker := range proximityMarkers {
		phrase := captureAfter(folded, []string{marker}, 5)
		if phrase == "" {
			continue
		}
		// A proximity phrase naming a district is location narrowing, not
		// a POI; the district rule already picked it up.
		if h.loc != nil {
			if _, ok := h.loc.MatchDistrictInText(phrase); ok {
				continue
			}
		}
		q.POIKeywords = appendUnique(q.POIKeywords, phrase)
	}
	if len(q.POIKeywords) > 0 {
		return
	}

	// No marker: look for an implicit landmark phrase.
	for _, prefix := range landmarkPrefixes {
		idx := indexToken(folded, prefix)
		if idx < 0 {
			continue
		}
		phrase := capturePhrase(folded[idx:], 5)
		if phrase != "" && phrase != prefix {
			q.POIKeywords = appendUnique(q.POIKeywords, phrase)
			return
		}
	}
}

// captureAfter returns the phrase following the first occurrence of any
// marker, truncated at a stopword, digit, or maxTokens.
func captureAfter(folded string, markers []string, maxTokens int) string {
	for _, marker := range markers {
		idx := indexToken(folded, marker)
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(folded[idx+len(marker):])
		if phrase := capturePhrase(rest, maxTokens); phrase != "" {
			return phrase
		}
	}
	return ""
}

func capturePhrase(s string, maxTokens int) string {
	var kept []string
	for _, tok := range strings.Fields(s) {
		if len(kept) >= maxTokens || poiStopwords[tok] || startsWithDigit(tok) {
			break
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

func startsWithDigit(s string) bool {
	return len(s) > 0 && s[0] >= '0' && s[0] <= '9'
}

// indexToken finds sub in s on token boundaries and returns its byte offset.
func indexToken(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] != sub {
			continue
		}
		leftOK := i == 0 || s[i-1] == ' '
		right := i + len(sub)
		rightOK := right == len(s) || s[right] == ' '
		if leftOK && rightOK {
			return i
		}
	}
	return -1
}

func containsToken(s, tok string) bool {
	return indexToken(s, tok) >= 0
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func categoryPtr(c query.Category) *query.Category          { return &c }
func postTypePtr(p query.PostType) *query.PostType          { return &p }
func furniturePtr(f query.Furniture) *query.Furniture       { return &f }
func legalPtr(l query.LegalStatus) *query.LegalStatus       { return &l }
func propertyPtr(p query.PropertyType) *query.PropertyType  { return &p }
func priceComparePtr(p query.PriceCompare) *query.PriceCompare { return &p }
