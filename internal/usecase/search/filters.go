package search

import (
	"fmt"
	"strconv"

	"github.com/timtro-cloud/timtro/internal/domain/listing"
	"github.com/timtro-cloud/timtro/internal/domain/query"
	"github.com/timtro-cloud/timtro/internal/domain/search/filter"
	"github.com/timtro-cloud/timtro/internal/vntext"
)

// phase is one step of the relaxation sequence.
type phase int

const (
	phaseExact phase = iota + 1
	phaseSiblings
	phaseCategoryBoost
	phaseMinimal
)

func (p phase) String() string { return strconv.Itoa(int(p)) }

// locationSet holds the resolved ward codes for a query: exact codes from
// direct matches and the same-district expansion used by later phases.
type locationSet struct {
	exact    []string
	expanded []string
	excluded []string
}

// hasExpansion reports whether the sibling phase would change anything.
func (l locationSet) hasExpansion() bool {
	return len(l.expanded) > len(l.exact)
}

// resolveLocations expands every district or ward mention into ward codes.
// Unresolvable mentions contribute nothing; they stay in the free text.
func resolveLocations(q *query.StructuredQuery, loc LocationResolver) locationSet {
	var ls locationSet
	seen := map[string]bool{}
	seenExp := map[string]bool{}

	add := func(dst *[]string, seen map[string]bool, codes ...string) {
		for _, c := range codes {
			if c != "" && !seen[c] {
				seen[c] = true
				*dst = append(*dst, c)
			}
		}
	}

	for _, name := range q.Districts {
		if codes, ok := loc.ExpandDistrictToLocationCodes(name); ok {
			add(&ls.exact, seen, codes...)
			add(&ls.expanded, seenExp, codes...)
			continue
		}
		if code, ok := loc.ResolveWardByName(name); ok {
			add(&ls.exact, seen, code)
			add(&ls.expanded, seenExp, code)
			if sibs, ok := loc.SiblingCodesInSameDistrict(code); ok {
				add(&ls.expanded, seenExp, sibs...)
			}
		}
	}

	seenExc := map[string]bool{}
	for _, name := range q.ExcludeDistricts {
		if codes, ok := loc.ExpandDistrictToLocationCodes(name); ok {
			add(&ls.excluded, seenExc, codes...)
		} else if code, ok := loc.ResolveWardByName(name); ok {
			add(&ls.excluded, seenExc, code)
		}
	}
	return ls
}

// buildFilters translates the structured query into the filter expression
// for one relaxation phase.
func buildFilters(q *query.StructuredQuery, ph phase, locs locationSet, priceLoosening float64) (filter.Expression, error) {
	var must, mustNot []filter.Condition

	addMust := func(c filter.Condition, err error) error {
		if err != nil {
			return err
		}
		must = append(must, c)
		return nil
	}
	addMustNot := func(c filter.Condition, err error) error {
		if err != nil {
			return err
		}
		mustNot = append(mustNot, c)
		return nil
	}

	// Active status is mandatory in every phase.
	if err := addMust(filter.NewMatch(listing.FieldStatus, listing.StatusActive)); err != nil {
		return filter.Expression{}, err
	}
	if err := addMust(filter.NewMatch(listing.FieldIsActive, "1")); err != nil {
		return filter.Expression{}, err
	}

	if q.Price != nil {
		r, ok := moneyRange(q.Price, ph, priceLoosening)
		if ok {
			if err := addMust(filter.NewRange(listing.FieldPrice, r)); err != nil {
				return filter.Expression{}, err
			}
		}
	}

	if q.HasGeo() {
		if err := addMust(filter.NewGeo(listing.FieldGeo, *q.Latitude, *q.Longitude, q.RadiusMeters)); err != nil {
			return filter.Expression{}, err
		}
	}

	if ph == phaseMinimal {
		// Minimal set: everything else becomes ranking-only.
		expr, err := filter.NewExpression(must, nil, nil)
		if err != nil {
			return filter.Expression{}, fmt.Errorf("build phase %d filters: %w", ph, err)
		}
		return expr, nil
	}

	if q.PostType != nil {
		if err := addMust(filter.NewMatch(listing.FieldPostType, string(*q.PostType))); err != nil {
			return filter.Expression{}, err
		}
	}
	if q.Category != nil && ph != phaseCategoryBoost {
		if err := addMust(filter.NewMatch(listing.FieldCategory, string(*q.Category))); err != nil {
			return filter.Expression{}, err
		}
	}

	if q.Area != nil {
		if r, ok := floatRange(q.Area.Min, q.Area.Max); ok {
			if err := addMust(filter.NewRange(listing.FieldArea, r)); err != nil {
				return filter.Expression{}, err
			}
		}
	}
	if q.Bedrooms != nil {
		if r, ok := intRange(q.Bedrooms); ok {
			if err := addMust(filter.NewRange(listing.FieldBedrooms, r)); err != nil {
				return filter.Expression{}, err
			}
		}
	}
	if q.Bathrooms != nil {
		if r, ok := intRange(q.Bathrooms); ok {
			if err := addMust(filter.NewRange(listing.FieldBathrooms, r)); err != nil {
				return filter.Expression{}, err
			}
		}
	}

	if q.Furniture != nil {
		if err := addMust(filter.NewMatch(listing.FieldFurniture, string(*q.Furniture))); err != nil {
			return filter.Expression{}, err
		}
	}
	if q.LegalStatus != nil {
		if err := addMust(filter.NewMatch(listing.FieldLegalStatus, string(*q.LegalStatus))); err != nil {
			return filter.Expression{}, err
		}
	}
	if q.PropertyType != nil {
		if err := addMust(filter.NewMatch(listing.FieldPropertyType, string(*q.PropertyType))); err != nil {
			return filter.Expression{}, err
		}
	}

	// A building name also present in the free text is boost-only; an exact
	// filter there would over-constrain a query the text already narrows.
	if q.BuildingName != "" && !vntext.ContainsFold(q.Raw, q.BuildingName) {
		if err := addMust(filter.NewPhrase(listing.FieldBuildingName, vntext.NormalizeFold(q.BuildingName))); err != nil {
			return filter.Expression{}, err
		}
	}

	if q.MinCreatedAt != nil {
		if err := addMust(filter.NewRange(listing.FieldCreatedAt, filter.AtLeast(float64(q.MinCreatedAt.Unix())))); err != nil {
			return filter.Expression{}, err
		}
	}

	for _, a := range q.Amenities {
		if err := addMust(filter.NewMatch(listing.FieldAmenities, a)); err != nil {
			return filter.Expression{}, err
		}
	}
	if len(q.ExcludeAmenities) > 0 {
		if err := addMustNot(filter.NewMatch(listing.FieldAmenities, q.ExcludeAmenities...)); err != nil {
			return filter.Expression{}, err
		}
	}

	codes := locs.exact
	if ph != phaseExact {
		codes = locs.expanded
	}
	if len(codes) > 0 {
		if err := addMust(filter.NewMatch(listing.FieldWardCode, codes...)); err != nil {
			return filter.Expression{}, err
		}
	}
	if len(locs.excluded) > 0 {
		if err := addMustNot(filter.NewMatch(listing.FieldWardCode, locs.excluded...)); err != nil {
			return filter.Expression{}, err
		}
	}

	expr, err := filter.NewExpression(must, nil, mustNot)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("build phase %d filters: %w", ph, err)
	}
	return expr, nil
}

// moneyRange converts the price range, loosening the band in the minimal
// phase so a slightly-over-budget listing still surfaces.
func moneyRange(p *query.MoneyRange, ph phase, loosening float64) (filter.Range, bool) {
	var lo, hi *float64
	if p.Min != nil {
		v := float64(*p.Min)
		if ph == phaseMinimal {
			v *= 1 - loosening
		}
		lo = &v
	}
	if p.Max != nil {
		v := float64(*p.Max)
		if ph == phaseMinimal {
			v *= 1 + loosening
		}
		hi = &v
	}
	return boundsRange(lo, hi)
}

func floatRange(min, max *float64) (filter.Range, bool) {
	return boundsRange(min, max)
}

func intRange(r *query.IntRange) (filter.Range, bool) {
	var lo, hi *float64
	if r.Min != nil {
		v := float64(*r.Min)
		lo = &v
	}
	if r.Max != nil {
		v := float64(*r.Max)
		hi = &v
	}
	return boundsRange(lo, hi)
}

func boundsRange(lo, hi *float64) (filter.Range, bool) {
	switch {
	case lo != nil && hi != nil:
		return filter.Between(*lo, *hi), true
	case lo != nil:
		return filter.AtLeast(*lo), true
	case hi != nil:
		return filter.AtMost(*hi), true
	default:
		return filter.Range{}, false
	}
}
