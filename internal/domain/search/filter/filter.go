// Package filter models the boolean pre-filter expression applied by the
// search index: must / should / must_not groups of tag, numeric-range, and
// geo-radius conditions. An Expression is built fresh for each retrieval
// phase and is immutable once built.
package filter

import "fmt"

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 32

// Expression is a structured filter with must/should/must_not boolean semantics.
type Expression struct {
	must    []Condition
	should  []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, should, mustNot []Condition) (Expression, error) {
	if len(must) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(should) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many should conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(mustNot) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must_not conditions (max %d)", MaxConditionsPerGroup)
	}
	return Expression{must: must, should: should, mustNot: mustNot}, nil
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// Should returns the should conditions.
func (e Expression) Should() []Condition { return e.should }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.should) == 0 && len(e.mustNot) == 0
}

// GeoRadius is a geo-distance condition: documents within radius meters of a
// center point.
type GeoRadius struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
}

// Condition is a single filter clause: a tag match (one or more values OR'd
// together), an exact phrase on a text field, a numeric range, or a geo
// radius.
type Condition struct {
	key       string
	values    []string
	phrase    string
	rangeExpr *Range
	geo       *GeoRadius
}

// NewMatch creates a tag match condition. Multiple values are OR'd.
func NewMatch(key string, values ...string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if len(values) == 0 {
		return Condition{}, fmt.Errorf("at least one match value is required for key %q", key)
	}
	for _, v := range values {
		if v == "" {
			return Condition{}, fmt.Errorf("empty match value for key %q", key)
		}
	}
	return Condition{key: key, values: values}, nil
}

// NewPhrase creates an exact-phrase condition on a text field.
func NewPhrase(key, phrase string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if phrase == "" {
		return Condition{}, fmt.Errorf("empty phrase for key %q", key)
	}
	return Condition{key: key, phrase: phrase}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, rangeExpr: &r}, nil
}

// NewGeo creates a geo-radius condition.
func NewGeo(key string, lat, lon, radiusMeters float64) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if radiusMeters <= 0 {
		return Condition{}, fmt.Errorf("radius must be positive for key %q", key)
	}
	return Condition{key: key, geo: &GeoRadius{Latitude: lat, Longitude: lon, RadiusMeters: radiusMeters}}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Values returns the tag match values.
func (c Condition) Values() []string { return c.values }

// Phrase returns the exact text phrase.
func (c Condition) Phrase() string { return c.phrase }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// Geo returns the geo-radius expression.
func (c Condition) Geo() *GeoRadius { return c.geo }

// IsMatch reports whether this is a tag match condition.
func (c Condition) IsMatch() bool { return len(c.values) > 0 }

// IsPhrase reports whether this is an exact-phrase condition.
func (c Condition) IsPhrase() bool { return c.phrase != "" }

// IsRange reports whether this is a numeric range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

// IsGeo reports whether this is a geo-radius condition.
func (c Condition) IsGeo() bool { return c.geo != nil }

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
func NewRangeFilter(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	if gt != nil && gte != nil {
		return Range{}, fmt.Errorf("cannot specify both gt and gte")
	}
	if lt != nil && lte != nil {
		return Range{}, fmt.Errorf("cannot specify both lt and lte")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// Between builds an inclusive [lo, hi] range.
func Between(lo, hi float64) Range {
	return Range{gte: &lo, lte: &hi}
}

// AtLeast builds a [lo, +inf) range.
func AtLeast(lo float64) Range { return Range{gte: &lo} }

// AtMost builds a (-inf, hi] range.
func AtMost(hi float64) Range { return Range{lte: &hi} }

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }
