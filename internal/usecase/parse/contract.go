package parse

import (
	"context"

	"github.com/timtro-cloud/timtro/internal/domain/geo"
)

// Completer is the AI provider used for the assisted parse path.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Geocoder resolves a point-of-interest phrase to serviceable coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, poi, cityHint string) (geo.Point, bool)
}

// DistrictMatcher scans free text for known district mentions.
type DistrictMatcher interface {
	MatchDistrictInText(text string) (string, bool)
}

// AmenityExtractor splits amenity mentions into include and exclude sets.
type AmenityExtractor interface {
	Extract(text string) (include, exclude []string)
}
