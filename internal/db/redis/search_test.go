package redis

import (
	"testing"

	"github.com/timtro-cloud/timtro/internal/db"
	"github.com/timtro-cloud/timtro/internal/domain/search/filter"
)

func mustMatch(t *testing.T, key string, values ...string) filter.Condition {
	t.Helper()
	c, err := filter.NewMatch(key, values...)
	if err != nil {
		t.Fatalf("NewMatch: %v", err)
	}
	return c
}

func TestBuildFilter_TagMultiValue(t *testing.T) {
	expr, err := filter.NewExpression(
		[]filter.Condition{mustMatch(t, "ward_code", "26734", "26737")},
		nil, nil,
	)
	if err != nil {
		t.Fatalf("NewExpression: %v", err)
	}

	got := buildFilter(expr)
	want := "@ward_code:{26734|26737}"
	if got != want {
		t.Errorf("buildFilter = %q, want %q", got, want)
	}
}

func TestBuildFilter_MustNotAndRange(t *testing.T) {
	rangeCond, err := filter.NewRange("price", filter.Between(3000000, 5000000))
	if err != nil {
		t.Fatalf("NewRange: %v", err)
	}
	expr, err := filter.NewExpression(
		[]filter.Condition{rangeCond},
		nil,
		[]filter.Condition{mustMatch(t, "district", "binh thanh")},
	)
	if err != nil {
		t.Fatalf("NewExpression: %v", err)
	}

	got := buildFilter(expr)
	want := "@price:[3e+06 5e+06] -@district:{binh\\ thanh}"
	if got != want {
		t.Errorf("buildFilter = %q, want %q", got, want)
	}
}

func TestBuildFilter_Geo(t *testing.T) {
	geoCond, err := filter.NewGeo("geo", 10.8231, 106.6297, 3000)
	if err != nil {
		t.Fatalf("NewGeo: %v", err)
	}
	expr, err := filter.NewExpression([]filter.Condition{geoCond}, nil, nil)
	if err != nil {
		t.Fatalf("NewExpression: %v", err)
	}

	got := buildFilter(expr)
	want := "@geo:[106.6297 10.8231 3000 m]"
	if got != want {
		t.Errorf("buildFilter = %q, want %q", got, want)
	}
}

func TestBuildTextClause(t *testing.T) {
	got := buildTextClause("phong tro gan iuh", []string{"title_folded", "description_folded"}, false)
	want := "@title_folded|description_folded:(phong tro gan iuh)"
	if got != want {
		t.Errorf("buildTextClause = %q, want %q", got, want)
	}
}

func TestBuildTextClause_Fuzzy(t *testing.T) {
	got := buildTextClause("chung cu q7", []string{"title_folded"}, true)
	// Tokens under three runes stay exact.
	want := "@title_folded:(%chung% cu q7)"
	if got != want {
		t.Errorf("buildTextClause = %q, want %q", got, want)
	}
}

func TestBuildTextQuery_EmptyFallsBackToWildcard(t *testing.T) {
	got := buildTextQuery(&db.TextQuery{})
	if got != "*" {
		t.Errorf("buildTextQuery = %q, want *", got)
	}
}
