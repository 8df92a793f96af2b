package lexicon

import (
	"slices"
	"testing"
)

func mustDefault(t *testing.T) *Lexicon {
	t.Helper()
	lex, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	return lex
}

func TestExtract_Basic(t *testing.T) {
	lex := mustDefault(t)

	inc, exc := lex.Extract("phòng trọ có máy lạnh và ban công")
	if !slices.Contains(inc, "may-lanh") {
		t.Errorf("expected may-lanh in include, got %v", inc)
	}
	if !slices.Contains(inc, "ban-cong") {
		t.Errorf("expected ban-cong in include, got %v", inc)
	}
	if len(exc) != 0 {
		t.Errorf("expected no exclusions, got %v", exc)
	}
}

func TestExtract_FoldedInput(t *testing.T) {
	lex := mustDefault(t)

	inc, _ := lex.Extract("phong tro co may lanh")
	if !slices.Contains(inc, "may-lanh") {
		t.Errorf("diacritic-free input should still match, got %v", inc)
	}
}

func TestExtract_Negation(t *testing.T) {
	lex := mustDefault(t)

	inc, exc := lex.Extract("phòng không máy lạnh nhưng có tủ lạnh")
	if slices.Contains(inc, "may-lanh") {
		t.Errorf("negated amenity must not be included: %v", inc)
	}
	if !slices.Contains(exc, "may-lanh") {
		t.Errorf("expected may-lanh excluded, got %v", exc)
	}
	if !slices.Contains(inc, "tu-lanh") {
		t.Errorf("expected tu-lanh included, got %v", inc)
	}
}

func TestExtract_NegationWithCo(t *testing.T) {
	lex := mustDefault(t)

	_, exc := lex.Extract("không có thang máy")
	if !slices.Contains(exc, "thang-may") {
		t.Errorf("expected thang-may excluded, got %v", exc)
	}
}

func TestExtract_Empty(t *testing.T) {
	lex := mustDefault(t)
	inc, exc := lex.Extract("")
	if inc != nil || exc != nil {
		t.Errorf("expected nil results for empty text, got %v / %v", inc, exc)
	}
}
