// Package lexicon holds the static amenity taxonomy: canonical amenity keys
// mapped to keyword/synonym lists. The table is loaded once at startup and is
// read-only afterwards.
package lexicon

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/timtro-cloud/timtro/internal/vntext"
)

//go:embed data/amenities.yaml
var embeddedAmenities []byte

// negations are the tokens that, directly before an amenity mention, turn it
// into an exclusion ("không thang máy").
var negations = map[string]bool{
	"khong": true,
	"ko":    true,
	"k":     true,
	"chua":  true,
}

type dataset struct {
	Amenities map[string][]string `yaml:"amenities"`
}

// Lexicon is the immutable amenity keyword table.
type Lexicon struct {
	// synonyms maps canonical key -> folded synonym list, longest first.
	synonyms map[string][]string
	keys     []string
}

// Default loads the embedded amenity dataset.
func Default() (*Lexicon, error) {
	return parse(embeddedAmenities)
}

// LoadFile loads an amenity dataset from a YAML file, for deployments that
// override the embedded table.
func LoadFile(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read amenity dataset: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Lexicon, error) {
	var ds dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parse amenity dataset: %w", err)
	}
	if len(ds.Amenities) == 0 {
		return nil, fmt.Errorf("amenity dataset is empty")
	}

	lex := &Lexicon{synonyms: make(map[string][]string, len(ds.Amenities))}
	for key, syns := range ds.Amenities {
		folded := make([]string, 0, len(syns))
		for _, s := range syns {
			folded = append(folded, vntext.NormalizeFold(s))
		}
		// Longest synonym first so "full nội thất" wins over "nội thất".
		sort.Slice(folded, func(i, j int) bool { return len(folded[i]) > len(folded[j]) })
		lex.synonyms[key] = folded
		lex.keys = append(lex.keys, key)
	}
	sort.Strings(lex.keys)
	return lex, nil
}

// Keys returns all canonical amenity keys in sorted order.
func (l *Lexicon) Keys() []string { return l.keys }

// Extract scans free text for amenity mentions and splits them into included
// and excluded key sets. A mention preceded by a negation token counts as an
// exclusion. Both slices are sorted and deduplicated.
func (l *Lexicon) Extract(text string) (include, exclude []string) {
	folded := vntext.NormalizeFold(text)
	if folded == "" {
		return nil, nil
	}

	inc := map[string]bool{}
	exc := map[string]bool{}

	for _, key := range l.keys {
		for _, syn := range l.synonyms[key] {
			idx := strings.Index(folded, syn)
			if idx < 0 {
				continue
			}
			if negatedAt(folded, idx) {
				exc[key] = true
			} else {
				inc[key] = true
			}
			break
		}
	}

	return sortedKeys(inc), sortedKeys(exc)
}

// negatedAt reports whether the token immediately before position idx is a
// negation word.
func negatedAt(folded string, idx int) bool {
	before := strings.Fields(folded[:idx])
	if len(before) == 0 {
		return false
	}
	prev := before[len(before)-1]
	if negations[prev] {
		return true
	}
	// "không có máy lạnh"
	if prev == "co" && len(before) >= 2 && negations[before[len(before)-2]] {
		return true
	}
	return false
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
