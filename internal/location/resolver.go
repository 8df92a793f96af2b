// Package location resolves place names to canonical ward codes using a
// static legacy-mapping dataset: old administrative names, common
// abbreviations, and current codes. The table is built once at startup;
// lookups are trimmed, diacritic-folded, exact-key map hits. A miss means "no
// location narrowing available", never an error.
package location

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/timtro-cloud/timtro/internal/vntext"
)

//go:embed data/legacy_wards.yaml
var embeddedDataset []byte

type wardEntry struct {
	Code    string   `yaml:"code"`
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

type districtEntry struct {
	Name    string      `yaml:"name"`
	Aliases []string    `yaml:"aliases"`
	Wards   []wardEntry `yaml:"wards"`
}

type dataset struct {
	Districts []districtEntry `yaml:"districts"`
}

// Resolver answers alias->code questions over the legacy mapping.
type Resolver struct {
	districtCodes map[string][]string // folded district alias -> ward codes
	wardCode      map[string]string   // folded ward alias -> code
	codeDistrict  map[string]string   // ward code -> folded canonical district key
	districtNames []string            // folded canonical district keys, for scanning
}

// Default builds a resolver from the embedded dataset.
func Default() (*Resolver, error) {
	return parse(embeddedDataset)
}

// LoadFile builds a resolver from a YAML dataset on disk.
func LoadFile(path string) (*Resolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read location dataset: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Resolver, error) {
	var ds dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parse location dataset: %w", err)
	}
	if len(ds.Districts) == 0 {
		return nil, fmt.Errorf("location dataset is empty")
	}

	r := &Resolver{
		districtCodes: map[string][]string{},
		wardCode:      map[string]string{},
		codeDistrict:  map[string]string{},
	}

	for _, d := range ds.Districts {
		canonical := vntext.NormalizeFold(d.Name)
		codes := make([]string, 0, len(d.Wards))
		for _, w := range d.Wards {
			if w.Code == "" {
				return nil, fmt.Errorf("ward %q in %q has no code", w.Name, d.Name)
			}
			codes = append(codes, w.Code)
			r.codeDistrict[w.Code] = canonical

			for _, alias := range wardAliases(w) {
				r.wardCode[alias] = w.Code
			}
		}
		sort.Strings(codes)

		for _, alias := range districtAliases(d) {
			r.districtCodes[alias] = codes
		}
		r.districtNames = append(r.districtNames, canonical)
	}
	sort.Strings(r.districtNames)

	return r, nil
}

// wardAliases returns the folded lookup keys for a ward: full name, the name
// with the "phuong" prefix stripped, and explicit aliases.
func wardAliases(w wardEntry) []string {
	full := vntext.NormalizeFold(w.Name)
	out := []string{full}
	if stripped, ok := cutPrefix(full, "phuong "); ok {
		out = append(out, stripped)
	}
	for _, a := range w.Aliases {
		out = append(out, vntext.NormalizeFold(a))
	}
	return out
}

// districtAliases returns the folded lookup keys for a district: full name,
// the name with the "quan"/"thanh pho" prefix stripped, and explicit aliases.
func districtAliases(d districtEntry) []string {
	full := vntext.NormalizeFold(d.Name)
	out := []string{full}
	if stripped, ok := cutPrefix(full, "quan "); ok {
		out = append(out, stripped)
	}
	if stripped, ok := cutPrefix(full, "thanh pho "); ok {
		out = append(out, stripped)
	}
	for _, a := range d.Aliases {
		out = append(out, vntext.NormalizeFold(a))
	}
	return out
}

func cutPrefix(s, prefix string) (string, bool) {
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):], true
	}
	return "", false
}

// ExpandDistrictToLocationCodes resolves a district name or alias to the full
// set of current ward codes it maps onto.
func (r *Resolver) ExpandDistrictToLocationCodes(name string) ([]string, bool) {
	codes, ok := r.districtCodes[vntext.NormalizeFold(name)]
	if !ok {
		return nil, false
	}
	return append([]string(nil), codes...), true
}

// ResolveWardByName resolves a ward name or alias to its canonical code.
func (r *Resolver) ResolveWardByName(name string) (string, bool) {
	code, ok := r.wardCode[vntext.NormalizeFold(name)]
	return code, ok
}

// SiblingCodesInSameDistrict returns all ward codes sharing a former district
// with the given ward code or ward name, excluding the ward itself.
func (r *Resolver) SiblingCodesInSameDistrict(codeOrName string) ([]string, bool) {
	code := codeOrName
	if _, ok := r.codeDistrict[code]; !ok {
		resolved, ok := r.ResolveWardByName(codeOrName)
		if !ok {
			return nil, false
		}
		code = resolved
	}

	district := r.codeDistrict[code]
	all, ok := r.districtCodes[district]
	if !ok {
		return nil, false
	}

	siblings := make([]string, 0, len(all)-1)
	for _, c := range all {
		if c != code {
			siblings = append(siblings, c)
		}
	}
	return siblings, true
}

// MatchDistrictInText scans free text for the longest known district mention
// and returns the matched alias, usable with ExpandDistrictToLocationCodes.
// Ties break lexicographically so the result is deterministic.
func (r *Resolver) MatchDistrictInText(text string) (string, bool) {
	folded := vntext.NormalizeFold(text)
	best := ""
	for alias := range r.districtCodes {
		if len(alias) < 2 {
			continue
		}
		if !containsWord(folded, alias) {
			continue
		}
		if len(alias) > len(best) || (len(alias) == len(best) && alias < best) {
			best = alias
		}
	}
	return best, best != ""
}

// containsWord reports whether sub occurs in s on token boundaries, so "q1"
// does not match inside "q12".
func containsWord(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] != sub {
			continue
		}
		leftOK := i == 0 || s[i-1] == ' '
		right := i + len(sub)
		rightOK := right == len(s) || s[right] == ' ' || s[right] == ',' || s[right] == '.'
		if leftOK && rightOK {
			return true
		}
	}
	return false
}
