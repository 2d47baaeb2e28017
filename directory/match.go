package directory

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// matchThreshold is the minimum normalized similarity for a fuzzy name match.
const matchThreshold = 0.4

// honorifics are stripped before comparison so "Dr. Grey" scores like "Grey".
var honorifics = map[string]bool{
	"dr": true, "mr": true, "mrs": true, "ms": true, "prof": true,
}

// closestMatch performs one ranked pass over the full catalog and returns the
// highest-scoring provider when its similarity reaches matchThreshold. Ties
// keep the first provider in catalog order. The scoring compares the
// normalized query against several variants of each catalog name (as
// written, "Last, First" reordered, token-sorted) so reordered and
// misspelled inputs still resolve.
func (d *Directory) closestMatch(query string) (Provider, bool) {
	q := normalizeName(query)
	if q == "" {
		return Provider{}, false
	}
	qSorted := sortTokens(q)
	singleToken := len(strings.Fields(q)) == 1

	best := -1
	bestScore := 0.0
	for i, p := range d.providers {
		normalized := normalizeName(p.Name)
		score := 0.0
		for _, v := range nameVariants(p.Name) {
			if s := similarity(q, v); s > score {
				score = s
			}
		}
		if s := similarity(qSorted, sortTokens(normalized)); s > score {
			score = s
		}
		// A bare single-token query ("House") is scored against each name
		// token so surname-only lookups resolve.
		if singleToken {
			for _, t := range strings.Fields(normalized) {
				if s := similarity(q, t); s > score {
					score = s
				}
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 || bestScore < matchThreshold {
		return Provider{}, false
	}
	return d.providers[best], true
}

// similarity is a normalized edit-distance metric in [0,1]; 1.0 means
// identical strings.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	longest := max(len(a), len(b))
	if longest == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(longest)
}

// nameVariants returns the comparison forms of a catalog name: normalized as
// written, plus the "First Last" reordering when the name is written
// "Last, First".
func nameVariants(name string) []string {
	variants := []string{normalizeName(name)}
	if last, first, ok := strings.Cut(name, ","); ok {
		variants = append(variants, normalizeName(first+" "+last))
	}
	return variants
}

// normalizeName lowercases, drops punctuation and honorific tokens, and
// collapses whitespace.
func normalizeName(name string) string {
	lowered := strings.ToLower(name)
	lowered = strings.Map(func(r rune) rune {
		switch r {
		case ',', '.', ';':
			return ' '
		}
		return r
	}, lowered)
	tokens := strings.Fields(lowered)
	kept := tokens[:0]
	for _, t := range tokens {
		if !honorifics[t] {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, " ")
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
