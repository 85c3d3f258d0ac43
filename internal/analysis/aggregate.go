// Package analysis builds the pairwise similarity matrix and per-keyword
// averages from extracted comparison-key profiles. Pure computation over
// in-memory inputs; results are plain serializable values rebuilt fresh on
// every run.
package analysis

import (
	"math"

	"serp-similarity/internal/similarity"
)

// Percent converts a similarity ratio to the whole-number percentage shown
// in reports and CSV exports. Plain rounding, so 0.666 reports as 67.
func Percent(v float64) int {
	return int(math.Round(v * 100))
}

// KeywordProfile is one keyword's ordered comparison keys. Profiles are
// built once per run by the extractor and never mutated afterwards.
type KeywordProfile struct {
	Keyword string   `json:"keyword"`
	Keys    []string `json:"keys"`
}

// Average is a keyword's mean similarity against all other keywords.
// Defined is false when the run held fewer than two keywords; the value is
// then meaningless and must not be displayed as a score.
type Average struct {
	Value   float64 `json:"value"`
	Defined bool    `json:"defined"`
}

// Matrix is the symmetric keyword-by-keyword similarity table. Keywords
// preserves input order for display; Cells[a][b] == Cells[b][a] and the
// diagonal is fixed at 1.0.
type Matrix struct {
	Keywords []string                      `json:"keywords"`
	Cells    map[string]map[string]float64 `json:"cells"`
}

// At returns the similarity for a keyword pair.
func (m *Matrix) At(a, b string) (float64, bool) {
	row, ok := m.Cells[a]
	if !ok {
		return 0, false
	}
	v, ok := row[b]
	return v, ok
}

// Size returns the number of keywords in the matrix.
func (m *Matrix) Size() int { return len(m.Keywords) }

// Aggregate computes the similarity matrix and averages for a run.
//
// Every unordered pair is scored exactly once and mirrored into both cells.
// Keywords with empty profiles still get a full row: 0.0 against non-empty
// profiles and 1.0 against other empty ones (the empty/empty boundary of the
// ratio), so the output always has one row and column per input keyword.
// With a single keyword the matrix is 1x1 and the average is flagged
// undefined rather than dividing by zero.
//
// Duplicate keywords are collapsed to their first occurrence.
func Aggregate(profiles []KeywordProfile) (*Matrix, map[string]Average) {
	order := make([]string, 0, len(profiles))
	keys := make(map[string][]string, len(profiles))
	for _, p := range profiles {
		if _, seen := keys[p.Keyword]; seen {
			continue
		}
		order = append(order, p.Keyword)
		keys[p.Keyword] = p.Keys
	}

	n := len(order)
	cells := make(map[string]map[string]float64, n)
	for _, k := range order {
		cells[k] = make(map[string]float64, n)
		cells[k][k] = 1.0
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a, b := order[i], order[j]
			r := similarity.Ratio(keys[a], keys[b])
			cells[a][b] = r
			cells[b][a] = r
		}
	}

	averages := make(map[string]Average, n)
	if n < 2 {
		for _, k := range order {
			averages[k] = Average{}
		}
		return &Matrix{Keywords: order, Cells: cells}, averages
	}

	for _, k := range order {
		sum := 0.0
		for _, other := range order {
			if other == k {
				continue
			}
			sum += cells[k][other]
		}
		averages[k] = Average{Value: sum / float64(n-1), Defined: true}
	}

	return &Matrix{Keywords: order, Cells: cells}, averages
}
