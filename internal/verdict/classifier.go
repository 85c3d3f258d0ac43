// Package verdict turns raw similarity numbers into cannibalization
// classifications: per-pair severity and per-keyword risk. It is pure and
// deterministic so reports and the API can re-derive verdicts from a stored
// matrix at any time.
package verdict

import (
	"fmt"
	"sort"

	"serp-similarity/internal/analysis"
	"serp-similarity/internal/constants"
)

// Severity classifies one keyword pair's SERP overlap.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeveritySevere   Severity = "severe"
)

var severityRank = map[Severity]int{
	SeverityNone:     0,
	SeverityLow:      1,
	SeverityModerate: 2,
	SeverityHigh:     3,
	SeveritySevere:   4,
}

// Rank orders severities for sorting; higher is worse.
func (s Severity) Rank() int { return severityRank[s] }

// RiskLevel classifies one keyword's average overlap against the whole set.
type RiskLevel string

const (
	RiskUnknown  RiskLevel = "unknown"
	RiskNormal   RiskLevel = "normal"
	RiskElevated RiskLevel = "elevated"
	RiskHigh     RiskLevel = "high"
)

// Config allows tuning the classifier without code changes.
// Defaults mirror the cutoffs in internal/constants.
type Config struct {
	Severe   float64
	High     float64
	Moderate float64
	Low      float64

	RiskHigh     float64
	RiskElevated float64
}

// DefaultConfig returns cutoffs that match the documented scale.
func DefaultConfig() Config {
	return Config{
		Severe:       constants.OverlapSevere,
		High:         constants.OverlapHigh,
		Moderate:     constants.OverlapModerate,
		Low:          constants.OverlapLow,
		RiskHigh:     constants.KeywordRiskHigh,
		RiskElevated: constants.KeywordRiskElevated,
	}
}

// Classifier applies severity and risk cutoffs consistently.
type Classifier struct {
	cfg Config
}

func NewClassifier(cfg Config) *Classifier { return &Classifier{cfg: cfg} }
func NewDefault() *Classifier              { return NewClassifier(DefaultConfig()) }

// PairVerdict is the classification of one unordered keyword pair.
type PairVerdict struct {
	KeywordA   string   `json:"keyword_a"`
	KeywordB   string   `json:"keyword_b"`
	Similarity float64  `json:"similarity"`
	Severity   Severity `json:"severity"`
	Reason     string   `json:"reason"`
}

// KeywordRisk is the classification of one keyword's average overlap.
type KeywordRisk struct {
	Keyword string    `json:"keyword"`
	Average float64   `json:"average"`
	Defined bool      `json:"defined"`
	Level   RiskLevel `json:"level"`
	Reason  string    `json:"reason"`
}

// Summary is the full assessment of a run: every pair classified and sorted
// worst-first, every keyword's risk in input order, and rollup counts.
type Summary struct {
	Pairs        []PairVerdict     `json:"pairs"`
	Risks        []KeywordRisk     `json:"risks"`
	Counts       map[Severity]int  `json:"counts"`
	WorstPair    *PairVerdict      `json:"worst_pair,omitempty"`
	Cannibalized bool              `json:"cannibalized"`
	Rules        map[string]string `json:"rules,omitempty"`
}

// ClassifyPair maps a similarity value onto the severity scale. Values at or
// above a cutoff take that level.
func (c *Classifier) ClassifyPair(v float64) Severity {
	switch {
	case v >= c.cfg.Severe:
		return SeveritySevere
	case v >= c.cfg.High:
		return SeverityHigh
	case v >= c.cfg.Moderate:
		return SeverityModerate
	case v >= c.cfg.Low:
		return SeverityLow
	default:
		return SeverityNone
	}
}

// ClassifyAverage maps a keyword average onto the risk scale. Undefined
// averages (single-keyword runs) come back unknown.
func (c *Classifier) ClassifyAverage(avg analysis.Average) RiskLevel {
	if !avg.Defined {
		return RiskUnknown
	}
	switch {
	case avg.Value >= c.cfg.RiskHigh:
		return RiskHigh
	case avg.Value >= c.cfg.RiskElevated:
		return RiskElevated
	default:
		return RiskNormal
	}
}

// Assess classifies every unordered pair and every keyword of a run.
// Pairs come back sorted by similarity descending, ties broken by matrix
// order, so the worst offenders lead.
func (c *Classifier) Assess(m *analysis.Matrix, avgs map[string]analysis.Average) *Summary {
	s := &Summary{Counts: make(map[Severity]int), Rules: c.Rules()}
	if m == nil {
		return s
	}

	idx := make(map[string]int, len(m.Keywords))
	for i, k := range m.Keywords {
		idx[k] = i
	}

	for i := 0; i < len(m.Keywords); i++ {
		for j := i + 1; j < len(m.Keywords); j++ {
			a, b := m.Keywords[i], m.Keywords[j]
			v, ok := m.At(a, b)
			if !ok {
				continue
			}
			sev := c.ClassifyPair(v)
			s.Pairs = append(s.Pairs, PairVerdict{
				KeywordA:   a,
				KeywordB:   b,
				Similarity: v,
				Severity:   sev,
				Reason:     fmt.Sprintf("%s, similarity=%.2f", describeSeverity(sev), v),
			})
			s.Counts[sev]++
		}
	}

	sort.SliceStable(s.Pairs, func(x, y int) bool {
		if s.Pairs[x].Similarity != s.Pairs[y].Similarity {
			return s.Pairs[x].Similarity > s.Pairs[y].Similarity
		}
		if s.Pairs[x].KeywordA != s.Pairs[y].KeywordA {
			return idx[s.Pairs[x].KeywordA] < idx[s.Pairs[y].KeywordA]
		}
		return idx[s.Pairs[x].KeywordB] < idx[s.Pairs[y].KeywordB]
	})

	if len(s.Pairs) > 0 {
		worst := s.Pairs[0]
		s.WorstPair = &worst
		s.Cannibalized = worst.Severity.Rank() >= SeverityHigh.Rank()
	}

	for _, k := range m.Keywords {
		avg := avgs[k]
		level := c.ClassifyAverage(avg)
		s.Risks = append(s.Risks, KeywordRisk{
			Keyword: k,
			Average: avg.Value,
			Defined: avg.Defined,
			Level:   level,
			Reason:  describeRisk(level, avg),
		})
	}

	return s
}

// Rules returns a human-readable description of the active cutoffs for
// report footers and prompt building.
func (c *Classifier) Rules() map[string]string {
	return map[string]string{
		"severe":        fmt.Sprintf("similarity >= %.2f: near-duplicate results, pages compete for the same intent", c.cfg.Severe),
		"high":          fmt.Sprintf("similarity >= %.2f: heavy overlap, consolidation worth considering", c.cfg.High),
		"moderate":      fmt.Sprintf("similarity >= %.2f: partial overlap, monitor rankings", c.cfg.Moderate),
		"low":           fmt.Sprintf("similarity >= %.2f: incidental overlap", c.cfg.Low),
		"none":          fmt.Sprintf("similarity < %.2f: distinct results", c.cfg.Low),
		"risk_high":     fmt.Sprintf("average >= %.2f: keyword overlaps most of the set", c.cfg.RiskHigh),
		"risk_elevated": fmt.Sprintf("average >= %.2f: keyword overlaps parts of the set", c.cfg.RiskElevated),
	}
}

func describeSeverity(s Severity) string {
	switch s {
	case SeveritySevere:
		return "near-duplicate results"
	case SeverityHigh:
		return "heavy overlap"
	case SeverityModerate:
		return "partial overlap"
	case SeverityLow:
		return "incidental overlap"
	default:
		return "distinct results"
	}
}

func describeRisk(level RiskLevel, avg analysis.Average) string {
	if !avg.Defined {
		return "not enough keywords to average"
	}
	switch level {
	case RiskHigh:
		return fmt.Sprintf("overlaps most of the set, avg=%.2f", avg.Value)
	case RiskElevated:
		return fmt.Sprintf("overlaps parts of the set, avg=%.2f", avg.Value)
	default:
		return fmt.Sprintf("mostly distinct, avg=%.2f", avg.Value)
	}
}
