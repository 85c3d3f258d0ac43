// Package report assembles the presentation view of a completed run: ranked
// average rows, chart bars, the styled similarity matrix and CSV exports.
// Everything here is a pure transformation of the stored report plus the
// verdict assessment; handlers call it at render time.
package report

import (
	"sort"
	"time"

	"serp-similarity/internal/analysis"
	"serp-similarity/internal/models"
	"serp-similarity/internal/verdict"
	errs "serp-similarity/pkg/errors"
)

// Row is one keyword's ranked average for the results table.
type Row struct {
	Rank    int
	Keyword string
	Percent int
	Defined bool
	Level   verdict.RiskLevel
	Reason  string
}

// Bar is one chart bar. Bars hold the same data as rows but sorted
// ascending, which reads better on a horizontal bar chart.
type Bar struct {
	Keyword string
	Percent int
}

// Cell is one similarity matrix cell with its display style.
type Cell struct {
	Value    float64
	Percent  int
	Style    string
	Diagonal bool
}

// MatrixView is the full matrix in submission order, row-major.
type MatrixView struct {
	Keywords []string
	Rows     [][]Cell
}

// PairRow is one classified keyword pair, worst first.
type PairRow struct {
	KeywordA   string
	KeywordB   string
	Percent    int
	Similarity float64
	Severity   verdict.Severity
	Reason     string
}

// View is everything the run page and the exports need, assembled once.
type View struct {
	RunID        string
	Status       models.RunStatus
	Options      models.RunOptions
	Keywords     []string
	Rows         []Row
	Bars         []Bar
	Matrix       MatrixView
	Pairs        []PairRow
	Counts       map[verdict.Severity]int
	WorstPair    *PairRow
	Cannibalized bool
	Insights     string
	Skipped      []string
	Rules        map[string]string
	GeneratedAt  time.Time
}

// Assemble builds the view for a completed run. The assessment must come
// from the same matrix the report carries; handlers recompute it with the
// default classifier since verdicts are a pure function of the matrix.
func Assemble(run *models.Run, assessment *verdict.Summary) (*View, error) {
	const op = "report.Assemble"

	if run == nil {
		return nil, errs.NewBiz(op, "run is nil", nil)
	}
	if run.Report == nil || run.Report.Matrix == nil {
		return nil, errs.NewBiz(op, "run has no report to assemble", nil)
	}
	if assessment == nil {
		return nil, errs.NewBiz(op, "assessment is nil", nil)
	}

	rep := run.Report

	view := &View{
		RunID:        run.ID,
		Status:       run.Status,
		Options:      run.Options,
		Keywords:     rep.Keywords,
		Counts:       assessment.Counts,
		Cannibalized: assessment.Cannibalized,
		Insights:     rep.Insights,
		Skipped:      rep.Skipped,
		Rules:        assessment.Rules,
		GeneratedAt:  rep.GeneratedAt,
	}

	view.Rows = buildRows(assessment.Risks)
	view.Bars = buildBars(assessment.Risks)
	view.Matrix = buildMatrix(rep.Matrix, assessment.Pairs)
	view.Pairs = buildPairs(assessment.Pairs)
	if len(view.Pairs) > 0 {
		worst := view.Pairs[0]
		view.WorstPair = &worst
	}

	return view, nil
}

// buildRows ranks keywords by average overlap, highest first. Undefined
// averages (single-keyword runs) sink to the bottom without a rank score.
func buildRows(risks []verdict.KeywordRisk) []Row {
	rows := make([]Row, 0, len(risks))
	for _, r := range risks {
		rows = append(rows, Row{
			Keyword: r.Keyword,
			Percent: analysis.Percent(r.Average),
			Defined: r.Defined,
			Level:   r.Level,
			Reason:  r.Reason,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Defined != rows[j].Defined {
			return rows[i].Defined
		}
		return rows[i].Percent > rows[j].Percent
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

// buildBars returns defined averages sorted ascending for the chart.
func buildBars(risks []verdict.KeywordRisk) []Bar {
	bars := make([]Bar, 0, len(risks))
	for _, r := range risks {
		if !r.Defined {
			continue
		}
		bars = append(bars, Bar{Keyword: r.Keyword, Percent: analysis.Percent(r.Average)})
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Percent < bars[j].Percent })
	return bars
}

// buildMatrix lays the matrix out row-major with a display style per cell.
func buildMatrix(m *analysis.Matrix, pairs []verdict.PairVerdict) MatrixView {
	severities := make(map[string]map[string]verdict.Severity, len(m.Keywords))
	for _, p := range pairs {
		if severities[p.KeywordA] == nil {
			severities[p.KeywordA] = make(map[string]verdict.Severity)
		}
		if severities[p.KeywordB] == nil {
			severities[p.KeywordB] = make(map[string]verdict.Severity)
		}
		severities[p.KeywordA][p.KeywordB] = p.Severity
		severities[p.KeywordB][p.KeywordA] = p.Severity
	}

	mv := MatrixView{Keywords: m.Keywords, Rows: make([][]Cell, 0, len(m.Keywords))}
	for _, a := range m.Keywords {
		row := make([]Cell, 0, len(m.Keywords))
		for _, b := range m.Keywords {
			v, _ := m.At(a, b)
			cell := Cell{Value: v, Percent: analysis.Percent(v)}
			if a == b {
				cell.Diagonal = true
				cell.Style = "sim-self"
			} else {
				cell.Style = styleFor(severities[a][b])
			}
			row = append(row, cell)
		}
		mv.Rows = append(mv.Rows, row)
	}
	return mv
}

func buildPairs(pairs []verdict.PairVerdict) []PairRow {
	out := make([]PairRow, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, PairRow{
			KeywordA:   p.KeywordA,
			KeywordB:   p.KeywordB,
			Percent:    analysis.Percent(p.Similarity),
			Similarity: p.Similarity,
			Severity:   p.Severity,
			Reason:     p.Reason,
		})
	}
	return out
}

// styleFor maps a severity onto the CSS class the matrix template uses.
func styleFor(s verdict.Severity) string {
	switch s {
	case verdict.SeveritySevere:
		return "sim-severe"
	case verdict.SeverityHigh:
		return "sim-high"
	case verdict.SeverityModerate:
		return "sim-moderate"
	case verdict.SeverityLow:
		return "sim-low"
	default:
		return "sim-none"
	}
}
