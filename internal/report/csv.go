package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"serp-similarity/internal/models"
	errs "serp-similarity/pkg/errors"
)

// Download filenames offered by the export endpoints.
const (
	ResultsCSVFilename = "serp_similarity_results.csv"
	MatrixCSVFilename  = "serp_similarity_matrix.csv"
)

// WriteResultsCSV writes the ranked averages table. Undefined averages
// export as n/a so a single-keyword run never shows a fake score.
func WriteResultsCSV(w io.Writer, view *View) error {
	const op = "report.WriteResultsCSV"

	if view == nil {
		return errs.NewBiz(op, "view is nil", nil)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Keyword", "Keyword SERP Similarity (%)"}); err != nil {
		return errs.NewBiz(op, "write header", err)
	}
	for _, row := range view.Rows {
		pct := "n/a"
		if row.Defined {
			pct = strconv.Itoa(row.Percent)
		}
		if err := cw.Write([]string{row.Keyword, pct}); err != nil {
			return errs.NewBiz(op, fmt.Sprintf("write row for %q", row.Keyword), err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errs.NewBiz(op, "flush", err)
	}
	return nil
}

// WriteMatrixCSV writes the full matrix in long form, one ordered pair per
// line including the diagonal, so spreadsheets can pivot it back into a grid.
func WriteMatrixCSV(w io.Writer, report *models.SimilarityReport) error {
	const op = "report.WriteMatrixCSV"

	if report == nil || report.Matrix == nil {
		return errs.NewBiz(op, "report has no matrix", nil)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"keyword_a", "keyword_b", "similarity"}); err != nil {
		return errs.NewBiz(op, "write header", err)
	}
	m := report.Matrix
	for _, a := range m.Keywords {
		for _, b := range m.Keywords {
			v, ok := m.At(a, b)
			if !ok {
				continue
			}
			if err := cw.Write([]string{a, b, strconv.FormatFloat(v, 'f', 4, 64)}); err != nil {
				return errs.NewBiz(op, fmt.Sprintf("write pair %q/%q", a, b), err)
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errs.NewBiz(op, "flush", err)
	}
	return nil
}
