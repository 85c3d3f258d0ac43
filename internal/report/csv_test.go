package report

import (
	"bytes"
	"encoding/csv"
	"testing"

	"serp-similarity/internal/analysis"
)

func TestWriteResultsCSV(t *testing.T) {
	run, assessment := fixtureRun(t, overlapProfiles())
	view, err := Assemble(run, assessment)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteResultsCSV(&buf, view); err != nil {
		t.Fatalf("write: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("records = %d, want header + 3 rows", len(records))
	}
	if records[0][0] != "Keyword" || records[0][1] != "Keyword SERP Similarity (%)" {
		t.Errorf("header = %v", records[0])
	}
	// Ranked order: the two 50% keywords first, the 0% keyword last.
	if records[1][1] != "50" {
		t.Errorf("first row percent = %q, want 50", records[1][1])
	}
	if records[3][0] != "car insurance" || records[3][1] != "0" {
		t.Errorf("last row = %v, want car insurance at 0", records[3])
	}
}

func TestWriteResultsCSV_UndefinedAverage(t *testing.T) {
	run, assessment := fixtureRun(t, []analysis.KeywordProfile{
		{Keyword: "solo", Keys: []string{"a.com"}},
	})
	view, err := Assemble(run, assessment)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteResultsCSV(&buf, view); err != nil {
		t.Fatalf("write: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if records[1][1] != "n/a" {
		t.Errorf("undefined average exported as %q, want n/a", records[1][1])
	}
}

func TestWriteMatrixCSV(t *testing.T) {
	run, _ := fixtureRun(t, []analysis.KeywordProfile{
		{Keyword: "a", Keys: []string{"x.com"}},
		{Keyword: "b", Keys: []string{"y.com"}},
	})

	var buf bytes.Buffer
	if err := WriteMatrixCSV(&buf, run.Report); err != nil {
		t.Fatalf("write: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("records = %d, want header + 4 ordered pairs", len(records))
	}
	if records[0][0] != "keyword_a" || records[0][2] != "similarity" {
		t.Errorf("header = %v", records[0])
	}

	got := map[string]string{}
	for _, r := range records[1:] {
		got[r[0]+"|"+r[1]] = r[2]
	}
	if got["a|a"] != "1.0000" || got["b|b"] != "1.0000" {
		t.Errorf("diagonal = %v, want 1.0000", got)
	}
	if got["a|b"] != "0.0000" || got["b|a"] != "0.0000" {
		t.Errorf("disjoint pair = %v, want symmetric 0.0000", got)
	}
}

func TestWriteMatrixCSV_NoMatrix(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMatrixCSV(&buf, nil); err == nil {
		t.Error("nil report must error")
	}
}
