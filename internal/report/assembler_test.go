package report

import (
	"testing"
	"time"

	"serp-similarity/internal/analysis"
	"serp-similarity/internal/models"
	"serp-similarity/internal/verdict"
)

func fixtureRun(t *testing.T, profiles []analysis.KeywordProfile) (*models.Run, *verdict.Summary) {
	t.Helper()
	m, avgs := analysis.Aggregate(profiles)
	assessment := verdict.NewDefault().Assess(m, avgs)
	run := &models.Run{
		ID:      "run-fixture",
		Status:  models.RunStatusCompleted,
		Options: models.DefaultRunOptions(),
		Report: &models.SimilarityReport{
			Keywords:    m.Keywords,
			Profiles:    profiles,
			Matrix:      m,
			Averages:    avgs,
			GeneratedAt: time.Now().UTC(),
		},
	}
	return run, assessment
}

func overlapProfiles() []analysis.KeywordProfile {
	return []analysis.KeywordProfile{
		{Keyword: "vegan recipes", Keys: []string{"a.com", "b.com", "c.com"}},
		{Keyword: "plant based recipes", Keys: []string{"a.com", "b.com", "c.com"}},
		{Keyword: "car insurance", Keys: []string{"d.com", "e.com", "f.com"}},
	}
}

func TestAssembleRanksAndStyles(t *testing.T) {
	run, assessment := fixtureRun(t, overlapProfiles())

	view, err := Assemble(run, assessment)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	if len(view.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(view.Rows))
	}
	// The two overlapping keywords average 50%, the disjoint one 0%.
	if view.Rows[0].Percent != 50 || view.Rows[0].Rank != 1 {
		t.Errorf("top row = %+v, want rank 1 at 50%%", view.Rows[0])
	}
	if view.Rows[2].Keyword != "car insurance" || view.Rows[2].Percent != 0 {
		t.Errorf("bottom row = %+v, want car insurance at 0%%", view.Rows[2])
	}

	if len(view.Bars) != 3 {
		t.Fatalf("bars = %d, want 3", len(view.Bars))
	}
	if view.Bars[0].Keyword != "car insurance" {
		t.Errorf("first bar = %+v, want ascending order", view.Bars[0])
	}
	if view.Bars[2].Percent != 50 {
		t.Errorf("last bar = %+v, want 50%%", view.Bars[2])
	}

	m := view.Matrix
	if len(m.Rows) != 3 || len(m.Rows[0]) != 3 {
		t.Fatalf("matrix is not 3x3: %+v", m)
	}
	for i := range m.Rows {
		cell := m.Rows[i][i]
		if !cell.Diagonal || cell.Style != "sim-self" || cell.Value != 1.0 {
			t.Errorf("diagonal cell [%d][%d] = %+v", i, i, cell)
		}
	}
	// vegan recipes vs plant based recipes: identical profiles, severe.
	if got := m.Rows[0][1]; got.Style != "sim-severe" || got.Percent != 100 {
		t.Errorf("overlap cell = %+v, want sim-severe at 100%%", got)
	}
	// vegan recipes vs car insurance: disjoint, none.
	if got := m.Rows[0][2]; got.Style != "sim-none" || got.Percent != 0 {
		t.Errorf("disjoint cell = %+v, want sim-none at 0%%", got)
	}

	if len(view.Pairs) != 3 {
		t.Fatalf("pairs = %d, want 3", len(view.Pairs))
	}
	if view.Pairs[0].Percent != 100 || view.Pairs[0].Severity != verdict.SeveritySevere {
		t.Errorf("worst pair = %+v, want 100%% severe", view.Pairs[0])
	}
	if view.WorstPair == nil || view.WorstPair.KeywordA != "vegan recipes" {
		t.Errorf("worst pair pointer = %+v", view.WorstPair)
	}
	if !view.Cannibalized {
		t.Error("identical profiles should flag cannibalization")
	}
	if len(view.Rules) == 0 {
		t.Error("view should carry the classification rules for the footer")
	}
}

func TestAssembleSingleKeyword(t *testing.T) {
	run, assessment := fixtureRun(t, []analysis.KeywordProfile{
		{Keyword: "solo", Keys: []string{"a.com"}},
	})

	view, err := Assemble(run, assessment)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(view.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(view.Rows))
	}
	if view.Rows[0].Defined {
		t.Error("single-keyword average must be undefined")
	}
	if len(view.Bars) != 0 {
		t.Errorf("bars = %+v, want none for undefined averages", view.Bars)
	}
	if len(view.Pairs) != 0 || view.WorstPair != nil {
		t.Errorf("single keyword should yield no pairs, got %+v", view.Pairs)
	}
	if view.Cannibalized {
		t.Error("single keyword cannot cannibalize")
	}
}

func TestAssembleRejectsIncompleteRuns(t *testing.T) {
	_, assessment := fixtureRun(t, overlapProfiles())

	if _, err := Assemble(nil, assessment); err == nil {
		t.Error("nil run must error")
	}

	bare := &models.Run{ID: "no-report", Status: models.RunStatusFetching}
	if _, err := Assemble(bare, assessment); err == nil {
		t.Error("run without report must error")
	}

	run, _ := fixtureRun(t, overlapProfiles())
	if _, err := Assemble(run, nil); err == nil {
		t.Error("nil assessment must error")
	}
}
