package store

import (
	"context"
	"testing"
	"time"

	"serp-similarity/internal/analysis"
	"serp-similarity/internal/models"
	testutil "serp-similarity/internal/testing"
)

// Integration tests; skipped unless DATABASE_URL_TEST or DATABASE_URL is set.

func newMySQLTestStore(t *testing.T) (*MySQLStore, *testutil.DBTest) {
	t.Helper()
	d := testutil.NewDBTest(t)
	s, err := NewMySQLStore(d.DB)
	if err != nil {
		d.Close()
		t.Fatalf("NewMySQLStore: %+v", err)
	}
	d.Truncate()
	t.Cleanup(func() {
		d.Truncate()
		_ = s.Close()
		d.Close()
	})
	return s, d
}

func completedRun(keywords ...string) *models.Run {
	run := models.NewRun(keywords, models.DefaultRunOptions(), "tester")
	profiles := make([]analysis.KeywordProfile, len(keywords))
	for i, kw := range keywords {
		profiles[i] = analysis.KeywordProfile{Keyword: kw, Keys: []string{kw + ".com"}}
	}
	matrix, averages := analysis.Aggregate(profiles)
	started := run.CreatedAt.Add(time.Second)
	completed := started.Add(2 * time.Second)
	run.Status = models.RunStatusCompleted
	run.StartedAt = &started
	run.CompletedAt = &completed
	run.Progress = models.RunProgress{Fetched: len(keywords), Total: len(keywords)}
	run.Report = &models.SimilarityReport{
		Keywords:    matrix.Keywords,
		Profiles:    profiles,
		Matrix:      matrix,
		Averages:    averages,
		GeneratedAt: completed,
	}
	return run
}

func TestMySQLStore_SaveGetRoundTrip(t *testing.T) {
	s, _ := newMySQLTestStore(t)
	ctx := context.Background()

	run := completedRun("seo tools", "seo software")
	if err := s.Save(ctx, run); err != nil {
		t.Fatalf("Save: %+v", err)
	}

	got, err := s.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get: %+v", err)
	}
	if got.Status != models.RunStatusCompleted {
		t.Errorf("Status = %s, want completed", got.Status)
	}
	if len(got.Keywords) != 2 || got.Keywords[0] != "seo tools" {
		t.Errorf("Keywords = %+v", got.Keywords)
	}
	if got.RequestedBy != "tester" {
		t.Errorf("RequestedBy = %q", got.RequestedBy)
	}
	if got.Report == nil || got.Report.Matrix == nil {
		t.Fatalf("report did not survive the round trip: %+v", got.Report)
	}
	if v, ok := got.Report.Matrix.At("seo tools", "seo software"); !ok || v != 0.0 {
		t.Errorf("matrix cell = %v,%v, want 0.0 for disjoint profiles", v, ok)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Fatal("timestamps did not survive the round trip")
	}
	if d := got.CreatedAt.Sub(run.CreatedAt); d > time.Second || d < -time.Second {
		t.Errorf("CreatedAt drifted by %v", d)
	}
}

func TestMySQLStore_SaveIsUpsert(t *testing.T) {
	s, _ := newMySQLTestStore(t)
	ctx := context.Background()

	run := models.NewRun([]string{"a"}, models.DefaultRunOptions(), "")
	if err := s.Save(ctx, run); err != nil {
		t.Fatalf("initial Save: %+v", err)
	}

	run.Status = models.RunStatusFailed
	run.Error = "all 1 keyword fetches failed"
	if err := s.Save(ctx, run); err != nil {
		t.Fatalf("second Save: %+v", err)
	}

	got, err := s.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get: %+v", err)
	}
	if got.Status != models.RunStatusFailed || got.Error != run.Error {
		t.Errorf("upsert lost lifecycle fields: %s %q", got.Status, got.Error)
	}

	if n, err := s.Count(ctx); err != nil || n != 1 {
		t.Errorf("Count = %d, %v; want 1 row after upsert", n, err)
	}
}

func TestMySQLStore_ListNewestFirst(t *testing.T) {
	s, _ := newMySQLTestStore(t)
	ctx := context.Background()

	older := models.NewRun([]string{"a"}, models.DefaultRunOptions(), "")
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	newer := models.NewRun([]string{"b", "c"}, models.DefaultRunOptions(), "")
	for _, r := range []*models.Run{older, newer} {
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("Save: %+v", err)
		}
	}

	got, total, err := s.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("List: %+v", err)
	}
	if total != 2 || len(got) != 2 {
		t.Fatalf("List returned %d of %d, want 2 of 2", len(got), total)
	}
	if got[0].ID != newer.ID {
		t.Errorf("first summary = %s, want newest run %s", got[0].ID, newer.ID)
	}
	if got[0].KeywordCount != 2 {
		t.Errorf("KeywordCount = %d, want 2", got[0].KeywordCount)
	}
}

func TestMySQLStore_DeleteMissing(t *testing.T) {
	s, _ := newMySQLTestStore(t)
	ctx := context.Background()

	run := models.NewRun([]string{"a"}, models.DefaultRunOptions(), "")
	if err := s.Save(ctx, run); err != nil {
		t.Fatalf("Save: %+v", err)
	}
	if err := s.Delete(ctx, run.ID); err != nil {
		t.Fatalf("Delete: %+v", err)
	}
	if err := s.Delete(ctx, run.ID); err != ErrNotFound {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
	if _, err := s.Get(ctx, run.ID); err != ErrNotFound {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}
