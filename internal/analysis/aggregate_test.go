package analysis

import (
	"math"
	"testing"
)

func profile(keyword string, keys ...string) KeywordProfile {
	return KeywordProfile{Keyword: keyword, Keys: keys}
}

func cell(t *testing.T, m *Matrix, a, b string) float64 {
	t.Helper()
	v, ok := m.At(a, b)
	if !ok {
		t.Fatalf("missing cell (%q, %q)", a, b)
	}
	return v
}

func TestAggregate_SharedAndDisjointProfiles(t *testing.T) {
	m, avgs := Aggregate([]KeywordProfile{
		profile("buy shoes", "x.com", "y.com"),
		profile("shoes online", "x.com", "y.com"),
		profile("weather", "z.com"),
	})

	if got := cell(t, m, "buy shoes", "shoes online"); got != 1.0 {
		t.Fatalf("identical profiles: got %v, want 1.0", got)
	}
	if got := cell(t, m, "buy shoes", "weather"); got != 0.0 {
		t.Fatalf("disjoint profiles: got %v, want 0.0", got)
	}

	want := map[string]Average{
		"buy shoes":    {Value: 0.5, Defined: true},
		"shoes online": {Value: 0.5, Defined: true},
		"weather":      {Value: 0.0, Defined: true},
	}
	for k, w := range want {
		got, ok := avgs[k]
		if !ok {
			t.Fatalf("missing average for %q", k)
		}
		if !got.Defined || math.Abs(got.Value-w.Value) > 1e-9 {
			t.Fatalf("average for %q: got %+v, want %+v", k, got, w)
		}
	}
}

func TestAggregate_MatrixIsSymmetric(t *testing.T) {
	m, _ := Aggregate([]KeywordProfile{
		profile("a", "one.com", "two.com", "three.com"),
		profile("b", "two.com", "three.com", "four.com"),
		profile("c", "five.com"),
		profile("d"),
	})

	for _, a := range m.Keywords {
		for _, b := range m.Keywords {
			ab := cell(t, m, a, b)
			ba := cell(t, m, b, a)
			if ab != ba {
				t.Fatalf("asymmetric pair (%q, %q): %v vs %v", a, b, ab, ba)
			}
		}
	}
}

func TestAggregate_DiagonalIsOne(t *testing.T) {
	m, _ := Aggregate([]KeywordProfile{
		profile("a", "one.com"),
		profile("b", "two.com", "three.com"),
		profile("c"),
	})

	for _, k := range m.Keywords {
		if got := cell(t, m, k, k); got != 1.0 {
			t.Fatalf("diagonal for %q: got %v, want 1.0", k, got)
		}
	}
}

func TestAggregate_ValuesWithinRange(t *testing.T) {
	m, avgs := Aggregate([]KeywordProfile{
		profile("a", "one.com", "two.com", "three.com", "four.com"),
		profile("b", "three.com", "one.com", "five.com"),
		profile("c", "six.com", "two.com"),
		profile("d"),
	})

	for _, a := range m.Keywords {
		for _, b := range m.Keywords {
			v := cell(t, m, a, b)
			if v < 0.0 || v > 1.0 {
				t.Fatalf("cell (%q, %q) out of range: %v", a, b, v)
			}
		}
	}
	for k, avg := range avgs {
		if avg.Value < 0.0 || avg.Value > 1.0 {
			t.Fatalf("average for %q out of range: %+v", k, avg)
		}
	}
}

func TestAggregate_SingleKeyword(t *testing.T) {
	m, avgs := Aggregate([]KeywordProfile{profile("only", "x.com", "y.com")})

	if m.Size() != 1 {
		t.Fatalf("matrix size: got %d, want 1", m.Size())
	}
	if got := cell(t, m, "only", "only"); got != 1.0 {
		t.Fatalf("1x1 diagonal: got %v, want 1.0", got)
	}
	avg, ok := avgs["only"]
	if !ok {
		t.Fatalf("missing average entry for single keyword")
	}
	if avg.Defined {
		t.Fatalf("single-keyword average should be undefined, got %+v", avg)
	}
}

func TestAggregate_EmptyProfilesParticipate(t *testing.T) {
	m, avgs := Aggregate([]KeywordProfile{
		profile("empty one"),
		profile("empty two"),
		profile("full", "x.com"),
	})

	if got := cell(t, m, "empty one", "empty two"); got != 1.0 {
		t.Fatalf("empty vs empty: got %v, want 1.0", got)
	}
	if got := cell(t, m, "empty one", "full"); got != 0.0 {
		t.Fatalf("empty vs non-empty: got %v, want 0.0", got)
	}
	if got := avgs["empty one"]; !got.Defined || math.Abs(got.Value-0.5) > 1e-9 {
		t.Fatalf("empty-profile average: got %+v, want 0.5", got)
	}
	if got := avgs["full"]; !got.Defined || got.Value != 0.0 {
		t.Fatalf("full-profile average: got %+v, want 0.0", got)
	}
}

func TestAggregate_PreservesInputOrder(t *testing.T) {
	m, _ := Aggregate([]KeywordProfile{
		profile("zulu", "z.com"),
		profile("alpha", "a.com"),
		profile("mike", "m.com"),
	})

	want := []string{"zulu", "alpha", "mike"}
	if len(m.Keywords) != len(want) {
		t.Fatalf("keyword count: got %d, want %d", len(m.Keywords), len(want))
	}
	for i, k := range want {
		if m.Keywords[i] != k {
			t.Fatalf("keyword order at %d: got %q, want %q", i, m.Keywords[i], k)
		}
	}
}

func TestAggregate_CollapsesDuplicateKeywords(t *testing.T) {
	m, avgs := Aggregate([]KeywordProfile{
		profile("dup", "x.com"),
		profile("dup", "y.com"),
		profile("other", "x.com"),
	})

	if m.Size() != 2 {
		t.Fatalf("matrix size: got %d, want 2", m.Size())
	}
	// First occurrence wins, so dup's profile is x.com and matches other.
	if got := cell(t, m, "dup", "other"); got != 1.0 {
		t.Fatalf("dup profile: got %v, want 1.0 from first occurrence", got)
	}
	if len(avgs) != 2 {
		t.Fatalf("averages count: got %d, want 2", len(avgs))
	}
}

func TestAggregate_NoProfiles(t *testing.T) {
	m, avgs := Aggregate(nil)
	if m.Size() != 0 {
		t.Fatalf("matrix size: got %d, want 0", m.Size())
	}
	if len(avgs) != 0 {
		t.Fatalf("averages count: got %d, want 0", len(avgs))
	}
}
