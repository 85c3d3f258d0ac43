package insights

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	"serp-similarity/internal/analysis"
	"serp-similarity/internal/models"
	"serp-similarity/internal/prompts"
	"serp-similarity/internal/verdict"
	errs "serp-similarity/pkg/errors"
)

// mockChatClient returns canned completions and records the prompts it saw.
type mockChatClient struct {
	reply     string
	err       error
	callCount int
	lastUser  string
	lastSys   string
}

func (m *mockChatClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.callCount++
	for _, msg := range req.Messages {
		switch msg.Role {
		case openai.ChatMessageRoleSystem:
			m.lastSys = msg.Content
		case openai.ChatMessageRoleUser:
			m.lastUser = msg.Content
		}
	}
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: m.reply}},
		},
		Usage: openai.Usage{PromptTokens: 120, CompletionTokens: 80, TotalTokens: 200},
	}, nil
}

func testInput() Input {
	return Input{
		Provider:     "serpapi",
		ResultCount:  9,
		Mode:         "domain",
		KeywordCount: 3,
		Pairs: []PairLine{
			{KeywordA: "best running shoes", KeywordB: "running shoes review", Percent: 83, Severity: "severe"},
			{KeywordA: "best running shoes", KeywordB: "trail shoes", Percent: 12, Severity: "low"},
			{KeywordA: "running shoes review", KeywordB: "trail shoes", Percent: 5, Severity: "none"},
		},
		Averages: []AverageLine{
			{Keyword: "best running shoes", Percent: 48, Defined: true},
			{Keyword: "running shoes review", Percent: 44, Defined: true},
			{Keyword: "trail shoes", Percent: 9, Defined: true},
		},
		Rules: "severe: similarity >= 0.80",
	}
}

func newTestSummarizer(t *testing.T, client chatClient) *OpenAISummarizer {
	t.Helper()
	pm, err := prompts.NewManager()
	if err != nil {
		t.Fatalf("prompts.NewManager() error = %v", err)
	}
	return newOpenAISummarizer(client, DefaultConfig(), pm, nil)
}

func TestCostTracker(t *testing.T) {
	tracker := NewCostTracker()

	tokens, requests, cost, _ := tracker.GetStats()
	if tokens != 0 || requests != 0 || cost != 0.0 {
		t.Errorf("initial state: tokens=%d requests=%d cost=%f, want all zero", tokens, requests, cost)
	}

	tracker.AddUsage(1000, 500)
	tokens, requests, cost, _ = tracker.GetStats()

	wantCost := (1000 * 0.00015 / 1000) + (500 * 0.0006 / 1000)
	if tokens != 1500 {
		t.Errorf("tokens = %d, want 1500", tokens)
	}
	if requests != 1 {
		t.Errorf("requests = %d, want 1", requests)
	}
	if cost < wantCost-1e-9 || cost > wantCost+1e-9 {
		t.Errorf("cost = %f, want %f", cost, wantCost)
	}

	tracker.AddUsage(2000, 1000)
	tokens, requests, _, _ = tracker.GetStats()
	if tokens != 4500 || requests != 2 {
		t.Errorf("after second usage: tokens=%d requests=%d, want 4500/2", tokens, requests)
	}
}

func TestOpenAISummarizer_PromptCarriesFindings(t *testing.T) {
	client := &mockChatClient{reply: "The two shoe keywords compete for the same pages."}
	s := newTestSummarizer(t, client)

	text, err := s.Summarize(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if text != "The two shoe keywords compete for the same pages." {
		t.Errorf("Summarize() = %q, unexpected text", text)
	}

	for _, want := range []string{
		`"best running shoes" vs "running shoes review": 83% (severe)`,
		`"trail shoes": 9%`,
		"severe: similarity >= 0.80",
		"top 9 results per keyword",
	} {
		if !strings.Contains(client.lastUser, want) {
			t.Errorf("user prompt missing %q\nprompt:\n%s", want, client.lastUser)
		}
	}
	if !strings.Contains(client.lastSys, "SEO analyst") {
		t.Errorf("system prompt missing role, got:\n%s", client.lastSys)
	}
}

func TestOpenAISummarizer_CachesIdenticalRuns(t *testing.T) {
	client := &mockChatClient{reply: "Cached assessment."}
	s := newTestSummarizer(t, client)

	ctx := context.Background()
	in := testInput()

	if _, err := s.Summarize(ctx, in); err != nil {
		t.Fatalf("first Summarize() error = %v", err)
	}
	if _, err := s.Summarize(ctx, in); err != nil {
		t.Fatalf("second Summarize() error = %v", err)
	}
	if client.callCount != 1 {
		t.Errorf("API calls = %d, want 1 (second call should hit cache)", client.callCount)
	}

	// A different input must miss the cache.
	in.Pairs[0].Percent = 99
	if _, err := s.Summarize(ctx, in); err != nil {
		t.Fatalf("third Summarize() error = %v", err)
	}
	if client.callCount != 2 {
		t.Errorf("API calls = %d, want 2 after changed input", client.callCount)
	}
}

func TestOpenAISummarizer_SkipsSingleKeywordRuns(t *testing.T) {
	client := &mockChatClient{reply: "should never be asked"}
	s := newTestSummarizer(t, client)

	for _, count := range []int{0, 1} {
		in := Input{KeywordCount: count}
		_, err := s.Summarize(context.Background(), in)
		if !errs.Is(err, errs.ErrInsufficientData) {
			t.Errorf("KeywordCount=%d: error = %v, want insufficient-data", count, err)
		}
	}
	if client.callCount != 0 {
		t.Errorf("API calls = %d, want 0 for runs with nothing to compare", client.callCount)
	}
}

func TestOpenAISummarizer_BlankResponseIsError(t *testing.T) {
	client := &mockChatClient{reply: "   \n"}
	s := newTestSummarizer(t, client)

	if _, err := s.Summarize(context.Background(), testInput()); err == nil {
		t.Fatal("Summarize() error = nil, want error for blank completion")
	}
}

func TestOpenAISummarizer_TracksUsage(t *testing.T) {
	client := &mockChatClient{reply: "ok"}
	s := newTestSummarizer(t, client)

	if _, err := s.Summarize(context.Background(), testInput()); err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	tokens, requests, cost, _ := s.GetCostStats()
	if tokens != 200 || requests != 1 {
		t.Errorf("usage = %d tokens / %d requests, want 200/1", tokens, requests)
	}
	if cost <= 0 {
		t.Errorf("cost = %f, want > 0", cost)
	}
}

func TestHeuristicSummarizer(t *testing.T) {
	h := NewHeuristicSummarizer()
	ctx := context.Background()

	t.Run("flags worst pair", func(t *testing.T) {
		text, err := h.Summarize(ctx, testInput())
		if err != nil {
			t.Fatalf("Summarize() error = %v", err)
		}
		for _, want := range []string{"best running shoes", "running shoes review", "83%"} {
			if !strings.Contains(text, want) {
				t.Errorf("summary missing %q: %s", want, text)
			}
		}
	})

	t.Run("single keyword", func(t *testing.T) {
		in := Input{KeywordCount: 1, Averages: []AverageLine{{Keyword: "solo"}}}
		text, err := h.Summarize(ctx, in)
		if err != nil {
			t.Fatalf("Summarize() error = %v", err)
		}
		if !strings.Contains(text, "at least two keywords") {
			t.Errorf("summary should mention the two-keyword minimum: %s", text)
		}
	})

	t.Run("no keywords", func(t *testing.T) {
		text, err := h.Summarize(ctx, Input{})
		if err != nil {
			t.Fatalf("Summarize() error = %v", err)
		}
		if !strings.Contains(text, "nothing to compare") {
			t.Errorf("summary should say there is nothing to compare: %s", text)
		}
	})

	t.Run("mentions skipped keywords", func(t *testing.T) {
		in := testInput()
		in.SkippedList = "trail shoes 2025"
		text, err := h.Summarize(ctx, in)
		if err != nil {
			t.Fatalf("Summarize() error = %v", err)
		}
		if !strings.Contains(text, "trail shoes 2025") {
			t.Errorf("summary should list skipped keywords: %s", text)
		}
	})
}

func TestBuildInput(t *testing.T) {
	opts := models.RunOptions{Provider: "serpapi", ResultCount: 9, Mode: "domain"}

	report := &models.SimilarityReport{
		Keywords: []string{"alpha", "beta"},
		Averages: map[string]analysis.Average{
			"alpha": {Value: 0.665, Defined: true},
			"beta":  {Value: 0.665, Defined: true},
		},
		Skipped:     []string{"gamma", "delta"},
		GeneratedAt: time.Now(),
	}

	assessment := &verdict.Summary{
		Pairs: []verdict.PairVerdict{
			{KeywordA: "alpha", KeywordB: "beta", Similarity: 0.665, Severity: verdict.SeverityHigh},
		},
		Rules: map[string]string{"high": "similarity >= 0.60"},
	}

	in := BuildInput(opts, report, assessment)

	if in.KeywordCount != 2 {
		t.Errorf("KeywordCount = %d, want 2", in.KeywordCount)
	}
	if len(in.Pairs) != 1 {
		t.Fatalf("Pairs = %d entries, want 1", len(in.Pairs))
	}
	if in.Pairs[0].Percent != 67 {
		t.Errorf("pair percent = %d, want 67 (0.665 rounds up)", in.Pairs[0].Percent)
	}
	if in.Pairs[0].Severity != "high" {
		t.Errorf("pair severity = %q, want %q", in.Pairs[0].Severity, "high")
	}
	if in.SkippedList != "gamma, delta" {
		t.Errorf("SkippedList = %q, want %q", in.SkippedList, "gamma, delta")
	}
	if !strings.Contains(in.Rules, "high: similarity >= 0.60") {
		t.Errorf("Rules = %q, missing cutoff text", in.Rules)
	}
	if len(in.Averages) != 2 || !in.Averages[0].Defined {
		t.Errorf("Averages = %+v, want 2 defined lines", in.Averages)
	}
}

func TestBuildInput_CapsPairList(t *testing.T) {
	opts := models.RunOptions{Provider: "serpapi", ResultCount: 9, Mode: "domain"}
	report := &models.SimilarityReport{Keywords: []string{"a"}}
	assessment := &verdict.Summary{}
	for i := 0; i < maxPromptPairs+5; i++ {
		assessment.Pairs = append(assessment.Pairs, verdict.PairVerdict{KeywordA: "a", KeywordB: "b"})
	}

	in := BuildInput(opts, report, assessment)
	if len(in.Pairs) != maxPromptPairs {
		t.Errorf("Pairs = %d entries, want capped at %d", len(in.Pairs), maxPromptPairs)
	}
}

func TestBuildInput_UndefinedAverage(t *testing.T) {
	opts := models.RunOptions{Provider: "serpapi", ResultCount: 9, Mode: "domain"}
	report := &models.SimilarityReport{
		Keywords: []string{"solo"},
		Averages: map[string]analysis.Average{"solo": {}},
	}

	in := BuildInput(opts, report, &verdict.Summary{})
	if len(in.Averages) != 1 {
		t.Fatalf("Averages = %d entries, want 1", len(in.Averages))
	}
	if in.Averages[0].Defined {
		t.Error("single-keyword average should be undefined")
	}
}
