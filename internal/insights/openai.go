package insights

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sashabaranov/go-openai"

	"serp-similarity/internal/prompts"
	"serp-similarity/pkg/circuit"
	errs "serp-similarity/pkg/errors"
)

// CostTracker tracks OpenAI API usage and costs
type CostTracker struct {
	mu               sync.RWMutex
	totalTokens      int
	totalRequests    int
	estimatedCostUSD float64
	startTime        time.Time
}

func NewCostTracker() *CostTracker {
	return &CostTracker{startTime: time.Now()}
}

func (c *CostTracker) AddUsage(promptTokens, completionTokens int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalTokens += promptTokens + completionTokens
	c.totalRequests++

	// gpt-4o-mini pricing (as of 2025): $0.15/1M prompt tokens, $0.60/1M completion tokens
	promptCost := float64(promptTokens) * 0.00015 / 1000
	completionCost := float64(completionTokens) * 0.0006 / 1000
	c.estimatedCostUSD += promptCost + completionCost
}

func (c *CostTracker) GetStats() (totalTokens, totalRequests int, estimatedCostUSD float64, duration time.Duration) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.totalTokens, c.totalRequests, c.estimatedCostUSD, time.Since(c.startTime)
}

// chatClient is the slice of the OpenAI client we actually use.
// Tests substitute a mock; production passes *openai.Client.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config tunes the OpenAI summarizer.
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// DefaultConfig matches the application defaults: a cheap model, low
// temperature for consistent phrasing, and a bounded response.
func DefaultConfig() Config {
	return Config{
		Model:       "gpt-4o-mini",
		Temperature: 0.1,
		MaxTokens:   400,
	}
}

const (
	systemPromptName = "insights_system"
	userPromptName   = "insights_user"

	cacheTTL     = 24 * time.Hour
	cacheCleanup = 30 * time.Minute
)

// OpenAISummarizer renders the findings into a prompt and asks a chat model
// for the assessment. Identical inputs are served from cache so reruns of
// the same keyword set cost nothing.
type OpenAISummarizer struct {
	client  chatClient
	prompts *prompts.Manager
	breaker *circuit.Breaker
	cache   *gocache.Cache
	cost    *CostTracker
	cfg     Config
}

func NewOpenAISummarizer(apiKey string, cfg Config, pm *prompts.Manager, breaker *circuit.Breaker) *OpenAISummarizer {
	return newOpenAISummarizer(openai.NewClient(apiKey), cfg, pm, breaker)
}

func newOpenAISummarizer(client chatClient, cfg Config, pm *prompts.Manager, breaker *circuit.Breaker) *OpenAISummarizer {
	if cfg.Model == "" {
		cfg = DefaultConfig()
	}
	return &OpenAISummarizer{
		client:  client,
		prompts: pm,
		breaker: breaker,
		cache:   gocache.New(cacheTTL, cacheCleanup),
		cost:    NewCostTracker(),
		cfg:     cfg,
	}
}

// GetCostStats returns current API usage statistics
func (s *OpenAISummarizer) GetCostStats() (totalTokens, totalRequests int, estimatedCostUSD float64, duration time.Duration) {
	return s.cost.GetStats()
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, in Input) (string, error) {
	// Fewer than two keywords leave no pairs to assess; the heuristic writes
	// the boundary text, so don't spend an API call on it.
	if in.KeywordCount < 2 {
		return "", errs.NewInsufficientData("insights.Summarize",
			"fewer than two keywords produced results, nothing to compare", nil)
	}

	systemPrompt, err := s.prompts.Render(systemPromptName, in)
	if err != nil {
		return "", err
	}
	userPrompt, err := s.prompts.Render(userPromptName, in)
	if err != nil {
		return "", err
	}

	key := s.cacheKey(userPrompt)
	if cached, found := s.cache.Get(key); found {
		if text, ok := cached.(string); ok {
			return text, nil
		}
	}

	var text string
	call := func(ctx context.Context) error {
		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: s.cfg.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
			Temperature: float32(s.cfg.Temperature),
			MaxTokens:   s.cfg.MaxTokens,
		})
		if err != nil {
			return errs.NewExternal("insights.Summarize", "openai", "chat completion failed", err)
		}

		s.cost.AddUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

		if len(resp.Choices) == 0 {
			return errs.NewExternal("insights.Summarize", "openai", "empty completion response", nil)
		}
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
		if text == "" {
			return errs.NewExternal("insights.Summarize", "openai", "blank completion text", nil)
		}
		return nil
	}

	if s.breaker != nil {
		err = s.breaker.Do(ctx, call, nil)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", err
	}

	s.cache.Set(key, text, gocache.DefaultExpiration)
	return text, nil
}

// cacheKey hashes the rendered prompt; the prompt already encodes every
// input that affects the answer.
func (s *OpenAISummarizer) cacheKey(userPrompt string) string {
	sum := md5.Sum([]byte(s.cfg.Model + "|" + userPrompt))
	return hex.EncodeToString(sum[:])
}

var _ Summarizer = (*OpenAISummarizer)(nil)
