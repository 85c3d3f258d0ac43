package runner

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"serp-similarity/internal/analysis"
	"serp-similarity/internal/constants"
	"serp-similarity/internal/extract"
	"serp-similarity/internal/insights"
	"serp-similarity/internal/models"
	"serp-similarity/internal/serp"
	"serp-similarity/internal/store"
	"serp-similarity/internal/verdict"
	errs "serp-similarity/pkg/errors"
	"serp-similarity/pkg/events"
	"serp-similarity/pkg/metrics"
)

var (
	mRunsCompleted = metrics.Default.Counter("runs_completed_total", "Runs that produced a report")
	mRunsFailed    = metrics.Default.Counter("runs_failed_total", "Runs that ended in failure")
	mKeywordsOK    = metrics.Default.Counter("keywords_fetched_total", "Keyword SERPs fetched successfully")
	mKeywordsFail  = metrics.Default.Counter("keywords_failed_total", "Keywords skipped after exhausting fetch retries")
	mFetchRetries  = metrics.Default.Counter("serp_fetch_retries_total", "SERP fetch attempts beyond the first")
	mRunDuration   = metrics.Default.Histogram("run_duration_seconds", "Wall time per run from pickup to terminal state",
		[]float64{1, 5, 15, 30, 60, 120, 300})
)

// fetchJob is one keyword SERP request within a run
type fetchJob struct {
	runID   string
	keyword string
	opts    serp.FetchOptions
	out     chan<- fetchResult
}

// fetchResult is the outcome of a fetch job after retries
type fetchResult struct {
	keyword  string
	results  []serp.Result
	cached   bool
	attempts int
	err      error
}

// EngineStats tracks engine-wide counters since startup
type EngineStats struct {
	TotalRuns        int64
	CompletedRuns    int64
	SuccessfulRuns   int64
	FailedRuns       int64
	CannibalizedRuns int64
	KeywordsFetched  int64
	KeywordsSkipped  int64
	AverageRunMs     int64
	StartTime        time.Time
	LastActivity     time.Time
	WorkerCount      int
	QueueDepth       int64
	SerpFetches      int64
	OpenAICalls      int64
	TotalCostUSD     float64
}

// Config holds configuration for the analysis engine
type Config struct {
	WorkerCount    int           // concurrent keyword fetchers
	RunConcurrency int           // runs processed in parallel
	MaxRetries     int           // retries per keyword fetch
	RetryDelay     time.Duration // base delay, scaled quadratically per attempt
	KeywordTimeout time.Duration // per-keyword budget including retries
	RunTimeout     time.Duration // whole-run budget including insights
	QueueSize      int           // keyword job queue buffer
	RunQueueSize   int           // run queue buffer
	SerpRPS        float64       // SERP provider requests per second
	SerpBurst      int           // SERP provider burst capacity
	OpenAIRPS      float64       // OpenAI requests per second
	OpenAIBurst    int           // OpenAI burst capacity
}

// DefaultConfig returns defaults sized for a single-node deployment. SERP
// rates stay low on purpose: SerpAPI bills per search and DuckDuckGo blocks
// aggressive clients.
func DefaultConfig() Config {
	return Config{
		WorkerCount:    4,
		RunConcurrency: 2,
		MaxRetries:     3,
		RetryDelay:     constants.FetchRetryDelayDefault,
		KeywordTimeout: constants.FetchJobTimeoutDefault,
		RunTimeout:     5 * time.Minute,
		QueueSize:      256,
		RunQueueSize:   16,
		SerpRPS:        5,
		SerpBurst:      10,
		OpenAIRPS:      2,
		OpenAIBurst:    4,
	}
}

// cacheChecker is implemented by providers that can say whether a query
// would be served from cache. Used to annotate keyword events.
type cacheChecker interface {
	Cached(query string, opts serp.FetchOptions) bool
}

// costReporter is implemented by summarizers that track API spend.
type costReporter interface {
	GetCostStats() (totalTokens, totalRequests int, estimatedCostUSD float64, duration time.Duration)
}

// AnalysisEngine runs keyword-cannibalization analyses: it fans each run's
// keywords out to a fetch worker pool, then aggregates, classifies and
// summarizes the results and persists the report.
type AnalysisEngine struct {
	store      store.RunStore
	events     events.EventStore
	provider   serp.Provider
	extractor  *extract.Extractor
	classifier *verdict.Classifier
	summarizer insights.Summarizer
	fallback   *insights.HeuristicSummarizer

	// Configuration
	workerCount    int
	runConcurrency int
	maxRetries     int
	retryDelay     time.Duration
	keywordTimeout time.Duration
	runTimeout     time.Duration

	// Mode flags
	insightsEnabled bool

	// Rate limiters
	serpLimit   *rate.Limiter
	openAILimit *rate.Limiter

	// Processing control
	runQueue chan *models.Run
	jobQueue chan fetchJob
	ctx      context.Context
	cancel   context.CancelFunc
	runWg    sync.WaitGroup
	fetchWg  sync.WaitGroup

	// Statistics
	stats   EngineStats
	statsMu sync.RWMutex

	// Shutdown control. submitMu orders Submit against the runQueue close so
	// a late submission can never hit a closed channel.
	shutdown     chan struct{}
	shutdownOnce sync.Once
	submitMu     sync.RWMutex
}

// NewEngine creates an analysis engine. The summarizer may be nil, in which
// case the deterministic heuristic writes the insights text.
func NewEngine(st store.RunStore, provider serp.Provider, summarizer insights.Summarizer, config Config) *AnalysisEngine {
	ctx, cancel := context.WithCancel(context.Background())

	def := DefaultConfig()
	if config.WorkerCount <= 0 {
		config.WorkerCount = def.WorkerCount
	}
	if config.RunConcurrency <= 0 {
		config.RunConcurrency = def.RunConcurrency
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = def.MaxRetries
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = def.RetryDelay
	}
	if config.KeywordTimeout <= 0 {
		config.KeywordTimeout = def.KeywordTimeout
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = def.RunTimeout
	}
	if config.QueueSize <= 0 {
		config.QueueSize = def.QueueSize
	}
	if config.RunQueueSize <= 0 {
		config.RunQueueSize = def.RunQueueSize
	}
	if config.SerpRPS <= 0 {
		config.SerpRPS = def.SerpRPS
	}
	if config.SerpBurst <= 0 {
		config.SerpBurst = def.SerpBurst
	}
	if config.OpenAIRPS <= 0 {
		config.OpenAIRPS = def.OpenAIRPS
	}
	if config.OpenAIBurst <= 0 {
		config.OpenAIBurst = def.OpenAIBurst
	}

	engine := &AnalysisEngine{
		store:           st,
		provider:        provider,
		extractor:       extract.NewDefault(),
		classifier:      verdict.NewDefault(),
		summarizer:      summarizer,
		fallback:        insights.NewHeuristicSummarizer(),
		workerCount:     config.WorkerCount,
		runConcurrency:  config.RunConcurrency,
		maxRetries:      config.MaxRetries,
		retryDelay:      config.RetryDelay,
		keywordTimeout:  config.KeywordTimeout,
		runTimeout:      config.RunTimeout,
		insightsEnabled: true,
		serpLimit:       rate.NewLimiter(rate.Limit(config.SerpRPS), config.SerpBurst),
		openAILimit:     rate.NewLimiter(rate.Limit(config.OpenAIRPS), config.OpenAIBurst),
		runQueue:        make(chan *models.Run, config.RunQueueSize),
		jobQueue:        make(chan fetchJob, config.QueueSize),
		ctx:             ctx,
		cancel:          cancel,
		shutdown:        make(chan struct{}),
		stats: EngineStats{
			StartTime:    time.Now(),
			LastActivity: time.Now(),
			WorkerCount:  config.WorkerCount,
		},
	}

	return engine
}

// SetEventStore attaches an event store. Nil disables event emission.
func (e *AnalysisEngine) SetEventStore(es events.EventStore) {
	e.events = es
}

// SetExtractor overrides the default extractor, e.g. with a custom key rule.
func (e *AnalysisEngine) SetExtractor(ex *extract.Extractor) {
	if ex != nil {
		e.extractor = ex
	}
}

// SetClassifier overrides the default verdict thresholds.
func (e *AnalysisEngine) SetClassifier(c *verdict.Classifier) {
	if c != nil {
		e.classifier = c
	}
}

// SetInsightsEnabled toggles the insights stage at runtime. Flipped by the
// config watcher without restarting the engine.
func (e *AnalysisEngine) SetInsightsEnabled(enabled bool) {
	e.statsMu.Lock()
	e.insightsEnabled = enabled
	e.statsMu.Unlock()
}

func (e *AnalysisEngine) insightsOn() bool {
	e.statsMu.RLock()
	defer e.statsMu.RUnlock()
	return e.insightsEnabled
}

// Start begins the engine's run orchestrators and fetch workers
func (e *AnalysisEngine) Start() {
	log.Printf("Starting analysis engine with %d fetch workers, %d run slots", e.workerCount, e.runConcurrency)

	for i := 0; i < e.workerCount; i++ {
		e.fetchWg.Add(1)
		go e.fetchWorker(i)
	}

	for i := 0; i < e.runConcurrency; i++ {
		e.runWg.Add(1)
		go e.runWorker(i)
	}

	log.Println("Analysis engine started successfully")
}

// Stop gracefully shuts down the engine. Queued runs get until the timeout
// to drain; whatever is still in flight after that is aborted via context.
func (e *AnalysisEngine) Stop(timeout time.Duration) error {
	var err error

	e.shutdownOnce.Do(func() {
		log.Println("Initiating graceful shutdown of analysis engine")

		// Refuse new submissions, then close the queue so run workers exit
		// once it drains. The write lock waits out any Submit in flight.
		close(e.shutdown)
		e.submitMu.Lock()
		close(e.runQueue)
		e.submitMu.Unlock()

		done := make(chan struct{})
		go func() {
			e.runWg.Wait()
			close(done)
		}()

		select {
		case <-done:
			log.Println("All runs drained gracefully")
		case <-time.After(timeout):
			log.Println("Shutdown timeout reached, aborting in-flight runs")
			err = fmt.Errorf("shutdown timeout exceeded")
		}

		// Interrupt leftovers and stop the fetch workers.
		e.cancel()
		e.fetchWg.Wait()

		log.Println("Analysis engine shutdown complete")
	})

	return err
}

// Submit queues a run for analysis. The run must come from models.NewRun so
// keywords are parsed and options normalized; Submit persists it as pending
// before queuing so the caller can immediately link to the run page.
// source records the entry point ("web" or "api") in the run's audit trail.
func (e *AnalysisEngine) Submit(ctx context.Context, run *models.Run, source string) error {
	const op = "runner.Submit"

	if run == nil {
		return errs.NewValidation(op, "run is nil", nil)
	}
	if reason := Precheck(run.Keywords, run.Options); reason != nil {
		return errs.NewValidation(op, reason.Description, nil)
	}

	// An empty provider means the wired default; pin it now so the stored run
	// and its event trail name a concrete backend. Explicitly named providers
	// must be wired or the run is refused up front.
	if run.Options.Provider == "" {
		run.Options.Provider = e.provider.Name()
	} else if hp, ok := e.provider.(interface{ Has(name string) bool }); ok && !hp.Has(run.Options.Provider) {
		return errs.NewValidation(op,
			fmt.Sprintf("provider %q is not configured on this deployment", run.Options.Provider), nil)
	}

	e.submitMu.RLock()
	defer e.submitMu.RUnlock()

	select {
	case <-e.shutdown:
		return errs.NewBiz(op, ShuttingDown.Description, nil)
	default:
	}

	if err := e.store.Save(ctx, run); err != nil {
		return err
	}

	// Emit before enqueueing: a worker may pick the run up immediately, and
	// the queued event must precede started in the trail.
	e.emit(ctx, events.RunQueued{
		Base:         e.base(run),
		KeywordCount: len(run.Keywords),
		Provider:     run.Options.Provider,
		Triggered:    source,
	})

	select {
	case e.runQueue <- run:
		e.statsMu.Lock()
		e.stats.TotalRuns++
		e.statsMu.Unlock()
	default:
		e.emit(ctx, events.RunFailed{Base: e.base(run), Reason: QueueFull.Description})
		if derr := e.store.Delete(ctx, run.ID); derr != nil {
			log.Printf("Failed to remove unqueued run %s: %v", run.ID, derr)
		}
		return errs.NewBiz(op, QueueFull.Description, nil)
	}

	log.Printf("Queued run %s with %d keywords via %s", run.ID, len(run.Keywords), source)
	return nil
}

// DefaultProvider names the provider serving runs that do not pick one. The
// web layer preselects it on the submission form.
func (e *AnalysisEngine) DefaultProvider() string {
	return e.provider.Name()
}

// GetStats returns current engine statistics
func (e *AnalysisEngine) GetStats() EngineStats {
	e.statsMu.RLock()
	stats := e.stats
	e.statsMu.RUnlock()

	stats.QueueDepth = atomic.LoadInt64(&e.stats.QueueDepth)
	stats.KeywordsFetched = atomic.LoadInt64(&e.stats.KeywordsFetched)
	stats.KeywordsSkipped = atomic.LoadInt64(&e.stats.KeywordsSkipped)
	stats.SerpFetches = atomic.LoadInt64(&e.stats.SerpFetches)

	if cr, ok := e.summarizer.(costReporter); ok {
		_, requests, costUSD, _ := cr.GetCostStats()
		stats.OpenAICalls = int64(requests)
		stats.TotalCostUSD = costUSD
	}

	return stats
}

// runWorker processes runs from the queue
func (e *AnalysisEngine) runWorker(id int) {
	defer e.runWg.Done()

	log.Printf("Run worker %d started", id)
	defer log.Printf("Run worker %d stopped", id)

	for {
		select {
		case run, ok := <-e.runQueue:
			if !ok {
				return
			}
			e.processRun(run)
		case <-e.ctx.Done():
			return
		}
	}
}

// fetchWorker processes keyword fetch jobs from the queue
func (e *AnalysisEngine) fetchWorker(id int) {
	defer e.fetchWg.Done()

	for {
		select {
		case job := <-e.jobQueue:
			atomic.AddInt64(&e.stats.QueueDepth, -1)
			result := e.fetchKeyword(job)

			// Result channels are buffered to the run's keyword count, so
			// this send cannot block a live run. The ctx arm covers runs
			// abandoned during shutdown.
			select {
			case job.out <- result:
			case <-e.ctx.Done():
				return
			}

		case <-e.ctx.Done():
			return
		}
	}
}

// processRun executes the full pipeline for one run: fan out keyword
// fetches, collect profiles, aggregate, classify, summarize, persist.
func (e *AnalysisEngine) processRun(run *models.Run) {
	startTime := time.Now()
	timer := mRunDuration.Start()
	defer timer.Observe()

	ctx, cancel := context.WithTimeout(e.ctx, e.runTimeout)
	defer cancel()

	started := time.Now().UTC()
	run.Status = models.RunStatusFetching
	run.StartedAt = &started
	if err := e.store.Save(ctx, run); err != nil {
		log.Printf("Failed to mark run %s as fetching: %v", run.ID, err)
	}

	e.emit(ctx, events.RunStarted{
		Base:         e.base(run),
		KeywordCount: len(run.Keywords),
		Provider:     run.Options.Provider,
		Location:     run.Options.Location,
	})

	log.Printf("Processing run %s: %d keywords via %s", run.ID, len(run.Keywords), run.Options.Provider)

	fetched, skipped := e.fetchAll(ctx, run)
	if ctx.Err() != nil {
		e.failRun(context.Background(), run, fmt.Errorf("run cancelled during fetch: %w", ctx.Err()), startTime)
		return
	}
	if len(fetched) == 0 {
		e.failRun(ctx, run, fmt.Errorf("all %d keyword fetches failed", len(run.Keywords)), startTime)
		return
	}

	// Build profiles in submission order; the matrix preserves it.
	profiles := make([]analysis.KeywordProfile, 0, len(fetched))
	for _, kw := range run.Keywords {
		res, ok := fetched[kw]
		if !ok {
			continue
		}
		keys, extractErrs := e.extractor.Extract(res.results, run.Options.Mode, run.Options.ResultCount)
		if len(extractErrs) > 0 {
			log.Printf("Run %s keyword %q: %d results lacked a usable URL", run.ID, kw, len(extractErrs))
		}
		profiles = append(profiles, analysis.KeywordProfile{Keyword: kw, Keys: keys})
	}

	matrix, averages := analysis.Aggregate(profiles)
	assessment := e.classifier.Assess(matrix, averages)

	report := &models.SimilarityReport{
		Keywords:    matrix.Keywords,
		Profiles:    profiles,
		Matrix:      matrix,
		Averages:    averages,
		Skipped:     skipped,
		GeneratedAt: time.Now().UTC(),
	}

	if e.insightsOn() {
		text, err := e.summarize(ctx, run.Options, report, assessment)
		if err != nil {
			log.Printf("Run %s: insights unavailable: %v", run.ID, err)
		} else {
			report.Insights = text
		}
	}

	run.Report = report
	e.completeRun(ctx, run, assessment, startTime)
}

// fetchAll fans the run's keywords out to the worker pool and collects the
// outcomes. Failed keywords come back in skipped, formatted for the report.
func (e *AnalysisEngine) fetchAll(ctx context.Context, run *models.Run) (map[string]fetchResult, []string) {
	opts := serp.FetchOptions{
		Location: run.Options.Location,
		Limit:    run.Options.ResultCount,
		Provider: run.Options.Provider,
	}

	results := make(chan fetchResult, len(run.Keywords))
	queued := 0
	for _, kw := range run.Keywords {
		job := fetchJob{runID: run.ID, keyword: kw, opts: opts, out: results}
		select {
		case e.jobQueue <- job:
			atomic.AddInt64(&e.stats.QueueDepth, 1)
			queued++
		case <-ctx.Done():
			return nil, nil
		}
	}

	fetched := make(map[string]fetchResult, queued)
	var skipped []string
	for i := 0; i < queued; i++ {
		select {
		case res := <-results:
			if res.err != nil {
				atomic.AddInt64(&e.stats.KeywordsSkipped, 1)
				mKeywordsFail.Inc(1)
				skipped = append(skipped, fmt.Sprintf("%s: %v", res.keyword, res.err))
				e.emit(ctx, events.KeywordFailed{
					Base:     e.base(run),
					Keyword:  res.keyword,
					Attempts: res.attempts,
					Reason:   res.err.Error(),
				})
				log.Printf("Run %s: keyword %q skipped after %d attempts: %v", run.ID, res.keyword, res.attempts, res.err)
			} else {
				atomic.AddInt64(&e.stats.KeywordsFetched, 1)
				mKeywordsOK.Inc(1)
				fetched[res.keyword] = res
				e.emit(ctx, events.KeywordFetched{
					Base:    e.base(run),
					Keyword: res.keyword,
					Results: len(res.results),
					Cached:  res.cached,
				})
			}

			run.Progress.Fetched++
			if err := e.store.Save(ctx, run); err != nil {
				log.Printf("Failed to save progress for run %s: %v", run.ID, err)
			}
		case <-ctx.Done():
			return fetched, skipped
		}
	}

	// Deterministic skip order for the report
	if len(skipped) > 1 {
		ordered := make([]string, 0, len(skipped))
		for _, kw := range run.Keywords {
			for _, s := range skipped {
				if strings.HasPrefix(s, kw+": ") {
					ordered = append(ordered, s)
					break
				}
			}
		}
		if len(ordered) == len(skipped) {
			skipped = ordered
		}
	}

	return fetched, skipped
}

// fetchKeyword performs one keyword fetch with rate limiting and retries
func (e *AnalysisEngine) fetchKeyword(job fetchJob) fetchResult {
	ctx, cancel := context.WithTimeout(e.ctx, e.keywordTimeout)
	defer cancel()

	res := fetchResult{keyword: job.keyword}
	if cc, ok := e.provider.(cacheChecker); ok {
		res.cached = cc.Cached(job.keyword, job.opts)
	}

	var err error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff delay
			delay := time.Duration(attempt*attempt) * e.retryDelay
			mFetchRetries.Inc(1)
			log.Printf("Retrying keyword %q for run %s (attempt %d) after %v delay", job.keyword, job.runID, attempt+1, delay)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				res.attempts = attempt
				res.err = fmt.Errorf("fetch cancelled during retry delay: %w", ctx.Err())
				return res
			}
		}
		res.attempts = attempt + 1

		if err = e.serpLimit.Wait(ctx); err != nil {
			res.err = fmt.Errorf("serp rate limit wait cancelled: %w", err)
			return res
		}

		var items []serp.Result
		items, err = e.provider.Fetch(ctx, job.keyword, job.opts)
		atomic.AddInt64(&e.stats.SerpFetches, 1)
		if err == nil {
			res.results = items
			return res
		}

		if !isRetryableError(err) {
			log.Printf("Non-retryable error for keyword %q: %v", job.keyword, err)
			break
		}
	}

	res.err = err
	return res
}

// summarize produces the insights text, falling back to the deterministic
// heuristic when the configured summarizer fails or is absent.
func (e *AnalysisEngine) summarize(ctx context.Context, opts models.RunOptions, report *models.SimilarityReport, assessment *verdict.Summary) (string, error) {
	in := insights.BuildInput(opts, report, assessment)

	if e.summarizer != nil {
		if err := e.openAILimit.Wait(ctx); err != nil {
			return "", fmt.Errorf("openai rate limit wait cancelled: %w", err)
		}
		text, err := e.summarizer.Summarize(ctx, in)
		if err == nil {
			return text, nil
		}
		// Too few keywords is an expected boundary the heuristic narrates,
		// not a summarizer failure worth a log line.
		if !errs.Is(err, errs.ErrInsufficientData) {
			log.Printf("Summarizer failed, falling back to heuristic: %v", err)
		}
	}

	return e.fallback.Summarize(ctx, in)
}

// completeRun persists the terminal completed state and updates stats
func (e *AnalysisEngine) completeRun(ctx context.Context, run *models.Run, assessment *verdict.Summary, startTime time.Time) {
	completed := time.Now().UTC()
	run.Status = models.RunStatusCompleted
	run.CompletedAt = &completed
	run.Error = ""

	if err := e.store.Save(ctx, run); err != nil {
		log.Printf("Failed to save completed run %s: %v", run.ID, err)
	}

	ev := events.RunCompleted{
		Base:         e.base(run),
		KeywordCount: len(run.Keywords),
		PairCount:    len(assessment.Pairs),
		Cannibalized: assessment.Cannibalized,
		DurationMs:   time.Since(startTime).Milliseconds(),
	}
	if assessment.WorstPair != nil {
		ev.WorstPair = assessment.WorstPair.KeywordA + " / " + assessment.WorstPair.KeywordB
		ev.WorstSimilarity = assessment.WorstPair.Similarity
	}
	e.emit(ctx, ev)

	mRunsCompleted.Inc(1)
	e.recordFinished(startTime, true, assessment.Cannibalized)

	log.Printf("Completed run %s in %dms (cannibalized=%v)", run.ID, time.Since(startTime).Milliseconds(), assessment.Cannibalized)
}

// failRun persists the terminal failed state and updates stats
func (e *AnalysisEngine) failRun(ctx context.Context, run *models.Run, cause error, startTime time.Time) {
	completed := time.Now().UTC()
	run.Status = models.RunStatusFailed
	run.CompletedAt = &completed
	run.Error = cause.Error()

	if err := e.store.Save(ctx, run); err != nil {
		log.Printf("Failed to save failed run %s: %v", run.ID, err)
	}

	e.emit(ctx, events.RunFailed{
		Base:   e.base(run),
		Reason: cause.Error(),
	})

	mRunsFailed.Inc(1)
	e.recordFinished(startTime, false, false)

	log.Printf("Run %s failed: %v", run.ID, cause)
}

// recordFinished updates the rolling engine statistics for a terminal run
func (e *AnalysisEngine) recordFinished(startTime time.Time, success, cannibalized bool) {
	elapsed := time.Since(startTime).Milliseconds()

	e.statsMu.Lock()
	e.stats.CompletedRuns++
	e.stats.LastActivity = time.Now()
	if e.stats.CompletedRuns == 1 {
		e.stats.AverageRunMs = elapsed
	} else {
		e.stats.AverageRunMs = (e.stats.AverageRunMs + elapsed) / 2
	}
	if success {
		e.stats.SuccessfulRuns++
		if cannibalized {
			e.stats.CannibalizedRuns++
		}
	} else {
		e.stats.FailedRuns++
	}
	e.statsMu.Unlock()
}

// emit appends events when a store is attached; failures only log
func (e *AnalysisEngine) emit(ctx context.Context, evs ...events.Event) {
	if e.events == nil {
		return
	}
	if err := e.events.Append(ctx, evs...); err != nil {
		log.Printf("Failed to append run events: %v", err)
	}
}

// base builds common event metadata for a run
func (e *AnalysisEngine) base(run *models.Run) events.Base {
	b := events.Base{Ts: time.Now().UTC(), RID: run.ID}
	if run.RequestedBy != "" {
		analyst := run.RequestedBy
		b.Ana = &analyst
	}
	return b
}

// isRetryableError determines if a fetch error should trigger a retry.
// Matches on message text because provider errors arrive as wrapped strings
// from several HTTP layers.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()

	retryableErrors := []string{
		"timeout",
		"deadline exceeded",
		"rate limit",
		"quota exceeded",
		"server error",
		"service unavailable",
		"internal server error",
		"connection refused",
		"connection reset",
		"temporary failure",
	}

	for _, retryable := range retryableErrors {
		if containsAny(errStr, []string{retryable}) {
			return true
		}
	}

	return false
}

// containsAny checks if a string contains any of the given substrings
func containsAny(s string, substrings []string) bool {
	s = strings.ToLower(s)
	for _, substring := range substrings {
		if strings.Contains(s, strings.ToLower(substring)) {
			return true
		}
	}
	return false
}
