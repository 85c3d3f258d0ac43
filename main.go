package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/cors"

	"serp-similarity/internal/auth"
	"serp-similarity/internal/constants"
	"serp-similarity/internal/insights"
	"serp-similarity/internal/prompts"
	"serp-similarity/internal/runner"
	"serp-similarity/internal/serp"
	"serp-similarity/internal/store"
	"serp-similarity/internal/web"
	"serp-similarity/pkg/circuit"
	"serp-similarity/pkg/config"
	"serp-similarity/pkg/container"
	"serp-similarity/pkg/database"
	"serp-similarity/pkg/events"
	"serp-similarity/pkg/health"
	"serp-similarity/pkg/logging"
	metricsPkg "serp-similarity/pkg/metrics"
	"serp-similarity/pkg/monitoring"
)

func main() {
	// Build container and register providers
	c := container.New()

	// Config (singleton)
	_ = c.Provide(func() *config.Config { return config.Load() }, true)

	// Structured logger (singleton)
	_ = c.Provide(func(cfg *config.Config) (*logging.Logger, error) {
		lc := logging.DefaultLogConfig()
		lc.Level = logging.ParseLevel(cfg.LogLevel)
		lc.Format = cfg.LogFormat
		lc.EnableFile = cfg.EnableFileLogging
		lc.FilePath = cfg.LogFile
		return logging.NewLogger(lc)
	}, true)

	// Database (singleton); nil when DATABASE_URL is unset and the in-memory
	// store serves the deployment
	_ = c.Provide(func(cfg *config.Config) (*database.DB, error) {
		if cfg.DatabaseURL == "" {
			return nil, nil
		}
		return database.NewWithConfig(cfg.DatabaseURL, cfg)
	}, true)

	// Run store (singleton)
	_ = c.Provide(func(cfg *config.Config, db *database.DB) (store.RunStore, error) {
		if db == nil {
			log.Println("DATABASE_URL not set; runs are kept in memory and lost on restart")
			return store.NewMemoryStore(), nil
		}
		return store.NewMySQLStore(db)
	}, true)

	// Event store (singleton)
	_ = c.Provide(func(db *database.DB) events.EventStore {
		if db == nil {
			return events.NewMemoryEventStore()
		}
		return events.NewSQLEventStore(db)
	}, true)

	// SERP providers (singleton): DuckDuckGo is always wired, SerpAPI only
	// with a key. Each live client sits behind its own breaker and cache;
	// the dispatcher routes per-run provider choices between them.
	_ = c.Provide(func(cfg *config.Config, logger *logging.Logger) (serp.Provider, error) {
		ddgBreaker := circuit.New(circuit.Config{
			Name:              serp.ProviderDuckDuckGo,
			OperationTimeout:  constants.SerpOperationTimeout,
			OpenFor:           constants.SerpOpenFor,
			MaxConsecFailures: 5,
			WindowSize:        20,
			FailureRate:       constants.CircuitFailureRate,
			SlowCallThreshold: constants.SerpSlowCallThreshold,
			SlowCallRate:      constants.CircuitSlowCallRate,
		}, logger)
		ddg := serp.NewCachingProvider(
			serp.NewBreakerProvider(serp.NewDuckDuckGoClient(cfg.SerpTimeout), ddgBreaker),
			cfg.SerpCacheTTL)

		var serpapi serp.Provider
		if cfg.SerpAPIKey != "" {
			client, err := serp.NewSerpAPIClient(cfg.SerpAPIKey, cfg.SerpTimeout)
			if err != nil {
				return nil, err
			}
			apiBreaker := circuit.New(circuit.Config{
				Name:              serp.ProviderSerpAPI,
				OperationTimeout:  constants.SerpOperationTimeout,
				OpenFor:           constants.SerpOpenFor,
				MaxConsecFailures: 5,
				WindowSize:        20,
				FailureRate:       constants.CircuitFailureRate,
				SlowCallThreshold: constants.SerpSlowCallThreshold,
				SlowCallRate:      constants.CircuitSlowCallRate,
			}, logger)
			serpapi = serp.NewCachingProvider(serp.NewBreakerProvider(client, apiBreaker), cfg.SerpCacheTTL)
		}

		switch {
		case cfg.SerpProvider == serp.ProviderSerpAPI && serpapi != nil:
			return serp.NewDispatcher(serpapi, ddg), nil
		case cfg.SerpProvider == serp.ProviderSerpAPI:
			log.Println("SERP_PROVIDER=serpapi but SERPAPI_KEY is unset; defaulting to duckduckgo")
			return serp.NewDispatcher(ddg), nil
		default:
			return serp.NewDispatcher(ddg, serpapi), nil
		}
	}, true)

	// Prompts manager with optional external overrides (singleton)
	_ = c.Provide(func(cfg *config.Config) (*prompts.Manager, error) {
		if cfg.PromptDir != "" {
			return prompts.NewManagerFromDir(cfg.PromptDir)
		}
		return prompts.NewManager()
	}, true)

	// Insights summarizer (singleton): OpenAI when a key is configured, the
	// deterministic heuristic otherwise
	_ = c.Provide(func(cfg *config.Config, pm *prompts.Manager, logger *logging.Logger) insights.Summarizer {
		if cfg.OpenAIAPIKey == "" {
			return insights.NewHeuristicSummarizer()
		}
		breaker := circuit.New(circuit.Config{
			Name:              "openai",
			OperationTimeout:  constants.InsightsOperationTimeout,
			OpenFor:           constants.InsightsOpenFor,
			MaxConsecFailures: 3,
			WindowSize:        20,
			FailureRate:       constants.OpenAICircuitFailureRate,
			SlowCallThreshold: constants.InsightsSlowCallThreshold,
			SlowCallRate:      constants.OpenAICircuitSlowCallRate,
		}, logger)
		return insights.NewOpenAISummarizer(cfg.OpenAIAPIKey, insights.Config{
			Model:       cfg.OpenAIModel,
			Temperature: cfg.OpenAITemperature,
			MaxTokens:   cfg.OpenAIMaxTokens,
		}, pm, breaker)
	}, true)

	// Analysis engine (singleton)
	_ = c.Provide(func(st store.RunStore, provider serp.Provider, summarizer insights.Summarizer, cfg *config.Config) *runner.AnalysisEngine {
		rc := runner.DefaultConfig()
		if cfg.WorkerCount > 0 {
			rc.WorkerCount = cfg.WorkerCount
		}
		if cfg.SerpMaxRetries >= 0 {
			rc.MaxRetries = cfg.SerpMaxRetries
		}
		if cfg.SerpRetryDelay > 0 {
			rc.RetryDelay = cfg.SerpRetryDelay
		}
		if cfg.SerpRateLimitRPS > 0 {
			rc.SerpRPS = cfg.SerpRateLimitRPS
		}
		if cfg.SerpRateLimitBurst > 0 {
			rc.SerpBurst = cfg.SerpRateLimitBurst
		}
		return runner.NewEngine(st, provider, summarizer, rc)
	}, true)

	// Resolve config early for validation and monitoring setup
	var cfg *config.Config
	if err := c.Resolve(&cfg); err != nil {
		log.Fatal("config resolve:", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("config validation: ", err)
	}
	monitoring.EnableProfiling(cfg.ProfilingEnabled)
	log.Println("Starting SERP similarity analyzer")

	var logger *logging.Logger
	if err := c.Resolve(&logger); err != nil {
		log.Fatal("logger resolve:", err)
	}
	logger.Info("Configuration loaded", logging.Any("config", cfg.GetConfigSummary()))

	// Load templates
	if err := web.LoadTemplates(Templates()); err != nil {
		log.Fatal("Failed to load templates:", err)
	}
	web.SetBasePath(cfg.BasePath)

	// Wire event store and insights toggle into the engine
	if err := c.Invoke(func(eng *runner.AnalysisEngine, es events.EventStore) {
		eng.SetEventStore(es)
		eng.SetInsightsEnabled(cfg.InsightsEnabled)
	}); err != nil {
		log.Printf("Event store init failed: %v", err)
	}

	// Resolve runtime dependencies
	var (
		db       *database.DB
		runStore store.RunStore
		evStore  events.EventStore
		eng      *runner.AnalysisEngine
	)
	if err := c.Resolve(&db); err != nil {
		log.Fatal("db resolve:", err)
	}
	if err := c.Resolve(&runStore); err != nil {
		log.Fatal("store resolve:", err)
	}
	if err := c.Resolve(&evStore); err != nil {
		log.Fatal("event store resolve:", err)
	}
	if err := c.Resolve(&eng); err != nil {
		log.Fatal("engine resolve:", err)
	}

	eng.Start()

	// Start config watcher for hot-reload (applies the insights toggle; pool
	// sizes and rate limits stay fixed for the process lifetime)
	cw := config.NewWatcher(time.Duration(cfg.ConfigReloadIntervalSeconds) * time.Second)
	cw.Start()
	chgCh := cw.Subscribe()
	go func() {
		for chg := range chgCh {
			if chg.Err != nil {
				log.Printf("Config reload failed: %v", chg.Err)
				continue
			}
			eng.SetInsightsEnabled(chg.New.InsightsEnabled)
			cfg = chg.New
			log.Printf("Config applied. Changed fields: %v", chg.Fields)
		}
	}()

	// Graceful shutdown context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Received shutdown signal, initiating graceful shutdown...")
		if err := eng.Stop(30 * time.Second); err != nil {
			log.Printf("Analysis engine shutdown error: %v", err)
		}
		cancel()
	}()

	// Analyst attribution middleware (IP -> name from analysts.yaml)
	analystResolver := auth.NewAnalystResolver()
	analystMW := auth.NewMiddleware(analystResolver, cfg.RequireAnalyst, web.RenderUnauthorized)

	// HTTP routing
	router := mux.NewRouter()

	var reqMetrics *monitoring.Metrics
	if cfg.MetricsEnabled {
		reqMetrics = monitoring.NewMetrics(512)
		router.Use(monitoring.Middleware(reqMetrics))
	}
	router.Use(analystMW.Attach)

	router.HandleFunc("/", web.HomeHandler(runStore, eng)).Methods("GET")
	router.Handle("/runs", analystMW.RequireAnalyst(web.CreateRunHandler(runStore, eng))).Methods("POST")
	router.HandleFunc("/runs", web.RunsListHandler(runStore)).Methods("GET")
	router.HandleFunc("/runs/{id}", web.RunHandler(runStore)).Methods("GET")
	router.Handle("/runs/{id}/delete", analystMW.RequireAnalyst(web.DeleteRunHandler(runStore))).Methods("POST")
	router.HandleFunc("/runs/{id}/events", web.RunEventsHandler(runStore, evStore)).Methods("GET")
	router.HandleFunc("/runs/{id}/export/averages.csv", web.ExportAveragesCSVHandler(runStore)).Methods("GET")
	router.HandleFunc("/runs/{id}/export/matrix.csv", web.ExportMatrixCSVHandler(runStore)).Methods("GET")

	// JSON API with CORS for external dashboards
	corsMW := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	api := router.PathPrefix("/api").Subrouter()
	api.Use(corsMW.Handler)
	api.Handle("/runs", analystMW.RequireAnalyst(web.APICreateRunHandler(eng))).Methods("POST", "OPTIONS")
	api.HandleFunc("/runs", web.APIListRunsHandler(runStore)).Methods("GET", "OPTIONS")
	api.HandleFunc("/runs/{id}", web.APIGetRunHandler(runStore)).Methods("GET", "OPTIONS")
	api.HandleFunc("/runs/{id}/status", web.APIRunStatusHandler(runStore)).Methods("GET", "OPTIONS")
	api.HandleFunc("/runs/{id}/events", web.APIRunEventsHandler(evStore)).Methods("GET", "OPTIONS")
	api.HandleFunc("/stats", web.APIStatsHandler(eng)).Methods("GET", "OPTIONS")

	staticPath := cfg.BasePath + "static/"
	router.PathPrefix(staticPath).Handler(http.StripPrefix(staticPath, http.FileServer(http.FS(Static()))))
	server := &http.Server{Addr: ":" + cfg.Port, Handler: router}

	// Admin listener: health always, pprof and metrics per config
	healthManager := health.NewManager(health.DefaultConfig(), logger)
	if db != nil {
		healthManager.Register(health.NewDatabaseChecker(db.Conn(), "mysql"))
	}
	healthManager.Register(health.NewEngineChecker("analysis_engine", func() interface{} {
		return eng.GetStats()
	}))
	serpHealthURL := "https://html.duckduckgo.com/html/"
	if cfg.SerpProvider == serp.ProviderSerpAPI && cfg.SerpAPIKey != "" {
		serpHealthURL = "https://serpapi.com"
	}
	healthManager.Register(health.NewHTTPChecker(serpHealthURL, "serp_provider", 5*time.Second))

	adminMux := http.NewServeMux()
	health.NewServer(healthManager, logger).Register(adminMux)
	if cfg.ProfilingEnabled {
		monitoring.RegisterPprof(adminMux)
	}
	if cfg.MetricsEnabled {
		// Prometheus-compatible metrics at configurable path (default: /metrics)
		adminMux.Handle(cfg.MetricsPath, metricsPkg.Handler())
	}
	// Lightweight JSON metrics for humans at /metrics.json (non-Prometheus)
	if cfg.MetricsEnabled && reqMetrics != nil && cfg.MetricsPath != "/metrics.json" {
		adminMux.Handle("/metrics.json", monitoring.MetricsHandlerWithCosts(reqMetrics, func() (monitoring.CostMetrics, error) {
			st := eng.GetStats()
			var cpr float64
			if st.CompletedRuns > 0 {
				cpr = st.TotalCostUSD / float64(st.CompletedRuns)
			}
			return monitoring.CostMetrics{
				TotalCostUSD: st.TotalCostUSD,
				TotalRuns:    st.CompletedRuns,
				CostPerRun:   cpr,
			}, nil
		}))
	}
	adminServer := &http.Server{Addr: ":" + cfg.ProfilingPort, Handler: adminMux}
	go func() {
		fmt.Printf("Admin server (health/pprof/metrics) starting on port %s\n", cfg.ProfilingPort)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Admin HTTP server error: %v", err)
		}
	}()

	// Start runtime performance monitor (alerts)
	if cfg.AlertsEnabled && cfg.MetricsEnabled && reqMetrics != nil {
		go monitoring.StartRuntimeMonitor(ctx, cfg, reqMetrics, func(format string, a ...any) { log.Printf(format, a...) })
	}

	go func() {
		fmt.Printf("Server starting on port %s\n", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error:", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeoutDefault)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Admin HTTP server shutdown error: %v", err)
	}
	cw.Close()
	if closer, ok := runStore.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Printf("Run store close error: %v", err)
		}
	}
	if db != nil {
		if err := db.Close(); err != nil {
			log.Printf("Database close error: %v", err)
		}
	}
	_ = logger.Close()
	log.Println("Application shutdown complete")
}
