package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	SerpAPIKey   string
	OpenAIAPIKey string
	DatabaseURL  string // empty = in-memory run store
	Port         string
	WorkerCount  int

	// SERP provider settings
	SerpProvider       string // "serpapi" or "duckduckgo"
	SerpTimeout        time.Duration
	SerpCacheTTL       time.Duration
	SerpRateLimitRPS   float64 // sustained requests/second against the provider
	SerpRateLimitBurst int
	SerpMaxRetries     int
	SerpRetryDelay     time.Duration

	// Default run options (overridable per run from the form)
	DefaultLocation    string
	DefaultResultCount int
	DefaultMode        string // "domain" or "full_url"

	// Database performance settings
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime int // minutes
	DBConnMaxIdleTime int // minutes
	DBReadTimeout     time.Duration
	DBWriteTimeout    time.Duration

	// OpenAI client settings
	OpenAITimeout time.Duration

	// Monitoring and logging settings
	LogLevel          string
	LogFormat         string // "json" or "text"
	LogFile           string
	EnableFileLogging bool

	// Health check settings
	HealthCheckPort string
	HealthCheckPath string

	// Web interface settings
	BasePath       string
	RequireAnalyst bool // reject submissions from IPs missing from analysts.yaml

	// Environment & profiling/metrics
	Env              string // development, staging, production
	ProfilingEnabled bool
	ProfilingPort    string // also used as admin port
	MetricsEnabled   bool
	MetricsPath      string

	// Performance alerts
	AlertsEnabled    bool
	AlertP95Ms       float64       // trigger when p95 request duration exceeds this (ms)
	AlertGoroutines  int           // trigger when goroutine count exceeds this
	AlertMemAllocMB  float64       // trigger when Alloc exceeds this (MB)
	AlertGCPauseMs   float64       // trigger when last GC pause exceeds this (ms)
	AlertSampleEvery time.Duration // sampling interval

	// Prompts templates overrides
	PromptDir string // path to external templates dir; empty = use embedded only

	// AI insight knobs
	OpenAIModel                 string
	OpenAITemperature           float64
	OpenAIMaxTokens             int
	OpenAIRequestTimeoutSeconds int
	InsightsEnabled             bool
	ConfigReloadIntervalSeconds int
}

func Load() *Config {
	workerCount, _ := strconv.Atoi(getEnv("WORKER_COUNT", "0")) // 0 = use default

	// SERP provider settings with defaults
	serpTimeout, _ := time.ParseDuration(getEnv("SERP_TIMEOUT", "15s"))
	serpCacheTTL, _ := time.ParseDuration(getEnv("SERP_CACHE_TTL", "30m"))
	serpRPS, _ := strconv.ParseFloat(getEnv("SERP_RATE_LIMIT_RPS", "2"), 64)
	serpBurst, _ := strconv.Atoi(getEnv("SERP_RATE_LIMIT_BURST", "4"))
	serpMaxRetries, _ := strconv.Atoi(getEnv("SERP_MAX_RETRIES", "3"))
	serpRetryDelay, _ := time.ParseDuration(getEnv("SERP_RETRY_DELAY", "2s"))
	defaultResultCount, _ := strconv.Atoi(getEnv("SERP_RESULT_COUNT", "9"))

	// Database performance settings with defaults
	dbMaxOpenConns, _ := strconv.Atoi(getEnv("DB_MAX_OPEN_CONNS", "25"))
	dbMaxIdleConns, _ := strconv.Atoi(getEnv("DB_MAX_IDLE_CONNS", "10"))
	dbConnMaxLifetime, _ := strconv.Atoi(getEnv("DB_CONN_MAX_LIFETIME_MINUTES", "10"))
	dbConnMaxIdleTime, _ := strconv.Atoi(getEnv("DB_CONN_MAX_IDLE_TIME_MINUTES", "5"))

	// Parse boolean environment variables
	enableFileLogging, _ := strconv.ParseBool(getEnv("ENABLE_FILE_LOGGING", "false"))
	requireAnalyst, _ := strconv.ParseBool(getEnv("REQUIRE_ANALYST", "false"))

	// Environment and profiling defaults
	env := strings.ToLower(getEnv("ENV", "development"))
	profPort := getEnv("PROFILING_PORT", "6060")
	metricsPath := getEnv("METRICS_PATH", "/metrics")

	// Default toggles based on env
	profilingDefault := env == "development" || env == "staging"
	profilingEnabled, _ := strconv.ParseBool(getEnv("PROFILING_ENABLED", strconv.FormatBool(profilingDefault)))
	metricsDefault := profilingDefault
	metricsEnabled, _ := strconv.ParseBool(getEnv("METRICS_ENABLED", strconv.FormatBool(metricsDefault)))

	// Alerts defaults
	alertsDefault := profilingDefault
	alertsEnabled, _ := strconv.ParseBool(getEnv("ALERTS_ENABLED", strconv.FormatBool(alertsDefault)))
	alertP95Ms, _ := strconv.ParseFloat(getEnv("ALERT_P95_MS", "500"), 64)
	alertGoroutines, _ := strconv.Atoi(getEnv("ALERT_GOROUTINES", "500"))
	alertMemAllocMB, _ := strconv.ParseFloat(getEnv("ALERT_MEM_ALLOC_MB", "512"), 64)
	alertGCPauseMs, _ := strconv.ParseFloat(getEnv("ALERT_GC_PAUSE_MS", "200"), 64)
	alertSampleEverySec, _ := strconv.Atoi(getEnv("ALERT_SAMPLE_EVERY_SEC", "5"))

	// Timeouts
	dbReadTO, _ := time.ParseDuration(getEnv("DB_READ_TIMEOUT", "8s"))
	dbWriteTO, _ := time.ParseDuration(getEnv("DB_WRITE_TIMEOUT", "6s"))

	// OpenAI config
	openAIModel := getEnv("OPENAI_MODEL", "gpt-4o-mini")
	openAITemp, _ := strconv.ParseFloat(getEnv("OPENAI_TEMPERATURE", "0.1"), 64)
	openAIMaxTokens, _ := strconv.Atoi(getEnv("OPENAI_MAX_TOKENS", "400"))
	openAIReqTimeoutSec, _ := strconv.Atoi(getEnv("OPENAI_REQUEST_TIMEOUT_SECONDS", "60"))

	// Prompts
	promptDir := getEnv("PROMPT_DIR", "")

	// Config reload
	reloadIntSec, _ := strconv.Atoi(getEnv("CONFIG_RELOAD_INTERVAL_SECONDS", "2"))

	// Insights default to on whenever a key is present; INSIGHTS_ENABLED=false
	// forces the heuristic summarizer even with a key configured.
	openAIKey := getEnv("OPENAI_API_KEY", "")
	insightsEnabled, _ := strconv.ParseBool(getEnv("INSIGHTS_ENABLED", strconv.FormatBool(openAIKey != "")))

	cfg := &Config{
		SerpAPIKey:   getEnv("SERPAPI_KEY", ""),
		OpenAIAPIKey: openAIKey,
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		Port:         getEnv("PORT", "8080"),
		WorkerCount:  workerCount,

		SerpProvider:       strings.ToLower(getEnv("SERP_PROVIDER", "serpapi")),
		SerpTimeout:        serpTimeout,
		SerpCacheTTL:       serpCacheTTL,
		SerpRateLimitRPS:   serpRPS,
		SerpRateLimitBurst: serpBurst,
		SerpMaxRetries:     serpMaxRetries,
		SerpRetryDelay:     serpRetryDelay,

		DefaultLocation:    getEnv("SERP_LOCATION", "United States"),
		DefaultResultCount: defaultResultCount,
		DefaultMode:        strings.ToLower(getEnv("SIMILARITY_MODE", "domain")),

		DBMaxOpenConns:    dbMaxOpenConns,
		DBMaxIdleConns:    dbMaxIdleConns,
		DBConnMaxLifetime: dbConnMaxLifetime,
		DBConnMaxIdleTime: dbConnMaxIdleTime,
		DBReadTimeout:     dbReadTO,
		DBWriteTimeout:    dbWriteTO,
		OpenAITimeout:     time.Duration(openAIReqTimeoutSec) * time.Second,

		// Monitoring and logging settings
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
		LogFile:           getEnv("LOG_FILE", "/var/log/serp-similarity/app.log"),
		EnableFileLogging: enableFileLogging,

		// Health check settings
		HealthCheckPort: getEnv("HEALTH_CHECK_PORT", "8081"),
		HealthCheckPath: getEnv("HEALTH_CHECK_PATH", "/health"),

		// Web interface settings
		BasePath:       getEnv("BASE_PATH", "/"),
		RequireAnalyst: requireAnalyst,

		// Environment & profiling/metrics
		Env:              env,
		ProfilingEnabled: profilingEnabled,
		ProfilingPort:    profPort,
		MetricsEnabled:   metricsEnabled,
		MetricsPath:      metricsPath,

		// Alerts
		AlertsEnabled:    alertsEnabled,
		AlertP95Ms:       alertP95Ms,
		AlertGoroutines:  alertGoroutines,
		AlertMemAllocMB:  alertMemAllocMB,
		AlertGCPauseMs:   alertGCPauseMs,
		AlertSampleEvery: time.Duration(alertSampleEverySec) * time.Second,

		// Prompts and AI insight knobs
		PromptDir:                   promptDir,
		OpenAIModel:                 openAIModel,
		OpenAITemperature:           openAITemp,
		OpenAIMaxTokens:             openAIMaxTokens,
		OpenAIRequestTimeoutSeconds: openAIReqTimeoutSec,
		InsightsEnabled:             insightsEnabled,
		ConfigReloadIntervalSeconds: reloadIntSec,
	}

	if cfg.SerpProvider == "duckduckgo" && cfg.SerpAPIKey != "" {
		log.Printf("Config: SERPAPI_KEY set but SERP_PROVIDER=duckduckgo; key will be ignored")
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
