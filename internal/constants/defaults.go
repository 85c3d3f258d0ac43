package constants

import "time"

// Centralized default values for timeouts, intervals, and related settings.
// These provide sane defaults; environment/config may override where supported.

const (
	// SERP providers
	SerpRequestTimeout    = 15 * time.Second
	SerpOperationTimeout  = 20 * time.Second
	SerpOpenFor           = 30 * time.Second
	SerpSlowCallThreshold = 5 * time.Second
	SerpCacheTTLDefault   = 30 * time.Minute

	// Default query options (mirror the search API defaults)
	DefaultLocation     = "United States"
	DefaultLanguage     = "en"
	DefaultCountry      = "us"
	DefaultGoogleDomain = "google.com"
	DefaultDevice       = "desktop"
	DefaultResultCount  = 9

	// Insights / OpenAI
	InsightsAPITimeout        = 60 * time.Second
	InsightsOperationTimeout  = 50 * time.Second
	InsightsOpenFor           = 45 * time.Second
	InsightsSlowCallThreshold = 20 * time.Second

	// Fetch engine
	FetchRetryDelayDefault = 2 * time.Second
	FetchJobTimeoutDefault = 45 * time.Second

	// Database
	DBReadTimeoutDefault  = 8 * time.Second
	DBWriteTimeoutDefault = 6 * time.Second

	// Health
	HealthTimeoutDefault = 30 * time.Second

	// Config watcher
	ConfigWatcherIntervalDefault = 2 * time.Second

	// App shutdown
	GracefulShutdownTimeoutDefault = 10 * time.Second

	// Monitoring
	MonitoringIntervalDefault = 5 * time.Second
)
