package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"serp-similarity/internal/constants"
	errs "serp-similarity/pkg/errors"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error for field '%s' with value '%s': %s", e.Field, e.Value, e.Message)
}

// ConfigValidator handles configuration validation
type ConfigValidator struct {
	errors []ValidationError
}

// NewConfigValidator creates a new configuration validator
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		errors: make([]ValidationError, 0),
	}
}

// AddError adds a validation error
func (cv *ConfigValidator) AddError(field, value, message string) {
	cv.errors = append(cv.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors
func (cv *ConfigValidator) HasErrors() bool {
	return len(cv.errors) > 0
}

// GetErrors returns all validation errors
func (cv *ConfigValidator) GetErrors() []ValidationError {
	return cv.errors
}

// GetErrorsAsString returns all validation errors as a formatted string
func (cv *ConfigValidator) GetErrorsAsString() string {
	var errorStrings []string
	for _, err := range cv.errors {
		errorStrings = append(errorStrings, err.Error())
	}
	return strings.Join(errorStrings, "\n")
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	validator := NewConfigValidator()

	// Validate required fields
	c.validateRequired(validator)

	// Validate formats and values
	c.validateFormats(validator)

	// Validate ranges
	c.validateRanges(validator)

	// Check for environment-specific validation
	c.validateEnvironment(validator)

	if validator.HasErrors() {
		return errs.NewValidation("config.Validate", fmt.Sprintf("configuration validation failed:\n%s", validator.GetErrorsAsString()), nil)
	}

	return nil
}

// validateRequired checks required configuration fields
func (c *Config) validateRequired(validator *ConfigValidator) {
	// SERP_PROVIDER=serpapi without a key is not fatal: the wiring falls
	// back to the keyless DuckDuckGo scraper and logs the downgrade.

	// AI insights need a key when forced on
	if c.InsightsEnabled && c.OpenAIAPIKey == "" {
		validator.AddError("OPENAI_API_KEY", c.OpenAIAPIKey, "OpenAI API key is required when INSIGHTS_ENABLED=true")
	}

	// Port is required
	if c.Port == "" {
		validator.AddError("PORT", c.Port, "port is required")
	}
}

// validateFormats checks format validity of configuration values
func (c *Config) validateFormats(validator *ConfigValidator) {
	// Database URL is optional (empty = in-memory store), but must look like
	// a DSN when set
	if c.DatabaseURL != "" {
		if !strings.Contains(c.DatabaseURL, "@") || !strings.Contains(c.DatabaseURL, "/") {
			validator.AddError("DATABASE_URL", c.DatabaseURL, "invalid database URL format")
		}
	}

	// Validate port format
	if c.Port != "" {
		if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
			validator.AddError("PORT", c.Port, "invalid port number (must be 1-65535)")
		}
	}

	// Validate health check port
	if c.HealthCheckPort != "" {
		if port, err := strconv.Atoi(c.HealthCheckPort); err != nil || port < 1 || port > 65535 {
			validator.AddError("HEALTH_CHECK_PORT", c.HealthCheckPort, "invalid health check port number")
		}
	}

	// Validate profiling/admin port
	if c.ProfilingPort != "" {
		if port, err := strconv.Atoi(c.ProfilingPort); err != nil || port < 1 || port > 65535 {
			validator.AddError("PROFILING_PORT", c.ProfilingPort, "invalid profiling port number")
		}
	}

	// Validate SERP provider
	if c.SerpProvider != "serpapi" && c.SerpProvider != "duckduckgo" {
		validator.AddError("SERP_PROVIDER", c.SerpProvider, "invalid provider (must be 'serpapi' or 'duckduckgo')")
	}

	// Validate similarity mode
	if c.DefaultMode != "domain" && c.DefaultMode != "full_url" {
		validator.AddError("SIMILARITY_MODE", c.DefaultMode, "invalid mode (must be 'domain' or 'full_url')")
	}

	// Validate default result count against the supported set
	if !constants.IsAllowedResultCount(c.DefaultResultCount) {
		validator.AddError("SERP_RESULT_COUNT", strconv.Itoa(c.DefaultResultCount),
			fmt.Sprintf("unsupported result count (allowed: %v)", constants.AllowedResultCounts))
	}

	// Validate log level
	validLogLevels := []string{"trace", "debug", "info", "warn", "error", "fatal"}
	if c.LogLevel != "" && !contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		validator.AddError("LOG_LEVEL", c.LogLevel, "invalid log level (must be one of: trace, debug, info, warn, error, fatal)")
	}

	// Validate log format
	if c.LogFormat != "" && c.LogFormat != "json" && c.LogFormat != "text" {
		validator.AddError("LOG_FORMAT", c.LogFormat, "invalid log format (must be 'json' or 'text')")
	}
}

// validateRanges checks value ranges
func (c *Config) validateRanges(validator *ConfigValidator) {
	// Validate worker count
	if c.WorkerCount < 0 || c.WorkerCount > 100 {
		validator.AddError("WORKER_COUNT", strconv.Itoa(c.WorkerCount), "worker count must be between 0 and 100")
	}

	// Validate SERP rate limiting
	if c.SerpRateLimitRPS <= 0 || c.SerpRateLimitRPS > 50 {
		validator.AddError("SERP_RATE_LIMIT_RPS", fmt.Sprintf("%v", c.SerpRateLimitRPS), "rate limit must be between 0 and 50 requests/second")
	}
	if c.SerpRateLimitBurst < 1 || c.SerpRateLimitBurst > 100 {
		validator.AddError("SERP_RATE_LIMIT_BURST", strconv.Itoa(c.SerpRateLimitBurst), "rate limit burst must be between 1 and 100")
	}
	if c.SerpMaxRetries < 0 || c.SerpMaxRetries > 10 {
		validator.AddError("SERP_MAX_RETRIES", strconv.Itoa(c.SerpMaxRetries), "max retries must be between 0 and 10")
	}

	// Validate OpenAI knobs
	if c.OpenAITemperature < 0 || c.OpenAITemperature > 2 {
		validator.AddError("OPENAI_TEMPERATURE", fmt.Sprintf("%v", c.OpenAITemperature), "temperature must be between 0 and 2")
	}
	if c.OpenAIMaxTokens < 1 || c.OpenAIMaxTokens > 4096 {
		validator.AddError("OPENAI_MAX_TOKENS", strconv.Itoa(c.OpenAIMaxTokens), "max tokens must be between 1 and 4096")
	}

	// Validate database connection settings
	if c.DBMaxOpenConns < 1 || c.DBMaxOpenConns > 1000 {
		validator.AddError("DB_MAX_OPEN_CONNS", strconv.Itoa(c.DBMaxOpenConns), "max open connections must be between 1 and 1000")
	}

	if c.DBMaxIdleConns < 0 || c.DBMaxIdleConns > c.DBMaxOpenConns {
		validator.AddError("DB_MAX_IDLE_CONNS", strconv.Itoa(c.DBMaxIdleConns), "max idle connections must be between 0 and max open connections")
	}

	if c.DBConnMaxLifetime < 1 || c.DBConnMaxLifetime > 60 {
		validator.AddError("DB_CONN_MAX_LIFETIME_MINUTES", strconv.Itoa(c.DBConnMaxLifetime), "connection max lifetime must be between 1 and 60 minutes")
	}

	if c.DBConnMaxIdleTime < 1 || c.DBConnMaxIdleTime > 30 {
		validator.AddError("DB_CONN_MAX_IDLE_TIME_MINUTES", strconv.Itoa(c.DBConnMaxIdleTime), "connection max idle time must be between 1 and 30 minutes")
	}
}

// validateEnvironment performs environment-specific validation
func (c *Config) validateEnvironment(validator *ConfigValidator) {
	// Check if log directory is writable if file logging is enabled
	if c.EnableFileLogging && c.LogFile != "" {
		if err := checkDirectoryWritable(c.LogFile); err != nil {
			validator.AddError("LOG_FILE", c.LogFile, fmt.Sprintf("log directory is not writable: %v", err))
		}
	}

	// Validate port conflicts
	ports := map[string]string{
		"PORT":              c.Port,
		"HEALTH_CHECK_PORT": c.HealthCheckPort,
		"PROFILING_PORT":    c.ProfilingPort,
	}

	usedPorts := make(map[string]string)
	for name, port := range ports {
		if port != "" && port != "0" {
			if existing, exists := usedPorts[port]; exists {
				validator.AddError(name, port, fmt.Sprintf("port conflict with %s", existing))
			} else {
				usedPorts[port] = name
			}
		}
	}
}

// checkDirectoryWritable checks if a directory is writable
func checkDirectoryWritable(filePath string) error {
	// Extract directory from file path
	dir := filePath
	if !strings.HasSuffix(filePath, "/") {
		// It's a file path, get the directory
		lastSlash := strings.LastIndex(filePath, "/")
		if lastSlash > 0 {
			dir = filePath[:lastSlash]
		} else {
			dir = "."
		}
	}

	// Check if directory exists
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		// Try to create directory
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errs.NewValidation("config.checkDirectoryWritable", "cannot create directory", err)
		}
	}

	// Test write permission by creating a temporary file
	tempFile := fmt.Sprintf("%s/.write_test_%d", dir, os.Getpid())
	file, err := os.Create(tempFile)
	if err != nil {
		return errs.NewValidation("config.checkDirectoryWritable", "directory is not writable", err)
	}
	file.Close()
	os.Remove(tempFile)

	return nil
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// GetConfigSummary returns a summary of the configuration (excluding sensitive data)
func (c *Config) GetConfigSummary() map[string]interface{} {
	return map[string]interface{}{
		"serpapi_key":          maskString(c.SerpAPIKey, 6),
		"openai_api_key":       maskString(c.OpenAIAPIKey, 6),
		"database_url":         maskString(c.DatabaseURL, 20),
		"port":                 c.Port,
		"worker_count":         c.WorkerCount,
		"serp_provider":        c.SerpProvider,
		"serp_cache_ttl":       c.SerpCacheTTL.String(),
		"serp_rate_limit_rps":  c.SerpRateLimitRPS,
		"default_location":     c.DefaultLocation,
		"default_result_count": c.DefaultResultCount,
		"default_mode":         c.DefaultMode,
		"insights_enabled":     c.InsightsEnabled,
		"db_max_open_conns":    c.DBMaxOpenConns,
		"db_max_idle_conns":    c.DBMaxIdleConns,
		"log_level":            c.LogLevel,
		"log_format":           c.LogFormat,
		"log_file":             c.LogFile,
		"enable_file_logging":  c.EnableFileLogging,
		"health_check_port":    c.HealthCheckPort,
		"require_analyst":      c.RequireAnalyst,
	}
}

// maskString masks sensitive strings for logging/display
func maskString(s string, keepFirst int) string {
	if s == "" {
		return ""
	}
	if len(s) <= keepFirst {
		return strings.Repeat("*", len(s))
	}
	return s[:keepFirst] + strings.Repeat("*", len(s)-keepFirst)
}
