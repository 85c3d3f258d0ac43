package auth

import (
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// AnalystResolver resolves client IP addresses to analyst names so runs can
// record who started them.
type AnalystResolver struct {
	mu       sync.RWMutex
	ipToName map[string]string
	loaded   bool
	yamlPath string
}

// NewAnalystResolver creates a new analyst resolver.
// It attempts to load analysts.yaml from:
// 1. Path specified in the ANALYSTS_FILE env variable
// 2. Current working directory
//
// A missing file is not fatal: visitors stay anonymous unless the
// REQUIRE_ANALYST gate is enabled.
func NewAnalystResolver() *AnalystResolver {
	resolver := &AnalystResolver{
		ipToName: make(map[string]string),
		loaded:   false,
		yamlPath: "",
	}

	var yamlPath string

	if envPath := os.Getenv("ANALYSTS_FILE"); envPath != "" {
		yamlPath = envPath
		log.Printf("Using analysts.yaml path from ANALYSTS_FILE: %s", yamlPath)
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			log.Printf("Warning: Cannot determine working directory: %v", err)
			return resolver
		}
		yamlPath = filepath.Join(cwd, "analysts.yaml")
	}

	if err := resolver.loadConfig(yamlPath); err != nil {
		log.Printf("analysts.yaml not loaded from %s: %v (runs will be anonymous)", yamlPath, err)
	} else {
		resolver.yamlPath = yamlPath
		log.Printf("Loaded analyst IP mappings from: %s (%d entries)", yamlPath, len(resolver.ipToName))
	}

	return resolver
}

// loadConfig loads the YAML configuration file.
func (r *AnalystResolver) loadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var config map[string]string
	if err := yaml.Unmarshal(data, &config); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.ipToName = config
	r.loaded = true

	return nil
}

// Reload reloads the analyst configuration from disk.
func (r *AnalystResolver) Reload() error {
	if r.yamlPath == "" {
		return nil // No config file to reload
	}
	return r.loadConfig(r.yamlPath)
}

// IsLoaded returns true if the config file was successfully loaded.
func (r *AnalystResolver) IsLoaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// GetAnalyst resolves the client IP from the request to an analyst name.
// Returns (name, found). A miss is normal; anonymous browsing is allowed.
func (r *AnalystResolver) GetAnalyst(req *http.Request) (string, bool) {
	ip := extractClientIP(req)

	r.mu.RLock()
	defer r.mu.RUnlock()

	name, found := r.ipToName[ip]
	return name, found
}

// GetClientIP returns the client IP address from the request.
func (r *AnalystResolver) GetClientIP(req *http.Request) string {
	return extractClientIP(req)
}

// extractClientIP extracts the real client IP from the request.
// Handles X-Forwarded-For and X-Real-IP headers for reverse proxy scenarios.
func extractClientIP(req *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := parseFirstIP(xff); ip != "" {
			return ip
		}
	}

	if xri := req.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr // Return as-is if split fails
	}

	return ip
}

// parseFirstIP extracts the first IP from a comma-separated list.
func parseFirstIP(xff string) string {
	for i := 0; i < len(xff); i++ {
		if xff[i] == ',' {
			return xff[:i]
		}
	}
	return xff
}
