package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadConfig loads rate limiting configuration from environment variables.
func LoadConfig() *Config {
	enabled := getEnvBool("RATE_LIMIT_ENABLED", true)
	if !enabled {
		return &Config{Enabled: false}
	}

	defaultLimit := getEnvInt("RATE_LIMIT_DEFAULT_LIMIT", 1000)
	defaultWindow := getEnvDuration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute)
	cleanupInterval := getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute)

	whitelist := parseIPList(getEnvString("RATE_LIMIT_WHITELIST", ""))
	blacklist := parseIPList(getEnvString("RATE_LIMIT_BLACKLIST", ""))

	return &Config{
		Enabled:         enabled,
		DefaultLimit:    defaultLimit,
		DefaultWindow:   defaultWindow,
		CleanupInterval: cleanupInterval,
		Whitelist:       whitelist,
		Blacklist:       blacklist,
		IdleTTL:         getEnvDuration("RATE_LIMIT_IDLE_TTL", time.Hour),
		Rules:           DefaultRules(),
	}
}

// DefaultRules limits the expensive routes. Anything unmatched uses the default limit.
func DefaultRules() []Rule {
	return []Rule{
		// Scraping and scoring
		{Method: "POST", Pattern: "/v1/jobs/{id}/submissions", Limit: 30, Window: time.Hour, Burst: 5},
		{Method: "POST", Pattern: "/v1/jobs/{id}/submissions/upload", Limit: 30, Window: time.Hour, Burst: 5},
		{Method: "POST", Pattern: "/v1/jobs/{id}/submissions/stream", Limit: 30, Window: time.Hour, Burst: 5},

		// Credential guessing
		{Method: "POST", Pattern: "/v1/auth/login", Limit: 20, Window: time.Minute, Burst: 5},
		{Method: "POST", Pattern: "/v1/auth/register", Limit: 10, Window: time.Minute, Burst: 3},
		{Method: "PUT", Pattern: "/v1/auth/password", Limit: 10, Window: time.Minute, Burst: 3},

		// Writes
		{Method: "POST", Pattern: "/v1/jobs", Limit: 60, Window: time.Minute, Burst: 10},
		{Method: "POST", Pattern: "/v1/jobs/{id}/complete", Limit: 60, Window: time.Minute, Burst: 10},
		{Method: "GET", Pattern: "/v1/admin/jobs/export.xlsx", Limit: 10, Window: time.Minute, Burst: 2},

		// Stripe webhooks are not limited.
		{Method: "POST", Pattern: "/v1/webhooks/stripe", Limit: 0},
	}
}

// getEnvString gets an environment variable as a string with a default value.
func getEnvString(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as a boolean with a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a duration with a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseIPList parses a comma-separated list of IP addresses into a map.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	if list == "" {
		return result
	}

	ips := strings.Split(list, ",")
	for _, ip := range ips {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			result[ip] = true
		}
	}

	return result
}

