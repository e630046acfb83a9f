package config

import (
	"os"
	"strconv"
	"time"
)

// RateLimitConfig tunes a token bucket. The /api defaults allow 100
// requests per hour per client IP.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

func LoadRateLimitConfig() RateLimitConfig {
	return clampRateLimit(RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 100),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 100),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Hour),
		TTL:            envDur("RATE_LIMIT_TTL", 2*time.Hour),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip"),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	})
}

// LoadAuthRateLimitConfig is the stricter per-IP bucket in front of login
// and forgetPassword: 10 attempts per 15 minutes by default.
func LoadAuthRateLimitConfig() RateLimitConfig {
	return clampRateLimit(RateLimitConfig{
		Enabled:        envBool("AUTH_RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("AUTH_RATE_LIMIT_CAPACITY", 10),
		RefillTokens:   envInt("AUTH_RATE_LIMIT_REFILL_TOKENS", 10),
		RefillInterval: envDur("AUTH_RATE_LIMIT_REFILL_INTERVAL", 15*time.Minute),
		TTL:            envDur("AUTH_RATE_LIMIT_TTL", 30*time.Minute),
		KeyStrategy:    "ip_route",
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl") + ":auth",
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	})
}

func clampRateLimit(c RateLimitConfig) RateLimitConfig {
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Hour
	}
	if minTTL := 2 * c.RefillInterval; c.TTL < minTTL {
		c.TTL = minTTL
	}
	return c
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
