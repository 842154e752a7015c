package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// GetEnv returns the value of key or def when unset or empty.
func GetEnv(key, def string) string { return getEnv(key, def) }

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		_, _ = fmt.Sscanf(v, "%d", &n)
		if n != 0 {
			return n
		}
	}
	return def
}

// GetEnvInt returns key parsed as a non-zero integer, else def.
func GetEnvInt(key string, def int) int { return getEnvInt(key, def) }

func getEnvBool(key string, def bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

// GetEnvBool accepts 1/true/yes/on and 0/false/no/off.
func GetEnvBool(key string, def bool) bool { return getEnvBool(key, def) }

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		// bare seconds are accepted too
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return def
}
