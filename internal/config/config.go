// Package config holds the small env-var helpers shared by both
// entrypoints (cmd/server, cmd/ingestor). Grounded on the teacher's
// cmd/engine/main.go requireEnv/getEnvOrDefault pair, generalized with
// int/float/duration variants for the consumer and risk-engine tunables
// the spec's environment table adds.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotenv loads a .env file if present. Absence is not an error — it
// only matters in local development; deployed environments set real env
// vars directly.
func LoadDotenv() {
	if err := godotenv.Load(); err != nil {
		log.Printf("[config] no .env file loaded (%v); using process environment", err)
	}
}

// RequireEnv reads a required environment variable and exits if unset.
func RequireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: required environment variable %s is not set", key)
	}
	return val
}

// StringOr returns the env var or fallback if unset.
func StringOr(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// IntOr returns the env var parsed as int, or fallback if unset/invalid.
func IntOr(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("[config] invalid int for %s=%q, using default %d", key, val, fallback)
		return fallback
	}
	return n
}

// FloatOr returns the env var parsed as float64, or fallback if unset/invalid.
func FloatOr(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		log.Printf("[config] invalid float for %s=%q, using default %f", key, val, fallback)
		return fallback
	}
	return f
}

// Int64Or returns the env var parsed as int64, or fallback if unset/invalid.
func Int64Or(key string, fallback int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		log.Printf("[config] invalid int64 for %s=%q, using default %d", key, val, fallback)
		return fallback
	}
	return n
}

// DurationSecondsOr returns a duration built from an env var holding a
// number of seconds (possibly fractional), or fallback if unset/invalid.
func DurationSecondsOr(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	secs, err := strconv.ParseFloat(val, 64)
	if err != nil {
		log.Printf("[config] invalid duration-seconds for %s=%q, using default %s", key, val, fallback)
		return fallback
	}
	return time.Duration(secs * float64(time.Second))
}

// DurationMillisOr returns a duration built from an env var holding a
// number of milliseconds, or fallback if unset/invalid.
func DurationMillisOr(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	ms, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("[config] invalid duration-millis for %s=%q, using default %s", key, val, fallback)
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
