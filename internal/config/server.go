// Package config provides configuration management for KeyGate.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment represents the deployment environment.
type Environment string

const (
	// EnvDevelopment is the default local development environment.
	EnvDevelopment Environment = "development"
	// EnvStaging is the staging/pre-production environment.
	EnvStaging Environment = "staging"
	// EnvProduction is the production environment.
	EnvProduction Environment = "production"
)

// ServerConfig holds server-level configuration loaded from environment variables.
type ServerConfig struct {
	Environment Environment
	ListenAddr  string
	DatabaseURL string
	RedisAddr   string
	RedisDB     int

	SessionSecret     string
	SessionMaxAge     int // seconds
	AdminPasswordHash string

	CORSOrigins []string

	// RateLimit is the general API rate, limiter format (e.g. "100-M").
	RateLimit string
	// ValidateRateLimit is the stricter rate applied to license validation.
	ValidateRateLimit string

	// PresenceTTL is how long a heartbeat keeps a user online.
	PresenceTTL time.Duration

	// S3 object storage for product artifacts. Downloads are disabled when
	// the bucket is unset.
	S3Endpoint        string
	S3Bucket          string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3UseSSL          bool
	DownloadURLTTL    time.Duration
}

// LoadServerConfig reads server configuration from environment variables.
func LoadServerConfig() ServerConfig {
	env := Environment(os.Getenv("ENV"))
	switch env {
	case EnvDevelopment, EnvStaging, EnvProduction:
		// valid
	default:
		env = EnvDevelopment
	}

	sessionMaxAge := getEnvInt("SESSION_MAX_AGE", 86400*30)
	if sessionMaxAge < 0 {
		sessionMaxAge = 86400 * 30
	}

	return ServerConfig{
		Environment: env,
		ListenAddr:  getEnvString("LISTEN_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   getEnvString("REDIS_ADDR", "localhost:6379"),
		RedisDB:     getEnvInt("REDIS_DB", 0),

		SessionSecret:     os.Getenv("SESSION_SECRET"),
		SessionMaxAge:     sessionMaxAge,
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),

		CORSOrigins: getEnvList("CORS_ORIGINS", nil),

		RateLimit:         getEnvString("RATE_LIMIT", "300-M"),
		ValidateRateLimit: getEnvString("VALIDATE_RATE_LIMIT", "10-M"),

		PresenceTTL: getEnvDuration("PRESENCE_TTL", 2*time.Minute),

		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3Bucket:          os.Getenv("S3_BUCKET"),
		S3Region:          getEnvString("S3_REGION", "us-east-1"),
		S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3UseSSL:          getEnvBool("S3_USE_SSL", true),
		DownloadURLTTL:    getEnvDuration("DOWNLOAD_URL_TTL", 15*time.Minute),
	}
}

// DownloadsEnabled reports whether object storage is configured.
func (c ServerConfig) DownloadsEnabled() bool {
	return c.S3Bucket != ""
}

// getEnvString reads a string from an environment variable, returning the default if unset.
func getEnvString(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvBool reads a boolean from an environment variable, returning the default if unset or invalid.
func getEnvBool(key string, defaultVal bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultVal
	}
}

// getEnvInt reads an integer from an environment variable, returning the default if unset or invalid.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvDuration reads a duration from an environment variable, returning the default if unset or invalid.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvList reads a comma-separated list from an environment variable.
func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
