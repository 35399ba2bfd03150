// Package config provides configuration parsing for anomalyd.
//
// It handles both command-line flags and environment variables, with flags taking
// precedence over environment variables. The Config struct contains all runtime
// configuration including:
//   - HTTP listen address and server TLS
//   - Logging configuration (level, format)
//   - Column resolution mode and the optional column override file
//   - Scaler and scorer selection with their model files
//   - Remote (BYOM) scorer endpoint, score path, timeout and client TLS
//   - Run report storage (none, memory, redis)
//
// Supported configuration sources (in order of precedence):
//  1. Command-line flags
//  2. Environment variables
//  3. Default values
//
// Example usage:
//
//	cfg := config.ParseFlags()
//	if err := cfg.Validate(); err != nil {
//		// exit
//	}
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/HatiCode/anomalyd/pkg/detect"
	"github.com/HatiCode/anomalyd/pkg/features"
	"github.com/HatiCode/anomalyd/pkg/tls"
)

// Config holds all anomalyd configuration.
type Config struct {
	Listen          string
	LogFormat       string
	LogLevel        string
	ShutdownTimeout time.Duration
	TLS             tls.Config

	Mode        string
	ColumnsFile string

	Scaler     string
	ScalerFile string
	Scorer     string
	ScorerFile string

	BYOMURL       string
	BYOMScorePath string
	BYOMTimeout   time.Duration
	BYOMTLS       tls.Config

	Storage       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ReportTTL     time.Duration

	// ReportQuantile is the score quantile stored in run reports, in
	// p-notation (p5) or decimal (0.05). "0" disables it.
	ReportQuantile string
}

// ParseFlags parses command-line flags and environment variables into a Config.
// Environment variables are used as fallbacks when flags are not provided.
func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", "0.0.0.0:5000"), "HTTP listen address")
	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second), "Graceful shutdown timeout")

	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Enable TLS for HTTP server")
	flag.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS certificate file")
	flag.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS private key file")
	flag.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "TLS CA certificate file for client verification (enables mTLS)")

	flag.StringVar(&cfg.Mode, "mode", getEnv("MODE", string(features.ModeFuzzy)), "Column resolution mode: fuzzy or exact")
	flag.StringVar(&cfg.ColumnsFile, "columns-file", getEnv("COLUMNS_FILE", ""), "YAML file overriding column patterns")

	flag.StringVar(&cfg.Scaler, "scaler", getEnv("SCALER", "standard"), "Scaler: standard, minmax, or identity")
	flag.StringVar(&cfg.ScalerFile, "scaler-file", getEnv("SCALER_FILE", ""), "Scaler JSON file (required unless scaler=identity)")
	flag.StringVar(&cfg.Scorer, "scorer", getEnv("SCORER", "iforest"), "Scorer: iforest or byom")
	flag.StringVar(&cfg.ScorerFile, "scorer-file", getEnv("SCORER_FILE", ""), "Isolation forest JSON file (required when scorer=iforest)")

	flag.StringVar(&cfg.BYOMURL, "byom-url", getEnv("BYOM_URL", ""), "BYOM scoring service URL (required when scorer=byom)")
	flag.StringVar(&cfg.BYOMScorePath, "byom-score-path", getEnv("BYOM_SCORE_PATH", "scores"), "gjson path of the scores array in BYOM responses")
	flag.DurationVar(&cfg.BYOMTimeout, "byom-timeout", getEnvDuration("BYOM_TIMEOUT", 30*time.Second), "BYOM request timeout")
	flag.BoolVar(&cfg.BYOMTLS.Enabled, "byom-tls-enabled", getEnvBool("BYOM_TLS_ENABLED", false), "Enable TLS for BYOM requests")
	flag.StringVar(&cfg.BYOMTLS.CertFile, "byom-tls-cert-file", getEnv("BYOM_TLS_CERT_FILE", ""), "BYOM client certificate file")
	flag.StringVar(&cfg.BYOMTLS.KeyFile, "byom-tls-key-file", getEnv("BYOM_TLS_KEY_FILE", ""), "BYOM client private key file")
	flag.StringVar(&cfg.BYOMTLS.CAFile, "byom-tls-ca-file", getEnv("BYOM_TLS_CA_FILE", ""), "CA certificate file for verifying the BYOM service")

	flag.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "none"), "Run report storage: none, memory, or redis")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	flag.DurationVar(&cfg.ReportTTL, "report-ttl", getEnvDuration("REPORT_TTL", 30*time.Minute), "Run report TTL")
	flag.StringVar(&cfg.ReportQuantile, "report-quantile", getEnv("REPORT_QUANTILE", "p5"), "Score quantile stored in run reports: p5, 0.05, or 0 to disable")

	flag.Parse()

	return cfg
}

// Validate checks the configuration for missing or conflicting settings.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address cannot be empty")
	}

	if _, err := features.ParseMode(c.Mode); err != nil {
		return err
	}

	switch c.Scaler {
	case "standard", "minmax":
		if c.ScalerFile == "" {
			return fmt.Errorf("scaler-file is required when scaler=%s", c.Scaler)
		}
	case "identity":
	default:
		return fmt.Errorf("invalid scaler %q (must be standard, minmax, or identity)", c.Scaler)
	}

	switch c.Scorer {
	case "iforest":
		if c.ScorerFile == "" {
			return fmt.Errorf("scorer-file is required when scorer=iforest")
		}
	case "byom":
		if c.BYOMURL == "" {
			return fmt.Errorf("byom-url is required when scorer=byom")
		}
		if !strings.HasPrefix(c.BYOMURL, "http://") && !strings.HasPrefix(c.BYOMURL, "https://") {
			return fmt.Errorf("byom-url %q must be an http or https URL", c.BYOMURL)
		}
		if c.BYOMTimeout <= 0 {
			return fmt.Errorf("byom-timeout must be > 0")
		}
		if err := c.BYOMTLS.Validate(); err != nil {
			return fmt.Errorf("byom tls: %w", err)
		}
	default:
		return fmt.Errorf("invalid scorer %q (must be iforest or byom)", c.Scorer)
	}

	switch c.Storage {
	case "none":
	case "memory":
		if c.ReportTTL < 0 {
			return fmt.Errorf("report-ttl cannot be negative")
		}
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("redis-addr is required when storage=redis")
		}
		if c.RedisDB < 0 {
			return fmt.Errorf("redis-db must be >= 0")
		}
		if c.ReportTTL < 0 {
			return fmt.Errorf("report-ttl cannot be negative")
		}
	default:
		return fmt.Errorf("invalid storage %q (must be none, memory, or redis)", c.Storage)
	}

	if _, err := detect.ParseQuantileLevel(c.ReportQuantile); err != nil {
		return fmt.Errorf("report-quantile: %w", err)
	}

	if c.TLS.Enabled && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		return fmt.Errorf("tls enabled but cert/key files not specified")
	}
	if err := c.TLS.Validate(); err != nil {
		return fmt.Errorf("server tls: %w", err)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
