package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP server
	Port    string
	BaseURL string

	// Database
	DBDriver    string
	DBPath      string
	DatabaseURL string

	// Sessions
	JWTSecret  string
	SessionTTL time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Postmark
	PostmarkToken string
	PostmarkFrom  string

	// AMQP, disabled when URL is empty
	AMQPURL      string
	AMQPExchange string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:    getEnv("BUDGET_PORT", "8080"),
		BaseURL: strings.TrimRight(getEnv("BUDGET_BASE_URL", "http://localhost:8080"), "/"),

		DBDriver:    getEnv("BUDGET_DB_DRIVER", "sqlite"),
		DBPath:      getEnv("BUDGET_DB_PATH", "budgetcompass.db"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		JWTSecret:  getEnv("BUDGET_JWT_SECRET", ""),
		SessionTTL: getEnvDuration("BUDGET_SESSION_TTL", 30*24*time.Hour),

		LogLevel:  getEnv("BUDGET_LOG_LEVEL", "info"),
		LogFormat: getEnv("BUDGET_LOG_FORMAT", "text"),

		PostmarkToken: getEnv("POSTMARK_SERVER_TOKEN", ""),
		PostmarkFrom:  getEnv("POSTMARK_FROM_EMAIL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "budgetcompass"),
	}
}

// Validate returns every configuration problem at once.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, fmt.Sprintf("invalid base URL '%s': must be absolute", c.BaseURL))
	}

	validDrivers := []string{"sqlite", "postgres"}
	switch {
	case !slices.Contains(validDrivers, c.DBDriver):
		problems = append(problems, fmt.Sprintf("invalid database driver '%s': must be one of %v", c.DBDriver, validDrivers))
	case c.DBDriver == "sqlite" && c.DBPath == "":
		problems = append(problems, "SQLite database path cannot be empty when using sqlite driver")
	case c.DBDriver == "sqlite":
		dir := filepath.Dir(c.DBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					problems = append(problems, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case c.DBDriver == "postgres" && c.DatabaseURL == "":
		problems = append(problems, "DATABASE_URL is required when using postgres driver")
	}

	if len(c.JWTSecret) < 32 {
		problems = append(problems, "BUDGET_JWT_SECRET must be at least 32 characters")
	}
	if c.SessionTTL < time.Hour {
		problems = append(problems, fmt.Sprintf("invalid session TTL %v: must be at least 1 hour", c.SessionTTL))
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		problems = append(problems, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if (c.PostmarkToken == "") != (c.PostmarkFrom == "") {
		problems = append(problems, "POSTMARK_SERVER_TOKEN and POSTMARK_FROM_EMAIL must be set together")
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// EmailConfigured reports whether outbound email can be sent.
func (c *Config) EmailConfigured() bool {
	return c.PostmarkToken != "" && c.PostmarkFrom != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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
