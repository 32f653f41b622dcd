package common

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Extract  ExtractConfig
	Queue    QueueConfig
	Reminder ReminderConfig
	LogLevel string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver          string // "sqlite" or "postgres"
	Path            string // sqlite file path
	DSN             string // postgres DSN, required when Driver is "postgres"
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr      string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	ScanRateLimit float64 // scan submissions per second, per process
	ScanRateBurst int
}

// ExtractConfig holds extraction pipeline tunables
type ExtractConfig struct {
	ReviewThreshold     float64
	CandidateFloor      float64
	SimilarityThreshold float64
	DateKeywordWindow   int
	ExpiryKeywords      []string
	MfgKeywords         []string
	ReferencePath       string // empty means built-in reference set
	ExpirySoonDays      int
}

// QueueConfig holds async pipeline configuration
type QueueConfig struct {
	Workers        int
	Size           int
	ProcessTimeout time.Duration
}

// ReminderConfig holds dose reminder configuration
type ReminderConfig struct {
	DefaultTime string // "HH:MM"
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			Path:            getEnv("DB_PATH", "mediscan.db"),
			DSN:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
			ReadTimeout:   getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:  getEnvAsDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:   getEnvAsDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			ScanRateLimit: getEnvAsFloat64("SCAN_RATE_LIMIT", 10),
			ScanRateBurst: getEnvAsInt("SCAN_RATE_BURST", 20),
		},
		Extract: ExtractConfig{
			ReviewThreshold:     getEnvAsFloat64("MEDISCAN_REVIEW_THRESHOLD", 0.60),
			CandidateFloor:      getEnvAsFloat64("MEDISCAN_CANDIDATE_FLOOR", 0.35),
			SimilarityThreshold: getEnvAsFloat64("MEDISCAN_SIMILARITY_THRESHOLD", 0.82),
			DateKeywordWindow:   getEnvAsInt("MEDISCAN_DATE_KEYWORD_WINDOW", 3),
			ExpiryKeywords:      getEnvAsSlice("MEDISCAN_EXPIRY_KEYWORDS", nil),
			MfgKeywords:         getEnvAsSlice("MEDISCAN_MFG_KEYWORDS", nil),
			ReferencePath:       getEnv("MEDISCAN_REFERENCE_PATH", ""),
			ExpirySoonDays:      getEnvAsInt("EXPIRY_SOON_DAYS", 7),
		},
		Queue: QueueConfig{
			Workers:        getEnvAsInt("QUEUE_WORKERS", 4),
			Size:           getEnvAsInt("QUEUE_SIZE", 64),
			ProcessTimeout: getEnvAsDuration("PROCESS_TIMEOUT", 30*time.Second),
		},
		Reminder: ReminderConfig{
			DefaultTime: getEnv("REMINDER_DEFAULT_TIME", "09:00"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

// SlogLevel maps the configured log level string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return NewAppError("CONFIG_ERROR", "DB_PATH is required for the sqlite driver", ErrInvalidInput)
		}
	case "postgres":
		if c.Database.DSN == "" {
			return NewAppError("CONFIG_ERROR", "DATABASE_URL is required for the postgres driver", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown DB_DRIVER %q", c.Database.Driver), ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Extract.ReviewThreshold < 0 || c.Extract.ReviewThreshold > 1 {
		return NewAppError("CONFIG_ERROR", "MEDISCAN_REVIEW_THRESHOLD must be in [0,1]", ErrInvalidInput)
	}
	if c.Extract.CandidateFloor < 0 || c.Extract.CandidateFloor > 1 {
		return NewAppError("CONFIG_ERROR", "MEDISCAN_CANDIDATE_FLOOR must be in [0,1]", ErrInvalidInput)
	}
	if c.Extract.SimilarityThreshold < 0 || c.Extract.SimilarityThreshold > 1 {
		return NewAppError("CONFIG_ERROR", "MEDISCAN_SIMILARITY_THRESHOLD must be in [0,1]", ErrInvalidInput)
	}
	if c.Extract.DateKeywordWindow < 0 {
		return NewAppError("CONFIG_ERROR", "MEDISCAN_DATE_KEYWORD_WINDOW must be >= 0", ErrInvalidInput)
	}
	if c.Queue.Workers < 1 {
		return NewAppError("CONFIG_ERROR", "QUEUE_WORKERS must be >= 1", ErrInvalidInput)
	}
	if c.Queue.Size < 1 {
		return NewAppError("CONFIG_ERROR", "QUEUE_SIZE must be >= 1", ErrInvalidInput)
	}
	if _, err := time.Parse("15:04", c.Reminder.DefaultTime); err != nil {
		return NewAppError("CONFIG_ERROR", "REMINDER_DEFAULT_TIME must be HH:MM", ErrInvalidInput)
	}
	return nil
}
