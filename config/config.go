package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	DatabaseURL string
	LogLevel    string

	JWTSecret  string
	CronSecret string

	CheckInterval       time.Duration
	ProbeTimeout        time.Duration
	MaxConcurrentProbes int

	UptimeRetentionDays int
	ResultRetentionDays int
	ArchiveInterval     time.Duration
	RetentionInterval   time.Duration
	ArchiveBucket       string
	ArchivePrefix       string
	ArchiveDir          string
	S3Endpoint          string
	AWSRegion           string

	SendGridAPIKey  string
	AlertEmail      string
	SlackWebhookURL string

	ServicesFile string

	Features Features
}

func Load() Config {
	return Config{
		Port:        getenv("PORT", "8080"),
		DatabaseURL: getenv("DATABASE_URL", "sqlite://./data/playjelly.db"),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		JWTSecret:  os.Getenv("JWT_SECRET"),
		CronSecret: os.Getenv("CRON_SECRET"),

		CheckInterval:       getenvDuration("CHECK_INTERVAL", time.Minute),
		ProbeTimeout:        getenvDuration("PROBE_TIMEOUT", 5*time.Second),
		MaxConcurrentProbes: getenvInt("MAX_CONCURRENT_PROBES", 20),

		UptimeRetentionDays: getenvInt("UPTIME_RETENTION_DAYS", 365),
		ResultRetentionDays: getenvInt("RESULT_RETENTION_DAYS", 30),
		ArchiveInterval:     getenvDuration("ARCHIVE_INTERVAL", 24*time.Hour),
		RetentionInterval:   getenvDuration("RETENTION_INTERVAL", 6*time.Hour),
		ArchiveBucket:       os.Getenv("ARCHIVE_BUCKET"),
		ArchivePrefix:       getenv("ARCHIVE_PREFIX", "uptime-archives"),
		ArchiveDir:          getenv("ARCHIVE_DIR", "./data/archives"),
		S3Endpoint:          os.Getenv("S3_ENDPOINT"),
		AWSRegion:           os.Getenv("AWS_REGION"),

		SendGridAPIKey:  os.Getenv("SENDGRID_API_KEY"),
		AlertEmail:      os.Getenv("ALERT_EMAIL"),
		SlackWebhookURL: os.Getenv("SLACK_WEBHOOK_URL"),

		ServicesFile: os.Getenv("SERVICES_FILE"),

		Features: LoadFeatures(),
	}
}

func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL cannot be empty")
	}
	if c.Features.AuthEnabled && c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required when AUTH_ENABLED=true")
	}
	if c.CheckInterval < time.Second {
		return fmt.Errorf("CHECK_INTERVAL must be at least 1s, got %s", c.CheckInterval)
	}
	if c.ProbeTimeout <= 0 {
		return errors.New("PROBE_TIMEOUT must be > 0")
	}
	if c.MaxConcurrentProbes < 0 {
		return errors.New("MAX_CONCURRENT_PROBES must be >= 0")
	}
	if c.UptimeRetentionDays <= 0 {
		return errors.New("UPTIME_RETENTION_DAYS must be > 0")
	}
	if c.ResultRetentionDays <= 0 {
		return errors.New("RESULT_RETENTION_DAYS must be > 0")
	}
	if c.ArchiveInterval <= 0 || c.RetentionInterval <= 0 {
		return errors.New("ARCHIVE_INTERVAL and RETENTION_INTERVAL must be > 0")
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d
	}
	return n
}

func getenvDuration(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		return d
	}
	return dur
}

func getenvBool(k string, d bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(k)))
	if v == "" {
		return d
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	return d
}
