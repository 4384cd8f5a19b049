package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	// ErrInvalidCheckMode is returned for a CHECK_MODE other than optimistic or strict.
	ErrInvalidCheckMode = errors.New("check mode must be optimistic or strict")
	// ErrInvalidSchedule is returned when CHECK_SCHEDULE is not a cron expression.
	ErrInvalidSchedule = errors.New("invalid check schedule")
)

// Config holds application configuration. Only the HTTP and checker
// settings are always used; DatabaseURL and RedisURL enable persistent
// sources when set.
type Config struct {
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	RedisURL    string `yaml:"redis_url" env:"REDIS_URL"`
	ServerPort  string `yaml:"server_port" env:"SERVER_PORT"`
	LogFile     string `yaml:"log_file" env:"LOG_FILE"`

	UserAgent string        `yaml:"user_agent" env:"FETCHER_USER_AGENT"`
	Timeout   time.Duration `yaml:"timeout" env:"FETCHER_TIMEOUT"`
	Proxies   []string      `yaml:"proxies" env:"FETCHER_PROXIES"`

	CheckBatchSize int           `yaml:"check_batch_size" env:"CHECK_BATCH_SIZE"`
	CheckTimeout   time.Duration `yaml:"check_timeout" env:"CHECK_TIMEOUT"`
	CheckMode      string        `yaml:"check_mode" env:"CHECK_MODE"`
	CheckVerifyHLS bool          `yaml:"check_verify_hls" env:"CHECK_VERIFY_HLS"`
	CheckSchedule  string        `yaml:"check_schedule" env:"CHECK_SCHEDULE"`

	SessionTTL time.Duration `yaml:"session_ttl" env:"SESSION_TTL"`
}

// Defaults returns a Config with every optional field filled in.
func Defaults() *Config {
	return &Config{
		ServerPort:     "8080",
		UserAgent:      "StreamScout/1.0",
		Timeout:        30 * time.Second,
		CheckBatchSize: 15,
		CheckTimeout:   5 * time.Second,
		CheckMode:      "optimistic",
		SessionTTL:     time.Hour,
	}
}

// Load builds config from environment variables after loading .env.local
// and .env (variables already set in the environment win). Malformed
// numbers and durations fall back to their defaults.
func Load() (*Config, error) {
	loadEnvFiles()

	c := Defaults()
	c.DatabaseURL = os.Getenv("DATABASE_URL")
	c.RedisURL = os.Getenv("REDIS_URL")
	c.LogFile = os.Getenv("LOG_FILE")
	c.CheckSchedule = strings.TrimSpace(os.Getenv("CHECK_SCHEDULE"))
	c.Proxies = splitList(os.Getenv("FETCHER_PROXIES"))

	if s := os.Getenv("SERVER_PORT"); s != "" {
		c.ServerPort = s
	}
	if s := os.Getenv("FETCHER_USER_AGENT"); s != "" {
		c.UserAgent = s
	}
	if s := os.Getenv("CHECK_MODE"); s != "" {
		c.CheckMode = strings.ToLower(strings.TrimSpace(s))
	}
	c.Timeout = durationOr(os.Getenv("FETCHER_TIMEOUT"), c.Timeout)
	c.CheckTimeout = durationOr(os.Getenv("CHECK_TIMEOUT"), c.CheckTimeout)
	c.SessionTTL = durationOr(os.Getenv("SESSION_TTL"), c.SessionTTL)
	c.CheckBatchSize = intOr(os.Getenv("CHECK_BATCH_SIZE"), c.CheckBatchSize)
	if b, err := strconv.ParseBool(os.Getenv("CHECK_VERIFY_HLS")); err == nil {
		c.CheckVerifyHLS = b
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the fields that cannot silently fall back to a default.
func (c *Config) Validate() error {
	switch c.CheckMode {
	case "optimistic", "strict":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCheckMode, c.CheckMode)
	}
	if c.CheckSchedule != "" {
		if _, err := cron.ParseStandard(c.CheckSchedule); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}
	}
	return nil
}

// HasDatabase reports whether persistent sources are enabled.
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func intOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
