package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	DatabaseURL    string   `yaml:"database_url"`
	RedisURL       string   `yaml:"redis_url"`
	ServerPort     string   `yaml:"server_port"`
	LogFile        string   `yaml:"log_file"`
	UserAgent      string   `yaml:"user_agent"`
	Timeout        string   `yaml:"timeout"`
	Proxies        []string `yaml:"proxies"`
	CheckBatchSize int      `yaml:"check_batch_size"`
	CheckTimeout   string   `yaml:"check_timeout"`
	CheckMode      string   `yaml:"check_mode"`
	CheckVerifyHLS bool     `yaml:"check_verify_hls"`
	CheckSchedule  string   `yaml:"check_schedule"`
	SessionTTL     string   `yaml:"session_ttl"`
}

// LoadFromFile loads config from a YAML file. Missing keys take the same
// defaults as Load.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c := Defaults()
	c.DatabaseURL = f.DatabaseURL
	c.RedisURL = f.RedisURL
	c.LogFile = f.LogFile
	c.Proxies = f.Proxies
	c.CheckVerifyHLS = f.CheckVerifyHLS
	c.CheckSchedule = f.CheckSchedule
	if f.ServerPort != "" {
		c.ServerPort = f.ServerPort
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}
	if f.CheckMode != "" {
		c.CheckMode = f.CheckMode
	}
	if f.CheckBatchSize > 0 {
		c.CheckBatchSize = f.CheckBatchSize
	}
	c.Timeout = durationOr(f.Timeout, c.Timeout)
	c.CheckTimeout = durationOr(f.CheckTimeout, c.CheckTimeout)
	c.SessionTTL = durationOr(f.SessionTTL, c.SessionTTL)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
