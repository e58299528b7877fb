package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type (
	Config struct {
		Server    ServerConfig    `yaml:"server"`
		Logging   LoggingConfig   `yaml:"logging"`
		Scheduler SchedulerConfig `yaml:"scheduler"`
		Agent     AgentConfig     `yaml:"agent"`
		Notify    NotifyConfig    `yaml:"notify"`
	}

	ServerConfig struct {
		Bind           string `yaml:"bind"`
		APIKey         string `yaml:"api_key"`
		MetricsBind    string `yaml:"metrics_bind"`
		RequestTimeout int    `yaml:"request_timeout"` // seconds
	}

	LoggingConfig struct {
		Level      string `yaml:"level"`  // debug, info, warn, error
		Format     string `yaml:"format"` // json, text
		Output     string `yaml:"output"` // stdout, file
		File       string `yaml:"file"`
		MaxSize    int    `yaml:"max_size"` // MB
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"` // days
	}

	SchedulerConfig struct {
		Store             string          `yaml:"store"`
		TickInterval      string          `yaml:"tick_interval"` // Go duration string
		MaxConcurrentRuns int             `yaml:"max_concurrent_runs"`
		TaskTimeoutSec    int             `yaml:"task_timeout_sec"`
		AdminUserID       string          `yaml:"admin_user_id"`
		Retention         RetentionConfig `yaml:"retention"`
	}

	RetentionConfig struct {
		Enabled    *bool  `yaml:"enabled"`  // nil means enabled
		Schedule   string `yaml:"schedule"` // 5-field cron expression
		MaxAgeDays int    `yaml:"max_age_days"`
	}

	AgentConfig struct {
		Endpoint   string `yaml:"endpoint"`
		APIKey     string `yaml:"api_key"`
		TimeoutSec int    `yaml:"timeout_sec"`
	}

	NotifyConfig struct {
		Endpoint   string `yaml:"endpoint"`
		APIKey     string `yaml:"api_key"`
		TimeoutSec int    `yaml:"timeout_sec"`
	}
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "", "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return fmt.Errorf("logging.level %q is not valid", c.Logging.Level)
	}

	if c.Scheduler.TickInterval != "" {
		d, err := time.ParseDuration(c.Scheduler.TickInterval)
		if err != nil {
			return fmt.Errorf("scheduler.tick_interval: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("scheduler.tick_interval must be positive, got %v", d)
		}
	}

	if c.Scheduler.MaxConcurrentRuns < 0 {
		return fmt.Errorf("scheduler.max_concurrent_runs cannot be negative")
	}

	if s := strings.TrimSpace(c.Scheduler.Retention.Schedule); s != "" {
		if _, err := cronParser.Parse(s); err != nil {
			return fmt.Errorf("scheduler.retention.schedule %q: %w", s, err)
		}
	}
	if c.Scheduler.Retention.MaxAgeDays < 0 {
		return fmt.Errorf("scheduler.retention.max_age_days cannot be negative")
	}

	return nil
}

// RetentionEnabled reports whether the terminal-record sweep should run.
func (c RetentionConfig) RetentionEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// TickIntervalDuration returns the scheduler tick interval, falling back to
// one second when unset.
func (c SchedulerConfig) TickIntervalDuration() time.Duration {
	if c.TickInterval == "" {
		return time.Second
	}
	d, err := time.ParseDuration(c.TickInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}
