package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/haru-ai/haru/internal/consts"
)

var defaultManager = &InstanceManager{}

// InstanceManager holds the process-wide loaded configuration.
type InstanceManager struct {
	path   string
	loaded bool
	cfg    *Config

	mu sync.RWMutex
}

func (ins *InstanceManager) Get() (*Config, error) {
	if ins == nil {
		return nil, fmt.Errorf("instance manager is nil")
	}

	ins.mu.RLock()
	defer ins.mu.RUnlock()

	if !ins.loaded || ins.cfg == nil {
		return nil, fmt.Errorf("config is not loaded")
	}

	clone := *ins.cfg
	return &clone, nil
}

func (ins *InstanceManager) Load(path string) (*Config, error) {
	if ins == nil {
		return nil, fmt.Errorf("instance manager is nil")
	}

	ins.mu.Lock()
	defer ins.mu.Unlock()

	path = strings.TrimSpace(path)
	if path == "" {
		path = consts.DefaultConfigPath()
	}

	cfg, err := loadConfigFile(path)
	if err != nil {
		return nil, err
	}

	ins.path = path
	ins.cfg = cfg
	ins.loaded = true

	clone := *cfg
	return &clone, nil
}

func loadConfigFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = "0.0.0.0:8080"
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 60
	}
	if cfg.Scheduler.Store == "" {
		cfg.Scheduler.Store = consts.DefaultTaskStorePath()
	}
	if cfg.Scheduler.MaxConcurrentRuns <= 0 {
		cfg.Scheduler.MaxConcurrentRuns = 4
	}
	if cfg.Scheduler.TaskTimeoutSec <= 0 {
		cfg.Scheduler.TaskTimeoutSec = 300
	}
	if cfg.Scheduler.Retention.Schedule == "" {
		cfg.Scheduler.Retention.Schedule = "0 3 * * *"
	}
	if cfg.Scheduler.Retention.MaxAgeDays == 0 {
		cfg.Scheduler.Retention.MaxAgeDays = 30
	}
}

func Load(path string) (*Config, error) {
	return defaultManager.Load(path)
}

func Get() (*Config, error) {
	return defaultManager.Get()
}
