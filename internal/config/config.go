// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type SchedulerConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path and applies defaults. Environment
// variables override the secrets so deployments never need them on disk:
// DATABASE_URL, REDIS_URL, ADMIN_API_KEY.
func LoadConfig(path string, dev bool) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("ADMIN_API_KEY"); v != "" {
		cfg.Admin.APIKey = v
	}

	cfg.applyDefaults()
	cfg.Runtime.Dev = dev

	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required (or set DATABASE_URL)")
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Admin.Port == 0 {
		c.Admin.Port = 8080
	}
	if c.Database.PoolSize <= 0 {
		c.Database.PoolSize = 10
	}
	if c.Redis.TTL <= 0 {
		c.Redis.TTL = 5 * time.Minute
	}
	if c.Scheduler.SweepInterval <= 0 {
		c.Scheduler.SweepInterval = 10 * time.Minute
	}
}
