// Package config loads settings from an optional yaml file with
// environment variables taking precedence. A .env file is honored for
// local development.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	defaultHTTPAddr    = ":8080"
	defaultSessionsDir = "sessions"
	defaultDatabase    = "sessions.db"
	defaultPairTimeout = 60
)

type Config struct {
	TgApiToken string `yaml:"tg_api_token"`

	HTTPAddr string `yaml:"http_addr"`
	AppURL   string `yaml:"app_url"`

	SessionsDir        string `yaml:"sessions_dir"`
	PairTimeoutSeconds int    `yaml:"pair_timeout_seconds"`

	DatabasePath  string `yaml:"database_path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisUsername string `yaml:"redis_username"`
	RedisPassword string `yaml:"redis_password"`

	Debug bool `yaml:"debug"`
}

// New reads the yaml file at path (a missing file is fine, env-only
// deployments carry everything in the environment) and applies env
// overrides and defaults.
func New(path string) (*Config, error) {
	godotenv.Load()

	config := &Config{}

	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err = yaml.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// env-only
	default:
		return nil, err
	}

	config.applyEnv()
	config.applyDefaults()
	return config, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		c.TgApiToken = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("APP_URL"); v != "" {
		c.AppURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.HTTPAddr = ":" + v
	}
}

func (c *Config) applyDefaults() {
	if c.HTTPAddr == "" {
		c.HTTPAddr = defaultHTTPAddr
	}
	if c.SessionsDir == "" {
		c.SessionsDir = defaultSessionsDir
	}
	if c.DatabasePath == "" {
		c.DatabasePath = defaultDatabase
	}
	if c.PairTimeoutSeconds <= 0 {
		c.PairTimeoutSeconds = defaultPairTimeout
	}
}

// PairTimeout is the bounded wait for one linking attempt.
func (c *Config) PairTimeout() time.Duration {
	return time.Duration(c.PairTimeoutSeconds) * time.Second
}
