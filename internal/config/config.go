// Package config provides YAML-based configuration loading for Deskhand.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Deskhand configuration, loaded from deskhand.yaml.
type Config struct {
	Platform  string          `yaml:"platform"` // "discord" or "slack"
	Channel   string          `yaml:"channel"`  // optional shared channel for new-request announcements
	Admins    []string        `yaml:"admins"`   // administrator user IDs
	Discord   DiscordConfig   `yaml:"discord"`
	Slack     SlackConfig     `yaml:"slack"`
	Database  DatabaseConfig  `yaml:"database"`
	Notify    NotifyConfig    `yaml:"notify"`
	Digest    DigestConfig    `yaml:"digest"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// DiscordConfig holds Discord bot credentials.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
}

// SlackConfig holds Slack Socket Mode credentials.
type SlackConfig struct {
	AppToken string `yaml:"app_token"` // xapp-...
	BotToken string `yaml:"bot_token"` // xoxb-...
}

// DatabaseConfig selects and configures the storage backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" (default) or "mysql"
	Path   string `yaml:"path"`   // sqlite file path
	Host   string `yaml:"host"`   // mysql host
	Port   int    `yaml:"port"`   // mysql port
	Name   string `yaml:"name"`   // mysql database name
	User   string `yaml:"user"`   // mysql user
}

// NotifyConfig tunes notification fan-out behavior.
type NotifyConfig struct {
	SendDelayMs int `yaml:"send_delay_ms"` // pause between admin deliveries
}

// DigestConfig controls the scheduled open-request digest.
type DigestConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"` // 5-field cron expression
}

// DashboardConfig configures the read-only web dashboard.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "deskhand.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Name == "" {
		c.Database.Name = "deskhand"
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Notify.SendDelayMs == 0 {
		c.Notify.SendDelayMs = 300
	}
	if c.Digest.Cron == "" {
		c.Digest.Cron = "0 9 * * 1-5"
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Platform {
	case "discord":
		if c.Discord.BotToken == "" {
			errs = append(errs, "discord.bot_token is required")
		}
	case "slack":
		if c.Slack.AppToken == "" {
			errs = append(errs, "slack.app_token is required")
		}
		if c.Slack.BotToken == "" {
			errs = append(errs, "slack.bot_token is required")
		}
	case "":
		errs = append(errs, "platform is required")
	default:
		errs = append(errs, fmt.Sprintf("platform %q is not supported (discord, slack)", c.Platform))
	}
	if len(c.Admins) == 0 {
		errs = append(errs, "at least one admin is required")
	}
	for i, a := range c.Admins {
		if strings.TrimSpace(a) == "" {
			errs = append(errs, fmt.Sprintf("admins[%d] is empty", i))
		}
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// IsAdmin reports whether userID is in the configured administrator set.
func (c *Config) IsAdmin(userID string) bool {
	for _, a := range c.Admins {
		if a == userID {
			return true
		}
	}
	return false
}
