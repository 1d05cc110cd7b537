package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Quotes   QuotesConfig   `yaml:"quotes"`
	UVA      UVAConfig      `yaml:"uva"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Telegram TelegramConfig `yaml:"telegram"`
	Advisor  AdvisorConfig  `yaml:"advisor"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type QuotesConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type UVAConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type JobsConfig struct {
	QuoteInterval    string `yaml:"quote_interval"`
	AnalysisInterval string `yaml:"analysis_interval"`
	UVACheckInterval string `yaml:"uva_check_interval"`
	CustodyDay       int    `yaml:"custody_day"` // day of month the custody run becomes due
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type AdvisorConfig struct {
	Enabled        bool   `yaml:"enabled"`
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/cedears.db"
	}
	if cfg.Quotes.BaseURL == "" {
		cfg.Quotes.BaseURL = "https://data912.com"
	}
	if cfg.Quotes.TimeoutSeconds == 0 {
		cfg.Quotes.TimeoutSeconds = 30
	}
	if cfg.UVA.BaseURL == "" {
		cfg.UVA.BaseURL = "https://api.argentinadatos.com"
	}
	if cfg.UVA.TimeoutSeconds == 0 {
		cfg.UVA.TimeoutSeconds = 30
	}
	if cfg.Jobs.QuoteInterval == "" {
		cfg.Jobs.QuoteInterval = "15m"
	}
	if cfg.Jobs.AnalysisInterval == "" {
		cfg.Jobs.AnalysisInterval = "1h"
	}
	if cfg.Jobs.UVACheckInterval == "" {
		cfg.Jobs.UVACheckInterval = "6h"
	}
	if cfg.Jobs.CustodyDay == 0 {
		cfg.Jobs.CustodyDay = 1
	}
	if cfg.Advisor.Model == "" {
		cfg.Advisor.Model = "gpt-4o-mini"
	}
	if cfg.Advisor.TimeoutSeconds == 0 {
		cfg.Advisor.TimeoutSeconds = 60
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.Jobs.QuoteInterval); err != nil {
		return fmt.Errorf("invalid jobs.quote_interval %q: %w", c.Jobs.QuoteInterval, err)
	}
	if _, err := time.ParseDuration(c.Jobs.AnalysisInterval); err != nil {
		return fmt.Errorf("invalid jobs.analysis_interval %q: %w", c.Jobs.AnalysisInterval, err)
	}
	if _, err := time.ParseDuration(c.Jobs.UVACheckInterval); err != nil {
		return fmt.Errorf("invalid jobs.uva_check_interval %q: %w", c.Jobs.UVACheckInterval, err)
	}
	if c.Jobs.CustodyDay < 1 || c.Jobs.CustodyDay > 28 {
		return fmt.Errorf("jobs.custody_day must be between 1 and 28, got %d", c.Jobs.CustodyDay)
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	if c.Advisor.Enabled && c.Advisor.APIKey == "" {
		return fmt.Errorf("advisor.api_key is required when advisor is enabled")
	}
	return nil
}

// MarketLocation returns the BYMA trading timezone.
func (c *Config) MarketLocation() *time.Location {
	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	if err != nil {
		loc = time.FixedZone("ART", -3*60*60)
	}
	return loc
}

func (c *Config) QuoteInterval() time.Duration {
	d, _ := time.ParseDuration(c.Jobs.QuoteInterval)
	return d
}

func (c *Config) AnalysisInterval() time.Duration {
	d, _ := time.ParseDuration(c.Jobs.AnalysisInterval)
	return d
}

func (c *Config) UVACheckInterval() time.Duration {
	d, _ := time.ParseDuration(c.Jobs.UVACheckInterval)
	return d
}

func (c *Config) QuotesTimeout() time.Duration {
	return time.Duration(c.Quotes.TimeoutSeconds) * time.Second
}

func (c *Config) UVATimeout() time.Duration {
	return time.Duration(c.UVA.TimeoutSeconds) * time.Second
}

func (c *Config) AdvisorTimeout() time.Duration {
	return time.Duration(c.Advisor.TimeoutSeconds) * time.Second
}
