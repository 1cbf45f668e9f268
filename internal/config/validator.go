package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Validate проверяет корректность конфигурации и собирает все ошибки
func (c *Config) Validate() error {
	var errors []string

	// Валидация порта
	if c.Port == "" {
		errors = append(errors, "port is required")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("invalid port: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("port must be between 1 and 65535, got %d", port))
		}
	}

	if c.SQLitePath == "" && c.PostgresDSN == "" && c.SpreadsheetPath == "" {
		errors = append(errors, "at least one store (sqlite, postgres, spreadsheet) is required")
	}
	if c.LearnedRulesPath == "" {
		errors = append(errors, "learned rules path is required")
	}

	// Валидация connection pooling
	if c.MaxOpenConns < 1 {
		errors = append(errors, "max open connections must be at least 1")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		errors = append(errors, "max idle connections cannot be greater than max open connections")
	}

	// Валидация уровня логирования
	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	if c.LogLevel != "" {
		valid := false
		logLevelUpper := strings.ToUpper(c.LogLevel)
		for _, level := range validLogLevels {
			if logLevelUpper == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("invalid log level: %s (valid: %s)",
				c.LogLevel, strings.Join(validLogLevels, ", ")))
		}
	}
	if c.LogFormat != "" && c.LogFormat != "json" && c.LogFormat != "console" {
		errors = append(errors, fmt.Sprintf("invalid log format: %s (valid: json, console)", c.LogFormat))
	}

	if c.SelfHeal != nil {
		if err := c.SelfHeal.Validate(); err != nil {
			errors = append(errors, fmt.Sprintf("self-heal config: %v", err))
		}
	}
	if c.Scraper != nil {
		if err := c.Scraper.Validate(); err != nil {
			errors = append(errors, fmt.Sprintf("scraper config: %v", err))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// Validate проверяет параметры майнера и стабилизации
func (sc *SelfHealConfig) Validate() error {
	var errors []string

	if sc.FailureLogPath == "" {
		errors = append(errors, "failure log path is required")
	}
	if sc.Threshold < 1 {
		errors = append(errors, "threshold must be at least 1")
	}
	if sc.ConfidenceFloor <= 0 || sc.ConfidenceFloor > 1 {
		errors = append(errors, "confidence floor must be in (0, 1]")
	}
	if sc.EscalatedThreshold < sc.Threshold {
		errors = append(errors, "escalated threshold cannot be lower than threshold")
	}
	if sc.Window < time.Minute {
		errors = append(errors, "stabilization window must be at least 1 minute")
	}
	if sc.StabilizationTarget <= 0 || sc.StabilizationTarget > 1 {
		errors = append(errors, "stabilization target must be in (0, 1]")
	}
	if sc.StabilizationMin < 0 {
		errors = append(errors, "stabilization minimum cannot be negative")
	}
	if sc.Interval < time.Minute {
		errors = append(errors, "miner interval must be at least 1 minute")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}
	return nil
}

// Validate проверяет параметры каталогов
func (s *ScraperConfig) Validate() error {
	var errors []string

	if s.Timeout < 100*time.Millisecond {
		errors = append(errors, "timeout must be at least 100ms")
	}
	if s.RateLimitPerSec <= 0 {
		errors = append(errors, "rate limit must be positive")
	}
	if s.CacheTTL > 0 && s.CacheCleanup < time.Minute {
		errors = append(errors, "cache cleanup interval must be at least 1 minute")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}
	return nil
}

// GetDefaults возвращает конфигурацию со значениями по умолчанию
func GetDefaults() *Config {
	return &Config{
		Port:                "9999",
		LogLevel:            "INFO",
		LogFormat:           "json",
		SQLitePath:          "data/catalog.db",
		MaxOpenConns:        10,
		MaxIdleConns:        5,
		ConnMaxLifetime:     5 * time.Minute,
		LearnedRulesPath:    "data/learned_rules.json",
		RulesReloadInterval: 30 * time.Second,
		SelfHeal: &SelfHealConfig{
			FailureLogPath:      "data/failure_log.json",
			Threshold:           3,
			ConfidenceFloor:     0.8,
			EscalatedThreshold:  5,
			Window:              48 * time.Hour,
			StabilizationTarget: 0.8,
			StabilizationMin:    30,
			Interval:            time.Hour,
			LockStaleAfter:      30 * time.Minute,
			WebhookTimeout:      10 * time.Second,
		},
		Scraper: &ScraperConfig{
			Enabled:         true,
			Timeout:         8 * time.Second,
			RateLimitPerSec: 1,
			CacheTTL:        24 * time.Hour,
			CacheCleanup:    time.Hour,
			URLs:            map[string]string{},
		},
		Backup: &BackupConfig{Region: "us-east-1", Prefix: "elimfilters/"},
	}
}
