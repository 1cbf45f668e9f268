package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"elimfilters/database"
	"elimfilters/enrichment"
	"elimfilters/internal/logging"
	"elimfilters/selfheal"
)

// Config конфигурация сервиса
type Config struct {
	// Сервер
	Port string `json:"port"`

	// Логирование
	LogLevel       string `json:"log_level"`
	LogFormat      string `json:"log_format"`
	LogDevelopment bool   `json:"log_development"`

	// Хранилища
	SQLitePath      string        `json:"sqlite_path"`
	PostgresDSN     string        `json:"-"`
	SpreadsheetPath string        `json:"spreadsheet_path"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`

	// Правила
	LearnedRulesPath    string        `json:"learned_rules_path"`
	StaticRulesPath     string        `json:"static_rules_path"`
	RulesReloadInterval time.Duration `json:"rules_reload_interval"`

	SelfHeal *SelfHealConfig `json:"self_heal"`
	Scraper  *ScraperConfig  `json:"scraper"`
	Backup   *BackupConfig   `json:"backup"`
}

// SelfHealConfig параметры журнала неудач и майнера правил
type SelfHealConfig struct {
	FailureLogPath      string        `json:"failure_log_path"`
	Threshold           int           `json:"threshold"`
	ConfidenceFloor     float64       `json:"confidence_floor"`
	EscalatedThreshold  int           `json:"escalated_threshold"`
	Window              time.Duration `json:"window"`
	StabilizationTarget float64       `json:"stabilization_target"`
	StabilizationMin    int           `json:"stabilization_min"`
	Interval            time.Duration `json:"interval"`
	LockPath            string        `json:"lock_path"`
	LockStaleAfter      time.Duration `json:"lock_stale_after"`
	WebhookURL          string        `json:"-"`
	WebhookTimeout      time.Duration `json:"webhook_timeout"`
}

// ScraperConfig параметры каталогов конкурентов
type ScraperConfig struct {
	Enabled         bool              `json:"enabled"`
	Timeout         time.Duration     `json:"timeout"`
	RateLimitPerSec float64           `json:"rate_limit_per_sec"`
	CacheTTL        time.Duration     `json:"cache_ttl"`
	CacheCleanup    time.Duration     `json:"cache_cleanup"`
	URLs            map[string]string `json:"urls"`
}

// BackupConfig параметры резервного копирования в S3-совместимое хранилище
type BackupConfig struct {
	Bucket          string `json:"bucket"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	Prefix          string `json:"prefix"`
	AccessKeyID     string `json:"-"`
	SecretAccessKey string `json:"-"`
	UsePathStyle    bool   `json:"use_path_style"`
}

// Enabled сообщает, задан ли бакет
func (b *BackupConfig) Enabled() bool {
	return b != nil && b.Bucket != ""
}

// LoadConfig загружает конфигурацию из переменных окружения
func LoadConfig() (*Config, error) {
	config := &Config{
		Port: getEnv("SERVER_PORT", "9999"),

		LogLevel:       getEnv("LOG_LEVEL", "INFO"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		LogDevelopment: getEnvBool("LOG_DEVELOPMENT", false),

		SQLitePath:      getEnv("SQLITE_PATH", "data/catalog.db"),
		PostgresDSN:     os.Getenv("POSTGRES_DSN"),
		SpreadsheetPath: os.Getenv("SPREADSHEET_PATH"),
		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),

		LearnedRulesPath:    getEnv("LEARNED_RULES_PATH", "data/learned_rules.json"),
		StaticRulesPath:     os.Getenv("STATIC_RULES_PATH"),
		RulesReloadInterval: getEnvDuration("RULES_RELOAD_INTERVAL", 30*time.Second),

		SelfHeal: LoadSelfHealConfig(),
		Scraper:  LoadScraperConfig(),
		Backup:   LoadBackupConfig(),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// LoadSelfHealConfig загружает параметры самообучения
func LoadSelfHealConfig() *SelfHealConfig {
	return &SelfHealConfig{
		FailureLogPath:      getEnv("FAILURE_LOG_PATH", "data/failure_log.json"),
		Threshold:           getEnvInt("SELFHEAL_THRESHOLD", 3),
		ConfidenceFloor:     getEnvFloat("SELFHEAL_CONFIDENCE_FLOOR", selfheal.DefaultConfidenceFloor),
		EscalatedThreshold:  getEnvInt("SELFHEAL_ESCALATED_THRESHOLD", 5),
		Window:              getEnvDuration("SELFHEAL_WINDOW", 48*time.Hour),
		StabilizationTarget: getEnvFloat("SELFHEAL_STABILIZATION_TARGET", 0.8),
		StabilizationMin:    getEnvInt("SELFHEAL_STABILIZATION_MIN", 30),
		Interval:            getEnvDuration("SELFHEAL_INTERVAL", time.Hour),
		LockPath:            os.Getenv("SELFHEAL_LOCK_PATH"),
		LockStaleAfter:      getEnvDuration("SELFHEAL_LOCK_STALE_AFTER", 30*time.Minute),
		WebhookURL:          os.Getenv("NOTIFY_WEBHOOK_URL"),
		WebhookTimeout:      getEnvDuration("NOTIFY_WEBHOOK_TIMEOUT", 10*time.Second),
	}
}

// LoadScraperConfig загружает параметры каталогов
func LoadScraperConfig() *ScraperConfig {
	urls := make(map[string]string)
	for _, source := range []string{
		enrichment.SourceDonaldson,
		enrichment.SourceFram,
		enrichment.SourceFleetguard,
		enrichment.SourceRacor,
	} {
		key := "SCRAPER_" + strings.ToUpper(source) + "_URL"
		if value := os.Getenv(key); value != "" {
			urls[source] = value
		}
	}

	return &ScraperConfig{
		Enabled:         getEnvBool("SCRAPER_ENABLED", true),
		Timeout:         getEnvDuration("SCRAPER_TIMEOUT", 8*time.Second),
		RateLimitPerSec: getEnvFloat("SCRAPER_RATE_LIMIT_PER_SEC", 1),
		CacheTTL:        getEnvDuration("SCRAPER_CACHE_TTL", 24*time.Hour),
		CacheCleanup:    getEnvDuration("SCRAPER_CACHE_CLEANUP", time.Hour),
		URLs:            urls,
	}
}

// LoadBackupConfig загружает параметры резервного копирования
func LoadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Bucket:          os.Getenv("BACKUP_S3_BUCKET"),
		Region:          getEnv("BACKUP_S3_REGION", "us-east-1"),
		Endpoint:        os.Getenv("BACKUP_S3_ENDPOINT"),
		Prefix:          getEnv("BACKUP_S3_PREFIX", "elimfilters/"),
		AccessKeyID:     os.Getenv("BACKUP_S3_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("BACKUP_S3_SECRET_ACCESS_KEY"),
		UsePathStyle:    getEnvBool("BACKUP_S3_PATH_STYLE", false),
	}
}

// Logging параметры логгера
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:       strings.ToLower(c.LogLevel),
		Format:      c.LogFormat,
		Development: c.LogDevelopment,
		Fields:      map[string]string{"service": "elimfilters"},
	}
}

// DBConfig параметры пула SQLite
func (c *Config) DBConfig() database.DBConfig {
	return database.DBConfig{
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}
}

// SourceSettings параметры источников для enrichment.DefaultFetcherConfigs
func (s *ScraperConfig) SourceSettings() enrichment.SourceSettings {
	return enrichment.SourceSettings{
		Timeout:   s.Timeout,
		RateLimit: s.RateLimitPerSec,
		URLs:      s.URLs,
	}
}

// CacheConfig параметры кэша ответов каталогов
func (s *ScraperConfig) CacheConfig() *enrichment.CacheConfig {
	return &enrichment.CacheConfig{
		Enabled:         s.CacheTTL > 0,
		TTL:             s.CacheTTL,
		CleanupInterval: s.CacheCleanup,
	}
}

// RunnerConfig параметры запуска майнера
func (c *Config) RunnerConfig() selfheal.RunnerConfig {
	sh := c.SelfHeal
	return selfheal.RunnerConfig{
		RulesPath:       c.LearnedRulesPath,
		LockPath:        sh.LockPath,
		LockStaleAfter:  sh.LockStaleAfter,
		Threshold:       sh.Threshold,
		ConfidenceFloor: sh.ConfidenceFloor,
		Stabilization: selfheal.StabilizationConfig{
			Window:             sh.Window,
			Target:             sh.StabilizationTarget,
			MinVolume:          sh.StabilizationMin,
			CurrentThreshold:   sh.Threshold,
			EscalatedThreshold: sh.EscalatedThreshold,
		},
	}
}

// getEnv получает переменную окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает переменную окружения как int или возвращает значение по умолчанию
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration получает переменную окружения как Duration или возвращает значение по умолчанию
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
