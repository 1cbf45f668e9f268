package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"elimfilters/internal/config"
)

func main() {
	fmt.Println("=== Проверка конфигурации ===")
	fmt.Println("")

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("❌ Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ Конфигурация успешно загружена")
	fmt.Println("")
	printConfig(os.Stdout, cfg)
	fmt.Println("=== Проверка завершена ===")
}

func set(value string) string {
	if value != "" {
		return "[установлен]"
	}
	return "[не установлен]"
}

func printConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Основные настройки:")
	fmt.Fprintf(w, "  Порт: %s\n", cfg.Port)
	fmt.Fprintf(w, "  Логи: %s (%s)\n", cfg.LogLevel, cfg.LogFormat)
	fmt.Fprintln(w, "")

	fmt.Fprintln(w, "Хранилища:")
	fmt.Fprintf(w, "  SQLite: %s\n", cfg.SQLitePath)
	fmt.Fprintf(w, "  Postgres DSN: %s\n", set(cfg.PostgresDSN))
	fmt.Fprintf(w, "  Таблица XLSX: %s\n", cfg.SpreadsheetPath)
	fmt.Fprintf(w, "  Max Open Connections: %d\n", cfg.MaxOpenConns)
	fmt.Fprintf(w, "  Max Idle Connections: %d\n", cfg.MaxIdleConns)
	fmt.Fprintf(w, "  Connection Max Lifetime: %v\n", cfg.ConnMaxLifetime)
	fmt.Fprintln(w, "")

	fmt.Fprintln(w, "Правила:")
	fmt.Fprintf(w, "  Выученные: %s (обновление каждые %v)\n", cfg.LearnedRulesPath, cfg.RulesReloadInterval)
	if cfg.StaticRulesPath != "" {
		fmt.Fprintf(w, "  Статические: %s\n", cfg.StaticRulesPath)
	} else {
		fmt.Fprintln(w, "  Статические: встроенные")
	}
	fmt.Fprintln(w, "")

	sh := cfg.SelfHeal
	fmt.Fprintln(w, "Самообучение:")
	fmt.Fprintf(w, "  Журнал неудач: %s\n", sh.FailureLogPath)
	fmt.Fprintf(w, "  Порог: %d (доля %.2f), рекомендуемый %d\n", sh.Threshold, sh.ConfidenceFloor, sh.EscalatedThreshold)
	fmt.Fprintf(w, "  Окно стабилизации: %v, цель %.0f%%, минимум %d\n", sh.Window, sh.StabilizationTarget*100, sh.StabilizationMin)
	fmt.Fprintf(w, "  Интервал майнера: %v\n", sh.Interval)
	fmt.Fprintf(w, "  Webhook: %s\n", set(sh.WebhookURL))
	fmt.Fprintln(w, "")

	sc := cfg.Scraper
	fmt.Fprintln(w, "Каталоги:")
	fmt.Fprintf(w, "  Enabled: %v\n", sc.Enabled)
	fmt.Fprintf(w, "  Timeout: %v, лимит %.1f/с\n", sc.Timeout, sc.RateLimitPerSec)
	fmt.Fprintf(w, "  Cache TTL: %v\n", sc.CacheTTL)
	sources := make([]string, 0, len(sc.URLs))
	for source := range sc.URLs {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	for _, source := range sources {
		fmt.Fprintf(w, "  %s: %s\n", source, sc.URLs[source])
	}
	fmt.Fprintln(w, "")

	fmt.Fprintln(w, "Резервные копии:")
	if cfg.Backup.Enabled() {
		fmt.Fprintf(w, "  S3: s3://%s/%s (%s)\n", cfg.Backup.Bucket, cfg.Backup.Prefix, cfg.Backup.Region)
	} else {
		fmt.Fprintln(w, "  S3: [не настроено]")
	}
	fmt.Fprintln(w, "")
}
