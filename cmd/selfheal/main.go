// Команда selfheal запускает майнер выученных правил вне HTTP сервера:
// однократно (cron) или циклом с интервалом из конфигурации
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"elimfilters/internal/config"
	"elimfilters/internal/logging"
	"elimfilters/selfheal"
)

type options struct {
	once     bool
	interval time.Duration
	report   string
}

func main() {
	var opts options
	flag.BoolVar(&opts.once, "once", false, "Run the miner once and exit")
	flag.DurationVar(&opts.interval, "interval", 0, "Run interval (overrides SELFHEAL_INTERVAL)")
	flag.StringVar(&opts.report, "report", "", "Write an XLSX failure report after the run")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.Logging())
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logger, os.Stdout); err != nil {
		logger.Error("Self-heal failed", zap.Error(err))
		os.Exit(1)
	}
}

func newRunner(cfg *config.Config, logger *zap.Logger) (*selfheal.Runner, *selfheal.FailureLog) {
	failures := selfheal.NewFailureLog(cfg.SelfHeal.FailureLogPath, logger)

	var notifier selfheal.Notifier
	if cfg.SelfHeal.WebhookURL != "" {
		notifier = selfheal.NewWebhookNotifier(cfg.SelfHeal.WebhookURL, logger,
			selfheal.WithWebhookTimeout(cfg.SelfHeal.WebhookTimeout))
	}
	return selfheal.NewRunner(cfg.RunnerConfig(), failures, notifier, logger), failures
}

func run(ctx context.Context, cfg *config.Config, opts options, logger *zap.Logger, out io.Writer) error {
	runner, failures := newRunner(cfg, logger)

	if !opts.once {
		interval := opts.interval
		if interval <= 0 {
			interval = cfg.SelfHeal.Interval
		}
		logger.Info("Self-heal loop started", zap.Duration("interval", interval))
		runner.Loop(ctx, interval)
		return nil
	}

	summary, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return err
	}

	if opts.report == "" {
		return nil
	}
	events, _, err := failures.ReadAll()
	if err != nil {
		return err
	}
	if err := selfheal.ExportReport(opts.report, events, summary); err != nil {
		return fmt.Errorf("failed to export report: %w", err)
	}
	logger.Info("Self-heal report written", zap.String("path", opts.report), zap.Int("events", len(events)))
	return nil
}
