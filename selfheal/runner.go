package selfheal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"elimfilters/classification"
	"elimfilters/internal/metrics"
)

// События уведомлений
const (
	EventStabilization = "threshold_escalation_recommended"
	EventRuleConflict  = "learned_rule_conflict"
)

// RunnerConfig параметры запуска майнера
type RunnerConfig struct {
	RulesPath       string
	LockPath        string
	LockStaleAfter  time.Duration
	Threshold       int
	ConfidenceFloor float64
	Stabilization   StabilizationConfig
}

// RunSummary итог запуска майнера
type RunSummary struct {
	MineResult
	CorruptEntries int           `json:"corrupt_entries"`
	RulesTotal     int           `json:"rules_total"`
	Stabilization  Stabilization `json:"stabilization"`
	Notified       bool          `json:"notified"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
}

// Runner пакетный запуск майнера: блокировка, чтение журнала, слияние правил,
// атомарная запись, проверка стабилизации, уведомление
type Runner struct {
	cfg      RunnerConfig
	log      *FailureLog
	notifier Notifier
	logger   *zap.Logger
	lock     *FileLock
	now      func() time.Time

	onRulesChanged func()
}

// NewRunner создает запуск майнера. notifier может быть nil
func NewRunner(cfg RunnerConfig, log *FailureLog, notifier Notifier, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if cfg.ConfidenceFloor <= 0 {
		cfg.ConfidenceFloor = DefaultConfidenceFloor
	}
	if cfg.LockPath == "" {
		cfg.LockPath = cfg.RulesPath + ".lock"
	}
	return &Runner{
		cfg:      cfg,
		log:      log,
		notifier: notifier,
		logger:   logger,
		lock:     NewFileLock(cfg.LockPath, cfg.LockStaleAfter),
		now:      time.Now,
	}
}

// OnRulesChanged регистрирует обработчик, вызываемый после записи новых правил
func (r *Runner) OnRulesChanged(fn func()) {
	r.onRulesChanged = fn
}

// Run выполняет один проход. Параллельный запуск возвращает ErrMinerBusy
func (r *Runner) Run(ctx context.Context) (*RunSummary, error) {
	started := r.now()

	if err := r.lock.Acquire(); err != nil {
		if errors.Is(err, ErrLockBusy) {
			metrics.MinerRunsTotal.WithLabelValues("busy").Inc()
			r.logger.Warn("Self-heal run skipped, lock is held",
				zap.String("lock", r.cfg.LockPath),
				zap.Int("holder_pid", r.lock.lockHolder()),
			)
			return nil, ErrMinerBusy
		}
		return nil, err
	}
	defer func() {
		if err := r.lock.Release(); err != nil {
			r.logger.Error("Failed to release self-heal lock", zap.Error(err))
		}
	}()

	summary, err := r.run(ctx, started)
	if err != nil {
		metrics.MinerRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.MinerRunsTotal.WithLabelValues("ok").Inc()
	return summary, nil
}

func (r *Runner) run(ctx context.Context, started time.Time) (*RunSummary, error) {
	failures, corrupt, err := r.log.ReadAll()
	if err != nil {
		return nil, err
	}
	if corrupt > 0 {
		r.logger.Warn("Skipped corrupt failure log entries", zap.Int("count", corrupt))
	}

	// Таблица перечитывается под блокировкой
	rules, err := classification.LoadRuleTable(r.cfg.RulesPath)
	if err != nil {
		return nil, err
	}

	mined := Mine(failures, rules, r.cfg.Threshold, r.cfg.ConfidenceFloor)

	if len(mined.Injected) > 0 {
		if err := classification.SaveRuleTable(r.cfg.RulesPath, rules); err != nil {
			return nil, fmt.Errorf("failed to save learned rules: %w", err)
		}
		metrics.RulesInjectedTotal.Add(float64(len(mined.Injected)))
		for _, rule := range mined.Injected {
			r.logger.Info("Learned rule injected",
				zap.String("token", rule.Token),
				zap.String("value", rule.Value),
			)
		}
		if r.onRulesChanged != nil {
			r.onRulesChanged()
		}
	}

	for _, conflict := range mined.Conflicts {
		metrics.RuleConflictsTotal.Inc()
		r.logger.Warn("Dominant suggestion disagrees with learned rule",
			zap.String("token", conflict.Token),
			zap.String("learned", conflict.Learned),
			zap.String("suggested", conflict.Suggested),
			zap.Int("count", conflict.Count),
		)
	}

	stabilization := CheckStabilization(failures, r.now(), r.cfg.Stabilization)

	summary := &RunSummary{
		MineResult:     mined,
		CorruptEntries: corrupt,
		RulesTotal:     rules.Len(),
		Stabilization:  stabilization,
		StartedAt:      started,
	}

	if stabilization.Stabilized {
		r.notifier.Notify(ctx, Notification{
			Text:          stabilization.Message(),
			Event:         EventStabilization,
			Stabilization: &stabilization,
			Conflicts:     mined.Conflicts,
		})
		summary.Notified = true
	} else if len(mined.Conflicts) > 0 {
		r.notifier.Notify(ctx, Notification{
			Text:      fmt.Sprintf("%d learned rule(s) disagree with the current dominant suggestion", len(mined.Conflicts)),
			Event:     EventRuleConflict,
			Conflicts: mined.Conflicts,
		})
		summary.Notified = true
	}

	summary.Duration = r.now().Sub(started)
	r.logger.Info("Self-heal run finished",
		zap.Int("scanned", mined.Scanned),
		zap.Int("skipped", mined.Skipped),
		zap.Int("groups", len(mined.Groups)),
		zap.Int("injected", len(mined.Injected)),
		zap.Int("conflicts", len(mined.Conflicts)),
		zap.Bool("stabilized", stabilization.Stabilized),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

// Loop запускает майнер сразу и затем каждые interval до отмены контекста
func (r *Runner) Loop(ctx context.Context, interval time.Duration) {
	runOnce := func() {
		if _, err := r.Run(ctx); err != nil && !errors.Is(err, ErrMinerBusy) {
			r.logger.Error("Self-heal run failed", zap.Error(err))
		}
	}

	runOnce()
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
