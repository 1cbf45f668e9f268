package container

import (
	"context"

	"go.uber.org/zap"

	skuapp "elimfilters/internal/application/sku"
	"elimfilters/selfheal"
)

// initSelfHeal создает журнал неудач, майнер и политику SKU
func (c *Container) initSelfHeal(ctx context.Context) error {
	sh := c.Config.SelfHeal
	if err := ensureDir(sh.FailureLogPath); err != nil {
		return err
	}
	c.FailureLog = selfheal.NewFailureLog(sh.FailureLogPath, c.Logger)

	var notifier selfheal.Notifier
	if sh.WebhookURL != "" {
		notifier = selfheal.NewWebhookNotifier(sh.WebhookURL, c.Logger, selfheal.WithWebhookTimeout(sh.WebhookTimeout))
	}

	c.Runner = selfheal.NewRunner(c.Config.RunnerConfig(), c.FailureLog, notifier, c.Logger)
	c.Runner.OnRulesChanged(func() {
		if err := c.Rules.Reload(); err != nil {
			c.Logger.Error("Failed to reload learned rules after mining", zap.Error(err))
		}
	})

	c.UseCase = skuapp.NewUseCase(c.Bridge, c.Store, c.FailureLog, c.Logger)
	return nil
}

// StartMiner запускает майнер в фоне с интервалом из конфигурации
func (c *Container) StartMiner(ctx context.Context) {
	interval := c.Config.SelfHeal.Interval
	if interval <= 0 {
		return
	}
	go c.Runner.Loop(ctx, interval)
}
