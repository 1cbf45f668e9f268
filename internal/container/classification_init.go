package container

import (
	"context"
	"fmt"

	"elimfilters/classification"
)

// initRules загружает статические и выученные правила и собирает резолвер
func (c *Container) initRules(ctx context.Context) error {
	static, err := classification.LoadStaticRules(c.Config.StaticRulesPath)
	if err != nil {
		return fmt.Errorf("failed to load static rules: %w", err)
	}

	if err := ensureDir(c.Config.LearnedRulesPath); err != nil {
		return err
	}
	repo, err := classification.NewRuleRepository(c.Config.LearnedRulesPath, c.Logger)
	if err != nil {
		return err
	}
	repo.StartAutoRefresh(ctx, c.Config.RulesReloadInterval)

	c.Rules = repo
	c.Resolver = classification.NewResolver(static, repo, c.Logger)
	return nil
}
