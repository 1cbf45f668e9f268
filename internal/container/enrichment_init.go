package container

import (
	"context"

	"go.uber.org/zap"

	"elimfilters/classification"
	"elimfilters/enrichment"
)

// initEnrichment создает цепочку каталогов и мост подсказок.
// При выключенных каталогах мост работает только на правилах
func (c *Container) initEnrichment(ctx context.Context) error {
	var fetcher enrichment.Fetcher

	scraper := c.Config.Scraper
	if scraper != nil && scraper.Enabled {
		chain := enrichment.NewFetcherChain(
			enrichment.DefaultFetcherConfigs(scraper.SourceSettings()),
			scraper.CacheConfig(),
			c.Logger,
		)
		if cache := chain.Cache(); cache != nil {
			cache.StartCleanup(ctx)
		}
		c.Fetchers = chain
		fetcher = chain

		c.Logger.Info("Catalog scrapers enabled",
			zap.Strings("sources", chain.GetAvailableServices()),
			zap.Duration("cache_ttl", scraper.CacheTTL),
		)
	} else {
		c.Logger.Info("Catalog scrapers disabled")
	}

	c.Bridge = enrichment.NewBridge(c.Resolver, fetcher, classification.NewKeywordHinter(), c.Logger)
	return nil
}
