package enrichment

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
)

// FetcherChain опрашивает источники в порядке приоритета до первого найденного
type FetcherChain struct {
	fetchers []SpecsFetcher
	cache    *SpecsCache
}

// NewFetcherChain создает цепочку HTML-источников с общим кэшем
func NewFetcherChain(configs []FetcherConfig, cacheConfig *CacheConfig, logger *zap.Logger) *FetcherChain {
	chain := &FetcherChain{cache: NewSpecsCache(cacheConfig)}

	for _, config := range configs {
		if !config.Enabled {
			continue
		}
		fetcher := NewHTMLFetcher(config, logger)
		fetcher.SetCache(chain.cache)
		chain.fetchers = append(chain.fetchers, fetcher)
	}

	chain.sortByPriority()
	return chain
}

// NewFetcherChainFrom собирает цепочку из готовых источников
func NewFetcherChainFrom(fetchers ...SpecsFetcher) *FetcherChain {
	chain := &FetcherChain{fetchers: fetchers}
	chain.sortByPriority()
	return chain
}

// Cache общий кэш цепочки (может быть nil)
func (c *FetcherChain) Cache() *SpecsCache {
	return c.cache
}

// Fetch возвращает первый найденный результат. Если ни один источник
// не нашел код, возвращает Found=false
func (c *FetcherChain) Fetch(ctx context.Context, code string) *SpecsResult {
	for _, fetcher := range c.fetchers {
		if !fetcher.IsAvailable() {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		result := fetcher.Fetch(ctx, code)
		if result != nil && result.Found {
			return result
		}
	}
	return &SpecsResult{Found: false, Status: StatusNotFound, Timestamp: time.Now()}
}

// GetAvailableServices возвращает список включенных источников
func (c *FetcherChain) GetAvailableServices() []string {
	var services []string
	for _, fetcher := range c.fetchers {
		if fetcher.IsAvailable() {
			services = append(services, fetcher.GetName())
		}
	}
	return services
}

func (c *FetcherChain) sortByPriority() {
	sort.SliceStable(c.fetchers, func(i, j int) bool {
		return c.fetchers[i].GetPriority() < c.fetchers[j].GetPriority()
	})
}
