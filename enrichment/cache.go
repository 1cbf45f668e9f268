package enrichment

import (
	"context"
	"sync"
	"time"
)

// SpecsCache кэш результатов запросов к источникам.
// Хранит и отрицательные результаты, чтобы не долбить источник повторно
type SpecsCache struct {
	config *CacheConfig
	data   map[string]*cacheEntry
	mutex  sync.RWMutex
	stats  CacheStats
}

type cacheEntry struct {
	result    *SpecsResult
	timestamp time.Time
}

// CacheStats статистика кэша
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

// NewSpecsCache создает новый кэш
func NewSpecsCache(config *CacheConfig) *SpecsCache {
	if config == nil {
		config = &CacheConfig{}
	}
	return &SpecsCache{
		config: config,
		data:   make(map[string]*cacheEntry),
	}
}

// Get возвращает результат из кэша
func (c *SpecsCache) Get(key string) (*SpecsResult, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.config.Enabled {
		c.stats.Misses++
		return nil, false
	}

	entry, exists := c.data[key]
	if !exists || time.Since(entry.timestamp) > c.config.TTL {
		c.stats.Misses++
		return nil, false
	}

	c.stats.Hits++
	return entry.result, true
}

// Set сохраняет результат в кэш
func (c *SpecsCache) Set(key string, result *SpecsResult) {
	if !c.config.Enabled || result == nil {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = &cacheEntry{
		result:    result,
		timestamp: time.Now(),
	}
	c.stats.Size = len(c.data)
}

// Clear очищает весь кэш
func (c *SpecsCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data = make(map[string]*cacheEntry)
	c.stats = CacheStats{}
}

// GetStats возвращает статистику кэша
func (c *SpecsCache) GetStats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	stats := c.stats
	stats.Size = len(c.data)
	return stats
}

// StartCleanup периодически удаляет устаревшие записи до отмены контекста
func (c *SpecsCache) StartCleanup(ctx context.Context) {
	if !c.config.Enabled || c.config.CleanupInterval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(c.config.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.cleanup()
			}
		}
	}()
}

func (c *SpecsCache) cleanup() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	for key, entry := range c.data {
		if now.Sub(entry.timestamp) > c.config.TTL {
			delete(c.data, key)
		}
	}
	c.stats.Size = len(c.data)
}
