package container

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"elimfilters/classification"
	"elimfilters/database"
	"elimfilters/enrichment"
	"elimfilters/internal/api/routes"
	skuapp "elimfilters/internal/application/sku"
	"elimfilters/internal/config"
	"elimfilters/internal/logging"
	"elimfilters/selfheal"
)

// Container контейнер зависимостей сервиса.
// Управляет жизненным циклом хранилищ, правил, каталогов и майнера
type Container struct {
	mu sync.RWMutex

	// Конфигурация
	Config *config.Config
	Logger *zap.Logger

	// Хранилища
	SQLite *database.SQLiteStore
	Store  *database.MultiStore

	// Правила
	Rules    *classification.RuleRepository
	Resolver *classification.Resolver

	// Каталоги
	Fetchers *enrichment.FetcherChain
	Bridge   *enrichment.Bridge

	// Самообучение
	FailureLog *selfheal.FailureLog
	Runner     *selfheal.Runner

	// Политика SKU
	UseCase *skuapp.UseCase

	Handlers routes.Handlers

	cancel context.CancelFunc
	closed bool
}

// NewContainer создает контейнер и инициализирует все компоненты.
// Фоновые задачи (обновление правил, очистка кэша) живут до Close
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger, err := logging.New(cfg.Logging())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return NewContainerWithLogger(cfg, logger)
}

// NewContainerWithLogger то же, что NewContainer, с готовым логгером
func NewContainerWithLogger(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Container{
		Config: cfg,
		Logger: logger,
		cancel: cancel,
	}

	steps := []struct {
		name string
		init func(context.Context) error
	}{
		{"storage", c.initStorage},
		{"rules", c.initRules},
		{"enrichment", c.initEnrichment},
		{"selfheal", c.initSelfHeal},
		{"handlers", c.initHandlers},
	}
	for _, step := range steps {
		if err := step.init(ctx); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
	}

	logger.Info("Container initialized",
		zap.Int("storage_backends", c.Store.Backends()),
		zap.Int("static_rules", len(c.Resolver.StaticRules())),
		zap.Int("learned_rules", c.Rules.Snapshot().Len()),
		zap.Bool("scraper_enabled", c.Fetchers != nil),
	)
	return c, nil
}

// Router возвращает gin router со всеми маршрутами
func (c *Container) Router() *gin.Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return routes.NewRouter(c.Handlers, c.Logger)
}

// Close останавливает фоновые задачи и закрывает хранилища
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.cancel != nil {
		c.cancel()
	}

	var errs []error
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	_ = c.Logger.Sync()
	return errors.Join(errs...)
}
