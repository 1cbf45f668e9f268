package container

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"elimfilters/database"
)

// initStorage открывает хранилища записей. SQLite обязателен, если задан путь;
// Postgres и таблица добавляются при наличии настроек
func (c *Container) initStorage(ctx context.Context) error {
	var stores []database.Store

	if path := c.Config.SQLitePath; path != "" {
		if err := ensureDir(path); err != nil {
			return err
		}
		sqlite, err := database.NewSQLiteStoreWithConfig(path, c.Config.DBConfig())
		if err != nil {
			return fmt.Errorf("failed to open sqlite store: %w", err)
		}
		c.SQLite = sqlite
		stores = append(stores, sqlite)
	}

	if dsn := c.Config.PostgresDSN; dsn != "" {
		pg, err := database.NewPostgresStore(ctx, dsn, c.Logger)
		if err != nil {
			// Postgres дополнительный бэкенд; без него сервис работает
			c.Logger.Warn("Postgres store unavailable", zap.Error(err))
		} else {
			stores = append(stores, pg)
		}
	}

	if path := c.Config.SpreadsheetPath; path != "" {
		if err := ensureDir(path); err != nil {
			return err
		}
		stores = append(stores, database.NewSpreadsheetStore(path))
	}

	if len(stores) == 0 {
		return fmt.Errorf("no storage backend configured")
	}

	c.Store = database.NewMultiStore(c.Logger, stores...)
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
