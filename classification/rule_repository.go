package classification

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RuleSource источник текущего снимка выученных правил
type RuleSource interface {
	Snapshot() *RuleTable
}

// RuleRepository файловое хранилище выученных правил с явной перезагрузкой.
// Снимок неизменяем: при перезагрузке подменяется целиком
type RuleRepository struct {
	path    string
	logger  *zap.Logger
	mu      sync.RWMutex
	table   *RuleTable
	modTime time.Time
}

// NewRuleRepository создает репозиторий и загружает файл правил.
// Отсутствие файла - пустая таблица (первый запуск)
func NewRuleRepository(path string, logger *zap.Logger) (*RuleRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	repo := &RuleRepository{
		path:   path,
		logger: logger,
		table:  NewRuleTable(),
	}
	if err := repo.Reload(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Path путь к файлу правил
func (r *RuleRepository) Path() string {
	return r.path
}

// Snapshot возвращает текущую таблицу. Вызывающий не должен ее изменять
func (r *RuleRepository) Snapshot() *RuleTable {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.table
}

// Reload перечитывает файл правил
func (r *RuleRepository) Reload() error {
	var modTime time.Time
	if info, err := os.Stat(r.path); err == nil {
		modTime = info.ModTime()
	}

	table, err := LoadRuleTable(r.path)
	if err != nil {
		return fmt.Errorf("failed to reload learned rules: %w", err)
	}

	r.mu.Lock()
	r.table = table
	r.modTime = modTime
	r.mu.Unlock()

	r.logger.Info("Learned rules loaded",
		zap.String("path", r.path),
		zap.Int("rules", table.Len()),
	)
	return nil
}

// RefreshIfChanged перечитывает файл, если изменилось время модификации
func (r *RuleRepository) RefreshIfChanged() (bool, error) {
	info, err := os.Stat(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat rule file: %w", err)
	}

	r.mu.RLock()
	unchanged := info.ModTime().Equal(r.modTime)
	r.mu.RUnlock()
	if unchanged {
		return false, nil
	}

	if err := r.Reload(); err != nil {
		return false, err
	}
	return true, nil
}

// StartAutoRefresh периодически проверяет файл правил до отмены контекста
func (r *RuleRepository) StartAutoRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := r.RefreshIfChanged(); err != nil {
					r.logger.Warn("Learned rules refresh failed", zap.Error(err))
				}
			}
		}
	}()
}

// StaticSource неизменяемый источник правил (тесты, пакетная обработка)
type StaticSource struct {
	Table *RuleTable
}

// Snapshot реализует RuleSource
func (s StaticSource) Snapshot() *RuleTable {
	if s.Table == nil {
		return NewRuleTable()
	}
	return s.Table
}
