package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"elimfilters/internal/domain/catalog"
	"elimfilters/internal/metrics"
)

// Store хранилище записей каталога с первичным ключом sku.
// UpsertBySku идемпотентен; пустые поля новой записи не затирают сохраненные
type Store interface {
	UpsertBySku(ctx context.Context, record catalog.Record) error
	// SearchBySku ищет по SKU или по исходному коду запроса; отсутствие - ErrRecordNotFound
	SearchBySku(ctx context.Context, code string) (*catalog.Record, error)
	Name() string
	Close() error
}

// MultiStore пишет во все бэкенды и считает запись успешной, если удалась хотя бы одна
type MultiStore struct {
	stores []Store
	logger *zap.Logger
}

// NewMultiStore объединяет бэкенды; порядок определяет порядок чтения
func NewMultiStore(logger *zap.Logger, stores ...Store) *MultiStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MultiStore{stores: stores, logger: logger}
}

// Name реализует Store
func (m *MultiStore) Name() string {
	names := make([]string, 0, len(m.stores))
	for _, s := range m.stores {
		names = append(names, s.Name())
	}
	return "multi(" + strings.Join(names, ",") + ")"
}

// Backends количество подключенных бэкендов
func (m *MultiStore) Backends() int {
	return len(m.stores)
}

// UpsertBySku пишет запись во все бэкенды. Ошибка возвращается, только если
// не удалось записать ни в один
func (m *MultiStore) UpsertBySku(ctx context.Context, record catalog.Record) error {
	if len(m.stores) == 0 {
		return errors.New("no storage backends configured")
	}

	var errs []error
	succeeded := 0
	for _, s := range m.stores {
		if err := s.UpsertBySku(ctx, record); err != nil {
			metrics.StoreWritesTotal.WithLabelValues(s.Name(), "error").Inc()
			m.logger.Warn("Storage backend upsert failed",
				zap.String("backend", s.Name()),
				zap.String("sku", record.SKU),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		metrics.StoreWritesTotal.WithLabelValues(s.Name(), "ok").Inc()
		succeeded++
	}

	if succeeded == 0 {
		return fmt.Errorf("all storage backends failed: %w", errors.Join(errs...))
	}
	return nil
}

// SearchBySku возвращает запись из первого бэкенда, где она есть
func (m *MultiStore) SearchBySku(ctx context.Context, code string) (*catalog.Record, error) {
	for _, s := range m.stores {
		record, err := s.SearchBySku(ctx, code)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, catalog.ErrRecordNotFound) {
			m.logger.Warn("Storage backend search failed",
				zap.String("backend", s.Name()),
				zap.String("code", code),
				zap.Error(err),
			)
		}
	}
	return nil, fmt.Errorf("%w: %s", catalog.ErrRecordNotFound, code)
}

// Close закрывает все бэкенды
func (m *MultiStore) Close() error {
	var errs []error
	for _, s := range m.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// validateRecord проверяет обязательный ключ и проставляет время обновления
func validateRecord(record *catalog.Record) error {
	record.SKU = strings.TrimSpace(record.SKU)
	if record.SKU == "" {
		return errors.New("record sku is required")
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func encodeSpecs(specs map[string]string) string {
	if len(specs) == 0 {
		return ""
	}
	data, err := json.Marshal(specs)
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeSpecs(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	var specs map[string]string
	if err := json.Unmarshal([]byte(raw), &specs); err != nil {
		return nil
	}
	return specs
}

func encodeList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	data, err := json.Marshal(items)
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeList(raw string) []string {
	if raw == "" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}
