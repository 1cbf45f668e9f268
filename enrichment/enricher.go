package enrichment

import (
	"context"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// SpecsResult результат запроса характеристик детали у внешнего источника.
// Found=false означает "не найдено" независимо от причины (ошибка сети, 404, пустая страница)
type SpecsResult struct {
	Found           bool              `json:"found"`
	Source          string            `json:"source"`
	Code            string            `json:"code,omitempty"` // код детали, как его показывает источник
	Description     string            `json:"description,omitempty"`
	Specs           map[string]string `json:"specs,omitempty"`
	CrossReferences []string          `json:"cross_references,omitempty"`
	Status          string            `json:"status,omitempty"` // found, not_found, http_error, ...
	Timestamp       time.Time         `json:"timestamp"`
}

// Micron возвращает рейтинг фильтрации из характеристик, если он указан
func (r *SpecsResult) Micron() (float64, bool) {
	if r == nil {
		return 0, false
	}
	for key, value := range r.Specs {
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "micron", "micron_rating", "micron rating", "efficiency micron":
		default:
			continue
		}
		value = strings.TrimSpace(strings.ToLower(value))
		value = strings.TrimSuffix(value, "micron")
		value = strings.TrimSuffix(value, "µm")
		value = strings.TrimSuffix(value, "um")
		if v, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil && v > 0 {
			return v, true
		}
	}
	return 0, false
}

// SpecsFetcher источник характеристик (каталог конкурента).
// Fetch никогда не возвращает ошибку: любой сбой превращается в Found=false
type SpecsFetcher interface {
	Fetch(ctx context.Context, code string) *SpecsResult

	// GetName возвращает название источника
	GetName() string

	// GetPriority чем меньше, тем выше приоритет
	GetPriority() int

	// IsAvailable проверяет, включен ли источник
	IsAvailable() bool
}

// Selectors CSS-селекторы страницы товара
type Selectors struct {
	Product     string `json:"product"`               // контейнер карточки; отсутствие = не найдено
	Code        string `json:"code,omitempty"`        // номер детали
	Description string `json:"description,omitempty"` // название/описание
	SpecRows    string `json:"spec_rows,omitempty"`   // строки таблицы характеристик
	SpecName    string `json:"spec_name,omitempty"`   // ячейка названия внутри строки
	SpecValue   string `json:"spec_value,omitempty"`  // ячейка значения внутри строки
	CrossRefs   string `json:"cross_refs,omitempty"`  // элементы со списком аналогов
}

// FetcherConfig конфигурация источника характеристик
type FetcherConfig struct {
	Name      string        `json:"name"`
	URL       string        `json:"url"` // шаблон с %s для кода
	Timeout   time.Duration `json:"timeout"`
	RateLimit rate.Limit    `json:"rate_limit"` // запросов в секунду
	Enabled   bool          `json:"enabled"`
	Priority  int           `json:"priority"`
	UserAgent string        `json:"user_agent,omitempty"`
	Selectors Selectors     `json:"selectors"`
}

// CacheConfig конфигурация кэша
type CacheConfig struct {
	Enabled         bool          `json:"enabled"`
	TTL             time.Duration `json:"ttl"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}
