package enrichment

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"elimfilters/internal/metrics"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Статусы запроса к источнику (метки метрик)
const (
	StatusFound       = "found"
	StatusNotFound    = "not_found"
	StatusCached      = "cached"
	StatusRateLimited = "rate_limited"
	StatusHTTPError   = "http_error"
	StatusParseError  = "parse_error"
	StatusTransport   = "transport_error"
)

// HTMLFetcher источник характеристик, разбирающий HTML-страницу товара
type HTMLFetcher struct {
	config     FetcherConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *SpecsCache
	logger     *zap.Logger
}

// NewHTMLFetcher создает источник. Нулевые таймаут и лимит заменяются значениями по умолчанию
func NewHTMLFetcher(config FetcherConfig, logger *zap.Logger) *HTMLFetcher {
	if config.Timeout == 0 {
		config.Timeout = 8 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = rate.Every(time.Second)
	}
	if config.UserAgent == "" {
		config.UserAgent = defaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HTMLFetcher{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(config.RateLimit, 1),
		logger:  logger.With(zap.String("source", config.Name)),
	}
}

// SetCache подключает общий кэш результатов
func (f *HTMLFetcher) SetCache(cache *SpecsCache) {
	f.cache = cache
}

// GetName возвращает название источника
func (f *HTMLFetcher) GetName() string {
	return f.config.Name
}

// GetPriority возвращает приоритет источника
func (f *HTMLFetcher) GetPriority() int {
	return f.config.Priority
}

// IsAvailable источник включен и имеет URL
func (f *HTMLFetcher) IsAvailable() bool {
	return f.config.Enabled && f.config.URL != ""
}

// Fetch запрашивает страницу товара и извлекает характеристики
func (f *HTMLFetcher) Fetch(ctx context.Context, code string) *SpecsResult {
	started := time.Now()
	result := &SpecsResult{Source: f.config.Name, Timestamp: started}

	code = strings.TrimSpace(code)
	if code == "" || !f.IsAvailable() {
		result.Status = StatusNotFound
		return result
	}

	cacheKey := f.config.Name + ":" + code
	if f.cache != nil {
		if cached, ok := f.cache.Get(cacheKey); ok {
			metrics.ScraperRequestsTotal.WithLabelValues(f.config.Name, StatusCached).Inc()
			return cached
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	if err := f.limiter.Wait(ctx); err != nil {
		return f.fail(result, StatusRateLimited, started, err)
	}

	pageURL := f.pageURL(code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return f.fail(result, StatusTransport, started, err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return f.fail(result, StatusTransport, started, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		result.Status = StatusNotFound
		metrics.ObserveScraper(f.config.Name, StatusNotFound, started)
		f.remember(cacheKey, result)
		return result
	}
	if resp.StatusCode != http.StatusOK {
		return f.fail(result, StatusHTTPError, started, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return f.fail(result, StatusParseError, started, fmt.Errorf("failed to detect charset: %w", err))
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return f.fail(result, StatusParseError, started, fmt.Errorf("failed to parse HTML: %w", err))
	}

	f.extract(doc, result)
	if result.Found {
		result.Status = StatusFound
	} else {
		result.Status = StatusNotFound
	}
	metrics.ObserveScraper(f.config.Name, result.Status, started)
	f.remember(cacheKey, result)
	return result
}

// extract заполняет результат по селекторам конфигурации
func (f *HTMLFetcher) extract(doc *goquery.Document, result *SpecsResult) {
	sel := f.config.Selectors

	product := doc.Selection
	if sel.Product != "" {
		product = doc.Find(sel.Product).First()
		if product.Length() == 0 {
			return
		}
	}

	if sel.Code != "" {
		result.Code = cleanText(product.Find(sel.Code).First().Text())
	}
	if sel.Description != "" {
		result.Description = cleanText(product.Find(sel.Description).First().Text())
	}

	if sel.SpecRows != "" {
		specs := make(map[string]string)
		product.Find(sel.SpecRows).Each(func(i int, row *goquery.Selection) {
			name := cleanText(cellText(row, sel.SpecName, 0))
			value := cleanText(cellText(row, sel.SpecValue, 1))
			name = strings.TrimSuffix(name, ":")
			if name != "" && value != "" {
				specs[strings.ToLower(name)] = value
			}
		})
		if len(specs) > 0 {
			result.Specs = specs
		}
	}

	if sel.CrossRefs != "" {
		seen := make(map[string]bool)
		product.Find(sel.CrossRefs).Each(func(i int, s *goquery.Selection) {
			ref := cleanText(s.Text())
			if ref != "" && !seen[ref] {
				seen[ref] = true
				result.CrossReferences = append(result.CrossReferences, ref)
			}
		})
	}

	result.Found = result.Code != "" || result.Description != "" || len(result.Specs) > 0
}

// cellText берет ячейку по селектору или, без селектора, по номеру th/td в строке
func cellText(row *goquery.Selection, selector string, index int) string {
	if selector != "" {
		return row.Find(selector).First().Text()
	}
	return row.Find("th, td").Eq(index).Text()
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (f *HTMLFetcher) pageURL(code string) string {
	escaped := url.PathEscape(code)
	if strings.Contains(f.config.URL, "%s") {
		return fmt.Sprintf(f.config.URL, escaped)
	}
	return strings.TrimRight(f.config.URL, "/") + "/" + escaped
}

// fail переводит сбой в "не найдено". Сбои не кэшируются
func (f *HTMLFetcher) fail(result *SpecsResult, status string, started time.Time, err error) *SpecsResult {
	result.Found = false
	result.Status = status
	metrics.ObserveScraper(f.config.Name, status, started)
	f.logger.Warn("Specs fetch failed",
		zap.String("status", status),
		zap.Duration("elapsed", time.Since(started)),
		zap.Error(err),
	)
	return result
}

func (f *HTMLFetcher) remember(key string, result *SpecsResult) {
	if f.cache != nil {
		f.cache.Set(key, result)
	}
}
