package enrichment

import (
	"time"

	"golang.org/x/time/rate"
)

// Имена поддерживаемых каталогов
const (
	SourceDonaldson  = "donaldson"
	SourceFram       = "fram"
	SourceFleetguard = "fleetguard"
	SourceRacor      = "racor"
)

// SourceSettings общие параметры для набора источников по умолчанию
type SourceSettings struct {
	Timeout   time.Duration
	RateLimit float64 // запросов в секунду на источник
	URLs      map[string]string
}

// DefaultFetcherConfigs конфигурации каталогов в порядке приоритета:
// Donaldson, FRAM, Fleetguard, Racor. Источник без URL выключен
func DefaultFetcherConfigs(settings SourceSettings) []FetcherConfig {
	limit := rate.Limit(settings.RateLimit)
	if settings.RateLimit <= 0 {
		limit = rate.Every(time.Second)
	}

	configs := []FetcherConfig{
		{
			Name:     SourceDonaldson,
			Priority: 1,
			Selectors: Selectors{
				Product:     ".product-detail",
				Code:        ".product-number",
				Description: ".product-description",
				SpecRows:    ".product-attributes tr",
				CrossRefs:   ".cross-reference-list .part-number",
			},
		},
		{
			Name:     SourceFram,
			Priority: 2,
			Selectors: Selectors{
				Product:     ".pdp-main",
				Code:        ".product-sku",
				Description: ".product-name",
				SpecRows:    ".specifications li",
				SpecName:    ".label",
				SpecValue:   ".value",
				CrossRefs:   ".interchange .part",
			},
		},
		{
			Name:     SourceFleetguard,
			Priority: 3,
			Selectors: Selectors{
				Product:     "#product",
				Code:        "h1.part-number",
				Description: ".part-description",
				SpecRows:    "table.specs tr",
				CrossRefs:   "table.cross-refs td.part",
			},
		},
		{
			Name:     SourceRacor,
			Priority: 4,
			Selectors: Selectors{
				Product:     ".product",
				Code:        ".product__sku",
				Description: ".product__title",
				SpecRows:    ".product__specs tr",
				CrossRefs:   ".product__replacements a",
			},
		},
	}

	for i := range configs {
		configs[i].Timeout = settings.Timeout
		configs[i].RateLimit = limit
		configs[i].URL = settings.URLs[configs[i].Name]
		configs[i].Enabled = configs[i].URL != ""
	}
	return configs
}
