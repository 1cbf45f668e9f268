package enrichment

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"elimfilters/classification"
	"elimfilters/internal/domain/catalog"
	"elimfilters/internal/domain/sku"
	"elimfilters/normalization"
)

// racorMicronRe буква микронного класса в кодах вида 2010SM / 2020TM / 2040PM
var racorMicronRe = regexp.MustCompile(`^\d{4}([STP])M`)

// Fetcher источник характеристик для моста (FetcherChain или одиночный SpecsFetcher)
type Fetcher interface {
	Fetch(ctx context.Context, code string) *SpecsResult
}

// ScraperHint объединенная подсказка: правила + внешний каталог.
// Valid означает, что каталог нашел код и семейство с классом известны
type ScraperHint struct {
	Code        string            `json:"code"`
	Family      catalog.Family    `json:"family,omitempty"`
	Duty        catalog.Duty      `json:"duty,omitempty"`
	Brand       string            `json:"brand,omitempty"`
	Cross       []string          `json:"cross,omitempty"`
	Specs       map[string]string `json:"specs,omitempty"`
	Description string            `json:"description,omitempty"`
	Micron      float64           `json:"micron,omitempty"`
	Source      string            `json:"source,omitempty"`
	Status      string            `json:"status,omitempty"`
	Keyword     string            `json:"keyword,omitempty"` // подсказка по описанию, "FAMILY|DUTY"
	Valid       bool              `json:"valid"`

	Resolution classification.Resolution `json:"-"`
}

// Bridge связывает нормализацию, резолвер правил и внешний каталог
type Bridge struct {
	resolver *classification.Resolver
	fetcher  Fetcher
	hinter   *classification.KeywordHinter
	logger   *zap.Logger
}

// NewBridge создает мост. fetcher и hinter могут быть nil
func NewBridge(resolver *classification.Resolver, fetcher Fetcher, hinter *classification.KeywordHinter, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		resolver: resolver,
		fetcher:  fetcher,
		hinter:   hinter,
		logger:   logger,
	}
}

// Lookup строит подсказку для кода. Не возвращает ошибок: сбой каталога
// дает Valid=false и статус источника в Status
func (b *Bridge) Lookup(ctx context.Context, raw string, hintDuty catalog.Duty) ScraperHint {
	code := normalization.NormalizeCode(raw)
	res := b.resolver.Resolve(code, hintDuty)

	hint := ScraperHint{
		Code:       code,
		Resolution: res,
		Status:     StatusNotFound,
	}
	if res.Resolved {
		hint.Family = res.Hint.Family
		hint.Duty = res.Hint.Duty
		hint.Brand = res.Hint.Brand
	}

	var specs *SpecsResult
	if b.fetcher != nil && code != "" {
		specs = b.fetcher.Fetch(ctx, code)
	}
	if specs != nil {
		hint.Status = specs.Status
	}

	if specs != nil && specs.Found {
		hint.Source = specs.Source
		hint.Specs = specs.Specs
		hint.Cross = specs.CrossReferences
		hint.Description = specs.Description
		if sourceCode := normalization.NormalizeCode(specs.Code); sourceCode != "" {
			hint.Code = sourceCode
		}
		b.applyKeywordHint(&hint, hintDuty)
	}

	if micron, ok := specs.Micron(); ok {
		hint.Micron = micron
	} else if micron, ok := MicronFromCode(hint.Code); ok {
		hint.Micron = micron
	}

	hint.Valid = specs != nil && specs.Found && hint.Family.Valid() && hint.Duty.Valid()

	b.logger.Debug("Scraper bridge lookup",
		zap.String("code", code),
		zap.String("layer", string(res.Layer)),
		zap.String("status", hint.Status),
		zap.Bool("valid", hint.Valid),
	)
	return hint
}

// applyKeywordHint дополняет семейство/класс по описанию каталога, но не перебивает правила
func (b *Bridge) applyKeywordHint(hint *ScraperHint, hintDuty catalog.Duty) {
	if b.hinter == nil || hint.Description == "" {
		return
	}
	suggestion, ok := b.hinter.Suggest(hint.Description)
	if !ok {
		return
	}
	hint.Keyword = suggestion.String()

	if hint.Family == "" {
		hint.Family = suggestion.Family
	}
	if hint.Duty == catalog.DutyNone {
		hint.Duty = suggestion.Duty
	}
	if hint.Duty == catalog.DutyNone {
		hint.Duty = hintDuty
	}
}

// MicronFromCode извлекает номинальный рейтинг из Racor-кода (2010SM -> 2)
func MicronFromCode(code string) (float64, bool) {
	m := racorMicronRe.FindStringSubmatch(code)
	if m == nil {
		return 0, false
	}
	return sku.MicronForSuffix(m[1][0])
}
