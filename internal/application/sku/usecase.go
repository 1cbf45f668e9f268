package sku

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"elimfilters/database"
	"elimfilters/enrichment"
	"elimfilters/internal/domain/catalog"
	skudomain "elimfilters/internal/domain/sku"
	"elimfilters/internal/metrics"
	"elimfilters/normalization"
	"elimfilters/selfheal"
)

// ErrEmptyCode код пуст после нормализации
var ErrEmptyCode = errors.New("empty code")

// HintSource источник объединенной подсказки (правила + каталог)
type HintSource interface {
	Lookup(ctx context.Context, raw string, hintDuty catalog.Duty) enrichment.ScraperHint
}

// Request входные данные политики создания SKU
type Request struct {
	Code     string       `json:"code"`
	DutyHint catalog.Duty `json:"duty_hint,omitempty"`
	Micron   float64      `json:"micron,omitempty"`
}

// Result результат политики. При OK=false заполнены Error, Reason и Signals
type Result struct {
	OK        bool           `json:"ok"`
	Code      string         `json:"code"`
	SKU       string         `json:"sku,omitempty"`
	Family    catalog.Family `json:"family,omitempty"`
	Duty      catalog.Duty   `json:"duty,omitempty"`
	Brand     string         `json:"brand,omitempty"`
	Policy    catalog.Policy `json:"policy,omitempty"`
	Persisted bool           `json:"persisted"`
	Error     string         `json:"error,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Signals   string         `json:"signals,omitempty"`

	Err error `json:"-"`
}

// UseCase политика создания SKU: сначала данные каталога, затем OEM-префикс
type UseCase struct {
	hints    HintSource
	store    database.Store
	failures selfheal.FailureRecorder
	logger   *zap.Logger
	now      func() time.Time
}

// NewUseCase создает use case. store и failures могут быть nil
func NewUseCase(hints HintSource, store database.Store, failures selfheal.FailureRecorder, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		hints:    hints,
		store:    store,
		failures: failures,
		logger:   logger,
		now:      time.Now,
	}
}

// ApplyPolicy строит SKU для кода и сохраняет запись.
// Неудача обеих веток записывается в журнал самообучения
func (uc *UseCase) ApplyPolicy(ctx context.Context, req Request) Result {
	code := normalization.NormalizeCode(req.Code)
	result := Result{Code: code}
	if normalization.IsBlank(code) {
		result.Err = fmt.Errorf("%w: %q", ErrEmptyCode, req.Code)
		result.Error = result.Err.Error()
		return result
	}

	hint := uc.hints.Lookup(ctx, code, req.DutyHint)
	signals := hint.Resolution.Signals
	signals.Scraper = hint.Status
	signals.Keyword = hint.Keyword
	result.Signals = signals.String()

	micron := req.Micron
	if micron <= 0 {
		micron = hint.Micron
	}

	if hint.Valid {
		sku, err := scraperSKU(hint, micron)
		if err == nil {
			return uc.succeed(ctx, result, sku, catalog.Record{
				QueryCode:       code,
				Family:          hint.Family,
				Duty:            hint.Duty,
				Brand:           hint.Brand,
				Policy:          catalog.PolicyScraper,
				Description:     hint.Description,
				Specs:           hint.Specs,
				CrossReferences: hint.Cross,
				Source:          hint.Source,
			})
		}
		uc.logger.Debug("Scraper branch failed, falling back to OEM prefix",
			zap.String("code", code),
			zap.Error(err),
		)
	}

	res := hint.Resolution
	sku, err := fallbackSKU(code, res.Hint, res.Err(), micron)
	if err == nil {
		return uc.succeed(ctx, result, sku, catalog.Record{
			QueryCode: code,
			Family:    res.Hint.Family,
			Duty:      res.Hint.Duty,
			Brand:     res.Hint.Brand,
			Policy:    catalog.PolicyOEMFallback,
		})
	}

	return uc.fail(result, hint, req.DutyHint, err)
}

// scraperSKU ветка каталога: семейство/класс из подсказки, цифры из кода источника
func scraperSKU(hint enrichment.ScraperHint, micron float64) (string, error) {
	last4, err := normalization.Last4Digits(hint.Code)
	if err != nil {
		return "", err
	}
	return skudomain.Generate(hint.Family, hint.Duty, last4, skudomain.WithMicron(micron))
}

// fallbackSKU ветка только по правилам: цифры берутся из нормализованного запроса.
// Нехватка цифр проверяется раньше классификации
func fallbackSKU(code string, hint catalog.Hint, resolveErr error, micron float64) (string, error) {
	last4, err := normalization.Last4Digits(code)
	if err != nil {
		return "", err
	}
	if resolveErr != nil {
		return "", resolveErr
	}
	if !hint.Complete() {
		return "", fmt.Errorf("%w: %q has family %q without duty", catalog.ErrUnresolvedClassification, code, hint.Family)
	}
	return skudomain.Generate(hint.Family, hint.Duty, last4, skudomain.WithMicron(micron))
}

func (uc *UseCase) succeed(ctx context.Context, result Result, sku string, record catalog.Record) Result {
	record.SKU = sku
	record.UpdatedAt = uc.now().UTC()

	result.OK = true
	result.SKU = sku
	result.Family = record.Family
	result.Duty = record.Duty
	result.Brand = record.Brand
	result.Policy = record.Policy

	if uc.store != nil {
		if err := uc.store.UpsertBySku(ctx, record); err != nil {
			uc.logger.Warn("Failed to persist SKU record",
				zap.String("sku", sku),
				zap.String("store", uc.store.Name()),
				zap.Error(err),
			)
		} else {
			result.Persisted = true
		}
	}

	metrics.PolicyOutcomesTotal.WithLabelValues(string(record.Policy), "ok").Inc()
	uc.logger.Info("SKU resolved",
		zap.String("code", result.Code),
		zap.String("sku", sku),
		zap.String("policy", string(record.Policy)),
		zap.Bool("persisted", result.Persisted),
	)
	return result
}

func (uc *UseCase) fail(result Result, hint enrichment.ScraperHint, dutyHint catalog.Duty, err error) Result {
	result.Err = err
	result.Error = err.Error()
	result.Reason = ReasonFor(err)

	if uc.failures != nil {
		uc.failures.AppendFailure(selfheal.FailureEntry{
			FailedQueryCode:        result.Code,
			FamilyInferenceSignals: result.Signals,
			SuggestedFamilyDuty:    suggestion(hint, dutyHint),
			Reason:                 result.Reason,
		})
	}

	metrics.PolicyOutcomesTotal.WithLabelValues(string(catalog.PolicyOEMFallback), "failed").Inc()
	uc.logger.Warn("Could not produce SKU",
		zap.String("code", result.Code),
		zap.String("reason", result.Reason),
		zap.String("signals", result.Signals),
	)
	return result
}

// ReasonFor отображает ошибку политики на причину в журнале неудач
func ReasonFor(err error) string {
	switch {
	case errors.Is(err, catalog.ErrInsufficientDigits):
		return selfheal.ReasonInsufficientDigits
	case errors.Is(err, catalog.ErrUnknownPrefixRule):
		return selfheal.ReasonUnknownPrefix
	case errors.Is(err, catalog.ErrUnresolvedClassification):
		return selfheal.ReasonUnresolved
	default:
		return selfheal.ReasonGenerationFailed
	}
}

// suggestion собирает предложенную пару для майнера: сначала подсказка по описанию,
// затем частичная классификация правил с классом из запроса
func suggestion(hint enrichment.ScraperHint, dutyHint catalog.Duty) *string {
	var fd catalog.FamilyDuty
	switch {
	case hint.Keyword != "":
		parsed, err := catalog.ParseFamilyDuty(hint.Keyword)
		if err != nil {
			return nil
		}
		fd = parsed
	case hint.Family.Valid():
		fd = catalog.FamilyDuty{Family: hint.Family, Duty: hint.Duty}
	default:
		return nil
	}
	if fd.Duty == catalog.DutyNone {
		fd.Duty = dutyHint
	}
	s := fd.String()
	return &s
}

// Lookup возвращает сохраненную запись по SKU или исходному коду
func (uc *UseCase) Lookup(ctx context.Context, code string) (*catalog.Record, error) {
	if uc.store == nil {
		return nil, catalog.ErrRecordNotFound
	}
	normalized := normalization.NormalizeCode(code)
	if normalization.IsBlank(normalized) {
		return nil, fmt.Errorf("%w: %q", ErrEmptyCode, code)
	}
	record, err := uc.store.SearchBySku(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup %s: %w", normalized, err)
	}
	return record, nil
}
