package sku

import (
	"fmt"

	"elimfilters/internal/domain/catalog"
)

// Пороги микронного суффикса для турбинных элементов
const (
	micronFineMax   = 2.0
	micronMediumMax = 10.0
)

// Option дополнительный атрибут генерации SKU
type Option func(*attributes)

type attributes struct {
	micron float64
}

// WithMicron задает рейтинг фильтрации в микронах. Значения <= 0 игнорируются
func WithMicron(micron float64) Option {
	return func(a *attributes) {
		if micron > 0 {
			a.micron = micron
		}
	}
}

// Generate строит SKU вида {prefix}{last4}[{suffix}].
// Отсутствующая пара в таблице префиксов дает *catalog.UnknownPrefixRuleError;
// префикс никогда не подбирается по умолчанию
func Generate(family catalog.Family, duty catalog.Duty, last4 string, opts ...Option) (string, error) {
	if len(last4) != 4 {
		return "", fmt.Errorf("%w: last4 %q", catalog.ErrInsufficientDigits, last4)
	}
	for _, r := range last4 {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: last4 %q is not numeric", catalog.ErrInsufficientDigits, last4)
		}
	}

	prefix, ok := Prefix(family, duty)
	if !ok {
		return "", &catalog.UnknownPrefixRuleError{Family: family, Duty: duty}
	}

	attrs := attributes{}
	for _, opt := range opts {
		opt(&attrs)
	}

	return prefix + last4 + suffix(family, attrs), nil
}

// suffix возвращает суффикс семейства или пустую строку
func suffix(family catalog.Family, attrs attributes) string {
	if family != catalog.FamilyTurbine || attrs.micron <= 0 {
		return ""
	}
	return MicronSuffix(attrs.micron)
}

// MicronSuffix отображает рейтинг в микронах на букву: <=2 S, <=10 T, иначе P (класс 30)
func MicronSuffix(micron float64) string {
	switch {
	case micron <= 0:
		return ""
	case micron <= micronFineMax:
		return "S"
	case micron <= micronMediumMax:
		return "T"
	default:
		return "P"
	}
}

// MicronForSuffix обратное отображение буквы Racor-кода на номинальный рейтинг
func MicronForSuffix(letter byte) (float64, bool) {
	switch letter {
	case 'S':
		return 2, true
	case 'T':
		return 10, true
	case 'P':
		return 30, true
	}
	return 0, false
}
