package selfheal

import (
	"regexp"

	"elimfilters/classification"
	"elimfilters/internal/domain/catalog"
	"elimfilters/normalization"
)

var letterDigitTokenRe = regexp.MustCompile(`^[A-Z]{1,4}\d{1,3}`)

// DeriveToken выбирает префиксный токен события для группировки:
// prefix:<token> из сигналов, затем LONG_NUMERIC для 5+ цифр,
// затем ведущий шаблон [A-Z]{1,4}\d{1,3}. Пустая строка - событие без токена
func DeriveToken(event catalog.FailureEvent) string {
	if token := classification.TokenFromSignals(event.FamilyInferenceSignals); token != "" {
		return token
	}

	code := normalization.NormalizeCode(event.FailedQueryCode)
	if normalization.IsLongNumeric(code) {
		return classification.LongNumericToken
	}
	return letterDigitTokenRe.FindString(code)
}
