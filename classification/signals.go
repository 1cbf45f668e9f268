package classification

import (
	"regexp"
	"strings"

	"elimfilters/internal/domain/catalog"
	"elimfilters/normalization"
)

var (
	leadingLettersRe     = regexp.MustCompile(`^[A-Z]{1,4}`)
	leadingDigitLetterRe = regexp.MustCompile(`^\d{1,4}[A-Z]{1,3}`)
)

// PrefixToken выделяет префиксный токен кода для диагностики и обучения:
// ведущие буквы (до 4), LONG_NUMERIC для 5+ цифр или цифры+буквы ("1R")
func PrefixToken(code string) string {
	if code == "" {
		return ""
	}
	if normalization.IsLongNumeric(code) {
		return LongNumericToken
	}
	if m := leadingLettersRe.FindString(code); m != "" {
		return m
	}
	return leadingDigitLetterRe.FindString(code)
}

// Morphology форма кода: буквы -> A, цифры -> 9, дефис сохраняется
func Morphology(code string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z':
			return 'A'
		case r >= '0' && r <= '9':
			return '9'
		}
		return r
	}, code)
}

// Signals диагностические сигналы вывода семейства
type Signals struct {
	PrefixToken string
	Morphology  string
	DutyHint    catalog.Duty
	Layer       Layer
	Scraper     string
	Keyword     string
}

// NewSignals собирает базовые сигналы по нормализованному коду
func NewSignals(code string, dutyHint catalog.Duty) Signals {
	return Signals{
		PrefixToken: PrefixToken(code),
		Morphology:  Morphology(code),
		DutyHint:    dutyHint,
	}
}

// String сериализует сигналы как "prefix:<token>|morph:<shape>|..."
func (s Signals) String() string {
	parts := make([]string, 0, 6)
	if s.PrefixToken != "" {
		parts = append(parts, "prefix:"+s.PrefixToken)
	}
	if s.Morphology != "" {
		parts = append(parts, "morph:"+s.Morphology)
	}
	if s.DutyHint != catalog.DutyNone {
		parts = append(parts, "duty_hint:"+string(s.DutyHint))
	}
	if s.Layer != "" {
		parts = append(parts, "layer:"+string(s.Layer))
	}
	if s.Scraper != "" {
		parts = append(parts, "scraper:"+s.Scraper)
	}
	if s.Keyword != "" {
		parts = append(parts, "keyword:"+s.Keyword)
	}
	return strings.Join(parts, "|")
}

// TokenFromSignals извлекает токен из строки сигналов "prefix:<token>|..."
func TokenFromSignals(signals string) string {
	for _, part := range strings.Split(signals, "|") {
		part = strings.TrimSpace(part)
		if token, ok := strings.CutPrefix(part, "prefix:"); ok {
			return strings.TrimSpace(token)
		}
	}
	return ""
}
