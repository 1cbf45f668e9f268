package normalization

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"elimfilters/internal/domain/catalog"
)

// codeFolder приводит полноширинные символы к ASCII и убирает диакритику
var codeFolder = transform.Chain(
	width.Fold,
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	runes.Map(mapDash),
	norm.NFC,
)

// mapDash заменяет типографские тире на обычный дефис
func mapDash(r rune) rune {
	switch r {
	case '‐', '‑', '‒', '–', '—', '―', '−':
		return '-'
	}
	return r
}

// NormalizeCode приводит произвольный код детали к каноничному виду:
// верхний регистр, без пробелов, только [A-Z0-9-], без повторных дефисов.
// Пустой ввод дает пустую строку. Функция чистая и идемпотентная
func NormalizeCode(raw string) string {
	if raw == "" {
		return ""
	}

	folded, _, err := transform.String(codeFolder, raw)
	if err != nil {
		folded = raw
	}
	folded = strings.ToUpper(folded)

	var b strings.Builder
	b.Grow(len(folded))
	lastHyphen := false
	for _, r := range folded {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case r == '-':
			if !lastHyphen {
				b.WriteRune(r)
			}
			lastHyphen = true
		}
	}

	return b.String()
}

// IsBlank код без букв и цифр, например "-" после нормализации " -- "
func IsBlank(code string) bool {
	return strings.Trim(code, "-") == ""
}

// Digits возвращает только цифры кода
func Digits(code string) string {
	var b strings.Builder
	for _, r := range code {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Last4Digits извлекает последние четыре цифры нормализованного кода.
// Если цифр меньше четырех, возвращает ErrInsufficientDigits: код не дополняется нулями
func Last4Digits(code string) (string, error) {
	digits := Digits(code)
	if len(digits) < 4 {
		return "", fmt.Errorf("%w: %q has %d", catalog.ErrInsufficientDigits, code, len(digits))
	}
	return digits[len(digits)-4:], nil
}

// IsLongNumeric сообщает, состоит ли код (без дефисов) из 5+ цифр
func IsLongNumeric(code string) bool {
	compact := strings.ReplaceAll(code, "-", "")
	if len(compact) < 5 {
		return false
	}
	for _, r := range compact {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
