package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrUnresolvedClassification ни одно правило не подошло к коду
	ErrUnresolvedClassification = errors.New("unresolved classification")

	// ErrUnknownPrefixRule пары (family, duty) нет в таблице префиксов SKU
	ErrUnknownPrefixRule = errors.New("unknown prefix rule")

	// ErrInsufficientDigits в коде меньше четырех цифр
	ErrInsufficientDigits = errors.New("insufficient digits in code")

	// ErrMalformedLearnedRule regex-токен выученного правила не компилируется
	ErrMalformedLearnedRule = errors.New("malformed learned rule")

	// ErrRecordNotFound запись отсутствует в хранилище
	ErrRecordNotFound = errors.New("record not found")

	// ErrInvalidFamily семейство вне словаря
	ErrInvalidFamily = errors.New("invalid family")

	// ErrInvalidDuty класс эксплуатации не HD и не LD
	ErrInvalidDuty = errors.New("invalid duty")
)

// UnknownPrefixRuleError ошибка отсутствующей пары в таблице префиксов.
// Требует ручного добавления записи, а не повтора запроса
type UnknownPrefixRuleError struct {
	Family Family
	Duty   Duty
}

func (e *UnknownPrefixRuleError) Error() string {
	return fmt.Sprintf("unknown prefix rule for %s|%s", e.Family, e.Duty)
}

// Is позволяет сравнивать через errors.Is(err, ErrUnknownPrefixRule)
func (e *UnknownPrefixRuleError) Is(target error) bool {
	return target == ErrUnknownPrefixRule
}
