package catalog

import (
	"fmt"
	"strings"
	"time"
)

// Family функциональная категория фильтра
type Family string

const (
	FamilyOil       Family = "OIL"
	FamilyFuel      Family = "FUEL"
	FamilyAir       Family = "AIR"
	FamilyCabin     Family = "CABIN"
	FamilyHydraulic Family = "HYDRAULIC"
	FamilyCoolant   Family = "COOLANT"
	FamilyMarine    Family = "MARINE"
	FamilyTurbine   Family = "TURBINE"
	FamilyAirDryer  Family = "AIR_DRYER"
	FamilySeparator Family = "SEPARATOR"
	FamilyHousing   Family = "HOUSING"
)

// Families словарь известных семейств.
// Новые семейства добавляются только вручную через статические правила
var Families = []Family{
	FamilyOil, FamilyFuel, FamilyAir, FamilyCabin, FamilyHydraulic, FamilyCoolant,
	FamilyMarine, FamilyTurbine, FamilyAirDryer, FamilySeparator, FamilyHousing,
}

// Valid проверяет, входит ли семейство в словарь
func (f Family) Valid() bool {
	for _, known := range Families {
		if f == known {
			return true
		}
	}
	return false
}

// ParseFamily разбирает семейство без учета регистра.
// Пробелы и дефисы приводятся к подчеркиванию ("AIR DRYER" -> AIR_DRYER)
func ParseFamily(s string) (Family, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	f := Family(s)
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidFamily, s)
	}
	return f, nil
}

// Duty класс эксплуатации: тяжелый (HD) или легкий (LD)
type Duty string

const (
	DutyNone Duty = ""
	DutyHD   Duty = "HD"
	DutyLD   Duty = "LD"
)

// Valid проверяет значение класса (пустое значение невалидно)
func (d Duty) Valid() bool {
	return d == DutyHD || d == DutyLD
}

// ParseDuty разбирает класс эксплуатации. Пустая строка дает DutyNone без ошибки
func ParseDuty(s string) (Duty, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return DutyNone, nil
	}
	d := Duty(s)
	if !d.Valid() {
		return DutyNone, fmt.Errorf("%w: %q", ErrInvalidDuty, s)
	}
	return d, nil
}

// FamilyDuty пара "FAMILY|DUTY" в том виде, в котором она хранится в правилах и журнале
type FamilyDuty struct {
	Family Family
	Duty   Duty
}

// String сериализует пару как "FAMILY|DUTY"
func (fd FamilyDuty) String() string {
	return string(fd.Family) + "|" + string(fd.Duty)
}

// ParseFamilyDuty разбирает строку "FAMILY|DUTY". Класс может быть пустым ("OIL|")
func ParseFamilyDuty(s string) (FamilyDuty, error) {
	familyPart, dutyPart, _ := strings.Cut(s, "|")
	family, err := ParseFamily(familyPart)
	if err != nil {
		return FamilyDuty{}, err
	}
	duty, err := ParseDuty(dutyPart)
	if err != nil {
		return FamilyDuty{}, err
	}
	return FamilyDuty{Family: family, Duty: duty}, nil
}

// Hint результат классификации кода одним из слоев правил
type Hint struct {
	Family Family `json:"family"`
	Duty   Duty   `json:"duty,omitempty"`
	Brand  string `json:"brand,omitempty"`
}

// Complete сообщает, определены ли и семейство, и класс
func (h Hint) Complete() bool {
	return h.Family.Valid() && h.Duty.Valid()
}

// Policy ветка политики создания SKU
type Policy string

const (
	PolicyScraper     Policy = "scraper"
	PolicyOEMFallback Policy = "oem_fallback"
)

// Record запись каталога, сохраняемая по SKU
type Record struct {
	SKU             string            `json:"sku"`
	QueryCode       string            `json:"query_code"`
	Family          Family            `json:"family"`
	Duty            Duty              `json:"duty"`
	Brand           string            `json:"brand,omitempty"`
	Policy          Policy            `json:"policy"`
	Description     string            `json:"description,omitempty"`
	Specs           map[string]string `json:"specs,omitempty"`
	CrossReferences []string          `json:"cross_references,omitempty"`
	Source          string            `json:"source,omitempty"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// FailureEvent событие неудачного разрешения кода.
// После записи в журнал не изменяется
type FailureEvent struct {
	ErrorTimestamp         time.Time `json:"error_timestamp"`
	FailedQueryCode        string    `json:"failed_query_code"`
	FamilyInferenceSignals string    `json:"family_inference_signals"`
	SuggestedFamilyDuty    *string   `json:"suggested_family_duty"`
	Reason                 string    `json:"reason"`
}

// Suggestion возвращает предложенную пару или пустую строку
func (e FailureEvent) Suggestion() string {
	if e.SuggestedFamilyDuty == nil {
		return ""
	}
	return *e.SuggestedFamilyDuty
}
