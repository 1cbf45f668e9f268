package sku

import "elimfilters/internal/domain/catalog"

// prefixTable неизменяемая таблица (family, duty) -> префикс SKU.
// На префиксы опираются каталог и клиенты: менять только по решению бизнеса
var prefixTable = map[catalog.FamilyDuty]string{
	{Family: catalog.FamilyOil, Duty: catalog.DutyHD}:       "EL8",
	{Family: catalog.FamilyOil, Duty: catalog.DutyLD}:       "EL8",
	{Family: catalog.FamilyFuel, Duty: catalog.DutyHD}:      "EF9",
	{Family: catalog.FamilyFuel, Duty: catalog.DutyLD}:      "EF9",
	{Family: catalog.FamilyAir, Duty: catalog.DutyHD}:       "EA1",
	{Family: catalog.FamilyAir, Duty: catalog.DutyLD}:       "EA1",
	{Family: catalog.FamilyCabin, Duty: catalog.DutyHD}:     "EC1",
	{Family: catalog.FamilyCabin, Duty: catalog.DutyLD}:     "EC1",
	{Family: catalog.FamilyHydraulic, Duty: catalog.DutyHD}: "EH6",
	{Family: catalog.FamilyCoolant, Duty: catalog.DutyHD}:   "EW7",
	{Family: catalog.FamilyMarine, Duty: catalog.DutyHD}:    "EM9",
	{Family: catalog.FamilyMarine, Duty: catalog.DutyLD}:    "EM9",
	{Family: catalog.FamilyTurbine, Duty: catalog.DutyHD}:   "ET9",
	{Family: catalog.FamilyAirDryer, Duty: catalog.DutyHD}:  "ED4",
	{Family: catalog.FamilySeparator, Duty: catalog.DutyHD}: "ES9",
	{Family: catalog.FamilyHousing, Duty: catalog.DutyHD}:   "EA2",
}

// Prefix возвращает префикс для пары (family, duty)
func Prefix(family catalog.Family, duty catalog.Duty) (string, bool) {
	prefix, ok := prefixTable[catalog.FamilyDuty{Family: family, Duty: duty}]
	return prefix, ok
}

// PrefixEntry строка таблицы префиксов для отчетов и API
type PrefixEntry struct {
	Family catalog.Family `json:"family"`
	Duty   catalog.Duty   `json:"duty"`
	Prefix string         `json:"prefix"`
}

// PrefixEntries возвращает копию таблицы в порядке словаря семейств
func PrefixEntries() []PrefixEntry {
	entries := make([]PrefixEntry, 0, len(prefixTable))
	for _, family := range catalog.Families {
		for _, duty := range []catalog.Duty{catalog.DutyHD, catalog.DutyLD} {
			if prefix, ok := Prefix(family, duty); ok {
				entries = append(entries, PrefixEntry{Family: family, Duty: duty, Prefix: prefix})
			}
		}
	}
	return entries
}
