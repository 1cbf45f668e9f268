package classification

import (
	"strings"
	"sync"
	"unicode"

	"github.com/kljensen/snowball"

	"elimfilters/internal/domain/catalog"
)

// familyKeywords ключевые слова описаний в порядке приоритета:
// составные и узкие семейства проверяются раньше общих (AIR, OIL)
var familyKeywords = []struct {
	family catalog.Family
	words  [][]string
}{
	{catalog.FamilyAirDryer, [][]string{{"air", "dryer"}, {"desiccant"}, {"dryer"}}},
	{catalog.FamilyCabin, [][]string{{"cabin"}, {"pollen"}}},
	{catalog.FamilyTurbine, [][]string{{"turbine"}}},
	{catalog.FamilySeparator, [][]string{{"water", "separator"}, {"separator"}}},
	{catalog.FamilyHousing, [][]string{{"housing"}, {"filter", "head"}}},
	{catalog.FamilyMarine, [][]string{{"marine"}, {"outboard"}}},
	{catalog.FamilyHydraulic, [][]string{{"hydraulic"}, {"hydrostatic"}}},
	{catalog.FamilyCoolant, [][]string{{"coolant"}}},
	{catalog.FamilyFuel, [][]string{{"fuel"}}},
	{catalog.FamilyOil, [][]string{{"oil"}, {"lube"}, {"lubrication"}}},
	{catalog.FamilyAir, [][]string{{"air"}}},
}

var (
	heavyDutyWords = []string{"heavy", "truck", "diesel", "industrial", "commercial",
		"construction", "agricultural", "mining", "tractor", "bus", "excavator"}
	lightDutyWords = []string{"passenger", "car", "automotive", "light", "suv", "sedan", "motorcycle"}
)

// KeywordHinter подсказывает семейство и класс по описанию товара.
// Подсказка не авторитетна: используется только при отсутствии правил
type KeywordHinter struct {
	language string

	mu    sync.RWMutex
	cache map[string]string

	families []stemmedFamily
	heavy    map[string]bool
	light    map[string]bool
}

type stemmedFamily struct {
	family  catalog.Family
	phrases [][]string
}

// NewKeywordHinter создает подсказчик на английском стеммере Snowball
func NewKeywordHinter() *KeywordHinter {
	h := &KeywordHinter{
		language: "english",
		cache:    make(map[string]string),
		heavy:    make(map[string]bool),
		light:    make(map[string]bool),
	}

	for _, fk := range familyKeywords {
		sf := stemmedFamily{family: fk.family}
		for _, phrase := range fk.words {
			stemmed := make([]string, 0, len(phrase))
			for _, w := range phrase {
				stemmed = append(stemmed, h.stem(w))
			}
			sf.phrases = append(sf.phrases, stemmed)
		}
		h.families = append(h.families, sf)
	}
	for _, w := range heavyDutyWords {
		h.heavy[h.stem(w)] = true
	}
	for _, w := range lightDutyWords {
		h.light[h.stem(w)] = true
	}
	return h
}

// Suggest возвращает семейство (и класс, если его можно вывести) по описанию
func (h *KeywordHinter) Suggest(description string) (catalog.FamilyDuty, bool) {
	stems := h.stems(description)
	if len(stems) == 0 {
		return catalog.FamilyDuty{}, false
	}

	present := make(map[string]bool, len(stems))
	for _, s := range stems {
		present[s] = true
	}

	var family catalog.Family
	for _, sf := range h.families {
		if matchesAnyPhrase(sf.phrases, present) {
			family = sf.family
			break
		}
	}
	if family == "" {
		return catalog.FamilyDuty{}, false
	}

	return catalog.FamilyDuty{Family: family, Duty: h.duty(stems)}, true
}

// duty голосование по словам тяжелого и легкого класса; ничья - без класса
func (h *KeywordHinter) duty(stems []string) catalog.Duty {
	heavy, light := 0, 0
	for _, s := range stems {
		if h.heavy[s] {
			heavy++
		}
		if h.light[s] {
			light++
		}
	}
	switch {
	case heavy > light:
		return catalog.DutyHD
	case light > heavy:
		return catalog.DutyLD
	}
	return catalog.DutyNone
}

func matchesAnyPhrase(phrases [][]string, present map[string]bool) bool {
	for _, phrase := range phrases {
		all := true
		for _, w := range phrase {
			if !present[w] {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func (h *KeywordHinter) stems(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	out := make([]string, 0, len(words))
	for _, w := range words {
		if s := h.stemCached(w); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (h *KeywordHinter) stemCached(word string) string {
	h.mu.RLock()
	if cached, ok := h.cache[word]; ok {
		h.mu.RUnlock()
		return cached
	}
	h.mu.RUnlock()

	stemmed := h.stem(word)

	h.mu.Lock()
	h.cache[word] = stemmed
	h.mu.Unlock()
	return stemmed
}

func (h *KeywordHinter) stem(word string) string {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return ""
	}
	stemmed, err := snowball.Stem(word, h.language, true)
	if err != nil {
		return word
	}
	return stemmed
}
