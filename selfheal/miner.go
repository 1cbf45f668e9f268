package selfheal

import (
	"sort"

	"elimfilters/classification"
	"elimfilters/internal/domain/catalog"
)

// DefaultConfidenceFloor минимальная доля доминирующей подсказки
const DefaultConfidenceFloor = 0.8

// TokenGroup статистика событий одного токена
type TokenGroup struct {
	Token      string         `json:"token"`
	Total      int            `json:"total"`
	Counts     map[string]int `json:"counts"`
	Dominant   string         `json:"dominant,omitempty"`
	Count      int            `json:"dominant_count"`
	Confidence float64        `json:"confidence"`
	Eligible   bool           `json:"eligible"`
}

// Conflict доминирующая подсказка расходится с уже выученным правилом
type Conflict struct {
	Token     string `json:"token"`
	Learned   string `json:"learned"`
	Suggested string `json:"suggested"`
	Count     int    `json:"count"`
}

// MineResult итог одного прохода майнера
type MineResult struct {
	Scanned   int                          `json:"scanned"`
	Skipped   int                          `json:"skipped"`
	Groups    []TokenGroup                 `json:"groups"`
	Injected  []classification.LearnedRule `json:"injected"`
	Conflicts []Conflict                   `json:"conflicts,omitempty"`
}

// Mine группирует события по токену и добавляет в rules новые правила для токенов,
// у которых доминирующая подсказка встречается не реже threshold раз с долей не ниже floor.
// Уже выученные токены не перезаписываются; расхождение попадает в Conflicts
func Mine(failures []catalog.FailureEvent, rules *classification.RuleTable, threshold int, floor float64) MineResult {
	result := MineResult{Scanned: len(failures)}

	groups := make(map[string]*TokenGroup)
	var order []string
	for _, event := range failures {
		token := DeriveToken(event)
		if token == "" {
			result.Skipped++
			continue
		}
		g, ok := groups[token]
		if !ok {
			g = &TokenGroup{Token: token, Counts: make(map[string]int)}
			groups[token] = g
			order = append(order, token)
		}
		g.Total++
		if suggestion, ok := validSuggestion(event.SuggestedFamilyDuty); ok {
			g.Counts[suggestion]++
		}
	}

	sort.Strings(order)
	for _, token := range order {
		g := groups[token]
		g.Dominant, g.Count = dominant(g.Counts)
		if g.Total > 0 {
			g.Confidence = float64(g.Count) / float64(g.Total)
		}
		g.Eligible = g.Dominant != "" && g.Count >= threshold && g.Confidence >= floor
		result.Groups = append(result.Groups, *g)

		if !g.Eligible {
			continue
		}
		if learned, exists := rules.Get(token); exists {
			if learned != g.Dominant {
				result.Conflicts = append(result.Conflicts, Conflict{
					Token:     token,
					Learned:   learned,
					Suggested: g.Dominant,
					Count:     g.Count,
				})
			}
			continue
		}
		if rules.Add(token, g.Dominant) {
			result.Injected = append(result.Injected, classification.LearnedRule{Token: token, Value: g.Dominant})
		}
	}

	return result
}

// validSuggestion нормализует "FAMILY|DUTY"; пустые и вне словаря не учитываются
func validSuggestion(s *string) (string, bool) {
	if s == nil || *s == "" {
		return "", false
	}
	fd, err := catalog.ParseFamilyDuty(*s)
	if err != nil {
		return "", false
	}
	return fd.String(), true
}

// dominant самая частая подсказка; при равенстве - лексикографически меньшая
func dominant(counts map[string]int) (string, int) {
	best, bestCount := "", 0
	for value, count := range counts {
		if count > bestCount || (count == bestCount && value < best) {
			best, bestCount = value, count
		}
	}
	return best, bestCount
}
