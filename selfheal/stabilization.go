package selfheal

import (
	"fmt"
	"time"

	"elimfilters/internal/domain/catalog"
)

// StabilizationConfig параметры проверки стабилизации
type StabilizationConfig struct {
	Window             time.Duration // длина каждого из двух окон
	Target             float64       // требуемое снижение, доля от раннего окна
	MinVolume          int           // минимальное число событий в раннем окне
	CurrentThreshold   int
	EscalatedThreshold int
}

// Stabilization результат сравнения двух соседних окон
type Stabilization struct {
	EarlierCount         int       `json:"earlier_count"`
	LaterCount           int       `json:"later_count"`
	Reduction            float64   `json:"reduction"`
	Stabilized           bool      `json:"stabilized"`
	CurrentThreshold     int       `json:"current_threshold"`
	RecommendedThreshold int       `json:"recommended_threshold,omitempty"`
	CheckedAt            time.Time `json:"checked_at"`
}

// Message текст рекомендации оператору
func (s Stabilization) Message() string {
	return fmt.Sprintf(
		"Self-heal failure rate stabilized: %d -> %d failures (%.0f%% reduction). "+
			"Consider raising the learning threshold from %d to %d.",
		s.EarlierCount, s.LaterCount, s.Reduction*100, s.CurrentThreshold, s.RecommendedThreshold,
	)
}

// CheckStabilization считает события в окнах (now-2w, now-w] и (now-w, now].
// Рекомендация выдается, если раннее окно не меньше MinVolume, а позднее
// снизилось не менее чем на Target. Порог не меняется автоматически
func CheckStabilization(events []catalog.FailureEvent, now time.Time, cfg StabilizationConfig) Stabilization {
	result := Stabilization{
		CurrentThreshold: cfg.CurrentThreshold,
		CheckedAt:        now,
	}
	if cfg.Window <= 0 {
		return result
	}

	laterStart := now.Add(-cfg.Window)
	earlierStart := laterStart.Add(-cfg.Window)

	for _, event := range events {
		ts := event.ErrorTimestamp
		switch {
		case ts.After(laterStart) && !ts.After(now):
			result.LaterCount++
		case ts.After(earlierStart) && !ts.After(laterStart):
			result.EarlierCount++
		}
	}

	if result.EarlierCount == 0 {
		return result
	}
	result.Reduction = float64(result.EarlierCount-result.LaterCount) / float64(result.EarlierCount)

	if result.EarlierCount >= cfg.MinVolume && result.Reduction >= cfg.Target {
		result.Stabilized = true
		result.RecommendedThreshold = cfg.EscalatedThreshold
		if result.RecommendedThreshold <= cfg.CurrentThreshold {
			result.RecommendedThreshold = cfg.CurrentThreshold + 1
		}
	}
	return result
}
