package selfheal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"elimfilters/internal/domain/catalog"
)

func eventsAt(now time.Time, count int, from, to time.Duration) []catalog.FailureEvent {
	var out []catalog.FailureEvent
	step := (to - from) / time.Duration(count+1)
	for i := 1; i <= count; i++ {
		out = append(out, catalog.FailureEvent{
			ErrorTimestamp:  now.Add(-to + step*time.Duration(i)),
			FailedQueryCode: "X1",
		})
	}
	return out
}

func defaultStabilizationConfig() StabilizationConfig {
	return StabilizationConfig{
		Window:             48 * time.Hour,
		Target:             0.8,
		MinVolume:          30,
		CurrentThreshold:   3,
		EscalatedThreshold: 5,
	}
}

func TestCheckStabilization(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		earlier    int
		later      int
		stabilized bool
	}{
		{"85% reduction", 40, 6, true},
		{"75% reduction", 40, 10, false},
		{"exactly 80%", 40, 8, true},
		{"below minimum volume", 29, 0, false},
		{"no earlier failures", 0, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := append(
				eventsAt(now, tt.earlier, 48*time.Hour, 96*time.Hour),
				eventsAt(now, tt.later, 0, 48*time.Hour)...,
			)
			// события вне окон не учитываются
			events = append(events, catalog.FailureEvent{ErrorTimestamp: now.Add(-200 * time.Hour)})

			result := CheckStabilization(events, now, defaultStabilizationConfig())
			assert.Equal(t, tt.earlier, result.EarlierCount)
			assert.Equal(t, tt.later, result.LaterCount)
			assert.Equal(t, tt.stabilized, result.Stabilized)
			if tt.stabilized {
				assert.Equal(t, 5, result.RecommendedThreshold)
				assert.Contains(t, result.Message(), "from 3 to 5")
			} else {
				assert.Zero(t, result.RecommendedThreshold)
			}
		})
	}
}

func TestCheckStabilizationWindowBoundaries(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	events := []catalog.FailureEvent{
		{ErrorTimestamp: now},                      // позднее окно
		{ErrorTimestamp: now.Add(-48 * time.Hour)}, // раннее окно
		{ErrorTimestamp: now.Add(-96 * time.Hour)}, // вне окон
		{ErrorTimestamp: now.Add(time.Minute)},     // будущее
	}

	result := CheckStabilization(events, now, defaultStabilizationConfig())
	assert.Equal(t, 1, result.LaterCount)
	assert.Equal(t, 1, result.EarlierCount)
}

func TestCheckStabilizationEscalatedNotAboveCurrent(t *testing.T) {
	now := time.Now()
	cfg := defaultStabilizationConfig()
	cfg.CurrentThreshold = 5
	cfg.EscalatedThreshold = 5

	result := CheckStabilization(eventsAt(now, 40, 48*time.Hour, 96*time.Hour), now, cfg)
	assert.True(t, result.Stabilized)
	assert.Equal(t, 6, result.RecommendedThreshold)
}
