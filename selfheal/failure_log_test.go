package selfheal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestFailureLogAppendCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "failures.json")
	log := NewFailureLog(path, nil)
	log.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	log.AppendFailure(FailureEntry{
		FailedQueryCode:        "S4821",
		FamilyInferenceSignals: "prefix:S|morph:A9999",
		SuggestedFamilyDuty:    strPtr("OIL|LD"),
		Reason:                 ReasonUnresolved,
	})
	log.AppendFailure(FailureEntry{FailedQueryCode: "AB", Reason: ReasonInsufficientDigits})

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 2)
	assert.Equal(t, "2026-03-01T10:00:00Z", raw[0]["error_timestamp"])
	assert.Equal(t, "OIL|LD", raw[0]["suggested_family_duty"])
	assert.Nil(t, raw[1]["suggested_family_duty"])
	assert.Contains(t, raw[1], "family_inference_signals")

	events, skipped, err := log.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, events, 2)
	assert.Equal(t, "S4821", events[0].FailedQueryCode)
	assert.Equal(t, "OIL|LD", events[0].Suggestion())
}

func TestFailureLogReadMissingFile(t *testing.T) {
	log := NewFailureLog(filepath.Join(t.TempDir(), "none.json"), nil)
	events, skipped, err := log.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Zero(t, skipped)
}

func TestFailureLogSkipsCorruptEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failures.json")
	content := `[
{"error_timestamp":"2026-03-01T10:00:00Z","failed_query_code":"S4821","family_inference_signals":"prefix:S","suggested_family_duty":"OIL|LD","reason":"unresolved_classification"},
{"error_timestamp":"2026-03-01T10:00:01Z","failed_query_code":"S48
{"error_timestamp":"2026-03-01T10:00:02Z","failed_query_code":"S1234","family_inference_signals":"prefix:S","suggested_family_duty":"OIL|LD","reason":"unresolved_classification"},
42,
]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	log := NewFailureLog(path, nil)
	events, skipped, err := log.ReadAll()
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, 2, skipped)

	// дозапись не трогает существующие байты, включая поврежденные
	log.AppendFailure(FailureEntry{FailedQueryCode: "S9999", Reason: ReasonUnresolved})
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), strings.TrimSuffix(content, "]\n")))

	events, skipped, err = log.ReadAll()
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, 2, skipped)
	assert.Equal(t, "S9999", events[2].FailedQueryCode)
}

func TestFailureLogPrettyPrintedWithCorruptEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failures.json")
	content := `[
  {
    "error_timestamp": "2026-03-01T10:00:00Z",
    "failed_query_code": "S4821",
    "family_inference_signals": "prefix:S",
    "suggested_family_duty": "OIL|LD",
    "reason": "unresolved_classification"
  },
  {
    "error_timestamp": "2026-03-01T10:00:01Z",
    "failed_query_code": "S4822",
    "family_inference_signals": "prefix:S",
    "suggested_family_duty": null,
    "reason": "unresolved_classification"
  },
  {
    "error_timestamp": "2026-03-01T10:00:02Z",
    "failed_query_code": "S48
  }
]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	log := NewFailureLog(path, nil)
	events, skipped, err := log.ReadAll()
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, "S4821", events[0].FailedQueryCode)
	assert.Equal(t, "OIL|LD", events[0].Suggestion())
	assert.Equal(t, "S4822", events[1].FailedQueryCode)

	log.AppendFailure(FailureEntry{FailedQueryCode: "S4823", Reason: ReasonUnresolved})

	events, skipped, err = log.ReadAll()
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, []string{"S4821", "S4822", "S4823"},
		[]string{events[0].FailedQueryCode, events[1].FailedQueryCode, events[2].FailedQueryCode})
}

func TestFailureLogPrettyPrintedValidArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failures.json")
	pretty, err := json.MarshalIndent([]map[string]any{
		{"error_timestamp": "2026-03-01T10:00:00Z", "failed_query_code": "LF3000", "reason": "unresolved_classification"},
		{"error_timestamp": "2026-03-01T10:00:01Z", "failed_query_code": "LF3001", "reason": "unresolved_classification"},
	}, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, pretty, 0o644))

	log := NewFailureLog(path, nil)
	log.AppendFailure(FailureEntry{FailedQueryCode: "LF3002", Reason: ReasonUnresolved})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, json.Valid(data))

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 3)
	assert.Equal(t, "LF3002", raw[2]["failed_query_code"])
}

func TestFailureLogEmptyArrayAndMissingBracket(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"empty array", "[]", 1},
		{"empty array with spaces", "[ \n ]\n", 1},
		{"whitespace only", "\n\n", 1},
		{"missing closing bracket", `[` + "\n" + `{"error_timestamp":"2026-03-01T10:00:00Z","failed_query_code":"A1"}`, 2},
		{"trailing comma", `[{"error_timestamp":"2026-03-01T10:00:00Z","failed_query_code":"A1"},]`, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "failures.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			log := NewFailureLog(path, nil)
			log.AppendFailure(FailureEntry{FailedQueryCode: "Z9", Reason: ReasonUnresolved})

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.True(t, json.Valid(data), string(data))

			events, skipped, err := log.ReadAll()
			require.NoError(t, err)
			assert.Len(t, events, tt.want)
			assert.Zero(t, skipped)
		})
	}
}

func TestFailureLogNotAnArrayIsSetAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "failures.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	log := NewFailureLog(path, nil)
	log.AppendFailure(FailureEntry{FailedQueryCode: "S4821", Reason: ReasonUnresolved})

	aside, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	require.Len(t, aside, 1)
	kept, err := os.ReadFile(aside[0])
	require.NoError(t, err)
	assert.Equal(t, "garbage", string(kept))

	events, skipped, err := log.ReadAll()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Zero(t, skipped)
}

func TestFailureLogAppendsFromSeparateInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failures.json")
	// два экземпляра на одном пути, как сервер и пакетный резолвер
	first := NewFailureLog(path, nil)
	second := NewFailureLog(path, nil)

	var wg sync.WaitGroup
	for i := 0; i < 15; i++ {
		for _, log := range []*FailureLog{first, second} {
			wg.Add(1)
			go func(log *FailureLog) {
				defer wg.Done()
				log.AppendFailure(FailureEntry{FailedQueryCode: "S4821", Reason: ReasonUnresolved})
			}(log)
		}
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	events, skipped, err := first.ReadAll()
	require.NoError(t, err)
	assert.Len(t, events, 30)
	assert.Zero(t, skipped)

	_, err = os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(err))
}

func TestFailureLogWrongFieldTypesAreSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failures.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"error_timestamp": 5}, {"failed_query_code":"X1"}]`), 0o644))

	events, skipped, err := NewFailureLog(path, nil).ReadAll()
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, 1, skipped)
}

func TestFailureLogNeverFailsCaller(t *testing.T) {
	dir := t.TempDir()
	// путь указывает на каталог: запись невозможна, но вызов не паникует
	log := NewFailureLog(dir, nil)
	assert.NotPanics(t, func() {
		log.AppendFailure(FailureEntry{FailedQueryCode: "X1", Reason: ReasonUnresolved})
	})
}

func TestFailureLogConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failures.json")
	log := NewFailureLog(path, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.AppendFailure(FailureEntry{FailedQueryCode: "S4821", Reason: ReasonUnresolved})
		}()
	}
	wg.Wait()

	events, skipped, err := log.ReadAll()
	require.NoError(t, err)
	assert.Len(t, events, 20)
	assert.Zero(t, skipped)
}

func TestFailureLogLatest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failures.json")
	log := NewFailureLog(path, nil)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, code := range []string{"A1", "B2", "C3"} {
		ts := base.Add(time.Duration(i) * time.Hour)
		log.now = func() time.Time { return ts }
		log.AppendFailure(FailureEntry{FailedQueryCode: code, Reason: ReasonUnresolved})
	}

	latest, err := log.Latest(2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "C3", latest[0].FailedQueryCode)
	assert.Equal(t, "B2", latest[1].FailedQueryCode)
}
