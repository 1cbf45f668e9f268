package selfheal

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elimfilters/classification"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func newTestRunner(t *testing.T, notifier Notifier) (*Runner, *FailureLog, string) {
	t.Helper()
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "learned_rules.json")
	log := NewFailureLog(filepath.Join(dir, "failures.json"), nil)

	runner := NewRunner(RunnerConfig{
		RulesPath:       rulesPath,
		LockStaleAfter:  time.Hour,
		Threshold:       3,
		ConfidenceFloor: 0.8,
		Stabilization:   defaultStabilizationConfig(),
	}, log, notifier, nil)
	return runner, log, rulesPath
}

func TestRunnerInjectsAndPersists(t *testing.T) {
	runner, log, rulesPath := newTestRunner(t, nil)

	// правило, добавленное вручную, сохраняется при слиянии
	manual := classification.NewRuleTable()
	manual.Add("^P55\\d{4}", "OIL|HD")
	require.NoError(t, classification.SaveRuleTable(rulesPath, manual))

	for _, code := range []string{"S4821", "S1234", "S7777"} {
		log.AppendFailure(FailureEntry{
			FailedQueryCode:        code,
			FamilyInferenceSignals: "prefix:S|morph:A9999",
			SuggestedFamilyDuty:    strPtr("OIL|LD"),
			Reason:                 ReasonUnresolved,
		})
	}

	changed := 0
	runner.OnRulesChanged(func() { changed++ })

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Scanned)
	require.Len(t, summary.Injected, 1)
	assert.Equal(t, 2, summary.RulesTotal)
	assert.Equal(t, 1, changed)

	table, err := classification.LoadRuleTable(rulesPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"^P55\\d{4}", "S"}, table.Tokens())

	summary, err = runner.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary.Injected)
	assert.Equal(t, 1, changed)
}

func TestRunnerBusy(t *testing.T) {
	runner, _, _ := newTestRunner(t, nil)
	require.NoError(t, runner.lock.Acquire())
	defer runner.lock.Release()

	_, err := runner.Run(context.Background())
	assert.ErrorIs(t, err, ErrMinerBusy)
}

func TestRunnerNotifiesOnStabilization(t *testing.T) {
	notifier := &recordingNotifier{}
	runner, log, _ := newTestRunner(t, notifier)

	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	runner.now = func() time.Time { return now }

	for _, e := range eventsAt(now, 40, 48*time.Hour, 96*time.Hour) {
		ts := e.ErrorTimestamp
		log.now = func() time.Time { return ts }
		log.AppendFailure(FailureEntry{FailedQueryCode: "1234", Reason: ReasonUnresolved})
	}
	for _, e := range eventsAt(now, 6, 0, 48*time.Hour) {
		ts := e.ErrorTimestamp
		log.now = func() time.Time { return ts }
		log.AppendFailure(FailureEntry{FailedQueryCode: "1234", Reason: ReasonUnresolved})
	}

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.Stabilization.Stabilized)
	assert.True(t, summary.Notified)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, EventStabilization, notifier.sent[0].Event)
	assert.Equal(t, 5, notifier.sent[0].Stabilization.RecommendedThreshold)
}

func TestRunnerNotifiesOnConflict(t *testing.T) {
	notifier := &recordingNotifier{}
	runner, log, rulesPath := newTestRunner(t, notifier)

	existing := classification.NewRuleTable()
	existing.Add("S", "OIL|LD")
	require.NoError(t, classification.SaveRuleTable(rulesPath, existing))

	for i := 0; i < 3; i++ {
		log.AppendFailure(FailureEntry{
			FailedQueryCode:        "S4821",
			FamilyInferenceSignals: "prefix:S",
			SuggestedFamilyDuty:    strPtr("FUEL|HD"),
			Reason:                 ReasonUnresolved,
		})
	}

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Conflicts, 1)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, EventRuleConflict, notifier.sent[0].Event)

	table, err := classification.LoadRuleTable(rulesPath)
	require.NoError(t, err)
	v, _ := table.Get("S")
	assert.Equal(t, "OIL|LD", v)
}

func TestRunnerEmptyLogAndNoRules(t *testing.T) {
	runner, _, rulesPath := newTestRunner(t, nil)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Scanned)
	assert.NoFileExists(t, rulesPath)
}
