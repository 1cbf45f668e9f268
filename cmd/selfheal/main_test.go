package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"elimfilters/classification"
	"elimfilters/internal/config"
	"elimfilters/selfheal"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.GetDefaults()
	cfg.LearnedRulesPath = filepath.Join(dir, "learned_rules.json")
	cfg.SelfHeal.FailureLogPath = filepath.Join(dir, "failure_log.json")
	return cfg
}

func seedFailures(cfg *config.Config, code, suggestion string, n int) {
	log := selfheal.NewFailureLog(cfg.SelfHeal.FailureLogPath, nil)
	for i := 0; i < n; i++ {
		s := suggestion
		log.AppendFailure(selfheal.FailureEntry{
			FailedQueryCode:        code,
			FamilyInferenceSignals: "prefix:" + classification.PrefixToken(code),
			SuggestedFamilyDuty:    &s,
			Reason:                 selfheal.ReasonUnresolved,
		})
	}
}

func TestRunOnceInjectsRuleAndWritesReport(t *testing.T) {
	cfg := testConfig(t)
	seedFailures(cfg, "KX1234", "COOLANT|HD", 3)
	report := filepath.Join(t.TempDir(), "report.xlsx")

	out := &bytes.Buffer{}
	err := run(context.Background(), cfg, options{once: true, report: report}, zap.NewNop(), out)
	require.NoError(t, err)

	var summary map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.EqualValues(t, 3, summary["scanned"])
	assert.EqualValues(t, 1, summary["rules_total"])

	rules, err := classification.LoadRuleTable(cfg.LearnedRulesPath)
	require.NoError(t, err)
	value, ok := rules.Get("KX")
	require.True(t, ok)
	assert.Equal(t, "COOLANT|HD", value)

	f, err := excelize.OpenFile(report)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Failures")
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestRunOnceBelowThreshold(t *testing.T) {
	cfg := testConfig(t)
	seedFailures(cfg, "KX1234", "COOLANT|HD", 2)

	err := run(context.Background(), cfg, options{once: true}, zap.NewNop(), &bytes.Buffer{})
	require.NoError(t, err)

	rules, err := classification.LoadRuleTable(cfg.LearnedRulesPath)
	require.NoError(t, err)
	assert.Equal(t, 0, rules.Len())
}

func TestLoopStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := run(ctx, cfg, options{interval: 0}, zap.NewNop(), &bytes.Buffer{})
	assert.NoError(t, err)
}
