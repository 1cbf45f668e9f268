package classification

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleTableAddFirstWriteWins(t *testing.T) {
	table := NewRuleTable()
	assert.True(t, table.Add("S", "OIL|LD"))
	assert.False(t, table.Add("S", "FUEL|HD"))

	v, ok := table.Get("S")
	require.True(t, ok)
	assert.Equal(t, "OIL|LD", v)
	assert.Equal(t, 1, table.Len())
}

func TestRuleTablePreservesOrder(t *testing.T) {
	data := []byte(`{"version": 2, "learnedPrefixes": {"ZZ": "OIL|HD", "^AB\\d": "AIR|LD", "AA": "FUEL|HD", "ZZ": "CABIN|LD", "bad": 5}}`)

	table := NewRuleTable()
	require.NoError(t, json.Unmarshal(data, table))
	assert.Equal(t, []string{"ZZ", "^AB\\d", "AA"}, table.Tokens())

	v, _ := table.Get("ZZ")
	assert.Equal(t, "OIL|HD", v)

	out, err := table.MarshalJSON()
	require.NoError(t, err)

	again := NewRuleTable()
	require.NoError(t, json.Unmarshal(out, again))
	assert.Equal(t, table.Tokens(), again.Tokens())
	assert.Contains(t, string(out), `"version": 2`)
}

func TestRuleTableNullSection(t *testing.T) {
	table := NewRuleTable()
	require.NoError(t, json.Unmarshal([]byte(`{"learnedPrefixes": null}`), table))
	assert.Equal(t, 0, table.Len())
}

func TestLoadRuleTableMissingFileIsEmpty(t *testing.T) {
	table, err := LoadRuleTable(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
}

func TestLoadRuleTableInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"learnedPrefixes": {`), 0o644))

	_, err := LoadRuleTable(path)
	assert.Error(t, err)
}

func TestSaveRuleTableAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "rules.json")

	table := NewRuleTable()
	table.Add("S", "OIL|LD")
	table.Add("^P55\\d{4}", "OIL|HD")
	require.NoError(t, SaveRuleTable(path, table))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	loaded, err := LoadRuleTable(path)
	require.NoError(t, err)
	assert.Equal(t, table.Entries(), loaded.Entries())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestRuleRepositoryReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")

	repo, err := NewRuleRepository(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, repo.Snapshot().Len())

	before := repo.Snapshot()

	table := NewRuleTable()
	table.Add("S", "OIL|LD")
	require.NoError(t, SaveRuleTable(path, table))

	changed, err := repo.RefreshIfChanged()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, repo.Snapshot().Len())
	assert.Equal(t, 0, before.Len(), "old snapshot stays unchanged")

	changed, err = repo.RefreshIfChanged()
	require.NoError(t, err)
	assert.False(t, changed)
}
