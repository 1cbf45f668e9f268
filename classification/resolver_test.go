package classification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elimfilters/internal/domain/catalog"
)

func newTestResolver(t *testing.T, learned ...LearnedRule) *Resolver {
	t.Helper()
	static, err := LoadStaticRules("")
	require.NoError(t, err)

	table := NewRuleTable()
	for _, rule := range learned {
		table.Add(rule.Token, rule.Value)
	}
	return NewResolver(static, StaticSource{Table: table}, nil)
}

func TestResolveStaticCaterpillarFuel(t *testing.T) {
	r := newTestResolver(t)

	res := r.Resolve("1R-0755", catalog.DutyNone)
	require.True(t, res.Resolved)
	assert.Equal(t, LayerStatic, res.Layer)
	assert.Equal(t, catalog.Hint{Family: catalog.FamilyFuel, Duty: catalog.DutyHD, Brand: "CATERPILLAR"}, res.Hint)
	assert.NoError(t, res.Err())
}

func TestResolveStaticOrderMoreSpecificFirst(t *testing.T) {
	r := newTestResolver(t)

	res := r.Resolve("1R-0716", catalog.DutyNone)
	require.True(t, res.Resolved)
	assert.Equal(t, catalog.FamilyOil, res.Hint.Family)

	res = r.Resolve("BF7633", catalog.DutyNone)
	require.True(t, res.Resolved)
	assert.Equal(t, catalog.FamilyFuel, res.Hint.Family)
	assert.Equal(t, "BALDWIN", res.Hint.Brand)

	res = r.Resolve("B7299", catalog.DutyNone)
	require.True(t, res.Resolved)
	assert.Equal(t, catalog.FamilyOil, res.Hint.Family)
}

func TestResolveStaticDutyFallsBackToHint(t *testing.T) {
	r := newTestResolver(t)

	res := r.Resolve("P551315", catalog.DutyNone)
	require.True(t, res.Resolved)
	assert.Equal(t, catalog.FamilyOil, res.Hint.Family)
	assert.Equal(t, catalog.DutyNone, res.Hint.Duty)
	assert.False(t, res.Hint.Complete())

	res = r.Resolve("P551315", catalog.DutyHD)
	assert.Equal(t, catalog.DutyHD, res.Hint.Duty)
	assert.True(t, res.Hint.Complete())
}

func TestResolveLearnedLiteralBeatsStatic(t *testing.T) {
	r := newTestResolver(t, LearnedRule{Token: "LF", Value: "HYDRAULIC|HD"})

	res := r.Resolve("LF3000", catalog.DutyNone)
	require.True(t, res.Resolved)
	assert.Equal(t, LayerLearnedPrefix, res.Layer)
	assert.Equal(t, catalog.FamilyHydraulic, res.Hint.Family)
	assert.Equal(t, "LF", res.Rule)
}

func TestResolveLearnedRegexBeatsLiteral(t *testing.T) {
	// Литеральное правило идет первым в таблице, но regex-правило все равно важнее
	r := newTestResolver(t,
		LearnedRule{Token: "AB", Value: "OIL|LD"},
		LearnedRule{Token: "^AB\\d{3}$", Value: "AIR|HD"},
	)

	res := r.Resolve("AB123", catalog.DutyNone)
	require.True(t, res.Resolved)
	assert.Equal(t, LayerLearnedRegex, res.Layer)
	assert.Equal(t, catalog.FamilyAir, res.Hint.Family)

	res = r.Resolve("AB1234", catalog.DutyNone)
	require.True(t, res.Resolved)
	assert.Equal(t, LayerLearnedPrefix, res.Layer)
	assert.Equal(t, catalog.FamilyOil, res.Hint.Family)
}

func TestResolveLearnedLiteralFirstMatchWins(t *testing.T) {
	r := newTestResolver(t,
		LearnedRule{Token: "XY", Value: "OIL|HD"},
		LearnedRule{Token: "XY1", Value: "FUEL|HD"},
	)

	res := r.Resolve("XY100", catalog.DutyNone)
	assert.Equal(t, catalog.FamilyOil, res.Hint.Family)
}

func TestResolveLearnedEmptyDutyUsesHint(t *testing.T) {
	r := newTestResolver(t, LearnedRule{Token: "ZZ", Value: "CABIN|"})

	res := r.Resolve("ZZ900", catalog.DutyLD)
	require.True(t, res.Resolved)
	assert.Equal(t, catalog.Hint{Family: catalog.FamilyCabin, Duty: catalog.DutyLD}, res.Hint)
}

func TestResolveLearnedEmptyDutyWithoutHint(t *testing.T) {
	r := newTestResolver(t, LearnedRule{Token: "ZZ", Value: "CABIN|"})

	res := r.Resolve("ZZ900", catalog.DutyNone)
	require.True(t, res.Resolved)
	assert.Equal(t, LayerLearnedPrefix, res.Layer)
	assert.Equal(t, catalog.FamilyCabin, res.Hint.Family)
	assert.Equal(t, catalog.DutyNone, res.Hint.Duty)
	assert.False(t, res.Hint.Complete())
	assert.NoError(t, res.Err())
}

func TestResolveLiteralIsCaseInsensitive(t *testing.T) {
	r := newTestResolver(t, LearnedRule{Token: "qx", Value: "COOLANT|HD"})

	res := r.Resolve("qx-77", catalog.DutyNone)
	require.True(t, res.Resolved)
	assert.Equal(t, catalog.FamilyCoolant, res.Hint.Family)
}

func TestResolveMalformedRegexIsSkipped(t *testing.T) {
	r := newTestResolver(t,
		LearnedRule{Token: "^QQ[", Value: "OIL|HD"},
		LearnedRule{Token: "^QQ\\d+", Value: "FUEL|LD"},
	)

	res := r.Resolve("QQ1234", catalog.DutyNone)
	require.True(t, res.Resolved)
	assert.Equal(t, catalog.FamilyFuel, res.Hint.Family)

	// Повторный вызов использует кэш и тоже не падает
	res = r.Resolve("QQ1234", catalog.DutyNone)
	assert.Equal(t, catalog.FamilyFuel, res.Hint.Family)
}

func TestResolveMalformedValueIsSkipped(t *testing.T) {
	r := newTestResolver(t,
		LearnedRule{Token: "LF", Value: "NOT_A_FAMILY|HD"},
	)

	res := r.Resolve("LF3000", catalog.DutyNone)
	require.True(t, res.Resolved)
	assert.Equal(t, LayerStatic, res.Layer)
	assert.Equal(t, catalog.FamilyOil, res.Hint.Family)
}

func TestResolveLongNumericSentinel(t *testing.T) {
	r := newTestResolver(t, LearnedRule{Token: LongNumericToken, Value: "OIL|LD"})

	res := r.Resolve("51515", catalog.DutyNone)
	require.True(t, res.Resolved)
	assert.Equal(t, catalog.FamilyOil, res.Hint.Family)

	res = r.Resolve("5151", catalog.DutyNone)
	assert.False(t, res.Resolved)
}

func TestResolveUnresolved(t *testing.T) {
	r := newTestResolver(t)

	res := r.Resolve("S4821", catalog.DutyNone)
	assert.False(t, res.Resolved)
	assert.Equal(t, LayerNone, res.Layer)
	assert.ErrorIs(t, res.Err(), catalog.ErrUnresolvedClassification)
	assert.Equal(t, "prefix:S|morph:A9999", res.Signals.String())

	res = r.Resolve("", catalog.DutyNone)
	assert.False(t, res.Resolved)
}

func TestResolveReadsSnapshotOnEveryCall(t *testing.T) {
	static, err := LoadStaticRules("")
	require.NoError(t, err)
	source := &mutableSource{table: NewRuleTable()}
	r := NewResolver(static, source, nil)

	assert.False(t, r.Resolve("S4821", catalog.DutyNone).Resolved)

	next := source.table.Clone()
	next.Add("S", "OIL|LD")
	source.table = next

	res := r.Resolve("S4821", catalog.DutyNone)
	require.True(t, res.Resolved)
	assert.Equal(t, catalog.Hint{Family: catalog.FamilyOil, Duty: catalog.DutyLD}, res.Hint)
}

type mutableSource struct {
	table *RuleTable
}

func (m *mutableSource) Snapshot() *RuleTable { return m.table }
