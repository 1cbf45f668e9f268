package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	skuapp "elimfilters/internal/application/sku"
	"elimfilters/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.GetDefaults()
	cfg.SQLitePath = filepath.Join(dir, "db", "catalog.db")
	cfg.SpreadsheetPath = filepath.Join(dir, "export", "catalog.xlsx")
	cfg.LearnedRulesPath = filepath.Join(dir, "rules", "learned_rules.json")
	cfg.RulesReloadInterval = 0
	cfg.SelfHeal.FailureLogPath = filepath.Join(dir, "logs", "failure_log.json")
	cfg.Scraper.Enabled = false
	return cfg
}

func TestNewContainerWiresComponents(t *testing.T) {
	c, err := NewContainerWithLogger(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.Equal(t, 2, c.Store.Backends())
	assert.NotNil(t, c.SQLite)
	assert.Nil(t, c.Fetchers)
	assert.NotEmpty(t, c.Resolver.StaticRules())
	assert.Equal(t, 0, c.Rules.Snapshot().Len())

	result := c.UseCase.ApplyPolicy(context.Background(), skuapp.Request{Code: "1R-0755"})
	require.True(t, result.OK, result.Error)
	assert.Equal(t, "EF90755", result.SKU)
	assert.True(t, result.Persisted)

	count, err := c.SQLite.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestContainerRouterServesHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, err := NewContainerWithLogger(testConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	w := httptest.NewRecorder()
	c.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestContainerFailureFeedsMiner(t *testing.T) {
	c, err := NewContainerWithLogger(testConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	result := c.UseCase.ApplyPolicy(context.Background(), skuapp.Request{Code: "AB"})
	require.False(t, result.OK)

	summary, err := c.Runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Scanned)
	assert.Empty(t, summary.Injected)
}

func TestNewContainerRequiresStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.SQLitePath = ""
	cfg.SpreadsheetPath = ""

	_, err := NewContainerWithLogger(cfg, nil)
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	c, err := NewContainerWithLogger(testConfig(t), nil)
	require.NoError(t, err)

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}
