package enrichment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const donaldsonPage = `<html><body>
<div class="product-detail">
  <span class="product-number"> P551315 </span>
  <h1 class="product-description">Lube Filter, Spin-On Full Flow, heavy duty</h1>
  <table class="product-attributes">
    <tr><th>Outer Diameter</th><td>93 mm</td></tr>
    <tr><th>Micron Rating:</th><td>20 micron</td></tr>
  </table>
  <ul class="cross-reference-list">
    <li class="part-number">LF3000</li>
    <li class="part-number">B7299</li>
    <li class="part-number">LF3000</li>
  </ul>
</div>
</body></html>`

func newTestServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		switch r.URL.Path {
		case "/product/P551315":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(donaldsonPage))
		case "/product/EMPTY1":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html><body><p>No results</p></body></html>"))
		case "/product/BROKEN":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func donaldsonConfig(url string) FetcherConfig {
	config := DefaultFetcherConfigs(SourceSettings{})[0]
	config.URL = url + "/product/%s"
	config.Enabled = true
	config.RateLimit = rate.Inf
	return config
}

func TestHTMLFetcherExtractsSpecs(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)

	fetcher := NewHTMLFetcher(donaldsonConfig(srv.URL), nil)
	result := fetcher.Fetch(context.Background(), "P551315")

	require.True(t, result.Found)
	assert.Equal(t, StatusFound, result.Status)
	assert.Equal(t, SourceDonaldson, result.Source)
	assert.Equal(t, "P551315", result.Code)
	assert.Equal(t, "Lube Filter, Spin-On Full Flow, heavy duty", result.Description)
	assert.Equal(t, "93 mm", result.Specs["outer diameter"])
	assert.Equal(t, []string{"LF3000", "B7299"}, result.CrossReferences)

	micron, ok := result.Micron()
	require.True(t, ok)
	assert.Equal(t, 20.0, micron)
}

func TestHTMLFetcherNotFoundNeverErrors(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)
	fetcher := NewHTMLFetcher(donaldsonConfig(srv.URL), nil)

	for _, code := range []string{"MISSING", "EMPTY1", "BROKEN", ""} {
		result := fetcher.Fetch(context.Background(), code)
		require.NotNil(t, result, code)
		assert.False(t, result.Found, code)
	}
}

func TestHTMLFetcherTimeoutDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	config := donaldsonConfig(srv.URL)
	config.Timeout = 50 * time.Millisecond
	fetcher := NewHTMLFetcher(config, nil)

	started := time.Now()
	result := fetcher.Fetch(context.Background(), "P551315")
	assert.False(t, result.Found)
	assert.Equal(t, StatusTransport, result.Status)
	assert.Less(t, time.Since(started), time.Second)
}

func TestHTMLFetcherCachesResults(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)

	fetcher := NewHTMLFetcher(donaldsonConfig(srv.URL), nil)
	fetcher.SetCache(NewSpecsCache(&CacheConfig{Enabled: true, TTL: time.Minute}))

	first := fetcher.Fetch(context.Background(), "P551315")
	second := fetcher.Fetch(context.Background(), "P551315")
	assert.True(t, first.Found)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	// ошибки сервера не кэшируются
	fetcher.Fetch(context.Background(), "BROKEN")
	fetcher.Fetch(context.Background(), "BROKEN")
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestSpecsResultMicron(t *testing.T) {
	tests := []struct {
		specs map[string]string
		want  float64
		ok    bool
	}{
		{map[string]string{"micron": "10"}, 10, true},
		{map[string]string{"Micron_Rating": " 2 µm"}, 2, true},
		{map[string]string{"micron rating": "n/a"}, 0, false},
		{map[string]string{"height": "100"}, 0, false},
	}
	for _, tt := range tests {
		got, ok := (&SpecsResult{Specs: tt.specs}).Micron()
		assert.Equal(t, tt.ok, ok)
		assert.Equal(t, tt.want, got)
	}

	var nilResult *SpecsResult
	_, ok := nilResult.Micron()
	assert.False(t, ok)
}
