package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matching-workers/internal/common/database"
	"matching-workers/internal/common/logger"
	"matching-workers/internal/matching/cache"
)

// ==========================
// Test Helper Functions
// ==========================

type stubDep struct {
	name string
	err  error
}

func (s stubDep) Name() string                 { return s.name }
func (s stubDep) Ping(_ context.Context) error { return s.err }
func (s stubDep) Close() error                 { return nil }

var fixedNow = time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)

func setupServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	opts.Logger = logger.NewTestLogger(t)
	opts.Clock = func() time.Time { return fixedNow }
	srv := httptest.NewServer(New(opts).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

// ==========================
// Endpoint Tests
// ==========================

func TestHealth(t *testing.T) {
	srv := setupServer(t, Options{})

	code, body := getJSON(t, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "2026-01-10T09:30:00Z", body["time"])
}

func TestReady(t *testing.T) {
	tests := []struct {
		name     string
		deps     []database.Dependency
		wantCode int
		status   string
	}{
		{"no dependencies", nil, http.StatusOK, "ready"},
		{"all up", []database.Dependency{stubDep{name: "postgres"}, stubDep{name: "redis"}}, http.StatusOK, "ready"},
		{"redis down", []database.Dependency{stubDep{name: "postgres"}, stubDep{name: "redis", err: errors.New("refused")}},
			http.StatusServiceUnavailable, "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := setupServer(t, Options{
				Dependencies: tt.deps,
				TaskTypes:    func() []string { return []string{"run-matching"} },
			})

			code, body := getJSON(t, srv.URL+"/ready")
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.status, body["status"])
			assert.Equal(t, []interface{}{"run-matching"}, body["workers"])
			if tt.wantCode != http.StatusOK {
				assert.Contains(t, body["error"], "redis: refused")
			}
		})
	}
}

func TestCacheStats(t *testing.T) {
	srv := setupServer(t, Options{CacheStats: func() cache.Stats {
		return cache.Stats{LocalHits: 3, Computations: 1, Entries: 1}
	}})

	code, body := getJSON(t, srv.URL+"/cache/stats")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 3.0, body["localHits"])
	assert.Equal(t, 1.0, body["entries"])
}

func TestCacheStats_NotMountedWithoutSource(t *testing.T) {
	srv := setupServer(t, Options{})

	resp, err := http.Get(srv.URL + "/cache/stats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "server_test_hits_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Add(2)

	srv := setupServer(t, Options{Gatherer: reg})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "server_test_hits_total 2")
}
