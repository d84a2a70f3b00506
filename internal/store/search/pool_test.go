package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matching-workers/internal/common/logger"
	"matching-workers/internal/matching/fingerprint"
	"matching-workers/internal/models"
)

var fixedNow = time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)

// fakeCluster serves _search pages from docs, sorted by id, honouring search_after.
type fakeCluster struct {
	mu       sync.Mutex
	docs     []map[string]interface{}
	status   int
	requests []map[string]interface{}
	paths    []string
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.requests = append(f.requests, body)
	f.paths = append(f.paths, r.URL.Path)
	status := f.status
	f.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		fmt.Fprint(w, `{"error":{"type":"index_not_found_exception"},"status":404}`)
		return
	}

	size := int(body["size"].(float64))
	start := 0
	if after, ok := body["search_after"].([]interface{}); ok && len(after) == 1 {
		for i, d := range f.docs {
			if d["id"] == after[0] {
				start = i + 1
			}
		}
	}
	end := start + size
	if end > len(f.docs) {
		end = len(f.docs)
	}

	hits := []map[string]interface{}{}
	for _, d := range f.docs[start:end] {
		hits = append(hits, map[string]interface{}{"_source": d, "sort": []interface{}{d["id"]}})
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"hits": map[string]interface{}{"hits": hits}})
}

func setupProvider(t *testing.T, cluster *fakeCluster, opts ...Option) *PoolProvider {
	t.Helper()
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	opts = append([]Option{WithClock(func() time.Time { return fixedNow }), WithLogger(logger.NewTestLogger(t))}, opts...)
	return NewPoolProvider(client, opts...)
}

func doc(id string, extra map[string]interface{}) map[string]interface{} {
	d := map[string]interface{}{
		"id":           id,
		"first_name":   "Cand",
		"last_name":    strings.ToUpper(id),
		"skills":       []string{"python"},
		"availability": "immediate",
		"active":       true,
		"blacklisted":  false,
	}
	for k, v := range extra {
		d[k] = v
	}
	return d
}

// ==========================
// Pool reads
// ==========================

func TestCandidatePool_PagesThroughIndex(t *testing.T) {
	cluster := &fakeCluster{docs: []map[string]interface{}{
		doc("a", map[string]interface{}{"available_from": "2026-01-25T00:00:00Z", "mobility_km": 40}),
		doc("b", map[string]interface{}{"availability": "en mission"}),
		doc("c", map[string]interface{}{"experience_years": 3.5, "min_hourly_rate": 18.0}),
		doc("d", nil),
		doc("e", nil),
	}}
	p := setupProvider(t, cluster, WithIndex("talents"), WithPageSize(2))

	pool, err := p.CandidatePool(context.Background(), "tenant-a")
	require.NoError(t, err)

	require.Len(t, pool.Candidates, 5)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(pool.Candidates))
	assert.Equal(t, fingerprint.PoolVersion(pool.Candidates), pool.Version)

	a := pool.Candidates[0]
	assert.Equal(t, models.AvailabilityInDays, a.Availability)
	assert.Equal(t, 15, a.AvailableInDays)
	require.NotNil(t, a.MobilityKm)
	assert.Equal(t, 40, *a.MobilityKm)
	assert.Equal(t, models.AvailabilityOnMission, pool.Candidates[1].Availability)
	assert.Equal(t, 3.5, *pool.Candidates[2].ExperienceYears)

	// 2 + 2 + 1 hits
	require.Len(t, cluster.requests, 3)
	assert.Equal(t, "/talents/_search", cluster.paths[0])
	assert.NotContains(t, cluster.requests[0], "search_after")
	assert.Equal(t, []interface{}{"b"}, cluster.requests[1]["search_after"])
	assert.Equal(t, []interface{}{"d"}, cluster.requests[2]["search_after"])
}

func TestCandidatePool_QueryScopesTenantVisibility(t *testing.T) {
	cluster := &fakeCluster{}
	p := setupProvider(t, cluster)

	pool, err := p.CandidatePool(context.Background(), "tenant-b")
	require.NoError(t, err)
	assert.Empty(t, pool.Candidates)
	assert.NotEmpty(t, pool.Version)

	require.Len(t, cluster.requests, 1)
	raw, err := json.Marshal(cluster.requests[0]["query"])
	require.NoError(t, err)
	q := string(raw)
	assert.Contains(t, q, `{"term":{"active":true}}`)
	assert.Contains(t, q, `{"term":{"blacklisted":true}}`)
	assert.Contains(t, q, `{"term":{"visible_to":"tenant-b"}}`)
	assert.Contains(t, q, `"minimum_should_match":1`)
	assert.Equal(t, "/candidates/_search", cluster.paths[0])
}

func TestCandidatePool_SearchError(t *testing.T) {
	p := setupProvider(t, &fakeCluster{status: http.StatusNotFound})

	_, err := p.CandidatePool(context.Background(), "tenant-a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "candidate search failed")
}

func TestCandidatePool_Unreachable(t *testing.T) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    []string{"http://127.0.0.1:1"},
		DisableRetry: true,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = NewPoolProvider(client).CandidatePool(ctx, "tenant-a")
	assert.Error(t, err)
}

func ids(cs []models.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}
