package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyward-data/quality.report/internal/db"
	"github.com/skyward-data/quality.report/internal/ingestion"
	"github.com/skyward-data/quality.report/internal/quality"
	"github.com/skyward-data/quality.report/internal/quality/pipeline"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	database, err := db.NewDB(filepath.Join(t.TempDir(), "quality_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.MigrateUp())

	quarantine := db.NewQuarantineStore(database)
	metrics := db.NewMetricsStore(database)
	orch, err := pipeline.NewOrchestrator(quality.DefaultEngineConfig(),
		pipeline.WithSinks(db.NewAcceptedStore(database), quarantine, metrics))
	require.NoError(t, err)

	return NewServer(orch, ingestion.NewParser(), quarantine, metrics)
}

const testPayload = `{
	"time": 1700000000,
	"states": [
		["4ca7b4", "RYR123", "Ireland", 1700000000, 1700000000, -6.27, 53.42,
		 11000.0, false, 230.0, 270.0, 0.0, null, 11200.0, "7000", false, 0],
		[null, "GHOST", "Nowhere", 1700000000, 1700000000, -6.30, 53.40,
		 11000.0, false, 230.0, 270.0, 0.0, null, 11200.0, "7000", false, 0]
	]
}`

func TestServerProcessBatch(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	mux := srv.ServeMux()

	req := httptest.NewRequest(http.MethodPost, "/batches", strings.NewReader(testPayload))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		BatchID     string                      `json:"batch_id"`
		Accepted    int                         `json:"accepted"`
		Quarantined int                         `json:"quarantined"`
		Metrics     quality.BatchQualityMetrics `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.BatchID)
	assert.Equal(t, 1, resp.Accepted)
	assert.Equal(t, 1, resp.Quarantined)
	assert.Equal(t, 2, resp.Metrics.TotalRecords)

	t.Run("metrics reflect the processed batch", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var m quality.BatchQualityMetrics
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
		assert.Equal(t, resp.BatchID, m.BatchID)
		assert.Equal(t, 1, m.QuarantineReasons[quality.ReasonMissingICAO24])
	})

	t.Run("quarantine listing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/quarantine", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var records []*quality.EnrichedRecord
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
		require.Len(t, records, 1)
		assert.Equal(t, "GHOST", records[0].Callsign)
		assert.Equal(t, quality.ReasonMissingICAO24, records[0].QuarantineReason)
	})

	t.Run("metrics history", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics/history?limit=5", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var history []quality.BatchQualityMetrics
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
		assert.Len(t, history, 1)
	})
}

func TestServerProcessBatchErrors(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	mux := srv.ServeMux()

	t.Run("rejects GET", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/batches", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})

	t.Run("rejects invalid payload", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/batches", strings.NewReader("{nope"))
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestServerMetricsBeforeAnyBatch(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	mux := srv.ServeMux()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServerHealthz(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	mux := srv.ServeMux()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestServerVersion(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	mux := srv.ServeMux()

	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "dev", body["version"])
}

func TestQueryLimit(t *testing.T) {
	t.Parallel()
	cases := []struct {
		url  string
		want int
	}{
		{"/metrics/history", 50},
		{"/metrics/history?limit=10", 10},
		{"/metrics/history?limit=0", 50},
		{"/metrics/history?limit=-3", 50},
		{"/metrics/history?limit=abc", 50},
		{"/metrics/history?limit=999999", 50},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.url, nil)
		assert.Equal(t, tc.want, queryLimit(req, 50), tc.url)
	}
}
