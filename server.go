package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/skyward-data/quality.report/internal/db"
	"github.com/skyward-data/quality.report/internal/httputil"
	"github.com/skyward-data/quality.report/internal/ingestion"
	"github.com/skyward-data/quality.report/internal/quality/pipeline"
	"github.com/skyward-data/quality.report/internal/version"
)

// Server is the engine's operational HTTP surface: batch submission, batch
// metrics, and quarantine inspection. The analytics/query layer proper lives
// outside this service.
type Server struct {
	orch       *pipeline.Orchestrator
	parser     *ingestion.Parser
	quarantine *db.RecordStore
	metrics    *db.MetricsStore
}

func NewServer(orch *pipeline.Orchestrator, parser *ingestion.Parser, quarantine *db.RecordStore, metrics *db.MetricsStore) *Server {
	return &Server{
		orch:       orch,
		parser:     parser,
		quarantine: quarantine,
		metrics:    metrics,
	}
}

func homeHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("Welcome to the Quality Report Server!"))
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/batches", s.processBatch)
	mux.HandleFunc("/metrics", s.latestMetrics)
	mux.HandleFunc("/metrics/history", s.metricsHistory)
	mux.HandleFunc("/quarantine", s.listQuarantined)
	mux.HandleFunc("/healthz", s.healthz)
	mux.HandleFunc("/version", s.version)
	return mux
}

// processBatch accepts a raw states payload, runs it through the pipeline,
// and returns the batch summary.
func (s *Server) processBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 64<<20))
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("failed to read body: %v", err))
		return
	}

	batch, err := s.parser.ParsePayload(body)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("failed to parse payload: %v", err))
		return
	}

	result, err := s.orch.ProcessBatch(r.Context(), batch)
	if err != nil {
		log.Printf("batch processing failed: %v", err)
		httputil.InternalServerError(w, "failed to process batch")
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"batch_id":    result.BatchID,
		"accepted":    len(result.Accepted),
		"quarantined": len(result.Quarantined),
		"metrics":     result.Metrics,
	})
}

func (s *Server) latestMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	m, ok, err := s.metrics.Latest(r.Context())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve metrics: %v", err))
		return
	}
	if !ok {
		httputil.NotFound(w, "no batches processed yet")
		return
	}
	httputil.WriteJSONOK(w, m)
}

func (s *Server) metricsHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	history, err := s.metrics.History(r.Context(), queryLimit(r, 50))
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve metrics history: %v", err))
		return
	}
	httputil.WriteJSONOK(w, history)
}

func (s *Server) listQuarantined(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	records, err := s.quarantine.Recent(r.Context(), queryLimit(r, 100))
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve quarantined records: %v", err))
		return
	}
	httputil.WriteJSONOK(w, records)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}

func (s *Server) version(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}

func queryLimit(r *http.Request, fallback int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 10000 {
			return n
		}
	}
	return fallback
}
