package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/bench-track/bench-track/tracker/analysis"
	"github.com/bench-track/bench-track/tracker/parser"
	"github.com/bench-track/bench-track/tracker/storage"
	"github.com/bench-track/bench-track/tracker/types"
)

// Handlers implements the REST endpoints over the store and analyzers.
type Handlers struct {
	store       *storage.Store
	baselines   analysis.BaselineManager
	detector    analysis.RegressionDetector
	trends      analysis.TrendAnalyzer
	comparisons analysis.ComparisonAnalyzer
	metrics     *Metrics
	hub         *wsHub
	log         logrus.FieldLogger
}

// NewHandlers creates the handler set.
func NewHandlers(
	store *storage.Store,
	baselines analysis.BaselineManager,
	detector analysis.RegressionDetector,
	trends analysis.TrendAnalyzer,
	comparisons analysis.ComparisonAnalyzer,
	metrics *Metrics,
	hub *wsHub,
	log logrus.FieldLogger,
) *Handlers {
	return &Handlers{
		store:       store,
		baselines:   baselines,
		detector:    detector,
		trends:      trends,
		comparisons: comparisons,
		metrics:     metrics,
		hub:         hub,
		log:         log.WithField("component", "api-handlers"),
	}
}

// HandleHealth reports store connectivity.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if err := h.store.DB().PingContext(r.Context()); err != nil {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, map[string]string{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleListAlerts returns alerts newest first. Query params: unresolved
// (bool), limit (int).
func (h *Handlers) HandleListAlerts(w http.ResponseWriter, r *http.Request) {
	onlyUnresolved := r.URL.Query().Get("unresolved") == "true"
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	alerts, err := h.store.ListAlerts(r.Context(), onlyUnresolved, limit)
	if err != nil {
		h.writeStorageError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(alerts),
		"alerts": alerts,
	})
}

// HandleResolveAlert marks one alert resolved.
func (h *Handlers) HandleResolveAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.store.ResolveAlert(r.Context(), id); err != nil {
		h.writeStorageError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "resolved"})
}

// HandleGetBaseline returns the active baseline for a pair.
func (h *Handlers) HandleGetBaseline(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	baseline, err := h.baselines.Get(r.Context(), vars["component"], vars["benchmark"])
	if err != nil {
		h.writeStorageError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, baseline)
}

type setBaselineRequest struct {
	ComponentName string `json:"component_name"`
	BenchmarkName string `json:"benchmark_name"`
	DurationNs    int64  `json:"duration_ns"`
	VersionID     string `json:"version_id"`
}

// HandleSetBaseline sets a new active baseline for a pair.
func (h *Handlers) HandleSetBaseline(w http.ResponseWriter, r *http.Request) {
	var req setBaselineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	err := h.baselines.Set(r.Context(), req.ComponentName, req.BenchmarkName, req.DurationNs, req.VersionID)
	if err != nil {
		h.writeStorageError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{
		"component_name": req.ComponentName,
		"benchmark_name": req.BenchmarkName,
		"status":         "baseline set",
	})
}

// HandleGetTrends returns the trend report for a component. Query param:
// days (int, default from config).
func (h *Handlers) HandleGetTrends(w http.ResponseWriter, r *http.Request) {
	component := mux.Vars(r)["component"]
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}

	start := time.Now()
	report, err := h.trends.Trends(r.Context(), component, days)
	if err != nil {
		h.writeStorageError(w, err)
		return
	}
	h.metrics.AnalysisSeconds.WithLabelValues("trend").Observe(time.Since(start).Seconds())

	h.writeJSON(w, http.StatusOK, report)
}

// HandleCompare diffs two versions. Query params: base, current.
func (h *Handlers) HandleCompare(w http.ResponseWriter, r *http.Request) {
	base := r.URL.Query().Get("base")
	current := r.URL.Query().Get("current")
	if base == "" || current == "" {
		h.writeError(w, http.StatusBadRequest, "base and current query parameters are required")
		return
	}

	start := time.Now()
	report, err := h.comparisons.Compare(r.Context(), base, current)
	if err != nil {
		h.writeStorageError(w, err)
		return
	}
	h.metrics.AnalysisSeconds.WithLabelValues("compare").Observe(time.Since(start).Seconds())

	h.writeJSON(w, http.StatusOK, report)
}

// HandleDetect ingests the posted records and runs regression detection over
// them, broadcasting any fired alerts to websocket clients.
func (h *Handlers) HandleDetect(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	records, err := parser.DecodeResults(body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	accepted, rejected, err := h.store.InsertRecords(r.Context(), records)
	if err != nil {
		h.writeStorageError(w, err)
		return
	}
	h.metrics.RecordsIngested.Add(float64(accepted))
	h.metrics.RecordsRejected.Add(float64(rejected))

	start := time.Now()
	summary, err := h.detector.Detect(r.Context(), records)
	if err != nil {
		h.writeStorageError(w, err)
		return
	}
	h.metrics.AnalysisSeconds.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	for _, alert := range summary.Alerts {
		h.metrics.AlertsFired.WithLabelValues(string(alert.Severity)).Inc()
	}
	h.hub.BroadcastAlerts(summary.Alerts)

	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.WithError(err).Error("Failed to encode response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, code int, message string) {
	h.writeJSON(w, code, map[string]string{"error": message})
}

// writeStorageError maps the domain error taxonomy onto HTTP status codes.
func (h *Handlers) writeStorageError(w http.ResponseWriter, err error) {
	var notFound *types.NotFoundError
	var invalid *types.InvalidRecordError

	switch {
	case errors.As(err, &notFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &invalid):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.WithError(err).Error("Request failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}
