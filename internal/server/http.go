package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/scansmart/internal/repository"
	"github.com/joseph-ayodele/scansmart/internal/scan"
)

// StateReader exposes the displayed state to the status surface.
type StateReader interface {
	State() scan.State
}

// NewHTTPHandler serves /healthz, /state, /history and /metrics. scans may be nil.
func NewHTTPHandler(states StateReader, scans repository.ScanRepository, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &statusHandler{states: states, scans: scans, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.HandleFunc("/state", h.state).Methods(http.MethodGet)
	r.HandleFunc("/history", h.history).Methods(http.MethodGet)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	r.Use(h.logRequests)
	return r
}

type statusHandler struct {
	states StateReader
	scans  repository.ScanRepository
	logger *slog.Logger
}

func (h *statusHandler) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *statusHandler) state(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, StateMap(h.states.State()))
}

func (h *statusHandler) history(w http.ResponseWriter, r *http.Request) {
	if h.scans == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "history is disabled"})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}
	scans, err := h.scans.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("list history failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
		return
	}
	out := make([]map[string]any, 0, len(scans))
	for _, s := range scans {
		item := map[string]any{
			"run_id":     s.RunID,
			"source":     s.Source,
			"image_path": s.ImagePath,
			"status":     s.Status,
			"engine":     s.Engine,
			"started_at": s.StartedAt.Format(time.RFC3339Nano),
		}
		if !s.FinishedAt.IsZero() {
			item["finished_at"] = s.FinishedAt.Format(time.RFC3339Nano)
		}
		out = append(out, item)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"scans": out})
}

func (h *statusHandler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("write response failed", "error", err)
	}
}

func (h *statusHandler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration_ms", time.Since(start).Milliseconds())
	})
}
