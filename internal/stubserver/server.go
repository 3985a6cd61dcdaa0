// Package stubserver is a development stand-in for the risk-evaluation
// service. It persists windows in PostgreSQL and materialises missing
// buckets with synthetic scores so the client can run without the real
// backend. It does not implement the production scoring pipeline.
package stubserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"riskwatch/internal/evalapi"
	"riskwatch/internal/logging"
	"riskwatch/internal/storage"
)

// Server serves the evaluation query and trigger endpoints.
type Server struct {
	store          storage.WindowStore
	logger         zerolog.Logger
	seedComponents bool
}

// New constructs a stub server over a window store.
func New(store storage.WindowStore, seedComponents bool, logger zerolog.Logger) *Server {
	return &Server{
		store:          store,
		logger:         logging.WithComponent(logger, "stub_server"),
		seedComponents: seedComponents,
	}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/api/risk/evaluations", s.handleQuery)
	r.Post("/api/risk/evaluations/trigger", s.handleTrigger)
	r.Get("/api/risk/merchants/{merchant}/stats", s.handleStats)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	merchant := q.Get("merchant")
	if merchant == "" {
		writeError(w, http.StatusBadRequest, "merchant is required")
		return
	}

	interval, err := evalapi.ParseInterval(q.Get("interval"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	since, err := strconv.ParseInt(q.Get("since"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "since must be epoch seconds")
		return
	}
	until, err := strconv.ParseInt(q.Get("until"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "until must be epoch seconds")
		return
	}

	limit := 1000
	if raw := q.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	if q.Get("ensure") == "true" {
		if err := s.materialize(r.Context(), merchant, interval, since, until); err != nil {
			s.logger.Error().Err(err).Str("merchant", merchant).Msg("materialize failed")
			writeError(w, http.StatusInternalServerError, "materialize failed")
			return
		}
	}

	rows, err := s.store.ListWindows(r.Context(), merchant, interval.Minutes, since, until, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("merchant", merchant).Msg("list windows failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if rows == nil {
		rows = []evalapi.EvaluationWindow{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"rows": rows})
}

type triggerRequest struct {
	Merchant         string `json:"merchant"`
	Interval         string `json:"interval"`
	Autoseed         bool   `json:"autoseed"`
	MaxBackfillHours *int   `json:"max_backfill_hours"`
	Priority         int    `json:"priority"`
	Since            *int64 `json:"since"`
	Until            *int64 `json:"until"`
	Now              string `json:"now"`
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Merchant == "" {
		writeError(w, http.StatusBadRequest, "merchant is required")
		return
	}

	interval, err := evalapi.ParseInterval(req.Interval)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	since, until := s.triggerRange(req, interval)
	if err := s.materialize(r.Context(), req.Merchant, interval, since, until); err != nil {
		s.logger.Error().Err(err).Str("merchant", req.Merchant).Msg("trigger materialize failed")
		writeError(w, http.StatusInternalServerError, "trigger failed")
		return
	}

	// The real backend computes asynchronously; the stub is done by now but
	// keeps the acknowledgement-only contract.
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleStats reports what the store holds for a merchant. Dev-only
// convenience for inspecting materialization progress.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	merchant := chi.URLParam(r, "merchant")

	interval, err := evalapi.ParseInterval(r.URL.Query().Get("interval"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	count, err := s.store.CountWindows(r.Context(), merchant, interval.Minutes)
	if err != nil {
		s.logger.Error().Err(err).Str("merchant", merchant).Msg("count windows failed")
		writeError(w, http.StatusInternalServerError, "stats failed")
		return
	}
	latest, err := s.store.LatestWindow(r.Context(), merchant, interval.Minutes)
	if err != nil {
		s.logger.Error().Err(err).Str("merchant", merchant).Msg("latest window failed")
		writeError(w, http.StatusInternalServerError, "stats failed")
		return
	}

	payload := map[string]interface{}{
		"merchant": merchant,
		"interval": interval.Token,
		"windows":  count,
	}
	if latest != nil {
		payload["latest_window_end_ts"] = latest.WindowEndTS
		payload["latest_window_end_iso"] = latest.WindowEndISO
	}
	writeJSON(w, http.StatusOK, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
