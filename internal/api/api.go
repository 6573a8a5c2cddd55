package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joescharf/magi/internal/metrics"
	"github.com/joescharf/magi/internal/models"
	"github.com/joescharf/magi/internal/review"
	"github.com/joescharf/magi/internal/store"
)

const maxRequestBytes = 10 << 20

// Reviewer runs one review and returns its history record.
type Reviewer interface {
	Review(ctx context.Context, userInput, code string, timeout time.Duration) (*models.ReviewRecord, error)
}

// Server provides the REST API handlers.
type Server struct {
	reviewer Reviewer
	store    store.Store
	metrics  *metrics.Metrics
	ui       http.Handler
}

// NewServer creates a new API server.
// The store may be nil when history is disabled; m may be nil to omit /metrics.
func NewServer(r Reviewer, s store.Store, m *metrics.Metrics) *Server {
	return &Server{reviewer: r, store: s, metrics: m}
}

// WithUI serves h for every GET outside /api/, /healthz and /metrics.
func (s *Server) WithUI(h http.Handler) *Server {
	s.ui = h
	return s
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/reviews", s.createReview)
	mux.HandleFunc("GET /api/v1/reviews", s.listReviews)
	mux.HandleFunc("GET /api/v1/reviews/{id}", s.getReview)
	mux.HandleFunc("DELETE /api/v1/reviews/{id}", s.deleteReview)

	mux.HandleFunc("GET /healthz", s.healthz)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	if s.ui != nil {
		mux.Handle("GET /api/", http.NotFoundHandler())
		mux.Handle("GET /", s.ui)
	}

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"history": s.store != nil,
	})
}

// --- Reviews ---

type createReviewRequest struct {
	UserInput      string  `json:"user_input"`
	Code           string  `json:"code"`
	TimeoutSeconds float64 `json:"timeout_seconds"`
}

type reviewFailure struct {
	Error  string               `json:"error"`
	Review *models.ReviewRecord `json:"review,omitempty"`
}

func (s *Server) createReview(w http.ResponseWriter, r *http.Request) {
	var body createReviewRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(body.Code) == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	if body.TimeoutSeconds < 0 {
		writeError(w, http.StatusBadRequest, "timeout_seconds must not be negative")
		return
	}
	timeout := time.Duration(body.TimeoutSeconds * float64(time.Second))

	rec, err := s.reviewer.Review(r.Context(), body.UserInput, body.Code, timeout)
	if err != nil {
		status := http.StatusInternalServerError
		var se *review.SessionError
		switch {
		case errors.Is(err, review.ErrTimeout):
			status = http.StatusGatewayTimeout
		case errors.As(err, &se):
			status = http.StatusBadGateway
		case errors.Is(err, review.ErrNoAgents), errors.Is(err, review.ErrDuplicateAgent):
			status = http.StatusServiceUnavailable
		}
		slog.Warn("review_failed", "status", status, "error", err)
		writeJSON(w, status, reviewFailure{Error: err.Error(), Review: rec})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "review history is disabled")
		return false
	}
	return true
}

func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	filter := store.ReviewListFilter{Status: models.RecordStatus(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	records, err := s.store.ListReviews(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []*models.ReviewRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) getReview(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	rec, ok := s.findReview(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// findReview resolves the {id} path value, a full id or unique prefix, and
// writes the error response when it cannot.
func (s *Server) findReview(w http.ResponseWriter, r *http.Request) (*models.ReviewRecord, bool) {
	rec, err := s.store.FindReview(r.Context(), r.PathValue("id"))
	if err != nil {
		switch {
		case strings.Contains(err.Error(), "not found"):
			writeError(w, http.StatusNotFound, err.Error())
		case strings.Contains(err.Error(), "ambiguous"):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return nil, false
	}
	return rec, true
}

func (s *Server) deleteReview(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	rec, ok := s.findReview(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteReview(r.Context(), rec.ID); err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
