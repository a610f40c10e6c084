// Package server exposes the scoring engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/posture/internal/assessment"
	"github.com/sells-group/posture/internal/config"
	"github.com/sells-group/posture/internal/model"
	"github.com/sells-group/posture/internal/scorer"
	"github.com/sells-group/posture/internal/store"
	"github.com/sells-group/posture/internal/strategy"
)

// Engine is the set of operations the API serves.
type Engine interface {
	Ping(ctx context.Context) error
	Score(ctx context.Context, assessmentID string) (*scorer.Result, error)
	LegacyScore(ctx context.Context, assessmentID string) (*assessment.LegacyResult, error)
	StrategyMatrix(ctx context.Context, assessmentID string) (*strategy.Matrix, error)
	InvalidateMatrix(ctx context.Context, assessmentID string) error
	VendorMatches(ctx context.Context, assessmentID string, limit int) (*assessment.Matches, error)
	RecordGap(ctx context.Context, g model.Gap) error
	RemoveGap(ctx context.Context, assessmentID, gapID string) error
	RecordVendor(ctx context.Context, v model.Vendor) error
	ScoreBatch(ctx context.Context, ids []string, concurrency int) (*assessment.BatchSummary, error)
}

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Server routes HTTP requests to an Engine.
type Server struct {
	engine Engine
	cfg    config.ServerConfig
	router chi.Router
}

// New builds the router with CORS, rate limiting and request logging.
func New(engine Engine, cfg config.ServerConfig) *Server {
	s := &Server{engine: engine, cfg: cfg}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))
	if cfg.RateLimit > 0 {
		r.Use(rateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1))))
	}

	r.Get("/health", s.handleHealth)
	r.Route("/assessments", func(r chi.Router) {
		r.Post("/score-batch", s.handleScoreBatch)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/score", s.handleScore)
			r.Get("/legacy-score", s.handleLegacyScore)
			r.Get("/strategy-matrix", s.handleMatrix)
			r.Delete("/strategy-matrix", s.handleInvalidateMatrix)
			r.Get("/vendor-matches", s.handleVendorMatches)
			r.Put("/gaps/{gapID}", s.handlePutGap)
			r.Delete("/gaps/{gapID}", s.handleDeleteGap)
		})
	})
	r.Put("/vendors/{id}", s.handlePutVendor)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		zap.L().Error("server: health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Score(r.Context(), chi.URLParam(r, "id"))
	respond(w, r, res, err)
}

func (s *Server) handleLegacyScore(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.LegacyScore(r.Context(), chi.URLParam(r, "id"))
	respond(w, r, res, err)
}

func (s *Server) handleMatrix(w http.ResponseWriter, r *http.Request) {
	m, err := s.engine.StrategyMatrix(r.Context(), chi.URLParam(r, "id"))
	respond(w, r, m, err)
}

func (s *Server) handleInvalidateMatrix(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.InvalidateMatrix(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVendorMatches(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	res, err := s.engine.VendorMatches(r.Context(), chi.URLParam(r, "id"), limit)
	respond(w, r, res, err)
}

func (s *Server) handlePutGap(w http.ResponseWriter, r *http.Request) {
	var g model.Gap
	if !decode(w, r, &g) {
		return
	}
	g.AssessmentID = chi.URLParam(r, "id")
	g.ID = chi.URLParam(r, "gapID")
	if err := s.engine.RecordGap(r.Context(), g); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteGap(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RemoveGap(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "gapID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePutVendor(w http.ResponseWriter, r *http.Request) {
	var v model.Vendor
	if !decode(w, r, &v) {
		return
	}
	v.ID = chi.URLParam(r, "id")
	if err := s.engine.RecordVendor(r.Context(), v); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type batchRequest struct {
	AssessmentIDs []string `json:"assessment_ids"`
	Concurrency   int      `json:"concurrency,omitempty"`
}

func (s *Server) handleScoreBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.AssessmentIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "assessment_ids is required"})
		return
	}
	res, err := s.engine.ScoreBatch(r.Context(), req.AssessmentIDs, req.Concurrency)
	respond(w, r, res, err)
}

type errorBody struct {
	Error string `json:"error"`
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func respond(w http.ResponseWriter, r *http.Request, body any, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrUnknownValue), errors.Is(err, strategy.ErrPriorityScoreRange):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		zap.L().Error("server: request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("error", eris.ToString(err, true)),
		)
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

func rateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
