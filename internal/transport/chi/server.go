// Package chi exposes the search core over HTTP: the search endpoint, the
// view-interaction endpoint, health, and Prometheus metrics.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/timtro-cloud/timtro/internal/domain"
	"github.com/timtro-cloud/timtro/internal/domain/listing"
	healthuc "github.com/timtro-cloud/timtro/internal/usecase/health"
	searchuc "github.com/timtro-cloud/timtro/internal/usecase/search"
)

// SearchService executes a search request.
type SearchService interface {
	Search(ctx context.Context, req *searchuc.Request) (*listing.SearchResponse, error)
}

// ViewRecorder records a listing view interaction.
type ViewRecorder interface {
	RecordView(ctx context.Context, roomID, listingID, viewerID string) error
}

// HealthService reports component health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// Server holds the HTTP handlers.
type Server struct {
	search       SearchService
	interactions ViewRecorder
	health       HealthService
	logger       *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(search SearchService, interactions ViewRecorder, health HealthService, logger *zap.Logger) *Server {
	return &Server{
		search:       search,
		interactions: interactions,
		health:       health,
		logger:       logger,
	}
}

// Register mounts all routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/views", s.handleRecordView)
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

// handleSearch handles POST /api/v1/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	ucReq, err := req.toUsecase()
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	resp, err := s.search.Search(r.Context(), ucReq)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleRecordView handles POST /api/v1/views.
func (s *Server) handleRecordView(w http.ResponseWriter, r *http.Request) {
	var req viewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	if err := s.interactions.RecordView(r.Context(), req.RoomID, req.ListingID, req.ViewerID); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: report.Checks,
	})
}

type healthResponse struct {
	Status string                           `json:"status"`
	Checks map[string]healthuc.CheckResult `json:"checks"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrSearchBackend):
		// The one surfaced class: an empty result set must mean "no
		// matching listings", never "backend down".
		s.logger.Error("Search backend failure", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "search_unavailable", "search backend unavailable")
	default:
		s.logger.Error("Internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
