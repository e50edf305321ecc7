package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dirdex/internal/domain"
	"github.com/kailas-cloud/dirdex/internal/domain/directory"
	"github.com/kailas-cloud/dirdex/internal/domain/search/request"
	"github.com/kailas-cloud/dirdex/internal/keyword"
	healthuc "github.com/kailas-cloud/dirdex/internal/usecase/health"
	"github.com/kailas-cloud/dirdex/internal/usecase/indexsync"
	searchuc "github.com/kailas-cloud/dirdex/internal/usecase/search"
)

// Error codes in errorResponse.Code.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeUnauthorized     = "unauthorized"
	codeNotFound         = "not_found"
	codeQueueFull        = "queue_full"
	codeIndexNotBuilt    = "index_not_built"
	codeProviderError    = "embedding_provider_error"
	codeInternalError    = "internal_error"
)

// SearchService runs directory searches.
type SearchService interface {
	Search(ctx context.Context, req request.Request) (searchuc.Response, error)
}

// IndexService manages the keyword and vector indexes.
type IndexService interface {
	Stats(ctx context.Context) (indexsync.IndexStats, error)
	Rebuild(ctx context.Context) (keyword.Stats, error)
	ReembedAll(ctx context.Context) (indexsync.ReembedStats, error)
	Enqueue(kind directory.Kind, id string) error
}

// HealthService reports component health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// SearchDefaults fill in threshold and weight parameters a caller leaves out.
type SearchDefaults struct {
	Weights    request.Weights
	Thresholds request.Thresholds
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the search HTTP API.
type Server struct {
	search        SearchService
	index         IndexService
	health        HealthService
	defaults      SearchDefaults
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search SearchService,
	index IndexService,
	health HealthService,
	defaults SearchDefaults,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:   search,
		index:    index,
		health:   health,
		defaults: defaults,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrQueueFull, http.StatusServiceUnavailable, codeQueueFull),
		sentinelHandler(indexsync.ErrStopped, http.StatusServiceUnavailable, codeQueueFull),
		sentinelHandler(domain.ErrIndexNotBuilt, http.StatusServiceUnavailable, codeIndexNotBuilt),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeProviderError),
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/search", s.Search)
		r.Get("/index/stats", s.IndexStats)
		r.Post("/index/rebuild", s.RebuildIndex)
		r.Post("/index/records/{kind}/{id}", s.SyncRecord)
	})
}

// Search handles GET /v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	params, err := bindSearchParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	req, err := params.toRequest(s.defaults)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	resp, err := s.search.Search(r.Context(), req)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponseFromResult(req, resp))
}

// IndexStats handles GET /v1/index/stats.
func (s *Server) IndexStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.index.Stats(r.Context())
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// RebuildIndex handles POST /v1/index/rebuild. With reembed=true the
// embedding store is refreshed as well.
func (s *Server) RebuildIndex(w http.ResponseWriter, r *http.Request) {
	var reembed *bool
	if err := bindQuery(r, "reembed", &reembed); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	st, err := s.index.Rebuild(r.Context())
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	resp := rebuildResponse{Keyword: st}

	if reembed != nil && *reembed {
		re, err := s.index.ReembedAll(r.Context())
		if err != nil {
			s.handleDomainError(r.Context(), w, err)
			return
		}
		resp.Embeddings = &re
	}

	writeJSON(w, http.StatusOK, resp)
}

// SyncRecord handles POST /v1/index/records/{kind}/{id}.
func (s *Server) SyncRecord(w http.ResponseWriter, r *http.Request) {
	kind, err := directory.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	id := chi.URLParam(r, "id")

	if err := s.index.Enqueue(kind, id); err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, syncResponse{DocumentID: directory.DocumentID(kind, id), Status: "queued"})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// handleDomainError maps err to a response. Validation errors keep their
// message; anything unrecognized becomes a 500 without internals.
func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := s.logger
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		log = log.With(zap.String("request_id", reqID))
	}
	msg := err.Error()
	if !errors.Is(err, domain.ErrInvalidRequest) {
		msg = safeDomainMessage(err)
	}
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrQueueFull,
		indexsync.ErrStopped,
		domain.ErrIndexNotBuilt,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}
