// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes search and correlation over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pdiddy/diligence-engine/internal/search"
	"github.com/pdiddy/diligence-engine/pkg/types"
)

// maxBodyBytes bounds correlation request bodies.
const maxBodyBytes = 1 << 20

// Searcher runs one search.
type Searcher interface {
	Search(ctx context.Context, req types.SearchRequest) (*types.SearchResult, error)
}

// Profiler builds one correlation profile.
type Profiler interface {
	Profile(ctx context.Context, req types.CorrelationRequest) (*types.CompanyProfile, error)
}

// Server wires HTTP endpoints to the search orchestrator and the
// correlation service.
type Server struct {
	searcher Searcher
	profiler Profiler
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// New constructs a Server. A nil gatherer serves the default Prometheus registry.
func New(s Searcher, p Profiler, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{searcher: s, profiler: p, gatherer: gatherer, logger: logger.With("component", "server")}
}

// Register mounts the endpoints on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", s.HandleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Route("/v1", func(r chi.Router) {
		r.Get("/search", s.HandleSearch)
		r.Post("/correlate", s.HandleCorrelate)
	})
}

// Handler returns a router with the endpoints and standard middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	s.Register(r)
	return r
}

// NewHTTPServer builds an http.Server with the project's timeouts.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// HandleHealth handles GET /healthz.
func (s *Server) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleSearch handles GET /v1/search?query=&year=&jurisdiction=&sources=&max_results=.
func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := parseSearchRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.searcher.Search(ctx, req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, search.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, search.ErrAllSourcesFailed) && res != nil:
		s.logger.WarnContext(ctx, "search degraded", "request_id", middleware.GetReqID(ctx), "query", req.Query)
		writeJSON(w, http.StatusBadGateway, res)
	default:
		s.logger.ErrorContext(ctx, "search failed", "request_id", middleware.GetReqID(ctx), "query", req.Query, "error", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

// HandleCorrelate handles POST /v1/correlate.
func (s *Server) HandleCorrelate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req types.CorrelationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}

	p, err := s.profiler.Profile(ctx, req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, p)
	case errors.Is(err, search.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, search.ErrAllSourcesFailed) && p != nil:
		s.logger.WarnContext(ctx, "profile degraded", "request_id", middleware.GetReqID(ctx), "entity", req.EntityName)
		writeJSON(w, http.StatusBadGateway, p)
	default:
		s.logger.ErrorContext(ctx, "profile failed", "request_id", middleware.GetReqID(ctx), "entity", req.EntityName, "error", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

func parseSearchRequest(r *http.Request) (types.SearchRequest, error) {
	q := r.URL.Query()
	req := types.SearchRequest{Query: q.Get("query")}

	if v := q.Get("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("year %q is not a number", v)
		}
		req.Year = year
	}
	if v := q.Get("jurisdiction"); v != "" {
		j, err := types.ParseJurisdiction(v)
		if err != nil {
			return req, err
		}
		req.Jurisdiction = j
	}
	if v := q.Get("sources"); v != "" {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				req.Sources = append(req.Sources, id)
			}
		}
	}
	if v := q.Get("max_results"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("max_results %q is not a number", v)
		}
		req.MaxResults = n
	}
	return req, nil
}

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// writeError hides internal error details from clients.
func writeError(w http.ResponseWriter, status int, err error) {
	resp := errorResponse{Error: "internal_error"}
	if status == http.StatusBadRequest {
		resp = errorResponse{Error: "bad_request", Description: err.Error()}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writing response", "error", err)
	}
}
