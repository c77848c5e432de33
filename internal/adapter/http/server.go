package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/borehole-data-service/internal/domain"
	"github.com/couchcryptid/borehole-data-service/internal/report"
	"github.com/couchcryptid/borehole-data-service/internal/store"
)

// maxBodyBytes bounds request bodies for point and reading submissions.
const maxBodyBytes = 1 << 20

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

type anyReady []ReadinessChecker

// AnyReady combines checkers into one that is ready as soon as any of them
// is. When none is ready it reports every error.
func AnyReady(checkers ...ReadinessChecker) ReadinessChecker {
	return anyReady(checkers)
}

func (a anyReady) CheckReadiness(ctx context.Context) error {
	errs := make([]error, 0, len(a))
	for _, c := range a {
		err := c.CheckReadiness(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return errors.New("no readiness checks configured")
	}
	return errors.Join(errs...)
}

// Catalog is the point and borehole store the API reads and writes.
type Catalog interface {
	RegisterPoint(p *domain.SpatialPoint) error
	Point(id string) (*domain.SpatialPoint, error)
	Points() []*domain.SpatialPoint
	AddReading(boreholeID string, depth float64, blowData domain.BlowData) (domain.SPTRecord, error)
	Summary(boreholeID string) (domain.SPTSummary, error)
	Profile(boreholeID string) (domain.Profile, uint64, error)
}

// ProfileRenderer encodes a borehole profile at a given revision as PNG.
type ProfileRenderer interface {
	RenderPNG(p domain.Profile, revision uint64) ([]byte, error)
}

// Server exposes the point and borehole API alongside health, readiness,
// and metrics endpoints.
type Server struct {
	httpServer *http.Server
	catalog    Catalog
	plots      ProfileRenderer
	logger     *slog.Logger
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(addr string, ready ReadinessChecker, catalog Catalog, plots ProfileRenderer, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		catalog: catalog,
		plots:   plots,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/points", s.handleListPoints)
	mux.HandleFunc("POST /api/v1/points", s.handleCreatePoint)
	mux.HandleFunc("GET /api/v1/points/{id}", s.handleGetPoint)
	mux.HandleFunc("POST /api/v1/boreholes/{id}/readings", s.handleAddReading)
	mux.HandleFunc("GET /api/v1/boreholes/{id}/summary", s.handleSummary)
	mux.HandleFunc("GET /api/v1/boreholes/{id}/profile.png", s.handleProfile)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleListPoints(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Points())
}

func (s *Server) handleCreatePoint(w http.ResponseWriter, r *http.Request) {
	var p domain.SpatialPoint
	if err := decodeBody(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p.ID = strings.TrimSpace(p.ID)

	if err := s.catalog.RegisterPoint(&p); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.logger.Info("point registered", "point_id", p.ID)

	created, err := s.catalog.Point(p.ID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/points/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetPoint(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.Point(r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// readingRequest is the body of a reading submission. BlowData decodes
// null or a missing field as absent.
type readingRequest struct {
	Depth    *float64        `json:"depth"`
	BlowData domain.BlowData `json:"blow_data"`
}

func (s *Server) handleAddReading(w http.ResponseWriter, r *http.Request) {
	boreholeID := r.PathValue("id")

	var req readingRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Depth == nil {
		writeError(w, http.StatusBadRequest, errors.New("depth is required"))
		return
	}

	rec, err := s.catalog.AddReading(boreholeID, *req.Depth, req.BlowData)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.logger.Info("reading added",
		"borehole_id", boreholeID,
		"depth", rec.Depth(),
		"blow_count", rec.BlowCount(),
	)
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.catalog.Summary(r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	name := r.URL.Query().Get("format")
	if name == "" || strings.EqualFold(name, "json") {
		writeJSON(w, http.StatusOK, summary)
		return
	}

	format, err := report.ParseFormat(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	contentType := "text/plain; charset=utf-8"
	if format == report.FormatCSV {
		contentType = "text/csv; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if err := report.Write(w, summary, format); err != nil {
		s.logger.Warn("write summary failed", "borehole_id", summary.BoreholeID, "error", err)
	}
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, revision, err := s.catalog.Profile(r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	etag := fmt.Sprintf(`"%s-%d"`, profile.BoreholeID, revision)
	w.Header().Set("ETag", etag)
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	data, err := s.plots.RenderPNG(profile, revision)
	if err != nil {
		s.logger.Error("render profile failed", "borehole_id", profile.BoreholeID, "error", err)
		w.Header().Del("ETag")
		writeError(w, http.StatusInternalServerError, errors.New("render profile failed"))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck // client went away
}

// etagMatches reports whether an If-None-Match header names etag or "*".
// Weak validators compare equal to their strong form.
func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

// writeDomainError maps catalog and policy errors to HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrPointNotFound), errors.Is(err, store.ErrBoreholeNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrPointExists),
		errors.Is(err, store.ErrBoreholeOwned),
		errors.Is(err, domain.ErrDuplicateBorehole):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, store.ErrInvalidPoint), errors.Is(err, domain.ErrMissingBoreholeID):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrNegativeDepth), errors.Is(err, domain.ErrNegativeBlowCount):
		writeError(w, http.StatusUnprocessableEntity, err)
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
