package http

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/civic-data-etl/internal/output"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ArtifactStore lists and reads written artifacts.
type ArtifactStore interface {
	List() ([]output.Artifact, error)
	Open(name string) ([]byte, error)
}

// Server exposes health, readiness, metrics, and the written artifacts.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, /data,
// and /data/{name} routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, artifacts ArtifactStore, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(ready))
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/data", func(r chi.Router) {
		r.Get("/", s.handleList(artifacts))
		r.Get("/{name}", s.handleArtifact(artifacts))
	})

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

type artifactInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

func (s *Server) handleList(store ArtifactStore) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		list, err := store.List()
		if err != nil {
			s.logger.Error("list artifacts failed", "error", err)
			writeError(w, http.StatusInternalServerError, "list artifacts failed")
			return
		}
		out := make([]artifactInfo, len(list))
		for i, a := range list {
			out[i] = artifactInfo{Name: a.Name, Size: a.Size}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleArtifact(store ArtifactStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		data, err := store.Open(name)
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, "artifact not found: "+name)
			return
		}
		if err != nil {
			s.logger.Error("read artifact failed", "name", name, "error", err)
			writeError(w, http.StatusInternalServerError, "read artifact failed")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(data) //nolint:errcheck // client went away
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
