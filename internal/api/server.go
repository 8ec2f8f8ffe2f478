// Package api serves the resolve operation and the batch history over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/nishad/srafetch/internal/errors"
	"github.com/nishad/srafetch/internal/metrics"
	"github.com/nishad/srafetch/internal/service"
)

// Version is reported by the root endpoint.
var Version = "dev"

// Server represents the HTTP API server
type Server struct {
	router  *mux.Router
	server  *http.Server
	resolve *service.ResolveService
	history *service.HistoryService
	metrics *metrics.Metrics
	// maxLines caps a resolve batch so it can finish within writeTimeout
	maxLines int
}

// writeTimeout bounds a whole response, so throttled batches must fit in it.
const writeTimeout = 10 * time.Minute

// Config holds server configuration
type Config struct {
	Addr       string
	EnableCORS bool
}

// NewServer creates a new API server instance. history and m may be nil.
func NewServer(cfg *Config, resolve *service.ResolveService, history *service.HistoryService, m *metrics.Metrics) *Server {
	if history == nil {
		history = service.NewHistoryService(nil)
	}
	s := &Server{
		router:   mux.NewRouter(),
		resolve:  resolve,
		history:  history,
		metrics:  m,
		maxLines: lineLimit(writeTimeout, resolve.Interval()),
	}

	s.setupRoutes()

	if cfg.EnableCORS {
		s.router.Use(corsMiddleware)
	}
	s.router.Use(loggingMiddleware)
	s.router.Use(jsonMiddleware)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// lineLimit is the largest batch whose launches end within three quarters
// of timeout at the given interval; the rest is left for the pipelines still
// in flight and the response itself.
func lineLimit(timeout, interval time.Duration) int {
	if interval <= 0 {
		return maxResolveLines
	}
	return min(int(timeout*3/4/interval)+1, maxResolveLines)
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/resolve", s.handleResolve).Methods("POST")
	api.HandleFunc("/accessions/{accession}", s.handleAccession).Methods("GET")
	api.HandleFunc("/accessions/{accession}/history", s.handleAccessionHistory).Methods("GET")

	api.HandleFunc("/batches", s.handleListBatches).Methods("GET")
	api.HandleFunc("/batches/{id}", s.handleGetBatch).Methods("GET")
	api.HandleFunc("/batches/{id}/descriptors", s.handleBatchDescriptors).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}
	s.router.HandleFunc("/", s.handleRoot).Methods("GET")
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting API server on %s", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down API server...")
	return s.server.Shutdown(ctx)
}

// Middleware functions

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.RequestURI, time.Since(start))
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Helper functions

func logWriteError(err error) {
	log.Printf("Error writing response: %v", err)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   true,
		"message": message,
		"status":  status,
	})
}

// writeErr maps an error's kind to an HTTP status.
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetKind(err) {
	case errors.KindValidation, errors.KindParse:
		status = http.StatusBadRequest
	case errors.KindNotFound:
		status = http.StatusNotFound
	}
	s.writeError(w, status, err.Error())
}

// handleRoot returns API information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "srafetch API",
		"version":     Version,
		"description": "Resolve SRA/GEO accessions to ENA download descriptors",
		"endpoints": map[string]string{
			"resolve":    "POST /api/v1/resolve",
			"accessions": "/api/v1/accessions/{accession}",
			"batches":    "/api/v1/batches",
			"health":     "/health",
			"metrics":    "/metrics",
		},
	}
	s.writeJSON(w, http.StatusOK, info)
}

// handleHealth returns health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"history":   "disabled",
	}

	status := http.StatusOK
	if s.history.Enabled() {
		if _, err := s.history.Stats(); err != nil {
			health["status"] = "unhealthy"
			health["history"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			health["history"] = "healthy"
		}
	}

	s.writeJSON(w, status, health)
}
