// Package server exposes metrics, health and stored daily summaries over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/goodtune/workdigest/internal/domain"
	"github.com/goodtune/workdigest/internal/metrics"
	"github.com/goodtune/workdigest/internal/report"
	"github.com/goodtune/workdigest/internal/storage"
	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// FeaturesLoader reads persisted summaries. Implementations that also
// satisfy storage.DateLister enable the /features index.
type FeaturesLoader interface {
	LoadFeatures(ctx context.Context, date string) (*domain.Features, error)
}

// Server serves /metrics, /health, /features and /reports
type Server struct {
	server    *http.Server
	logger    zerolog.Logger
	listener  net.Listener // Optional pre-created listener (for systemd socket activation)
	loader    FeaturesLoader
	generator *report.Generator
	cache     *lru.Cache[string, *domain.Features]
}

// NewServer creates a new HTTP server. generator may be nil, in which case
// reports are rendered without a summarizer.
func NewServer(addr string, loader FeaturesLoader, generator *report.Generator, cacheSize int, logger zerolog.Logger) (*Server, error) {
	cache, err := lru.New[string, *domain.Features](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create features cache: %w", err)
	}

	logger = logger.With().Str("component", "server").Logger()
	if generator == nil {
		generator = report.NewGenerator(nil, nil, logger)
	}

	s := &Server{
		logger:    logger,
		loader:    loader,
		generator: generator,
		cache:     cache,
	}

	router := mux.NewRouter()
	router.Use(loggingMiddleware(logger))
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods("GET")
	router.HandleFunc("/features", s.handleDates).Methods("GET")
	router.HandleFunc("/features/{date}", s.handleFeatures).Methods("GET")
	router.HandleFunc("/reports/{date}", s.handleReport).Methods("GET")

	s.server = &http.Server{
		Addr:    addr,
		Handler: router,
	}
	return s, nil
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	go func() {
		var err error
		if s.listener != nil {
			// Use systemd socket-activated listener
			s.logger.Debug().Msg("Using systemd socket-activated listener")
			err = s.server.Serve(s.listener)
		} else {
			// Create and bind listener ourselves
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// Invalidate drops a cached summary, typically after it was re-aggregated.
func (s *Server) Invalidate(date string) {
	s.cache.Remove(date)
}

func (s *Server) loadFeatures(ctx context.Context, date string) (*domain.Features, error) {
	if f, ok := s.cache.Get(date); ok {
		metrics.FeaturesCacheHits.Inc()
		return f, nil
	}
	metrics.FeaturesCacheMisses.Inc()

	f, err := s.loader.LoadFeatures(ctx, date)
	if err != nil || f == nil {
		return nil, err
	}
	s.cache.Add(date, f)
	return f, nil
}

func (s *Server) handleDates(w http.ResponseWriter, r *http.Request) {
	lister, ok := s.loader.(storage.DateLister)
	if !ok {
		http.Error(w, "listing not supported by this store", http.StatusNotImplemented)
		return
	}
	dates, err := lister.Dates(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list dates")
		http.Error(w, "failed to list dates", http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.logger, map[string][]string{"dates": dates})
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	f, ok := s.featuresFor(w, r)
	if !ok {
		return
	}
	data, err := storage.EncodeFeatures(f)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode features")
		http.Error(w, "failed to encode features", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	f, ok := s.featuresFor(w, r)
	if !ok {
		return
	}
	rep := s.generator.Generate(r.Context(), f)
	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, s.logger, rep)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(report.Markdown(rep)))
}

// featuresFor resolves the {date} path value, writing the error response
// itself when it returns false.
func (s *Server) featuresFor(w http.ResponseWriter, r *http.Request) (*domain.Features, bool) {
	date := mux.Vars(r)["date"]
	if err := storage.ValidateDate(date); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	f, err := s.loadFeatures(r.Context(), date)
	switch {
	case err != nil && errors.Is(err, storage.ErrNotFound):
		http.Error(w, "no summary for "+date, http.StatusNotFound)
		return nil, false
	case err != nil:
		s.logger.Error().Err(err).Str("date", date).Msg("Failed to load features")
		http.Error(w, "failed to load summary", http.StatusInternalServerError)
		return nil, false
	case f == nil:
		http.Error(w, "no summary for "+date, http.StatusNotFound)
		return nil, false
	}
	return f, true
}
