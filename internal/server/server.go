// Package server is the request-layer collaborator: it decodes external
// generation requests into GenerationParams, invokes the core, and returns
// the dataset or a mapped error. The core itself stays free of any transport
// concerns.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/synthlearn/synthlearn/internal/generator"
	"github.com/synthlearn/synthlearn/internal/storage"
	apperrors "github.com/synthlearn/synthlearn/pkg/errors"
	"github.com/synthlearn/synthlearn/pkg/models"
)

// Config holds HTTP server settings.
type Config struct {
	Addr         string        `json:"addr" mapstructure:"addr"`
	ReadTimeout  time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
}

// Server exposes the generation API. Each server carries its own metrics
// registry so instances never collide on registration.
type Server struct {
	config    *Config
	logger    *logrus.Logger
	assembler *generator.Assembler
	cache     storage.DatasetCache
	router    *mux.Router
	http      *http.Server
	registry  *prometheus.Registry
	metrics   *serverMetrics
}

type serverMetrics struct {
	generations        prometheus.Counter
	generationFailures prometheus.Counter
	generationSeconds  prometheus.Histogram
	suppressedTotal    prometheus.Counter
	cacheHits          prometheus.Counter
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)
	return &serverMetrics{
		generations: factory.NewCounter(prometheus.CounterOpts{
			Name: "synthlearn_generations_total",
			Help: "Completed dataset generations.",
		}),
		generationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "synthlearn_generation_failures_total",
			Help: "Failed dataset generations.",
		}),
		generationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "synthlearn_generation_duration_seconds",
			Help:    "Wall time of dataset generation.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		suppressedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "synthlearn_suppressed_aggregates_total",
			Help: "Aggregates suppressed by the k-anonymity gate.",
		}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "synthlearn_cache_hits_total",
			Help: "Seeded generation requests served from the dataset cache.",
		}),
	}
}

// NewServer wires the router and metrics. The cache may be nil, in which
// case every request runs a fresh generation.
func NewServer(config *Config, assembler *generator.Assembler, cache storage.DatasetCache, logger *logrus.Logger) *Server {
	if config == nil {
		config = &Config{Addr: ":8080"}
	}
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 30 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Minute
	}
	if logger == nil {
		logger = logrus.New()
	}

	registry := prometheus.NewRegistry()
	s := &Server{
		config:    config,
		logger:    logger,
		assembler: assembler,
		cache:     cache,
		router:    mux.NewRouter(),
		registry:  registry,
		metrics:   newServerMetrics(registry),
	}
	s.routes()

	s.http = &http.Server{
		Addr:         config.Addr,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s
}

func (s *Server) routes() {
	s.router.Use(s.logMiddleware)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/generate", s.handleGenerate).Methods(http.MethodPost)
	api.HandleFunc("/personas", s.handlePersonas).Methods(http.MethodGet)
}

// Router returns the configured handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// ListenAndServe blocks serving requests until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.WithField("addr", s.config.Addr).Info("Starting API server")
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("Handled request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePersonas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"personas": models.AllPersonas()})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var params models.GenerationParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, apperrors.NewConfigurationError("INVALID_REQUEST_BODY", "request body is not valid JSON"))
		return
	}

	// Seeded requests are deterministic, so a cached dataset is exactly what
	// a fresh run would produce. Entropy-seeded requests stay uncached.
	key, cacheable := storage.CacheKey(params)
	if s.cache != nil && cacheable {
		if cached, err := s.cache.Get(r.Context(), key); err == nil {
			s.metrics.cacheHits.Inc()
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	start := time.Now()
	dataset, err := s.assembler.Generate(r.Context(), params)
	if err != nil {
		s.metrics.generationFailures.Inc()
		writeError(w, err)
		return
	}

	s.metrics.generations.Inc()
	s.metrics.generationSeconds.Observe(time.Since(start).Seconds())
	s.metrics.suppressedTotal.Add(float64(dataset.QualityMetrics.SuppressedAggregates))

	if s.cache != nil && cacheable {
		if err := s.cache.Put(r.Context(), key, dataset); err != nil {
			s.logger.WithError(err).Warn("Failed to cache dataset")
		}
	}

	writeJSON(w, http.StatusOK, dataset)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := map[string]interface{}{"error": err.Error()}

	if appErr, ok := err.(*apperrors.AppError); ok {
		status = appErr.HTTPStatus
		body = map[string]interface{}{"error": appErr}
	}
	writeJSON(w, status, body)
}
