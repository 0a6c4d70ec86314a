// Package api exposes the prediction service over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"callquality/internal/metrics"
	"callquality/internal/ml"
	"callquality/internal/storage"
)

// Config holds the HTTP surface settings.
type Config struct {
	Addr           string
	AllowedOrigins []string
	RequestTimeout time.Duration
	RecentLimit    int
}

// Option configures a Server.
type Option func(*Server)

// WithStore enables the prediction log and GET /predictions/recent.
func WithStore(s *storage.Store) Option {
	return func(srv *Server) { srv.store = s }
}

// WithMetrics records request metrics and serves gatherer at GET /metrics.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(srv *Server) {
		srv.metrics = m
		srv.gatherer = gatherer
	}
}

// Server routes HTTP requests to the prediction service.
type Server struct {
	cfg      Config
	svc      *ml.Service
	store    *storage.Store
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	hub      *Hub
	engine   *gin.Engine
	http     *http.Server
}

// New builds the router. svc may be an unavailable service, in which case
// the model endpoints answer 503.
func New(cfg Config, svc *ml.Service, opts ...Option) *Server {
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 50
	}
	s := &Server{cfg: cfg, svc: svc}
	for _, opt := range opts {
		opt(s)
	}

	var onCount func(int)
	if s.metrics != nil {
		onCount = func(n int) { s.metrics.WSClients.Set(float64(n)) }
	}
	s.hub = NewHub(originChecker(cfg.AllowedOrigins), onCount)

	engine := gin.New()
	engine.Use(recovery(), requestLogger(s.metrics), corsMiddleware(cfg.AllowedOrigins), requestTimeout(cfg.RequestTimeout))
	s.engine = engine
	s.routes()

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/", s.handleRoot)
	r.GET("/health", s.handleHealth)
	r.GET("/model-info", s.handleModelInfo)
	r.GET("/model-info/skew", s.handleSkew)
	r.POST("/predict", s.handlePredict)

	r.GET("/operators", s.handleOperators)
	r.GET("/network-types", s.handleNetworkTypes)
	r.GET("/locations", s.handleLocations)
	r.GET("/quality-categories", s.handleQualityCategories)
	r.GET("/months", s.handleMonths)
	r.GET("/states", s.handleStates)

	r.GET("/predictions/recent", s.handleRecent)
	r.GET("/ws/predictions", func(c *gin.Context) { s.hub.ServeWS(c.Writer, c.Request) })

	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
}

// Handler returns the router for use with httptest or a custom server.
func (s *Server) Handler() http.Handler { return s.engine }

// Hub returns the prediction feed.
func (s *Server) Hub() *Hub { return s.hub }

// ListenAndServe serves on Config.Addr until Shutdown is called. It returns
// nil at once if Shutdown already ran.
func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.cfg.Addr).Bool("model_loaded", s.svc.Healthy()).Msg("API server listening")

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown disconnects feed clients and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.http.Shutdown(ctx)
}
