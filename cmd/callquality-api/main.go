package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"callquality/internal/api"
	"callquality/internal/cfg"
	"callquality/internal/logging"
	"callquality/internal/metrics"
	"callquality/internal/ml"
	"callquality/internal/storage"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	closer, err := logging.Setup(c.LogLevel, c.LogFile, c.LogConsole)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging setup failed: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		m        *metrics.Metrics
		gatherer prometheus.Gatherer
		svcOpts  = []ml.Option{ml.WithCache(c.CacheSize, c.CacheTTL)}
	)
	if c.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.NewWithRegistry(reg)
		gatherer = reg
		svcOpts = append(svcOpts, ml.WithMetrics(metrics.NewWrapper(m)))
	}

	svc := loadService(c, svcOpts)

	var srvOpts []api.Option
	if m != nil {
		srvOpts = append(srvOpts, api.WithMetrics(m, gatherer))
	}
	store := initializeStorage(c)
	if store != nil {
		defer store.Close()
		srvOpts = append(srvOpts, api.WithStore(store))
	}

	gin.SetMode(gin.ReleaseMode)
	srv := api.New(api.Config{
		Addr:           fmt.Sprintf(":%d", c.ListenPort),
		AllowedOrigins: c.AllowedOrigins,
		RequestTimeout: c.RequestTimeout,
		RecentLimit:    c.RecentLimit,
	}, svc, srvOpts...)

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Error().Err(err).Msg("server stopped")
			cancel()
		}
	}()

	waitForShutdown(ctx, cancel, srv, c.ShutdownTimeout)
}

// loadService loads the active bundle. A missing or broken bundle leaves the
// API running in a degraded state so that /health can report it.
func loadService(c cfg.Settings, opts []ml.Option) *ml.Service {
	path := c.ModelPath
	b, err := ml.LoadBundle(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("model bundle not loaded, serving degraded")
		return ml.NewUnavailableService(err, opts...)
	}

	svc, err := ml.NewService(b, opts...)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("model bundle rejected, serving degraded")
		return ml.NewUnavailableService(err, opts...)
	}

	log.Info().
		Str("model", b.ModelName).
		Str("version", b.Version).
		Int("features", len(b.FeatureColumns)).
		Strs("top_states", b.TopStates).
		Float64("r2", b.Metrics.R2).
		Msg("model bundle loaded")
	return svc
}

// initializeStorage opens the prediction log if DATA_PATH is configured
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without prediction log")
		return nil
	}
	return store
}

func waitForShutdown(ctx context.Context, cancel context.CancelFunc, srv *api.Server, timeout time.Duration) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), timeout)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
		return
	}
	log.Info().Msg("server stopped")
}
