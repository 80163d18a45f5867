package server

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/glancelabs/glance/backend/internal/aggregator"
	apihttp "github.com/glancelabs/glance/backend/internal/api/http"
	"github.com/glancelabs/glance/backend/internal/api/middleware"
	"github.com/glancelabs/glance/backend/internal/capture"
	"github.com/glancelabs/glance/backend/internal/classifier"
	"github.com/glancelabs/glance/backend/internal/config"
	"github.com/glancelabs/glance/backend/internal/jobs"
	"github.com/glancelabs/glance/backend/internal/logging"
	"github.com/glancelabs/glance/backend/internal/monitoring"
	"github.com/glancelabs/glance/backend/internal/pipeline"
	"github.com/glancelabs/glance/backend/internal/recognition"
	"github.com/glancelabs/glance/backend/internal/storage"
	"github.com/glancelabs/glance/backend/internal/summarize"
	"github.com/glancelabs/glance/backend/internal/types"
)

// Server wraps the HTTP server and the tracking pipeline.
type Server struct {
	router    *gin.Engine
	scheduler *capture.Scheduler
	engine    *recognition.Engine
	runner    *jobs.Runner
	sink      *storage.BufferedSink
	store     storage.Store
	logger    *logging.Logger
	config    *config.Config
	metrics   *monitoring.Metrics
}

// NewServer creates a fully wired server from configuration.
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("initializing tracker",
		zap.String("port", cfg.Server.Port),
		zap.Duration("capture_interval", cfg.Capture.Interval),
		zap.String("storage_path", cfg.Storage.Path),
	)

	metrics := monitoring.NewMetrics()

	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	sink := storage.NewBufferedSink(store, logger, metrics)

	backend, err := recognition.NewTesseractBackend(cfg.Recognition.LanguageHints, cfg.Recognition.Quality)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create recognition backend: %w", err)
	}
	engine := recognition.New(backend, cfg.Recognition, logger, metrics)

	cls := classifier.New(cfg.Session.IdleThreshold, logger, metrics)
	agg := seedAggregator(store, cfg.Summary.TopApps, logger)
	pipe := pipeline.New(engine, cls, agg, sink, logger)

	source, err := capture.NewDisplaySource(cfg.Capture.Display, nil)
	if err != nil {
		engine.Close()
		store.Close()
		return nil, fmt.Errorf("failed to open capture source: %w", err)
	}
	scheduler := capture.NewScheduler(source, pipe, cfg.Capture.Interval, cfg.Capture.Exclusions, logger, metrics)

	summarizer := summarize.NewClient(cfg.Summarizer, logger)
	runner, err := jobs.NewRunner(store, summarizer, pipe, cfg.Summary.TopApps, logger)
	if err != nil {
		engine.Close()
		store.Close()
		return nil, fmt.Errorf("failed to create job runner: %w", err)
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(pipe, scheduler, store, sink, logger)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	router.GET("/summary", handlers.TodaySummary)
	router.GET("/summary/:date", handlers.SummaryForDate)
	router.GET("/sessions", handlers.Sessions)

	router.POST("/capture/start", handlers.StartCapture)
	router.POST("/capture/stop", handlers.StopCapture)
	router.POST("/capture/toggle", handlers.ToggleCapture)
	router.GET("/capture/status", handlers.CaptureStatus)

	router.PUT("/config/exclusions", handlers.SetExclusions)

	metricsHandler := metrics.Handler()
	router.GET("/metrics", func(c *gin.Context) {
		metrics.UpdateUptime()
		metricsHandler.ServeHTTP(c.Writer, c.Request)
	})

	logger.Info("tracker initialized")

	return &Server{
		router:    router,
		scheduler: scheduler,
		engine:    engine,
		runner:    runner,
		sink:      sink,
		store:     store,
		logger:    logger,
		config:    cfg,
		metrics:   metrics,
	}, nil
}

// Run starts capture, the job schedule, and the HTTP server. Blocks
// until the HTTP server exits.
func (s *Server) Run() error {
	if err := s.runner.Start(); err != nil {
		return fmt.Errorf("failed to start jobs: %w", err)
	}
	s.scheduler.Start()

	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close stops capture, flushing the open session, then releases
// everything else.
func (s *Server) Close() error {
	s.logger.Info("shutting down")

	s.scheduler.Stop()

	if err := s.runner.Shutdown(); err != nil {
		s.logger.Warn("job shutdown failed", zap.Error(err))
	}
	if pending := s.sink.Flush(); pending > 0 {
		s.logger.Warn("unpersisted writes at shutdown", zap.Int("pending", pending))
	}
	if err := s.engine.Close(); err != nil {
		s.logger.Warn("recognition shutdown failed", zap.Error(err))
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}

	s.logger.Info("shutdown complete")
	return nil
}

// seedAggregator rebuilds today's aggregate from storage so a restart
// mid-day does not zero the summary.
func seedAggregator(store storage.Store, topN int, logger *logging.Logger) *aggregator.Aggregator {
	now := time.Now()
	agg := aggregator.New(topN, now)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sessions, err := store.SessionsForDate(ctx, types.DateKey(now))
	if err != nil {
		logger.Warn("failed to reload today's sessions", zap.Error(err))
		return agg
	}
	for _, session := range sessions {
		agg.Apply(session)
	}
	if len(sessions) > 0 {
		logger.Info("reloaded today's sessions", zap.Int("count", len(sessions)))
	}
	return agg
}
