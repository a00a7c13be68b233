package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/pollen-robotics/reachy-mini-bridge/internal/api/http"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/api/middleware"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/api/ws"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/catalog"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/config"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/daemon"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/kinematics"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/logging"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/monitoring"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/startup"
)

// Server wraps the HTTP server and the bridge components it serves.
type Server struct {
	router       *gin.Engine
	httpServer   *http.Server
	orchestrator *startup.Orchestrator
	manager      *daemon.Manager
	stream       *daemon.StreamClient
	logger       *logging.Logger
	config       *config.Config
	metrics      *monitoring.Metrics

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu           sync.Mutex
	streamCancel context.CancelFunc
}

// New creates a server instance with every component wired but nothing
// running yet. Call Run to start.
func New(cfg *config.Config) (*Server, error) {
	logger := logging.NewFor(cfg.Logging.Level, cfg.Logging.Development)

	logger.Info("Initializing bridge",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.String("transport", cfg.Daemon.Transport),
		zap.String("daemon_url", cfg.Daemon.BaseURL),
	)

	metrics := monitoring.NewMetrics()

	// Daemon-facing components.
	client := daemon.NewClient(cfg.Daemon, logger)
	buffer := daemon.NewStateBuffer()
	stream := daemon.NewStreamClient(cfg.Daemon.StreamURL, buffer, logger, metrics)

	var manager *daemon.Manager
	if cfg.Daemon.LocalDaemon() {
		manager = daemon.NewManager(cfg.Daemon, logger)
		if err := manager.Start(); err != nil {
			return nil, fmt.Errorf("start daemon process: %w", err)
		}
		logger.Info("Daemon process started", zap.String("command", cfg.Daemon.Command))
	} else {
		logger.Info("Daemon runs on the robot, process management disabled")
	}

	// App catalog.
	store := catalog.NewStore()
	sources := catalog.NewSources(cfg.Catalog, client, logger)
	prefetcher := catalog.NewPrefetcher(sources, store, logger, metrics)

	// Startup orchestration.
	solver := kinematics.NewSolver()
	poller := startup.NewHealthPoller(client, logger, metrics)
	detector := startup.NewDetector(cfg.Startup.MovementTolerance, cfg.Startup.MovementMinReads)
	gate := startup.NewGate(buffer, solver, cfg.Startup.SyncMinFrames, logger, metrics)

	baseCtx, baseCancel := context.WithCancel(context.Background())

	s := &Server{
		manager:    manager,
		stream:     stream,
		logger:     logger,
		config:     cfg,
		metrics:    metrics,
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
	}

	// events is assigned before Run starts the orchestrator, so the
	// transition hook cannot fire while it is still nil.
	var events *ws.Handler
	hooks := startup.Hooks{
		OnReady: func() {
			logger.Info("Robot ready")
		},
		OnTransition: func(st startup.Status) {
			events.Broadcast(st)
		},
	}
	if manager != nil {
		hooks.Restart = manager.Restart
	} else {
		hooks.Reload = s.reconnectStream
	}

	orch := startup.New(startup.Options{
		Config:    cfg.Startup,
		Transport: cfg.Daemon.Transport,
		Poller:    poller,
		Detector:  detector,
		Gate:      gate,
		Catalog:   prefetcher,
		Hooks:     hooks,
		Log:       logger,
		Metrics:   metrics,
	})
	s.orchestrator = orch
	events = ws.NewHandler(orch, logger, metrics)

	// Router.
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.ShellCORS())
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(cfg.RateLimit))
	}

	// A typed-nil *daemon.Manager inside the interface would report the
	// daemon as managed, so leave the interface nil on wifi.
	var logSource apihttp.LogSource
	if manager != nil {
		logSource = manager
	}
	handlers := apihttp.NewHandlers(orch, store, buffer, logSource, metrics, cfg.Daemon.Transport)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/startup/status", handlers.StartupStatus)
		api.GET("/startup/events", events.HandleConnection)
		api.POST("/startup/scan", handlers.ScanSignal)
		api.POST("/startup/retry", handlers.RetryStartup)
		api.POST("/startup/fault", handlers.ReportFault)
		api.GET("/apps", handlers.Apps)
		api.GET("/daemon/logs", handlers.DaemonLogs)
		api.GET("/state", handlers.State)
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Bridge initialized")
	return s, nil
}

// Run starts the state stream, the startup sequence, and the HTTP server.
// It blocks until the server stops.
func (s *Server) Run() error {
	s.bounceStream()
	s.orchestrator.Start(s.baseCtx)

	s.logger.Info("Starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// reconnectStream tears the stream connection down and dials fresh. It is
// the retry recovery on transports with no local daemon process to restart.
func (s *Server) reconnectStream(ctx context.Context) error {
	s.logger.Info("Reconnecting state stream")
	s.bounceStream()
	return nil
}

func (s *Server) bounceStream() {
	s.mu.Lock()
	if s.streamCancel != nil {
		s.streamCancel()
	}
	streamCtx, cancel := context.WithCancel(s.baseCtx)
	s.streamCancel = cancel
	s.mu.Unlock()

	go s.stream.Run(streamCtx)
}

// Close gracefully shuts the server down: stop accepting requests, stop the
// startup machinery, then the daemon process.
func (s *Server) Close() error {
	s.logger.Info("Shutting down bridge...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("HTTP server shutdown", zap.Error(err))
	}

	s.orchestrator.Close()
	s.baseCancel()

	if s.manager != nil {
		s.manager.Stop()
		s.logger.Info("Daemon process stopped")
	}

	s.logger.Sync()
	return nil
}
