// Package server assembles the service: browser engine, session stores,
// clone orchestrator, and the HTTP/WebSocket surface.
package server

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/TabForge/internal/api/http"
	"github.com/GriffinCanCode/TabForge/internal/api/middleware"
	"github.com/GriffinCanCode/TabForge/internal/api/ws"
	"github.com/GriffinCanCode/TabForge/internal/browser"
	"github.com/GriffinCanCode/TabForge/internal/domain/clone"
	"github.com/GriffinCanCode/TabForge/internal/domain/session"
	"github.com/GriffinCanCode/TabForge/internal/infrastructure/config"
	"github.com/GriffinCanCode/TabForge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TabForge/internal/infrastructure/monitoring"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Server wraps the HTTP server and its dependencies.
type Server struct {
	router   *gin.Engine
	engine   *browser.Engine
	sessions *session.Manager
	pending  *session.PendingStore
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// NewServer builds a fully wired server. The browser engine is started
// eagerly so a missing or broken browser binary fails fast.
func NewServer(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	logger.Info("Initializing TabForge server",
		zap.String("port", cfg.Server.Port),
		zap.String("version", Version),
	)

	metrics := monitoring.NewMetrics()

	engine := browser.New(cfg.Browser, logger)
	if err := engine.Start(context.Background()); err != nil {
		return nil, fmt.Errorf("start browser engine: %w", err)
	}
	logger.Info("Browser engine ready")

	sessions := session.NewManager(metrics)
	pending := session.NewPendingStore(cfg.Pending.TTL, logger, metrics)
	orchestrator := clone.NewOrchestrator(logger, metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(engine, sessions, pending, Version)
	wsHandler := ws.NewHandler(engine, sessions, pending, orchestrator, cfg, logger, metrics)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/sessions", handlers.ListSessions)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/stream", wsHandler.HandleConnection)

	logger.Info("Server initialized")

	return &Server{
		router:   router,
		engine:   engine,
		sessions: sessions,
		pending:  pending,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// Run starts the HTTP server and blocks.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close tears everything down: parked sessions first, then live ones, then
// the browser engine.
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	s.pending.Drain()
	s.sessions.CloseAll()

	if err := s.engine.Close(); err != nil {
		s.logger.Error("Failed to close browser engine", zap.Error(err))
	}

	_ = s.logger.Sync()
	return nil
}
