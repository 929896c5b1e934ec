package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/config"
	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/logging"
	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/models"
	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/watcher"
)

var errNotConfigured = errors.New("not configured")

const (
	pingTimeout     = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Syncer runs reconciliation passes on demand.
type Syncer interface {
	Run(ctx context.Context) (*models.RunSummary, error)
	LastSummary() *models.RunSummary
}

// StateReporter exposes the coalescer state machine.
type StateReporter interface {
	State() (watcher.RunState, watcher.FeedState)
}

// Pinger checks a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server exposes.
type Deps struct {
	Syncer   Syncer
	State    StateReporter
	Mongo    Pinger
	Postgres Pinger
	Metrics  http.Handler
	Logger   *zap.Logger
}

// Server bundles router and dependencies for the processor API.
type Server struct {
	cfg    config.Config
	deps   Deps
	logger *zap.Logger
	engine *gin.Engine
}

// New constructs a server with routes and middleware.
func New(cfg config.Config, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	logger := logging.OrNop(deps.Logger).Named("http")

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))
	engine.Use(corsMiddleware())

	server := &Server{cfg: cfg, deps: deps, logger: logger, engine: engine}
	server.registerRoutes()
	return server
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("http server listening", zap.String("addr", srv.Addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/health/mongo", s.handlePing("mongo", s.deps.Mongo))
	s.engine.GET("/health/postgres", s.handlePing("postgres", s.deps.Postgres))

	if s.deps.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.deps.Metrics))
	}

	v1 := s.engine.Group("/api/v1")
	if s.cfg.BearerToken != "" {
		v1.Use(bearerAuthMiddleware(s.cfg.BearerToken))
	}
	v1.POST("/sync", s.handleSync)
	v1.GET("/sync/status", s.handleSyncStatus)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func bearerAuthMiddleware(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if token != expected {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
