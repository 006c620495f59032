// Package api exposes the engine over HTTP: a single POST /query route
// that accepts a batch of SQL statements and returns the last statement's
// result alongside how long the batch took to run.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/sqlitoy/sqlitoy/internal/engine"
	"github.com/sqlitoy/sqlitoy/internal/logging"
	"github.com/sqlitoy/sqlitoy/internal/ratelimit"
	"github.com/sqlitoy/sqlitoy/pkg/config"
)

// Server is the REST API server wrapping one Engine.
type Server struct {
	router     *gin.Engine
	eng        *engine.Engine
	config     *config.Config
	httpServer *http.Server
	log        *logging.Logger
}

// NewServer builds a Server for eng, wiring CORS, rate limiting, and body
// size limits per cfg.
func NewServer(eng *engine.Engine, cfg *config.Config) *Server {
	log := logging.GetLogger("api")
	log.Info("initializing REST API server")

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())

	if cfg.RestAPI.CORS {
		log.Debug("enabling CORS")
		corsConfig := cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    []string{"POST", "OPTIONS"},
			AllowHeaders:    []string{"Origin", "Content-Type", "Accept", requestIDHeader},
			ExposeHeaders:   []string{"Content-Length", "Retry-After", requestIDHeader},
			MaxAge:          12 * time.Hour,
		}
		router.Use(cors.New(corsConfig))
	}

	if cfg.RateLimit.Enabled {
		log.Info("rate limiting enabled")
		limiter := ratelimit.NewLimiter(&cfg.RateLimit)
		router.Use(RateLimitMiddleware(limiter))
	}

	router.Use(MaxBodySizeMiddleware(DefaultBodyLimit))

	server := &Server{
		router: router,
		eng:    eng,
		config: cfg,
		log:    log,
	}
	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.POST("/query", s.handleQuery)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr, err := s.listenAddr()
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	s.log.Info("starting REST API server", "address", addr)
	return s.httpServer.ListenAndServe()
}

// StartWithContext starts the HTTP server and blocks until ctx is
// cancelled or the server fails, performing a graceful shutdown bounded
// by shutdownTimeout on cancellation.
func (s *Server) StartWithContext(ctx context.Context, shutdownTimeout time.Duration) error {
	addr, err := s.listenAddr()
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("starting REST API server", "address", addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("stopping REST API server")
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Error("server shutdown error", "error", err)
		return err
	}
	s.log.Info("REST API server stopped")
	return nil
}

// Router returns the underlying Gin router, for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) listenAddr() (string, error) {
	port := s.config.RestAPI.Port
	if s.config.RestAPI.AutoPort {
		available, err := findAvailablePort(port)
		if err != nil {
			s.log.Error("failed to find available port", "error", err, "start_port", port)
			return "", fmt.Errorf("failed to find available port: %w", err)
		}
		port = available
	}
	return fmt.Sprintf("%s:%d", s.config.RestAPI.Host, port), nil
}

// findAvailablePort finds an available port starting from the given port.
func findAvailablePort(startPort int) (int, error) {
	for port := startPort; port < startPort+100; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			ln.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port found in range %d-%d", startPort, startPort+100)
}
