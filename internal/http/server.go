// Package http provides the HTTP server, routing and shared middleware.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agentsec/secrets/internal/audit"
	auditHTTP "github.com/agentsec/secrets/internal/audit/http"
	credentialHTTP "github.com/agentsec/secrets/internal/credential/http"
	credentialUseCase "github.com/agentsec/secrets/internal/credential/usecase"
	injectHTTP "github.com/agentsec/secrets/internal/inject/http"
	injectUseCase "github.com/agentsec/secrets/internal/inject/usecase"
	"github.com/agentsec/secrets/internal/secretstore"
	secretstoreHTTP "github.com/agentsec/secrets/internal/secretstore/http"
)

// ServerConfig holds the API server settings.
type ServerConfig struct {
	Host string
	Port int

	RateLimitEnabled        bool
	RateLimitRequestsPerSec float64
	RateLimitBurst          int

	CORSEnabled      bool
	CORSAllowOrigins string
}

// Dependencies holds the use cases the API server exposes.
type Dependencies struct {
	Credentials credentialUseCase.CredentialRegistry
	Scanner     *credentialUseCase.LeakScanner
	Injector    *injectUseCase.Injector
	AuditLog    *audit.Logger
	Secrets     secretstore.Backend
}

// Server represents the API HTTP server.
type Server struct {
	server *http.Server
	logger *slog.Logger
	deps   Dependencies
}

// NewServer creates a new API server with all routes registered.
func NewServer(cfg ServerConfig, logger *slog.Logger, deps Dependencies) *Server {
	s := &Server{
		logger: logger,
		deps:   deps,
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.setupRouter(cfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRouter builds the gin engine with middleware and routes.
func (s *Server) setupRouter(cfg ServerConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if cfg.RateLimitEnabled {
		router.Use(RateLimitMiddleware(cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, s.logger))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	credentialHandler := credentialHTTP.NewCredentialHandler(s.deps.Credentials, s.deps.Scanner, s.logger)
	injectorHandler := injectHTTP.NewInjectorHandler(s.deps.Injector, s.logger)
	auditHandler := auditHTTP.NewAuditEventHandler(s.deps.AuditLog, s.logger)
	secretHandler := secretstoreHTTP.NewSecretHandler(s.deps.Secrets, s.logger)

	v1 := router.Group("/v1")
	{
		credentials := v1.Group("/credentials")
		{
			credentials.POST("", credentialHandler.RegisterHandler)
			credentials.GET("", credentialHandler.ListHandler)
			credentials.GET("/rotation-needed", credentialHandler.RotationNeededHandler)
			credentials.POST("/cleanup-expired", credentialHandler.CleanupExpiredHandler)
			credentials.GET("/:id/status", credentialHandler.StatusHandler)
			credentials.POST("/:id/verify", credentialHandler.VerifyHandler)
			credentials.POST("/:id/rotate", credentialHandler.RotateHandler)
			credentials.POST("/:id/revoke", credentialHandler.RevokeHandler)
			credentials.POST("/:id/leaks", credentialHandler.ReportLeakHandler)
			credentials.POST("/:id/reinstate", credentialHandler.ReinstateHandler)
		}

		v1.GET("/leaks", credentialHandler.LeaksHandler)
		v1.POST("/leak-scans", credentialHandler.ScanHandler)

		temporary := v1.Group("/temporary-credentials")
		{
			temporary.POST("", injectorHandler.CreateHandler)
			temporary.POST("/:id/inject", injectorHandler.InjectHandler)
			temporary.DELETE("/:id", injectorHandler.RevokeHandler)
		}

		injections := v1.Group("/injections")
		{
			injections.POST("/cleanup", injectorHandler.CleanupHandler)
			injections.POST("/cleanup-worker", injectorHandler.CleanupWorkerHandler)
			injections.POST("/cleanup-all", injectorHandler.CleanupAllHandler)
			injections.POST("/cleanup-expired", injectorHandler.CleanupExpiredHandler)
		}

		auditEvents := v1.Group("/audit-events")
		{
			auditEvents.GET("", auditHandler.ListHandler)
			auditEvents.POST("/flush", auditHandler.FlushHandler)
		}

		secrets := v1.Group("/secrets")
		{
			secrets.GET("", secretHandler.ListHandler)
			secrets.GET("/:name", secretHandler.GetHandler)
			secrets.PUT("/:name", secretHandler.SetHandler)
			secrets.DELETE("/:name", secretHandler.DeleteHandler)
		}
	}

	return router
}

// healthHandler reports process liveness.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// readinessHandler reports whether backing services are reachable.
func (s *Server) readinessHandler(c *gin.Context) {
	components := gin.H{}
	ready := true

	if s.deps.Secrets != nil {
		if err := s.deps.Secrets.HealthCheck(c.Request.Context()); err != nil {
			components["secret_backend"] = "error"
			ready = false
		} else {
			components["secret_backend"] = "ok"
		}
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": components,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": components,
	})
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.server.Handler
}

// Start starts the API HTTP server.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the API HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}
