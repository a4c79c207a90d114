// Package http provides HTTP handlers for temporary credential injection.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agentsec/secrets/internal/httputil"
	injectDomain "github.com/agentsec/secrets/internal/inject/domain"
	"github.com/agentsec/secrets/internal/inject/http/dto"
	injectUseCase "github.com/agentsec/secrets/internal/inject/usecase"
)

// InjectorHandler handles HTTP requests for temporary credential operations.
type InjectorHandler struct {
	injector *injectUseCase.Injector
	logger   *slog.Logger
}

// NewInjectorHandler creates a new injector handler with required dependencies.
func NewInjectorHandler(injector *injectUseCase.Injector, logger *slog.Logger) *InjectorHandler {
	return &InjectorHandler{
		injector: injector,
		logger:   logger,
	}
}

// CreateHandler mints a temporary credential.
// POST /v1/temporary-credentials
// Returns 201 Created with the credential descriptor and the environment key
// an injection would use by default. The plaintext value is never echoed back.
func (h *InjectorHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	cred, err := h.injector.CreateCredential(c.Request.Context(), req.Name, []byte(req.Value),
		injectUseCase.CredentialOptions{
			TTL:      time.Duration(req.TTLSeconds) * time.Second,
			MaxUses:  req.MaxUses,
			Scope:    injectDomain.Scope(req.Scope),
			Metadata: req.Metadata,
		})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapCredentialToResponse(cred, h.injector.EnvKeyFor(cred.Name)))
}

// InjectHandler injects a temporary credential into its scope.
// POST /v1/temporary-credentials/:id/inject
// Expired, depleted and unknown credentials fail without mutating the
// environment. Request-scoped injections return the value in the body
// instead of setting an environment variable.
func (h *InjectorHandler) InjectHandler(c *gin.Context) {
	var req dto.InjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	id := c.Param("id")
	scope := injectDomain.ScopeProcess
	if cred, ok := h.injector.Credential(id); ok {
		scope = cred.Scope
	}

	result := h.injector.Inject(c.Request.Context(), id, injectUseCase.InjectOptions{
		EnvKey: req.EnvKey,
		Owner:  req.Owner,
	})
	if result.Err != nil {
		httputil.HandleErrorGin(c, result.Err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapResultToResponse(result, scope))
}

// RevokeHandler destroys a temporary credential and removes its bindings.
// DELETE /v1/temporary-credentials/:id
func (h *InjectorHandler) RevokeHandler(c *gin.Context) {
	if !h.injector.Revoke(c.Request.Context(), c.Param("id")) {
		httputil.HandleErrorGin(c, injectDomain.ErrCredentialNotFound, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// CleanupHandler removes a single injected environment variable.
// POST /v1/injections/cleanup
func (h *InjectorHandler) CleanupHandler(c *gin.Context) {
	var req dto.CleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	cleaned := h.injector.Cleanup(c.Request.Context(), req.EnvKey)
	c.JSON(http.StatusOK, dto.CleanupResponse{Cleaned: cleaned})
}

// CleanupWorkerHandler removes every binding owned by a worker.
// POST /v1/injections/cleanup-worker
func (h *InjectorHandler) CleanupWorkerHandler(c *gin.Context) {
	var req dto.CleanupWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	cleaned := h.injector.CleanupWorker(c.Request.Context(), req.Owner)
	c.JSON(http.StatusOK, dto.CleanupCountResponse{Cleaned: cleaned})
}

// CleanupAllHandler removes every injected binding.
// POST /v1/injections/cleanup-all
func (h *InjectorHandler) CleanupAllHandler(c *gin.Context) {
	cleaned := h.injector.CleanupAll(c.Request.Context())
	c.JSON(http.StatusOK, dto.CleanupCountResponse{Cleaned: cleaned})
}

// CleanupExpiredHandler removes bindings whose credentials are expired or depleted.
// POST /v1/injections/cleanup-expired
func (h *InjectorHandler) CleanupExpiredHandler(c *gin.Context) {
	cleaned := h.injector.CleanupExpired(c.Request.Context())
	c.JSON(http.StatusOK, dto.CleanupCountResponse{Cleaned: cleaned})
}
