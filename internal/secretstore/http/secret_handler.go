// Package http provides HTTP handlers for secret backend operations.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentsec/secrets/internal/httputil"
	"github.com/agentsec/secrets/internal/secretstore"
	"github.com/agentsec/secrets/internal/secretstore/http/dto"
)

// SecretHandler handles HTTP requests against the configured secret backend.
type SecretHandler struct {
	backend secretstore.Backend
	logger  *slog.Logger
}

// NewSecretHandler creates a new secret handler with required dependencies.
func NewSecretHandler(backend secretstore.Backend, logger *slog.Logger) *SecretHandler {
	return &SecretHandler{
		backend: backend,
		logger:  logger,
	}
}

// ListHandler lists the names of all stored secrets.
// GET /v1/secrets
func (h *SecretHandler) ListHandler(c *gin.Context) {
	names, err := h.backend.ListSecrets(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.ListSecretsResponse{Names: names})
}

// GetHandler retrieves a secret by name.
// GET /v1/secrets/:name
func (h *SecretHandler) GetHandler(c *gin.Context) {
	entry, err := h.backend.GetSecret(c.Request.Context(), c.Param("name"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEntryToResponse(entry))
}

// SetHandler creates or updates a secret.
// PUT /v1/secrets/:name
// Updates bump the version and keep the creation time.
func (h *SecretHandler) SetHandler(c *gin.Context) {
	var req dto.SetSecretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	entry, err := h.backend.SetSecret(c.Request.Context(), c.Param("name"), req.Value, req.Metadata)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEntryToResponse(entry))
}

// DeleteHandler removes a secret.
// DELETE /v1/secrets/:name
// Returns 404 if the secret does not exist.
func (h *SecretHandler) DeleteHandler(c *gin.Context) {
	deleted, err := h.backend.DeleteSecret(c.Request.Context(), c.Param("name"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	if !deleted {
		httputil.HandleErrorGin(c, secretstore.ErrSecretNotFound, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}
