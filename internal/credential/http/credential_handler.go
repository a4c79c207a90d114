// Package http provides HTTP handlers for credential lifecycle operations.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	credentialDomain "github.com/agentsec/secrets/internal/credential/domain"
	"github.com/agentsec/secrets/internal/credential/http/dto"
	credentialUseCase "github.com/agentsec/secrets/internal/credential/usecase"
	"github.com/agentsec/secrets/internal/httputil"
)

// CredentialHandler handles HTTP requests for credential lifecycle operations.
type CredentialHandler struct {
	registry credentialUseCase.CredentialRegistry
	scanner  *credentialUseCase.LeakScanner
	logger   *slog.Logger
}

// NewCredentialHandler creates a new credential handler with required dependencies.
func NewCredentialHandler(
	registry credentialUseCase.CredentialRegistry,
	scanner *credentialUseCase.LeakScanner,
	logger *slog.Logger,
) *CredentialHandler {
	return &CredentialHandler{
		registry: registry,
		scanner:  scanner,
		logger:   logger,
	}
}

// RegisterHandler registers a new credential.
// POST /v1/credentials
// Only the value's hash is retained. Returns 201 Created with the new id.
func (h *CredentialHandler) RegisterHandler(c *gin.Context) {
	var req dto.RegisterCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	opts := credentialUseCase.RegisterOptions{
		ExpiresIn:        time.Duration(req.ExpiresInSeconds) * time.Second,
		RotationInterval: time.Duration(req.RotationIntervalSeconds) * time.Second,
		Metadata:         req.Metadata,
	}

	id, err := h.registry.Register(c.Request.Context(), req.Name, []byte(req.Value), opts)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.RegisterCredentialResponse{
		ID:     id,
		Name:   req.Name,
		Status: string(credentialDomain.StatusActive),
	})
}

// ListHandler lists all credential records without value hashes.
// GET /v1/credentials
func (h *CredentialHandler) ListHandler(c *gin.Context) {
	records := h.registry.List(c.Request.Context())
	c.JSON(http.StatusOK, dto.MapRecordsToListResponse(records))
}

// StatusHandler reports a credential's lifecycle status.
// GET /v1/credentials/:id/status
// A lapsed TTL observed here transitions the record to expired first.
func (h *CredentialHandler) StatusHandler(c *gin.Context) {
	id := c.Param("id")

	status, err := h.registry.GetStatus(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.CredentialStatusResponse{
		ID:     id,
		Status: string(status),
	})
}

// VerifyHandler checks a candidate value against the stored hash.
// POST /v1/credentials/:id/verify
// Always returns 200 OK; the body carries the outcome. Unknown ids verify
// as false rather than 404 so probing cannot enumerate credential ids.
func (h *CredentialHandler) VerifyHandler(c *gin.Context) {
	var req dto.VerifyCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	valid := h.registry.Verify(c.Request.Context(), c.Param("id"), []byte(req.Value))
	c.JSON(http.StatusOK, dto.VerifyCredentialResponse{Valid: valid})
}

// RotateHandler replaces a credential's value.
// POST /v1/credentials/:id/rotate
// Reactivates expired or revoked records. Compromised records are refused
// with 403; reinstate first.
func (h *CredentialHandler) RotateHandler(c *gin.Context) {
	var req dto.RotateCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := h.registry.Rotate(c.Request.Context(), c.Param("id"), []byte(req.Value)); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// RevokeHandler revokes a credential. Idempotent.
// POST /v1/credentials/:id/revoke
func (h *CredentialHandler) RevokeHandler(c *gin.Context) {
	var req dto.RevokeCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := h.registry.Revoke(c.Request.Context(), c.Param("id"), req.Reason); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// ReportLeakHandler reports a credential as leaked.
// POST /v1/credentials/:id/leaks
// Marks the credential compromised and returns 201 Created with the leak record.
func (h *CredentialHandler) ReportLeakHandler(c *gin.Context) {
	var req dto.ReportLeakRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	leak, err := h.registry.ReportLeak(
		c.Request.Context(),
		c.Param("id"),
		credentialDomain.LeakSource(req.Source),
		req.Evidence,
		credentialDomain.Severity(req.Severity),
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapLeakToResponse(*leak))
}

// ReinstateHandler moves a compromised credential back to revoked so a
// subsequent rotation can reactivate it.
// POST /v1/credentials/:id/reinstate
func (h *CredentialHandler) ReinstateHandler(c *gin.Context) {
	if err := h.registry.Reinstate(c.Request.Context(), c.Param("id")); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// LeaksHandler lists all reported leaks.
// GET /v1/leaks
func (h *CredentialHandler) LeaksHandler(c *gin.Context) {
	leaks := h.registry.Leaks(c.Request.Context())
	c.JSON(http.StatusOK, dto.MapLeaksToListResponse(leaks))
}

// RotationNeededHandler lists credentials whose rotation interval has lapsed.
// GET /v1/credentials/rotation-needed
func (h *CredentialHandler) RotationNeededHandler(c *gin.Context) {
	ids := h.registry.CheckRotationNeeded(c.Request.Context())
	c.JSON(http.StatusOK, dto.RotationNeededResponse{CredentialIDs: ids})
}

// CleanupExpiredHandler removes expired credential records.
// POST /v1/credentials/cleanup-expired
func (h *CredentialHandler) CleanupExpiredHandler(c *gin.Context) {
	removed := h.registry.CleanupExpired(c.Request.Context())
	c.JSON(http.StatusOK, dto.CleanupResponse{Removed: removed})
}

// ScanHandler runs a leak scan over the configured backends.
// POST /v1/leak-scans
// Backend failures are reported in the response, not as an error status;
// a failing backend does not abort the others.
func (h *CredentialHandler) ScanHandler(c *gin.Context) {
	var req dto.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	report, err := h.scanner.Scan(c.Request.Context(), credentialUseCase.ScanOptions{
		LogFiles:    req.LogFiles,
		Environment: req.Environment,
		GitRepoPath: req.GitRepoPath,
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapScanReportToResponse(report))
}
