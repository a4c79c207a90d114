// Package http provides HTTP handlers for audit log operations.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agentsec/secrets/internal/audit"
	auditDomain "github.com/agentsec/secrets/internal/audit/domain"
	"github.com/agentsec/secrets/internal/audit/http/dto"
	"github.com/agentsec/secrets/internal/httputil"
)

// AuditEventHandler handles HTTP requests for audit log queries.
type AuditEventHandler struct {
	auditLogger *audit.Logger
	logger      *slog.Logger
}

// NewAuditEventHandler creates a new audit event handler with required dependencies.
func NewAuditEventHandler(auditLogger *audit.Logger, logger *slog.Logger) *AuditEventHandler {
	return &AuditEventHandler{
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// ListHandler queries the audit log with optional filtering.
// GET /v1/audit-events?event_type=credential_created&resource=id&from=2026-02-01T00:00:00Z&to=2026-02-14T23:59:59Z&limit=50
// Returns 200 OK with events whose signatures verified, in append order.
// Accepts optional from and to query parameters in RFC3339 format; both
// boundaries are inclusive. Events failing signature verification are
// skipped and counted in the invalid_signature field.
func (h *AuditEventHandler) ListHandler(c *gin.Context) {
	filter := audit.Filter{
		EventType: auditDomain.EventType(c.Query("event_type")),
		Resource:  c.Query("resource"),
	}

	if fromStr := c.Query("from"); fromStr != "" {
		parsed, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			httputil.HandleValidationErrorGin(c,
				fmt.Errorf("invalid from format: must be RFC3339 (e.g., 2026-02-01T00:00:00Z)"),
				h.logger)
			return
		}
		filter.StartTime = parsed.UTC()
	}

	if toStr := c.Query("to"); toStr != "" {
		parsed, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			httputil.HandleValidationErrorGin(c,
				fmt.Errorf("invalid to format: must be RFC3339 (e.g., 2026-02-14T23:59:59Z)"),
				h.logger)
			return
		}
		filter.EndTime = parsed.UTC()
	}

	if !filter.StartTime.IsZero() && !filter.EndTime.IsZero() && filter.StartTime.After(filter.EndTime) {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("from must be before or equal to to"),
			h.logger)
		return
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			httputil.HandleValidationErrorGin(c,
				fmt.Errorf("invalid limit: must be a positive integer"),
				h.logger)
			return
		}
		filter.Limit = limit
	}

	events, report, err := h.auditLogger.Query(c.Request.Context(), filter)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEventsToQueryResponse(events, report.Scanned, report.InvalidSignature))
}

// FlushHandler forces buffered audit events to the store.
// POST /v1/audit-events/flush
func (h *AuditEventHandler) FlushHandler(c *gin.Context) {
	if err := h.auditLogger.Flush(c.Request.Context()); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}
