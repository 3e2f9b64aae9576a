package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apierrors "github.com/obelousov/sntledger/internal/errors"
	"github.com/obelousov/sntledger/internal/models"
	"github.com/obelousov/sntledger/internal/services"
)

// AuditHandler serves the audit trail screens.
type AuditHandler struct {
	audit services.AuditService
}

// NewAuditHandler creates a new AuditHandler instance.
func NewAuditHandler(audit services.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

const defaultAuditLimit = 50

// Filter handles GET /api/v1/audit with optional actor_id, action,
// entity_type, since, until and limit query parameters.
func (h *AuditHandler) Filter(c *gin.Context) {
	filter := models.AuditFilter{
		ActorID:    c.Query("actor_id"),
		Action:     models.AuditAction(c.Query("action")),
		EntityType: c.Query("entity_type"),
		Limit:      defaultAuditLimit,
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			apierrors.BadRequest(c, "limit must be a positive integer", nil)
			return
		}
		filter.Limit = limit
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			apierrors.BadRequest(c, "since must be an RFC3339 timestamp", nil)
			return
		}
		filter.Since = since
	}
	if raw := c.Query("until"); raw != "" {
		until, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			apierrors.BadRequest(c, "until must be an RFC3339 timestamp", nil)
			return
		}
		filter.Until = until
	}

	entries, err := h.audit.Filter(c.Request.Context(), filter)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to filter audit entries", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

// Recent handles GET /api/v1/audit/recent?limit=.
func (h *AuditHandler) Recent(c *gin.Context) {
	limit := defaultAuditLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			apierrors.BadRequest(c, "limit must be a positive integer", nil)
			return
		}
		limit = parsed
	}

	entries, err := h.audit.RecentEntries(c.Request.Context(), limit)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to load recent audit entries", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

// Statistics handles GET /api/v1/audit/statistics. Pass ?verify=true to
// reconcile the counter cache against a full scan.
func (h *AuditHandler) Statistics(c *gin.Context) {
	if c.Query("verify") == "true" {
		stats, consistent, err := h.audit.VerifyStatistics(c.Request.Context())
		if err != nil {
			apierrors.InternalServerError(c, "Failed to verify audit statistics", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"statistics": stats, "consistent": consistent})
		return
	}

	stats, err := h.audit.Statistics(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to load audit statistics", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"statistics": stats})
}
