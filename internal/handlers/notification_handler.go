package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	apierrors "github.com/obelousov/sntledger/internal/errors"
	"github.com/obelousov/sntledger/internal/middleware"
	"github.com/obelousov/sntledger/internal/models"
	"github.com/obelousov/sntledger/internal/services"
)

// NotificationHandler handles template management, recipient resolution and
// bulk dispatch requests.
type NotificationHandler struct {
	notifications services.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler instance.
func NewNotificationHandler(notifications services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// TemplateRequest is the create/update payload for a notification template.
type TemplateRequest struct {
	Name    string `json:"name" binding:"required,max=100"`
	Channel string `json:"channel" binding:"required,oneof=email telegram"`
	Subject string `json:"subject" binding:"max=255"`
	Body    string `json:"body" binding:"required"`
}

// BulkRequest dispatches a template to the year's unpaid recipients.
type BulkRequest struct {
	TemplateID string `json:"template_id" binding:"required,uuid"`
	FiscalYear int    `json:"fiscal_year" binding:"required"`
}

// CreateTemplate handles POST /api/v1/notifications/templates.
func (h *NotificationHandler) CreateTemplate(c *gin.Context) {
	h.saveTemplate(c, uuid.Nil)
}

// UpdateTemplate handles PUT /api/v1/notifications/templates/:id.
func (h *NotificationHandler) UpdateTemplate(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	h.saveTemplate(c, id)
}

func (h *NotificationHandler) saveTemplate(c *gin.Context, id uuid.UUID) {
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	tmpl, err := h.notifications.SaveTemplate(c.Request.Context(), models.NotificationTemplate{
		ID:      id,
		Name:    req.Name,
		Channel: models.NotificationChannel(req.Channel),
		Subject: req.Subject,
		Body:    req.Body,
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to save template", err)
		return
	}

	status := http.StatusOK
	if id == uuid.Nil {
		status = http.StatusCreated
	}
	c.JSON(status, tmpl)
}

// GetTemplate handles GET /api/v1/notifications/templates/:id.
func (h *NotificationHandler) GetTemplate(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	tmpl, err := h.notifications.GetTemplate(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrTemplateNotFound) {
			apierrors.NotFound(c, "Template not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to load template", err)
		return
	}

	c.JSON(http.StatusOK, tmpl)
}

// ListTemplates handles GET /api/v1/notifications/templates.
func (h *NotificationHandler) ListTemplates(c *gin.Context) {
	templates, err := h.notifications.ListTemplates(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list templates", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"templates": templates, "count": len(templates)})
}

// DeleteTemplate handles DELETE /api/v1/notifications/templates/:id.
func (h *NotificationHandler) DeleteTemplate(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.notifications.DeleteTemplate(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrTemplateNotFound) {
			apierrors.NotFound(c, "Template not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to delete template", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Recipients handles GET /api/v1/notifications/recipients?year=.
func (h *NotificationHandler) Recipients(c *gin.Context) {
	year, ok := parseYearQuery(c)
	if !ok {
		return
	}

	recipients, err := h.notifications.UnpaidRecipients(c.Request.Context(), year)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to resolve recipients", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recipients": recipients, "count": len(recipients)})
}

// DispatchBulk handles POST /api/v1/notifications/bulk. The whole batch is
// attempted; per-recipient failures land in the report, not in the status
// code.
func (h *NotificationHandler) DispatchBulk(c *gin.Context) {
	log := middleware.GetLogger(c)

	var req BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	templateID, err := uuid.Parse(req.TemplateID)
	if err != nil {
		apierrors.BadRequest(c, "template_id must be a valid UUID", nil)
		return
	}

	recipients, err := h.notifications.UnpaidRecipients(c.Request.Context(), req.FiscalYear)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to resolve recipients", err)
		return
	}

	if log != nil {
		log.Info("Dispatching bulk notification", map[string]interface{}{
			"template_id": templateID.String(),
			"fiscal_year": req.FiscalYear,
			"recipients":  len(recipients),
		})
	}

	report, err := h.notifications.DispatchBulk(c.Request.Context(), templateID, recipients)
	if err != nil {
		if errors.Is(err, services.ErrTemplateNotFound) {
			apierrors.NotFound(c, "Template not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to dispatch notifications", err)
		return
	}

	c.JSON(http.StatusOK, report)
}
