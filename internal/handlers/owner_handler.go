package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/obelousov/sntledger/internal/errors"
	"github.com/obelousov/sntledger/internal/services"
)

// OwnerHandler handles owner registry HTTP requests.
type OwnerHandler struct {
	identity services.IdentityService
}

// NewOwnerHandler creates a new OwnerHandler instance.
func NewOwnerHandler(identity services.IdentityService) *OwnerHandler {
	return &OwnerHandler{identity: identity}
}

// OwnerRequest is the create/update payload for an owner. Phone doubles as
// the Telegram chat identifier.
type OwnerRequest struct {
	FullName string `json:"full_name" binding:"required,max=255"`
	Phone    string `json:"phone" binding:"max=20"`
	Email    string `json:"email" binding:"omitempty,email"`
}

// Create handles POST /api/v1/owners.
func (h *OwnerHandler) Create(c *gin.Context) {
	var req OwnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	owner, err := h.identity.RegisterOwner(c.Request.Context(), req.FullName, req.Phone, req.Email)
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to register owner", err)
		return
	}

	c.JSON(http.StatusCreated, owner)
}

// List handles GET /api/v1/owners.
func (h *OwnerHandler) List(c *gin.Context) {
	owners, err := h.identity.ListOwners(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list owners", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"owners": owners, "count": len(owners)})
}

// Get handles GET /api/v1/owners/:id.
func (h *OwnerHandler) Get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	owner, err := h.identity.GetOwner(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrOwnerNotFound) {
			apierrors.NotFound(c, "Owner not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to load owner", err)
		return
	}

	c.JSON(http.StatusOK, owner)
}

// Update handles PUT /api/v1/owners/:id.
func (h *OwnerHandler) Update(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req OwnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	owner, err := h.identity.UpdateOwner(c.Request.Context(), id, req.FullName, req.Phone, req.Email)
	if err != nil {
		if errors.Is(err, services.ErrOwnerNotFound) {
			apierrors.NotFound(c, "Owner not found")
			return
		}
		if errors.Is(err, services.ErrInvalidInput) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to update owner", err)
		return
	}

	c.JSON(http.StatusOK, owner)
}

// Delete handles DELETE /api/v1/owners/:id. Owners are soft-deleted so
// historical ownership intervals keep resolving.
func (h *OwnerHandler) Delete(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.identity.DeleteOwner(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrOwnerNotFound) {
			apierrors.NotFound(c, "Owner not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to delete owner", err)
		return
	}

	c.Status(http.StatusNoContent)
}
