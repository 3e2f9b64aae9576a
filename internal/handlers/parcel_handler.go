package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	apierrors "github.com/obelousov/sntledger/internal/errors"
	"github.com/obelousov/sntledger/internal/middleware"
	"github.com/obelousov/sntledger/internal/models"
	"github.com/obelousov/sntledger/internal/services"
)

// dateLayout is the wire format for all date-only fields.
const dateLayout = "2006-01-02"

// ParcelHandler handles parcel registry and ownership timeline requests.
type ParcelHandler struct {
	identity services.IdentityService
	timeline services.TimelineService
}

// NewParcelHandler creates a new ParcelHandler instance.
func NewParcelHandler(identity services.IdentityService, timeline services.TimelineService) *ParcelHandler {
	return &ParcelHandler{
		identity: identity,
		timeline: timeline,
	}
}

// ParcelRequest is the create/update payload for a parcel.
type ParcelRequest struct {
	PlotNumber string   `json:"plot_number" binding:"required,max=50"`
	Address    string   `json:"address" binding:"max=255"`
	AreaSotka  *float64 `json:"area_sotka" binding:"omitempty,gt=0"`
}

// AssignOwnerRequest opens a new ownership interval on a parcel.
type AssignOwnerRequest struct {
	OwnerID   string `json:"owner_id" binding:"required,uuid"`
	StartDate string `json:"start_date" binding:"required"`
}

// CorrectIntervalRequest is the administrative repair payload.
type CorrectIntervalRequest struct {
	StartDate string  `json:"start_date" binding:"required"`
	EndDate   *string `json:"end_date"`
}

// IntervalResponse is one ownership interval on the wire.
type IntervalResponse struct {
	ID        string  `json:"id"`
	ParcelID  string  `json:"parcel_id"`
	OwnerID   string  `json:"owner_id"`
	StartDate string  `json:"start_date"`
	EndDate   *string `json:"end_date,omitempty"`
}

// CurrentOwnerResponse joins the owner with the interval that covers the
// requested date.
type CurrentOwnerResponse struct {
	Owner    models.Owner     `json:"owner"`
	Interval IntervalResponse `json:"interval"`
}

// Create handles POST /api/v1/parcels.
func (h *ParcelHandler) Create(c *gin.Context) {
	var req ParcelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	parcel, err := h.identity.RegisterParcel(c.Request.Context(), req.PlotNumber, req.Address, req.AreaSotka)
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		if errors.Is(err, services.ErrConflict) {
			apierrors.Conflict(c, "A parcel with this plot number already exists")
			return
		}
		apierrors.InternalServerError(c, "Failed to register parcel", err)
		return
	}

	c.JSON(http.StatusCreated, parcel)
}

// List handles GET /api/v1/parcels.
func (h *ParcelHandler) List(c *gin.Context) {
	parcels, err := h.identity.ListParcels(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list parcels", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"parcels": parcels, "count": len(parcels)})
}

// Get handles GET /api/v1/parcels/:id.
func (h *ParcelHandler) Get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	parcel, err := h.identity.GetParcel(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrParcelNotFound) {
			apierrors.NotFound(c, "Parcel not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to load parcel", err)
		return
	}

	c.JSON(http.StatusOK, parcel)
}

// Update handles PUT /api/v1/parcels/:id.
func (h *ParcelHandler) Update(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req ParcelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	parcel, err := h.identity.UpdateParcel(c.Request.Context(), id, req.PlotNumber, req.Address, req.AreaSotka)
	if err != nil {
		if errors.Is(err, services.ErrParcelNotFound) {
			apierrors.NotFound(c, "Parcel not found")
			return
		}
		if errors.Is(err, services.ErrInvalidInput) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to update parcel", err)
		return
	}

	c.JSON(http.StatusOK, parcel)
}

// Delete handles DELETE /api/v1/parcels/:id. Soft delete by default; pass
// ?hard=true to remove the row, which fails while dependents exist.
func (h *ParcelHandler) Delete(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	hard := c.Query("hard") == "true"

	if err := h.identity.DeleteParcel(c.Request.Context(), id, hard); err != nil {
		if errors.Is(err, services.ErrParcelNotFound) {
			apierrors.NotFound(c, "Parcel not found")
			return
		}
		if errors.Is(err, services.ErrParcelReferenced) {
			apierrors.Conflict(c, "Parcel still has ownership or dues records")
			return
		}
		apierrors.InternalServerError(c, "Failed to delete parcel", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// AssignOwner handles POST /api/v1/parcels/:id/owners.
func (h *ParcelHandler) AssignOwner(c *gin.Context) {
	log := middleware.GetLogger(c)

	parcelID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req AssignOwnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		apierrors.BadRequest(c, "owner_id must be a valid UUID", nil)
		return
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		apierrors.BadRequest(c, "start_date must be formatted as YYYY-MM-DD", nil)
		return
	}

	if log != nil {
		log.Info("Assigning owner", map[string]interface{}{
			"parcel_id": parcelID.String(),
			"owner_id":  ownerID.String(),
			"start":     req.StartDate,
		})
	}

	interval, err := h.timeline.AssignOwner(c.Request.Context(), parcelID, ownerID, start)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrParcelNotFound):
			apierrors.NotFound(c, "Parcel not found")
		case errors.Is(err, services.ErrOwnerNotFound):
			apierrors.NotFound(c, "Owner not found")
		case errors.Is(err, services.ErrInvalidInterval):
			apierrors.BadRequest(c, err.Error(), nil)
		case errors.Is(err, services.ErrOverlapViolation):
			apierrors.Conflict(c, err.Error())
		case errors.Is(err, services.ErrConflict):
			apierrors.Conflict(c, "Concurrent update, please retry")
		default:
			apierrors.InternalServerError(c, "Failed to assign owner", err)
		}
		return
	}

	c.JSON(http.StatusCreated, mapIntervalToDTO(interval))
}

// History handles GET /api/v1/parcels/:id/owners.
func (h *ParcelHandler) History(c *gin.Context) {
	parcelID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	history, err := h.timeline.HistoryFor(c.Request.Context(), parcelID)
	if err != nil {
		if errors.Is(err, services.ErrParcelNotFound) {
			apierrors.NotFound(c, "Parcel not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to load ownership history", err)
		return
	}

	intervals := make([]IntervalResponse, 0)
	for interval := range history {
		intervals = append(intervals, mapIntervalToDTO(interval))
	}

	c.JSON(http.StatusOK, gin.H{"intervals": intervals, "count": len(intervals)})
}

// CurrentOwner handles GET /api/v1/parcels/:id/owners/current. The as_of
// query parameter defaults to today.
func (h *ParcelHandler) CurrentOwner(c *gin.Context) {
	parcelID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	asOf := time.Now().UTC()
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			apierrors.BadRequest(c, "as_of must be formatted as YYYY-MM-DD", nil)
			return
		}
		asOf = parsed
	}

	owner, interval, err := h.timeline.CurrentOwner(c.Request.Context(), parcelID, asOf)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrParcelNotFound):
			apierrors.NotFound(c, "Parcel not found")
		case errors.Is(err, services.ErrNoOwner):
			apierrors.NotFound(c, "Parcel has no owner at this date")
		default:
			apierrors.InternalServerError(c, "Failed to resolve current owner", err)
		}
		return
	}

	c.JSON(http.StatusOK, CurrentOwnerResponse{
		Owner:    owner,
		Interval: mapIntervalToDTO(interval),
	})
}

// CorrectInterval handles PUT /api/v1/ownerships/:id.
func (h *ParcelHandler) CorrectInterval(c *gin.Context) {
	intervalID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req CorrectIntervalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		apierrors.BadRequest(c, "start_date must be formatted as YYYY-MM-DD", nil)
		return
	}
	var end *time.Time
	if req.EndDate != nil {
		parsed, err := time.Parse(dateLayout, *req.EndDate)
		if err != nil {
			apierrors.BadRequest(c, "end_date must be formatted as YYYY-MM-DD", nil)
			return
		}
		end = &parsed
	}

	interval, err := h.timeline.CorrectInterval(c.Request.Context(), intervalID, start, end)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrIntervalNotFound):
			apierrors.NotFound(c, "Ownership interval not found")
		case errors.Is(err, services.ErrInvalidInterval):
			apierrors.BadRequest(c, err.Error(), nil)
		case errors.Is(err, services.ErrOverlapViolation):
			apierrors.Conflict(c, err.Error())
		case errors.Is(err, services.ErrConflict):
			apierrors.Conflict(c, "Concurrent update, please retry")
		default:
			apierrors.InternalServerError(c, "Failed to correct ownership interval", err)
		}
		return
	}

	c.JSON(http.StatusOK, mapIntervalToDTO(interval))
}

// parseUUIDParam reads a UUID path parameter, answering 400 on garbage.
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		apierrors.BadRequest(c, name+" must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

// mapIntervalToDTO converts an ownership interval to its wire form with
// date-only strings.
func mapIntervalToDTO(interval models.OwnershipInterval) IntervalResponse {
	dto := IntervalResponse{
		ID:        interval.ID.String(),
		ParcelID:  interval.ParcelID.String(),
		OwnerID:   interval.OwnerID.String(),
		StartDate: interval.StartDate.Format(dateLayout),
	}
	if interval.EndDate != nil {
		formatted := interval.EndDate.Format(dateLayout)
		dto.EndDate = &formatted
	}
	return dto
}
