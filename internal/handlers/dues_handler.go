package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	apierrors "github.com/obelousov/sntledger/internal/errors"
	"github.com/obelousov/sntledger/internal/services"
)

// DuesHandler handles yearly dues assessment and payment requests.
type DuesHandler struct {
	dues services.DuesService
}

// NewDuesHandler creates a new DuesHandler instance.
func NewDuesHandler(dues services.DuesService) *DuesHandler {
	return &DuesHandler{dues: dues}
}

// AssessRequest creates the year's due record. Amount is in minor currency
// units (kopecks). Omitting parcel_id assesses every active parcel that has
// no record for the year yet.
type AssessRequest struct {
	ParcelID   *string `json:"parcel_id" binding:"omitempty,uuid"`
	FiscalYear int     `json:"fiscal_year" binding:"required"`
	Amount     int64   `json:"amount" binding:"required,gt=0"`
}

// PaymentRequest records the cumulative amount paid toward a due.
type PaymentRequest struct {
	AmountPaid int64  `json:"amount_paid" binding:"min=0"`
	PaidDate   string `json:"paid_date" binding:"required"`
}

// Assess handles POST /api/v1/dues.
func (h *DuesHandler) Assess(c *gin.Context) {
	var req AssessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	if req.ParcelID == nil {
		created, err := h.dues.AssessYear(c.Request.Context(), req.FiscalYear, req.Amount)
		if err != nil {
			if errors.Is(err, services.ErrInvalidInput) || errors.Is(err, services.ErrInvalidAmount) {
				apierrors.BadRequest(c, err.Error(), nil)
				return
			}
			apierrors.InternalServerError(c, "Failed to assess dues for the year", err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"fiscal_year": req.FiscalYear, "created": created})
		return
	}

	parcelID, err := uuid.Parse(*req.ParcelID)
	if err != nil {
		apierrors.BadRequest(c, "parcel_id must be a valid UUID", nil)
		return
	}

	due, err := h.dues.AssessDue(c.Request.Context(), parcelID, req.FiscalYear, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrParcelNotFound):
			apierrors.NotFound(c, "Parcel not found")
		case errors.Is(err, services.ErrAlreadyAssessed):
			apierrors.Conflict(c, "Parcel already assessed for this year")
		case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrInvalidAmount):
			apierrors.BadRequest(c, err.Error(), nil)
		default:
			apierrors.InternalServerError(c, "Failed to assess due", err)
		}
		return
	}

	c.JSON(http.StatusCreated, due)
}

// RecordPayment handles POST /api/v1/dues/:parcel_id/:year/payments.
func (h *DuesHandler) RecordPayment(c *gin.Context) {
	parcelID, ok := parseUUIDParam(c, "parcel_id")
	if !ok {
		return
	}
	year, ok := parseYearParam(c)
	if !ok {
		return
	}

	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	paidDate, err := time.Parse(dateLayout, req.PaidDate)
	if err != nil {
		apierrors.BadRequest(c, "paid_date must be formatted as YYYY-MM-DD", nil)
		return
	}

	due, err := h.dues.RecordPayment(c.Request.Context(), parcelID, year, req.AmountPaid, paidDate)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDueNotFound):
			apierrors.NotFound(c, "No due assessed for this parcel and year")
		case errors.Is(err, services.ErrInvalidAmount):
			apierrors.BadRequest(c, err.Error(), nil)
		case errors.Is(err, services.ErrConflict):
			apierrors.Conflict(c, "Concurrent update, please retry")
		default:
			apierrors.InternalServerError(c, "Failed to record payment", err)
		}
		return
	}

	c.JSON(http.StatusOK, due)
}

// Status handles GET /api/v1/dues/:parcel_id/:year.
func (h *DuesHandler) Status(c *gin.Context) {
	parcelID, ok := parseUUIDParam(c, "parcel_id")
	if !ok {
		return
	}
	year, ok := parseYearParam(c)
	if !ok {
		return
	}

	due, err := h.dues.StatusOf(c.Request.Context(), parcelID, year)
	if err != nil {
		if errors.Is(err, services.ErrNotAssessed) {
			apierrors.NotFound(c, "No due assessed for this parcel and year")
			return
		}
		apierrors.InternalServerError(c, "Failed to load due record", err)
		return
	}

	c.JSON(http.StatusOK, due)
}

// ListYear handles GET /api/v1/dues?year=.
func (h *DuesHandler) ListYear(c *gin.Context) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		apierrors.BadRequest(c, "year query parameter is required and must be an integer", nil)
		return
	}

	dues, err := h.dues.AllForYear(c.Request.Context(), year)
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to list dues", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"dues": dues, "count": len(dues)})
}

// parseYearParam reads the :year path parameter.
func parseYearParam(c *gin.Context) (int, bool) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		apierrors.BadRequest(c, "year must be an integer", nil)
		return 0, false
	}
	return year, true
}
