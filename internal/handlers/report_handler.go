package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apierrors "github.com/obelousov/sntledger/internal/errors"
	"github.com/obelousov/sntledger/internal/services"
)

// ReportHandler serves the dashboard statistics, debt report, income
// report and payment calendar.
type ReportHandler struct {
	reporting services.ReportingService
}

// NewReportHandler creates a new ReportHandler instance.
func NewReportHandler(reporting services.ReportingService) *ReportHandler {
	return &ReportHandler{reporting: reporting}
}

// Statistics handles GET /api/v1/reports/statistics?year=.
func (h *ReportHandler) Statistics(c *gin.Context) {
	year, ok := parseYearQuery(c)
	if !ok {
		return
	}

	summary, err := h.reporting.PaymentSummary(c.Request.Context(), year)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to build payment summary", err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Debtors handles GET /api/v1/reports/debtors?year=.
func (h *ReportHandler) Debtors(c *gin.Context) {
	year, ok := parseYearQuery(c)
	if !ok {
		return
	}

	report, err := h.reporting.DebtReport(c.Request.Context(), year)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to build debt report", err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// Income handles GET /api/v1/reports/income?from=&to=.
func (h *ReportHandler) Income(c *gin.Context) {
	from, err := time.Parse(dateLayout, c.Query("from"))
	if err != nil {
		apierrors.BadRequest(c, "from must be formatted as YYYY-MM-DD", nil)
		return
	}
	to, err := time.Parse(dateLayout, c.Query("to"))
	if err != nil {
		apierrors.BadRequest(c, "to must be formatted as YYYY-MM-DD", nil)
		return
	}
	if to.Before(from) {
		apierrors.BadRequest(c, "to must not precede from", nil)
		return
	}

	months, err := h.reporting.MonthlyIncome(c.Request.Context(), from, to)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to build income report", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"months": months})
}

// Calendar handles GET /api/v1/reports/calendar?date=.
func (h *ReportHandler) Calendar(c *gin.Context) {
	date, err := time.Parse(dateLayout, c.Query("date"))
	if err != nil {
		apierrors.BadRequest(c, "date must be formatted as YYYY-MM-DD", nil)
		return
	}

	dues, err := h.reporting.CalendarFor(c.Request.Context(), date)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to load payment calendar", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"date": date.Format(dateLayout), "payments": dues, "count": len(dues)})
}

// parseYearQuery reads the year query parameter.
func parseYearQuery(c *gin.Context) (int, bool) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		apierrors.BadRequest(c, "year query parameter is required and must be an integer", nil)
		return 0, false
	}
	return year, true
}
