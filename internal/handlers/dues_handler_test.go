package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obelousov/sntledger/internal/logger"
	"github.com/obelousov/sntledger/internal/models"
	"github.com/obelousov/sntledger/internal/services"
	"github.com/obelousov/sntledger/internal/store"
)

func setupDuesRouter(t *testing.T) (*gin.Engine, services.IdentityService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := store.NewMemory()
	log := logger.New("test")
	locks := store.NewParcelLocks()
	audit := services.NewAuditService(mem.Audit, log)
	identity := services.NewIdentityService(mem.Parcels, mem.Owners, mem.Timeline, mem.Dues, audit, log)
	dues := services.NewDuesService(mem.Parcels, mem.Dues, locks, audit, nil, log)

	handler := NewDuesHandler(dues)
	router := gin.New()
	router.POST("/api/v1/dues", handler.Assess)
	router.GET("/api/v1/dues", handler.ListYear)
	router.GET("/api/v1/dues/:parcel_id/:year", handler.Status)
	router.POST("/api/v1/dues/:parcel_id/:year/payments", handler.RecordPayment)
	return router, identity
}

func postJSON(t *testing.T, router *gin.Engine, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func getPath(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAssess_SingleParcel(t *testing.T) {
	router, identity := setupDuesRouter(t)
	parcel, err := identity.RegisterParcel(context.Background(), "17", "", nil)
	require.NoError(t, err)

	id := parcel.ID.String()
	w := postJSON(t, router, "/api/v1/dues", gin.H{
		"parcel_id": id, "fiscal_year": 2024, "amount": 500000,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var due models.DueRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &due))
	assert.Equal(t, parcel.ID, due.ParcelID)
	assert.Equal(t, int64(500000), due.Amount)
	assert.Equal(t, models.DueNotPaid, due.Status)
}

func TestAssess_DuplicateYearConflicts(t *testing.T) {
	router, identity := setupDuesRouter(t)
	parcel, err := identity.RegisterParcel(context.Background(), "17", "", nil)
	require.NoError(t, err)

	payload := gin.H{"parcel_id": parcel.ID.String(), "fiscal_year": 2024, "amount": 500000}
	require.Equal(t, http.StatusCreated, postJSON(t, router, "/api/v1/dues", payload).Code)

	w := postJSON(t, router, "/api/v1/dues", payload)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "CONFLICT")
}

func TestAssess_WholeYearBatch(t *testing.T) {
	router, identity := setupDuesRouter(t)
	ctx := context.Background()
	for _, plot := range []string{"1", "2", "3"} {
		_, err := identity.RegisterParcel(ctx, plot, "", nil)
		require.NoError(t, err)
	}

	w := postJSON(t, router, "/api/v1/dues", gin.H{"fiscal_year": 2024, "amount": 500000})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		FiscalYear int `json:"fiscal_year"`
		Created    int `json:"created"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2024, resp.FiscalYear)
	assert.Equal(t, 3, resp.Created)
}

func TestAssess_ValidationFailures(t *testing.T) {
	router, _ := setupDuesRouter(t)

	// Missing the year entirely.
	w := postJSON(t, router, "/api/v1/dues", gin.H{"amount": 500000})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Negative amount.
	w = postJSON(t, router, "/api/v1/dues", gin.H{"fiscal_year": 2024, "amount": -5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown parcel.
	w = postJSON(t, router, "/api/v1/dues", gin.H{
		"parcel_id": "00000000-0000-0000-0000-000000000001", "fiscal_year": 2024, "amount": 500000,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecordPayment_RoundTrip(t *testing.T) {
	router, identity := setupDuesRouter(t)
	parcel, err := identity.RegisterParcel(context.Background(), "17", "", nil)
	require.NoError(t, err)

	id := parcel.ID.String()
	require.Equal(t, http.StatusCreated, postJSON(t, router, "/api/v1/dues", gin.H{
		"parcel_id": id, "fiscal_year": 2024, "amount": 500000,
	}).Code)

	w := postJSON(t, router, fmt.Sprintf("/api/v1/dues/%s/2024/payments", id), gin.H{
		"amount_paid": 500000, "paid_date": "2024-06-01",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var due models.DueRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &due))
	assert.Equal(t, models.DuePaid, due.Status)

	status := getPath(router, fmt.Sprintf("/api/v1/dues/%s/2024", id))
	require.Equal(t, http.StatusOK, status.Code)
	assert.Contains(t, status.Body.String(), `"paid"`)
}

func TestRecordPayment_UnassessedYear(t *testing.T) {
	router, identity := setupDuesRouter(t)
	parcel, err := identity.RegisterParcel(context.Background(), "17", "", nil)
	require.NoError(t, err)

	w := postJSON(t, router, fmt.Sprintf("/api/v1/dues/%s/2024/payments", parcel.ID), gin.H{
		"amount_paid": 100000, "paid_date": "2024-06-01",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecordPayment_BadDate(t *testing.T) {
	router, identity := setupDuesRouter(t)
	parcel, err := identity.RegisterParcel(context.Background(), "17", "", nil)
	require.NoError(t, err)

	w := postJSON(t, router, fmt.Sprintf("/api/v1/dues/%s/2024/payments", parcel.ID), gin.H{
		"amount_paid": 100000, "paid_date": "06/01/2024",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatus_InvalidParams(t *testing.T) {
	router, _ := setupDuesRouter(t)

	assert.Equal(t, http.StatusBadRequest, getPath(router, "/api/v1/dues/not-a-uuid/2024").Code)
	assert.Equal(t, http.StatusBadRequest,
		getPath(router, "/api/v1/dues/00000000-0000-0000-0000-000000000001/later").Code)
}

func TestListYear_RequiresYearParam(t *testing.T) {
	router, identity := setupDuesRouter(t)
	parcel, err := identity.RegisterParcel(context.Background(), "17", "", nil)
	require.NoError(t, err)

	require.Equal(t, http.StatusCreated, postJSON(t, router, "/api/v1/dues", gin.H{
		"parcel_id": parcel.ID.String(), "fiscal_year": 2024, "amount": 500000,
	}).Code)

	assert.Equal(t, http.StatusBadRequest, getPath(router, "/api/v1/dues").Code)

	w := getPath(router, "/api/v1/dues?year=2024")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}
