package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/peerobs-api/internal/middleware"
	"github.com/noah-isme/peerobs-api/internal/models"
	"github.com/noah-isme/peerobs-api/pkg/config"
	"github.com/noah-isme/peerobs-api/pkg/response"
)

func testContext(t *testing.T, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-1", Email: "alice@school.edu", Role: models.RoleTeacher})
	return c, w
}

func TestBookingCreateRejectsMalformedBody(t *testing.T) {
	handler := NewBookingHandler(nil, nil, nil)
	c, w := testContext(t, http.MethodPost, "/bookings", []byte(`{not json`))

	handler.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "VALIDATION_ERROR", envelope.Error.Code)
}

func TestBookingRescheduleRejectsMalformedBody(t *testing.T) {
	handler := NewBookingHandler(nil, nil, nil)
	c, w := testContext(t, http.MethodPut, "/bookings/obs-1", []byte(`[]`))
	c.Params = gin.Params{{Key: "id", Value: "obs-1"}}

	handler.Reschedule(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportRangeValidation(t *testing.T) {
	handler := NewExportHandler(nil)

	c, w := testContext(t, http.MethodGet, "/exports/observations.csv?from=2026-03-10&to=2026-03-01", nil)
	handler.CSV(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	c, w = testContext(t, http.MethodGet, "/exports/observations.pdf?from=bad&to=2026-03-01", nil)
	handler.PDF(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAvailabilitySlotsRequiresParams(t *testing.T) {
	handler := NewAvailabilityHandler(nil, nil, nil, nil, config.CacheConfig{})

	c, w := testContext(t, http.MethodGet, "/availability?date=2026-03-02", nil)
	handler.Slots(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	c, w = testContext(t, http.MethodGet, "/availability?teacher_id=t-1&date=03/02/2026", nil)
	handler.Slots(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
