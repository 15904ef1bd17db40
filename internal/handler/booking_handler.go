package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/peerobs-api/internal/models"
	"github.com/noah-isme/peerobs-api/internal/repository"
	"github.com/noah-isme/peerobs-api/internal/service"
	appErrors "github.com/noah-isme/peerobs-api/pkg/errors"
	"github.com/noah-isme/peerobs-api/pkg/response"
)

// BookingHandler wires the booking transaction manager to HTTP routes.
type BookingHandler struct {
	bookings *service.BookingService
	metrics  *service.MetricsService
	cache    *repository.CacheRepository
}

// NewBookingHandler constructs a new BookingHandler.
func NewBookingHandler(bookings *service.BookingService, metrics *service.MetricsService, cache *repository.CacheRepository) *BookingHandler {
	return &BookingHandler{bookings: bookings, metrics: metrics, cache: cache}
}

// Create godoc
// @Summary Book an observation
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateBookingRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}
	req.IP = c.ClientIP()

	result, err := h.bookings.Create(c.Request.Context(), claimsFromContext(c), &req)
	h.observe(c, "create", err)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// List godoc
// @Summary List observations
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param observer_id query string false "Filter by observer (admin only)"
// @Param teacher_id query string false "Filter by observed teacher"
// @Param status query string false "Comma-separated statuses"
// @Param from query string false "Date from (YYYY-MM-DD)"
// @Param to query string false "Date to (YYYY-MM-DD)"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	filter := models.ObservationFilter{
		ObserverID: c.Query("observer_id"),
		TeacherID:  c.Query("teacher_id"),
	}
	if status := c.Query("status"); status != "" {
		for _, s := range strings.Split(status, ",") {
			if s = strings.TrimSpace(s); s != "" {
				filter.Status = append(filter.Status, models.ObservationStatus(s))
			}
		}
	}
	if from, ok := parseDateQuery(c.Query("from")); ok {
		filter.DateFrom = &from
	}
	if to, ok := parseDateQuery(c.Query("to")); ok {
		filter.DateTo = &to
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	observations, total, err := h.bookings.List(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, observations, pagination)
}

// Get godoc
// @Summary Get observation detail
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Observation ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	observation, err := h.bookings.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, observation, nil)
}

// Reschedule godoc
// @Summary Reschedule an observation
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Observation ID"
// @Param payload body service.RescheduleBookingRequest true "Reschedule payload"
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /bookings/{id} [put]
func (h *BookingHandler) Reschedule(c *gin.Context) {
	var req service.RescheduleBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reschedule payload"))
		return
	}
	req.IP = c.ClientIP()

	observation, err := h.bookings.Reschedule(c.Request.Context(), claimsFromContext(c), c.Param("id"), &req)
	h.observe(c, "reschedule", err)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, observation, nil)
}

// Cancel godoc
// @Summary Cancel an observation
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Observation ID"
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
	observation, err := h.bookings.Cancel(c.Request.Context(), claimsFromContext(c), c.Param("id"), c.ClientIP())
	h.observe(c, "cancel", err)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, observation, nil)
}

// Delete godoc
// @Summary Hard-delete an observation
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Observation ID"
// @Success 204
// @Failure 503 {object} response.Envelope
// @Router /bookings/{id} [delete]
func (h *BookingHandler) Delete(c *gin.Context) {
	err := h.bookings.AdminDelete(c.Request.Context(), claimsFromContext(c), c.Param("id"), c.ClientIP())
	h.observe(c, "delete", err)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// observe records the operation outcome and, on success, drops stale
// availability cache entries.
func (h *BookingHandler) observe(c *gin.Context, operation string, err error) {
	if h.metrics != nil {
		h.metrics.ObserveBooking(operation, err)
	}
	if err == nil && h.cache != nil {
		_ = h.cache.DeleteByPattern(c.Request.Context(), "availability:*")
	}
}

func parseDateQuery(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}
