package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/peerobs-api/internal/models"
	"github.com/noah-isme/peerobs-api/internal/repository"
	"github.com/noah-isme/peerobs-api/internal/service"
	appErrors "github.com/noah-isme/peerobs-api/pkg/errors"
	"github.com/noah-isme/peerobs-api/pkg/response"
)

// SubstituteHandler wires the substitute approval workflow to HTTP routes.
type SubstituteHandler struct {
	substitutes *service.SubstituteService
	metrics     *service.MetricsService
	cache       *repository.CacheRepository
}

// NewSubstituteHandler constructs a new SubstituteHandler.
func NewSubstituteHandler(substitutes *service.SubstituteService, metrics *service.MetricsService, cache *repository.CacheRepository) *SubstituteHandler {
	return &SubstituteHandler{substitutes: substitutes, metrics: metrics, cache: cache}
}

// List godoc
// @Summary List substitute requests
// @Tags Substitutes
// @Produce json
// @Security BearerAuth
// @Param status query string false "Comma-separated statuses"
// @Param from query string false "Date from (YYYY-MM-DD)"
// @Param to query string false "Date to (YYYY-MM-DD)"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /substitutes [get]
func (h *SubstituteHandler) List(c *gin.Context) {
	var filter models.SubstituteRequestFilter
	if status := c.Query("status"); status != "" {
		for _, s := range strings.Split(status, ",") {
			if s = strings.TrimSpace(s); s != "" {
				filter.Status = append(filter.Status, models.SubRequestStatus(s))
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

	requests, total, err := h.substitutes.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Get godoc
// @Summary Get substitute request detail
// @Tags Substitutes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Substitute request ID"
// @Success 200 {object} response.Envelope
// @Router /substitutes/{id} [get]
func (h *SubstituteHandler) Get(c *gin.Context) {
	request, err := h.substitutes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Approve godoc
// @Summary Approve a pending substitute request
// @Tags Substitutes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Substitute request ID"
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /substitutes/{id}/approve [post]
func (h *SubstituteHandler) Approve(c *gin.Context) {
	request, err := h.substitutes.Approve(c.Request.Context(), claimsFromContext(c), c.Param("id"), c.ClientIP())
	h.observe(c, "sub_approve", err)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Deny godoc
// @Summary Deny a pending substitute request
// @Tags Substitutes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Substitute request ID"
// @Param payload body service.DenySubRequest true "Denial payload"
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /substitutes/{id}/deny [post]
func (h *SubstituteHandler) Deny(c *gin.Context) {
	var req service.DenySubRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid denial payload"))
		return
	}
	req.IP = c.ClientIP()

	request, err := h.substitutes.Deny(c.Request.Context(), claimsFromContext(c), c.Param("id"), &req)
	h.observe(c, "sub_deny", err)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

func (h *SubstituteHandler) observe(c *gin.Context, operation string, err error) {
	if h.metrics != nil {
		h.metrics.ObserveBooking(operation, err)
	}
	if err == nil && h.cache != nil {
		_ = h.cache.DeleteByPattern(c.Request.Context(), "availability:*")
	}
}
