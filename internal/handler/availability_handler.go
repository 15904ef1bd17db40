package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/peerobs-api/internal/middleware"
	"github.com/noah-isme/peerobs-api/internal/models"
	"github.com/noah-isme/peerobs-api/internal/repository"
	"github.com/noah-isme/peerobs-api/internal/service"
	"github.com/noah-isme/peerobs-api/pkg/config"
	appErrors "github.com/noah-isme/peerobs-api/pkg/errors"
	"github.com/noah-isme/peerobs-api/pkg/response"
)

// AvailabilityHandler serves the slot matrix and the bell schedule. Both are
// hot read-only endpoints and go through the response cache when enabled.
type AvailabilityHandler struct {
	availability *service.AvailabilityService
	catalog      *service.CatalogService
	cache        *repository.CacheRepository
	metrics      *service.MetricsService
	cacheCfg     config.CacheConfig
}

// NewAvailabilityHandler constructs a new AvailabilityHandler.
func NewAvailabilityHandler(availability *service.AvailabilityService, catalog *service.CatalogService, cache *repository.CacheRepository, metrics *service.MetricsService, cacheCfg config.CacheConfig) *AvailabilityHandler {
	return &AvailabilityHandler{
		availability: availability,
		catalog:      catalog,
		cache:        cache,
		metrics:      metrics,
		cacheCfg:     cacheCfg,
	}
}

// Slots godoc
// @Summary Availability matrix for a teacher on a date
// @Tags Availability
// @Produce json
// @Security BearerAuth
// @Param teacher_id query string true "Target teacher ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /availability [get]
func (h *AvailabilityHandler) Slots(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	targetID := c.Query("teacher_id")
	if targetID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "teacher_id is required"))
		return
	}
	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be formatted YYYY-MM-DD"))
		return
	}

	key := fmt.Sprintf("availability:%s:%s:%s", claims.Email, targetID, date.Format("2006-01-02"))
	var cached []models.Slot
	if h.lookup(c, key, &cached) {
		response.JSON(c, http.StatusOK, cached, nil, middleware.ExtractMeta(c))
		return
	}

	slots, err := h.availability.ResolveSlotsForActor(c.Request.Context(), claims, targetID, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.store(c, key, slots, h.cacheCfg.AvailabilityTTL)
	response.JSON(c, http.StatusOK, slots, nil, middleware.ExtractMeta(c))
}

// BellSchedule godoc
// @Summary Bell schedule for a grade cohort
// @Tags Availability
// @Produce json
// @Security BearerAuth
// @Param cohort query string false "Grade cohort (6 or 7, default 7)"
// @Success 200 {object} response.Envelope
// @Router /schedule/bell [get]
func (h *AvailabilityHandler) BellSchedule(c *gin.Context) {
	cohort := models.CohortSeven
	if c.Query("cohort") == string(models.CohortSix) {
		cohort = models.CohortSix
	}

	key := fmt.Sprintf("schedule:%s", cohort)
	var cached []models.BellSchedulePeriod
	if h.lookup(c, key, &cached) {
		response.JSON(c, http.StatusOK, cached, nil, middleware.ExtractMeta(c))
		return
	}

	periods, err := h.catalog.BellSchedule(c.Request.Context(), cohort)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.store(c, key, periods, h.cacheCfg.ScheduleTTL)
	response.JSON(c, http.StatusOK, periods, nil, middleware.ExtractMeta(c))
}

func (h *AvailabilityHandler) lookup(c *gin.Context, key string, dest interface{}) bool {
	if !h.cacheCfg.Enabled || h.cache == nil {
		return false
	}
	err := h.cache.Get(c.Request.Context(), key, dest)
	hit := err == nil
	middleware.SetCacheHit(c, hit)
	if h.metrics != nil {
		h.metrics.ObserveCacheLookup(hit)
	}
	return hit
}

func (h *AvailabilityHandler) store(c *gin.Context, key string, value interface{}, ttl time.Duration) {
	if !h.cacheCfg.Enabled || h.cache == nil {
		return
	}
	_ = h.cache.Set(c.Request.Context(), key, value, ttl)
}
