package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/peerobs-api/internal/service"
	"github.com/noah-isme/peerobs-api/pkg/response"
)

// RequirementHandler exposes the yearly observation requirement status.
type RequirementHandler struct {
	requirements *service.RequirementService
}

// NewRequirementHandler constructs a new RequirementHandler.
func NewRequirementHandler(requirements *service.RequirementService) *RequirementHandler {
	return &RequirementHandler{requirements: requirements}
}

// Mine godoc
// @Summary Requirement status for the current user
// @Tags Requirements
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /requirements/me [get]
func (h *RequirementHandler) Mine(c *gin.Context) {
	status, err := h.requirements.StatusForActor(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// ForTeacher godoc
// @Summary Requirement status for a roster teacher
// @Tags Requirements
// @Produce json
// @Security BearerAuth
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /requirements/teachers/{id} [get]
func (h *RequirementHandler) ForTeacher(c *gin.Context) {
	status, err := h.requirements.StatusForTeacher(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}
