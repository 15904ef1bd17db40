package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/peerobs-api/internal/service"
	appErrors "github.com/noah-isme/peerobs-api/pkg/errors"
	"github.com/noah-isme/peerobs-api/pkg/response"
)

// AccessHandler wires access-request submission and admin review.
type AccessHandler struct {
	access *service.AccessService
}

// NewAccessHandler constructs a new AccessHandler.
func NewAccessHandler(access *service.AccessService) *AccessHandler {
	return &AccessHandler{access: access}
}

// Submit godoc
// @Summary Request an account
// @Tags Access
// @Accept json
// @Produce json
// @Param payload body service.SubmitAccessRequest true "Access request payload"
// @Success 201 {object} response.Envelope
// @Router /access-requests [post]
func (h *AccessHandler) Submit(c *gin.Context) {
	var req service.SubmitAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid access request payload"))
		return
	}

	request, err := h.access.Submit(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// ListPending godoc
// @Summary List pending access requests
// @Tags Access
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /access-requests [get]
func (h *AccessHandler) ListPending(c *gin.Context) {
	requests, err := h.access.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Approve godoc
// @Summary Approve an access request
// @Tags Access
// @Produce json
// @Security BearerAuth
// @Param id path string true "Access request ID"
// @Success 204
// @Router /access-requests/{id}/approve [post]
func (h *AccessHandler) Approve(c *gin.Context) {
	if err := h.access.Approve(c.Request.Context(), claimsFromContext(c), c.Param("id"), c.ClientIP()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Deny godoc
// @Summary Deny an access request
// @Tags Access
// @Produce json
// @Security BearerAuth
// @Param id path string true "Access request ID"
// @Success 204
// @Router /access-requests/{id}/deny [post]
func (h *AccessHandler) Deny(c *gin.Context) {
	if err := h.access.Deny(c.Request.Context(), claimsFromContext(c), c.Param("id"), c.ClientIP()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
