package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/peerobs-api/internal/service"
	appErrors "github.com/noah-isme/peerobs-api/pkg/errors"
	"github.com/noah-isme/peerobs-api/pkg/response"
)

// ExportHandler serves observation schedule downloads.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs a new ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// CSV godoc
// @Summary Export observations as CSV
// @Tags Exports
// @Produce text/csv
// @Security BearerAuth
// @Param from query string true "Date from (YYYY-MM-DD)"
// @Param to query string true "Date to (YYYY-MM-DD)"
// @Success 200 {file} file
// @Router /exports/observations.csv [get]
func (h *ExportHandler) CSV(c *gin.Context) {
	from, to, err := exportRange(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	data, err := h.exports.ObservationsCSV(c.Request.Context(), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename("csv", from, to)))
	c.Data(http.StatusOK, "text/csv", data)
}

// PDF godoc
// @Summary Export observations as PDF
// @Tags Exports
// @Produce application/pdf
// @Security BearerAuth
// @Param from query string true "Date from (YYYY-MM-DD)"
// @Param to query string true "Date to (YYYY-MM-DD)"
// @Success 200 {file} file
// @Router /exports/observations.pdf [get]
func (h *ExportHandler) PDF(c *gin.Context) {
	from, to, err := exportRange(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	data, err := h.exports.ObservationsPDF(c.Request.Context(), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename("pdf", from, to)))
	c.Data(http.StatusOK, "application/pdf", data)
}

func exportRange(c *gin.Context) (time.Time, time.Time, error) {
	from, ok := parseDateQuery(c.Query("from"))
	if !ok {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "from must be formatted YYYY-MM-DD")
	}
	to, ok := parseDateQuery(c.Query("to"))
	if !ok {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "to must be formatted YYYY-MM-DD")
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	return from, to, nil
}

func exportFilename(ext string, from, to time.Time) string {
	return fmt.Sprintf("observations_%s_%s.%s", from.Format("2006-01-02"), to.Format("2006-01-02"), ext)
}
