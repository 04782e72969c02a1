package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ReportSource provides the last rendered report.
type ReportSource interface {
	LastReport() []byte
}

// ReportHandler serves the last rendered report.
type ReportHandler struct {
	source ReportSource
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(s ReportSource) *ReportHandler {
	return &ReportHandler{source: s}
}

// Report returns the HTML document of the last run, or 404 before any run
// rendered one.
//
// @Summary Last report
// @Tags runs
// @Produce html
// @Success 200
// @Failure 404 {object} ErrorResponse
// @Router /report [get]
func (h *ReportHandler) Report(c echo.Context) error {
	html := h.source.LastReport()
	if html == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "no report rendered yet"})
	}
	return c.HTMLBlob(http.StatusOK, html)
}
