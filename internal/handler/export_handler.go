package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Polyconseil/xlsx-streaming/internal/domain"
	"github.com/Polyconseil/xlsx-streaming/internal/logger"
	"github.com/Polyconseil/xlsx-streaming/internal/service"
	"github.com/Polyconseil/xlsx-streaming/internal/service/serviceutils"
	"github.com/Polyconseil/xlsx-streaming/pkg/xlsxstream"
	"github.com/labstack/echo/v4"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// maxTemplateSize bounds uploaded template workbooks.
const maxTemplateSize = 32 << 20

type ExportHandler struct {
	svc domain.ExportService
}

func NewExportHandler(svc domain.ExportService) *ExportHandler {
	return &ExportHandler{svc: svc}
}

func (h *ExportHandler) ListJobsHandler(c echo.Context) error {
	return serviceutils.ResponseSuccess(c, http.StatusOK, "Export jobs listed successfully", h.svc.ListJobs())
}

// ExportHandler streams the workbook of a job using its configured template.
func (h *ExportHandler) ExportHandler(c echo.Context) error {
	return h.stream(c, nil)
}

// ExportWithTemplateHandler streams the workbook of a job using the uploaded
// "template" file instead of the configured one.
func (h *ExportHandler) ExportWithTemplateHandler(c echo.Context) error {
	fh, err := c.FormFile("template")
	if err != nil {
		return serviceutils.ResponseError(c, http.StatusBadRequest, "Missing template file", err)
	}
	if fh.Size > maxTemplateSize {
		return serviceutils.ResponseError(c, http.StatusRequestEntityTooLarge, "Template file too large", nil)
	}

	file, err := fh.Open()
	if err != nil {
		return serviceutils.ResponseError(c, http.StatusBadRequest, "Invalid template file", err)
	}
	defer file.Close()

	template, err := io.ReadAll(io.LimitReader(file, maxTemplateSize))
	if err != nil {
		return serviceutils.ResponseError(c, http.StatusBadRequest, "Failed to read template file", err)
	}
	if len(template) == 0 {
		return serviceutils.ResponseError(c, http.StatusBadRequest, "Empty template file", nil)
	}
	return h.stream(c, template)
}

func (h *ExportHandler) stream(c echo.Context, template []byte) error {
	ctx := c.Request().Context()
	job := c.Param("job")

	fileName, err := h.svc.FileName(job)
	if err != nil {
		return serviceutils.ResponseError(c, http.StatusNotFound, "Export job not found", err)
	}

	w := &downloadWriter{resp: c.Response(), fileName: fileName}
	if _, err := h.svc.Stream(ctx, job, w, template); err != nil {
		if w.started {
			// Headers are sent, the client sees a truncated download
			logger.ErrorLogErr(ctx, err, "export stream interrupted")
			return err
		}
		return serviceutils.ResponseError(c, statusOf(err), "Failed to export job", err)
	}
	return nil
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, xlsxstream.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrSourceUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// downloadWriter sends the attachment headers with the first chunk, so that
// failures before any output can still be answered with an error status.
type downloadWriter struct {
	resp     *echo.Response
	fileName string
	started  bool
}

func (w *downloadWriter) Write(p []byte) (int, error) {
	if !w.started {
		w.started = true
		// Set headers for file download
		w.resp.Header().Set(echo.HeaderContentType, xlsxContentType)
		w.resp.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", w.fileName))
		w.resp.WriteHeader(http.StatusOK)
	}
	n, err := w.resp.Write(p)
	w.resp.Flush()
	return n, err
}
