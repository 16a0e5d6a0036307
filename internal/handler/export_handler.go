package handler

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dept-portal-api/internal/service"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
	"github.com/noah-isme/dept-portal-api/pkg/response"
)

var exportContentTypes = map[string]string{
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".csv":  "text/csv; charset=utf-8",
	".pdf":  "application/pdf",
}

// ExportHandler streams generated exports behind signed tokens.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Download godoc
// @Summary Download an export
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, "exports are not configured"))
		return
	}
	signed, file, err := h.service.Resolve(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to stat export"))
		return
	}
	c.Header("Content-Type", contentTypeFor(signed.Name))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", signed.Name))
	c.Header("Cache-Control", "no-store")
	http.ServeContent(c.Writer, c.Request, signed.Name, info.ModTime(), file)
}

func contentTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := exportContentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
