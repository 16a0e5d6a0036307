package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dept-portal-api/internal/models"
	"github.com/noah-isme/dept-portal-api/internal/service"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
	"github.com/noah-isme/dept-portal-api/pkg/response"
)

// DocumentHandler exposes the document repository.
type DocumentHandler struct {
	service *service.DocumentService
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(svc *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{service: svc}
}

// List godoc
// @Summary List documents
// @Tags Documents
// @Produce json
// @Param category query string false "Category"
// @Param type query string false "Exam type, Tất cả for any"
// @Param grade query int false "Grade 6-9"
// @Param authorId query string false "Author"
// @Param status query string false "Review status"
// @Param search query string false "Title search"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	grade, ok := queryInt(c, "grade")
	if !ok {
		return
	}
	filter := models.DocumentFilter{
		Category: c.Query("category"),
		Type:     c.Query("type"),
		Grade:    grade,
		AuthorID: c.Query("authorId"),
		Status:   models.DocStatus(c.Query("status")),
		Search:   c.Query("search"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	docs, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, pagination)
}

// Upload godoc
// @Summary Upload a document
// @Description Stages the file and uploads it to Drive in the background. Poll the returned upload id.
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param category formData string true "Category"
// @Param type formData string true "Exam type"
// @Param grade formData int true "Grade"
// @Param file formData file true "Document file"
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.UploadDocumentRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid document form"))
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to read upload"))
		return
	}
	defer file.Close()

	status, err := h.service.Upload(c.Request.Context(), actor, req, header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, status)
}

// UploadStatus godoc
// @Summary Upload progress
// @Tags Documents
// @Produce json
// @Param id path string true "Upload ID"
// @Success 200 {object} response.Envelope
// @Router /documents/uploads/{id} [get]
func (h *DocumentHandler) UploadStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	status, err := h.service.UploadStatus(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Review godoc
// @Summary Review a document
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body service.ReviewDocumentRequest true "Review"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/review [patch]
func (h *DocumentHandler) Review(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.ReviewDocumentRequest
	if !bindJSON(c, &req, "invalid review payload") {
		return
	}
	doc, err := h.service.Review(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Delete godoc
// @Summary Delete a document
// @Tags Documents
// @Param id path string true "Document ID"
// @Success 204 {object} response.Envelope
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
