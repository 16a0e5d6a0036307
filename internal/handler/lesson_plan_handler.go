package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dept-portal-api/internal/models"
	"github.com/noah-isme/dept-portal-api/internal/service"
	"github.com/noah-isme/dept-portal-api/pkg/response"
)

// LessonPlanHandler exposes lesson-plan review comments.
type LessonPlanHandler struct {
	service *service.LessonPlanService
}

// NewLessonPlanHandler constructs the handler.
func NewLessonPlanHandler(svc *service.LessonPlanService) *LessonPlanHandler {
	return &LessonPlanHandler{service: svc}
}

// List godoc
// @Summary List lesson-plan reviews
// @Tags LessonPlans
// @Produce json
// @Param week query int false "Week"
// @Param teacherId query string false "Teacher"
// @Success 200 {object} response.Envelope
// @Router /lesson-plans [get]
func (h *LessonPlanHandler) List(c *gin.Context) {
	filter, ok := lessonPlanFilter(c)
	if !ok {
		return
	}
	reviews, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reviews, nil)
}

// AddComment godoc
// @Summary Comment on a lesson plan
// @Tags LessonPlans
// @Accept json
// @Produce json
// @Param payload body service.AddCommentRequest true "Comment"
// @Success 200 {object} response.Envelope
// @Router /lesson-plans/comments [post]
func (h *LessonPlanHandler) AddComment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.AddCommentRequest
	if !bindJSON(c, &req, "invalid comment payload") {
		return
	}
	review, err := h.service.AddComment(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, review, nil)
}

// DeleteComment godoc
// @Summary Delete a review comment
// @Tags LessonPlans
// @Produce json
// @Param id path string true "Review ID"
// @Param commentId path string true "Comment ID"
// @Success 200 {object} response.Envelope
// @Router /lesson-plans/{id}/comments/{commentId} [delete]
func (h *LessonPlanHandler) DeleteComment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	review, err := h.service.DeleteComment(c.Request.Context(), actor, c.Param("id"), c.Param("commentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, review, nil)
}

// Export godoc
// @Summary Export reviews as PDF
// @Tags LessonPlans
// @Produce json
// @Param week query int false "Week"
// @Param teacherId query string false "Teacher"
// @Success 201 {object} response.Envelope
// @Router /lesson-plans/export [post]
func (h *LessonPlanHandler) Export(c *gin.Context) {
	filter, ok := lessonPlanFilter(c)
	if !ok {
		return
	}
	result, err := h.service.Export(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

func lessonPlanFilter(c *gin.Context) (models.LessonPlanFilter, bool) {
	week, ok := queryInt(c, "week")
	if !ok {
		return models.LessonPlanFilter{}, false
	}
	return models.LessonPlanFilter{Week: week, TeacherID: c.Query("teacherId")}, true
}
