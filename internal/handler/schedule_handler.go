package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dept-portal-api/internal/models"
	"github.com/noah-isme/dept-portal-api/internal/service"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
	"github.com/noah-isme/dept-portal-api/pkg/response"
)

// ScheduleHandler exposes weekly teaching slots.
type ScheduleHandler struct {
	service *service.ScheduleService
}

// NewScheduleHandler constructs the handler.
func NewScheduleHandler(svc *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// List godoc
// @Summary List schedule slots
// @Tags Schedule
// @Produce json
// @Param teacherId query string false "Teacher"
// @Param dayOfWeek query int false "School day 2-8"
// @Param session query string false "Morning or Afternoon"
// @Success 200 {object} response.Envelope
// @Router /schedule [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	day, ok := queryInt(c, "dayOfWeek")
	if !ok {
		return
	}
	filter := models.ScheduleFilter{
		TeacherID: c.Query("teacherId"),
		DayOfWeek: day,
		Session:   models.Session(c.Query("session")),
	}
	if filter.Session != "" && !filter.Session.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "session must be Morning or Afternoon"))
		return
	}

	items, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Mine godoc
// @Summary My schedule
// @Tags Schedule
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schedule/me [get]
func (h *ScheduleHandler) Mine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	items, err := h.service.Mine(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Save godoc
// @Summary Save schedule slot
// @Description Creates or replaces the slot at (teacher, day, period, session).
// @Tags Schedule
// @Accept json
// @Produce json
// @Param payload body service.SaveSlotRequest true "Slot"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedule [post]
func (h *ScheduleHandler) Save(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.SaveSlotRequest
	if !bindJSON(c, &req, "invalid slot payload") {
		return
	}
	item, err := h.service.Save(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete schedule slot
// @Tags Schedule
// @Param id path string true "Slot ID"
// @Success 204 {object} response.Envelope
// @Router /schedule/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
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
