package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dept-portal-api/internal/models"
	"github.com/noah-isme/dept-portal-api/internal/service"
	"github.com/noah-isme/dept-portal-api/pkg/response"
)

// DemoHandler exposes teaching demo registration.
type DemoHandler struct {
	service *service.DemoService
}

// NewDemoHandler constructs the handler.
func NewDemoHandler(svc *service.DemoService) *DemoHandler {
	return &DemoHandler{service: svc}
}

// List godoc
// @Summary List teaching demos
// @Description Each demo carries the stored availability snapshot and the current availability.
// @Tags Demos
// @Produce json
// @Param week query int false "Week"
// @Param teacherId query string false "Teacher"
// @Param from query string false "From date"
// @Param to query string false "To date"
// @Success 200 {object} response.Envelope
// @Router /demos [get]
func (h *DemoHandler) List(c *gin.Context) {
	filter, ok := demoFilter(c)
	if !ok {
		return
	}
	demos, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, demos, nil)
}

// Stats godoc
// @Summary Demo statistics
// @Tags Demos
// @Produce json
// @Param week query int false "Week"
// @Param from query string false "From date"
// @Param to query string false "To date"
// @Success 200 {object} response.Envelope
// @Router /demos/stats [get]
func (h *DemoHandler) Stats(c *gin.Context) {
	filter, ok := demoFilter(c)
	if !ok {
		return
	}
	stats, err := h.service.Stats(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Slots godoc
// @Summary A teacher's lessons on a date
// @Tags Demos
// @Produce json
// @Param teacherId query string false "Teacher, defaults to the caller"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /demos/slots [get]
func (h *DemoHandler) Slots(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	teacherID := c.DefaultQuery("teacherId", actor.ID)
	slots, err := h.service.Slots(c.Request.Context(), teacherID, c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// Available godoc
// @Summary Teachers free at a slot
// @Tags Demos
// @Produce json
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param period query int true "Period 1-5"
// @Param session query string true "Morning or Afternoon"
// @Param teacherId query string false "Demo teacher to exclude"
// @Success 200 {object} response.Envelope
// @Router /demos/available [get]
func (h *DemoHandler) Available(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	period, ok := queryInt(c, "period")
	if !ok {
		return
	}
	users, err := h.service.Available(c.Request.Context(), c.Query("date"), period,
		models.Session(c.Query("session")), c.DefaultQuery("teacherId", actor.ID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, nil)
}

// Register godoc
// @Summary Register a demo
// @Tags Demos
// @Accept json
// @Produce json
// @Param payload body service.RegisterDemoRequest true "Demo"
// @Success 201 {object} response.Envelope
// @Router /demos [post]
func (h *DemoHandler) Register(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.RegisterDemoRequest
	if !bindJSON(c, &req, "invalid demo payload") {
		return
	}
	demo, err := h.service.Register(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, demo)
}

// UpdateStatus godoc
// @Summary Update demo status
// @Tags Demos
// @Accept json
// @Produce json
// @Param id path string true "Demo ID"
// @Param payload body service.UpdateDemoStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Router /demos/{id}/status [patch]
func (h *DemoHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.UpdateDemoStatusRequest
	if !bindJSON(c, &req, "invalid status payload") {
		return
	}
	demo, err := h.service.UpdateStatus(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, demo, nil)
}

// Delete godoc
// @Summary Delete a demo
// @Tags Demos
// @Param id path string true "Demo ID"
// @Success 204 {object} response.Envelope
// @Router /demos/{id} [delete]
func (h *DemoHandler) Delete(c *gin.Context) {
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

func demoFilter(c *gin.Context) (models.DemoFilter, bool) {
	week, ok := queryInt(c, "week")
	if !ok {
		return models.DemoFilter{}, false
	}
	return models.DemoFilter{
		Week:      week,
		TeacherID: c.Query("teacherId"),
		From:      c.Query("from"),
		To:        c.Query("to"),
	}, true
}
