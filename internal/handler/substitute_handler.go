package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dept-portal-api/internal/models"
	"github.com/noah-isme/dept-portal-api/internal/service"
	"github.com/noah-isme/dept-portal-api/pkg/response"
)

// SubstituteHandler exposes absence registration and the substitute market.
type SubstituteHandler struct {
	service *service.SubstituteService
}

// NewSubstituteHandler constructs the handler.
func NewSubstituteHandler(svc *service.SubstituteService) *SubstituteHandler {
	return &SubstituteHandler{service: svc}
}

// List godoc
// @Summary List substitute requests
// @Tags Substitutes
// @Produce json
// @Param status query string false "Pending, Approved or Rejected"
// @Param teacherId query string false "Absent or substitute teacher"
// @Param from query string false "From date"
// @Param to query string false "To date"
// @Success 200 {object} response.Envelope
// @Router /substitutes [get]
func (h *SubstituteHandler) List(c *gin.Context) {
	filter := models.SubstituteFilter{
		Status:    models.SubstituteStatus(c.Query("status")),
		TeacherID: c.Query("teacherId"),
		From:      c.Query("from"),
		To:        c.Query("to"),
	}
	items, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Market godoc
// @Summary Open substitute market
// @Tags Substitutes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /substitutes/market [get]
func (h *SubstituteHandler) Market(c *gin.Context) {
	h.listFor(c, h.service.Market)
}

// MyAbsences godoc
// @Summary My absence requests
// @Tags Substitutes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /substitutes/mine/absences [get]
func (h *SubstituteHandler) MyAbsences(c *gin.Context) {
	h.listFor(c, h.service.MyAbsences)
}

// MySubstitutions godoc
// @Summary Requests I accepted
// @Tags Substitutes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /substitutes/mine/substitutions [get]
func (h *SubstituteHandler) MySubstitutions(c *gin.Context) {
	h.listFor(c, h.service.MySubstitutions)
}

// Affected godoc
// @Summary Preview affected lessons
// @Tags Substitutes
// @Produce json
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param session query string true "Morning, Afternoon or AllDay"
// @Success 200 {object} response.Envelope
// @Router /substitutes/affected [get]
func (h *SubstituteHandler) Affected(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	items, err := h.service.Affected(c.Request.Context(), actor, c.Query("date"), models.Session(c.DefaultQuery("session", string(models.SessionAllDay))))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// RegisterAbsence godoc
// @Summary Register an absence
// @Description Opens one request per affected lesson. Partial failures return 207 with per-slot outcomes.
// @Tags Substitutes
// @Accept json
// @Produce json
// @Param payload body service.RegisterAbsenceRequest true "Absence"
// @Success 201 {object} response.Envelope
// @Success 207 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /substitutes/absences [post]
func (h *SubstituteHandler) RegisterAbsence(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.RegisterAbsenceRequest
	if !bindJSON(c, &req, "invalid absence payload") {
		return
	}
	result, err := h.service.RegisterAbsence(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusCreated
	if len(result.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	response.JSON(c, status, result, nil)
}

// Accept godoc
// @Summary Accept a substitution
// @Tags Substitutes
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /substitutes/{id}/accept [post]
func (h *SubstituteHandler) Accept(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	req, err := h.service.Accept(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// Cancel godoc
// @Summary Cancel an open request
// @Tags Substitutes
// @Param id path string true "Request ID"
// @Success 204 {object} response.Envelope
// @Router /substitutes/{id} [delete]
func (h *SubstituteHandler) Cancel(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Cancel(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Review godoc
// @Summary Review a request
// @Tags Substitutes
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body service.ReviewSubstituteRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /substitutes/{id}/review [patch]
func (h *SubstituteHandler) Review(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.ReviewSubstituteRequest
	if !bindJSON(c, &req, "invalid review payload") {
		return
	}
	updated, err := h.service.Review(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// Points godoc
// @Summary Substitution points per teacher
// @Tags Substitutes
// @Produce json
// @Param from query string false "From date"
// @Param to query string false "To date"
// @Success 200 {object} response.Envelope
// @Router /substitutes/points [get]
func (h *SubstituteHandler) Points(c *gin.Context) {
	points, err := h.service.Points(c.Request.Context(), c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, points, nil)
}

func (h *SubstituteHandler) listFor(c *gin.Context, load func(ctx context.Context, actor service.Actor) ([]models.SubstituteRequest, error)) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	items, err := load(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
