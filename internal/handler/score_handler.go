package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dept-portal-api/internal/models"
	"github.com/noah-isme/dept-portal-api/internal/service"
	"github.com/noah-isme/dept-portal-api/pkg/response"
)

// ScoreHandler exposes the merit sheet.
type ScoreHandler struct {
	service *service.ScoreService
}

// NewScoreHandler constructs the handler.
func NewScoreHandler(svc *service.ScoreService) *ScoreHandler {
	return &ScoreHandler{service: svc}
}

// Table godoc
// @Summary Ranked score table
// @Tags Scores
// @Produce json
// @Param period query string false "HKI, HKII or Cả năm"
// @Success 200 {object} response.Envelope
// @Router /scores [get]
func (h *ScoreHandler) Table(c *gin.Context) {
	table, err := h.service.Table(c.Request.Context(), c.DefaultQuery("period", models.ScorePeriodHKI))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, table, nil)
}

// Upsert godoc
// @Summary Update a teacher's scores
// @Description Merges the given fields into the row of (teacher, period).
// @Tags Scores
// @Accept json
// @Produce json
// @Param teacherId path string true "Teacher ID"
// @Param period query string false "HKI, HKII or Cả năm"
// @Param payload body map[string]number true "Score fields"
// @Success 200 {object} response.Envelope
// @Router /scores/{teacherId} [put]
func (h *ScoreHandler) Upsert(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var values service.ScoreValues
	if !bindJSON(c, &values, "invalid score payload") {
		return
	}
	row, err := h.service.Upsert(c.Request.Context(), actor, c.Param("teacherId"), c.DefaultQuery("period", models.ScorePeriodHKI), values)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, row, nil)
}

// Export godoc
// @Summary Export the score table
// @Tags Scores
// @Produce json
// @Param period query string false "HKI, HKII or Cả năm"
// @Param format query string false "xlsx or csv"
// @Success 201 {object} response.Envelope
// @Router /scores/export [post]
func (h *ScoreHandler) Export(c *gin.Context) {
	result, err := h.service.Export(c.Request.Context(), c.DefaultQuery("period", models.ScorePeriodHKI), c.DefaultQuery("format", "xlsx"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}
