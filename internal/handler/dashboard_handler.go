package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dept-portal-api/internal/middleware"
	"github.com/noah-isme/dept-portal-api/internal/models"
	"github.com/noah-isme/dept-portal-api/internal/service"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
	"github.com/noah-isme/dept-portal-api/pkg/response"
)

type dashboardService interface {
	Summary(ctx context.Context, actor service.Actor) (*models.DashboardSummary, bool, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Summary godoc
// @Summary Personal dashboard
// @Description Pending approvals (management), open market, my pending absences, today's lessons, this week's demos and important notifications.
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	summary, cacheHit, err := h.service.Summary(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ResponseMeta(c))
}
