package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dept-portal-api/internal/service"
	"github.com/noah-isme/dept-portal-api/pkg/response"
)

// SettingHandler exposes operator settings.
type SettingHandler struct {
	service *service.SettingService
}

// NewSettingHandler constructs the handler.
func NewSettingHandler(svc *service.SettingService) *SettingHandler {
	return &SettingHandler{service: svc}
}

// ClientID godoc
// @Summary Google OAuth client id
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings/client-id [get]
func (h *SettingHandler) ClientID(c *gin.Context) {
	setting, err := h.service.ClientID(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, setting, nil)
}

// UpdateClientID godoc
// @Summary Override the Google OAuth client id
// @Description Main admins only. An empty value restores the configured id.
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body service.UpdateClientIDRequest true "Client id"
// @Success 200 {object} response.Envelope
// @Router /settings/client-id [put]
func (h *SettingHandler) UpdateClientID(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.UpdateClientIDRequest
	if !bindJSON(c, &req, "invalid setting payload") {
		return
	}
	setting, err := h.service.UpdateClientID(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, setting, nil)
}
