package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dept-portal-api/internal/service"
	"github.com/noah-isme/dept-portal-api/pkg/response"
)

// NotificationHandler exposes department announcements.
type NotificationHandler struct {
	service *service.NotificationService
}

// NewNotificationHandler constructs the handler.
func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: svc}
}

// List godoc
// @Summary List notifications
// @Description Important notifications first, then newest.
// @Tags Notifications
// @Produce json
// @Param limit query int false "Maximum items"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	items, err := h.service.List(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Post godoc
// @Summary Post a notification
// @Tags Notifications
// @Accept json
// @Produce json
// @Param payload body service.PostNotificationRequest true "Notification"
// @Success 201 {object} response.Envelope
// @Router /notifications [post]
func (h *NotificationHandler) Post(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.PostNotificationRequest
	if !bindJSON(c, &req, "invalid notification payload") {
		return
	}
	n, err := h.service.Post(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, n)
}

// Delete godoc
// @Summary Delete a notification
// @Tags Notifications
// @Param id path string true "Notification ID"
// @Success 204 {object} response.Envelope
// @Router /notifications/{id} [delete]
func (h *NotificationHandler) Delete(c *gin.Context) {
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
