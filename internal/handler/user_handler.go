package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dept-portal-api/internal/models"
	"github.com/noah-isme/dept-portal-api/internal/service"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
	"github.com/noah-isme/dept-portal-api/pkg/response"
)

// UserHandler handles member registration and administration.
type UserHandler struct {
	service *service.UserService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{service: svc}
}

// ChangeRoleRequest is the payload of PUT /users/:id/role.
type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// Register godoc
// @Summary Register a new member
// @Description Creates an unapproved account. Teachers must pick at least one class.
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body service.RegisterRequest true "Registration"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/register [post]
func (h *UserHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if !bindJSON(c, &req, "invalid registration payload") {
		return
	}

	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, user)
}

// List godoc
// @Summary List members
// @Description List members with pagination and filtering
// @Tags Users
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param role query string false "Role filter"
// @Param approved query bool false "Approval filter"
// @Param search query string false "Accent-insensitive search on name or username"
// @Success 200 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	var filter models.UserFilter

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	if role := c.Query("role"); role != "" {
		parsed, ok := models.ParseRole(role)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown role"))
			return
		}
		filter.Role = parsed
	}
	if approved := c.Query("approved"); approved != "" {
		if val, err := strconv.ParseBool(approved); err == nil {
			filter.Approved = &val
		}
	}
	filter.Search = c.Query("search")

	users, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, users, pagination)
}

// Update godoc
// @Summary Update member
// @Description Management may update assignments. Members may update their own name and email.
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body service.UpdateUserRequest true "Fields to replace"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.UpdateUserRequest
	if !bindJSON(c, &req, "invalid user payload") {
		return
	}

	user, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, user, nil)
}

// Approve godoc
// @Summary Approve member
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users/{id}/approve [post]
func (h *UserHandler) Approve(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	user, err := h.service.Approve(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, user, nil)
}

// ChangeRole godoc
// @Summary Change member role
// @Description Main admins only.
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body ChangeRoleRequest true "New role"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/role [put]
func (h *UserHandler) ChangeRole(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req ChangeRoleRequest
	if !bindJSON(c, &req, "invalid role payload") {
		return
	}
	role, valid := models.ParseRole(req.Role)
	if !valid {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown role"))
		return
	}

	user, err := h.service.ChangeRole(c.Request.Context(), actor, c.Param("id"), role)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, user, nil)
}

// Delete godoc
// @Summary Delete member
// @Description Main admins only. Admins cannot delete themselves.
// @Tags Users
// @Param id path string true "User ID"
// @Success 204 {object} response.Envelope
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
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

// ClassConflict godoc
// @Summary Check class conflict
// @Description Returns the approved member already holding the class label, or null.
// @Tags Users
// @Produce json
// @Param label query string true "Class label"
// @Param userId query string false "Member to ignore"
// @Success 200 {object} response.Envelope
// @Router /users/class-conflicts [get]
func (h *UserHandler) ClassConflict(c *gin.Context) {
	label := strings.TrimSpace(c.Query("label"))
	if label == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "label is required"))
		return
	}

	holder, err := h.service.CheckConflict(c.Request.Context(), c.Query("userId"), label)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"label": label, "conflict": holder != nil, "holder": holder}, nil)
}
