package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dept-portal-api/internal/middleware"
	"github.com/noah-isme/dept-portal-api/internal/service"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
	"github.com/noah-isme/dept-portal-api/pkg/response"
)

// actorFromContext resolves the caller. It writes a 401 and returns false
// when the request carries no verified claims.
func actorFromContext(c *gin.Context) (service.Actor, bool) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return service.Actor{}, false
	}
	return service.ActorFromClaims(claims), true
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

// queryInt reads an optional integer query parameter. Malformed values
// are reported as validation errors.
func queryInt(c *gin.Context, key string) (int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, key+" must be a number"))
		return 0, false
	}
	return v, true
}
