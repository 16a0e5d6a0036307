package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func request(allowed []string, method, origin string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(allowed))
	r.Any("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, "/", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestCORSExactAndWildcard(t *testing.T) {
	allowed := []string{"https://portal.thcs.edu.vn/", "https://*.pages.dev"}

	w := request(allowed, http.MethodGet, "https://portal.thcs.edu.vn")
	assert.Equal(t, "https://portal.thcs.edu.vn", w.Header().Get("Access-Control-Allow-Origin"))

	w = request(allowed, http.MethodGet, "https://preview-1.pages.dev")
	assert.Equal(t, "https://preview-1.pages.dev", w.Header().Get("Access-Control-Allow-Origin"))

	w = request(allowed, http.MethodGet, "https://evil.example.com")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	w := request(nil, http.MethodOptions, "https://anything.example")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://anything.example", w.Header().Get("Access-Control-Allow-Origin"))
}
