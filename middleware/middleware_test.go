// file: middleware/middleware_test.go
//go:build unit
// +build unit

package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"go-button-wars/hal"
	"go-button-wars/logger"
)

func setupRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(mw...)
	router.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/missing", func(c *gin.Context) { c.String(http.StatusNotFound, "no") })
	return router
}

func serve(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", path, nil)
	router.ServeHTTP(w, req)
	return w
}

// Test: every request is logged with its status
func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(io.Discard)

	router := setupRouter(RequestLogger())
	serve(router, "/ok")
	serve(router, "/missing")

	out := buf.String()
	assert.Contains(t, out, `"path":"/ok"`)
	assert.Contains(t, out, `"status":200`)
	assert.Contains(t, out, `"status":404`)
	assert.Contains(t, out, `"level":"warn"`)
}

// Test: without a sim board the route is blocked
func TestSimOnly_NoBoard(t *testing.T) {
	router := setupRouter(SimOnly(nil))
	w := serve(router, "/ok")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "sim backend")
}

// Test: with a sim board the request passes
func TestSimOnly_WithBoard(t *testing.T) {
	router := setupRouter(SimOnly(hal.NewSimBoard(clockwork.NewFakeClock())))
	w := serve(router, "/ok")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}
