// Package middleware provides request filters for the HTTP surface.
// File: middleware/middleware.go
package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go-button-wars/hal"
	"go-button-wars/logger"
)

// -------------- request logging --------------

// RequestLogger logs one line per request through the process logger.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := logger.Debug()
		if status >= http.StatusInternalServerError {
			ev = logger.Error()
		} else if status >= http.StatusBadRequest {
			ev = logger.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("[RequestLogger] Request handled")
	}
}

// -------------- backend gate --------------

// SimOnly rejects requests unless the simulated backend is running.
func SimOnly(board *hal.SimBoard) gin.HandlerFunc {
	return func(c *gin.Context) {
		if board == nil {
			logger.Warn().Str("path", c.Request.URL.Path).Msg("[SimOnly] Simulated route on real hardware")
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "simulated buttons need the sim backend"})
			return
		}
		c.Next()
	}
}
