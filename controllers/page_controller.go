// Package controllers file: controllers/page_controller.go
package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go-button-wars/logger"
	"go-button-wars/services"
)

var (
	ApplicationURL string
	WebsocketURL   string
)

// qrEncoder is overridden in tests.
var qrEncoder = services.DefaultQRCodeEncoder

// Health reports the HTTP surface is up.
func Health(c *gin.Context) {
	logger.Debug().Msg("[Health] Health check requested")
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// telemetryURL is what the QR code points at: the websocket stream if
// configured, otherwise the application's /telemetry route.
func telemetryURL() string {
	if WebsocketURL != "" {
		return WebsocketURL
	}
	base := ApplicationURL
	if base == "" {
		base = "http://localhost:8080"
	}
	return strings.TrimRight(base, "/") + "/telemetry"
}

// GetQRCode serves a PNG QR code of the telemetry URL so a phone can watch the game.
func GetQRCode(c *gin.Context) {
	url := telemetryURL()
	logger.Info().Str("url", url).Msg("[GetQRCode] Generating QR code")

	qrBytes, err := services.GenerateQRCode(url, 300, qrEncoder)
	if err != nil {
		logger.Error().Err(err).Msg("[GetQRCode] Error generating QR code")
		c.String(http.StatusInternalServerError, "QR generation failed")
		return
	}

	c.Header("Content-Disposition", "inline; filename=\"qrcode.png\"")
	c.Data(http.StatusOK, "image/png", qrBytes)
}

// SetConfig sets the public application and websocket URLs.
func SetConfig(appURL, wsURL string) {
	ApplicationURL = appURL
	WebsocketURL = wsURL
	logger.Info().Str("application_url", appURL).Str("websocket_url", wsURL).Msg("[SetConfig] Global config updated")
}
