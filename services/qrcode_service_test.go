// file: services/qrcode_service_test.go
//go:build unit
// +build unit

package services

import (
	"bytes"
	"errors"
	"testing"

	"github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock encoder function (successful)
func mockQRCodeEncoderSuccess(content string, level qrcode.RecoveryLevel, size int) ([]byte, error) {
	return []byte("qr:" + content), nil
}

// Mock encoder function (failure)
func mockQRCodeEncoderFailure(content string, level qrcode.RecoveryLevel, size int) ([]byte, error) {
	return nil, errors.New("QR code generation failed")
}

// Test: Generate QR Code Successfully
func TestGenerateQRCode_Success(t *testing.T) {
	data, err := GenerateQRCode("http://pi.local:8080/telemetry", 200, mockQRCodeEncoderSuccess)

	assert.NoError(t, err)
	assert.Equal(t, "qr:http://pi.local:8080/telemetry", string(data))
}

// Test: Fail QR Code Generation Due to Invalid Size
func TestGenerateQRCode_InvalidSize(t *testing.T) {
	data, err := GenerateQRCode("http://x", -100, mockQRCodeEncoderSuccess)

	assert.Error(t, err)
	assert.Nil(t, data)
	assert.Equal(t, "invalid size: must be positive", err.Error())
}

// Test: QR Code Generation Fails Due to Encoder Error
func TestGenerateQRCode_EncoderFails(t *testing.T) {
	data, err := GenerateQRCode("http://x", 200, mockQRCodeEncoderFailure)

	assert.Error(t, err)
	assert.Nil(t, data)
	assert.Equal(t, "QR code generation failed", err.Error())
}

// Test: the default encoder produces a PNG
func TestGenerateQRCode_RealPNG(t *testing.T) {
	data, err := GenerateQRCode("http://localhost:8080", 128, nil)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}
