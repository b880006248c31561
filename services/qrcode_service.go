// services/qrcode_service.go
package services

import (
	"errors"

	"github.com/skip2/go-qrcode"
)

// QRCodeEncoder matches qrcode.Encode so tests can swap it.
type QRCodeEncoder func(content string, level qrcode.RecoveryLevel, size int) ([]byte, error)

// DefaultQRCodeEncoder renders real PNGs.
var DefaultQRCodeEncoder QRCodeEncoder = qrcode.Encode

// GenerateQRCode renders content (normally the telemetry page URL) as a
// size x size PNG.
func GenerateQRCode(content string, size int, encode QRCodeEncoder) ([]byte, error) {
	if size <= 0 {
		return nil, errors.New("invalid size: must be positive")
	}
	if content == "" {
		return nil, errors.New("nothing to encode")
	}
	if encode == nil {
		encode = DefaultQRCodeEncoder
	}
	png, err := encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, err
	}
	return png, nil
}
