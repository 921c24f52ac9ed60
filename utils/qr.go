package utils

import (
	"bytes"
	"image/png"

	"github.com/skip2/go-qrcode"
)

const checkInPrefix = "LABBOOKING:"

// GenerateQRCode returns content encoded as a PNG QR code of size x size pixels.
func GenerateQRCode(content string, size int) ([]byte, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, qr.Image(size)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// CheckInPayload is what a front-desk scanner reads off a booking QR code.
func CheckInPayload(publicCode string) string {
	return checkInPrefix + publicCode
}
