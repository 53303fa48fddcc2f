package imagepkg

import (
	"bytes"
	"fmt"
	"image/png"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	MinQRSize     = 64
	MaxQRSize     = 1024
	DefaultQRSize = 256
)

// GenerateQRPNG returns PNG bytes of a QR code for the given text.
func GenerateQRPNG(text string, size int) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("qr content is empty")
	}
	if size < MinQRSize || size > MaxQRSize {
		return nil, fmt.Errorf("qr size %d out of range [%d, %d]", size, MinQRSize, MaxQRSize)
	}
	pngBytes, err := qrcode.Encode(text, qrcode.Medium, size)
	if err != nil {
		return nil, err
	}
	// validate png decode
	if _, err := png.Decode(bytes.NewReader(pngBytes)); err != nil {
		return nil, err
	}
	return pngBytes, nil
}

// OrderTrackingURL is the storefront page a packing-slip QR code points at.
func OrderTrackingURL(baseURL, orderID string) string {
	return strings.TrimRight(baseURL, "/") + "/orders/" + url.PathEscape(orderID)
}
