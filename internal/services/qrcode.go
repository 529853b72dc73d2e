package services

import (
	"encoding/base64"
	"fmt"

	"github.com/skip2/go-qrcode"
)

const DefaultQRSize = 256

// OrderQRCode encodes the order's dashboard URL as a PNG.
func OrderQRCode(baseURL, orderNumber string, size int) ([]byte, error) {
	if orderNumber == "" {
		return nil, fmt.Errorf("order number is required")
	}
	if size <= 0 {
		size = DefaultQRSize
	}
	return qrcode.Encode(OrderURL(baseURL, orderNumber), qrcode.Medium, size)
}

func OrderURL(baseURL, orderNumber string) string {
	return baseURL + "/account/orders/" + orderNumber
}

// PNGDataURI makes a PNG usable in an <img src>.
func PNGDataURI(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
