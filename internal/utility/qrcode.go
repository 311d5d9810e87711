package utility

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
)

// GenerateQRCode renders the payload as a QR PNG and returns it base64 encoded
func GenerateQRCode(data string) (string, error) {
	qr, err := qrcode.New(data, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to generate QR code: %w", err)
	}

	pngBytes, err := qr.PNG(256)
	if err != nil {
		return "", fmt.Errorf("failed to convert QR to PNG: %w", err)
	}

	return base64.StdEncoding.EncodeToString(pngBytes), nil
}

// BuildTicketQRPayload creates the data string embedded in a ticket QR code.
// Format: TICKET|{code}|{order_id}|{event_id}|{qr_sig}
// Gate-side scanners split the payload and verify the signature offline.
func BuildTicketQRPayload(code, orderID, eventID, qrSig string) string {
	return fmt.Sprintf("TICKET|%s|%s|%s|%s", code, orderID, eventID, qrSig)
}

// ParseTicketQRPayload parses a scanned QR payload back into its fields
func ParseTicketQRPayload(payload string) (code, orderID, eventID, qrSig string, err error) {
	parts := strings.Split(payload, "|")
	if len(parts) != 5 || parts[0] != "TICKET" {
		return "", "", "", "", errors.New("invalid QR payload format")
	}
	if parts[1] == "" || parts[2] == "" || parts[3] == "" || parts[4] == "" {
		return "", "", "", "", errors.New("invalid QR payload fields")
	}
	return parts[1], parts[2], parts[3], parts[4], nil
}
