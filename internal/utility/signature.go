package utility

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SignTicket computes the QR signature for a ticket:
// HMAC-SHA256(secret, code:orderID:eventID) as lowercase hex.
func SignTicket(secret, code, orderID, eventID string) string {
	h := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(h, "%s:%s:%s", code, orderID, eventID)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyTicketSignature re-derives the ticket signature and compares
// in constant time to prevent timing attacks.
func VerifyTicketSignature(secret, code, orderID, eventID, signature string) bool {
	expected := SignTicket(secret, code, orderID, eventID)
	return hmac.Equal([]byte(signature), []byte(expected))
}
