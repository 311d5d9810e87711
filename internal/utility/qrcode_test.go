package utility

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAndParseTicketQRPayload(t *testing.T) {
	payload := BuildTicketQRPayload("code-1", "order-1", "event-1", "sig-1")

	code, orderID, eventID, sig, err := ParseTicketQRPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, "code-1", code)
	assert.Equal(t, "order-1", orderID)
	assert.Equal(t, "event-1", eventID)
	assert.Equal(t, "sig-1", sig)
}

func TestParseTicketQRPayload_Invalid(t *testing.T) {
	cases := []string{
		"",
		"TICKET|only|three|parts",
		"BADPREFIX|a|b|c|d",
		"TICKET||b|c|d",
		"TICKET|a|b|c|",
	}

	for _, payload := range cases {
		_, _, _, _, err := ParseTicketQRPayload(payload)
		assert.Error(t, err, "payload %q should not parse", payload)
	}
}

func TestGenerateQRCode(t *testing.T) {
	encoded, err := GenerateQRCode("TICKET|code|order|event|sig")
	require.NoError(t, err)

	pngBytes, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	// PNG magic header
	require.True(t, len(pngBytes) > 8)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, pngBytes[:4])
}
