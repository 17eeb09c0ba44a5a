package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signatureHeader = "X-Hub-Signature-256"

// verifySignature checks the HMAC-SHA256 signature header against the
// raw request body. The header value is "sha256=" followed by the hex
// digest. Comparison is constant time.
func verifySignature(appSecret string, body []byte, header string) bool {
	if header == "" {
		return false
	}

	provided := strings.TrimPrefix(header, "sha256=")
	if provided == header {
		return false
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(provided)))
}
