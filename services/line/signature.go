package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

const SignatureHeader = "X-Line-Signature"

// Sign returns the base64 HMAC-SHA256 of body keyed by the channel secret.
func Sign(channelSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature authenticates body. An empty
// channel secret is used as-is.
func VerifySignature(channelSecret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	expected := Sign(channelSecret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
