package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

const (
	// StaticHashHeader carries the shared webhook secret verbatim.
	StaticHashHeader = "verif-hash"
	// SignatureHeader carries base64(HMAC-SHA256(secret, raw body)).
	SignatureHeader = "flutterwave-signature"
)

// Headers holds the two webhook authentication headers the gateway may send.
type Headers struct {
	StaticHash string
	Signature  string
}

// Read extracts the webhook authentication headers through a getter with the
// signature of (*fiber.Ctx).Get.
func Read(get func(key string, defaultValue ...string) string) Headers {
	return Headers{StaticHash: get(StaticHashHeader), Signature: get(SignatureHeader)}
}

// Verify reports whether body was sent by the gateway. A present static hash header
// decides on its own; otherwise the HMAC signature header is checked. body must be
// the raw request bytes, never a re-encoded payload.
func Verify(body []byte, h Headers, secret string) bool {
	if secret == "" {
		return false
	}
	if h.StaticHash != "" {
		return subtle.ConstantTimeCompare([]byte(h.StaticHash), []byte(secret)) == 1
	}
	if h.Signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(body, secret)), []byte(h.Signature))
}

// Sign returns the base64 HMAC-SHA256 signature of body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
