package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// Hmac512 is a function to generate an HMAC-SHA512 hash.
func Hmac512(body, key []byte) string {
	hash := hmac.New(sha512.New, key)
	hash.Write(body)
	return hex.EncodeToString(hash.Sum(nil))
}

// VerifyWebhookSignature checks the x-paystack-signature header against the
// raw webhook body. Events failing this check must be discarded.
func VerifyWebhookSignature(body []byte, signature, secretKey string) bool {
	expected := Hmac512(body, []byte(secretKey))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// WebhookEvent is the envelope delivered to the webhook endpoint. Only the
// reference is consumed; everything else is re-fetched server-side.
type WebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
	} `json:"data"`
}
