package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// =====================================================
// RAZORPAY SIGNATURE VERIFICATION
// =====================================================

// Sign computes the hex HMAC-SHA256 of payload with secret.
func Sign(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPaymentSignature checks the frontend callback signature.
// The signed payload is "<gatewayOrderID>|<gatewayPaymentID>" and the
// comparison is constant time.
func VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature, keySecret string) bool {
	expected := Sign(gatewayOrderID+"|"+gatewayPaymentID, keySecret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature checks the X-Signature header against the hex
// HMAC-SHA256 of the raw request body.
func VerifyWebhookSignature(body []byte, signature, webhookSecret string) bool {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
