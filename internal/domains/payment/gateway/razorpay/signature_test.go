package razorpay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyPaymentSignature(t *testing.T) {
	const secret = "test_key_secret"
	const orderID = "order_MkWvqzXbGHsA2P"
	const paymentID = "pay_MkWwAbCdEfGh3Q"

	valid := Sign(orderID+"|"+paymentID, secret)

	assert.True(t, VerifyPaymentSignature(orderID, paymentID, valid, secret))
	assert.False(t, VerifyPaymentSignature(orderID, paymentID, valid, "wrong_secret"))
	assert.False(t, VerifyPaymentSignature(orderID, "pay_other", valid, secret))
	assert.False(t, VerifyPaymentSignature(orderID, paymentID, "deadbeef", secret))
	assert.False(t, VerifyPaymentSignature(orderID, paymentID, "", secret))
}

func TestVerifyWebhookSignature(t *testing.T) {
	const secret = "whsec_test"
	body := []byte(`{"event":"payment.captured","payload":{}}`)

	valid := Sign(string(body), secret)

	assert.True(t, VerifyWebhookSignature(body, valid, secret))

	// Signature is over the raw body, any mutation invalidates it
	tampered := []byte(`{"event":"payment.captured","payload":{ }}`)
	assert.False(t, VerifyWebhookSignature(tampered, valid, secret))
	assert.False(t, VerifyWebhookSignature(body, valid, "other_secret"))
}

func TestSignIsDeterministicHex(t *testing.T) {
	sig := Sign("payload", "secret")
	assert.Equal(t, sig, Sign("payload", "secret"))
	assert.Len(t, sig, 64)
}
