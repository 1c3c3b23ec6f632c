package razorpay

import "time"

// =====================================================
// RAZORPAY CONFIGURATION
// =====================================================

type Config struct {
	KeyID         string        // Public key, shared with the frontend widget
	KeySecret     string        // Secret for API auth and callback signatures
	WebhookSecret string        // Separate secret for webhook signatures
	APIURL        string        // https://api.razorpay.com
	Timeout       time.Duration // HTTP timeout per call
}

func NewConfig(keyID, keySecret, webhookSecret, apiURL string, timeout time.Duration) *Config {
	if apiURL == "" {
		apiURL = "https://api.razorpay.com"
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Config{
		KeyID:         keyID,
		KeySecret:     keySecret,
		WebhookSecret: webhookSecret,
		APIURL:        apiURL,
		Timeout:       timeout,
	}
}

// OrdersURL returns the order creation endpoint.
func (c *Config) OrdersURL() string {
	return c.APIURL + "/v1/orders"
}

// PaymentURL returns the fetch endpoint for one payment.
func (c *Config) PaymentURL(paymentID string) string {
	return c.APIURL + "/v1/payments/" + paymentID
}

// RefundURL returns the refund endpoint for one payment.
func (c *Config) RefundURL(paymentID string) string {
	return c.APIURL + "/v1/payments/" + paymentID + "/refund"
}
