package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the entire application configuration.
// Populated from environment variables.
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Gateway   GatewayConfig
	Services  ServicesConfig
	MinIO     MinIOConfig
	Billing   BillingConfig
	Lifecycle LifecycleConfig
	Jobs      JobConfig
}

type AppConfig struct {
	Name               string
	Environment        string // development, staging, production
	Port               string
	Version            string
	Timezone           string // business timezone for document numbering and windows
	InternalServiceKey string // shared secret for service-to-service calls
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Host     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

// GatewayConfig holds the payment-gateway credentials.
// KeySecret signs order verification, WebhookSecret signs webhook bodies.
type GatewayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	APIURL        string
	Timeout       time.Duration
}

// ServicesConfig holds base URLs and timeouts for the external collaborators.
type ServicesConfig struct {
	CatalogURL      string
	PricingURL      string
	InventoryURL    string
	ShippingURL     string
	NotificationURL string

	DefaultTimeout time.Duration

	// Dev fallback: skip the shipping service and quote a flat 50 INR rate.
	ShippingBypassMode bool
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// BillingConfig identifies the seller printed on tax invoices.
type BillingConfig struct {
	SellerName    string
	SellerAddress string
	SellerGSTIN   string
}

// LifecycleConfig holds the business-window knobs.
type LifecycleConfig struct {
	CartExpiryDays              int
	CheckoutExpiryMinutes       int
	ReservationMinutes          int
	PaymentTimeoutMinutes       int
	ReturnWindowDays            int
	OrderAutoConfirmHours       int
	ReconciliationWindowHours   int
	AbandonedReminderAfterHours int
	AbandonedReminderMaxHours   int
}

// JobConfig bounds the per-run work of scheduled jobs.
type JobConfig struct {
	BatchLimit int
}

// Load reads config from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:               getEnv("APP_NAME", "Orderflow API"),
			Environment:        getEnv("APP_ENV", "development"),
			Port:               getEnv("APP_PORT", "8080"),
			Version:            getEnv("APP_VERSION", "1.0.0"),
			Timezone:           getEnv("APP_TIMEZONE", "Asia/Kolkata"),
			InternalServiceKey: getEnv("INTERNAL_SERVICE_KEY", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "orderflow"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 25),
			MinConns: getEnvInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		},
		Gateway: GatewayConfig{
			KeyID:         getEnv("GATEWAY_KEY_ID", ""),
			KeySecret:     getEnv("GATEWAY_KEY_SECRET", ""),
			WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
			APIURL:        getEnv("GATEWAY_API_URL", "https://api.razorpay.com"),
			Timeout:       getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second),
		},
		Services: ServicesConfig{
			CatalogURL:         getEnv("CATALOG_SERVICE_URL", "http://localhost:8081"),
			PricingURL:         getEnv("PRICING_SERVICE_URL", "http://localhost:8082"),
			InventoryURL:       getEnv("INVENTORY_SERVICE_URL", "http://localhost:8083"),
			ShippingURL:        getEnv("SHIPPING_SERVICE_URL", "http://localhost:8084"),
			NotificationURL:    getEnv("NOTIFICATION_SERVICE_URL", "http://localhost:8085"),
			DefaultTimeout:     getEnvDuration("SERVICE_TIMEOUT", 3*time.Second),
			ShippingBypassMode: getEnvBool("SHIPPING_BYPASS_MODE", false),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    getEnv("MINIO_BUCKET", "invoices"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Billing: BillingConfig{
			SellerName:    getEnv("BILLING_SELLER_NAME", "Orderflow Retail Pvt Ltd"),
			SellerAddress: getEnv("BILLING_SELLER_ADDRESS", ""),
			SellerGSTIN:   getEnv("BILLING_SELLER_GSTIN", ""),
		},
		Lifecycle: LifecycleConfig{
			CartExpiryDays:              getEnvInt("CART_EXPIRY_DAYS", 30),
			CheckoutExpiryMinutes:       getEnvInt("CHECKOUT_EXPIRY_MINUTES", 30),
			ReservationMinutes:          getEnvInt("INVENTORY_RESERVATION_MINUTES", 30),
			PaymentTimeoutMinutes:       getEnvInt("PAYMENT_TIMEOUT_MINUTES", 15),
			ReturnWindowDays:            getEnvInt("RETURN_WINDOW_DAYS", 7),
			OrderAutoConfirmHours:       getEnvInt("ORDER_AUTO_CONFIRM_HOURS", 6),
			ReconciliationWindowHours:   getEnvInt("PAYMENT_RECONCILIATION_WINDOW_HOURS", 48),
			AbandonedReminderAfterHours: getEnvInt("ABANDONED_REMINDER_AFTER_HOURS", 24),
			AbandonedReminderMaxHours:   getEnvInt("ABANDONED_REMINDER_MAX_HOURS", 72),
		},
		Jobs: JobConfig{
			BatchLimit: getEnvInt("JOB_BATCH_LIMIT", 100),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks production-critical settings
func (c *Config) Validate() error {
	if c.App.Environment == "production" {
		if c.JWT.Secret == "your-secret-key-change-in-production" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD must be set in production")
		}
		if c.App.InternalServiceKey == "" {
			return fmt.Errorf("INTERNAL_SERVICE_KEY must be set in production")
		}
		if c.Gateway.WebhookSecret == "" {
			return fmt.Errorf("WEBHOOK_SECRET must be set in production")
		}
		if c.Gateway.KeySecret == "" {
			fmt.Println("WARNING: Gateway key secret not set - online payment will not work")
		}
	}

	return nil
}

// BusinessLocation resolves the configured business timezone.
func (c *Config) BusinessLocation() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
