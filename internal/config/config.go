package config // package config loads application configuration from environment variables

import (
	"log" // log is used to report configuration errors and halt execution
	"os"  // os provides access to environment variables

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers, secrets and URLs.
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	DBUser    string // database username
	DBPass    string // database password (optional)
	DBHost    string // database host address
	DBPort    string // database port number
	DBName    string // database name
	JWTSecret string // secret used to verify access tokens

	// Payment gateway settings.  The webhook secret is a pre-shared value
	// carried in the Authorization header of gateway callbacks; requests
	// without it are rejected before any state is read.
	VippsBaseURL         string // base URL of the ePayment API
	VippsClientID        string // merchant client id for token acquisition
	VippsClientSecret    string // merchant client secret for token acquisition
	VippsSubscriptionKey string // Ocp-Apim-Subscription-Key sent on every call
	WebhookSecret        string // shared secret expected on inbound webhooks
	PaymentReturnURL     string // URL the gateway redirects the payer back to

	RabbitURL string // AMQP broker URL for notification delivery (optional)
}

// Load reads configuration values from environment variables and returns a
// Config.  A local .env file is loaded first when present so development
// setups do not need to export everything by hand.  Required variables are
// enforced by must() and missing values cause the program to exit with a
// fatal log message.
func Load() Config {
	_ = godotenv.Load() // best effort; production sets real env vars

	return Config{
		Env:       must("APP_ENV"),
		Port:      must("APP_PORT"),
		DBUser:    must("DB_USER"),
		DBPass:    os.Getenv("DB_PASS"), // empty allowed
		DBHost:    must("DB_HOST"),
		DBPort:    must("DB_PORT"),
		DBName:    must("DB_NAME"),
		JWTSecret: must("JWT_SECRET"),

		VippsBaseURL:         must("VIPPS_BASE_URL"),
		VippsClientID:        must("VIPPS_CLIENT_ID"),
		VippsClientSecret:    must("VIPPS_CLIENT_SECRET"),
		VippsSubscriptionKey: must("VIPPS_SUBSCRIPTION_KEY"),
		WebhookSecret:        must("VIPPS_WEBHOOK_SECRET"),
		PaymentReturnURL:     must("PAYMENT_RETURN_URL"),

		RabbitURL: os.Getenv("RABBITMQ_URL"), // empty disables email delivery
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
