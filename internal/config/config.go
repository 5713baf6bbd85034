package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds every runtime setting, loaded from PRPM_* environment
// variables. main loads .env first (godotenv) so local development only
// needs a single file.
type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	DatabaseDSN string `envconfig:"DB_DSN" required:"true"`

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	GeminiAPIKey string `envconfig:"GEMINI_API_KEY" required:"true"`

	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	CheckoutSuccessURL  string `envconfig:"CHECKOUT_SUCCESS_URL" default:"https://prpm.dev/credits/success"`
	CheckoutCancelURL   string `envconfig:"CHECKOUT_CANCEL_URL" default:"https://prpm.dev/credits"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`

	// Standard runs get the longer timeout; custom-prompt runs carry more
	// system context and are cut off sooner.
	RunTimeout       time.Duration `envconfig:"RUN_TIMEOUT" default:"60s"`
	CustomRunTimeout time.Duration `envconfig:"CUSTOM_RUN_TIMEOUT" default:"30s"`

	RolloverCap int `envconfig:"ROLLOVER_CAP" default:"200"`

	// Cron spec for the billing-cycle boundary job.
	CycleCronSpec string `envconfig:"CYCLE_CRON_SPEC" default:"0 0 1 * *"`

	CORSOrigin string `envconfig:"CORS_ORIGIN" default:"http://localhost:3000"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("PRPM", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	return &cfg, nil
}
