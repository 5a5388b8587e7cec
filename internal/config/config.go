package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendRedis    = "redis"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"production"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Store settings
	StoreBackend   string `envconfig:"STORE_BACKEND" default:"postgres"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	DBAutoMigrate  bool   `envconfig:"DB_AUTO_MIGRATE" default:"false"`
	RedisAddr      string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD"`
	RedisDB        int    `envconfig:"REDIS_DB" default:"0"`
	RedisKeyPrefix string `envconfig:"REDIS_KEY_PREFIX"`

	// Identity provider key material (HMAC secret or PEM public key)
	AuthJWTKey string `envconfig:"AUTH_JWT_KEY" required:"true"`

	// Stripe settings
	StripeSecretKey        string        `envconfig:"STRIPE_SECRET_KEY" required:"true"`
	StripeWebhookSecret    string        `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripeWebhookTolerance time.Duration `envconfig:"STRIPE_WEBHOOK_TOLERANCE" default:"5m"`
	StripePriceID          string        `envconfig:"STRIPE_PRICE_ID" required:"true"`
	StripeSuccessURL       string        `envconfig:"STRIPE_SUCCESS_URL" required:"true"`
	StripeCancelURL        string        `envconfig:"STRIPE_CANCEL_URL" required:"true"`
	StripePortalReturnURL  string        `envconfig:"STRIPE_PORTAL_RETURN_URL"`

	// Anthropic settings
	AnthropicAPIKey  string `envconfig:"ANTHROPIC_API_KEY"`
	AnthropicBaseURL string `envconfig:"ANTHROPIC_BASE_URL" default:"https://api.anthropic.com/v1"`
	AnthropicModel   string `envconfig:"ANTHROPIC_MODEL" default:"claude-3-haiku-20240307"`

	// User API keys go to Secret Manager when a project is set
	GCPProjectID string `envconfig:"GCP_PROJECT_ID"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	switch c.StoreBackend {
	case StoreBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=%s", StoreBackendPostgres)
		}
	case StoreBackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when STORE_BACKEND=%s", StoreBackendRedis)
		}
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}
	if c.StripeWebhookTolerance <= 0 {
		return fmt.Errorf("STRIPE_WEBHOOK_TOLERANCE must be positive")
	}
	return nil
}

// IsDevelopment reports whether the service runs against local infrastructure.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// PortalReturnURL falls back to the checkout success URL.
func (c *Config) PortalReturnURL() string {
	if c.StripePortalReturnURL != "" {
		return c.StripePortalReturnURL
	}
	return c.StripeSuccessURL
}
