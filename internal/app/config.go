package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/storage/postgres"
)

const defaultAddr = "0.0.0.0:8080"

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds the complete application configuration, loadable from
// environment variables (STORE_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage     string `default:"postgres" usage:"Storage backend: postgres or memory"`
	DatabaseURL string `usage:"PostgreSQL connection URL (STORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Discount    DiscountConfig
	Checkout    CheckoutConfig
	Admin       AdminConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// DiscountConfig controls milestone code issuance.
type DiscountConfig struct {
	Milestone           int    `default:"5" usage:"Issue a code every N orders"`
	Percentage          string `default:"10" usage:"Percentage off for issued codes"`
	Prefix              string `default:"SAVE10_" usage:"Issued code prefix, followed by the order id"`
	EnforceSingleUnused bool   `default:"false" usage:"Skip checkout issuance while an unused code exists" flag:"enforce-single-unused"`
}

// CheckoutConfig controls checkout transactions.
type CheckoutConfig struct {
	LockTimeout time.Duration `default:"5s" usage:"Row lock wait limit before a checkout fails with a conflict" flag:"lock-timeout"`
	Isolation   string        `default:"read-committed" usage:"Transaction isolation: read-committed, repeatable-read or serializable"`
}

// AdminConfig protects the admin routes. An empty key hash leaves them open.
type AdminConfig struct {
	APIKeyHash   string `usage:"Hex HMAC-SHA256 of the admin API key" flag:"admin-key-hash"`
	APIKeyPepper string `usage:"HMAC pepper for admin API key hashing" flag:"admin-key-pepper"`
}

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, then applies platform defaults and validates the result.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STORE",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided DATABASE_URL and PORT.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set STORE_DATABASE_URL or DATABASE_URL")
		}
	case StorageMemory:
	default:
		return errors.Errorf("unknown storage %q", c.Storage)
	}
	if _, err := c.Policy(); err != nil {
		return errors.Wrap(err, "discount")
	}
	if _, err := postgres.ParseIsolation(c.Checkout.Isolation); err != nil {
		return errors.Wrap(err, "checkout")
	}
	if c.Checkout.LockTimeout < 0 {
		return errors.New("checkout: lock timeout must not be negative")
	}
	if _, err := c.AdminGuard(); err != nil {
		return errors.Wrap(err, "admin")
	}
	return nil
}

// AdminGuard returns the admin API key guard, or nil when none is configured.
func (c *Config) AdminGuard() (*handler.APIKeyGuard, error) {
	if c.Admin.APIKeyHash == "" {
		return nil, nil
	}
	return handler.NewAPIKeyGuard(c.Admin.APIKeyHash, []byte(c.Admin.APIKeyPepper))
}

// Policy returns the validated discount policy.
func (c *Config) Policy() (discount.Policy, error) {
	pct, err := decimal.NewFromString(c.Discount.Percentage)
	if err != nil {
		return discount.Policy{}, errors.Wrap(err, "parse percentage")
	}
	p := discount.Policy{
		Milestone:           c.Discount.Milestone,
		Percentage:          pct,
		Prefix:              c.Discount.Prefix,
		EnforceSingleUnused: c.Discount.EnforceSingleUnused,
	}
	if err := p.Validate(); err != nil {
		return discount.Policy{}, err
	}
	return p, nil
}
