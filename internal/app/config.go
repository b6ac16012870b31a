package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/trendora/checkout/internal/domain/inventory"
)

// Config holds the complete application configuration, loadable from
// environment variables (CHECKOUT_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string  `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string  `usage:"PostgreSQL connection URL (CHECKOUT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	JWTSecret   string  `usage:"HS256 signing secret for buyer tokens (CHECKOUT_JWT_SECRET)" flag:"jwt-secret"`
	DeliveryFee float64 `default:"10" usage:"Flat delivery fee added to every order" flag:"delivery-fee"`
	Inventory   InventoryConfig
	Reservation ReservationConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// InventoryConfig selects how stock is tracked.
type InventoryConfig struct {
	// Mode is "aggregate" (one counter per product) or "per-variant"
	// (a counter per product and size).
	Mode string `default:"aggregate" usage:"Stock tracking mode: aggregate or per-variant"`
}

// ReservationConfig controls the stale-reservation recovery sweep.
type ReservationConfig struct {
	SweepInterval time.Duration `default:"1m" usage:"How often to sweep for stale reservations" flag:"sweep-interval"`
	Timeout       time.Duration `default:"5m" usage:"Age after which a pending reservation is considered stale" flag:"reservation-timeout"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
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

// InventoryMode returns the configured ledger mode.
func (c *Config) InventoryMode() (inventory.Mode, error) {
	switch c.Inventory.Mode {
	case "", string(inventory.ModeAggregate):
		return inventory.ModeAggregate, nil
	case string(inventory.ModePerVariant):
		return inventory.ModePerVariant, nil
	default:
		return "", errors.Errorf("unknown inventory mode %q", c.Inventory.Mode)
	}
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CHECKOUT",
		Files:     []string{"config.yaml", "/etc/checkout/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set CHECKOUT_DATABASE_URL or DATABASE_URL")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT secret is required: set CHECKOUT_JWT_SECRET")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like DATABASE_URL and PORT
// to the CHECKOUT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
