package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"github.com/xenking/storefront/pkg/httpmiddleware"
)

const defaultAddr = "0.0.0.0:8080"

// Config is loaded from STOREFRONT_* environment variables, flags and YAML
// files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (STOREFRONT_DATABASE_URL, DATABASE_URL or SUPABASE_DATABASE_URL)" flag:"database-url"`
	DB          DBConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
	RateLimit   RateLimitConfig
	Events      EventsConfig
	Pagination  PaginationConfig
}

// DBConfig sizes the pgx pool.
type DBConfig struct {
	MaxConns        int32         `default:"20" usage:"Maximum pool connections" flag:"db-max-conns"`
	MinConns        int32         `default:"2" usage:"Minimum idle pool connections" flag:"db-min-conns"`
	MaxConnLifetime time.Duration `default:"30m" usage:"Maximum connection lifetime" flag:"db-max-conn-lifetime"`
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

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max            int           `default:"100" usage:"Max requests per window per client, 0 disables" flag:"rate-limit-max"`
	Window         time.Duration `default:"1m" usage:"Rate limit window duration" flag:"rate-limit-window"`
	TrustForwarded bool          `default:"false" usage:"Identify clients by X-Forwarded-For behind a proxy" flag:"rate-limit-trust-forwarded"`
}

// EventsConfig enables order events. Publishing is off without brokers.
type EventsConfig struct {
	Brokers []string      `usage:"Kafka brokers for order events" flag:"kafka-brokers"`
	Topic   string        `default:"storefront.orders" usage:"Kafka topic for order events" flag:"kafka-topic"`
	Timeout time.Duration `default:"5s" usage:"Publish timeout" flag:"kafka-timeout"`
}

// PaginationConfig bounds order listings.
type PaginationConfig struct {
	DefaultLimit int `default:"100" usage:"Default page size" flag:"page-default-limit"`
	MaxLimit     int `default:"500" usage:"Maximum page size" flag:"page-max-limit"`
}

func (c RateLimitConfig) middleware() httpmiddleware.RateLimitConfig {
	return httpmiddleware.RateLimitConfig{
		Max:            c.Max,
		Window:         c.Window,
		TrustForwarded: c.TrustForwarded,
	}
}

// LoadConfig reads .env (when present), then environment, flags and YAML
// files, and applies platform defaults.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STOREFRONT",
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

// applyPlatformDefaults maps the unprefixed variables set by hosting
// platforms.
func (c *Config) applyPlatformDefaults() {
	for _, key := range []string{"DATABASE_URL", "SUPABASE_DATABASE_URL"} {
		if c.DatabaseURL != "" {
			break
		}
		c.DatabaseURL = os.Getenv(key)
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

// Validate checks invariants aconfig cannot express.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set STOREFRONT_DATABASE_URL or DATABASE_URL")
	}
	if c.Pagination.DefaultLimit <= 0 || c.Pagination.MaxLimit < c.Pagination.DefaultLimit {
		return errors.Errorf("invalid pagination limits: default %d, max %d",
			c.Pagination.DefaultLimit, c.Pagination.MaxLimit)
	}
	if err := c.RateLimit.middleware().Validate(); err != nil {
		return err
	}
	if c.DB.MinConns > c.DB.MaxConns {
		return errors.Errorf("db min conns %d exceeds max conns %d", c.DB.MinConns, c.DB.MaxConns)
	}
	return nil
}
