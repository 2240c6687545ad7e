package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const devJWTSecret = "dev-only-secret-change-me-before-prod"

type Config struct {
	Env  string `env:"APP_ENV" envDefault:"dev"`
	Port int    `env:"PORT" envDefault:"8080"`

	// postgres | memory
	UserStore string `env:"USER_STORE" envDefault:"postgres"`

	DB    DB    `envPrefix:"DB_"`
	JWT   JWT   `envPrefix:"JWT_"`
	Redis Redis `envPrefix:"REDIS_"`
	OTel  OTel  `envPrefix:"OTEL_"`
	Seed  Seed  `envPrefix:"SEED_"`

	BcryptCost int `env:"BCRYPT_COST" envDefault:"10"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	// IPs or CIDRs whose X-Forwarded-For is believed. Empty trusts no proxy,
	// so the rate limiter keys on the peer address.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	// How long /readyz reports shutting_down before listeners close.
	ShutdownDrain time.Duration `env:"SHUTDOWN_DRAIN" envDefault:"5s"`

	AuthRateLimit  int           `env:"AUTH_RATE_LIMIT" envDefault:"20"`
	AuthRateWindow time.Duration `env:"AUTH_RATE_WINDOW" envDefault:"1m"`
	MaxBodyBytes   int64         `env:"MAX_BODY_BYTES" envDefault:"1048576"`
}

type DB struct {
	// URL wins over the individual parts when set.
	URL      string `env:"URL"`
	Host     string `env:"HOST" envDefault:"127.0.0.1"`
	Port     string `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"authgate"`
	Password string `env:"PASSWORD" envDefault:"authgate"`
	Name     string `env:"NAME" envDefault:"authgate"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
}

type JWT struct {
	Secret    string        `env:"SECRET"`
	TTL       time.Duration `env:"TTL" envDefault:"24h"`
	Algorithm string        `env:"ALGORITHM" envDefault:"HS256"`
	Issuer    string        `env:"ISSUER"`
}

type Redis struct {
	// empty Addr keeps revocations in process memory
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type OTel struct {
	Enabled     bool    `env:"ENABLED" envDefault:"false"`
	Endpoint    string  `env:"EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	ServiceName string  `env:"SERVICE_NAME" envDefault:"authgate-api"`
	SampleRatio float64 `env:"SAMPLE_RATIO" envDefault:"1"`
}

type Seed struct {
	Email    string `env:"EMAIL"`
	Password string `env:"PASSWORD"`
	Name     string `env:"NAME" envDefault:"Seed User"`
}

// Load reads .env (if any) and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if cfg.JWT.Secret == "" && cfg.Env != "prod" {
		cfg.JWT.Secret = devJWTSecret
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}

	switch c.UserStore {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("USER_STORE must be postgres or memory, got %q", c.UserStore))
	}

	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Env == "prod" && len(c.JWT.Secret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes in prod"))
	}
	if c.JWT.TTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	switch c.JWT.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("JWT_ALGORITHM must be HS256, HS384 or HS512, got %q", c.JWT.Algorithm))
	}

	// bcrypt.MinCost..bcrypt.MaxCost
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST out of range: %d", c.BcryptCost))
	}

	if c.AuthRateLimit <= 0 || c.AuthRateWindow <= 0 {
		errs = append(errs, errors.New("AUTH_RATE_LIMIT and AUTH_RATE_WINDOW must be positive"))
	}

	if c.OTel.SampleRatio < 0 || c.OTel.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATIO must be within [0, 1], got %v", c.OTel.SampleRatio))
	}

	for _, p := range c.TrustedProxies {
		if net.ParseIP(p) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(p); err != nil {
			errs = append(errs, fmt.Errorf("TRUSTED_PROXIES entry %q is not an IP or CIDR", p))
		}
	}

	if c.ShutdownDrain < 0 {
		errs = append(errs, errors.New("SHUTDOWN_DRAIN must not be negative"))
	}

	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("MAX_BODY_BYTES must be positive"))
	}

	return errors.Join(errs...)
}

// DBURL returns DB_URL or a postgres URL assembled from the DB_* parts.
func (c Config) DBURL() string {
	if c.DB.URL != "" {
		return c.DB.URL
	}

	d := c.DB
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Name + "?sslmode=" + d.SSLMode
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}
