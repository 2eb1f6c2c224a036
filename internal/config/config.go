package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	defaultLowStockThreshold = 5

	// DefaultSecretKey is the token signing key used when SECRET_KEY is unset.
	DefaultSecretKey = "changeme"
)

type Config struct {
	Port              string        `mapstructure:"PORT"`
	PostgresURL       string        `mapstructure:"POSTGRES_URL"`
	RedisAddr         string        `mapstructure:"REDIS_ADDR"`
	OrderCacheTTL     time.Duration `mapstructure:"ORDER_CACHE_TTL"`
	KafkaBrokers      string        `mapstructure:"KAFKA_BROKERS"`
	SecretKey         string        `mapstructure:"SECRET_KEY"`
	TokenTTL          time.Duration `mapstructure:"TOKEN_TTL"`
	AdminUsername     string        `mapstructure:"ADMIN_USERNAME"`
	AdminPassword     string        `mapstructure:"ADMIN_PASSWORD"`
	SquareAccessToken string        `mapstructure:"SQUARE_ACCESS_TOKEN"`
	SquareLocationID  string        `mapstructure:"SQUARE_LOCATION_ID"`
	SquareEnv         string        `mapstructure:"SQUARE_ENV"`
	SquareVersion     string        `mapstructure:"SQUARE_VERSION"`
	PaymentTimeout    time.Duration `mapstructure:"PAYMENT_TIMEOUT"`
	LowStockThreshold string        `mapstructure:"LOW_STOCK_THRESHOLD"`
	OTLPEndpoint      string        `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TracingEnabled    bool          `mapstructure:"TRACING_ENABLED"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
}

// Load reads an optional .env file, then the process environment.
// Environment variables always win over values from the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	for _, key := range keys() {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.PostgresURL == "" {
		return nil, errors.New("POSTGRES_URL environment variable is required")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ORDER_CACHE_TTL", 5*time.Minute)
	v.SetDefault("SECRET_KEY", DefaultSecretKey)
	v.SetDefault("TOKEN_TTL", 24*time.Hour)
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("SQUARE_ENV", "sandbox")
	v.SetDefault("SQUARE_VERSION", "2024-07-17")
	v.SetDefault("PAYMENT_TIMEOUT", 10*time.Second)
	v.SetDefault("LOW_STOCK_THRESHOLD", "5")
	v.SetDefault("LOG_LEVEL", "info")
}

// keys lists settings without a default so AutomaticEnv still picks them up on Unmarshal.
func keys() []string {
	return []string{
		"POSTGRES_URL",
		"REDIS_ADDR",
		"KAFKA_BROKERS",
		"ADMIN_PASSWORD",
		"SQUARE_ACCESS_TOKEN",
		"SQUARE_LOCATION_ID",
		"OTEL_EXPORTER_OTLP_ENDPOINT",
		"TRACING_ENABLED",
	}
}

// Brokers splits KAFKA_BROKERS on commas, dropping blanks.
func (c *Config) Brokers() []string {
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// LowStock parses LOW_STOCK_THRESHOLD, falling back to 5 on bad input.
func (c *Config) LowStock() decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(c.LowStockThreshold))
	if err != nil || d.IsNegative() {
		return decimal.NewFromInt(defaultLowStockThreshold)
	}
	return d
}

// UsesDefaultSecret reports whether tokens are signed with the well-known default key.
func (c *Config) UsesDefaultSecret() bool {
	return c.SecretKey == DefaultSecretKey
}

// SquareConfigured reports whether real payment credentials are present.
func (c *Config) SquareConfigured() bool {
	return c.SquareAccessToken != "" && c.SquareLocationID != ""
}

func (c *Config) SquareBaseURL() string {
	if strings.EqualFold(c.SquareEnv, "production") {
		return "https://connect.squareup.com"
	}
	return "https://connect.squareupsandbox.com"
}
