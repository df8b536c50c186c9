package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                     string        `mapstructure:"PORT"`
	Env                      string        `mapstructure:"ENV"`
	LogLevel                 string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL              string        `mapstructure:"DATABASE_URL"`
	DBMaxConns               int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns               int32         `mapstructure:"DB_MIN_CONNS"`
	SecretKey                string        `mapstructure:"SECRET_KEY"`
	Algorithm                string        `mapstructure:"ALGORITHM"`
	AccessTokenExpireMinutes int           `mapstructure:"ACCESS_TOKEN_EXPIRE_MINUTES"`
	CORSOrigins              []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS             float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst           int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout           time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit                string        `mapstructure:"BODY_LIMIT"`
	SentryDSN                string        `mapstructure:"SENTRY_DSN"`
	ActionWebhookURL         string        `mapstructure:"ACTION_WEBHOOK_URL"`
	ActionWebhookSecret      string        `mapstructure:"ACTION_WEBHOOK_SECRET"`
	ActionWebhookTimeout     time.Duration `mapstructure:"ACTION_WEBHOOK_TIMEOUT"`
	ActionWebhookRetries     int           `mapstructure:"ACTION_WEBHOOK_RETRIES"`
	ActionWebhookRetryDelay  time.Duration `mapstructure:"ACTION_WEBHOOK_RETRY_DELAY"`
}

var supportedAlgorithms = map[string]bool{
	"HS256": true,
	"HS384": true,
	"HS512": true,
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("ALGORITHM", "HS256")
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("ACTION_WEBHOOK_TIMEOUT", "5s")
	v.SetDefault("ACTION_WEBHOOK_RETRIES", 2)
	v.SetDefault("ACTION_WEBHOOK_RETRY_DELAY", "500ms")

	for _, key := range []string{
		"PORT", "ENV", "LOG_LEVEL",
		"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"SECRET_KEY", "ALGORITHM", "ACCESS_TOKEN_EXPIRE_MINUTES",
		"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"REQUEST_TIMEOUT", "BODY_LIMIT", "SENTRY_DSN",
		"ACTION_WEBHOOK_URL", "ACTION_WEBHOOK_SECRET", "ACTION_WEBHOOK_TIMEOUT",
		"ACTION_WEBHOOK_RETRIES", "ACTION_WEBHOOK_RETRY_DELAY",
	} {
		_ = v.BindEnv(key)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("SECRET_KEY is required")
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// AccessTokenTTL is the lifetime of issued bearer tokens.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// Validate checks that the configuration is safe to run. Production
// additionally requires a 32-byte secret and an explicit CORS origin list.
func (c *Config) Validate() error {
	if !supportedAlgorithms[c.Algorithm] {
		return fmt.Errorf("ALGORITHM must be one of HS256, HS384, HS512, got %q", c.Algorithm)
	}
	if c.AccessTokenExpireMinutes <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive, got %d", c.AccessTokenExpireMinutes)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative")
	}

	if c.ActionWebhookURL != "" && c.ActionWebhookSecret == "" {
		return fmt.Errorf("ACTION_WEBHOOK_SECRET is required when ACTION_WEBHOOK_URL is set")
	}
	if c.ActionWebhookRetries < 0 {
		return fmt.Errorf("ACTION_WEBHOOK_RETRIES must not be negative")
	}

	if c.IsProduction() {
		if len(c.SecretKey) < 32 {
			return fmt.Errorf("SECRET_KEY must be at least 32 bytes in production")
		}
		for _, o := range c.CORSOrigins {
			if o == "*" {
				return fmt.Errorf("CORS_ORIGINS must not contain \"*\" in production")
			}
		}
	}

	return nil
}
