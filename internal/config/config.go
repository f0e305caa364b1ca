// Package config loads runtime configuration from the environment.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the API server and learnifyctl.
type Config struct {
	Port       int    `env:"PORT,default=8080"`
	Env        string `env:"APP_ENV,default=development"`
	DBPath     string `env:"DB_PATH,default=./data/learnify.db"`
	AppBaseURL string `env:"APP_BASE_URL,default=http://localhost:3000"`

	// CookieSecure is nil when unset; see SecureCookies.
	CookieSecure       *bool         `env:"COOKIE_SECURE,noinit"`
	SessionTTL         time.Duration `env:"SESSION_TTL,default=168h"`
	AllowedOrigins     []string      `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:3000"`
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE,default=60"`

	SMTP SMTP

	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	GitHubRedirectURL  string `env:"GITHUB_REDIRECT_URL"`
	StateSigningKey    string `env:"STATE_SIGNING_KEY"`

	GeneratorURL   string `env:"GENERATOR_URL"`
	VideoSearchURL string `env:"VIDEO_SEARCH_URL"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// SMTP is kept as raw strings so a missing or bad value can be reported
// by name when a notification is attempted, instead of failing startup.
type SMTP struct {
	Host           string `env:"SMTP_HOST"`
	Port           string `env:"SMTP_PORT"`
	User           string `env:"SMTP_USER"`
	Pass           string `env:"SMTP_PASS"`
	From           string `env:"SMTP_FROM"`
	ProfessorEmail string `env:"PROFESSOR_EMAIL"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(ctx context.Context) (Config, error) {
	_ = godotenv.Load()
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("config: SESSION_TTL must be positive")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("config: RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.GitHubEnabled() && len(c.StateSigningKey) < 16 {
		return fmt.Errorf("config: STATE_SIGNING_KEY must be at least 16 characters when GitHub sign-in is configured")
	}
	return nil
}

func (c Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// SecureCookies reports whether cookies get the Secure flag: COOKIE_SECURE
// when set, otherwise on in production only.
func (c Config) SecureCookies() bool {
	if c.CookieSecure != nil {
		return *c.CookieSecure
	}
	return c.Production()
}

// GitHubEnabled reports whether "Sign in with GitHub" is configured.
func (c Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// ReviewLink is the front-end URL a professor opens for a raw review token.
func (c Config) ReviewLink(rawToken string) string {
	return strings.TrimRight(c.AppBaseURL, "/") + "/verify/" + rawToken
}
