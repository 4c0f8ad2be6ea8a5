package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile      = ".env"
	defaultPort         = "8080"
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 120 * time.Second
	defaultFlatFilePath = "database.json"
	defaultTokenTTL     = 12 * time.Hour
	defaultPayPalAPI    = "https://api-m.sandbox.paypal.com"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	PSP      PSPConfig
	HTTP     HTTPConfig
	Auth     AuthConfig
	Webhooks WebhookConfig
	Notify   NotifyConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// StoreConfig selects the order store backends. An empty Connection means the
// structured backend is never attempted and the flat file carries all data.
type StoreConfig struct {
	Connection   string
	EmulatorHost string
	FlatFilePath string
}

// StructuredEnabled reports whether a structured backend is configured.
func (c StoreConfig) StructuredEnabled() bool {
	return strings.TrimSpace(c.Connection) != ""
}

// PSPConfig collects secrets for payment providers. A provider with missing
// credentials is simply not registered.
type PSPConfig struct {
	StripeAPIKey        string
	StripeWebhookSecret string
	PayPalClientID      string
	PayPalSecret        string
	PayPalBaseURL       string
}

// HTTPConfig groups surface-level HTTP behaviour. An empty origin list allows
// every origin.
type HTTPConfig struct {
	AllowedOrigins []string
}

// AuthConfig carries the session token parameters for the admin surface. The
// seed credentials create a default back-office account on first boot when the
// flat file has no admins yet.
type AuthConfig struct {
	SessionSecret     string
	TokenTTL          time.Duration
	SeedAdminName     string
	SeedAdminEmail    string
	SeedAdminPassword string
}

// WebhookConfig contains webhook security parameters for non-card providers.
type WebhookConfig struct {
	SigningSecret string
}

// NotifyConfig points at the best-effort order notification endpoint.
type NotifyConfig struct {
	WebhookURL string
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values
// in the map take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration by combining defaults, .env
// overrides, and environment variables.
func Load(_ context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Store: StoreConfig{
			Connection:   stringWithDefault(lookup, "API_STORE_CONNECTION", ""),
			EmulatorHost: stringWithDefault(lookup, "API_STORE_EMULATOR_HOST", ""),
			FlatFilePath: stringWithDefault(lookup, "API_STORE_FLATFILE_PATH", defaultFlatFilePath),
		},
		PSP: PSPConfig{
			StripeAPIKey:        stringWithDefault(lookup, "API_STRIPE_API_KEY", ""),
			StripeWebhookSecret: stringWithDefault(lookup, "API_STRIPE_WEBHOOK_SECRET", ""),
			PayPalClientID:      stringWithDefault(lookup, "API_PAYPAL_CLIENT_ID", ""),
			PayPalSecret:        stringWithDefault(lookup, "API_PAYPAL_SECRET", ""),
			PayPalBaseURL:       stringWithDefault(lookup, "API_PAYPAL_BASE_URL", defaultPayPalAPI),
		},
		HTTP: HTTPConfig{
			AllowedOrigins: csvWithDefault(lookup, "API_ALLOWED_ORIGINS"),
		},
		Auth: AuthConfig{
			SessionSecret:     stringWithDefault(lookup, "API_SESSION_SECRET", ""),
			TokenTTL:          durationWithDefault(lookup, "API_SESSION_TOKEN_TTL", defaultTokenTTL),
			SeedAdminName:     stringWithDefault(lookup, "API_SEED_ADMIN_NAME", "Administrator"),
			SeedAdminEmail:    stringWithDefault(lookup, "API_SEED_ADMIN_EMAIL", ""),
			SeedAdminPassword: stringWithDefault(lookup, "API_SEED_ADMIN_PASSWORD", ""),
		},
		Webhooks: WebhookConfig{
			SigningSecret: stringWithDefault(lookup, "API_WEBHOOK_SIGNING_SECRET", ""),
		},
		Notify: NotifyConfig{
			WebhookURL: stringWithDefault(lookup, "API_NOTIFY_WEBHOOK_URL", ""),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if _, err := strconv.Atoi(cfg.Server.Port); err != nil {
		missing = append(missing, "Server.Port")
	}
	if strings.TrimSpace(cfg.Store.FlatFilePath) == "" {
		missing = append(missing, "Store.FlatFilePath")
	}
	if strings.TrimSpace(cfg.Auth.SessionSecret) == "" {
		missing = append(missing, "Auth.SessionSecret")
	}
	if cfg.Auth.TokenTTL <= 0 {
		missing = append(missing, "Auth.TokenTTL")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
