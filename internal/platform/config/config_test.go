package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_SESSION_SECRET": "session-secret",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Store.StructuredEnabled() {
		t.Errorf("expected flat-file-only mode without a store connection")
	}
	if cfg.Store.FlatFilePath != defaultFlatFilePath {
		t.Errorf("expected default flat file path, got %s", cfg.Store.FlatFilePath)
	}
	if len(cfg.HTTP.AllowedOrigins) != 0 {
		t.Errorf("expected no allowed origins, got %v", cfg.HTTP.AllowedOrigins)
	}
	if cfg.Auth.TokenTTL != defaultTokenTTL {
		t.Errorf("unexpected default token ttl: %s", cfg.Auth.TokenTTL)
	}
	if cfg.PSP.PayPalBaseURL != defaultPayPalAPI {
		t.Errorf("unexpected default paypal base url: %s", cfg.PSP.PayPalBaseURL)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":           "9090",
		"API_SERVER_READ_TIMEOUT":   "20s",
		"API_SERVER_WRITE_TIMEOUT":  "25s",
		"API_SERVER_IDLE_TIMEOUT":   "2m",
		"API_STORE_CONNECTION":      "bakery-prod",
		"API_STORE_FLATFILE_PATH":   "/var/lib/bakery/database.json",
		"API_STRIPE_API_KEY":        "sk_test_123",
		"API_STRIPE_WEBHOOK_SECRET": "whsec_123",
		"API_PAYPAL_CLIENT_ID":      "paypal-client",
		"API_PAYPAL_SECRET":         "paypal-secret",
		"API_PAYPAL_BASE_URL":       "https://api-m.paypal.com",
		"API_ALLOWED_ORIGINS":       "https://evansbakery.example, https://admin.evansbakery.example",
		"API_SESSION_SECRET":        "session-secret",
		"API_SESSION_TOKEN_TTL":     "1h",
		"API_WEBHOOK_SIGNING_SECRET": "hook-secret",
		"API_NOTIFY_WEBHOOK_URL":     "https://notify.example/orders",
		"API_SEED_ADMIN_EMAIL":       "owner@evansbakery.example",
		"API_SEED_ADMIN_PASSWORD":    "changeme",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("unexpected port: %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if !cfg.Store.StructuredEnabled() {
		t.Errorf("expected structured store to be enabled")
	}
	if cfg.Store.Connection != "bakery-prod" {
		t.Errorf("unexpected store connection: %s", cfg.Store.Connection)
	}
	if cfg.PSP.StripeAPIKey != "sk_test_123" {
		t.Errorf("unexpected stripe key: %s", cfg.PSP.StripeAPIKey)
	}
	if len(cfg.HTTP.AllowedOrigins) != 2 || cfg.HTTP.AllowedOrigins[1] != "https://admin.evansbakery.example" {
		t.Errorf("unexpected allowed origins: %v", cfg.HTTP.AllowedOrigins)
	}
	if cfg.Auth.TokenTTL != time.Hour {
		t.Errorf("unexpected token ttl: %s", cfg.Auth.TokenTTL)
	}
	if cfg.Notify.WebhookURL != "https://notify.example/orders" {
		t.Errorf("unexpected notify url: %s", cfg.Notify.WebhookURL)
	}
	if cfg.Auth.SeedAdminEmail != "owner@evansbakery.example" {
		t.Errorf("unexpected seed admin email: %s", cfg.Auth.SeedAdminEmail)
	}
	if cfg.Auth.SeedAdminName != "Administrator" {
		t.Errorf("unexpected seed admin name default: %s", cfg.Auth.SeedAdminName)
	}
}

func TestLoadValidation(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := validation.Fields()
	found := false
	for _, field := range fields {
		if field == "Auth.SessionSecret" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Auth.SessionSecret in validation fields, got %v", fields)
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "API_SERVER_PORT=7070\nexport API_SESSION_SECRET=\"from-dotenv\"\n# comment\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(path))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("expected dotenv port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Auth.SessionSecret != "from-dotenv" {
		t.Errorf("expected dotenv session secret, got %s", cfg.Auth.SessionSecret)
	}
}

func TestLoadEnvMapPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("API_SERVER_PORT=7070\n"), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	cfg, err := Load(context.Background(),
		WithEnvMap(map[string]string{"API_SERVER_PORT": "9191", "API_SESSION_SECRET": "s"}),
		WithoutSystemEnv(),
		WithEnvFile(path))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "9191" {
		t.Errorf("expected env map to win, got %s", cfg.Server.Port)
	}
}
