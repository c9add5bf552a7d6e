package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadEnvFile_FoldsInMissingVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := strings.Join([]string{
		"# storefront client settings",
		"STOREFRONT_API_BASE_URL=https://shop.example/api",
		`STOREFRONT_SNAPSHOT_PATH="state dir/cart.json"`,
		"STOREFRONT_TOKEN_PATH='tokens dir/entry.sealed'",
		"export STOREFRONT_CART_SYNC_MAX_RETRIES=5",
		"not-a-pair",
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	for _, key := range []string{
		"STOREFRONT_API_BASE_URL",
		"STOREFRONT_SNAPSHOT_PATH",
		"STOREFRONT_TOKEN_PATH",
		"STOREFRONT_CART_SYNC_MAX_RETRIES",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("load env file: %v", err)
	}

	if got := os.Getenv("STOREFRONT_API_BASE_URL"); got != "https://shop.example/api" {
		t.Fatalf("base url = %q", got)
	}
	if got := os.Getenv("STOREFRONT_SNAPSHOT_PATH"); got != "state dir/cart.json" {
		t.Fatalf("snapshot path = %q, want quotes stripped", got)
	}
	if got := os.Getenv("STOREFRONT_TOKEN_PATH"); got != "tokens dir/entry.sealed" {
		t.Fatalf("token path = %q, want quotes stripped", got)
	}
	if got := os.Getenv("STOREFRONT_CART_SYNC_MAX_RETRIES"); got != "5" {
		t.Fatalf("max retries = %q, want export prefix handled", got)
	}
}

func TestLoadEnvFile_ProcessEnvironmentWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("STOREFRONT_API_BASE_URL=https://file.example/api\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("STOREFRONT_API_BASE_URL", "https://env.example/api")
	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("load env file: %v", err)
	}
	if got := os.Getenv("STOREFRONT_API_BASE_URL"); got != "https://env.example/api" {
		t.Fatalf("base url = %q, want process environment kept", got)
	}
}

func TestLoadEnvFile_MissingFileIsNotAnError(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("expected missing file to be skipped, got %v", err)
	}
}

func TestLoad_ReadsEnvFileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("STOREFRONT_CART_SYNC_MAX_RETRIES=7\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("STOREFRONT_ENV_FILE", path)
	t.Setenv("STOREFRONT_CART_SYNC_MAX_RETRIES", "")
	os.Unsetenv("STOREFRONT_CART_SYNC_MAX_RETRIES")
	t.Setenv("STOREFRONT_REQUEST_TIMEOUT", "3s")

	cfg := Load()
	if cfg.CartSyncMaxRetries != 7 {
		t.Fatalf("max retries = %d, want env-file value", cfg.CartSyncMaxRetries)
	}
	if cfg.RequestTimeout.Seconds() != 3 {
		t.Fatalf("timeout = %v, want environment value", cfg.RequestTimeout)
	}
}
