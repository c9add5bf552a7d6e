package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	APIBaseURL         string
	RequestTimeout     time.Duration
	SnapshotPath       string
	TokenPath          string
	TokenEncryptionKey string
	CartSyncMaxRetries int
	CartSyncRetryBase  time.Duration
	CartSyncRetryMax   time.Duration
}

// Load reads configuration from the environment, after folding in the
// optional env file named by STOREFRONT_ENV_FILE.
func Load() Config {
	if err := LoadEnvFile(getEnv("STOREFRONT_ENV_FILE", ".env")); err != nil {
		log.Printf("config: env file: %v", err)
	}
	return Config{
		APIBaseURL:         getEnv("STOREFRONT_API_BASE_URL", "http://localhost:5000/api"),
		RequestTimeout:     getDuration("STOREFRONT_REQUEST_TIMEOUT", 15*time.Second),
		SnapshotPath:       getEnv("STOREFRONT_SNAPSHOT_PATH", "storefront-state.json"),
		TokenPath:          getEnv("STOREFRONT_TOKEN_PATH", "storefront-tokens.sealed"),
		TokenEncryptionKey: getEnv("STOREFRONT_TOKEN_ENCRYPTION_KEY", ""),
		CartSyncMaxRetries: getInt("STOREFRONT_CART_SYNC_MAX_RETRIES", 3),
		CartSyncRetryBase:  getDuration("STOREFRONT_CART_SYNC_RETRY_BASE", 500*time.Millisecond),
		CartSyncRetryMax:   getDuration("STOREFRONT_CART_SYNC_RETRY_MAX", 5*time.Second),
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
