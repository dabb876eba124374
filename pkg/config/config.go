// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string

	// Upstream platform API
	PlatformBaseURL string
	PlatformVersion string // sent as the Version header on every call

	// OAuth app credentials (marketplace app)
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AppID        string // optional; enables the authoritative installed-locations query

	// SSO payload decryption
	SSOSecret string

	// Maintenance endpoint auth
	AdminToken string

	// Identity of the custom menu this app owns
	MenuTitle string
	MenuURL   string

	// Token refresh policy
	RefreshMargin  time.Duration
	RequestTimeout time.Duration

	// Redis & Postgres
	RedisURL    string
	DatabaseURL string

	// Optional dev seed file (YAML)
	SeedFile string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:             env("D4D_ENV", "dev"),
		HTTPAddr:        env("D4D_HTTP_ADDR", ":8080"),
		PlatformBaseURL: env("PLATFORM_BASE_URL", "https://services.leadconnectorhq.com"),
		PlatformVersion: env("PLATFORM_API_VERSION", "2021-07-28"),
		ClientID:        env("OAUTH_CLIENT_ID", ""),
		ClientSecret:    env("OAUTH_CLIENT_SECRET", ""),
		RedirectURI:     env("OAUTH_REDIRECT_URI", ""),
		AppID:           env("MARKETPLACE_APP_ID", ""),
		SSOSecret:       env("SSO_SHARED_SECRET", ""),
		AdminToken:      env("ADMIN_MAINTENANCE_TOKEN", ""),
		MenuTitle:       env("MENU_TITLE", "Driving for Dollars"),
		MenuURL:         env("MENU_BASE_URL", ""),
		RefreshMargin:   envDur("TOKEN_REFRESH_MARGIN_SEC", 60) * time.Second,
		RequestTimeout:  envDur("PLATFORM_TIMEOUT_SEC", 10) * time.Second,
		RedisURL:        env("REDIS_URL", ""),
		DatabaseURL:     env("DATABASE_URL", ""),
		SeedFile:        env("SEED_FILE", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set — using in-memory stores for dev")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("[WARN] %s=%q is not a number, using default %d", k, v, def)
			return time.Duration(def)
		}
		return time.Duration(i)
	}
	return time.Duration(def)
}
