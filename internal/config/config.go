// Package config loads process configuration from the environment via
// spf13/viper, binding each RAS_* variable explicitly so defaults and
// required-ness are visible in one place rather than scattered
// os.Getenv calls.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully-resolved process configuration.
type Config struct {
	HTTPAddr    string
	WSAddr      string
	MetricsAddr string

	JWTSecret string
	JWTTTL    time.Duration

	Argon2Time      uint32
	Argon2MemoryKiB uint32
	Argon2Threads   uint8

	OAuth2ClientID     string
	OAuth2ClientSecret string
	OAuth2RedirectURL  string
	OAuth2StateTTL     time.Duration

	HTTPClientTimeout time.Duration

	LogLevel string
}

// Load binds the RAS_* environment table (§6) and returns the
// resolved Config. v is normally viper.GetViper(); a caller-supplied
// instance is accepted so tests don't touch global state.
func Load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("ras")
	v.AutomaticEnv()

	bindings := map[string]any{
		"http_addr":             ":8080",
		"ws_addr":               ":8081",
		"metrics_addr":          ":9090",
		"jwt_secret":            nil,
		"jwt_ttl":               "24h",
		"argon2_time":           1,
		"argon2_memory_kb":      65536,
		"argon2_threads":        4,
		"oauth2_client_id":      "",
		"oauth2_client_secret":  "",
		"oauth2_redirect_url":   "",
		"oauth2_state_ttl":      "10m",
		"http_client_timeout":   "10s",
		"log_level":             "info",
	}
	for key, def := range bindings {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
		if def != nil {
			v.SetDefault(key, def)
		}
	}

	secret := v.GetString("jwt_secret")
	if secret == "" {
		return nil, fmt.Errorf("RAS_JWT_SECRET is required")
	}

	jwtTTL, err := time.ParseDuration(v.GetString("jwt_ttl"))
	if err != nil {
		return nil, fmt.Errorf("parse RAS_JWT_TTL: %w", err)
	}
	oauth2StateTTL, err := time.ParseDuration(v.GetString("oauth2_state_ttl"))
	if err != nil {
		return nil, fmt.Errorf("parse RAS_OAUTH2_STATE_TTL: %w", err)
	}
	httpClientTimeout, err := time.ParseDuration(v.GetString("http_client_timeout"))
	if err != nil {
		return nil, fmt.Errorf("parse RAS_HTTP_CLIENT_TIMEOUT: %w", err)
	}

	return &Config{
		HTTPAddr:    v.GetString("http_addr"),
		WSAddr:      v.GetString("ws_addr"),
		MetricsAddr: v.GetString("metrics_addr"),

		JWTSecret: secret,
		JWTTTL:    jwtTTL,

		Argon2Time:      uint32(v.GetInt("argon2_time")),
		Argon2MemoryKiB: uint32(v.GetInt("argon2_memory_kb")),
		Argon2Threads:   uint8(v.GetInt("argon2_threads")),

		OAuth2ClientID:     v.GetString("oauth2_client_id"),
		OAuth2ClientSecret: v.GetString("oauth2_client_secret"),
		OAuth2RedirectURL:  v.GetString("oauth2_redirect_url"),
		OAuth2StateTTL:     oauth2StateTTL,

		HTTPClientTimeout: httpClientTimeout,

		LogLevel: v.GetString("log_level"),
	}, nil
}
