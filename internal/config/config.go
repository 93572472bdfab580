package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreBackendFirestore = "firestore"
	StoreBackendMemory    = "memory"

	AuthModeFirebase = "firebase"
	// AuthModeHeader trusts an X-User-ID header. Local development only.
	AuthModeHeader = "header"
)

// Config holds all configuration for the application.
type Config struct {
	Port                             string        `mapstructure:"PORT"`
	GinMode                          string        `mapstructure:"GIN_MODE"`
	LogLevel                         string        `mapstructure:"LOG_LEVEL"`
	LogFormat                        string        `mapstructure:"LOG_FORMAT"` // console or json
	StoreBackend                     string        `mapstructure:"STORE_BACKEND"`
	AuthMode                         string        `mapstructure:"AUTH_MODE"`
	FirebaseProjectID                string        `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string        `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string        `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`
	ClientURL                        string        `mapstructure:"CLIENT_URL"`
	ShutdownTimeout                  time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

var keys = []string{
	"PORT",
	"GIN_MODE",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"STORE_BACKEND",
	"AUTH_MODE",
	"FIREBASE_PROJECT_ID",
	"GOOGLE_APPLICATION_CREDENTIALS",
	"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64",
	"CLIENT_URL",
	"SHUTDOWN_TIMEOUT",
}

// LoadConfig loads configuration from environment variables using Viper.
// Outside release mode the given env files (default ".env") are loaded first;
// variables already present in the environment win.
func LoadConfig(envFiles ...string) (*Config, error) {
	if os.Getenv("GIN_MODE") != "release" {
		if len(envFiles) == 0 {
			envFiles = []string{".env"}
		}
		for _, f := range envFiles {
			if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to load %s: %w", f, err)
			}
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("STORE_BACKEND", StoreBackendFirestore)
	v.SetDefault("AUTH_MODE", AuthModeFirebase)
	v.SetDefault("CLIENT_URL", "http://localhost:3000")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")

	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreBackendFirestore:
		if c.FirebaseProjectID == "" {
			return errors.New("FIREBASE_PROJECT_ID is required for the firestore backend")
		}
	case StoreBackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.AuthMode {
	case AuthModeFirebase:
		if c.FirebaseProjectID == "" {
			return errors.New("FIREBASE_PROJECT_ID is required for firebase auth")
		}
	case AuthModeHeader:
		if c.GinMode == "release" {
			return errors.New("AUTH_MODE=header is not allowed in release mode")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}

	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat)
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

// NeedsFirebase reports whether the Firebase app must be initialized.
func (c *Config) NeedsFirebase() bool {
	return c.StoreBackend == StoreBackendFirestore || c.AuthMode == AuthModeFirebase
}
