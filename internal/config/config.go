// Package config loads runtime configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting. Defaults suit local development;
// production deployments override via environment variables.
type Config struct {
	ListenAddr string `env:"SWITCHBACK_LISTEN_ADDR" env-default:":8080"`
	LogLevel   string `env:"SWITCHBACK_LOG_LEVEL" env-default:"info"`

	SurveysDir      string `env:"SWITCHBACK_SURVEYS_DIR" env-default:"./surveys"`
	DefaultSurveyID string `env:"SWITCHBACK_DEFAULT_SURVEY" env-default:""`

	// Store selects the persistence backend: memory, redis, or postgres.
	Store       string `env:"SWITCHBACK_STORE" env-default:"memory"`
	DatabaseURL string `env:"SWITCHBACK_DATABASE_URL" env-default:""`

	RedisAddr     string `env:"SWITCHBACK_REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `env:"SWITCHBACK_REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"SWITCHBACK_REDIS_DB" env-default:"0"`

	// PhoneHashSalt pseudonymizes phone numbers. Changing it orphans every
	// stored session, so treat it like a credential with no rotation.
	PhoneHashSalt string `env:"SWITCHBACK_PHONE_HASH_SALT" env-default:""`

	TwilioAccountSID        string `env:"TWILIO_ACCOUNT_SID" env-default:""`
	TwilioAuthToken         string `env:"TWILIO_AUTH_TOKEN" env-default:""`
	TwilioFromNumber        string `env:"TWILIO_FROM_NUMBER" env-default:""`
	ValidateTwilioSignature bool   `env:"SWITCHBACK_VALIDATE_TWILIO_SIGNATURE" env-default:"true"`

	// PublicURL is the externally visible base URL, needed to reconstruct
	// the signed request URL when running behind a proxy.
	PublicURL string `env:"SWITCHBACK_PUBLIC_URL" env-default:""`
}

// Load reads .env if present, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return &cfg, nil
}

// ValidateForServe checks the settings the HTTP server cannot run without.
func (c *Config) ValidateForServe() error {
	if c.PhoneHashSalt == "" {
		return errors.New("SWITCHBACK_PHONE_HASH_SALT is required")
	}
	if c.ValidateTwilioSignature && c.TwilioAuthToken == "" {
		return errors.New("TWILIO_AUTH_TOKEN is required when signature validation is enabled")
	}
	if c.Store == "postgres" && c.DatabaseURL == "" {
		return errors.New("SWITCHBACK_DATABASE_URL is required for the postgres store")
	}
	return nil
}
