// Package config reads gallery settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

type (
	Properties struct {
		LogLevel  string `env:"GALLERY_LOG_LEVEL" envDefault:"info"`
		LogFormat string `env:"GALLERY_LOG_FORMAT" envDefault:"console"`
		Mode      string `env:"GALLERY_MODE"`
		Locale    string `env:"GALLERY_LOCALE" envDefault:"en"`
		PageSize  int    `env:"GALLERY_PAGE_SIZE" envDefault:"100"`

		Credentials CredentialProperties `envPrefix:"GALLERY_"`
		Server      HTTPServerProperties `envPrefix:"GALLERY_HTTP_"`
		Native      NativeProperties     `envPrefix:"GALLERY_API_"`
		S3          S3Properties         `envPrefix:"GALLERY_S3_"`
		Hydration   HydrationProperties  `envPrefix:"GALLERY_HYDRATE_"`
		Cache       CacheProperties      `envPrefix:"GALLERY_CACHE_"`
		Relay       RelayProperties      `envPrefix:"GALLERY_RELAY_"`
	}

	// CredentialProperties override values held by the credential store
	CredentialProperties struct {
		StorePath string `env:"STORE_PATH" envDefault:"iron-gallery.json"`
		StoreKey  string `env:"STORE_KEY"`
		APIKey    string `env:"API_KEY"`
		S3ID      string `env:"S3_ID"`
		S3Secret  string `env:"S3_SECRET"`
	}

	HTTPServerProperties struct {
		Address      string        `env:"ADDRESS" envDefault:":8080"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"0s"`
	}

	NativeProperties struct {
		BaseURL      string        `env:"BASE_URL" envDefault:"https://filelu.com/api"`
		TimeZone     string        `env:"TIME_ZONE" envDefault:"America/New_York"`
		RatePerSec   float64       `env:"RATE_PER_SEC" envDefault:"5"`
		Burst        int           `env:"BURST" envDefault:"6"`
		RetryMax     int           `env:"RETRY_MAX" envDefault:"3"`
		RetryWaitMin time.Duration `env:"RETRY_WAIT_MIN" envDefault:"500ms"`
		RetryWaitMax time.Duration `env:"RETRY_WAIT_MAX" envDefault:"5s"`
		Timeout      time.Duration `env:"TIMEOUT" envDefault:"60s"`
	}

	S3Properties struct {
		Endpoint string `env:"ENDPOINT" envDefault:"s5lu.com"`
		Region   string `env:"REGION" envDefault:"global"`
		Insecure bool   `env:"INSECURE" envDefault:"false"`
	}

	HydrationProperties struct {
		BatchSize  int           `env:"BATCH_SIZE" envDefault:"6"`
		BatchDelay time.Duration `env:"BATCH_DELAY" envDefault:"500ms"`
	}

	CacheProperties struct {
		Path   string        `env:"PATH" envDefault:"iron-gallery-cache.db"`
		MaxAge time.Duration `env:"MAX_AGE" envDefault:"168h"`
	}

	RelayProperties struct {
		AllowPattern string `env:"ALLOW_PATTERN" envDefault:"(?i)^https://([0-9]+\\.)?filelu\\..+"`
		AllowOrigin  string `env:"ALLOW_ORIGIN"`
	}
)

// ReadProperties parses the environment into Properties
func ReadProperties() (*Properties, error) {
	config := &Properties{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("read config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects values the gallery cannot run with
func (p *Properties) Validate() error {
	if p.Hydration.BatchSize <= 0 {
		return fmt.Errorf("GALLERY_HYDRATE_BATCH_SIZE must be positive, got %d", p.Hydration.BatchSize)
	}
	if p.Hydration.BatchDelay < 0 {
		return fmt.Errorf("GALLERY_HYDRATE_BATCH_DELAY must not be negative")
	}
	if p.PageSize <= 0 {
		return fmt.Errorf("GALLERY_PAGE_SIZE must be positive, got %d", p.PageSize)
	}
	if p.Mode != "" && p.Mode != "api" && p.Mode != "s3" {
		return fmt.Errorf("GALLERY_MODE must be api or s3, got %q", p.Mode)
	}
	return nil
}
