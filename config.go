package hostedauth

import (
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
)

// Config carries the values a hosted identity platform needs to build
// its URLs. The four URL fields are required; validation checks presence
// only and leaves shape to the platform adapter.
type Config struct {
	// Domain is the platform tenant domain, e.g. "example.us.auth0.com".
	Domain string `env:"HOSTED_AUTH_DOMAIN" json:"domain"`

	// ClientID is the application's client identifier.
	ClientID string `env:"HOSTED_AUTH_CLIENT_ID" json:"client_id"`

	// RedirectURI is where the platform sends the browser after login.
	RedirectURI string `env:"HOSTED_AUTH_REDIRECT_URI" json:"redirect_uri"`

	// LogoutRedirectURI is where the platform sends the browser after logout.
	LogoutRedirectURI string `env:"HOSTED_AUTH_LOGOUT_REDIRECT_URI" json:"logout_redirect_uri"`

	// BootstrapDelay overrides how long the provider holds its loading
	// gate open, e.g. "1500ms". Zero keeps the provider default.
	BootstrapDelay time.Duration `env:"HOSTED_AUTH_BOOTSTRAP_DELAY" json:"bootstrap_delay,omitempty"`
}

// Validate will run validation rules
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(
			&c.Domain,
			validation.Required,
		),
		validation.Field(
			&c.ClientID,
			validation.Required,
		),
		validation.Field(
			&c.RedirectURI,
			validation.Required,
		),
		validation.Field(
			&c.LogoutRedirectURI,
			validation.Required,
		),
	)
}

var dotenvOnce sync.Once

// LoadConfig reads the config from the environment, loading a .env
// file first when one is present. The returned config has passed
// Validate.
func LoadConfig() (Config, error) {
	dotenvOnce.Do(func() {
		// missing .env is fine, the environment may be set directly
		_ = godotenv.Load()
	})

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, errors.CategoryValidation, "parse auth config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(err, errors.CategoryValidation, "invalid auth config")
	}

	return cfg, nil
}

// MustLoadConfig is LoadConfig with a panic on failure.
func MustLoadConfig() Config {
	cfg, err := LoadConfig()
	if err != nil {
		panic(err)
	}
	return cfg
}
