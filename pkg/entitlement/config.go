package entitlement

import (
	"errors"
	"net/url"
	"time"
)

// Config points the client at the auth service.
type Config struct {
	BaseURL    string        `env:"AUTH_API_URL"`
	Token      string        `env:"AUTH_API_TOKEN"`
	Timeout    time.Duration `env:"AUTH_API_TIMEOUT" envDefault:"5s"`
	MaxRetries int           `env:"AUTH_API_MAX_RETRIES" envDefault:"3"`
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Join(ErrInvalidBaseURL, err)
	}
	return nil
}
