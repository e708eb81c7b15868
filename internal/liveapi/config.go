package liveapi

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

type Config struct {
	// BaseURL is the root of the remote JSON API. Default is DefaultBaseURL.
	BaseURL string `env:"LIVE_API_URL"`

	// Token is sent as a bearer token when set. Default is "".
	Token string `env:"LIVE_API_TOKEN"`

	// Timeout bounds a single request. Default is 30 seconds.
	Timeout time.Duration `env:"LIVE_API_TIMEOUT"`
}

// NewConfig returns a config with default values.
func NewConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: 30 * time.Second,
	}
}

func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base url must be http or https, got %q", c.BaseURL)
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be greater than 0")
	}
	return nil
}

func (c Config) String() string {
	token := "unset"
	if c.Token != "" {
		token = "set"
	}
	return fmt.Sprintf("Live API:\n"+
		"\tBaseURL: %s\n"+
		"\tToken: %s\n"+
		"\tTimeout: %s\n",
		c.BaseURL, token, c.Timeout)
}
