package syncer

import (
	"errors"
	"fmt"
	"time"
)

type Config struct {
	// RetryDelay is how long a re-activated surface waits before refreshing.
	// Repeated activations within the delay collapse into one refresh.
	// Default is 2 seconds.
	RetryDelay time.Duration `env:"SYNC_RETRY_DELAY"`
}

// NewConfig returns a config with default values.
func NewConfig() Config {
	return Config{
		RetryDelay: 2 * time.Second,
	}
}

func (c Config) Validate() error {
	if c.RetryDelay <= 0 {
		return errors.New("retry delay must be greater than 0")
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("Sync:\n"+
		"\tRetryDelay: %s\n",
		c.RetryDelay)
}
