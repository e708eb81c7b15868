package query

import (
	"errors"
	"fmt"
	"time"

	"github.com/jwulff/livehistory/internal/chunk"
)

type Config struct {
	// ChunkSize is the largest number of rows written in one transaction.
	// Default is 200.
	ChunkSize int `env:"HISTORY_CHUNK_SIZE"`

	// TypesCacheSize is how many sensors' type lists are kept in memory. Default is 256.
	TypesCacheSize int `env:"HISTORY_TYPES_CACHE_SIZE"`

	// TypesCacheTTL is how long a cached type list is served. Default is 10 minutes.
	TypesCacheTTL time.Duration `env:"HISTORY_TYPES_CACHE_TTL"`
}

// NewConfig returns a config with default values.
func NewConfig() Config {
	return Config{
		ChunkSize:      chunk.DefaultSize,
		TypesCacheSize: 256,
		TypesCacheTTL:  10 * time.Minute,
	}
}

func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return errors.New("chunk size must be greater than 0")
	}
	if c.TypesCacheSize <= 0 {
		return errors.New("types cache size must be greater than 0")
	}
	if c.TypesCacheTTL < 0 {
		return errors.New("types cache ttl must not be negative")
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("Query:\n"+
		"\tChunkSize: %d\n"+
		"\tTypesCacheSize: %d\n"+
		"\tTypesCacheTTL: %s\n",
		c.ChunkSize, c.TypesCacheSize, c.TypesCacheTTL)
}
