package sqlite

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

type Config struct {
	// Path is the database file, or ":memory:". Default is "livehistory.db".
	Path string `env:"HISTORY_DB_PATH"`

	// EnableWAL turns on write-ahead logging for file databases. Default is true.
	EnableWAL bool `env:"HISTORY_DB_WAL"`

	// BusyTimeout is how long a writer waits on a locked database. Default is 5 seconds.
	BusyTimeout time.Duration `env:"HISTORY_DB_BUSY_TIMEOUT"`

	// MaxOpenConns caps the connection pool of file databases. Default is 5.
	MaxOpenConns int `env:"HISTORY_DB_MAX_OPEN_CONNS"`
}

// NewConfig returns a config with default values.
func NewConfig() Config {
	return Config{
		Path:         "livehistory.db",
		EnableWAL:    true,
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 5,
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return errors.New("database path is required")
	}
	if c.BusyTimeout < 0 {
		return errors.New("busy timeout must not be negative")
	}
	if c.MaxOpenConns <= 0 {
		return errors.New("max open conns must be greater than 0")
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("Store:\n"+
		"\tPath: %s\n"+
		"\tEnableWAL: %t\n"+
		"\tBusyTimeout: %s\n"+
		"\tMaxOpenConns: %d\n",
		c.Path, c.EnableWAL, c.BusyTimeout, c.MaxOpenConns)
}

func (c Config) inMemory() bool {
	return c.Path == MemoryPath
}

func (c Config) dsn() string {
	if c.inMemory() {
		return MemoryPath
	}

	pragmas := []string{
		fmt.Sprintf("_pragma=busy_timeout(%d)", c.BusyTimeout.Milliseconds()),
	}
	if c.EnableWAL {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}
	return fmt.Sprintf("file:%s?%s", filepath.Clean(c.Path), strings.Join(pragmas, "&"))
}
