package storage

import (
	"fmt"
)

// Supported ledger drivers.
const (
	DriverSqlite = "sqlite3"
	DriverMySQL  = "mysql"
)

// Config selects and locates the ledger backend.
type Config struct {
	Driver string      `yaml:"driver"`
	Path   string      `yaml:"path"`
	MySQL  MySQLConfig `yaml:"mysql"`
}

// Enabled reports whether a ledger is configured.
func (c Config) Enabled() bool {
	return c.Path != "" || c.Driver == DriverMySQL
}

// Open returns the configured store.
func Open(c Config) (*SQLStore, error) {
	switch c.Driver {
	case DriverSqlite, "":
		if c.Path == "" {
			return nil, fmt.Errorf("sqlite ledger path is required")
		}
		return NewSqliteStore(c.Path), nil
	case DriverMySQL:
		return NewMySQLStore(c.MySQL)
	default:
		return nil, fmt.Errorf("unsupported ledger driver %q, pick one of: %s, %s", c.Driver, DriverSqlite, DriverMySQL)
	}
}
