package storage

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MySQLConfig locates a MySQL ledger. The password is read from a file so it
// never appears on the command line.
type MySQLConfig struct {
	Addr         string `yaml:"addr"`
	User         string `yaml:"user"`
	PasswordFile string `yaml:"passwordFile"`
	DBName       string `yaml:"dbName"`
}

// DSN builds the driver connection string.
func (c MySQLConfig) DSN() (string, error) {
	var pass string
	if c.PasswordFile != "" {
		b, err := os.ReadFile(c.PasswordFile)
		if err != nil {
			return "", fmt.Errorf("reading mysql password file %q: %w", c.PasswordFile, err)
		}
		pass = strings.TrimSpace(string(b))
	}

	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = pass
	cfg.Net = "tcp"
	cfg.Addr = c.Addr
	cfg.DBName = c.DBName
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	return cfg.FormatDSN(), nil
}

// NewMySQLStore creates a ledger in a MySQL database. Tables are created on
// first write.
func NewMySQLStore(c MySQLConfig) (*SQLStore, error) {
	dsn, err := c.DSN()
	if err != nil {
		return nil, err
	}

	return &SQLStore{
		driver:   "mysql",
		writeDSN: dsn,
		schema:   mysqlSchema,
		poolSize: 10,
	}, nil
}
