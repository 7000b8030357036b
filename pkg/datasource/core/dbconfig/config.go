// Package dbconfig holds the connection configuration descriptor consumed by the pooled back end.
package dbconfig

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
)

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes" mapstructure:"conn_max_lifetime_minutes"`
}

// DatabaseConfig describes a data source: where it lives, which driver serves it and how it is pooled.
type DatabaseConfig struct {
	Name     string            `yaml:"name,omitempty" mapstructure:"name"`     // Logical name; optional for configuration-based resolution.
	Type     string            `yaml:"type" mapstructure:"type"`               // Database type (e.g., "postgres", "mysql", "sqlite").
	Host     string            `yaml:"host" mapstructure:"host"`               // Database host address.
	Port     int               `yaml:"port" mapstructure:"port"`               // Database port number.
	Database string            `yaml:"database" mapstructure:"database"`       // Database name, or file path for SQLite.
	User     string            `yaml:"user" mapstructure:"user"`               // Database user.
	Password string            `yaml:"password" mapstructure:"password"`       // Database password.
	Schema   string            `yaml:"schema,omitempty" mapstructure:"schema"` // Schema name for PostgreSQL/Redshift.
	Sslmode  string            `yaml:"sslmode" mapstructure:"sslmode"`         // SSL mode for the connection.
	Params   map[string]string `yaml:"params,omitempty" mapstructure:"params"` // Extra driver parameters.
	Pool     PoolConfig        `yaml:"pool" mapstructure:"pool"`               // Connection pool settings.
}

// Validate checks the fields every driver needs.
func (c DatabaseConfig) Validate() error {
	if c.Type == "" {
		return errors.New("database type is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database name is required for type %q", c.Type)
	}
	if c.Pool.MaxOpenConns < 0 || c.Pool.MaxIdleConns < 0 || c.Pool.ConnMaxLifetimeMinutes < 0 {
		return errors.New("pool settings must not be negative")
	}
	return nil
}

// Fingerprint returns a stable identifier for the connection target, ignoring the logical name
// and pool sizing. Two descriptors pointing at the same database with the same credentials share it.
func (c DatabaseConfig) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d\x00%s\x00%s\x00%s\x00%s\x00%s",
		c.Type, c.Host, c.Port, c.Database, c.User, c.Password, c.Schema, c.Sslmode)
	for _, k := range sortedKeys(c.Params) {
		fmt.Fprintf(h, "\x00%s=%s", k, c.Params[k])
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Redacted returns a copy with the password masked, suitable for logging.
func (c DatabaseConfig) Redacted() DatabaseConfig {
	if c.Password != "" {
		c.Password = "******"
	}
	return c
}

// String renders the descriptor without credentials.
func (c DatabaseConfig) String() string {
	if c.Host == "" {
		return fmt.Sprintf("%s:%s", c.Type, c.Database)
	}
	return fmt.Sprintf("%s://%s@%s:%d/%s", c.Type, c.User, c.Host, c.Port, c.Database)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
