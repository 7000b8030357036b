// Package postgres registers the GORM dialector for PostgreSQL and Redshift data sources.
package postgres

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/fx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	gormadapter "github.com/tigerroll/datasource/pkg/datasource/adapter/database/gorm"
	"github.com/tigerroll/datasource/pkg/datasource/core/dbconfig"
)

const defaultPort = 5432

func init() {
	gormadapter.RegisterDialector("postgres", NewDialector)
}

// NewDialector builds a postgres dialector for cfg.
func NewDialector(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("postgres host cannot be empty")
	}
	return postgres.Open(ConnectionString(cfg)), nil
}

// ConnectionString renders cfg as a key/value DSN understood by pgx.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	port := c.Port
	if port == 0 {
		port = defaultPort
	}
	sslmode := c.Sslmode
	if sslmode == "" {
		sslmode = "disable"
	}

	parts := []string{
		kv("host", c.Host),
		kv("port", fmt.Sprint(port)),
		kv("user", c.User),
		kv("password", c.Password),
		kv("dbname", c.Database),
		kv("sslmode", sslmode),
	}
	if c.Schema != "" {
		parts = append(parts, kv("search_path", c.Schema))
	}
	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, kv(k, c.Params[k]))
	}
	return strings.Join(parts, " ")
}

// kv quotes values containing spaces, quotes or backslashes, or empty values.
func kv(key, value string) string {
	if value != "" && !strings.ContainsAny(value, ` '\`) {
		return key + "=" + value
	}
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
	return key + "='" + escaped + "'"
}

// NewDriver exposes the postgres dialector to the fx driver group.
func NewDriver() gormadapter.Driver {
	return gormadapter.Driver{Type: "postgres", Factory: NewDialector}
}

// Module contributes the postgres driver to the application.
var Module = fx.Options(gormadapter.AsDriver(NewDriver))
