// Package sqlite registers the GORM dialector for SQLite data sources.
package sqlite

import (
	"errors"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/fx"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	gormadapter "github.com/tigerroll/datasource/pkg/datasource/adapter/database/gorm"
	"github.com/tigerroll/datasource/pkg/datasource/core/dbconfig"
)

func init() {
	gormadapter.RegisterDialector("sqlite", NewDialector)
}

// NewDialector builds a sqlite dialector for cfg.
func NewDialector(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
	if cfg.Database == "" {
		return nil, errors.New("SQLite database path cannot be empty")
	}
	return sqlite.Open(ConnectionString(cfg)), nil
}

// ConnectionString returns the database path, with Params appended as query parameters.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	if len(c.Params) == 0 {
		return c.Database
	}
	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	q := make([]string, 0, len(keys))
	for _, k := range keys {
		q = append(q, url.QueryEscape(k)+"="+url.QueryEscape(c.Params[k]))
	}
	sep := "?"
	if strings.Contains(c.Database, "?") {
		sep = "&"
	}
	return c.Database + sep + strings.Join(q, "&")
}

// NewDriver exposes the sqlite dialector to the fx driver group.
func NewDriver() gormadapter.Driver {
	return gormadapter.Driver{Type: "sqlite", Factory: NewDialector}
}

// Module contributes the sqlite driver to the application.
var Module = fx.Options(gormadapter.AsDriver(NewDriver))
