package directory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	_ "github.com/go-sql-driver/mysql" // registers "mysql"
	"github.com/hashicorp/go-multierror"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/mattn/go-sqlite3"    // registers "sqlite3"

	"github.com/tigerroll/datasource/pkg/datasource/adapter/database/gorm/mysql"
	"github.com/tigerroll/datasource/pkg/datasource/adapter/database/gorm/postgres"
	"github.com/tigerroll/datasource/pkg/datasource/adapter/database/gorm/sqlite"
	"github.com/tigerroll/datasource/pkg/datasource/core/dbconfig"
	"github.com/tigerroll/datasource/pkg/datasource/support/util/logger"
)

// sqlDriverName maps a database type to its database/sql driver name and DSN builder.
func sqlDriverName(dbType string) (string, func(dbconfig.DatabaseConfig) string, error) {
	switch dbType {
	case "postgres", "postgresql", "redshift":
		return "pgx", postgres.ConnectionString, nil
	case "mysql", "mariadb":
		return "mysql", mysql.ConnectionString, nil
	case "sqlite", "sqlite3":
		return "sqlite3", sqlite.ConnectionString, nil
	default:
		return "", nil, fmt.Errorf("no database/sql driver for type %q", dbType)
	}
}

// OpenSQL opens and pings a database/sql pool for cfg.
func OpenSQL(ctx context.Context, cfg dbconfig.DatabaseConfig) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	driverName, dsn, err := sqlDriverName(cfg.Type)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg, err)
	}
	if cfg.Pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
	}
	if cfg.Pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
	}
	if cfg.Pool.ConnMaxLifetimeMinutes > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.Pool.ConnMaxLifetimeMinutes) * time.Minute)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", cfg, err)
	}
	return db, nil
}

// BindFromConfig opens a pool for every configured binding and binds it under its entry name.
// Bindings that fail are reported together; the others stay bound.
func BindFromConfig(ctx context.Context, m *MapContext, bindings map[string]interface{}) error {
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	var result *multierror.Error
	for _, name := range names {
		cfg, err := dbconfig.Decode(name, bindings[name])
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		db, err := OpenSQL(ctx, cfg)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("binding %s: %w", name, err))
			continue
		}
		if err := m.bindOwned(name, db); err != nil {
			_ = db.Close()
			result = multierror.Append(result, err)
			continue
		}
		logger.Infof("Bound data source '%s' (%s).", name, cfg)
	}
	return result.ErrorOrNil()
}
