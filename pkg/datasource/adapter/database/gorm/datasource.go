package gorm

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tigerroll/datasource/pkg/datasource/core/dbconfig"
	"github.com/tigerroll/datasource/pkg/datasource/core/port"
)

// DataSource is a provisioning handle backed by a *gorm.DB.
// The back end that created it owns it and is the only caller of Close.
type DataSource struct {
	id    string
	name  string
	typ   port.Type
	db    *gorm.DB
	sqlDB *sql.DB
	cfg   dbconfig.DatabaseConfig
}

// NewDataSource wraps db as a handle for name. Every call yields a handle with a new ID.
func NewDataSource(name string, typ port.Type, db *gorm.DB, cfg dbconfig.DatabaseConfig) (*DataSource, error) {
	if db == nil {
		return nil, fmt.Errorf("nil *gorm.DB for data source %q", name)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying *sql.DB for %q: %w", name, err)
	}
	return &DataSource{
		id:    uuid.NewString(),
		name:  name,
		typ:   typ,
		db:    db,
		sqlDB: sqlDB,
		cfg:   cfg,
	}, nil
}

// ID returns the handle instance identifier.
func (d *DataSource) ID() string { return d.id }

// Name returns the logical name.
func (d *DataSource) Name() string { return d.name }

// Type returns the back end type.
func (d *DataSource) Type() port.Type { return d.typ }

// DB returns the underlying *sql.DB.
func (d *DataSource) DB() *sql.DB { return d.sqlDB }

// Conn returns a single connection from the pool.
func (d *DataSource) Conn(ctx context.Context) (*sql.Conn, error) {
	return d.sqlDB.Conn(ctx)
}

// Gorm returns a session on the underlying *gorm.DB bound to ctx.
func (d *DataSource) Gorm(ctx context.Context) *gorm.DB {
	return d.db.WithContext(ctx)
}

// Config returns the descriptor the handle was opened from.
func (d *DataSource) Config() dbconfig.DatabaseConfig { return d.cfg }

// Ping verifies the pool can still reach the database.
func (d *DataSource) Ping(ctx context.Context) error {
	return d.sqlDB.PingContext(ctx)
}

// Close closes the underlying pool.
func (d *DataSource) Close() error {
	return d.sqlDB.Close()
}

var _ port.DataSource = (*DataSource)(nil)
