package gorm

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tigerroll/datasource/pkg/datasource/core/dbconfig"
)

// OpenOptions tune how a data source is opened.
type OpenOptions struct {
	// SQLLogLevel is the GORM statement log level. Empty means SILENT.
	SQLLogLevel string
	// SkipPing opens the pool lazily without verifying connectivity.
	SkipPing bool
}

// Open opens a *gorm.DB for cfg, applies its pool settings and verifies connectivity within ctx.
func Open(ctx context.Context, cfg dbconfig.DatabaseConfig, opts OpenOptions) (*gorm.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config %s: %w", cfg, err)
	}

	dialectorFactory, err := GetDialectorFactory(cfg.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to get dialector factory for %s: %w", cfg.Type, err)
	}
	dialector, err := dialectorFactory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create dialector for %s: %w", cfg.Type, err)
	}

	return OpenDialector(ctx, dialector, cfg.Pool, opts)
}

// OpenDialector opens a *gorm.DB from an already built dialector.
func OpenDialector(ctx context.Context, dialector gorm.Dialector, pool dbconfig.PoolConfig, opts OpenOptions) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:               NewGormLogger(opts.SQLLogLevel),
		DisableAutomaticPing: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open GORM connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(pool.ConnMaxLifetimeMinutes) * time.Minute)
	}

	if !opts.SkipPing {
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
	}
	return db, nil
}
