package gorm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	gormadapter "github.com/tigerroll/datasource/pkg/datasource/adapter/database/gorm"
	_ "github.com/tigerroll/datasource/pkg/datasource/adapter/database/gorm/sqlite"
	"github.com/tigerroll/datasource/pkg/datasource/core/dbconfig"
	"github.com/tigerroll/datasource/pkg/datasource/core/port"
)

func memoryConfig(name string) dbconfig.DatabaseConfig {
	return dbconfig.DatabaseConfig{
		Name:     name,
		Type:     "sqlite",
		Database: "file:" + name + "?mode=memory&cache=shared",
		Pool:     dbconfig.PoolConfig{MaxOpenConns: 3, MaxIdleConns: 1},
	}
}

// TestOpen verifies that a pool is opened, sized and pingable.
func TestOpen(t *testing.T) {
	db, err := gormadapter.Open(context.Background(), memoryConfig("open_test"), gormadapter.OpenOptions{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	assert.Equal(t, 3, sqlDB.Stats().MaxOpenConnections)
	assert.NoError(t, sqlDB.Ping())
}

// TestOpen_Errors verifies configuration and registry failures.
func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := gormadapter.Open(ctx, dbconfig.DatabaseConfig{Type: "sqlite"}, gormadapter.OpenOptions{})
	assert.ErrorContains(t, err, "invalid database config")

	_, err = gormadapter.Open(ctx, dbconfig.DatabaseConfig{Type: "oracle", Database: "x"}, gormadapter.OpenOptions{})
	assert.ErrorContains(t, err, "no dialector registered for database type: oracle")
}

// TestDataSource verifies the handle accessors and that each wrap gets a new ID.
func TestDataSource(t *testing.T) {
	cfg := memoryConfig("handle_test")
	db, err := gormadapter.Open(context.Background(), cfg, gormadapter.OpenOptions{})
	require.NoError(t, err)

	first, err := gormadapter.NewDataSource("sales-db", port.TypePooled, db, cfg)
	require.NoError(t, err)
	second, err := gormadapter.NewDataSource("sales-db", port.TypePooled, db, cfg)
	require.NoError(t, err)
	defer first.Close()

	assert.Equal(t, "sales-db", first.Name())
	assert.Equal(t, port.TypePooled, first.Type())
	assert.NotEmpty(t, first.ID())
	assert.NotEqual(t, first.ID(), second.ID())
	assert.Same(t, first.DB(), second.DB())
	assert.Equal(t, cfg, first.Config())

	ctx := context.Background()
	conn, err := first.Conn(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	var one int
	require.NoError(t, first.Gorm(ctx).Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)

	_, err = gormadapter.NewDataSource("x", port.TypePooled, (*gorm.DB)(nil), cfg)
	assert.Error(t, err)
}

// TestRegisterDrivers verifies that registered types are kept and new ones are added.
func TestRegisterDrivers(t *testing.T) {
	factory, err := gormadapter.GetDialectorFactory("sqlite")
	require.NoError(t, err)

	types := gormadapter.RegisterDrivers([]gormadapter.Driver{
		{Type: "sqlite", Factory: factory},
		{Type: "duckdb_test", Factory: factory},
		{Type: "", Factory: factory},
	})
	assert.Contains(t, types, "sqlite")
	assert.Contains(t, types, "duckdb_test")
	assert.NotContains(t, types, "")
}
