package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	gormadapter "github.com/tigerroll/datasource/pkg/datasource/adapter/database/gorm"
	_ "github.com/tigerroll/datasource/pkg/datasource/adapter/database/gorm/sqlite"
	"github.com/tigerroll/datasource/pkg/datasource/core/config"
	"github.com/tigerroll/datasource/pkg/datasource/core/dbconfig"
	"github.com/tigerroll/datasource/pkg/datasource/core/port"
)

func memoryDB(name string) dbconfig.DatabaseConfig {
	return dbconfig.DatabaseConfig{
		Type:     "sqlite",
		Database: "file:pool_" + name + "?mode=memory&cache=shared",
	}
}

func newTestProvider(t *testing.T, opts Options, names ...string) *Provider {
	t.Helper()
	descriptors := make(map[string]dbconfig.DatabaseConfig, len(names))
	for _, name := range names {
		descriptors[name] = memoryDB(t.Name() + "_" + name)
	}
	p := NewProvider(descriptors, opts)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// countingOpener counts the pools opened through the default opener.
func countingOpener(calls *atomic.Int32) Opener {
	return func(ctx context.Context, cfg dbconfig.DatabaseConfig) (*gorm.DB, error) {
		calls.Add(1)
		return gormadapter.Open(ctx, cfg, gormadapter.OpenOptions{})
	}
}

// TestProvider_ResolveTyped verifies pooled resolution and the type boundary.
func TestProvider_ResolveTyped(t *testing.T) {
	p := newTestProvider(t, Options{}, "sales-db")
	ctx := context.Background()

	ds, err := p.ResolveTyped(ctx, "sales-db", port.TypePooled)
	require.NoError(t, err)
	require.NotNil(t, ds)
	assert.Equal(t, "sales-db", ds.Name())
	assert.Equal(t, port.TypePooled, ds.Type())
	require.NoError(t, ds.DB().PingContext(ctx))

	again, err := p.ResolveName(ctx, "sales-db")
	require.NoError(t, err)
	assert.Equal(t, ds.ID(), again.ID(), "a healthy pool is reused")

	t.Run("directory type does not see pooled registrations", func(t *testing.T) {
		ds, err := p.ResolveTyped(ctx, "sales-db", port.TypeDirectory)
		assert.Nil(t, ds)
		assert.True(t, port.IsNamingError(err))
		assert.ErrorIs(t, err, port.ErrNotFound)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := p.ResolveTyped(ctx, "sales-db", 0)
		assert.ErrorIs(t, err, port.ErrUnknownType)
	})

	t.Run("unregistered name", func(t *testing.T) {
		ds, err := p.ResolveTyped(ctx, "orders-db", port.TypePooled)
		assert.Nil(t, ds)
		var ne *port.NamingError
		require.ErrorAs(t, err, &ne)
		assert.Equal(t, "orders-db", ne.Name)
		assert.Equal(t, port.OpResolveTyped, ne.Op)
	})

	t.Run("malformed name", func(t *testing.T) {
		_, err := p.ResolveTyped(ctx, "", port.TypePooled)
		assert.ErrorIs(t, err, port.ErrMalformedName)
	})
}

// TestProvider_Invalidate verifies that invalidation returns a new handle and later resolutions see it.
func TestProvider_Invalidate(t *testing.T) {
	p := newTestProvider(t, Options{}, "sales-db")
	ctx := context.Background()

	before, err := p.ResolveTyped(ctx, "sales-db", port.TypePooled)
	require.NoError(t, err)

	after, err := p.Invalidate(ctx, "sales-db", port.TypePooled)
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.NotEqual(t, before.ID(), after.ID())
	assert.Error(t, before.DB().PingContext(ctx), "the invalidated pool is closed")
	assert.NoError(t, after.DB().PingContext(ctx))

	next, err := p.ResolveTyped(ctx, "sales-db", port.TypePooled)
	require.NoError(t, err)
	assert.Equal(t, after.ID(), next.ID())

	t.Run("never opened", func(t *testing.T) {
		require.NoError(t, p.Register("orders-db", memoryDB("never_opened")))
		ds, err := p.Invalidate(ctx, "orders-db", port.TypePooled)
		require.NoError(t, err)
		assert.NotNil(t, ds)
	})

	t.Run("unknown name", func(t *testing.T) {
		ds, err := p.Invalidate(ctx, "no-such-db", port.TypePooled)
		assert.Nil(t, ds)
		assert.ErrorIs(t, err, port.ErrNotFound)
	})

	t.Run("directory type", func(t *testing.T) {
		_, err := p.Invalidate(ctx, "sales-db", port.TypeDirectory)
		assert.True(t, port.IsNotSupported(err))
	})
}

// TestProvider_ResolveFromConfig verifies descriptor-keyed pools.
func TestProvider_ResolveFromConfig(t *testing.T) {
	p := newTestProvider(t, Options{})
	ctx := context.Background()
	desc := memoryDB("from_config")

	first, err := p.ResolveFromConfig(ctx, desc, port.TypePooled)
	require.NoError(t, err)
	assert.Equal(t, desc.Fingerprint(), first.Name(), "unnamed descriptors are keyed by fingerprint")

	second, err := p.ResolveFromConfig(ctx, desc, port.TypePooled)
	require.NoError(t, err)
	assert.Equal(t, first.ID(), second.ID())

	byName, err := p.ResolveTyped(ctx, desc.Fingerprint(), port.TypePooled)
	require.NoError(t, err)
	assert.Equal(t, first.ID(), byName.ID())

	t.Run("named descriptor replaced on change", func(t *testing.T) {
		named := memoryDB("named_a")
		named.Name = "reporting"
		a, err := p.ResolveFromConfig(ctx, named, port.TypePooled)
		require.NoError(t, err)

		named.Database = "file:pool_named_b?mode=memory&cache=shared"
		b, err := p.ResolveFromConfig(ctx, named, port.TypePooled)
		require.NoError(t, err)
		assert.NotEqual(t, a.ID(), b.ID())
		assert.Equal(t, "reporting", b.Name())
	})

	t.Run("directory type is not supported", func(t *testing.T) {
		ds, err := p.ResolveFromConfig(ctx, desc, port.TypeDirectory)
		assert.Nil(t, ds)
		assert.True(t, port.IsNotSupported(err))
	})

	t.Run("invalid descriptor", func(t *testing.T) {
		_, err := p.ResolveFromConfig(ctx, dbconfig.DatabaseConfig{Name: "broken", Type: "sqlite"}, port.TypePooled)
		assert.True(t, port.IsNamingError(err))
		assert.ErrorIs(t, err, port.ErrMalformedName)
	})
}

// TestProvider_HealthCheckReconnects verifies that a dead pool is replaced on the next resolution.
func TestProvider_HealthCheckReconnects(t *testing.T) {
	p := newTestProvider(t, Options{HealthCheckTimeout: time.Second}, "sales-db")
	ctx := context.Background()

	before, err := p.ResolveTyped(ctx, "sales-db", port.TypePooled)
	require.NoError(t, err)
	require.NoError(t, before.DB().Close())

	after, err := p.ResolveTyped(ctx, "sales-db", port.TypePooled)
	require.NoError(t, err)
	assert.NotEqual(t, before.ID(), after.ID())
	assert.NoError(t, after.DB().PingContext(ctx))
}

// TestProvider_OpenFailure verifies that an unreachable database is reported as a naming error.
func TestProvider_OpenFailure(t *testing.T) {
	refused := errors.New("connection refused")
	p := NewProvider(map[string]dbconfig.DatabaseConfig{"sales-db": memoryDB("unused")}, Options{
		Opener: func(context.Context, dbconfig.DatabaseConfig) (*gorm.DB, error) { return nil, refused },
	})
	defer p.Close()

	ds, err := p.ResolveName(context.Background(), "sales-db")
	assert.Nil(t, ds)
	assert.True(t, port.IsNamingError(err))
	assert.ErrorIs(t, err, refused)
	assert.Empty(t, p.Stats())
}

// TestProvider_ConcurrentResolution verifies that concurrent first resolutions share one pool.
func TestProvider_ConcurrentResolution(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, Options{Opener: countingOpener(&calls)}, "sales-db")
	ctx := context.Background()

	const workers = 16
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ds, err := p.ResolveTyped(ctx, "sales-db", port.TypePooled)
			if assert.NoError(t, err) {
				ids[i] = ds.ID()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

// TestProvider_EvictIdle verifies that unused pools are closed and reopened on demand.
func TestProvider_EvictIdle(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, Options{
		IdleTTL:         time.Minute,
		CleanupInterval: time.Hour,
		Opener:          countingOpener(&calls),
	}, "sales-db", "orders-db")
	ctx := context.Background()

	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return clock }

	sales, err := p.ResolveName(ctx, "sales-db")
	require.NoError(t, err)
	_, err = p.ResolveName(ctx, "orders-db")
	require.NoError(t, err)

	clock = clock.Add(45 * time.Second)
	_, err = p.ResolveName(ctx, "orders-db")
	require.NoError(t, err)

	clock = clock.Add(30 * time.Second)
	assert.Equal(t, []string{"sales-db"}, p.EvictIdle())

	stats := p.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, "orders-db", stats[0].Name)

	reopened, err := p.ResolveName(ctx, "sales-db")
	require.NoError(t, err)
	assert.NotEqual(t, sales.ID(), reopened.ID())
	assert.Equal(t, int32(3), calls.Load())
}

// TestProvider_Close verifies that Close releases every pool and rejects later resolutions.
func TestProvider_Close(t *testing.T) {
	p := NewProvider(map[string]dbconfig.DatabaseConfig{"sales-db": memoryDB("close")}, Options{IdleTTL: time.Minute})
	ctx := context.Background()

	ds, err := p.ResolveName(ctx, "sales-db")
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Error(t, ds.DB().PingContext(ctx))
	assert.Empty(t, p.Stats())

	_, err = p.ResolveName(ctx, "sales-db")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = p.Invalidate(ctx, "sales-db", port.TypePooled)
	assert.ErrorIs(t, err, ErrClosed)
}

// TestNewProviderFromConfig verifies that configured databases become registrations.
func TestNewProviderFromConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Datasource.AdapterConfigs["sales_db"] = map[string]interface{}{
		"type":     "sqlite",
		"database": "file:pool_from_cfg?mode=memory&cache=shared",
		"pool":     map[string]interface{}{"max_open_conns": 2},
	}

	p, err := NewProviderFromConfig(cfg)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 5*time.Minute, p.opts.IdleTTL)
	ds, err := p.ResolveTyped(context.Background(), "sales_db", port.TypePooled)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.DB().Stats().MaxOpenConnections)

	cfg.Datasource.AdapterConfigs["broken"] = map[string]interface{}{"type": "sqlite"}
	_, err = NewProviderFromConfig(cfg)
	assert.Error(t, err)
}

// TestProvider_UnregisteredName verifies that a name never registered with the pooled back end is a
// naming error and opens nothing.
func TestProvider_UnregisteredName(t *testing.T) {
	var calls atomic.Int32
	p := NewProvider(nil, Options{Opener: countingOpener(&calls)})
	t.Cleanup(func() { _ = p.Close() })
	ctx := context.Background()

	ds, err := p.ResolveTyped(ctx, "sales-db", port.TypePooled)
	assert.Nil(t, ds)
	assert.True(t, port.IsNamingError(err))
	assert.ErrorIs(t, err, port.ErrNotFound)
	var ne *port.NamingError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "sales-db", ne.Name)
	assert.Equal(t, port.TypePooled, ne.Type)

	ds, err = p.ResolveName(ctx, "sales-db")
	assert.Nil(t, ds)
	assert.ErrorIs(t, err, port.ErrNotFound)

	assert.Zero(t, calls.Load())
	assert.Empty(t, p.Stats())
}

// TestProvider_ResolveFromConfigOpensRequestedDescriptor verifies that a configuration-based
// resolution opens the descriptor it was given, even when another caller has registered a different
// one for the same name in the meantime.
func TestProvider_ResolveFromConfigOpensRequestedDescriptor(t *testing.T) {
	var (
		mu     sync.Mutex
		opened []string
	)
	opener := func(ctx context.Context, cfg dbconfig.DatabaseConfig) (*gorm.DB, error) {
		mu.Lock()
		opened = append(opened, cfg.Database)
		mu.Unlock()
		return gormadapter.Open(ctx, cfg, gormadapter.OpenOptions{})
	}
	p := NewProvider(nil, Options{Opener: opener})
	t.Cleanup(func() { _ = p.Close() })
	ctx := context.Background()

	descA := memoryDB(t.Name() + "_a")
	descA.Name = "sales-db"
	descB := memoryDB(t.Name() + "_b")
	descB.Name = "sales-db"

	fromB, err := p.ResolveFromConfig(ctx, descB, port.TypePooled)
	require.NoError(t, err)

	// descB is still registered and its pool is open when the resolution for descA proceeds.
	got, err := p.resolve(ctx, port.OpResolveFromConfig, "sales-db", port.TypePooled, &descA)
	require.NoError(t, err)
	handle, ok := got.(*gormadapter.DataSource)
	require.True(t, ok)
	assert.Equal(t, descA.Database, handle.Config().Database)
	assert.NotEqual(t, fromB.ID(), got.ID())
	assert.Error(t, fromB.DB().PingContext(ctx), "the pool for the other descriptor is replaced")

	// No pool opened yet: the registered descriptor is ignored in favour of the requested one.
	require.NoError(t, p.Register("orders-db", memoryDB(t.Name()+"_registered")))
	descC := memoryDB(t.Name() + "_c")
	descC.Name = "orders-db"
	got, err = p.resolve(ctx, port.OpResolveFromConfig, "orders-db", port.TypePooled, &descC)
	require.NoError(t, err)
	assert.Equal(t, descC.Database, got.(*gormadapter.DataSource).Config().Database)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{descB.Database, descA.Database, descC.Database}, opened)
}
