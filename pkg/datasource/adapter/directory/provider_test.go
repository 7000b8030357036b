package directory

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	gormadapter "github.com/tigerroll/datasource/pkg/datasource/adapter/database/gorm"
	"github.com/tigerroll/datasource/pkg/datasource/core/dbconfig"
	"github.com/tigerroll/datasource/pkg/datasource/core/port"
)

func newBoundProvider(t *testing.T, bindings map[string]interface{}) (*Provider, *MapContext) {
	t.Helper()
	m := NewMapContext()
	for name, obj := range bindings {
		require.NoError(t, m.Bind(name, obj))
	}
	return NewProvider(m, Options{Prefixes: DefaultPrefixes, LookupTimeout: time.Second}), m
}

// TestProvider_ResolveName verifies lookups of raw and prefixed names.
func TestProvider_ResolveName(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	p, _ := newBoundProvider(t, map[string]interface{}{
		"orders-db":                   db,
		"java:comp/env/jdbc/sales-db": db,
	})
	ctx := context.Background()

	t.Run("raw name", func(t *testing.T) {
		ds, err := p.ResolveName(ctx, "orders-db")
		require.NoError(t, err)
		assert.Equal(t, "orders-db", ds.Name())
		assert.Equal(t, port.TypeDirectory, ds.Type())
		assert.Same(t, db, ds.DB())
	})

	t.Run("prefix fallback", func(t *testing.T) {
		ds, err := p.ResolveName(ctx, "sales-db")
		require.NoError(t, err)
		assert.Same(t, db, ds.DB())
	})

	t.Run("repeated lookups wrap the same bound object", func(t *testing.T) {
		first, err := p.ResolveName(ctx, "sales-db")
		require.NoError(t, err)
		second, err := p.ResolveName(ctx, "sales-db")
		require.NoError(t, err)
		assert.Same(t, first.DB(), second.DB())
	})

	t.Run("unknown name", func(t *testing.T) {
		ds, err := p.ResolveName(ctx, "no-such-db")
		assert.Nil(t, ds)
		require.Error(t, err)
		assert.True(t, port.IsNamingError(err))
		assert.ErrorIs(t, err, port.ErrNotFound)
	})

	t.Run("malformed name", func(t *testing.T) {
		_, err := p.ResolveName(ctx, "  ")
		assert.ErrorIs(t, err, port.ErrMalformedName)
		assert.ErrorIs(t, err, port.ErrNaming)
	})
}

// TestProvider_ResolveTyped verifies that only directory lookups are served.
func TestProvider_ResolveTyped(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	p, _ := newBoundProvider(t, map[string]interface{}{"sales-db": db})
	ctx := context.Background()

	ds, err := p.ResolveTyped(ctx, "sales-db", port.TypeDirectory)
	require.NoError(t, err)
	assert.Same(t, db, ds.DB())

	_, err = p.ResolveTyped(ctx, "sales-db", port.TypePooled)
	var ne *port.NamingError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, port.TypePooled, ne.Type)
	assert.ErrorIs(t, err, port.ErrNotFound)

	_, err = p.ResolveTyped(ctx, "sales-db", port.Type(42))
	assert.ErrorIs(t, err, port.ErrUnknownType)
}

// TestProvider_OptionalOperations verifies that configuration-based resolution and invalidation are not supported.
func TestProvider_OptionalOperations(t *testing.T) {
	p, _ := newBoundProvider(t, nil)
	ctx := context.Background()

	ds, err := p.ResolveFromConfig(ctx, dbconfig.DatabaseConfig{Type: "sqlite", Database: ":memory:"}, port.TypePooled)
	assert.Nil(t, ds)
	assert.True(t, port.IsNotSupported(err))
	assert.False(t, port.IsNamingError(err))

	_, err = p.Invalidate(ctx, "sales-db", port.TypeDirectory)
	assert.ErrorIs(t, err, port.ErrNotSupported)
}

type blockingContext struct{}

func (blockingContext) Lookup(ctx context.Context, _ string) (interface{}, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type failingContext struct{ err error }

func (f failingContext) Lookup(context.Context, string) (interface{}, error) { return nil, f.err }

// TestProvider_NamingServiceFailures verifies that timeouts and unreachable services surface as naming errors.
func TestProvider_NamingServiceFailures(t *testing.T) {
	ctx := context.Background()

	p := NewProvider(blockingContext{}, Options{LookupTimeout: 20 * time.Millisecond})
	_, err := p.ResolveName(ctx, "sales-db")
	assert.True(t, port.IsNamingError(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unreachable := errors.New("connection refused")
	p = NewProvider(failingContext{err: unreachable}, Options{})
	_, err = p.ResolveTyped(ctx, "sales-db", port.TypeDirectory)
	assert.True(t, port.IsNamingError(err))
	assert.ErrorIs(t, err, unreachable)

	p = NewProvider(nil, Options{})
	_, err = p.ResolveName(ctx, "sales-db")
	assert.True(t, port.IsNamingError(err))
}

// TestProvider_UnsupportedBinding verifies that a bound object that is not a data source is rejected.
func TestProvider_UnsupportedBinding(t *testing.T) {
	p, _ := newBoundProvider(t, map[string]interface{}{"sales-db": "jdbc:postgresql://db/sales"})

	ds, err := p.ResolveName(context.Background(), "sales-db")
	assert.Nil(t, ds)
	assert.True(t, port.IsNamingError(err))
	assert.ErrorContains(t, err, "is not a data source")
}

// TestProvider_WrapsDataSource verifies that a bound handle is rewrapped as a directory handle.
func TestProvider_WrapsDataSource(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	inner, err := wrap("legacy", db)
	require.NoError(t, err)
	p, _ := newBoundProvider(t, map[string]interface{}{"sales-db": inner})

	ds, err := p.ResolveName(context.Background(), "sales-db")
	require.NoError(t, err)
	assert.Equal(t, "sales-db", ds.Name())
	assert.NotEqual(t, inner.ID(), ds.ID())
	assert.Same(t, db, ds.DB())
}

// objectContext returns obj for every name.
type objectContext struct{ obj interface{} }

func (c objectContext) Lookup(context.Context, string) (interface{}, error) { return c.obj, nil }

// TestProvider_NilBindings verifies that nil pointers held in an interface are reported as naming
// errors, both when binding and when a naming service returns them.
func TestProvider_NilBindings(t *testing.T) {
	ctx := context.Background()
	nils := map[string]interface{}{
		"*gorm.DB":                (*gorm.DB)(nil),
		"*sql.DB":                 (*sql.DB)(nil),
		"*gormadapter.DataSource": (*gormadapter.DataSource)(nil),
	}

	for kind, obj := range nils {
		t.Run(kind, func(t *testing.T) {
			m := NewMapContext()
			assert.Error(t, m.Bind("reports", obj))
			assert.Error(t, m.Rebind("reports", obj))

			p := NewProvider(objectContext{obj: obj}, Options{})
			var (
				ds  port.DataSource
				err error
			)
			require.NotPanics(t, func() {
				ds, err = p.ResolveTyped(ctx, "reports", port.TypeDirectory)
			})
			assert.Nil(t, ds)
			assert.True(t, port.IsNamingError(err))
			assert.ErrorContains(t, err, "is nil")
		})
	}
}
