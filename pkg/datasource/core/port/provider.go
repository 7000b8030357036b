package port

import (
	"context"
	"database/sql"

	"github.com/tigerroll/datasource/pkg/datasource/core/dbconfig"
)

// Operation names used in errors.
const (
	OpResolveName       = "ResolveName"
	OpResolveTyped      = "ResolveTyped"
	OpResolveFromConfig = "ResolveFromConfig"
	OpInvalidate        = "Invalidate"
)

// DataSource is a provisioning handle: an object capable of yielding live database connections.
// Its lifecycle belongs to the back end that produced it; callers must not close it.
type DataSource interface {
	// Name returns the logical name the handle was resolved for.
	Name() string
	// Type returns the back end type that produced the handle.
	Type() Type
	// ID identifies this handle instance. A handle returned after an invalidation has a new ID.
	ID() string
	// DB returns the underlying connection pool.
	DB() *sql.DB
	// Conn returns a single live connection. The caller closes it.
	Conn(ctx context.Context) (*sql.Conn, error)
}

// NamedProvider is the minimal resolution contract every back end implements.
type NamedProvider interface {
	// ResolveName resolves a logical name using the provider's default resolution behaviour.
	ResolveName(ctx context.Context, name string) (DataSource, error)
	// ResolveTyped resolves a logical name through the back end matching typ only.
	// A name registered under another type is reported as not found.
	ResolveTyped(ctx context.Context, name string, typ Type) (DataSource, error)
}

// ConfigResolver is implemented by back ends able to resolve a full connection descriptor
// without a prior registration.
type ConfigResolver interface {
	ResolveFromConfig(ctx context.Context, desc dbconfig.DatabaseConfig, typ Type) (DataSource, error)
}

// Invalidator is implemented by back ends holding cached or pooled state that can be discarded.
type Invalidator interface {
	// Invalidate discards the state held for name/typ and returns a freshly resolved handle.
	// The returned handle is never the invalidated one.
	Invalidate(ctx context.Context, name string, typ Type) (DataSource, error)
}

// Provider is the full resolution port. Implementations must be safe for concurrent use.
//
// ResolveFromConfig and Invalidate were added after the minimal contract; implementations that
// cannot support them embed Unimplemented, which reports ErrNotSupported.
type Provider interface {
	NamedProvider
	ConfigResolver
	Invalidator
}

// Unimplemented provides the default behaviour of the optional operations.
// Embed it in a provider to opt out of them; override a method to opt in.
type Unimplemented struct{}

// ResolveFromConfig reports ErrNotSupported.
func (Unimplemented) ResolveFromConfig(_ context.Context, _ dbconfig.DatabaseConfig, typ Type) (DataSource, error) {
	return nil, NotSupported(OpResolveFromConfig, typ)
}

// Invalidate reports ErrNotSupported.
func (Unimplemented) Invalidate(_ context.Context, _ string, typ Type) (DataSource, error) {
	return nil, NotSupported(OpInvalidate, typ)
}
