// Package resolver selects the back end serving a data source type at runtime.
package resolver

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/datasource/pkg/datasource/core/dbconfig"
	"github.com/tigerroll/datasource/pkg/datasource/core/port"
	"github.com/tigerroll/datasource/pkg/datasource/support/util/logger"
)

// Router dispatches resolutions to one back end per type.
//
// ResolveName tries the back ends in the default order with their typed lookup, so an untyped
// resolution always agrees with a typed one against the back end that answered it.
type Router struct {
	backends map[port.Type]port.Provider
	order    []port.Type
}

// New creates a Router. order lists the types ResolveName tries, first to last; types without a
// back end are skipped. Registering two back ends for one type is an error.
func New(order []port.Type, backends ...port.Backend) (*Router, error) {
	r := &Router{backends: make(map[port.Type]port.Provider, len(backends))}
	for _, b := range backends {
		if !b.Type.Valid() {
			return nil, fmt.Errorf("invalid back end type %d", int(b.Type))
		}
		if b.Provider == nil {
			return nil, fmt.Errorf("nil provider for %s back end", b.Type)
		}
		if _, dup := r.backends[b.Type]; dup {
			return nil, fmt.Errorf("duplicate back end for type %s", b.Type)
		}
		r.backends[b.Type] = port.Upgrade(b.Provider)
	}

	seen := make(map[port.Type]bool, len(order))
	for _, typ := range order {
		if !typ.Valid() {
			return nil, fmt.Errorf("invalid type %d in default order", int(typ))
		}
		if seen[typ] {
			continue
		}
		seen[typ] = true
		r.order = append(r.order, typ)
	}
	return r, nil
}

// ParseOrder parses the configured default order.
func ParseOrder(names []string) ([]port.Type, error) {
	order := make([]port.Type, 0, len(names))
	for _, name := range names {
		typ, err := port.ParseType(name)
		if err != nil {
			return nil, fmt.Errorf("invalid default order: %w", err)
		}
		order = append(order, typ)
	}
	return order, nil
}

// Types returns the types with a registered back end, in default order first.
func (r *Router) Types() []port.Type {
	out := make([]port.Type, 0, len(r.backends))
	for _, typ := range r.order {
		if _, ok := r.backends[typ]; ok {
			out = append(out, typ)
		}
	}
	for _, typ := range port.Types() {
		if _, ok := r.backends[typ]; ok && !contains(out, typ) {
			out = append(out, typ)
		}
	}
	return out
}

// Backend returns the provider serving typ.
func (r *Router) Backend(typ port.Type) (port.Provider, bool) {
	p, ok := r.backends[typ]
	return p, ok
}

// ResolveName returns the first successful typed resolution in the default order.
func (r *Router) ResolveName(ctx context.Context, name string) (port.DataSource, error) {
	var causes *multierror.Error
	for _, typ := range r.order {
		b, ok := r.backends[typ]
		if !ok {
			continue
		}
		ds, err := b.ResolveTyped(ctx, name, typ)
		if err == nil {
			return ds, nil
		}
		logger.Debugf("Resolution of '%s' through %s back end failed: %v", name, typ, err)
		causes = multierror.Append(causes, err)
		if ctx.Err() != nil {
			break
		}
	}
	if causes == nil {
		return nil, port.NewNamingError(port.OpResolveName, name, 0, port.ErrNotFound)
	}
	return nil, port.NewNamingError(port.OpResolveName, name, 0, causes.ErrorOrNil())
}

// ResolveTyped resolves name through the back end serving typ.
func (r *Router) ResolveTyped(ctx context.Context, name string, typ port.Type) (port.DataSource, error) {
	b, ok := r.backends[typ]
	if !ok {
		return nil, port.NewNamingError(port.OpResolveTyped, name, typ, port.ErrUnknownType)
	}
	return b.ResolveTyped(ctx, name, typ)
}

// ResolveFromConfig delegates to the back end serving typ.
func (r *Router) ResolveFromConfig(ctx context.Context, desc dbconfig.DatabaseConfig, typ port.Type) (port.DataSource, error) {
	b, ok := r.backends[typ]
	if !ok {
		return nil, port.NotSupported(port.OpResolveFromConfig, typ)
	}
	return b.ResolveFromConfig(ctx, desc, typ)
}

// Invalidate delegates to the back end serving typ.
func (r *Router) Invalidate(ctx context.Context, name string, typ port.Type) (port.DataSource, error) {
	b, ok := r.backends[typ]
	if !ok {
		return nil, port.NotSupported(port.OpInvalidate, typ)
	}
	return b.Invalidate(ctx, name, typ)
}

func contains(types []port.Type, typ port.Type) bool {
	for _, t := range types {
		if t == typ {
			return true
		}
	}
	return false
}

var _ port.Provider = (*Router)(nil)
