package port

import (
	"context"
	"reflect"

	"github.com/tigerroll/datasource/pkg/datasource/core/dbconfig"
)

// Upgrade adapts a provider written against the minimal contract to the full Provider.
// Optional operations are forwarded when p implements them and report ErrNotSupported otherwise.
// A provider that already implements Provider is still wrapped so that the nil-handle
// guarantee holds for every call.
func Upgrade(p NamedProvider) Provider {
	if u, ok := p.(*upgraded); ok {
		return u
	}
	return &upgraded{inner: p}
}

type upgraded struct {
	inner NamedProvider
}

func (u *upgraded) ResolveName(ctx context.Context, name string) (DataSource, error) {
	ds, err := u.inner.ResolveName(ctx, name)
	return checkHandle(OpResolveName, name, 0, ds, err)
}

func (u *upgraded) ResolveTyped(ctx context.Context, name string, typ Type) (DataSource, error) {
	ds, err := u.inner.ResolveTyped(ctx, name, typ)
	return checkHandle(OpResolveTyped, name, typ, ds, err)
}

func (u *upgraded) ResolveFromConfig(ctx context.Context, desc dbconfig.DatabaseConfig, typ Type) (DataSource, error) {
	cr, ok := u.inner.(ConfigResolver)
	if !ok {
		return nil, NotSupported(OpResolveFromConfig, typ)
	}
	ds, err := cr.ResolveFromConfig(ctx, desc, typ)
	return checkHandle(OpResolveFromConfig, desc.Name, typ, ds, err)
}

func (u *upgraded) Invalidate(ctx context.Context, name string, typ Type) (DataSource, error) {
	inv, ok := u.inner.(Invalidator)
	if !ok {
		return nil, NotSupported(OpInvalidate, typ)
	}
	ds, err := inv.Invalidate(ctx, name, typ)
	return checkHandle(OpInvalidate, name, typ, ds, err)
}

// checkHandle turns a nil handle without an error into a NamingError so that absence is never silent.
func checkHandle(op, name string, typ Type, ds DataSource, err error) (DataSource, error) {
	if err != nil {
		return nil, err
	}
	if isNilHandle(ds) {
		return nil, NewNamingError(op, name, typ, ErrNotFound)
	}
	return ds, nil
}

// isNilHandle also catches a nil pointer returned as a DataSource.
func isNilHandle(ds DataSource) bool {
	if ds == nil {
		return true
	}
	v := reflect.ValueOf(ds)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}

var _ Provider = (*upgraded)(nil)
