package directory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tigerroll/datasource/pkg/datasource/core/port"
	"github.com/tigerroll/datasource/pkg/datasource/support/util/logger"
)

// DefaultPrefixes are the environment prefixes tried after the raw name.
var DefaultPrefixes = []string{"java:comp/env/jdbc/", "java:comp/env/"}

// Options configure a Provider.
type Options struct {
	// Prefixes are prepended to a name, in order, when the raw name is not bound.
	Prefixes []string
	// LookupTimeout bounds each lookup. Zero means no bound beyond the caller's context.
	LookupTimeout time.Duration
}

// Provider resolves names bound in a naming Context. It has no cached state, so it
// supports neither configuration-based resolution nor invalidation.
type Provider struct {
	port.Unimplemented

	naming   Context
	prefixes []string
	timeout  time.Duration
}

// NewProvider creates a directory Provider over naming.
func NewProvider(naming Context, opts Options) *Provider {
	return &Provider{
		naming:   naming,
		prefixes: append([]string(nil), opts.Prefixes...),
		timeout:  opts.LookupTimeout,
	}
}

// Type returns port.TypeDirectory.
func (p *Provider) Type() port.Type { return port.TypeDirectory }

// ResolveName looks name up in the naming context.
func (p *Provider) ResolveName(ctx context.Context, name string) (port.DataSource, error) {
	return p.lookup(ctx, port.OpResolveName, name, 0)
}

// ResolveTyped looks name up when typ is TypeDirectory. Pooled registrations are never visible here.
func (p *Provider) ResolveTyped(ctx context.Context, name string, typ port.Type) (port.DataSource, error) {
	if !typ.Valid() {
		return nil, port.NewNamingError(port.OpResolveTyped, name, typ, port.ErrUnknownType)
	}
	if typ != port.TypeDirectory {
		return nil, port.NewNamingError(port.OpResolveTyped, name, typ, port.ErrNotFound)
	}
	return p.lookup(ctx, port.OpResolveTyped, name, typ)
}

func (p *Provider) lookup(ctx context.Context, op, name string, typ port.Type) (port.DataSource, error) {
	if strings.TrimSpace(name) == "" {
		return nil, port.NewNamingError(op, name, typ, port.ErrMalformedName)
	}
	if p.naming == nil {
		return nil, port.NewNamingError(op, name, typ, errors.New("no naming context configured"))
	}

	for _, candidate := range p.candidates(name) {
		obj, err := p.lookupOne(ctx, candidate)
		if errors.Is(err, ErrNameNotBound) {
			continue
		}
		if err != nil {
			logger.Debugf("Directory lookup of '%s' failed: %v", candidate, err)
			return nil, port.NewNamingError(op, name, typ, err)
		}
		ds, err := wrap(name, obj)
		if err != nil {
			return nil, port.NewNamingError(op, name, typ, err)
		}
		return ds, nil
	}
	return nil, port.NewNamingError(op, name, typ, port.ErrNotFound)
}

func (p *Provider) lookupOne(ctx context.Context, name string) (interface{}, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return p.naming.Lookup(ctx, name)
}

// candidates returns name followed by each prefixed form it does not already carry.
func (p *Provider) candidates(name string) []string {
	out := []string{name}
	for _, prefix := range p.prefixes {
		if prefix == "" || strings.HasPrefix(name, prefix) {
			continue
		}
		out = append(out, prefix+name)
	}
	return out
}

var _ port.Provider = (*Provider)(nil)
