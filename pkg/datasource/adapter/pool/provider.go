// Package pool resolves data sources from connection pools keyed by logical name.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"gorm.io/gorm"

	gormadapter "github.com/tigerroll/datasource/pkg/datasource/adapter/database/gorm"
	"github.com/tigerroll/datasource/pkg/datasource/core/dbconfig"
	"github.com/tigerroll/datasource/pkg/datasource/core/port"
	"github.com/tigerroll/datasource/pkg/datasource/support/util/exception"
	"github.com/tigerroll/datasource/pkg/datasource/support/util/logger"
)

// ErrClosed is the cause reported by a Provider after Close.
var ErrClosed = errors.New("pool provider is closed")

const defaultHealthCheckTimeout = 5 * time.Second

// Opener opens the *gorm.DB backing a pool.
type Opener func(ctx context.Context, cfg dbconfig.DatabaseConfig) (*gorm.DB, error)

// Options configure a Provider.
type Options struct {
	// IdleTTL closes pools unused for longer than this. Zero disables idle eviction.
	IdleTTL time.Duration
	// CleanupInterval is how often idle pools are looked for. Defaults to IdleTTL/2.
	CleanupInterval time.Duration
	// HealthCheckTimeout bounds the ping made before a cached pool is handed out.
	HealthCheckTimeout time.Duration
	// SQLLogLevel is passed to the GORM logger of every opened pool.
	SQLLogLevel string
	// Opener overrides how pools are opened.
	Opener Opener
}

type entry struct {
	ds       *gormadapter.DataSource
	cfg      dbconfig.DatabaseConfig
	lastUsed atomic.Int64
}

func (e *entry) touch(now time.Time) { e.lastUsed.Store(now.UnixNano()) }

// Provider is the pooled back end. Pools are opened on first resolution, health-checked before
// reuse and evicted after an idle period or an explicit invalidation.
type Provider struct {
	mu          sync.RWMutex
	descriptors map[string]dbconfig.DatabaseConfig
	pools       map[string]*entry
	closed      bool

	opts   Options
	opener Opener
	now    func() time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewProvider creates a Provider for the given descriptors, keyed by logical name.
func NewProvider(descriptors map[string]dbconfig.DatabaseConfig, opts Options) *Provider {
	if opts.HealthCheckTimeout <= 0 {
		opts.HealthCheckTimeout = defaultHealthCheckTimeout
	}
	p := &Provider{
		descriptors: make(map[string]dbconfig.DatabaseConfig, len(descriptors)),
		pools:       make(map[string]*entry),
		opts:        opts,
		opener:      opts.Opener,
		now:         time.Now,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	if p.opener == nil {
		p.opener = func(ctx context.Context, cfg dbconfig.DatabaseConfig) (*gorm.DB, error) {
			return gormadapter.Open(ctx, cfg, gormadapter.OpenOptions{SQLLogLevel: opts.SQLLogLevel})
		}
	}
	for name, desc := range descriptors {
		if desc.Name == "" {
			desc.Name = name
		}
		p.descriptors[name] = desc
	}

	if opts.IdleTTL > 0 {
		interval := opts.CleanupInterval
		if interval <= 0 {
			interval = opts.IdleTTL / 2
		}
		go p.sweep(interval)
	} else {
		close(p.done)
	}
	return p
}

// Type returns port.TypePooled.
func (p *Provider) Type() port.Type { return port.TypePooled }

// Register adds or replaces the descriptor for name. An open pool for name is kept until it is
// invalidated or evicted.
func (p *Provider) Register(name string, desc dbconfig.DatabaseConfig) error {
	if strings.TrimSpace(name) == "" {
		return exception.NewError("pool", "cannot register an empty name", nil, false)
	}
	if err := desc.Validate(); err != nil {
		return exception.NewError("pool", fmt.Sprintf("invalid descriptor for %s", name), err, false)
	}
	if desc.Name == "" {
		desc.Name = name
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.descriptors[name] = desc
	return nil
}

// ResolveName resolves name from its pool.
func (p *Provider) ResolveName(ctx context.Context, name string) (port.DataSource, error) {
	return p.resolve(ctx, port.OpResolveName, name, 0, nil)
}

// ResolveTyped resolves name when typ is TypePooled. Directory bindings are never visible here.
func (p *Provider) ResolveTyped(ctx context.Context, name string, typ port.Type) (port.DataSource, error) {
	if !typ.Valid() {
		return nil, port.NewNamingError(port.OpResolveTyped, name, typ, port.ErrUnknownType)
	}
	if typ != port.TypePooled {
		return nil, port.NewNamingError(port.OpResolveTyped, name, typ, port.ErrNotFound)
	}
	return p.resolve(ctx, port.OpResolveTyped, name, typ, nil)
}

// ResolveFromConfig resolves a pool for desc, keyed by desc.Name or, when unnamed, by its fingerprint.
// A descriptor that differs from the one the pool was opened with replaces the pool.
func (p *Provider) ResolveFromConfig(ctx context.Context, desc dbconfig.DatabaseConfig, typ port.Type) (port.DataSource, error) {
	if typ != port.TypePooled {
		return nil, port.NotSupported(port.OpResolveFromConfig, typ)
	}
	key := desc.Name
	if key == "" {
		key = desc.Fingerprint()
		desc.Name = key
	}
	if err := desc.Validate(); err != nil {
		return nil, port.NewNamingError(port.OpResolveFromConfig, key, typ, fmt.Errorf("%w: %v", port.ErrMalformedName, err))
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, port.NewNamingError(port.OpResolveFromConfig, key, typ, ErrClosed)
	}
	if prev, ok := p.descriptors[key]; ok && prev.Fingerprint() != desc.Fingerprint() {
		logger.Infof("Descriptor for '%s' changed (%s -> %s). Replacing pool.", key, prev, desc)
	}
	p.descriptors[key] = desc
	p.mu.Unlock()

	return p.resolve(ctx, port.OpResolveFromConfig, key, typ, &desc)
}

// Invalidate closes the pool for name and returns a handle to a newly opened one.
func (p *Provider) Invalidate(ctx context.Context, name string, typ port.Type) (port.DataSource, error) {
	if typ != port.TypePooled {
		return nil, port.NotSupported(port.OpInvalidate, typ)
	}
	if strings.TrimSpace(name) == "" {
		return nil, port.NewNamingError(port.OpInvalidate, name, typ, port.ErrMalformedName)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, port.NewNamingError(port.OpInvalidate, name, typ, ErrClosed)
	}
	desc, ok := p.descriptors[name]
	if !ok {
		return nil, port.NewNamingError(port.OpInvalidate, name, typ, port.ErrNotFound)
	}
	if e, ok := p.pools[name]; ok {
		p.closeEntry(name, e)
		logger.Infof("Invalidated pool '%s' (handle %s).", name, e.ds.ID())
	}
	e, err := p.openLocked(ctx, name, desc)
	if err != nil {
		return nil, port.NewNamingError(port.OpInvalidate, name, typ, err)
	}
	return e.ds, nil
}

// resolve returns the pool for name. When want is set, only a pool opened from a descriptor with the
// same fingerprint is reused and a new pool is opened from want itself.
func (p *Provider) resolve(ctx context.Context, op, name string, typ port.Type, want *dbconfig.DatabaseConfig) (port.DataSource, error) {
	if strings.TrimSpace(name) == "" {
		return nil, port.NewNamingError(op, name, typ, port.ErrMalformedName)
	}

	p.mu.RLock()
	closed := p.closed
	e, ok := p.pools[name]
	p.mu.RUnlock()
	if closed {
		return nil, port.NewNamingError(op, name, typ, ErrClosed)
	}

	if !ok {
		return p.reopen(ctx, op, name, typ, nil, want)
	}
	if !matches(e, want) {
		return p.reopen(ctx, op, name, typ, e, want)
	}

	pingCtx, cancel := context.WithTimeout(ctx, p.opts.HealthCheckTimeout)
	err := e.ds.Ping(pingCtx)
	cancel()
	if err != nil {
		logger.Warnf("Health check for pool '%s' failed: %v. Reconnecting.", name, err)
		return p.reopen(ctx, op, name, typ, e, want)
	}
	e.touch(p.now())
	return e.ds, nil
}

// reopen opens the pool for name unless another caller already replaced stale with a pool that
// satisfies want. A nil want opens from the registered descriptor.
func (p *Provider) reopen(ctx context.Context, op, name string, typ port.Type, stale *entry, want *dbconfig.DatabaseConfig) (port.DataSource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, port.NewNamingError(op, name, typ, ErrClosed)
	}
	if cur, ok := p.pools[name]; ok {
		if cur != stale && matches(cur, want) {
			cur.touch(p.now())
			return cur.ds, nil
		}
		p.closeEntry(name, cur)
	}

	desc, ok := p.descriptors[name]
	if want != nil {
		desc, ok = *want, true
	}
	if !ok {
		return nil, port.NewNamingError(op, name, typ, port.ErrNotFound)
	}
	e, err := p.openLocked(ctx, name, desc)
	if err != nil {
		return nil, port.NewNamingError(op, name, typ, err)
	}
	return e.ds, nil
}

func matches(e *entry, want *dbconfig.DatabaseConfig) bool {
	return want == nil || e.cfg.Fingerprint() == want.Fingerprint()
}

func (p *Provider) openLocked(ctx context.Context, name string, desc dbconfig.DatabaseConfig) (*entry, error) {
	db, err := p.opener(ctx, desc)
	if err != nil {
		return nil, exception.NewErrorf("pool", "failed to open pool for %s (%s)", name, desc, err)
	}
	ds, err := gormadapter.NewDataSource(name, port.TypePooled, db, desc)
	if err != nil {
		return nil, exception.NewErrorf("pool", "failed to wrap pool for %s", name, err)
	}
	e := &entry{ds: ds, cfg: desc}
	e.touch(p.now())
	p.pools[name] = e
	logger.Debugf("Opened pool '%s' (%s, handle %s).", name, desc, ds.ID())
	return e, nil
}

func (p *Provider) closeEntry(name string, e *entry) {
	delete(p.pools, name)
	if err := e.ds.Close(); err != nil {
		logger.Warnf("Failed to close pool '%s': %v", name, err)
	}
}

func (p *Provider) sweep(interval time.Duration) {
	defer close(p.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.EvictIdle()
		}
	}
}

// EvictIdle closes pools unused for longer than the idle TTL and returns their names.
// Descriptors are kept, so a later resolution reopens the pool.
func (p *Provider) EvictIdle() []string {
	if p.opts.IdleTTL <= 0 {
		return nil
	}
	cutoff := p.now().Add(-p.opts.IdleTTL).UnixNano()

	p.mu.Lock()
	defer p.mu.Unlock()
	var evicted []string
	for name, e := range p.pools {
		if e.lastUsed.Load() < cutoff {
			p.closeEntry(name, e)
			evicted = append(evicted, name)
		}
	}
	sort.Strings(evicted)
	if len(evicted) > 0 {
		logger.Infof("Closed idle pools: %s", strings.Join(evicted, ", "))
	}
	return evicted
}

// Stats describes an open pool.
type Stats struct {
	Name      string
	HandleID  string
	Database  string
	LastUsed  time.Time
	OpenConns int
	InUse     int
	Idle      int
}

// Stats returns the state of every open pool, sorted by name.
func (p *Provider) Stats() []Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Stats, 0, len(p.pools))
	for name, e := range p.pools {
		s := e.ds.DB().Stats()
		out = append(out, Stats{
			Name:      name,
			HandleID:  e.ds.ID(),
			Database:  e.cfg.String(),
			LastUsed:  time.Unix(0, e.lastUsed.Load()),
			OpenConns: s.OpenConnections,
			InUse:     s.InUse,
			Idle:      s.Idle,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Close stops idle eviction and closes every pool. It is safe to call more than once.
func (p *Provider) Close() error {
	var result *multierror.Error
	p.closeOnce.Do(func() {
		close(p.stop)
		<-p.done

		p.mu.Lock()
		defer p.mu.Unlock()
		p.closed = true
		for name, e := range p.pools {
			if err := e.ds.Close(); err != nil {
				result = multierror.Append(result, fmt.Errorf("failed to close pool %s: %w", name, err))
			}
			delete(p.pools, name)
		}
	})
	return result.ErrorOrNil()
}

var _ port.Provider = (*Provider)(nil)
