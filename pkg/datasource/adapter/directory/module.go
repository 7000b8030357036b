package directory

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/tigerroll/datasource/pkg/datasource/core/config"
	"github.com/tigerroll/datasource/pkg/datasource/core/port"
	"github.com/tigerroll/datasource/pkg/datasource/support/util/logger"
)

// NewMapContextFromConfig creates the naming context and binds the configured data sources.
// Pools it opened are closed when the application stops.
func NewMapContextFromConfig(lc fx.Lifecycle, cfg *config.Config) (*MapContext, error) {
	m := NewMapContext()
	bindings := cfg.Datasource.Directory.Bindings
	if len(bindings) > 0 {
		timeout := time.Duration(cfg.Datasource.Directory.LookupTimeoutMillis) * time.Millisecond
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout*time.Duration(len(bindings)))
			defer cancel()
		}
		if err := BindFromConfig(ctx, m, bindings); err != nil {
			_ = m.Close()
			return nil, err
		}
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Infof("Closing directory bindings.")
			return m.Close()
		},
	})
	return m, nil
}

// NewProviderFromConfig creates a Provider over naming using the directory settings of cfg.
func NewProviderFromConfig(naming Context, cfg *config.Config) *Provider {
	dc := cfg.Datasource.Directory
	return NewProvider(naming, Options{
		Prefixes:      dc.Prefixes,
		LookupTimeout: time.Duration(dc.LookupTimeoutMillis) * time.Millisecond,
	})
}

// NewBackend registers p with the router.
func NewBackend(p *Provider) port.Backend {
	return port.Backend{Type: port.TypeDirectory, Provider: p}
}

// Module provides the in-memory naming context and the directory back end.
var Module = fx.Options(
	fx.Provide(
		NewMapContextFromConfig,
		fx.Annotate(
			NewProviderFromConfig,
			fx.From(new(*MapContext)),
		),
		fx.Annotate(
			NewBackend,
			fx.ResultTags(`group:"`+port.ProviderGroup+`"`),
		),
	),
)
