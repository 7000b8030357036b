package pool

import (
	"context"
	"time"

	"go.uber.org/fx"

	gormadapter "github.com/tigerroll/datasource/pkg/datasource/adapter/database/gorm"
	"github.com/tigerroll/datasource/pkg/datasource/core/config"
	"github.com/tigerroll/datasource/pkg/datasource/core/dbconfig"
	"github.com/tigerroll/datasource/pkg/datasource/core/port"
	"github.com/tigerroll/datasource/pkg/datasource/support/util/exception"
	"github.com/tigerroll/datasource/pkg/datasource/support/util/logger"
)

// OptionsFromConfig maps the pool section of cfg to Options.
func OptionsFromConfig(cfg *config.Config) Options {
	pc := cfg.Datasource.Pool
	return Options{
		IdleTTL:            time.Duration(pc.IdleTTLMinutes) * time.Minute,
		CleanupInterval:    time.Duration(pc.CleanupIntervalSeconds) * time.Second,
		HealthCheckTimeout: time.Duration(pc.HealthCheckTimeoutMillis) * time.Millisecond,
		SQLLogLevel:        cfg.Datasource.System.Logging.SQLLevel,
	}
}

// NewProviderFromConfig creates a Provider for the databases configured under datasource.database.
func NewProviderFromConfig(cfg *config.Config) (*Provider, error) {
	descriptors, err := dbconfig.DecodeAll(cfg.Datasource.AdapterConfigs)
	if err != nil {
		return nil, exception.NewError("pool", "invalid database configuration", err, false)
	}
	return NewProvider(descriptors, OptionsFromConfig(cfg)), nil
}

// ProviderParams are the fx dependencies of the pooled back end.
type ProviderParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Config    *config.Config
	Drivers   []gormadapter.Driver `group:"datasource_drivers"`
}

// NewModuleProvider registers the contributed drivers, creates the Provider and closes it on stop.
func NewModuleProvider(p ProviderParams) (*Provider, error) {
	types := gormadapter.RegisterDrivers(p.Drivers)
	logger.Debugf("Pooled data sources available for types: %v", types)

	provider, err := NewProviderFromConfig(p.Config)
	if err != nil {
		return nil, err
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Infof("Closing pooled data sources.")
			return provider.Close()
		},
	})
	return provider, nil
}

// NewBackend registers p with the router.
func NewBackend(p *Provider) port.Backend {
	return port.Backend{Type: port.TypePooled, Provider: p}
}

// Module provides the pooled back end.
var Module = fx.Options(
	fx.Provide(
		NewModuleProvider,
		fx.Annotate(
			NewBackend,
			fx.ResultTags(`group:"`+port.ProviderGroup+`"`),
		),
	),
)
