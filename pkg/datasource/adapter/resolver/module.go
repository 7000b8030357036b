package resolver

import (
	"go.uber.org/fx"

	"github.com/tigerroll/datasource/pkg/datasource/core/config"
	"github.com/tigerroll/datasource/pkg/datasource/core/port"
	"github.com/tigerroll/datasource/pkg/datasource/support/util/exception"
	"github.com/tigerroll/datasource/pkg/datasource/support/util/logger"
)

// RouterParams are the fx dependencies of the Router.
type RouterParams struct {
	fx.In
	Config   *config.Config
	Backends []port.Backend `group:"datasource_providers"`
}

// NewRouterFromConfig builds the Router from the contributed back ends and the configured default order.
func NewRouterFromConfig(p RouterParams) (*Router, error) {
	order, err := ParseOrder(p.Config.Datasource.Resolver.DefaultOrder)
	if err != nil {
		return nil, exception.NewError("resolver", "invalid resolver configuration", err, false)
	}
	r, err := New(order, p.Backends...)
	if err != nil {
		return nil, exception.NewError("resolver", "failed to build router", err, false)
	}
	logger.Infof("Data source router ready. Back ends: %v", r.Types())
	return r, nil
}

// AsProvider exposes the Router as the application's port.Provider.
func AsProvider(r *Router) port.Provider { return r }

// Module provides the Router as the application's port.Provider.
var Module = fx.Options(
	fx.Provide(
		NewRouterFromConfig,
		AsProvider,
	),
)
