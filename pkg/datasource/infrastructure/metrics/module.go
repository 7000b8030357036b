package metrics

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/datasource/pkg/datasource/core/config"
	"github.com/tigerroll/datasource/pkg/datasource/core/port"
)

// NewTelemetryFromConfig creates the telemetry providers and shuts them down when the application stops.
func NewTelemetryFromConfig(lc fx.Lifecycle, cfg config.TelemetryConfig) (*Telemetry, error) {
	t, err := NewTelemetry(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return t.Shutdown(ctx)
		},
	})
	return t, nil
}

// Instrument decorates the application's port.Provider.
func Instrument(p port.Provider, recorder *PrometheusRecorder, telemetry *Telemetry) (port.Provider, error) {
	return NewInstrumented(p, recorder, telemetry)
}

// Module provides the recorder and telemetry, and instruments the port.Provider.
var Module = fx.Options(
	fx.Provide(
		NewPrometheusRecorder,
		NewTelemetryFromConfig,
	),
	fx.Decorate(Instrument),
)
