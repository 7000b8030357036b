package config

import "go.uber.org/fx"

// NewTelemetryConfigProvider extracts the telemetry section from *Config.
func NewTelemetryConfigProvider(cfg *Config) TelemetryConfig {
	return cfg.Datasource.Telemetry
}

// Module provides configuration-derived components. *Config itself is supplied by the application
// (see NewConfigProvider) so that it can be loaded before the container is built.
var Module = fx.Options(
	fx.Provide(NewTelemetryConfigProvider),
)
