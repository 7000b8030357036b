// Package config provides the configuration model of the data source resolution framework.
package config

// EmbeddedConfig holds the raw YAML configuration, typically embedded into the binary by main.
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelSilent LogLevel = "SILENT"
)

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
	// SQLLevel is the level used for driver/ORM statement logging. Defaults to SILENT.
	SQLLevel string `yaml:"sql_level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// ResolverConfig controls how untyped lookups are routed.
type ResolverConfig struct {
	// DefaultOrder lists the back end types tried, in order, by an untyped lookup.
	DefaultOrder []string `yaml:"default_order"`
}

// DirectoryConfig configures the directory-lookup back end.
type DirectoryConfig struct {
	// Prefixes are tried, in order, after the raw name (e.g., "java:comp/env/jdbc/").
	Prefixes []string `yaml:"prefixes"`
	// LookupTimeoutMillis bounds a single directory lookup. 0 disables the bound.
	LookupTimeoutMillis int `yaml:"lookup_timeout_ms"`
	// Bindings are data sources bound into the naming context at startup, keyed by bound name.
	Bindings map[string]interface{} `yaml:"bindings"`
}

// PoolConfig configures the pool-based back end.
type PoolConfig struct {
	// IdleTTLMinutes closes pools that have not been resolved for this long. 0 disables eviction.
	IdleTTLMinutes int `yaml:"idle_ttl_minutes"`
	// CleanupIntervalSeconds is the period of the idle sweeper.
	CleanupIntervalSeconds int `yaml:"cleanup_interval_seconds"`
	// HealthCheckTimeoutMillis bounds the ping issued before a cached pool is handed out.
	HealthCheckTimeoutMillis int `yaml:"health_check_timeout_ms"`
}

// TelemetryConfig configures metrics and tracing export.
type TelemetryConfig struct {
	// ServiceName is reported as the OpenTelemetry service name.
	ServiceName string `yaml:"service_name"`
	// OTLPEndpoint enables OTLP trace and metric export when set (host:port).
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	// OTLPInsecure disables TLS for the OTLP exporter.
	OTLPInsecure bool `yaml:"otlp_insecure"`
	// OTLPProtocol selects the OTLP transport: "http" (default) or "grpc".
	OTLPProtocol string `yaml:"otlp_protocol"`
}

// DatasourceConfig holds all configuration under the "datasource" top-level key.
type DatasourceConfig struct {
	System    SystemConfig    `yaml:"system"`
	Resolver  ResolverConfig  `yaml:"resolver"`
	Directory DirectoryConfig `yaml:"directory"`
	Pool      PoolConfig      `yaml:"pool"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	// AdapterConfigs holds the pooled data source descriptors, keyed by logical name.
	AdapterConfigs map[string]interface{} `yaml:"database"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Datasource DatasourceConfig `yaml:"datasource"`
}

// NewConfig returns a Config populated with default values.
func NewConfig() *Config {
	return &Config{
		Datasource: DatasourceConfig{
			System: SystemConfig{
				Logging: LoggingConfig{Level: string(LogLevelInfo), SQLLevel: string(LogLevelSilent)},
			},
			Resolver: ResolverConfig{
				DefaultOrder: []string{"directory", "pooled"},
			},
			Directory: DirectoryConfig{
				Prefixes:            []string{"java:comp/env/jdbc/", "java:comp/env/"},
				LookupTimeoutMillis: 5000,
				Bindings:            map[string]interface{}{},
			},
			Pool: PoolConfig{
				IdleTTLMinutes:           5,
				CleanupIntervalSeconds:   60,
				HealthCheckTimeoutMillis: 5000,
			},
			Telemetry: TelemetryConfig{
				ServiceName:  "datasource",
				OTLPProtocol: "http",
			},
			AdapterConfigs: map[string]interface{}{},
		},
	}
}
