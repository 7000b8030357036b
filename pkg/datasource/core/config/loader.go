package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/datasource/pkg/datasource/support/util/exception"
	"github.com/tigerroll/datasource/pkg/datasource/support/util/logger"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string `name:"envFilePath" optional:"true"`
}

// LoadConfig loads defaults, merges the YAML document over them, then applies environment overrides.
// Environment variables are named after the yaml tags, e.g. DATASOURCE_POOL_IDLE_TTL_MINUTES or
// DATASOURCE_DATABASE_SALES_DB_PASSWORD for the entry "sales-db".
func LoadConfig(envFilePath string, data []byte) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else if err := godotenv.Load(); err != nil {
		logger.Debugf(".env file not found or could not be loaded: %v", err)
	}

	cfg := NewConfig()

	var yamlConfig Config
	if err := yaml.Unmarshal(NewOsEnvironmentExpander().Expand(data), &yamlConfig); err != nil {
		return nil, exception.NewError(moduleName, "failed to unmarshal config", err, false)
	}
	mergeConfig(cfg, &yamlConfig)

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewError(moduleName, "failed to load config from environment variables", err, false)
	}
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads *Config and applies the configured log level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := LoadConfig(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, err
	}
	logger.SetLogLevel(cfg.Datasource.System.Logging.Level)
	logger.Debugf("Log level set to: %s", cfg.Datasource.System.Logging.Level)
	return cfg, nil
}

func mergeConfig(dest, source *Config) {
	d, s := &dest.Datasource, &source.Datasource

	if s.System.Logging.Level != "" {
		d.System.Logging.Level = s.System.Logging.Level
	}
	if s.System.Logging.SQLLevel != "" {
		d.System.Logging.SQLLevel = s.System.Logging.SQLLevel
	}

	if s.Resolver.DefaultOrder != nil {
		d.Resolver.DefaultOrder = s.Resolver.DefaultOrder
	}

	if s.Directory.Prefixes != nil {
		d.Directory.Prefixes = s.Directory.Prefixes
	}
	if s.Directory.LookupTimeoutMillis != 0 {
		d.Directory.LookupTimeoutMillis = s.Directory.LookupTimeoutMillis
	}
	for name, binding := range s.Directory.Bindings {
		d.Directory.Bindings[name] = binding
	}

	if s.Pool.IdleTTLMinutes != 0 {
		d.Pool.IdleTTLMinutes = s.Pool.IdleTTLMinutes
	}
	if s.Pool.CleanupIntervalSeconds != 0 {
		d.Pool.CleanupIntervalSeconds = s.Pool.CleanupIntervalSeconds
	}
	if s.Pool.HealthCheckTimeoutMillis != 0 {
		d.Pool.HealthCheckTimeoutMillis = s.Pool.HealthCheckTimeoutMillis
	}

	if s.Telemetry.ServiceName != "" {
		d.Telemetry.ServiceName = s.Telemetry.ServiceName
	}
	if s.Telemetry.OTLPEndpoint != "" {
		d.Telemetry.OTLPEndpoint = s.Telemetry.OTLPEndpoint
	}
	d.Telemetry.OTLPInsecure = d.Telemetry.OTLPInsecure || s.Telemetry.OTLPInsecure
	if s.Telemetry.OTLPProtocol != "" {
		d.Telemetry.OTLPProtocol = s.Telemetry.OTLPProtocol
	}

	for name, dbCfg := range s.AdapterConfigs {
		d.AdapterConfigs[name] = dbCfg
	}
}

// loadStructFromEnv recursively loads values into a struct from environment variables named after
// the upper-cased yaml tags joined with "_".
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		switch field.Kind() {
		case reflect.Struct:
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		case reflect.Map:
			if field.Type().Key().Kind() == reflect.String && field.Type().Elem().Kind() == reflect.Interface {
				loadMapFromEnv(field, envVarName+"_")
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// loadMapFromEnv overrides scalar keys of existing map[string]interface{} entries.
// Entry names are matched after upper-casing and replacing every character outside [A-Z0-9] with
// "_", so DATASOURCE_DATABASE_SALES_DB_PASSWORD=x sets database["sales-db"]["password"] = "x".
// Variables matching no entry are ignored.
func loadMapFromEnv(mapField reflect.Value, prefix string) {
	if mapField.IsNil() {
		mapField.Set(reflect.MakeMap(mapField.Type()))
	}
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(env, prefix), "=", 2)
		if len(parts) != 2 {
			continue
		}
		entryName, fieldName := splitEntryKey(mapField, parts[0])
		if entryName == "" || fieldName == "" {
			logger.Warnf("Ignoring %s%s: no configured entry matches.", prefix, parts[0])
			continue
		}

		entry := map[string]interface{}{}
		if m, ok := mapField.MapIndex(reflect.ValueOf(entryName)).Interface().(map[string]interface{}); ok {
			for k, v := range m {
				entry[k] = v
			}
		}
		entry[fieldName] = parts[1]
		mapField.SetMapIndex(reflect.ValueOf(entryName), reflect.ValueOf(entry))
	}
}

// splitEntryKey finds the entry of mapField whose normalised name prefixes keyAndField and returns
// it with the remaining field name. The longest matching entry wins.
func splitEntryKey(mapField reflect.Value, keyAndField string) (string, string) {
	var entryName, fieldName string
	for _, k := range mapField.MapKeys() {
		name := k.String()
		envName := envKey(name) + "_"
		if !strings.HasPrefix(keyAndField, envName) || len(name) <= len(entryName) {
			continue
		}
		entryName, fieldName = name, strings.ToLower(strings.TrimPrefix(keyAndField, envName))
	}
	return entryName, fieldName
}

// envKey normalises a map key the way it appears in an environment variable name.
func envKey(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}

// setField sets a scalar or []string field from its string representation.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type %s", field.Type().Elem())
		}
		items := []string{}
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}
	return nil
}
