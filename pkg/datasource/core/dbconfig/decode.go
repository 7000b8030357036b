package dbconfig

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
)

// Decode decodes a raw configuration entry (as read from YAML or the environment) into a
// DatabaseConfig. Scalar values are converted weakly, so "5432" decodes into Port.
// An empty Name is set to name.
func Decode(name string, raw interface{}) (DatabaseConfig, error) {
	var cfg DatabaseConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return cfg, fmt.Errorf("failed to create decoder for %s: %w", name, err)
	}
	if err := decoder.Decode(raw); err != nil {
		return cfg, fmt.Errorf("failed to decode database config %s: %w", name, err)
	}
	if cfg.Name == "" {
		cfg.Name = name
	}
	return cfg, nil
}

// DecodeAll decodes and validates every entry of raw. Failing entries are reported together.
func DecodeAll(raw map[string]interface{}) (map[string]DatabaseConfig, error) {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]DatabaseConfig, len(raw))
	var result *multierror.Error
	for _, name := range names {
		cfg, err := Decode(name, raw[name])
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("database %s: %w", name, err))
			continue
		}
		out[name] = cfg
	}
	return out, result.ErrorOrNil()
}
