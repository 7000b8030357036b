package config

import (
	"os"
	"regexp"
)

// placeholder matches ${VAR} and ${VAR:-default}. Bare $VAR is left alone so that passwords and
// DSN parameters containing "$" survive.
var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// OsEnvironmentExpander expands placeholders from the process environment.
type OsEnvironmentExpander struct{}

// NewOsEnvironmentExpander creates an OsEnvironmentExpander.
func NewOsEnvironmentExpander() *OsEnvironmentExpander {
	return &OsEnvironmentExpander{}
}

// Expand substitutes every placeholder. An unset variable without a default expands to "".
func (e *OsEnvironmentExpander) Expand(input []byte) []byte {
	return placeholder.ReplaceAllFunc(input, func(m []byte) []byte {
		groups := placeholder.FindSubmatch(m)
		if v, ok := os.LookupEnv(string(groups[1])); ok {
			return []byte(v)
		}
		return groups[2]
	})
}
