// Package gorm opens pooled data sources through GORM dialectors registered per database type.
package gorm

import (
	"fmt"
	"sort"
	"sync"

	"gorm.io/gorm"

	"github.com/tigerroll/datasource/pkg/datasource/core/dbconfig"
	"github.com/tigerroll/datasource/pkg/datasource/support/util/logger"
)

// DialectorFactory generates a gorm.Dialector from a dbconfig.DatabaseConfig.
type DialectorFactory func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error)

var (
	dialectorRegistry = make(map[string]DialectorFactory)
	dialectorMutex    sync.RWMutex

	// typeAliases maps database types served by another type's dialector.
	typeAliases = map[string]string{
		"redshift":   "postgres",
		"postgresql": "postgres",
		"sqlite3":    "sqlite",
		"mariadb":    "mysql",
	}
)

// RegisterDialector registers a DialectorFactory for the given database type.
// Driver packages call it from init().
func RegisterDialector(dbType string, factory DialectorFactory) {
	dialectorMutex.Lock()
	defer dialectorMutex.Unlock()
	if _, exists := dialectorRegistry[dbType]; exists {
		logger.Warnf("Dialector for type '%s' already registered. Overwriting.", dbType)
	}
	dialectorRegistry[dbType] = factory
}

// GetDialectorFactory retrieves the DialectorFactory for dbType, following type aliases.
func GetDialectorFactory(dbType string) (DialectorFactory, error) {
	dialectorMutex.RLock()
	defer dialectorMutex.RUnlock()
	if factory, ok := dialectorRegistry[dbType]; ok {
		return factory, nil
	}
	if alias, ok := typeAliases[dbType]; ok {
		if factory, ok := dialectorRegistry[alias]; ok {
			return factory, nil
		}
	}
	return nil, fmt.Errorf("no dialector registered for database type: %s", dbType)
}

// RegisteredTypes lists the database types with a registered dialector.
func RegisteredTypes() []string {
	dialectorMutex.RLock()
	defer dialectorMutex.RUnlock()
	types := make([]string, 0, len(dialectorRegistry))
	for t := range dialectorRegistry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
