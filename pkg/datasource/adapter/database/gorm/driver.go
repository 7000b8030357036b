package gorm

import (
	"go.uber.org/fx"
)

// DriverGroup is the fx value group that driver packages contribute to.
const DriverGroup = "datasource_drivers"

// Driver describes a database type served by a dialector factory.
type Driver struct {
	Type    string
	Factory DialectorFactory
}

// AsDriver annotates a Driver constructor so fx collects it into DriverGroup.
func AsDriver(constructor interface{}) fx.Option {
	return fx.Provide(
		fx.Annotate(
			constructor,
			fx.ResultTags(`group:"`+DriverGroup+`"`),
		),
	)
}

// RegisterDrivers registers the drivers not present in the registry yet and
// returns the database types now available.
func RegisterDrivers(drivers []Driver) []string {
	for _, d := range drivers {
		if d.Type == "" || d.Factory == nil {
			continue
		}
		if _, err := GetDialectorFactory(d.Type); err == nil {
			continue
		}
		RegisterDialector(d.Type, d.Factory)
	}
	return RegisteredTypes()
}
