// Package test provides mocks and fixtures for code that consumes the data source port.
package test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/tigerroll/datasource/pkg/datasource/core/dbconfig"
	"github.com/tigerroll/datasource/pkg/datasource/core/port"
)

// MockNamedProvider is a mock of the minimal port.NamedProvider contract.
type MockNamedProvider struct {
	mock.Mock
}

// ResolveName mocks the ResolveName method.
func (m *MockNamedProvider) ResolveName(ctx context.Context, name string) (port.DataSource, error) {
	args := m.Called(ctx, name)
	return dataSourceArg(args), args.Error(1)
}

// ResolveTyped mocks the ResolveTyped method.
func (m *MockNamedProvider) ResolveTyped(ctx context.Context, name string, typ port.Type) (port.DataSource, error) {
	args := m.Called(ctx, name, typ)
	return dataSourceArg(args), args.Error(1)
}

// MockProvider is a mock of the full port.Provider contract.
type MockProvider struct {
	MockNamedProvider
}

// ResolveFromConfig mocks the ResolveFromConfig method.
func (m *MockProvider) ResolveFromConfig(ctx context.Context, desc dbconfig.DatabaseConfig, typ port.Type) (port.DataSource, error) {
	args := m.Called(ctx, desc, typ)
	return dataSourceArg(args), args.Error(1)
}

// Invalidate mocks the Invalidate method.
func (m *MockProvider) Invalidate(ctx context.Context, name string, typ port.Type) (port.DataSource, error) {
	args := m.Called(ctx, name, typ)
	return dataSourceArg(args), args.Error(1)
}

func dataSourceArg(args mock.Arguments) port.DataSource {
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(port.DataSource)
}

var (
	_ port.NamedProvider = (*MockNamedProvider)(nil)
	_ port.Provider      = (*MockProvider)(nil)
)
