package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	config "github.com/tigerroll/datasource/pkg/datasource/core/config"
	"github.com/tigerroll/datasource/pkg/datasource/core/port"
	"github.com/tigerroll/datasource/pkg/datasource/infrastructure/metrics"
	"github.com/tigerroll/datasource/pkg/datasource/test"
)

func TestGetApplicationOptions_Validate(t *testing.T) {
	err := fx.ValidateApp(GetApplicationOptions("", config.EmbeddedConfig(embeddedConfig))...)
	require.NoError(t, err)
}

// TestApplication_EmbeddedConfig resolves the embedded sample data sources end to end.
func TestApplication_EmbeddedConfig(t *testing.T) {
	var (
		provider port.Provider
		recorder *metrics.PrometheusRecorder
	)
	app := fxtest.New(t, append(
		GetApplicationOptions("", config.EmbeddedConfig(embeddedConfig)),
		fx.Populate(&provider, &recorder),
	)...)
	app.RequireStart()
	defer app.RequireStop()

	ctx := context.Background()
	var out bytes.Buffer

	require.NoError(t, run(ctx, provider, request{Name: "reports"}, &out))
	assert.Contains(t, out.String(), "resolved name=reports type=directory")

	out.Reset()
	require.NoError(t, run(ctx, provider, request{Name: "sales-db", Invalidate: true}, &out))
	assert.Contains(t, out.String(), "resolved name=sales-db type=pooled")
	assert.Contains(t, out.String(), "invalidated name=sales-db type=pooled")

	out.Reset()
	require.NoError(t, run(ctx, provider, request{Name: "reports", Invalidate: true}, &out))
	assert.Contains(t, out.String(), "invalidate skipped")

	err := run(ctx, provider, request{Name: "sales-db", Type: port.TypeDirectory}, &out)
	assert.True(t, port.IsNamingError(err))

	out.Reset()
	require.NoError(t, printMetrics(recorder, &out))
	assert.Contains(t, out.String(), "datasource_resolutions_total{operation=ResolveName,outcome=success,type=any} 3")
	assert.Contains(t, out.String(), "operation=ResolveTyped,outcome=naming_error,type=directory} 1")
}

func TestRun_Errors(t *testing.T) {
	ctx := context.Background()
	p := new(test.MockProvider)
	p.On("ResolveName", mock.Anything, "missing").
		Return(nil, port.NewNamingError(port.OpResolveName, "missing", 0, nil))

	err := run(ctx, p, request{Name: "missing"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, port.ErrNotFound)

	ds, _ := test.NewSQLMockDataSource(t, "sales-db", port.TypePooled)
	p.On("ResolveTyped", mock.Anything, "sales-db", port.TypePooled).Return(ds, nil)
	p.On("Invalidate", mock.Anything, "sales-db", port.TypePooled).
		Return(nil, port.NewNamingError(port.OpInvalidate, "sales-db", port.TypePooled, nil))

	var out bytes.Buffer
	err = run(ctx, p, request{Name: "sales-db", Type: port.TypePooled, Invalidate: true}, &out)
	assert.ErrorContains(t, err, "failed to invalidate")
	assert.Contains(t, out.String(), "resolved name=sales-db type=pooled id="+ds.ID())
}
