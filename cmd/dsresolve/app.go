package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/fx"

	"github.com/tigerroll/datasource/pkg/datasource/adapter/database/gorm/mysql"
	"github.com/tigerroll/datasource/pkg/datasource/adapter/database/gorm/postgres"
	"github.com/tigerroll/datasource/pkg/datasource/adapter/database/gorm/sqlite"
	"github.com/tigerroll/datasource/pkg/datasource/adapter/directory"
	"github.com/tigerroll/datasource/pkg/datasource/adapter/pool"
	"github.com/tigerroll/datasource/pkg/datasource/adapter/resolver"
	config "github.com/tigerroll/datasource/pkg/datasource/core/config"
	"github.com/tigerroll/datasource/pkg/datasource/core/port"
	"github.com/tigerroll/datasource/pkg/datasource/infrastructure/metrics"
	"github.com/tigerroll/datasource/pkg/datasource/support/util/logger"
)

// request is what the command was asked to do.
type request struct {
	Name       string
	Type       port.Type
	Invalidate bool
}

// GetApplicationOptions assembles the fx options for the data source stack.
func GetApplicationOptions(envFilePath string, embeddedConfig config.EmbeddedConfig) []fx.Option {
	return []fx.Option{
		fx.Supply(
			embeddedConfig,
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
		),
		fx.Provide(config.NewConfigProvider),
		config.Module,
		logger.Module,

		postgres.Module,
		mysql.Module,
		sqlite.Module,

		directory.Module,
		pool.Module,
		resolver.Module,
		metrics.Module,
	}
}

// run resolves the requested data source, verifies it and optionally invalidates it.
func run(ctx context.Context, provider port.Provider, req request, out io.Writer) error {
	var (
		ds  port.DataSource
		err error
	)
	if req.Type.Valid() {
		ds, err = provider.ResolveTyped(ctx, req.Name, req.Type)
	} else {
		ds, err = provider.ResolveName(ctx, req.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to resolve %q: %w", req.Name, err)
	}
	if err := ds.DB().PingContext(ctx); err != nil {
		return fmt.Errorf("resolved %q but ping failed: %w", req.Name, err)
	}
	fmt.Fprintf(out, "resolved name=%s type=%s id=%s\n", ds.Name(), ds.Type(), ds.ID())

	if !req.Invalidate {
		return nil
	}
	fresh, err := provider.Invalidate(ctx, req.Name, ds.Type())
	if port.IsNotSupported(err) {
		fmt.Fprintf(out, "invalidate skipped: %v\n", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to invalidate %q: %w", req.Name, err)
	}
	fmt.Fprintf(out, "invalidated name=%s type=%s id=%s (was %s)\n", fresh.Name(), fresh.Type(), fresh.ID(), ds.ID())
	return nil
}

// printMetrics writes the datasource_* counters of the recorder.
func printMetrics(recorder *metrics.PrometheusRecorder, out io.Writer) error {
	families, err := recorder.Registry().Gather()
	if err != nil {
		return err
	}
	var lines []string
	for _, mf := range families {
		if mf.GetName() != "datasource_resolutions_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	return nil
}
