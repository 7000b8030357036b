// Command dsresolve resolves a logical data source name through the configured back ends.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "embed"

	"go.uber.org/fx"

	config "github.com/tigerroll/datasource/pkg/datasource/core/config"
	"github.com/tigerroll/datasource/pkg/datasource/core/port"
	"github.com/tigerroll/datasource/pkg/datasource/infrastructure/metrics"
	"github.com/tigerroll/datasource/pkg/datasource/support/util/logger"
)

//go:embed resources/application.yaml
var embeddedConfig []byte

func main() {
	var (
		configPath  = flag.String("config", "", "path to an application.yaml (defaults to the embedded one)")
		typeName    = flag.String("type", "", "resolve through one back end only: directory or pooled")
		invalidate  = flag.Bool("invalidate", false, "invalidate the data source after resolving it")
		showMetrics = flag.Bool("metrics", false, "print resolution counters before exiting")
		timeout     = flag.Duration("timeout", 30*time.Second, "overall timeout")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <name>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	req := request{Name: flag.Arg(0), Invalidate: *invalidate}
	if *typeName != "" {
		typ, err := port.ParseType(*typeName)
		if err != nil {
			logger.Fatalf("%v", err)
		}
		req.Type = typ
	}

	data := embeddedConfig
	if *configPath != "" {
		b, err := os.ReadFile(*configPath)
		if err != nil {
			logger.Fatalf("Failed to read config file %s: %v", *configPath, err)
		}
		data = b
	}

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	var (
		provider port.Provider
		recorder *metrics.PrometheusRecorder
	)
	app := fx.New(append(
		GetApplicationOptions(envFilePath, config.EmbeddedConfig(data)),
		fx.Populate(&provider, &recorder),
	)...)
	if err := app.Start(ctx); err != nil {
		logger.Fatalf("Application start failed: %v", err)
	}

	runErr := run(ctx, provider, req, os.Stdout)
	if runErr == nil && *showMetrics {
		runErr = printMetrics(recorder, os.Stdout)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		logger.Errorf("Application stop failed: %v", err)
	}
	if runErr != nil {
		logger.Errorf("%v", runErr)
		os.Exit(1)
	}
}
