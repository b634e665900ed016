package main

import (
	"context"
	"time"

	"colabai/sources/configuration"
	"colabai/sources/external"
	"colabai/sources/features"
	"colabai/sources/metrics"
	"colabai/sources/metrics/collector"
	"colabai/sources/persistence"
	"colabai/sources/platform"
	"colabai/sources/repository"
	"colabai/sources/throttler"
	"colabai/sources/tokens"
	"colabai/sources/tracing"
	"colabai/sources/transport"

	"github.com/alecthomas/kong"
	"go.uber.org/fx"
)

var (
	version   = "0.0.0"
	buildTime = "1970-01-01"
)

func main() {
	platform.SetAppManifest(version, buildTime, time.Now())

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("colabai"),
		kong.Description("Token ledger for colabAI users."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)
	ctx.FatalIfErrorf(ctx.Run())
}

func core() fx.Option {
	return fx.Options(
		fx.WithLogger(tracing.FxLogger),
		tracing.Module,
		configuration.Module,
		persistence.Module,
		repository.Module,
		metrics.Module,
		tokens.Module,
	)
}

func serve() {
	fx.New(
		core(),
		throttler.Module,
		features.Module,
		collector.Module,
		external.Module,
		transport.Module,

		fx.Invoke(func(lc fx.Lifecycle, log *tracing.Logger) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					log.I("colabAI ledger started successfully", "version", version, "build_time", buildTime)
					return nil
				},
				OnStop: func(ctx context.Context) error {
					log.I("colabAI ledger stopped", "version", version, "build_time", buildTime)
					return nil
				},
			})
		}),
	).Run()
}

// oneshot starts the core graph, fills targets, runs fn and stops the graph again.
func oneshot(fn func(ctx context.Context) error, targets ...any) error {
	app := fx.New(core(), fx.Populate(targets...))
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := app.Start(startCtx); err != nil {
		return err
	}

	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	return fn(startCtx)
}
