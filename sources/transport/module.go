package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"colabai/sources/features"
	"colabai/sources/throttler"
	"colabai/sources/tokens"
	"colabai/sources/tracing"

	"go.uber.org/fx"
)

var Module = fx.Module("transport",
	fx.Provide(
		NewServerConfig,
		func(x *tokens.Accountant) Accounting { return x },
		func(x *throttler.Throttler) Throttler { return x },
		func(x *features.FeatureManager) Toggles { return x },
		NewServer,
	),
	fx.Invoke(func(lc fx.Lifecycle, server *Server, config *ServerConfig, log *tracing.Logger) {
		srv := &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      server.Routes(),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
		}

		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				listener, err := net.Listen("tcp", srv.Addr)
				if err != nil {
					log.E("Failed to listen for API requests", "port", config.Port, tracing.InnerError, err)
					return err
				}

				log.I("API server is starting", "port", config.Port)
				go func() {
					if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
						log.F("API server stopped unexpectedly", tracing.InnerError, err)
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				log.I("Stopping API server")
				return srv.Shutdown(ctx)
			},
		})
	}),
)
