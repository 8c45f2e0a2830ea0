// Package http contains the metrics and health HTTP endpoint
package http

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/alex-away/tg-ytdl-gofile/config"
	"github.com/alex-away/tg-ytdl-gofile/internal/infrastructure/http/server"
)

// Module provides HTTP server for fx DI
var Module = fx.Module("http",
	fx.Provide(NewServerFx),
	fx.Invoke(func(*server.Server) {}),
)

// Params collects the server dependencies, including health checks from other modules
type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Service   *config.ServiceConfig
	Logger    zerolog.Logger
	Checks    []server.NamedCheck `group:"health"`
}

// NewServerFx creates HTTP server with lifecycle hooks for fx DI.
// An empty METRICS_PORT leaves the server unstarted.
func NewServerFx(p Params) *server.Server {
	logger := p.Logger.With().Str("component", "http").Logger()
	srv := server.NewServer(p.Service.MetricsPort, p.Service.Name, logger)

	srv.RegisterMetrics()

	checks := make(map[string]server.HealthCheck, len(p.Checks))
	for _, c := range p.Checks {
		checks[c.Name] = c.Check
	}
	srv.RegisterHealth(checks)

	if p.Service.MetricsPort == "" {
		logger.Info().Msg("METRICS_PORT is empty, HTTP server disabled")
		return srv
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return srv.Start()
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})

	return srv
}
