// Package logger contains logger infrastructure
package logger

import (
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/alex-away/tg-ytdl-gofile/config"
)

// Module provides logger for fx dependency injection
var Module = fx.Module("logger",
	fx.Provide(provideLogger),
)

func provideLogger(logCfg *config.LoggingConfig, serviceCfg *config.ServiceConfig) zerolog.Logger {
	return New(logCfg.Level, serviceCfg.Name)
}
