// Package app contains application bootstrap
package app

import (
	"go.uber.org/fx"

	"github.com/alex-away/tg-ytdl-gofile/config"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain"
	"github.com/alex-away/tg-ytdl-gofile/internal/infrastructure"
)

// CreateApp creates fx application with all modules
func CreateApp() fx.Option {
	return fx.Options(
		// Configuration
		fx.Provide(config.Out),

		// Infrastructure (logger, metrics, telegram bot, kafka, http)
		infrastructure.Module,

		// Domain (bot business logic)
		domain.Module,
	)
}
