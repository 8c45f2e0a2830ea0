// Package infrastructure contains infrastructure layer components
package infrastructure

import (
	"go.uber.org/fx"

	"github.com/alex-away/tg-ytdl-gofile/internal/infrastructure/http"
	"github.com/alex-away/tg-ytdl-gofile/internal/infrastructure/kafka"
	"github.com/alex-away/tg-ytdl-gofile/internal/infrastructure/logger"
	"github.com/alex-away/tg-ytdl-gofile/internal/infrastructure/metrics"
	"github.com/alex-away/tg-ytdl-gofile/internal/infrastructure/telegram"
)

// Module provides all infrastructure components for fx dependency injection
var Module = fx.Module("infrastructure",
	logger.Module,
	metrics.Module,
	telegram.Module,
	kafka.Module,
	http.Module,
)
