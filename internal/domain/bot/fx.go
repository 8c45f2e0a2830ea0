// Package bot contains the bot domain module
package bot

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/alex-away/tg-ytdl-gofile/config"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/access"
	telegramDelivery "github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/delivery/telegram"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/deps"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/limiter"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/repository/cookies"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/repository/ffmpeg"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/repository/gofile"
	kafkaRepo "github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/repository/kafka"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/repository/userstore"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/repository/youtube"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/usecase/business"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/usecase/deliver"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/usecase/fetch"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/workers"
	"github.com/alex-away/tg-ytdl-gofile/internal/infrastructure/http/server"
	"github.com/alex-away/tg-ytdl-gofile/internal/infrastructure/metrics"
	"github.com/alex-away/tg-ytdl-gofile/internal/infrastructure/telegram"
)

// Module provides bot domain components for fx dependency injection
var Module = fx.Module("bot",
	// Repository
	fx.Provide(provideUserStore),
	fx.Provide(provideCookieStore),
	fx.Provide(provideProber),
	fx.Provide(provideFetcher),
	fx.Provide(provideTranscoder),
	fx.Provide(provideUploader),
	fx.Provide(provideAuditPublisher),

	// Access and capacity
	fx.Provide(provideGate),
	fx.Provide(provideLimiter),

	// UseCase
	fx.Provide(fetch.NewOrchestrator),
	fx.Provide(deliver.NewRouter),
	fx.Provide(provideUseCase),

	// Delivery - Telegram (needs raw bot from infrastructure)
	fx.Provide(provideTelegramHandlers),
	fx.Provide(telegramDelivery.NewRouter),

	// Health checks for the HTTP server
	fx.Provide(fx.Annotate(provideDownloadDirCheck, fx.ResultTags(`group:"health"`))),

	// Workers
	fx.Provide(func(o *fetch.Orchestrator) workers.ActiveDirs { return o }),
	workers.Module,

	// Wire cyclic dependency and register routes
	fx.Invoke(wireAndRegister),
)

func provideUserStore(storage *config.StorageConfig, acc *config.AccessConfig, tg *config.TelegramConfig, logger zerolog.Logger) (*userstore.Store, error) {
	store := userstore.New(storage.UsersFile, acc.SudoUsers, acc.Users, tg.LogChannelID,
		logger.With().Str("component", "userstore").Logger())
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	return store, nil
}

func provideCookieStore(storage *config.StorageConfig, logger zerolog.Logger) deps.CookieStore {
	return cookies.New(storage.CookiesFile, logger.With().Str("component", "cookies").Logger())
}

func provideProber(cfg *config.DownloadConfig, logger zerolog.Logger) deps.VideoProber {
	client := &http.Client{Timeout: cfg.ProbeTimeout}
	return youtube.NewProber(client, logger.With().Str("component", "prober").Logger())
}

func provideFetcher(logger zerolog.Logger) deps.MediaFetcher {
	return youtube.NewFetcher(logger.With().Str("component", "fetcher").Logger())
}

func provideTranscoder(cfg *config.DownloadConfig, logger zerolog.Logger) deps.Transcoder {
	return ffmpeg.NewTranscoder(cfg.FFmpegPath, logger.With().Str("component", "ffmpeg").Logger())
}

// provideUploader creates the Gofile client. Upload deadlines are set per attempt
// by the delivery router, so the HTTP client has none.
func provideUploader(cfg *config.GofileConfig, logger zerolog.Logger) deps.HostedUploader {
	return gofile.NewClient(cfg.APIURL, cfg.APIKey, &http.Client{}, logger.With().Str("component", "gofile").Logger())
}

// provideAuditPublisher returns nil when Kafka is not configured
func provideAuditPublisher(producer sarama.SyncProducer, cfg *config.KafkaConfig, service *config.ServiceConfig, logger zerolog.Logger) deps.AuditPublisher {
	if producer == nil {
		return nil
	}
	return kafkaRepo.NewProducer(producer, cfg, service, logger.With().Str("component", "audit").Logger())
}

func provideGate(store *userstore.Store) *access.Gate {
	return access.NewGate(store)
}

func provideLimiter(cfg *config.DownloadConfig, m *metrics.Metrics) *limiter.Limiter {
	return limiter.New(cfg.MaxConcurrent, limiter.WithOnChange(m.SetActiveDownloads))
}

// UseCaseParams collects the UseCase dependencies
type UseCaseParams struct {
	fx.In

	Users     *userstore.Store
	Cookies   deps.CookieStore
	Fetch     *fetch.Orchestrator
	Deliver   *deliver.Router
	Publisher deps.AuditPublisher
	Limiter   *limiter.Limiter
	Metrics   *metrics.Metrics
	Download  *config.DownloadConfig
	Telegram  *config.TelegramConfig
	Logger    zerolog.Logger
}

func provideUseCase(p UseCaseParams) *business.UseCase {
	return business.NewUseCase(business.Params{
		Users:      p.Users,
		Cookies:    p.Cookies,
		Downloader: p.Fetch,
		Deliverer:  p.Deliver,
		Publisher:  p.Publisher,
		Limiter:    p.Limiter,
		Metrics:    p.Metrics,
		Download:   p.Download,
		Telegram:   p.Telegram,
		Logger:     p.Logger.With().Str("component", "usecase").Logger(),
	})
}

// provideTelegramHandlers creates Telegram handlers with raw bot
func provideTelegramHandlers(
	uc *business.UseCase,
	gate *access.Gate,
	bot *telegram.Bot,
	cfg *config.TelegramConfig,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *telegramDelivery.Handlers {
	return telegramDelivery.NewHandlers(uc, gate, bot.Raw(), cfg, m, logger.With().Str("component", "handlers").Logger())
}

func provideDownloadDirCheck(cfg *config.DownloadConfig) server.NamedCheck {
	return server.NamedCheck{
		Name: "download_dir",
		Check: func(_ context.Context) error {
			info, err := os.Stat(cfg.Dir)
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", cfg.Dir)
			}
			return nil
		},
	}
}

// wireAndRegister resolves cyclic dependency and registers routes
func wireAndRegister(
	lc fx.Lifecycle,
	uc *business.UseCase,
	deliverer *deliver.Router,
	handlers *telegramDelivery.Handlers,
	router *telegramDelivery.Router,
	bot *telegram.Bot,
	cfg *config.DownloadConfig,
	logger zerolog.Logger,
) error {
	// Handlers implements deps.TelegramSender interface
	// This resolves the cyclic dependency: UseCase -> TelegramSender <- Handlers -> UseCase
	uc.SetSender(handlers)
	deliverer.SetSender(handlers)

	// Register Telegram command routes
	router.RegisterRoutes(bot.Raw())
	bot.SetDefaultHandler(router.DefaultHandler())

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := bot.SetCommands(ctx, telegramDelivery.MenuCommands()); err != nil {
				logger.Warn().Err(err).Msg("Failed to publish command menu")
			}
			uc.NotifyStarted(ctx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return uc.Shutdown(ctx)
		},
	})
	return nil
}
