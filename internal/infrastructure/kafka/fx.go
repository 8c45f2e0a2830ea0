package kafka

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/alex-away/tg-ytdl-gofile/config"
)

// Module provides the sarama producer for fx dependency injection
var Module = fx.Module("kafka",
	fx.Provide(provideProducer),
)

func provideProducer(lc fx.Lifecycle, cfg *config.KafkaConfig, service *config.ServiceConfig, logger zerolog.Logger) (sarama.SyncProducer, error) {
	logger = logger.With().Str("component", "kafka").Logger()

	producer, err := NewSyncProducer(cfg, service, logger)
	if err != nil || producer == nil {
		return producer, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			if err := producer.Close(); err != nil {
				logger.Error().Err(err).Msg("Failed to close Kafka producer")
				return err
			}
			logger.Info().Msg("Kafka producer closed successfully")
			return nil
		},
	})

	return producer, nil
}
