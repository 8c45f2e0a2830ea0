// Package kafka contains Kafka client infrastructure
package kafka

import (
	"fmt"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/alex-away/tg-ytdl-gofile/config"
)

// NewProducerConfig returns the sarama configuration used for audit events
func NewProducerConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	cfg.Producer.Compression = sarama.CompressionSnappy
	return cfg
}

// NewSyncProducer connects a synchronous producer to the configured brokers.
// It returns nil when no brokers are configured.
func NewSyncProducer(cfg *config.KafkaConfig, service *config.ServiceConfig, logger zerolog.Logger) (sarama.SyncProducer, error) {
	if !cfg.Enabled() {
		logger.Info().Msg("KAFKA_BROKERS is empty, audit events stay local")
		return nil, nil
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewProducerConfig(service.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.Info().Strs("brokers", cfg.Brokers).Msg("Kafka producer initialized successfully")

	return producer, nil
}
