// Package kafka contains Kafka repository implementations
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/alex-away/tg-ytdl-gofile/config"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/dto"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/entities"
)

// Producer publishes audit events. With no underlying producer it only logs.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	service  string
	logger   zerolog.Logger
}

// NewProducer creates an audit producer on top of an optional sarama producer
func NewProducer(producer sarama.SyncProducer, cfg *config.KafkaConfig, service *config.ServiceConfig, logger zerolog.Logger) *Producer {
	return &Producer{
		producer: producer,
		topic:    cfg.AuditTopic,
		service:  service.Name,
		logger:   logger,
	}
}

// Publish sends one audit event keyed by user id
func (p *Producer) Publish(ctx context.Context, event entities.AuditEvent) error {
	if p.producer == nil {
		p.logger.Debug().Str("type", string(event.Type)).Int64("user_id", event.UserID).Msg("Audit event")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	jsonData, err := json.Marshal(dto.AuditMessage{Service: p.service, Event: event})
	if err != nil {
		return fmt.Errorf("failed to marshal audit event to JSON: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(event.UserID, 10)),
		Value: sarama.ByteEncoder(jsonData),
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		p.logger.Error().Err(err).Str("topic", p.topic).Msg("Failed to send Kafka message")
		return fmt.Errorf("failed to publish audit event: %w", err)
	}

	p.logger.Debug().Str("topic", p.topic).Int32("partition", partition).Int64("offset", offset).Msg("Kafka message sent successfully")
	return nil
}
