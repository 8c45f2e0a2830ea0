package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alex-away/tg-ytdl-gofile/config"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/dto"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/entities"
)

func newProducer(sp sarama.SyncProducer) *Producer {
	return NewProducer(sp,
		&config.KafkaConfig{AuditTopic: "ytdl.audit"},
		&config.ServiceConfig{Name: "tg-ytdl-gofile"},
		zerolog.Nop())
}

func TestProducer_Publish(t *testing.T) {
	mock := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	defer func() { require.NoError(t, mock.Close()) }()

	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var msg dto.AuditMessage
		if err := json.Unmarshal(val, &msg); err != nil {
			return err
		}
		if msg.Service != "tg-ytdl-gofile" || msg.Event.Type != entities.AuditDownloadDone {
			return errors.New("unexpected payload")
		}
		return nil
	})

	err := newProducer(mock).Publish(context.Background(), entities.AuditEvent{
		Type:      entities.AuditDownloadDone,
		UserID:    42,
		Mode:      entities.DeliveryHosted,
		SizeBytes: 100 << 20,
		Time:      time.Now(),
	})
	require.NoError(t, err)
}

func TestProducer_PublishError(t *testing.T) {
	mock := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	defer func() { _ = mock.Close() }()

	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := newProducer(mock).Publish(context.Background(), entities.AuditEvent{Type: entities.AuditBotStarted})
	require.Error(t, err)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
}

func TestProducer_Disabled(t *testing.T) {
	require.NoError(t, newProducer(nil).Publish(context.Background(), entities.AuditEvent{Type: entities.AuditBotStarted}))
}
