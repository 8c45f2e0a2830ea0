// Package deliver hands finished downloads to the user, directly or through a hosted link
package deliver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/alex-away/tg-ytdl-gofile/config"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/deps"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/entities"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/progress"
	"github.com/alex-away/tg-ytdl-gofile/internal/infrastructure/metrics"
	pkgerrors "github.com/alex-away/tg-ytdl-gofile/pkg/errors"
)

// SelectMode sends files up to limit directly unless hosting is forced
func SelectMode(size int64, forceHosted bool, limit int64) entities.DeliveryMode {
	if !forceHosted && size <= limit {
		return entities.DeliveryDirect
	}
	return entities.DeliveryHosted
}

// Router picks the delivery mode and runs it
type Router struct {
	files       deps.FileSender
	uploader    deps.HostedUploader
	cfg         *config.GofileConfig
	uploadLimit int64
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewRouter creates a new Router
// Note: the file sender is set later with SetSender
func NewRouter(uploader deps.HostedUploader, cfg *config.GofileConfig, telegramCfg *config.TelegramConfig, m *metrics.Metrics, logger zerolog.Logger) *Router {
	return &Router{
		uploader:    uploader,
		cfg:         cfg,
		uploadLimit: telegramCfg.UploadLimitBytes,
		metrics:     m,
		logger:      logger.With().Str("component", "deliver").Logger(),
	}
}

// SetSender sets the chat file sender after construction
func (r *Router) SetSender(files deps.FileSender) {
	r.files = files
}

// Deliver sends result to chatID. The caller owns the result's directory.
func (r *Router) Deliver(ctx context.Context, result *entities.DownloadResult, chatID int64, stream *progress.Stream) (*entities.UploadOutcome, error) {
	mode := SelectMode(result.SizeBytes, r.cfg.ForceHosted, r.uploadLimit)
	stream.Publish(entities.Progress{
		Stage:      entities.StageUploading,
		TotalBytes: result.SizeBytes,
		Note:       string(mode),
	})

	r.logger.Info().
		Int64("chat_id", chatID).
		Int64("size_bytes", result.SizeBytes).
		Str("mode", string(mode)).
		Msg("Delivering file")

	var (
		outcome *entities.UploadOutcome
		err     error
	)
	switch mode {
	case entities.DeliveryDirect:
		outcome, err = r.sendDirect(ctx, result, chatID)
	default:
		outcome, err = r.uploadHosted(ctx, result.Path)
	}

	status := "success"
	if err != nil {
		status = pkgerrors.KindOf(err).String()
	}
	r.metrics.RecordDelivery(string(mode), status)

	return outcome, err
}

func (r *Router) sendDirect(ctx context.Context, result *entities.DownloadResult, chatID int64) (*entities.UploadOutcome, error) {
	if r.files == nil {
		return nil, pkgerrors.NewInternalError("file sender is not configured")
	}

	sendCtx, cancel := context.WithTimeout(ctx, r.cfg.UploadTimeout)
	defer cancel()

	fileID, err := r.files.SendFile(sendCtx, chatID, result)
	if err != nil {
		return nil, fmt.Errorf("failed to send file: %w", err)
	}

	return &entities.UploadOutcome{
		Mode:     entities.DeliveryDirect,
		FileID:   fileID,
		Attempts: 1,
	}, nil
}

// uploadHosted drives the retry plan against the ranked server list
func (r *Router) uploadHosted(ctx context.Context, path string) (*entities.UploadOutcome, error) {
	servers, err := r.uploader.Servers(ctx)
	if err != nil {
		return nil, pkgerrors.NewUploadError(0, err)
	}

	p := newPlan(servers, r.cfg.AttemptsPerServer, r.cfg.MaxAttempts, newSchedule(r.cfg.InitialBackoff, r.cfg.MaxBackoff))

	var lastErr error
	for step := p.start(); step.State != StateExhausted; step = p.failed() {
		if err := wait(ctx, step.Delay); err != nil {
			return nil, fmt.Errorf("upload canceled: %w", err)
		}

		log := r.logger.With().
			Str("server", step.Server).
			Int("attempt", step.Attempt).
			Str("state", step.State.String()).
			Logger()

		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.UploadTimeout)
		file, err := r.uploader.Upload(attemptCtx, step.Server, path)
		cancel()

		if err == nil {
			done := p.succeeded()
			r.metrics.RecordGofileAttempt("success")
			log.Info().Int("attempts", p.attempts()).Msg("Hosted upload finished")

			return &entities.UploadOutcome{
				Mode:       entities.DeliveryHosted,
				Link:       file.DownloadPage,
				DirectLink: file.DirectLink,
				FileID:     file.FileID,
				Server:     done.Server,
				Attempts:   p.attempts(),
			}, nil
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("upload canceled: %w", ctx.Err())
		}

		lastErr = err
		r.metrics.RecordGofileAttempt("failure")
		log.Warn().Err(err).Msg("Hosted upload attempt failed")
	}

	if lastErr == nil {
		lastErr = errors.New("no upload server available")
	}
	r.logger.Error().Err(lastErr).Int("attempts", p.attempts()).Msg("Hosted upload exhausted")
	return nil, pkgerrors.NewUploadError(p.attempts(), lastErr)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
