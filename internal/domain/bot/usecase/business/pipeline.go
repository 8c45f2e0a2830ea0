package business

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/dto"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/entities"
	boterrors "github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/errors"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/limiter"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/progress"
	pkgerrors "github.com/alex-away/tg-ytdl-gofile/pkg/errors"
)

// HandleDownload handles /download and /cookieytdl.
// Without a format it probes the video and offers format buttons;
// with one it starts the pipeline right away.
func (uc *UseCase) HandleDownload(ctx context.Context, req *dto.DownloadCommandRequest) error {
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return boterrors.ErrMissingURL
	}
	if _, ok := entities.ParseVideoURL(url); !ok {
		return boterrors.ErrInvalidURL
	}
	if req.Format != "" && !req.Format.Valid() {
		return boterrors.ErrUnknownFormat
	}

	uc.logger.Info().
		Int64("user_id", req.Sender.ID).
		Str("url", url).
		Str("format", string(req.Format)).
		Bool("cookies", req.UseCookies).
		Msg("Download requested")

	if req.Format != "" {
		return uc.start(ctx, &entities.DownloadRequest{
			URL:         url,
			Format:      req.Format,
			RequesterID: req.Sender.ID,
			ChatID:      req.ChatID,
			UseCookies:  req.UseCookies,
		}, req.Sender, 0)
	}

	msgID, err := uc.sender.SendMessageAndGetID(ctx, req.ChatID, "🔎 Fetching video information...")
	if err != nil {
		return fmt.Errorf("failed to send status message: %w", err)
	}

	info, err := uc.downloader.Probe(ctx, url, req.UseCookies)
	if err != nil {
		uc.logger.Warn().Err(err).Str("url", url).Msg("Probe failed")
		if showErr := uc.sender.ShowFailure(ctx, req.ChatID, msgID, err, uc.isSudo(req.Sender.ID)); showErr != nil {
			uc.logger.Warn().Err(showErr).Int64("chat_id", req.ChatID).Msg("Failed to show failure")
		}
		return nil
	}

	id := uc.sessions.add(&session{
		OwnerID:    req.Sender.ID,
		ChatID:     req.ChatID,
		MessageID:  msgID,
		URL:        url,
		UseCookies: req.UseCookies,
		Info:       info,
	})

	if err := uc.sender.ShowFormatChoice(ctx, req.ChatID, msgID, info, id); err != nil {
		uc.sessions.remove(id)
		return fmt.Errorf("failed to show format choice: %w", err)
	}
	return nil
}

// HandleFormatChoice starts the pipeline for a pressed format button.
// The session is claimed first so a double press starts one download; it is put
// back when every slot is taken so the button can be pressed again.
func (uc *UseCase) HandleFormatChoice(ctx context.Context, req *dto.FormatChoiceRequest) error {
	s, ok := uc.sessions.get(req.SessionID)
	if !ok {
		return boterrors.ErrSessionExpired
	}
	if s.OwnerID != req.Sender.ID {
		return boterrors.ErrNotSessionOwner
	}
	if !req.Format.Valid() {
		return boterrors.ErrUnknownFormat
	}

	if !uc.sessions.claim(s.ID) {
		return boterrors.ErrSessionExpired
	}

	err := uc.start(ctx, &entities.DownloadRequest{
		URL:         s.URL,
		Format:      req.Format,
		RequesterID: s.OwnerID,
		ChatID:      s.ChatID,
		UseCookies:  s.UseCookies,
		Info:        s.Info,
	}, req.Sender, s.MessageID)
	if err != nil {
		uc.sessions.restore(s)
		return err
	}
	return nil
}

// start takes a download slot and runs the pipeline in the background.
// A zero messageID sends a new status message.
func (uc *UseCase) start(ctx context.Context, req *entities.DownloadRequest, sender entities.Sender, messageID int) error {
	if !uc.enter() {
		return boterrors.ErrShuttingDown
	}
	launched := false
	defer func() {
		if !launched {
			uc.wg.Done()
		}
	}()

	permit, err := uc.limiter.Acquire()
	if err != nil {
		uc.metrics.RecordCapacityRejected()
		uc.logger.Warn().
			Int64("user_id", req.RequesterID).
			Int("capacity", uc.limiter.Capacity()).
			Msg("Download rejected, at capacity")
		return err
	}

	if messageID == 0 {
		messageID, err = uc.sender.SendMessageAndGetID(ctx, req.ChatID, "⏳ Queued...")
		if err != nil {
			permit.Release()
			return fmt.Errorf("failed to send status message: %w", err)
		}
	} else {
		_ = uc.showProgress(ctx, req, messageID, entities.Progress{Stage: entities.StageQueued})
	}

	uc.audit(ctx, entities.AuditEvent{
		Type:   entities.AuditDownloadRequest,
		UserID: sender.ID,
		User:   sender.DisplayName(),
		URL:    req.URL,
		Format: req.Format,
	})

	launched = true
	go func() {
		defer uc.wg.Done()
		uc.run(req, sender, messageID, permit)
	}()
	return nil
}

// run is one pipeline: probe if needed, download, deliver, release, cleanup.
// req is not modified once the progress consumer is running.
// Status edits and audit events go out on a context that survives cancellation.
func (uc *UseCase) run(req *entities.DownloadRequest, sender entities.Sender, messageID int, permit *limiter.Permit) {
	ctx, cancel := context.WithCancel(uc.baseCtx)
	defer cancel()
	notifyCtx := context.WithoutCancel(ctx)

	log := uc.logger.With().
		Int64("user_id", req.RequesterID).
		Int64("chat_id", req.ChatID).
		Str("format", string(req.Format)).
		Logger()

	var result *entities.DownloadResult
	defer func() {
		permit.Release()
		uc.cleanup(notifyCtx, result, sender, log)
	}()

	if req.Info == nil {
		uc.report(notifyCtx, req, messageID, entities.Progress{Stage: entities.StageProbing}, cancel, log)
		info, err := uc.downloader.Probe(ctx, req.URL, req.UseCookies)
		if err != nil {
			uc.fail(notifyCtx, req, sender, messageID, err, log)
			return
		}
		req.Info = info
	}

	stream := progress.NewStream(uc.cfg.ProgressInterval)
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for p := range stream.C() {
			uc.report(notifyCtx, req, messageID, p, cancel, log)
		}
	}()

	result, outcome, err := uc.execute(ctx, req, sender, stream)
	stream.Close()
	<-consumed

	if err != nil {
		uc.fail(notifyCtx, req, sender, messageID, err, log)
		return
	}

	log.Info().
		Str("mode", string(outcome.Mode)).
		Int64("size_bytes", result.SizeBytes).
		Int("attempts", outcome.Attempts).
		Msg("Download delivered")

	if err := uc.sender.ShowCompleted(notifyCtx, req.ChatID, messageID, result, outcome); err != nil {
		log.Warn().Err(err).Msg("Failed to show completion")
	}

	uc.audit(notifyCtx, entities.AuditEvent{
		Type:      entities.AuditDownloadDone,
		UserID:    sender.ID,
		User:      sender.DisplayName(),
		URL:       req.URL,
		Title:     result.Title,
		Format:    result.Format,
		Mode:      outcome.Mode,
		SizeBytes: result.SizeBytes,
		Link:      outcome.Link,
	})
}

// execute downloads and delivers a probed request
func (uc *UseCase) execute(ctx context.Context, req *entities.DownloadRequest, sender entities.Sender, stream *progress.Stream) (*entities.DownloadResult, *entities.UploadOutcome, error) {
	uc.audit(ctx, entities.AuditEvent{
		Type:   entities.AuditDownloadStarted,
		UserID: sender.ID,
		User:   sender.DisplayName(),
		URL:    req.URL,
		Title:  req.Info.Title,
		Format: req.Format,
	})

	result, err := uc.downloader.Fetch(ctx, req, stream)
	if err != nil {
		return nil, nil, err
	}

	outcome, err := uc.deliverer.Deliver(ctx, result, req.ChatID, stream)
	if err != nil {
		return result, nil, err
	}
	return result, outcome, nil
}

func (uc *UseCase) fail(ctx context.Context, req *entities.DownloadRequest, sender entities.Sender, messageID int, err error, log zerolog.Logger) {
	kind := pkgerrors.KindOf(err)
	if kind == pkgerrors.ErrorTypeInternal {
		log.Error().Err(err).Msg("Download pipeline failed")
	} else {
		log.Warn().Err(err).Str("kind", kind.String()).Msg("Download pipeline failed")
	}

	if showErr := uc.sender.ShowFailure(ctx, req.ChatID, messageID, err, uc.isSudo(sender.ID)); showErr != nil {
		log.Warn().Err(showErr).Msg("Failed to show failure")
	}

	event := entities.AuditEvent{
		Type:   entities.AuditDownloadFailed,
		UserID: sender.ID,
		User:   sender.DisplayName(),
		URL:    req.URL,
		Format: req.Format,
		Error:  err.Error(),
	}
	if req.Info != nil {
		event.Title = req.Info.Title
	}
	uc.audit(ctx, event)
}

// cleanup removes the request directory once the permit is back
func (uc *UseCase) cleanup(ctx context.Context, result *entities.DownloadResult, sender entities.Sender, log zerolog.Logger) {
	if result == nil {
		return
	}
	if err := uc.downloader.Cleanup(result); err != nil {
		log.Error().Err(err).Str("dir", result.Dir).Msg("Failed to clean up request")
		return
	}

	uc.audit(ctx, entities.AuditEvent{
		Type:   entities.AuditFileDeleted,
		UserID: sender.ID,
		User:   sender.DisplayName(),
		Title:  result.Title,
		Path:   result.Path,
	})
}

func (uc *UseCase) showProgress(ctx context.Context, req *entities.DownloadRequest, messageID int, p entities.Progress) error {
	title := req.URL
	if req.Info != nil && req.Info.Title != "" {
		title = req.Info.Title
	}
	err := uc.sender.ShowProgress(ctx, req.ChatID, messageID, title, p)
	if err != nil {
		uc.logger.Debug().Err(err).Str("stage", string(p.Stage)).Msg("Progress edit skipped")
	}
	return err
}

// report shows a progress snapshot and abandons the pipeline when the chat is gone
func (uc *UseCase) report(ctx context.Context, req *entities.DownloadRequest, messageID int, p entities.Progress, abandon context.CancelFunc, log zerolog.Logger) {
	if err := uc.showProgress(ctx, req, messageID, p); errors.Is(err, boterrors.ErrChatGone) {
		log.Warn().Err(err).Msg("Chat is gone, abandoning download")
		abandon()
	}
}

func (uc *UseCase) isSudo(userID int64) bool {
	return uc.users.Tier(userID) == entities.TierSudo
}
