package telegram

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/entities"
	boterrors "github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/errors"
	pkgerrors "github.com/alex-away/tg-ytdl-gofile/pkg/errors"
)

// SendMessage implements deps.TelegramSender interface
func (h *Handlers) SendMessage(ctx context.Context, chatID int64, text string) error {
	if text == "" {
		h.logger.Warn().Int64("chat_id", chatID).Msg("Attempt to send empty message")
		return boterrors.ErrEmptyMessage
	}

	if len(text) > MaxMessageLength {
		return h.sendSplitMessage(ctx, chatID, text)
	}

	_, err := h.sendSingleMessage(ctx, chatID, text, nil)
	return err
}

// SendMessageAndGetID sends a text message and returns the telegram message ID
func (h *Handlers) SendMessageAndGetID(ctx context.Context, chatID int64, text string) (int, error) {
	if text == "" {
		return 0, boterrors.ErrEmptyMessage
	}
	return h.sendSingleMessage(ctx, chatID, truncate(text, MaxMessageLength), nil)
}

// ShowFormatChoice implements deps.TelegramSender interface
func (h *Handlers) ShowFormatChoice(ctx context.Context, chatID int64, messageID int, info *entities.VideoInfo, sessionID string) error {
	return h.editMessage(ctx, chatID, messageID, renderVideoInfo(info), formatKeyboard(info, sessionID))
}

// ShowProgress implements deps.TelegramSender interface.
// Rate limits and unchanged text are logged and not reported as errors.
func (h *Handlers) ShowProgress(ctx context.Context, chatID int64, messageID int, title string, p entities.Progress) error {
	err := h.editMessage(ctx, chatID, messageID, renderProgress(title, p), nil)
	if err == nil {
		return nil
	}

	switch msg := err.Error(); {
	case strings.Contains(msg, "Too Many Requests"):
		h.logger.Warn().Int64("chat_id", chatID).Str("stage", string(p.Stage)).Msg("Progress edit rate limited")
		return nil
	case strings.Contains(msg, "message is not modified"):
		return nil
	}
	return err
}

// ShowCompleted implements deps.TelegramSender interface
func (h *Handlers) ShowCompleted(ctx context.Context, chatID int64, messageID int, result *entities.DownloadResult, outcome *entities.UploadOutcome) error {
	return h.editMessage(ctx, chatID, messageID, renderCompleted(result, outcome), nil)
}

// ShowFailure implements deps.TelegramSender interface
func (h *Handlers) ShowFailure(ctx context.Context, chatID int64, messageID int, err error, isSudo bool) error {
	return h.editMessage(ctx, chatID, messageID, userMessage(err, isSudo), nil)
}

// SendAuditEvent implements deps.TelegramSender interface
func (h *Handlers) SendAuditEvent(ctx context.Context, channelID int64, event entities.AuditEvent) error {
	_, err := h.sendSingleMessage(ctx, channelID, truncate(renderAudit(event), MaxMessageLength), nil)
	return err
}

// SendFile implements deps.FileSender interface.
// Video goes out as a streamable video, audio as an audio track.
func (h *Handlers) SendFile(ctx context.Context, chatID int64, result *entities.DownloadResult) (string, error) {
	f, err := os.Open(result.Path)
	if err != nil {
		return "", fmt.Errorf("failed to open download: %w", err)
	}
	defer f.Close()

	upload := &models.InputFileUpload{
		Filename: safeFilename(result.Title, result.Format.Extension()),
		Data:     f,
	}
	caption := "🎬 " + escapeCaption(result.Title)
	duration := int(result.Duration / time.Second)

	started := time.Now()
	var msg *models.Message
	if result.Format.IsAudio() {
		msg, err = h.bot.SendAudio(ctx, &tgbot.SendAudioParams{
			ChatID:    chatID,
			Audio:     upload,
			Caption:   caption,
			ParseMode: models.ParseModeHTML,
			Duration:  duration,
			Title:     result.Title,
		})
	} else {
		msg, err = h.bot.SendVideo(ctx, &tgbot.SendVideoParams{
			ChatID:            chatID,
			Video:             upload,
			Caption:           caption,
			ParseMode:         models.ParseModeHTML,
			Duration:          duration,
			SupportsStreaming: true,
		})
	}
	if err != nil {
		h.logger.Error().Err(err).Int64("chat_id", chatID).Int64("size_bytes", result.SizeBytes).Msg("Failed to send file")
		return "", pkgerrors.NewTransportError("telegram rejected the file", err)
	}

	h.logger.Info().
		Int64("chat_id", chatID).
		Int64("size_bytes", result.SizeBytes).
		Dur("took", time.Since(started)).
		Msg("File sent")

	return fileIDOf(msg), nil
}

func fileIDOf(msg *models.Message) string {
	switch {
	case msg == nil:
		return ""
	case msg.Video != nil:
		return msg.Video.FileID
	case msg.Audio != nil:
		return msg.Audio.FileID
	case msg.Document != nil:
		return msg.Document.FileID
	default:
		return ""
	}
}

func escapeCaption(title string) string {
	return truncate(strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(title), 900)
}

func (h *Handlers) sendSingleMessage(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) (int, error) {
	msgCtx, cancel := context.WithTimeout(ctx, h.requestTimeout)
	defer cancel()

	msg, err := h.bot.SendMessage(msgCtx, &tgbot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: markup,
	})
	if err != nil {
		handledErr := h.handleSendMessageError(chatID, err)
		h.logMessageSend(chatID, len(text), false, handledErr)
		return 0, handledErr
	}

	h.logMessageSend(chatID, len(text), true, nil)
	return msg.ID, nil
}

func (h *Handlers) sendSplitMessage(ctx context.Context, chatID int64, text string) error {
	parts := splitMessage(text)
	h.logger.Info().Int64("chat_id", chatID).Int("total_length", len(text)).Int("parts", len(parts)).Msg("Splitting long message into parts")

	for i, part := range parts {
		if _, err := h.sendSingleMessage(ctx, chatID, part, nil); err != nil {
			return fmt.Errorf("failed to send part %d of %d: %w", i+1, len(parts), err)
		}

		if i < len(parts)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(MessageSplitTimeout):
			}
		}
	}
	return nil
}

func (h *Handlers) editMessage(ctx context.Context, chatID int64, messageID int, text string, markup models.ReplyMarkup) error {
	if text == "" {
		return boterrors.ErrEmptyMessage
	}

	msgCtx, cancel := context.WithTimeout(ctx, h.requestTimeout)
	defer cancel()

	_, err := h.bot.EditMessageText(msgCtx, &tgbot.EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   messageID,
		Text:        truncate(text, MaxMessageLength),
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: markup,
	})
	if err != nil {
		h.logger.Debug().Int64("chat_id", chatID).Int("message_id", messageID).Err(err).Msg("Failed to edit message text")
		if chatGone(err) {
			return fmt.Errorf("%w: %v", boterrors.ErrChatGone, err)
		}
		return pkgerrors.NewTransportError("failed to edit message", err)
	}
	return nil
}

// splitMessage cuts text on line breaks into parts that fit one message
func splitMessage(text string) []string {
	if len(text) <= MaxMessageLength {
		return []string{text}
	}

	var parts []string
	var current strings.Builder

	for _, line := range strings.Split(text, "\n") {
		if current.Len() > 0 && current.Len()+1+len(line) > MaxMessageLength {
			parts = append(parts, current.String())
			current.Reset()
		}

		for len(line) > MaxMessageLength {
			cut := truncate(line, MaxMessageLength)
			cut = strings.TrimSuffix(cut, "...")
			if i := strings.LastIndex(cut, " "); i > 0 {
				cut = cut[:i]
			}
			parts = append(parts, cut)
			line = strings.TrimLeft(line[len(cut):], " ")
		}

		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

func (h *Handlers) handleSendMessageError(chatID int64, err error) error {
	errorMsg := err.Error()

	switch {
	case chatGone(err):
		h.logger.Warn().Int64("chat_id", chatID).Msg("User blocked the bot or chat not found")
		return fmt.Errorf("%w: %v", boterrors.ErrChatGone, err)

	case strings.Contains(errorMsg, "Too Many Requests"):
		h.logger.Warn().Int64("chat_id", chatID).Msg("Rate limit exceeded")
		return pkgerrors.NewTransportError("rate limit exceeded, please try again later", err)

	default:
		h.logger.Error().Int64("chat_id", chatID).Err(err).Msg("Unknown error while sending message")
		return pkgerrors.NewTransportError("failed to send message", err)
	}
}

// chatGone reports errors after which no further message in the chat can land
func chatGone(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Forbidden") ||
		strings.Contains(msg, "chat not found") ||
		strings.Contains(msg, "message to edit not found")
}

// logMessageSend logs message send result
func (h *Handlers) logMessageSend(chatID int64, length int, success bool, err error) {
	logEvent := h.logger.Debug()
	if !success {
		logEvent = h.logger.Error()
	}

	logEvent.Int64("chat_id", chatID).Int("message_length", length).Bool("success", success)

	if err != nil {
		logEvent.Err(err)
	}

	logEvent.Msg("Message send attempt completed")
}
