// Package telegram contains Telegram delivery handlers
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"

	"github.com/alex-away/tg-ytdl-gofile/config"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/access"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/dto"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/entities"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/usecase/business"
	"github.com/alex-away/tg-ytdl-gofile/internal/infrastructure/metrics"
)

// Constants for Telegram API
const (
	MaxMessageLength    = 4096
	MessageSplitTimeout = 2 * time.Second
	RequestTimeout      = 30 * time.Second
	// MaxCookieFileSize caps a cookies.txt sent as a document
	MaxCookieFileSize = 1 << 20

	maxCallbackAnswer = 200
)

// Handlers contains Telegram command handlers
// Implements deps.TelegramSender interface
type Handlers struct {
	uc             *business.UseCase
	gate           *access.Gate
	bot            *tgbot.Bot
	metrics        *metrics.Metrics
	logger         zerolog.Logger
	httpClient     *http.Client
	requestTimeout time.Duration
}

// NewHandlers creates new Telegram handlers
func NewHandlers(uc *business.UseCase, gate *access.Gate, bot *tgbot.Bot, cfg *config.TelegramConfig, m *metrics.Metrics, logger zerolog.Logger) *Handlers {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = RequestTimeout
	}

	return &Handlers{
		uc:             uc,
		gate:           gate,
		bot:            bot,
		metrics:        m,
		logger:         logger,
		httpClient:     &http.Client{Timeout: timeout},
		requestTimeout: timeout,
	}
}

// HandleStart handles /start command
func (h *Handlers) HandleStart(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
	sender, ok := h.authorize(ctx, update.Message, entities.CommandStart)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	resp, err := h.uc.HandleStart(ctx, &dto.StartCommandRequest{
		UserID:    sender.ID,
		Username:  sender.Username,
		FirstName: sender.FirstName,
	})
	if err != nil {
		h.replyError(ctx, chatID, sender.ID, "/start", err)
		return
	}

	h.sendResponse(ctx, chatID, resp.Message)
	h.logCommand(sender.ID, "/start", "success")
}

// HandleHelp handles /help command
func (h *Handlers) HandleHelp(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
	sender, ok := h.authorize(ctx, update.Message, entities.CommandHelp)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	resp, err := h.uc.HandleHelp(ctx, sender.ID)
	if err != nil {
		h.replyError(ctx, chatID, sender.ID, "/help", err)
		return
	}

	h.sendResponse(ctx, chatID, resp.Message)
	h.logCommand(sender.ID, "/help", "success")
}

// HandleDownload handles /download command
func (h *Handlers) HandleDownload(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
	h.startDownload(ctx, update.Message, entities.CommandDownload, commandArgs(update.Message.Text))
}

// HandleCookieDownload handles /cookieytdl command
func (h *Handlers) HandleCookieDownload(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
	h.startDownload(ctx, update.Message, entities.CommandCookieDownload, commandArgs(update.Message.Text))
}

// downloadRequest builds the request from "<url> [format]" arguments.
// An unparsable format is passed through so the use case can reject it.
func downloadRequest(sender entities.Sender, chatID int64, cmd entities.Command, args []string) *dto.DownloadCommandRequest {
	req := &dto.DownloadCommandRequest{
		Sender:     sender,
		ChatID:     chatID,
		UseCookies: cmd == entities.CommandCookieDownload,
	}
	if len(args) > 0 {
		req.URL = args[0]
	}
	if len(args) > 1 {
		format, ok := entities.ParseFormat(args[1])
		if !ok {
			format = entities.Format(strings.ToLower(args[1]))
		}
		req.Format = format
	}
	return req
}

// startDownload runs the command off the update loop; probing can take a while
func (h *Handlers) startDownload(ctx context.Context, msg *models.Message, cmd entities.Command, args []string) {
	sender, ok := h.authorize(ctx, msg, cmd)
	if !ok {
		return
	}

	req := downloadRequest(sender, msg.Chat.ID, cmd, args)

	name := "/" + cmd.String()
	go func() {
		if err := h.uc.HandleDownload(ctx, req); err != nil {
			h.replyError(ctx, req.ChatID, sender.ID, name, err)
			return
		}
		h.logCommand(sender.ID, name, "accepted")
	}()
}

// HandleFormatCallback handles a press on a format button
func (h *Handlers) HandleFormatCallback(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	sender := senderOf(&cq.From)

	sessionID, format, ok := parseCallbackData(cq.Data)
	if !ok {
		h.answerCallback(ctx, cq.ID, "⚠️ Unknown button.", true)
		return
	}

	h.metrics.RecordCommand("format_choice")
	if err := h.gate.Check(sender.ID, entities.CommandDownload); err != nil {
		h.metrics.RecordDenied("format_choice")
		h.answerCallback(ctx, cq.ID, userMessage(err, false), true)
		return
	}

	req := &dto.FormatChoiceRequest{
		Sender:    sender,
		SessionID: sessionID,
		Format:    format,
	}
	if m := cq.Message.Message; m != nil {
		req.ChatID = m.Chat.ID
		req.MessageID = m.ID
	}

	if err := h.uc.HandleFormatChoice(ctx, req); err != nil {
		h.logger.Warn().Err(err).Int64("user_id", sender.ID).Str("session", sessionID).Msg("Format choice rejected")
		h.answerCallback(ctx, cq.ID, stripHTML(userMessage(err, false)), true)
		return
	}

	h.answerCallback(ctx, cq.ID, "⏳ "+formatLabel(format)+" queued", false)
	h.logCommand(sender.ID, "format_choice", string(format))
}

// HandleAddUser handles /adduser command
func (h *Handlers) HandleAddUser(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
	h.runAdminCommand(ctx, update.Message, entities.CommandAddUser, h.uc.HandleAddUser)
}

// HandleRemoveUser handles /removeuser command
func (h *Handlers) HandleRemoveUser(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
	h.runAdminCommand(ctx, update.Message, entities.CommandRemoveUser, h.uc.HandleRemoveUser)
}

// HandleSetLogChannel handles /setlogchannel command
func (h *Handlers) HandleSetLogChannel(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
	h.runAdminCommand(ctx, update.Message, entities.CommandSetLogChannel, h.uc.HandleSetLogChannel)
}

func (h *Handlers) runAdminCommand(ctx context.Context, msg *models.Message, cmd entities.Command,
	fn func(context.Context, entities.Sender, string) (*dto.CommandResponse, error)) {
	sender, ok := h.authorize(ctx, msg, cmd)
	if !ok {
		return
	}
	name := "/" + cmd.String()

	resp, err := fn(ctx, sender, strings.Join(commandArgs(msg.Text), " "))
	if err != nil {
		h.replyError(ctx, msg.Chat.ID, sender.ID, name, err)
		return
	}

	h.sendResponse(ctx, msg.Chat.ID, resp.Message)
	h.logCommand(sender.ID, name, "success")
}

// HandleListUsers handles /listusers command
func (h *Handlers) HandleListUsers(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
	sender, ok := h.authorize(ctx, update.Message, entities.CommandListUsers)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	resp, err := h.uc.HandleListUsers(ctx)
	if err != nil {
		h.replyError(ctx, chatID, sender.ID, "/listusers", err)
		return
	}

	h.sendResponse(ctx, chatID, renderUserList(resp))
	h.logCommand(sender.ID, "/listusers", "success")
}

// HandleSetCookie handles /setcookie command
func (h *Handlers) HandleSetCookie(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
	sender, ok := h.authorize(ctx, update.Message, entities.CommandSetCookie)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	resp, err := h.uc.HandleSetCookie(ctx, sender.ID)
	if err != nil {
		h.replyError(ctx, chatID, sender.ID, "/setcookie", err)
		return
	}

	h.sendResponse(ctx, chatID, resp.Message)
	h.logCommand(sender.ID, "/setcookie", "awaiting file")
}

// HandleCancel handles /cancel command
func (h *Handlers) HandleCancel(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
	sender, ok := h.authorize(ctx, update.Message, entities.CommandCancel)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	resp, err := h.uc.HandleCancel(ctx, sender.ID)
	if err != nil {
		h.replyError(ctx, chatID, sender.ID, "/cancel", err)
		return
	}

	h.sendResponse(ctx, chatID, resp.Message)
	h.logCommand(sender.ID, "/cancel", "success")
}

// DefaultHandler handles updates no command matched: a pending cookie file,
// unknown commands and bare YouTube links.
func (h *Handlers) DefaultHandler(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	sender := senderOf(msg.From)

	if h.uc.AwaitingCookie(sender.ID) && (msg.Document != nil || msg.Text != "") && !strings.HasPrefix(msg.Text, "/") {
		go h.receiveCookies(ctx, msg, sender)
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch {
	case text == "":
		return
	case strings.HasPrefix(text, "/"):
		h.authorize(ctx, msg, entities.ParseCommand(strings.Fields(text)[0]))
	case isVideoLink(text):
		h.startDownload(ctx, msg, entities.CommandDownload, strings.Fields(text))
	default:
		if h.gate.Tier(sender.ID) == entities.TierUnauthorized {
			h.authorize(ctx, msg, entities.CommandUnknown)
			return
		}
		h.sendResponse(ctx, msg.Chat.ID, "🤖 Send /download followed by a YouTube link, or /help for the full list of commands.")
	}
}

func isVideoLink(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 || len(fields) > 2 {
		return false
	}
	_, ok := entities.ParseVideoURL(fields[0])
	return ok
}

// receiveCookies reads a cookie file sent as a document or pasted as text
func (h *Handlers) receiveCookies(ctx context.Context, msg *models.Message, sender entities.Sender) {
	data := []byte(msg.Text)
	if msg.Document != nil {
		var err error
		data, err = h.downloadDocument(ctx, msg.Document)
		if err != nil {
			h.logError(sender.ID, "/setcookie", err)
			h.sendResponse(ctx, msg.Chat.ID, "❌ Could not read the file. Please send it again.")
			return
		}
	}

	resp, err := h.uc.HandleCookieData(ctx, sender, data)
	if err != nil {
		h.replyError(ctx, msg.Chat.ID, sender.ID, "/setcookie", err)
		return
	}

	h.sendResponse(ctx, msg.Chat.ID, resp.Message)
	h.logCommand(sender.ID, "/setcookie", "success")
}

func (h *Handlers) downloadDocument(ctx context.Context, doc *models.Document) ([]byte, error) {
	if doc.FileSize > MaxCookieFileSize {
		return nil, fmt.Errorf("document is %d bytes, limit is %d", doc.FileSize, MaxCookieFileSize)
	}

	reqCtx, cancel := context.WithTimeout(ctx, h.requestTimeout)
	defer cancel()

	file, err := h.bot.GetFile(reqCtx, &tgbot.GetFileParams{FileID: doc.FileID})
	if err != nil {
		return nil, fmt.Errorf("get file failed: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, h.bot.FileDownloadLink(file), nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxCookieFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > MaxCookieFileSize {
		return nil, fmt.Errorf("document exceeds %d bytes", MaxCookieFileSize)
	}

	h.logger.Debug().Str("file_name", doc.FileName).Int("size_bytes", len(data)).Msg("Document downloaded")
	return data, nil
}

// authorize counts the command and checks it against the permission list.
// Denied senders get the fixed reply for their case.
func (h *Handlers) authorize(ctx context.Context, msg *models.Message, cmd entities.Command) (entities.Sender, bool) {
	if msg == nil || msg.From == nil {
		return entities.Sender{}, false
	}
	sender := senderOf(msg.From)
	name := cmd.String()

	h.metrics.RecordCommand(name)
	h.logCommand(sender.ID, name, "processing")

	if err := h.gate.Check(sender.ID, cmd); err != nil {
		h.metrics.RecordDenied(name)
		h.logger.Warn().Int64("user_id", sender.ID).Str("command", name).Msg("Command denied")
		h.sendResponse(ctx, msg.Chat.ID, userMessage(err, false))
		return sender, false
	}
	return sender, true
}

func (h *Handlers) answerCallback(ctx context.Context, id, text string, alert bool) {
	text = truncate(text, maxCallbackAnswer)
	if _, err := h.bot.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: id,
		Text:            text,
		ShowAlert:       alert,
	}); err != nil {
		h.logger.Debug().Err(err).Msg("Failed to answer callback query")
	}
}

func (h *Handlers) replyError(ctx context.Context, chatID, userID int64, command string, err error) {
	h.logError(userID, command, err)
	h.sendResponse(ctx, chatID, userMessage(err, h.gate.Tier(userID) == entities.TierSudo))
}

func (h *Handlers) sendResponse(ctx context.Context, chatID int64, text string) {
	if err := h.SendMessage(ctx, chatID, text); err != nil {
		h.logger.Error().Int64("chat_id", chatID).Err(err).Msg("Failed to send Telegram response")
	}
}

func senderOf(u *models.User) entities.Sender {
	return entities.Sender{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
	}
}

// stripHTML drops tags; callback answers are plain text
func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>' && inTag:
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&").Replace(b.String())
}

// logCommand logs successful commands
func (h *Handlers) logCommand(userID int64, command, result string) {
	h.logger.Info().Int64("user_id", userID).Str("command", command).Str("result", result).Msg("Telegram command processed")
}

// logError logs command errors
func (h *Handlers) logError(userID int64, command string, err error) {
	h.logger.Error().Int64("user_id", userID).Str("command", command).Err(err).Msg("Telegram command failed")
}
