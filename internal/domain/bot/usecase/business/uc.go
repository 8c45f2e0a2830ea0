// Package business contains business logic for the bot domain
package business

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/alex-away/tg-ytdl-gofile/config"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/deps"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/dto"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/entities"
	boterrors "github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/errors"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/limiter"
	"github.com/alex-away/tg-ytdl-gofile/internal/infrastructure/metrics"
)

// UseCase contains business logic for bot operations
type UseCase struct {
	users      deps.UserStore
	cookies    deps.CookieStore
	downloader deps.Downloader
	deliverer  deps.Deliverer
	publisher  deps.AuditPublisher
	limiter    *limiter.Limiter
	sender     deps.TelegramSender
	metrics    *metrics.Metrics
	cfg        *config.DownloadConfig
	logger     zerolog.Logger

	requestTimeout time.Duration
	uploadLimit    int64
	sessions       *sessionStore
	pendingCookies *pendingSet

	// pipelines run on baseCtx so that Shutdown can cancel them and wait
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
}

// Params groups the UseCase dependencies
type Params struct {
	Users      deps.UserStore
	Cookies    deps.CookieStore
	Downloader deps.Downloader
	Deliverer  deps.Deliverer
	Publisher  deps.AuditPublisher
	Limiter    *limiter.Limiter
	Metrics    *metrics.Metrics
	Download   *config.DownloadConfig
	Telegram   *config.TelegramConfig
	Logger     zerolog.Logger
}

// NewUseCase creates a new UseCase instance
// Note: sender is not passed here to break cyclic dependency
// Use SetSender after creating TelegramHandlers
func NewUseCase(p Params) *UseCase {
	ctx, cancel := context.WithCancel(context.Background())

	return &UseCase{
		users:          p.Users,
		cookies:        p.Cookies,
		downloader:     p.Downloader,
		deliverer:      p.Deliverer,
		publisher:      p.Publisher,
		limiter:        p.Limiter,
		metrics:        p.Metrics,
		cfg:            p.Download,
		logger:         p.Logger,
		requestTimeout: p.Telegram.RequestTimeout,
		uploadLimit:    p.Telegram.UploadLimitBytes,
		sessions:       newSessionStore(p.Download.SessionTTL),
		pendingCookies: newPendingSet(p.Download.SessionTTL),
		baseCtx:        ctx,
		cancel:         cancel,
	}
}

// SetSender sets the TelegramSender after construction
// This is called by fx.Invoke to resolve cyclic dependency
func (uc *UseCase) SetSender(sender deps.TelegramSender) {
	uc.sender = sender
}

// HandleStart handles /start command
func (uc *UseCase) HandleStart(ctx context.Context, req *dto.StartCommandRequest) (*dto.CommandResponse, error) {
	uc.logger.Info().
		Int64("user_id", req.UserID).
		Str("username", req.Username).
		Msg("User started bot")

	name := req.FirstName
	if name == "" {
		name = "there"
	}

	message := fmt.Sprintf(`👋 <b>Hi %s!</b>

I download YouTube videos and audio for you.

<b>What I can do:</b>
🎬 Videos from 144p up to 2160p
🎵 Audio as MP3 or WAV
📦 Files over %d MB arrive as a Gofile link
📊 Live progress while I work

Send /download followed by a YouTube link to begin, or /help for details.`,
		html.EscapeString(name), uc.uploadLimit>>20)

	return &dto.CommandResponse{Message: message}, nil
}

// HandleHelp handles /help command. Admin commands are listed for sudo users only.
func (uc *UseCase) HandleHelp(ctx context.Context, userID int64) (*dto.CommandResponse, error) {
	var b strings.Builder
	b.WriteString(`📚 <b>Help</b>

<b>Download:</b>
/download &lt;url&gt; - pick a format from buttons
/download &lt;url&gt; &lt;format&gt; - download right away
/cookieytdl &lt;url&gt; [format] - download using stored cookies (age or member restricted videos)

<b>Formats:</b> mp3, wav, 144p, 240p, 360p, 480p, 720p, 1080p, 1440p, 2160p
If a quality is missing, the closest lower one is used.`)

	if uc.users.Tier(userID) == entities.TierSudo {
		b.WriteString(`

<b>Admin:</b>
/adduser &lt;id&gt; - give a user access
/removeuser &lt;id&gt; - revoke access
/listusers - show everyone with access
/setlogchannel &lt;id&gt; - post activity to a channel
/setcookie - upload a cookies.txt file
/cancel - abort a pending /setcookie`)
	}

	return &dto.CommandResponse{Message: b.String()}, nil
}

// HandleAddUser handles /adduser command
func (uc *UseCase) HandleAddUser(ctx context.Context, actor entities.Sender, arg string) (*dto.CommandResponse, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return nil, boterrors.ErrInvalidUserID
	}

	added, err := uc.users.Add(ctx, id)
	if err != nil {
		uc.logger.Error().Err(err).Int64("user_id", id).Msg("Failed to add user")
		return nil, fmt.Errorf("failed to add user: %w", err)
	}

	if !added {
		return &dto.CommandResponse{Message: fmt.Sprintf("ℹ️ User <code>%d</code> already has access.", id)}, nil
	}

	uc.logger.Info().Int64("user_id", id).Int64("by", actor.ID).Msg("User added")
	uc.audit(ctx, entities.AuditEvent{
		Type:   entities.AuditUserAdded,
		UserID: id,
		User:   actor.DisplayName(),
	})

	return &dto.CommandResponse{Message: fmt.Sprintf("✅ User <code>%d</code> can now use the bot.", id)}, nil
}

// HandleRemoveUser handles /removeuser command
func (uc *UseCase) HandleRemoveUser(ctx context.Context, actor entities.Sender, arg string) (*dto.CommandResponse, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return nil, boterrors.ErrInvalidUserID
	}

	if err := uc.users.Remove(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to remove user: %w", err)
	}

	uc.logger.Info().Int64("user_id", id).Int64("by", actor.ID).Msg("User removed")
	uc.audit(ctx, entities.AuditEvent{
		Type:   entities.AuditUserRemoved,
		UserID: id,
		User:   actor.DisplayName(),
	})

	return &dto.CommandResponse{Message: fmt.Sprintf("✅ User <code>%d</code> no longer has access.", id)}, nil
}

// HandleListUsers handles /listusers command
func (uc *UseCase) HandleListUsers(ctx context.Context) (*dto.UserListResponse, error) {
	return &dto.UserListResponse{
		Users:      uc.users.List(),
		LogChannel: uc.users.LogChannel(),
	}, nil
}

// HandleSetLogChannel handles /setlogchannel command
func (uc *UseCase) HandleSetLogChannel(ctx context.Context, actor entities.Sender, arg string) (*dto.CommandResponse, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id == 0 {
		return nil, boterrors.ErrInvalidChannelID
	}

	if err := uc.users.SetLogChannel(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to set log channel: %w", err)
	}

	uc.logger.Info().Int64("channel_id", id).Int64("by", actor.ID).Msg("Log channel set")

	if err := uc.sender.SendMessage(ctx, id, "✅ This channel now receives the bot activity log."); err != nil {
		uc.logger.Warn().Err(err).Int64("channel_id", id).Msg("Log channel is not writable")
		return &dto.CommandResponse{Message: fmt.Sprintf(
			"⚠️ Log channel set to <code>%d</code>, but I could not post there. Add me to the channel as an admin.", id)}, nil
	}

	return &dto.CommandResponse{Message: fmt.Sprintf("✅ Log channel set to <code>%d</code>.", id)}, nil
}

// HandleSetCookie handles /setcookie command; the next document or text from the user is the cookie file
func (uc *UseCase) HandleSetCookie(ctx context.Context, userID int64) (*dto.CommandResponse, error) {
	uc.pendingCookies.add(userID)

	return &dto.CommandResponse{Message: `🍪 Send the <b>cookies.txt</b> file (Netscape format) as a document, or paste its contents as a message.

Send /cancel to abort.`}, nil
}

// HandleCancel handles /cancel command
func (uc *UseCase) HandleCancel(ctx context.Context, userID int64) (*dto.CommandResponse, error) {
	if !uc.pendingCookies.remove(userID) {
		return nil, boterrors.ErrNoPendingCookie
	}
	return &dto.CommandResponse{Message: "❎ Cookie upload canceled."}, nil
}

// AwaitingCookie reports whether userID owes a cookie file after /setcookie
func (uc *UseCase) AwaitingCookie(userID int64) bool {
	return uc.pendingCookies.contains(userID)
}

// HandleCookieData stores a cookie file sent after /setcookie.
// An invalid file keeps the request pending so the user can try again.
func (uc *UseCase) HandleCookieData(ctx context.Context, actor entities.Sender, data []byte) (*dto.CommandResponse, error) {
	if !uc.pendingCookies.contains(actor.ID) {
		return nil, boterrors.ErrNoPendingCookie
	}

	if err := uc.cookies.Save(ctx, data); err != nil {
		return nil, fmt.Errorf("failed to save cookies: %w", err)
	}
	uc.pendingCookies.remove(actor.ID)

	uc.logger.Info().Int64("user_id", actor.ID).Int("bytes", len(data)).Msg("Cookies updated")
	uc.audit(ctx, entities.AuditEvent{
		Type:   entities.AuditCookiesUpdated,
		UserID: actor.ID,
		User:   actor.DisplayName(),
	})

	return &dto.CommandResponse{Message: "✅ Cookies saved. Use /cookieytdl &lt;url&gt; for restricted videos."}, nil
}

// NotifyStarted posts the startup event to the audit sinks
func (uc *UseCase) NotifyStarted(ctx context.Context) {
	uc.audit(ctx, entities.AuditEvent{Type: entities.AuditBotStarted})
}

// Shutdown cancels running pipelines and waits for their cleanup
func (uc *UseCase) Shutdown(ctx context.Context) error {
	uc.mu.Lock()
	uc.closed = true
	uc.mu.Unlock()
	uc.cancel()

	done := make(chan struct{})
	go func() {
		uc.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		uc.logger.Info().Msg("All download pipelines stopped")
		return nil
	case <-ctx.Done():
		uc.logger.Warn().Int("in_use", uc.limiter.InUse()).Msg("Shutdown timed out waiting for pipelines")
		return ctx.Err()
	}
}

// enter registers a pipeline unless Shutdown has begun
func (uc *UseCase) enter() bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.closed {
		return false
	}
	uc.wg.Add(1)
	return true
}

// audit posts event to the log channel, when one is set, and to the audit publisher.
// Failures are logged and counted but never reach the user.
func (uc *UseCase) audit(ctx context.Context, event entities.AuditEvent) {
	event.Time = time.Now().UTC()

	if channel := uc.users.LogChannel(); channel != 0 && uc.sender != nil {
		if err := uc.sender.SendAuditEvent(ctx, channel, event); err != nil {
			uc.metrics.RecordAuditError("telegram")
			uc.logger.Warn().Err(err).Str("event", string(event.Type)).Msg("Failed to post to log channel")
		}
	}

	if uc.publisher != nil {
		if err := uc.publisher.Publish(ctx, event); err != nil {
			uc.metrics.RecordAuditError("kafka")
			uc.logger.Warn().Err(err).Str("event", string(event.Type)).Msg("Failed to publish audit event")
		}
	}
}
