// Package deps contains interface definitions for the bot domain dependencies
package deps

import (
	"context"

	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/dto"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/entities"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/progress"
)

// TelegramSender defines interface for sending messages via Telegram
// This interface is used to break the cyclic dependency between UseCase and TelegramHandler
type TelegramSender interface {
	FileSender

	// SendMessage sends a text message to a chat
	SendMessage(ctx context.Context, chatID int64, text string) error

	// SendMessageAndGetID sends a text message and returns the telegram message ID
	SendMessageAndGetID(ctx context.Context, chatID int64, text string) (messageID int, err error)

	// ShowFormatChoice replaces the status message with video info and format buttons
	ShowFormatChoice(ctx context.Context, chatID int64, messageID int, info *entities.VideoInfo, sessionID string) error

	// ShowProgress renders a progress snapshot into the status message
	ShowProgress(ctx context.Context, chatID int64, messageID int, title string, p entities.Progress) error

	// ShowCompleted renders the final status of a delivered download
	ShowCompleted(ctx context.Context, chatID int64, messageID int, result *entities.DownloadResult, outcome *entities.UploadOutcome) error

	// ShowFailure renders a pipeline error into the status message
	ShowFailure(ctx context.Context, chatID int64, messageID int, err error, isSudo bool) error

	// SendAuditEvent posts an activity entry to the log channel
	SendAuditEvent(ctx context.Context, channelID int64, event entities.AuditEvent) error
}

// FileSender delivers a local file through the chat
type FileSender interface {
	// SendFile uploads the result as video or audio and returns the Telegram file id
	SendFile(ctx context.Context, chatID int64, result *entities.DownloadResult) (fileID string, err error)
}

// UserStore persists the permission list and the log channel
type UserStore interface {
	Tier(id int64) entities.Tier
	Add(ctx context.Context, id int64) (added bool, err error)
	Remove(ctx context.Context, id int64) error
	List() []entities.UserRecord
	LogChannel() int64
	SetLogChannel(ctx context.Context, id int64) error
}

// CookieStore holds the cookie file used for restricted videos
type CookieStore interface {
	// Path returns the cookie file path or ErrNoCookies when none is stored
	Path() (string, error)
	Save(ctx context.Context, data []byte) error
}

// VideoProber reads video metadata without downloading
type VideoProber interface {
	Probe(ctx context.Context, url string) (*entities.VideoInfo, error)
}

// MediaFetcher downloads the streams described by spec into spec.Dir
type MediaFetcher interface {
	Fetch(ctx context.Context, spec dto.FetchSpec, onProgress func(entities.Progress)) (path string, err error)
}

// Transcoder converts a downloaded audio stream to the requested codec
type Transcoder interface {
	Transcode(ctx context.Context, src, dst string, format entities.Format) error
}

// HostedUploader uploads files to the file hosting service
type HostedUploader interface {
	// Servers returns upload servers in preference order
	Servers(ctx context.Context) ([]string, error)
	Upload(ctx context.Context, server, path string) (*entities.HostedFile, error)
}

// AuditPublisher publishes activity events to an external log
type AuditPublisher interface {
	Publish(ctx context.Context, event entities.AuditEvent) error
}

// Downloader probes and downloads videos
type Downloader interface {
	Probe(ctx context.Context, url string, useCookies bool) (*entities.VideoInfo, error)
	Fetch(ctx context.Context, req *entities.DownloadRequest, stream *progress.Stream) (*entities.DownloadResult, error)
	// Cleanup removes the request directory of a finished download
	Cleanup(result *entities.DownloadResult) error
}

// Deliverer hands a finished download to the user
type Deliverer interface {
	Deliver(ctx context.Context, result *entities.DownloadResult, chatID int64, stream *progress.Stream) (*entities.UploadOutcome, error)
}
