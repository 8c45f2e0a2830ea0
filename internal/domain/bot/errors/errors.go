// Package errors contains domain-specific errors for the bot domain
package errors

import (
	"context"
	"fmt"

	pkgerrors "github.com/alex-away/tg-ytdl-gofile/pkg/errors"
)

// Domain errors for bot operations
var (
	ErrUserNotFound     = pkgerrors.NewNotFoundError("user is not in the allowed list")
	ErrSudoImmutable    = pkgerrors.NewConflictError("sudo users are managed through SUDO_USERS only")
	ErrInvalidUserID    = pkgerrors.NewValidationError("user id must be a number")
	ErrInvalidChannelID = pkgerrors.NewValidationError("channel id must be a number")
	ErrMissingURL       = pkgerrors.NewValidationError("please provide a YouTube URL")
	ErrInvalidURL       = pkgerrors.NewValidationError("please provide a valid YouTube video URL")
	ErrUnknownFormat    = pkgerrors.NewValidationError("unknown format, use mp3, wav or a quality such as 720p")
	ErrSessionExpired   = pkgerrors.NewNotFoundError("session expired, please send the link again")
	ErrNotSessionOwner  = pkgerrors.NewPermissionError("🚫 These buttons belong to another user.")
	ErrEmptyCookies     = pkgerrors.NewValidationError("cookie file is empty")
	ErrInvalidCookies   = pkgerrors.NewValidationError("cookie file must be in Netscape format")
	ErrNoCookies        = pkgerrors.NewNotFoundError("no cookies stored, ask an admin to run /setcookie")
	ErrNoPendingCookie  = pkgerrors.NewNotFoundError("nothing to cancel")
	ErrEmptyMessage     = pkgerrors.NewValidationError("message text cannot be empty")
	ErrChatGone         = pkgerrors.NewTransportError("chat or status message is gone", nil)

	// ErrShuttingDown matches context.Canceled so it reads as a shutdown to the user
	ErrShuttingDown = fmt.Errorf("bot is shutting down: %w", context.Canceled)
)
