// Package dto contains data transfer objects for the bot domain
package dto

import "github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/entities"

// StartCommandRequest represents a request to handle /start command
type StartCommandRequest struct {
	UserID    int64  `json:"userId"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
}

// CommandResponse represents a response for bot commands
type CommandResponse struct {
	Message string `json:"message"`
}

// DownloadCommandRequest is a parsed /download or /cookieytdl command
type DownloadCommandRequest struct {
	Sender     entities.Sender
	ChatID     int64
	URL        string
	Format     entities.Format
	UseCookies bool
}

// FormatChoiceRequest is a press on a format button
type FormatChoiceRequest struct {
	Sender    entities.Sender
	ChatID    int64
	MessageID int
	SessionID string
	Format    entities.Format
}

// UserListResponse lists every user with access
type UserListResponse struct {
	Users      []entities.UserRecord `json:"users"`
	LogChannel int64                 `json:"logChannel"`
}

// FetchSpec tells the media fetcher what to download
type FetchSpec struct {
	URL         string
	Format      entities.Format
	Dir         string
	CookiesFile string
	// MaxBytes aborts the download once the reported size exceeds it; 0 disables the check
	MaxBytes int64
}

// AuditMessage is the Kafka payload of an audit event
type AuditMessage struct {
	Service string              `json:"service"`
	Event   entities.AuditEvent `json:"event"`
}
