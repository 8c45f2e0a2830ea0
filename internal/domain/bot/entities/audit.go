package entities

import "time"

// AuditEventType names a recorded bot activity
type AuditEventType string

const (
	AuditBotStarted      AuditEventType = "bot_started"
	AuditDownloadRequest AuditEventType = "download_requested"
	AuditDownloadStarted AuditEventType = "download_started"
	AuditDownloadDone    AuditEventType = "download_completed"
	AuditDownloadFailed  AuditEventType = "download_failed"
	AuditFileDeleted     AuditEventType = "file_deleted"
	AuditUserAdded       AuditEventType = "user_added"
	AuditUserRemoved     AuditEventType = "user_removed"
	AuditCookiesUpdated  AuditEventType = "cookies_updated"
)

// AuditEvent is one entry of the activity log
type AuditEvent struct {
	Type      AuditEventType `json:"type"`
	UserID    int64          `json:"user_id,omitempty"`
	User      string         `json:"user,omitempty"`
	URL       string         `json:"url,omitempty"`
	Title     string         `json:"title,omitempty"`
	Format    Format         `json:"format,omitempty"`
	Mode      DeliveryMode   `json:"mode,omitempty"`
	SizeBytes int64          `json:"size_bytes,omitempty"`
	Link      string         `json:"link,omitempty"`
	Path      string         `json:"path,omitempty"`
	Error     string         `json:"error,omitempty"`
	Time      time.Time      `json:"time"`
}
