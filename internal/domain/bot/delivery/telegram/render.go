package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-telegram/bot/models"

	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/dto"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/entities"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/progress"
	pkgerrors "github.com/alex-away/tg-ytdl-gofile/pkg/errors"
)

// CallbackPrefix starts the data of every format button
const CallbackPrefix = "dl:"

const (
	maxDiagnosticLength = 500
	maxFilenameRunes    = 100
	progressBarCells    = 10
	qualitiesPerRow     = 3
)

func callbackData(sessionID string, f entities.Format) string {
	return CallbackPrefix + sessionID + ":" + string(f)
}

// parseCallbackData splits "dl:<session>:<format>"
func parseCallbackData(data string) (string, entities.Format, bool) {
	rest, ok := strings.CutPrefix(data, CallbackPrefix)
	if !ok {
		return "", "", false
	}
	sessionID, raw, ok := strings.Cut(rest, ":")
	if !ok || sessionID == "" {
		return "", "", false
	}
	f, ok := entities.ParseFormat(raw)
	return sessionID, f, ok
}

// formatKeyboard lays out audio buttons first, then the available qualities
func formatKeyboard(info *entities.VideoInfo, sessionID string) *models.InlineKeyboardMarkup {
	audio := make([]models.InlineKeyboardButton, 0, len(entities.AudioFormats))
	for _, f := range entities.AudioFormats {
		audio = append(audio, models.InlineKeyboardButton{
			Text:         "🎵 " + strings.ToUpper(string(f)),
			CallbackData: callbackData(sessionID, f),
		})
	}
	rows := [][]models.InlineKeyboardButton{audio}

	var row []models.InlineKeyboardButton
	for _, q := range info.Qualities {
		label := "🎬 " + string(q)
		if size := info.EstimatedSize(q); size > 0 {
			label += " ~" + progress.FormatSize(float64(size))
		}
		row = append(row, models.InlineKeyboardButton{Text: label, CallbackData: callbackData(sessionID, q)})
		if len(row) == qualitiesPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func renderVideoInfo(info *entities.VideoInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎬 <b>%s</b>\n", html.EscapeString(orDefault(info.Title, info.ID)))
	if info.Author != "" {
		fmt.Fprintf(&b, "👤 Channel: %s\n", html.EscapeString(info.Author))
	}
	if info.Duration > 0 {
		fmt.Fprintf(&b, "⏱ Duration: %s\n", progress.FormatClock(info.Duration))
	}
	if info.Views > 0 {
		fmt.Fprintf(&b, "👁 Views: %s\n", formatCount(info.Views))
	}
	if info.Partial {
		b.WriteString("\n⚠️ Video details are unavailable. If a quality is missing, the closest lower one is used.\n")
	}
	b.WriteString("\nChoose a format:")
	return b.String()
}

var stageTitles = map[entities.Stage]string{
	entities.StageQueued:      "⏳ Queued",
	entities.StageProbing:     "🔎 Reading video information",
	entities.StageDownloading: "⬇️ Downloading",
	entities.StageConverting:  "🎛 Converting audio",
	entities.StageUploading:   "⬆️ Uploading",
	entities.StageDone:        "✅ Done",
	entities.StageFailed:      "❌ Failed",
}

func renderProgress(title string, p entities.Progress) string {
	var b strings.Builder

	header := orDefault(stageTitles[p.Stage], string(p.Stage))
	if p.Stage == entities.StageUploading && p.Note == string(entities.DeliveryHosted) {
		header += " to Gofile"
	}
	fmt.Fprintf(&b, "%s\n<b>%s</b>", header, html.EscapeString(title))

	if p.Stage != entities.StageDownloading {
		if p.Stage == entities.StageUploading && p.TotalBytes > 0 {
			fmt.Fprintf(&b, "\n📦 %s", progress.FormatSize(float64(p.TotalBytes)))
		}
		return b.String()
	}

	if p.TotalBytes > 0 {
		fmt.Fprintf(&b, "\n\n%s %.1f%%", progressBar(p.Percent), p.Percent)
		fmt.Fprintf(&b, "\n📦 %s / %s", progress.FormatSize(float64(p.DownloadedBytes)), progress.FormatSize(float64(p.TotalBytes)))
	} else if p.DownloadedBytes > 0 {
		fmt.Fprintf(&b, "\n\n📦 %s", progress.FormatSize(float64(p.DownloadedBytes)))
	}
	if p.Speed > 0 {
		fmt.Fprintf(&b, "\n🚀 %s/s", progress.FormatSize(p.Speed))
	}
	if p.ETA > 0 {
		fmt.Fprintf(&b, "\n⏱ ETA: %s", progress.FormatDuration(p.ETA))
	}
	return b.String()
}

func progressBar(percent float64) string {
	filled := int(percent / 100 * progressBarCells)
	filled = min(max(filled, 0), progressBarCells)
	return strings.Repeat("█", filled) + strings.Repeat("░", progressBarCells-filled)
}

func renderCompleted(result *entities.DownloadResult, outcome *entities.UploadOutcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ <b>%s</b>\n\n", html.EscapeString(result.Title))

	switch outcome.Mode {
	case entities.DeliveryHosted:
		fmt.Fprintf(&b, "📦 %s, %s\n", formatLabel(result.Format), progress.FormatSize(float64(result.SizeBytes)))
		fmt.Fprintf(&b, "🔗 <a href=\"%s\">Download from Gofile</a>", html.EscapeString(outcome.Link))
	default:
		fmt.Fprintf(&b, "📤 Sent as %s, %s", formatLabel(result.Format), progress.FormatSize(float64(result.SizeBytes)))
	}

	if result.Substituted {
		fmt.Fprintf(&b, "\n\nℹ️ %s is not available for this video, sent %s instead.", result.RequestedFormat, result.Format)
	}
	return b.String()
}

func formatLabel(f entities.Format) string {
	if f.IsAudio() {
		return strings.ToUpper(string(f))
	}
	return "MP4 " + string(f)
}

// userMessage turns an error into chat text. Only typed errors show their
// message; anything else gets a generic line. Sudo users also see the full
// error in a code block.
func userMessage(err error, isSudo bool) string {
	var msg string
	public, typed := pkgerrors.PublicMessage(err)

	switch {
	case errors.Is(err, context.Canceled):
		msg = "🛑 The download was stopped because the bot is shutting down."
	case !typed:
		msg = "❌ Something went wrong. Please try again later."
	default:
		switch pkgerrors.KindOf(err) {
		case pkgerrors.ErrorTypeCapacity:
			msg = "⏳ All download slots are busy. Please try again in a minute."
		case pkgerrors.ErrorTypeSizeExceeded:
			msg = "📏 " + sentence(public)
		case pkgerrors.ErrorTypeFormatUnavailable:
			msg = "🎞 " + sentence(public) + " Try another format."
		case pkgerrors.ErrorTypeExtraction:
			msg = "❌ " + sentence(public)
		case pkgerrors.ErrorTypeUpload:
			msg = "❌ Upload to Gofile failed. Please try again later."
		case pkgerrors.ErrorTypeTransport:
			msg = "❌ Telegram did not accept the file. Please try again later."
		case pkgerrors.ErrorTypePermission:
			msg = public
		case pkgerrors.ErrorTypeInternal, pkgerrors.ErrorTypeConfig:
			msg = "❌ Something went wrong. Please try again later."
		default:
			msg = "⚠️ " + sentence(public)
		}
	}

	if detail := err.Error(); isSudo && detail != public {
		msg += "\n\n<code>" + html.EscapeString(truncate(detail, maxDiagnosticLength)) + "</code>"
	}
	return msg
}

var auditTitles = map[entities.AuditEventType]string{
	entities.AuditBotStarted:      "🤖 <b>Bot started</b>",
	entities.AuditDownloadRequest: "📥 <b>Download requested</b>",
	entities.AuditDownloadStarted: "⬇️ <b>Download started</b>",
	entities.AuditDownloadDone:    "✅ <b>Download completed</b>",
	entities.AuditDownloadFailed:  "❌ <b>Download failed</b>",
	entities.AuditFileDeleted:     "🗑 <b>File deleted</b>",
	entities.AuditUserAdded:       "➕ <b>User added</b>",
	entities.AuditUserRemoved:     "➖ <b>User removed</b>",
	entities.AuditCookiesUpdated:  "🍪 <b>Cookies updated</b>",
}

func renderAudit(e entities.AuditEvent) string {
	var b strings.Builder
	b.WriteString(orDefault(auditTitles[e.Type], string(e.Type)))

	line := func(icon, value string) {
		if value != "" {
			fmt.Fprintf(&b, "\n%s %s", icon, value)
		}
	}

	if e.UserID != 0 {
		user := fmt.Sprintf("<code>%d</code>", e.UserID)
		if e.User != "" {
			user = html.EscapeString(e.User) + " (" + user + ")"
		}
		line("👤", user)
	}
	line("🎬", html.EscapeString(e.Title))
	line("🔗", html.EscapeString(e.URL))
	line("🎞", string(e.Format))
	line("📤", string(e.Mode))
	if e.SizeBytes > 0 {
		line("📦", progress.FormatSize(float64(e.SizeBytes)))
	}
	line("🌐", html.EscapeString(e.Link))
	line("📁", html.EscapeString(e.Path))
	if e.Error != "" {
		line("⚠️", "<code>"+html.EscapeString(truncate(e.Error, maxDiagnosticLength))+"</code>")
	}
	if !e.Time.IsZero() {
		line("🕒", e.Time.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	return b.String()
}

func renderUserList(resp *dto.UserListResponse) string {
	var b strings.Builder
	b.WriteString("👥 <b>Users with access:</b>\n")

	for _, u := range resp.Users {
		badge := ""
		if u.Tier == entities.TierSudo {
			badge = " 👑"
		}
		fmt.Fprintf(&b, "• <code>%d</code>%s\n", u.ID, badge)
	}
	if len(resp.Users) == 0 {
		b.WriteString("• none\n")
	}

	if resp.LogChannel != 0 {
		fmt.Fprintf(&b, "\n📣 Log channel: <code>%d</code>", resp.LogChannel)
	} else {
		b.WriteString("\n📣 Log channel: not set")
	}
	return b.String()
}

// commandArgs returns the words after the command
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return nil
	}
	return fields[1:]
}

// safeFilename turns a title into a file name Telegram clients show as is
func safeFilename(title, ext string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r), strings.ContainsRune(`/\:*?"<>|`, r):
			return '_'
		default:
			return r
		}
	}, strings.TrimSpace(title))

	if utf8.RuneCountInString(name) > maxFilenameRunes {
		name = string([]rune(name)[:maxFilenameRunes])
	}
	if name == "" {
		name = "download"
	}
	return name + "." + ext
}

func formatCount(n int) string {
	s := strconv.Itoa(n)
	if n < 0 {
		return s
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func sentence(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	s = string(unicode.ToUpper(r)) + s[size:]
	if !strings.HasSuffix(s, ".") {
		s += "."
	}
	return s
}

// truncate cuts s to at most n bytes, ellipsis included, without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	n = max(n-3, 0)
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
