package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/dto"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/entities"
	boterrors "github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/errors"
	pkgerrors "github.com/alex-away/tg-ytdl-gofile/pkg/errors"
)

func TestParseCallbackData(t *testing.T) {
	tests := []struct {
		data      string
		sessionID string
		format    entities.Format
		ok        bool
	}{
		{"dl:abc123:720p", "abc123", entities.Format720p, true},
		{"dl:abc123:mp3", "abc123", entities.FormatMP3, true},
		{"dl:abc123:999p", "", "", false},
		{"dl::720p", "", "", false},
		{"dl:abc123", "", "", false},
		{"other:abc:720p", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			sessionID, format, ok := parseCallbackData(tt.data)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.sessionID, sessionID)
				assert.Equal(t, tt.format, format)
			}
		})
	}
}

func TestFormatKeyboard(t *testing.T) {
	info := &entities.VideoInfo{
		ID: "dQw4w9WgXcQ",
		Qualities: []entities.Format{
			entities.Format144p, entities.Format360p, entities.Format480p, entities.Format720p,
		},
		SizeEstimates: map[entities.Format]int64{entities.Format720p: 50 << 20},
	}

	kb := formatKeyboard(info, "s1")
	require.Len(t, kb.InlineKeyboard, 3)

	audio := kb.InlineKeyboard[0]
	require.Len(t, audio, 2)
	assert.Equal(t, "🎵 MP3", audio[0].Text)
	assert.Equal(t, "dl:s1:mp3", audio[0].CallbackData)

	assert.Len(t, kb.InlineKeyboard[1], 3)
	last := kb.InlineKeyboard[2]
	require.Len(t, last, 1)
	assert.Equal(t, "🎬 720p ~50.0MB", last[0].Text)
	assert.Equal(t, "dl:s1:720p", last[0].CallbackData)

	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			assert.LessOrEqual(t, len(b.CallbackData), 64)
			_, _, ok := parseCallbackData(b.CallbackData)
			assert.True(t, ok, b.CallbackData)
		}
	}
}

func TestRenderVideoInfo(t *testing.T) {
	text := renderVideoInfo(&entities.VideoInfo{
		ID:       "x",
		Title:    "Tom & Jerry <live>",
		Author:   "Channel",
		Duration: 3*time.Minute + 33*time.Second,
		Views:    1234567,
	})

	assert.Contains(t, text, "Tom &amp; Jerry &lt;live&gt;")
	assert.Contains(t, text, "3:33")
	assert.Contains(t, text, "1,234,567")
	assert.NotContains(t, text, "unavailable")

	partial := renderVideoInfo(&entities.VideoInfo{ID: "abc", Partial: true})
	assert.Contains(t, partial, "<b>abc</b>")
	assert.Contains(t, partial, "unavailable")
}

func TestRenderProgress(t *testing.T) {
	text := renderProgress("Song", entities.Progress{
		Stage:           entities.StageDownloading,
		Percent:         50,
		DownloadedBytes: 5 << 20,
		TotalBytes:      10 << 20,
		Speed:           1 << 20,
		ETA:             5 * time.Second,
	})

	assert.Contains(t, text, "⬇️ Downloading")
	assert.Contains(t, text, "█████░░░░░ 50.0%")
	assert.Contains(t, text, "5.0MB / 10.0MB")
	assert.Contains(t, text, "1.0MB/s")
	assert.Contains(t, text, "ETA: 5s")

	upload := renderProgress("Song", entities.Progress{Stage: entities.StageUploading, Note: string(entities.DeliveryHosted)})
	assert.Contains(t, upload, "Uploading to Gofile")
}

func TestProgressBar_Clamps(t *testing.T) {
	assert.Equal(t, strings.Repeat("░", 10), progressBar(-5))
	assert.Equal(t, strings.Repeat("█", 10), progressBar(140))
}

func TestRenderCompleted(t *testing.T) {
	result := &entities.DownloadResult{
		Title:           "Clip",
		Format:          entities.Format480p,
		RequestedFormat: entities.Format720p,
		Substituted:     true,
		SizeBytes:       3 << 30,
	}

	hosted := renderCompleted(result, &entities.UploadOutcome{Mode: entities.DeliveryHosted, Link: "https://gofile.io/d/abc"})
	assert.Contains(t, hosted, `href="https://gofile.io/d/abc"`)
	assert.Contains(t, hosted, "MP4 480p, 3.0GB")
	assert.Contains(t, hosted, "720p is not available")

	direct := renderCompleted(&entities.DownloadResult{Title: "Song", Format: entities.FormatMP3, SizeBytes: 4 << 20},
		&entities.UploadOutcome{Mode: entities.DeliveryDirect})
	assert.Contains(t, direct, "Sent as MP3, 4.0MB")
	assert.NotContains(t, direct, "not available")
}

func TestUserMessage(t *testing.T) {
	extraction := pkgerrors.NewExtractionError("video is unavailable", errors.New("yt-dlp: HTTP Error 410"))

	tests := []struct {
		name     string
		err      error
		sudo     bool
		contains []string
		excludes []string
	}{
		{
			name:     "size exceeded",
			err:      pkgerrors.NewSizeExceededError(3<<30, 2<<30),
			contains: []string{"📏 File size exceeds the 2048 MB limit."},
		},
		{
			name:     "format unavailable",
			err:      pkgerrors.NewFormatUnavailableError("2160p"),
			contains: []string{"Format 2160p is not available.", "Try another format."},
		},
		{
			name:     "extraction hides cause from users",
			err:      extraction,
			contains: []string{"❌ Video is unavailable."},
			excludes: []string{"410", "<code>"},
		},
		{
			name:     "extraction shows cause to sudo",
			err:      extraction,
			sudo:     true,
			contains: []string{"❌ Video is unavailable.", "<code>video is unavailable: yt-dlp: HTTP Error 410</code>"},
		},
		{
			name:     "upload",
			err:      pkgerrors.NewUploadError(6, errors.New("503")),
			contains: []string{"Upload to Gofile failed"},
		},
		{
			name:     "capacity",
			err:      pkgerrors.NewCapacityError(3),
			contains: []string{"All download slots are busy"},
		},
		{
			name:     "permission keeps its text",
			err:      boterrors.ErrNotSessionOwner,
			contains: []string{"🚫 These buttons belong to another user."},
		},
		{
			name:     "validation",
			err:      boterrors.ErrMissingURL,
			contains: []string{"⚠️ Please provide a YouTube URL."},
		},
		{
			name:     "untyped",
			err:      errors.New("disk on fire"),
			contains: []string{"Something went wrong"},
			excludes: []string{"disk on fire"},
		},
		{
			name:     "canceled",
			err:      fmt.Errorf("download canceled: %w", context.Canceled),
			contains: []string{"shutting down"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := userMessage(tt.err, tt.sudo)
			for _, s := range tt.contains {
				assert.Contains(t, msg, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, msg, s)
			}
		})
	}
}

func TestRenderAudit(t *testing.T) {
	text := renderAudit(entities.AuditEvent{
		Type:      entities.AuditDownloadDone,
		UserID:    42,
		User:      "@alice",
		Title:     "Clip",
		Format:    entities.Format720p,
		Mode:      entities.DeliveryHosted,
		SizeBytes: 2 << 20,
		Link:      "https://gofile.io/d/abc",
		Time:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})

	assert.True(t, strings.HasPrefix(text, "✅ <b>Download completed</b>"))
	assert.Contains(t, text, "@alice (<code>42</code>)")
	assert.Contains(t, text, "2.0MB")
	assert.Contains(t, text, "hosted_link")
	assert.Contains(t, text, "2026-01-02 03:04:05 UTC")
	assert.NotContains(t, text, "📁")

	started := renderAudit(entities.AuditEvent{Type: entities.AuditBotStarted})
	assert.Equal(t, "🤖 <b>Bot started</b>", started)
}

func TestRenderUserList(t *testing.T) {
	text := renderUserList(&dto.UserListResponse{
		Users: []entities.UserRecord{
			{ID: 1, Tier: entities.TierSudo},
			{ID: 2, Tier: entities.TierAllowed},
		},
	})
	assert.Contains(t, text, "<code>1</code> 👑")
	assert.Contains(t, text, "<code>2</code>\n")
	assert.Contains(t, text, "not set")

	assert.Contains(t, renderUserList(&dto.UserListResponse{LogChannel: -100123}), "<code>-100123</code>")
}

func TestCommandArgs(t *testing.T) {
	assert.Nil(t, commandArgs("/download"))
	assert.Equal(t, []string{"https://youtu.be/x", "720p"}, commandArgs("/download  https://youtu.be/x   720p"))
}

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "AC_DC_ Live.mp4", safeFilename(" AC/DC: Live ", "mp4"))
	assert.Equal(t, "download.mp3", safeFilename("", "mp3"))

	long := safeFilename(strings.Repeat("é", 150), "wav")
	assert.Equal(t, 100+len(".wav"), len([]rune(long)))
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "0", formatCount(0))
	assert.Equal(t, "999", formatCount(999))
	assert.Equal(t, "1,000", formatCount(1000))
	assert.Equal(t, "12,345,678", formatCount(12345678))
}

func TestTruncate_KeepsRunes(t *testing.T) {
	s := strings.Repeat("я", 10)
	out := truncate(s, 10)
	assert.LessOrEqual(t, len(out), 10)
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.Equal(t, "яяя...", out)
	assert.Equal(t, "short", truncate("short", 10))
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"hello"}, splitMessage("hello"))

	line := strings.Repeat("a", 100)
	var lines []string
	for i := 0; i < 100; i++ {
		lines = append(lines, line)
	}
	text := strings.Join(lines, "\n")

	parts := splitMessage(text)
	require.Greater(t, len(parts), 1)
	for _, p := range parts {
		assert.LessOrEqual(t, len(p), MaxMessageLength)
	}
	assert.Equal(t, text, strings.Join(parts, "\n"))
}

func TestSplitMessage_LongLine(t *testing.T) {
	words := strings.Repeat("word ", 2000)
	parts := splitMessage(words)
	require.Greater(t, len(parts), 1)
	for _, p := range parts {
		assert.LessOrEqual(t, len(p), MaxMessageLength)
		assert.NotEmpty(t, p)
	}
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "⚠️ Use <url> & more", stripHTML("⚠️ Use &lt;url&gt; &amp; more"))
	assert.Equal(t, "bold text", stripHTML("<b>bold</b> text"))
}

func TestIsVideoLink(t *testing.T) {
	assert.True(t, isVideoLink("https://youtu.be/dQw4w9WgXcQ"))
	assert.True(t, isVideoLink("https://www.youtube.com/watch?v=dQw4w9WgXcQ 720p"))
	assert.False(t, isVideoLink("hello there"))
	assert.False(t, isVideoLink("https://example.com/video"))
}

func TestChatGone(t *testing.T) {
	assert.True(t, chatGone(errors.New("forbidden, Forbidden: bot was blocked by the user")))
	assert.True(t, chatGone(errors.New("bad request, Bad Request: message to edit not found")))
	assert.True(t, chatGone(errors.New("bad request, Bad Request: chat not found")))
	assert.False(t, chatGone(errors.New("too many requests, Too Many Requests: retry after 5")))
}

func TestDownloadRequest(t *testing.T) {
	sender := entities.Sender{ID: 2}

	req := downloadRequest(sender, 10, entities.CommandDownload, []string{"https://youtu.be/x", "720"})
	assert.Equal(t, "https://youtu.be/x", req.URL)
	assert.Equal(t, entities.Format720p, req.Format)
	assert.Equal(t, int64(10), req.ChatID)
	assert.False(t, req.UseCookies)

	req = downloadRequest(sender, 10, entities.CommandCookieDownload, []string{"https://youtu.be/x", "MP3"})
	assert.Equal(t, entities.FormatMP3, req.Format)
	assert.True(t, req.UseCookies)

	req = downloadRequest(sender, 10, entities.CommandDownload, []string{"https://youtu.be/x", "Flac"})
	assert.Equal(t, entities.Format("flac"), req.Format)
	assert.False(t, req.Format.Valid())

	req = downloadRequest(sender, 10, entities.CommandDownload, nil)
	assert.Empty(t, req.URL)
	assert.Empty(t, req.Format)
}
