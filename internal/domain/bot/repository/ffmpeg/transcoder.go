// Package ffmpeg converts downloaded audio with the ffmpeg binary
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/entities"
	pkgerrors "github.com/alex-away/tg-ytdl-gofile/pkg/errors"
)

// globalOptions keep ffmpeg quiet and non-interactive
var globalOptions = []string{"-hide_banner", "-loglevel", "error", "-nostdin", "-y"}

// stderrTail bounds how much ffmpeg output is kept for error messages
const stderrTail = 2048

// Transcoder runs ffmpeg to produce mp3 or wav files
type Transcoder struct {
	path   string
	logger zerolog.Logger
}

// NewTranscoder creates a transcoder using the ffmpeg binary at path
func NewTranscoder(path string, logger zerolog.Logger) *Transcoder {
	if path == "" {
		path = "ffmpeg"
	}
	return &Transcoder{path: path, logger: logger}
}

// Transcode converts src into dst with the codec of format
func (t *Transcoder) Transcode(ctx context.Context, src, dst string, format entities.Format) error {
	args, err := buildArgs(src, dst, format)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, t.path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	t0 := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return pkgerrors.NewExtractionError("audio conversion failed", fmt.Errorf("ffmpeg: %w: %s", err, tail(stderr.String())))
	}

	t.logger.Debug().
		Str("format", string(format)).
		Dur("took", time.Since(t0)).
		Msg("Transcoded audio")

	return nil
}

// buildArgs returns the ffmpeg arguments for an audio format
func buildArgs(src, dst string, format entities.Format) ([]string, error) {
	args := append(append([]string(nil), globalOptions...), "-i", src, "-vn")

	switch format {
	case entities.FormatMP3:
		args = append(args, "-c:a", "libmp3lame", "-b:a", "192k", "-f", "mp3")
	case entities.FormatWAV:
		args = append(args, "-c:a", "pcm_s16le", "-f", "wav")
	default:
		return nil, pkgerrors.NewFormatUnavailableError(string(format))
	}

	return append(args, dst), nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTail {
		s = s[len(s)-stderrTail:]
	}
	return s
}
