package youtube

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/rs/zerolog"

	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/dto"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/entities"
	pkgerrors "github.com/alex-away/tg-ytdl-gofile/pkg/errors"
)

const progressInterval = 500 * time.Millisecond

// Fetcher downloads streams with yt-dlp
type Fetcher struct {
	logger zerolog.Logger
}

// NewFetcher creates a yt-dlp backed fetcher
func NewFetcher(logger zerolog.Logger) *Fetcher {
	return &Fetcher{logger: logger}
}

// Fetch downloads the requested streams into spec.Dir and returns the file path.
// Video is merged into mp4; audio is the best audio stream as served, left for the transcoder.
func (f *Fetcher) Fetch(ctx context.Context, spec dto.FetchSpec, onProgress func(entities.Progress)) (string, error) {
	dl := ytdlp.New().
		NoPlaylist().
		ForceOverwrites().
		RestrictFilenames().
		Format(selector(spec.Format)).
		Output(filepath.Join(spec.Dir, "%(id)s.%(ext)s"))

	if spec.Format.IsVideo() {
		dl.MergeOutputFormat("mp4")
	}
	if spec.CookiesFile != "" {
		dl.Cookies(spec.CookiesFile)
	}
	if onProgress != nil {
		dl.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
			onProgress(toProgress(update))
		})
	}

	started := time.Now()
	if _, err := dl.Run(ctx, spec.URL); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", pkgerrors.NewExtractionError("download failed", err)
	}

	path, err := findOutput(spec.Dir)
	if err != nil {
		return "", pkgerrors.NewExtractionError("download produced no file", err)
	}

	f.logger.Debug().
		Str("path", path).
		Str("format", string(spec.Format)).
		Dur("took", time.Since(started)).
		Msg("yt-dlp finished")

	return path, nil
}

// selector builds the yt-dlp format selector. Heights are upper bounds so the
// extractor never returns more than the chosen ladder step.
func selector(format entities.Format) string {
	if format.IsAudio() {
		return "bestaudio/best"
	}
	h := format.Height()
	return fmt.Sprintf("bestvideo[height<=%d][ext=mp4]+bestaudio[ext=m4a]/bestvideo[height<=%d]+bestaudio/best[height<=%d]", h, h, h)
}

func toProgress(u ytdlp.ProgressUpdate) entities.Progress {
	p := entities.Progress{
		Stage:           entities.StageDownloading,
		DownloadedBytes: int64(u.DownloadedBytes),
		TotalBytes:      int64(u.TotalBytes),
		ETA:             u.ETA(),
	}
	if u.TotalBytes > 0 {
		p.Percent = float64(u.DownloadedBytes) / float64(u.TotalBytes) * 100
	}
	if !u.Started.IsZero() {
		if elapsed := time.Since(u.Started).Seconds(); elapsed > 0 {
			p.Speed = float64(u.DownloadedBytes) / elapsed
		}
	}
	return p
}

var partialSuffixes = []string{".part", ".ytdl", ".tmp", ".temp"}

// findOutput returns the largest finished file in dir
func findOutput(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var best string
	var bestSize int64 = -1
	for _, e := range entries {
		if !e.Type().IsRegular() || isPartial(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.Size() > bestSize {
			best, bestSize = filepath.Join(dir, e.Name()), info.Size()
		}
	}
	if best == "" {
		return "", errors.New("no output file in " + filepath.Base(dir))
	}
	return best, nil
}

func isPartial(name string) bool {
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return strings.Contains(name, ".part-Frag")
}
