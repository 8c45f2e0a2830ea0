// Package fetch probes videos and downloads them into per-request directories
package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/alex-away/tg-ytdl-gofile/config"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/deps"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/dto"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/entities"
	boterrors "github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/errors"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/progress"
	"github.com/alex-away/tg-ytdl-gofile/internal/infrastructure/metrics"
	pkgerrors "github.com/alex-away/tg-ytdl-gofile/pkg/errors"
)

// Orchestrator runs probe, download and transcode for one request at a time.
// Every request gets its own directory under the download dir; the directory
// stays registered as active until Cleanup is called.
type Orchestrator struct {
	prober     deps.VideoProber
	fetcher    deps.MediaFetcher
	transcoder deps.Transcoder
	cookies    deps.CookieStore
	cfg        *config.DownloadConfig
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(
	prober deps.VideoProber,
	fetcher deps.MediaFetcher,
	transcoder deps.Transcoder,
	cookies deps.CookieStore,
	cfg *config.DownloadConfig,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		prober:     prober,
		fetcher:    fetcher,
		transcoder: transcoder,
		cookies:    cookies,
		cfg:        cfg,
		metrics:    m,
		logger:     logger.With().Str("component", "fetch").Logger(),
		active:     make(map[string]struct{}),
	}
}

// Probe reads video metadata. With cookies requested, a failed probe degrades
// to partial info since the player API cannot see restricted videos but
// yt-dlp with cookies can.
func (o *Orchestrator) Probe(ctx context.Context, url string, useCookies bool) (*entities.VideoInfo, error) {
	if _, ok := entities.ParseVideoURL(url); !ok {
		return nil, boterrors.ErrInvalidURL
	}

	probeCtx, cancel := context.WithTimeout(ctx, o.cfg.ProbeTimeout)
	defer cancel()

	info, err := o.prober.Probe(probeCtx, url)
	if err == nil {
		return info, nil
	}

	if useCookies && ctx.Err() == nil {
		o.logger.Warn().Err(err).Str("url", url).Msg("Probe failed, continuing with partial info")
		return PartialInfo(url), nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, pkgerrors.NewExtractionError("timed out reading video information", err)
	}
	return nil, err
}

// Fetch downloads req into a fresh request directory and returns the finished file.
// On any error the directory is removed before returning.
func (o *Orchestrator) Fetch(ctx context.Context, req *entities.DownloadRequest, stream *progress.Stream) (result *entities.DownloadResult, err error) {
	started := time.Now()
	defer func() {
		label := "success"
		var size int64
		if err != nil {
			label = pkgerrors.KindOf(err).String()
		} else {
			size = result.SizeBytes
		}
		o.metrics.RecordDownload(label, time.Since(started).Seconds(), size)
	}()

	if !req.Format.Valid() {
		return nil, boterrors.ErrUnknownFormat
	}

	info := req.Info
	if info == nil {
		stream.Publish(entities.Progress{Stage: entities.StageProbing})
		if info, err = o.Probe(ctx, req.URL, req.UseCookies); err != nil {
			return nil, err
		}
	}

	format, substituted, err := ResolveFormat(req.Format, info)
	if err != nil {
		return nil, err
	}

	if est := info.EstimatedSize(format); est > o.cfg.MaxSizeBytes {
		return nil, pkgerrors.NewSizeExceededError(est, o.cfg.MaxSizeBytes)
	}

	var cookiesFile string
	if req.UseCookies {
		if cookiesFile, err = o.cookies.Path(); err != nil {
			return nil, err
		}
	}

	dir := filepath.Join(o.cfg.Dir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create request directory: %w", err)
	}
	o.track(dir)
	defer func() {
		if err != nil {
			o.remove(dir)
		}
	}()

	log := o.logger.With().
		Str("dir", filepath.Base(dir)).
		Str("format", string(format)).
		Int64("user_id", req.RequesterID).
		Logger()
	log.Info().Str("url", req.URL).Bool("substituted", substituted).Msg("Download started")

	path, err := o.download(ctx, dto.FetchSpec{
		URL:         req.URL,
		Format:      format,
		Dir:         dir,
		CookiesFile: cookiesFile,
		MaxBytes:    o.cfg.MaxSizeBytes,
	}, stream)
	if err != nil {
		return nil, err
	}

	if format.IsAudio() {
		if path, err = o.transcode(ctx, path, dir, format, stream); err != nil {
			return nil, err
		}
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat download: %w", err)
	}
	if stat.Size() > o.cfg.MaxSizeBytes {
		return nil, pkgerrors.NewSizeExceededError(stat.Size(), o.cfg.MaxSizeBytes)
	}

	title := info.Title
	if title == "" {
		title = info.ID
	}

	log.Info().
		Int64("size_bytes", stat.Size()).
		Dur("took", time.Since(started)).
		Msg("Download finished")

	return &entities.DownloadResult{
		Path:            path,
		Dir:             dir,
		SizeBytes:       stat.Size(),
		Title:           title,
		Duration:        info.Duration,
		Format:          format,
		RequestedFormat: req.Format,
		Substituted:     substituted,
	}, nil
}

// download runs the fetcher under the download timeout and aborts it as soon
// as a progress report shows more than the size ceiling
func (o *Orchestrator) download(ctx context.Context, spec dto.FetchSpec, stream *progress.Stream) (string, error) {
	abortCtx, abort := context.WithCancelCause(ctx)
	defer abort(nil)
	dlCtx, cancel := context.WithTimeout(abortCtx, o.cfg.DownloadTimeout)
	defer cancel()

	stream.Publish(entities.Progress{Stage: entities.StageDownloading})

	path, err := o.fetcher.Fetch(dlCtx, spec, func(p entities.Progress) {
		if size := max(p.TotalBytes, p.DownloadedBytes); spec.MaxBytes > 0 && size > spec.MaxBytes {
			abort(pkgerrors.NewSizeExceededError(size, spec.MaxBytes))
			return
		}
		stream.Publish(p)
	})
	if err == nil {
		return path, nil
	}

	if cause := context.Cause(abortCtx); pkgerrors.IsSizeExceededError(cause) {
		return "", cause
	}
	if ctx.Err() != nil {
		return "", fmt.Errorf("download canceled: %w", ctx.Err())
	}
	if errors.Is(dlCtx.Err(), context.DeadlineExceeded) {
		return "", pkgerrors.NewExtractionError("download timed out", err)
	}
	return "", err
}

func (o *Orchestrator) transcode(ctx context.Context, src, dir string, format entities.Format, stream *progress.Stream) (string, error) {
	stream.Publish(entities.Progress{Stage: entities.StageConverting, Percent: 100})

	tcCtx, cancel := context.WithTimeout(ctx, o.cfg.TranscodeTimeout)
	defer cancel()

	dst := filepath.Join(dir, "audio."+format.Extension())
	if err := o.transcoder.Transcode(tcCtx, src, dst, format); err != nil {
		if errors.Is(tcCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", pkgerrors.NewExtractionError("audio conversion timed out", err)
		}
		return "", err
	}

	if err := os.Remove(src); err != nil && !os.IsNotExist(err) {
		o.logger.Warn().Err(err).Str("path", src).Msg("Failed to remove source stream")
	}
	return dst, nil
}

// Cleanup removes the request directory of result
func (o *Orchestrator) Cleanup(result *entities.DownloadResult) error {
	if result == nil || result.Dir == "" {
		return nil
	}
	return o.remove(result.Dir)
}

// ActiveDirs returns the request directories owned by running jobs
func (o *Orchestrator) ActiveDirs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	dirs := make([]string, 0, len(o.active))
	for dir := range o.active {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

func (o *Orchestrator) track(dir string) {
	o.mu.Lock()
	o.active[dir] = struct{}{}
	o.mu.Unlock()
}

func (o *Orchestrator) remove(dir string) error {
	o.mu.Lock()
	delete(o.active, dir)
	o.mu.Unlock()

	if err := os.RemoveAll(dir); err != nil {
		o.logger.Error().Err(err).Str("dir", dir).Msg("Failed to remove request directory")
		return fmt.Errorf("failed to remove request directory: %w", err)
	}
	return nil
}
