// Package workers contains background workers for the bot domain
package workers

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/alex-away/tg-ytdl-gofile/config"
)

// ActiveDirs lists request directories owned by running jobs
type ActiveDirs interface {
	ActiveDirs() []string
}

// Sweeper removes request directories left behind by crashed or stuck jobs
type Sweeper struct {
	dir      string
	interval time.Duration
	maxAge   time.Duration
	active   ActiveDirs
	logger   zerolog.Logger
	now      func() time.Time

	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSweeper creates a sweeper for the download directory
func NewSweeper(download *config.DownloadConfig, gofile *config.GofileConfig, active ActiveDirs, logger zerolog.Logger) *Sweeper {
	ctx, cancel := context.WithCancel(context.Background())

	return &Sweeper{
		dir:      download.Dir,
		interval: download.SweepInterval,
		maxAge:   download.DownloadTimeout + gofile.UploadTimeout,
		active:   active,
		logger:   logger,
		now:      time.Now,
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start clears everything left from a previous run, then sweeps periodically
func (s *Sweeper) Start() {
	if n := s.Sweep(0); n > 0 {
		s.logger.Info().Int("removed", n).Msg("Removed leftover request directories")
	}

	if s.interval <= 0 {
		close(s.done)
		return
	}

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				s.logger.Info().Msg("Sweeper stopped by context cancellation")
				return
			case <-ticker.C:
				if n := s.Sweep(s.maxAge); n > 0 {
					s.logger.Warn().Int("removed", n).Dur("max_age", s.maxAge).Msg("Removed stale request directories")
				}
			}
		}
	}()
}

// Stop stops the periodic sweep
func (s *Sweeper) Stop() error {
	s.cancel()
	<-s.done
	return nil
}

// Sweep removes request directories older than maxAge that no running job owns.
// It returns the number of directories removed.
func (s *Sweeper) Sweep(maxAge time.Duration) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error().Err(err).Str("dir", s.dir).Msg("Failed to read download directory")
		}
		return 0
	}

	owned := make(map[string]struct{})
	for _, d := range s.active.ActiveDirs() {
		owned[filepath.Clean(d)] = struct{}{}
	}

	cutoff := s.now().Add(-maxAge)
	removed := 0

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		if _, ok := owned[path]; ok {
			continue
		}

		info, err := e.Info()
		if err != nil {
			continue
		}
		if maxAge > 0 && info.ModTime().After(cutoff) {
			continue
		}

		if err := os.RemoveAll(path); err != nil {
			s.logger.Error().Err(err).Str("dir", path).Msg("Failed to remove request directory")
			continue
		}
		s.logger.Debug().Str("dir", path).Time("modified", info.ModTime()).Msg("Request directory removed")
		removed++
	}

	return removed
}
