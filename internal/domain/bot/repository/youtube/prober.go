package youtube

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	ytdl "github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"

	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/entities"
	boterrors "github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/errors"
	pkgerrors "github.com/alex-away/tg-ytdl-gofile/pkg/errors"
)

// Prober reads video metadata through the YouTube player API
type Prober struct {
	client ytdl.Client
	logger zerolog.Logger
}

// NewProber creates a prober using httpClient for every request
func NewProber(httpClient *http.Client, logger zerolog.Logger) *Prober {
	return &Prober{
		client: ytdl.Client{HTTPClient: httpClient},
		logger: logger,
	}
}

// Probe fetches title, author, duration, views and the available qualities
func (p *Prober) Probe(ctx context.Context, url string) (*entities.VideoInfo, error) {
	id, ok := entities.ParseVideoURL(url)
	if !ok {
		return nil, boterrors.ErrInvalidURL
	}

	video, err := p.client.GetVideoContext(ctx, id)
	if err != nil {
		return nil, pkgerrors.NewExtractionError("could not fetch video information", err)
	}

	info := infoFromVideo(video, url)
	p.logger.Debug().
		Str("video_id", id).
		Int("formats", len(video.Formats)).
		Strs("qualities", formatStrings(info.Qualities)).
		Msg("Video probed")

	return info, nil
}

// infoFromVideo maps player metadata to the ladder of supported qualities
func infoFromVideo(video *ytdl.Video, url string) *entities.VideoInfo {
	info := &entities.VideoInfo{
		ID:            video.ID,
		URL:           url,
		Title:         video.Title,
		Author:        video.Author,
		Duration:      video.Duration,
		Views:         video.Views,
		SizeEstimates: make(map[entities.Format]int64),
	}

	var bestAudio int64
	videoSize := make(map[entities.Format]int64)
	for _, f := range video.Formats {
		switch {
		case strings.HasPrefix(f.MimeType, "audio/"):
			bestAudio = max(bestAudio, f.ContentLength)
		case strings.HasPrefix(f.MimeType, "video/"):
			if q, ok := qualityOf(f); ok {
				videoSize[q] = max(videoSize[q], f.ContentLength)
			}
		}
	}

	for _, q := range entities.VideoQualities {
		size, ok := videoSize[q]
		if !ok {
			continue
		}
		info.Qualities = append(info.Qualities, q)
		if size > 0 {
			info.SizeEstimates[q] = size + bestAudio
		}
	}
	info.AudioSizeEstimate = bestAudio

	return info
}

// qualityOf reads "1080p60" style labels first since widescreen streams
// report a smaller pixel height than their quality step
func qualityOf(f ytdl.Format) (entities.Format, bool) {
	label := f.QualityLabel
	if i := strings.IndexByte(label, 'p'); i > 0 {
		if h, err := strconv.Atoi(label[:i]); err == nil {
			if q, ok := entities.QualityForHeight(h); ok {
				return q, true
			}
		}
	}
	return entities.QualityForHeight(f.Height)
}

func formatStrings(fs []entities.Format) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = string(f)
	}
	return out
}
