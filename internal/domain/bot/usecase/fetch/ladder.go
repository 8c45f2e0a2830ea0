package fetch

import (
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/entities"
	boterrors "github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/errors"
	pkgerrors "github.com/alex-away/tg-ytdl-gofile/pkg/errors"
)

// ResolveFormat picks the format to download for a request.
// Audio is always available. A video quality missing from info is replaced by
// the closest lower quality that exists; a higher one is never chosen.
// With partial info the request is passed through unchanged and the
// extractor's height bound does the fallback.
func ResolveFormat(requested entities.Format, info *entities.VideoInfo) (entities.Format, bool, error) {
	if requested.IsAudio() {
		return requested, false, nil
	}
	if !requested.IsVideo() {
		return "", false, boterrors.ErrUnknownFormat
	}
	if info == nil || info.Partial {
		return requested, false, nil
	}

	start := -1
	for i, q := range entities.VideoQualities {
		if q == requested {
			start = i
			break
		}
	}

	for i := start; i >= 0; i-- {
		if q := entities.VideoQualities[i]; info.HasQuality(q) {
			return q, q != requested, nil
		}
	}

	return "", false, pkgerrors.NewFormatUnavailableError(string(requested))
}

// PartialInfo describes a video whose metadata could not be read.
// Every quality is offered and sizes are unknown.
func PartialInfo(url string) *entities.VideoInfo {
	id, _ := entities.ParseVideoURL(url)
	qualities := make([]entities.Format, len(entities.VideoQualities))
	copy(qualities, entities.VideoQualities)

	return &entities.VideoInfo{
		ID:        id,
		URL:       url,
		Title:     id,
		Qualities: qualities,
		Partial:   true,
	}
}
