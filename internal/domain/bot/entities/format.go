package entities

import (
	"strconv"
	"strings"
)

// Format is a requested output format: a video quality or an audio codec
type Format string

const (
	Format144p  Format = "144p"
	Format240p  Format = "240p"
	Format360p  Format = "360p"
	Format480p  Format = "480p"
	Format720p  Format = "720p"
	Format1080p Format = "1080p"
	Format1440p Format = "1440p"
	Format2160p Format = "2160p"
	FormatMP3   Format = "mp3"
	FormatWAV   Format = "wav"
)

// VideoQualities is the quality ladder in ascending order
var VideoQualities = []Format{
	Format144p, Format240p, Format360p, Format480p,
	Format720p, Format1080p, Format1440p, Format2160p,
}

// AudioFormats lists the supported audio codecs
var AudioFormats = []Format{FormatMP3, FormatWAV}

// ParseFormat normalizes user input ("MP3", "720", "720p") to a supported Format
func ParseFormat(s string) (Format, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}
	if _, err := strconv.Atoi(s); err == nil {
		s += "p"
	}
	f := Format(s)
	return f, f.Valid()
}

// Valid reports whether f is one of the supported formats
func (f Format) Valid() bool {
	return f.IsAudio() || f.IsVideo()
}

// IsAudio reports whether f is an audio codec
func (f Format) IsAudio() bool {
	return f == FormatMP3 || f == FormatWAV
}

// IsVideo reports whether f is a video quality
func (f Format) IsVideo() bool {
	return f.Height() > 0
}

// Height returns the pixel height of a video quality, or 0 for anything else
func (f Format) Height() int {
	for _, q := range VideoQualities {
		if q == f {
			h, _ := strconv.Atoi(strings.TrimSuffix(string(f), "p"))
			return h
		}
	}
	return 0
}

// QualityForHeight returns the ladder step matching a stream height
func QualityForHeight(height int) (Format, bool) {
	for _, q := range VideoQualities {
		if q.Height() == height {
			return q, true
		}
	}
	return "", false
}

// Extension returns the container extension of the delivered file
func (f Format) Extension() string {
	if f.IsAudio() {
		return string(f)
	}
	return "mp4"
}
