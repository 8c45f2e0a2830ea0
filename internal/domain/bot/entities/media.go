package entities

import "time"

// VideoInfo is the metadata shown before a format is chosen
type VideoInfo struct {
	ID        string
	URL       string
	Title     string
	Author    string
	Duration  time.Duration
	Views     int
	Qualities []Format
	// SizeEstimates holds the expected size per quality, when the probe knows it
	SizeEstimates map[Format]int64
	// AudioSizeEstimate is the expected size of the best audio stream
	AudioSizeEstimate int64
	// Partial is set when metadata could not be fetched and qualities are guessed
	Partial bool
}

// HasQuality reports whether q was found among the available streams
func (v *VideoInfo) HasQuality(q Format) bool {
	for _, have := range v.Qualities {
		if have == q {
			return true
		}
	}
	return false
}

// EstimatedSize returns the expected size of the given format, or 0 when unknown
func (v *VideoInfo) EstimatedSize(f Format) int64 {
	if f.IsAudio() {
		return v.AudioSizeEstimate
	}
	return v.SizeEstimates[f]
}

// DownloadRequest describes one user download
type DownloadRequest struct {
	URL         string
	Format      Format
	RequesterID int64
	ChatID      int64
	UseCookies  bool
	// Info is the probe result obtained while the format was chosen, if any
	Info *VideoInfo
}

// DownloadResult is a finished download waiting for delivery
type DownloadResult struct {
	Path            string
	Dir             string
	SizeBytes       int64
	Title           string
	Duration        time.Duration
	Format          Format
	RequestedFormat Format
	Substituted     bool
}

// DeliveryMode is how a result reaches the user
type DeliveryMode string

const (
	DeliveryDirect DeliveryMode = "direct_send"
	DeliveryHosted DeliveryMode = "hosted_link"
)

// UploadOutcome is the result of delivering a file
type UploadOutcome struct {
	Mode       DeliveryMode
	Link       string
	DirectLink string
	FileID     string
	Server     string
	Attempts   int
}

// HostedFile is the hosting service response for one upload
type HostedFile struct {
	DownloadPage string
	DirectLink   string
	FileID       string
	Server       string
}

// Stage is a step of the download pipeline
type Stage string

const (
	StageQueued      Stage = "queued"
	StageProbing     Stage = "probing"
	StageDownloading Stage = "downloading"
	StageConverting  Stage = "converting"
	StageUploading   Stage = "uploading"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// Terminal reports whether no further snapshots follow this stage
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// Progress is a snapshot of a running pipeline
type Progress struct {
	Stage           Stage
	Percent         float64
	DownloadedBytes int64
	TotalBytes      int64
	// Speed is in bytes per second
	Speed float64
	ETA   time.Duration
	Note  string
}
