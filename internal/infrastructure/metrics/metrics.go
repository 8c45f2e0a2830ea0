package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the bot
type Metrics struct {
	// Command metrics
	CommandsTotal *prometheus.CounterVec
	DeniedTotal   *prometheus.CounterVec

	// Download metrics
	DownloadsTotal   *prometheus.CounterVec
	DownloadDuration prometheus.Histogram
	DownloadedBytes  prometheus.Counter
	ActiveDownloads  prometheus.Gauge
	CapacityRejected prometheus.Counter

	// Delivery metrics
	DeliveriesTotal *prometheus.CounterVec
	GofileAttempts  *prometheus.CounterVec

	// Audit metrics
	AuditPublishErrors *prometheus.CounterVec
}

var (
	// DefaultMetrics is the default metrics instance
	DefaultMetrics *Metrics
	once           sync.Once
)

// GetDefaultMetrics returns the singleton metrics instance
func GetDefaultMetrics() *Metrics {
	once.Do(func() {
		DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return DefaultMetrics
}

// NewMetrics creates a new Metrics instance registered on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ytdl_bot_commands_total",
				Help: "Total number of chat commands received",
			},
			[]string{"command"},
		),
		DeniedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ytdl_bot_commands_denied_total",
				Help: "Total number of commands rejected by the permission gate",
			},
			[]string{"command"},
		),

		DownloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ytdl_bot_downloads_total",
				Help: "Total number of download pipelines by result",
			},
			[]string{"result"},
		),
		DownloadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ytdl_bot_download_duration_seconds",
			Help:    "Duration of the extract and transcode stage in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 1800},
		}),
		DownloadedBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "ytdl_bot_downloaded_bytes_total",
			Help: "Total size of finished downloads in bytes",
		}),
		ActiveDownloads: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ytdl_bot_active_downloads",
			Help: "Current number of held download permits",
		}),
		CapacityRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "ytdl_bot_capacity_rejections_total",
			Help: "Total number of requests rejected because every slot was taken",
		}),

		DeliveriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ytdl_bot_deliveries_total",
				Help: "Total number of deliveries by mode and result",
			},
			[]string{"mode", "result"},
		),
		GofileAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ytdl_bot_gofile_attempts_total",
				Help: "Total number of Gofile upload attempts by result",
			},
			[]string{"result"},
		),

		AuditPublishErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ytdl_bot_audit_publish_errors_total",
				Help: "Total number of audit events that could not be published",
			},
			[]string{"sink"},
		),
	}
}

// RecordCommand records a received command
func (m *Metrics) RecordCommand(command string) {
	m.CommandsTotal.WithLabelValues(command).Inc()
}

// RecordDenied records a command rejected by the permission gate
func (m *Metrics) RecordDenied(command string) {
	m.DeniedTotal.WithLabelValues(command).Inc()
}

// RecordDownload records a finished download pipeline stage
func (m *Metrics) RecordDownload(result string, durationSeconds float64, sizeBytes int64) {
	m.DownloadsTotal.WithLabelValues(result).Inc()
	m.DownloadDuration.Observe(durationSeconds)
	if sizeBytes > 0 {
		m.DownloadedBytes.Add(float64(sizeBytes))
	}
}

// RecordDelivery records a delivery outcome
func (m *Metrics) RecordDelivery(mode, result string) {
	m.DeliveriesTotal.WithLabelValues(mode, result).Inc()
}

// RecordGofileAttempt records one hosted upload attempt
func (m *Metrics) RecordGofileAttempt(result string) {
	m.GofileAttempts.WithLabelValues(result).Inc()
}

// SetActiveDownloads updates the held permits gauge
func (m *Metrics) SetActiveDownloads(n int) {
	m.ActiveDownloads.Set(float64(n))
}

// RecordCapacityRejected records a request turned away by the limiter
func (m *Metrics) RecordCapacityRejected() {
	m.CapacityRejected.Inc()
}

// RecordAuditError records a failed audit publish
func (m *Metrics) RecordAuditError(sink string) {
	if sink == "" {
		sink = "unknown"
	}
	m.AuditPublishErrors.WithLabelValues(sink).Inc()
}
