// Package metrics exposes Prometheus instrumentation for the transmit
// pipeline.
//
// A Metrics bundle is created against a caller-supplied registerer so
// multiple engines (and tests) can coexist in one process. All metrics
// are prefixed with audiocast_.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for one transmit engine.
type Metrics struct {
	// Capture side
	FramesCaptured prometheus.Counter
	BufferOverruns prometheus.Counter

	// Pipeline iterations
	FramesEncoded   prometheus.Counter
	FramesDropped   prometheus.Counter
	PartialConsumes prometheus.Counter
	ResampleErrors  prometheus.Counter

	// Transmit side
	PacketsSent prometheus.Counter
	BytesSent   prometheus.Counter
	SendErrors  prometheus.Counter

	// Announcement playback
	AnnouncementsFinished prometheus.Counter
}

// New creates and registers the metric bundle with reg. Passing
// prometheus.DefaultRegisterer gives process-global metrics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FramesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiocast_frames_captured_total",
			Help: "Total audio frames deposited by capture sources",
		}),
		BufferOverruns: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiocast_buffer_overruns_total",
			Help: "Total ring buffer overruns (oldest audio discarded)",
		}),
		FramesEncoded: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiocast_frames_encoded_total",
			Help: "Total frames successfully encoded",
		}),
		FramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiocast_frames_dropped_total",
			Help: "Total frames dropped due to pipeline errors",
		}),
		PartialConsumes: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiocast_partial_consumes_total",
			Help: "Total encode iterations where the codec consumed samples without emitting a payload",
		}),
		ResampleErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiocast_resample_errors_total",
			Help: "Total resampler configuration or conversion failures",
		}),
		PacketsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiocast_packets_sent_total",
			Help: "Total RTP payloads handed to the sender",
		}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiocast_bytes_sent_total",
			Help: "Total payload bytes handed to the sender",
		}),
		SendErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiocast_send_errors_total",
			Help: "Total sender callback failures",
		}),
		AnnouncementsFinished: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiocast_announcements_finished_total",
			Help: "Total announcement files played to completion",
		}),
	}
}

// Nop returns a metric bundle backed by a throwaway registry, for callers
// that do not want instrumentation.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
