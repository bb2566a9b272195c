// ABOUTME: Prometheus metrics for a live session
// ABOUTME: Collectors read session statistics at scrape time
package metrics

import (
	"net/http"

	"github.com/harperreed/livewave-go/pkg/live"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsSource is anything that reports session statistics
type StatsSource interface {
	Stats() live.Stats
}

// Metrics contains all Prometheus metrics for the livewave client
type Metrics struct {
	// Capture metrics
	BlocksCaptured prometheus.CounterFunc
	ChunksSent     prometheus.CounterFunc
	ChunksDropped  prometheus.CounterFunc
	SendErrors     prometheus.CounterFunc

	// Playback metrics
	BuffersScheduled   prometheus.CounterFunc
	BuffersEnded       prometheus.CounterFunc
	BuffersResampled   prometheus.CounterFunc
	PlaybackGaps       prometheus.CounterFunc
	FramesScheduled    prometheus.CounterFunc
	BuffersInFlight    prometheus.GaugeFunc
	OutputClockSeconds prometheus.GaugeFunc

	// Session metrics
	Turns        prometheus.CounterFunc
	Interrupts   prometheus.CounterFunc
	DecodeErrors prometheus.CounterFunc
	Uptime       prometheus.GaugeFunc
}

// New creates the metrics for src and registers them with reg
func New(reg prometheus.Registerer, src StatsSource) *Metrics {
	factory := promauto.With(reg)

	counter := func(name, help string, value func(live.Stats) int64) prometheus.CounterFunc {
		return factory.NewCounterFunc(prometheus.CounterOpts{
			Name: name,
			Help: help,
		}, func() float64 { return float64(value(src.Stats())) })
	}
	gauge := func(name, help string, value func(live.Stats) float64) prometheus.GaugeFunc {
		return factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: name,
			Help: help,
		}, func() float64 { return value(src.Stats()) })
	}

	return &Metrics{
		BlocksCaptured: counter("livewave_capture_blocks_total",
			"Total number of microphone blocks framed",
			func(s live.Stats) int64 { return s.Capture.Blocks }),
		ChunksSent: counter("livewave_capture_chunks_sent_total",
			"Total number of audio chunks sent to the server",
			func(s live.Stats) int64 { return s.Capture.Sent }),
		ChunksDropped: counter("livewave_capture_chunks_dropped_total",
			"Total number of audio chunks dropped because the send queue was full",
			func(s live.Stats) int64 { return s.Capture.Dropped }),
		SendErrors: counter("livewave_send_errors_total",
			"Total number of failed chunk sends",
			func(s live.Stats) int64 { return s.SendErrors }),

		BuffersScheduled: counter("livewave_playback_buffers_scheduled_total",
			"Total number of response buffers scheduled",
			func(s live.Stats) int64 { return s.Playback.Enqueued }),
		BuffersEnded: counter("livewave_playback_buffers_ended_total",
			"Total number of response buffers played to completion",
			func(s live.Stats) int64 { return s.Playback.Ended }),
		BuffersResampled: counter("livewave_playback_buffers_resampled_total",
			"Total number of response buffers converted to the output rate",
			func(s live.Stats) int64 { return s.Playback.Resampled }),
		PlaybackGaps: counter("livewave_playback_gaps_total",
			"Total number of buffers that started after the queue had run dry",
			func(s live.Stats) int64 { return s.Playback.Gaps }),
		FramesScheduled: counter("livewave_playback_frames_total",
			"Total number of output frames scheduled",
			func(s live.Stats) int64 { return s.Playback.Frames }),
		BuffersInFlight: gauge("livewave_playback_buffers_in_flight",
			"Current number of scheduled buffers not yet ended",
			func(s live.Stats) float64 { return float64(s.InFlight) }),
		OutputClockSeconds: gauge("livewave_output_clock_seconds",
			"Audio rendered by the output device in seconds",
			func(s live.Stats) float64 { return s.OutputClock.Seconds() }),

		Turns: counter("livewave_turns_total",
			"Total number of completed model turns",
			func(s live.Stats) int64 { return s.Turns }),
		Interrupts: counter("livewave_interrupts_total",
			"Total number of playback interrupts",
			func(s live.Stats) int64 { return s.Interrupts }),
		DecodeErrors: counter("livewave_decode_errors_total",
			"Total number of undecodable response chunks",
			func(s live.Stats) int64 { return s.DecodeErrors }),
		Uptime: gauge("livewave_session_uptime_seconds",
			"Time since the current session started",
			func(s live.Stats) float64 { return s.Uptime.Seconds() }),
	}
}

// Handler serves the metrics registered in gatherer
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
