// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CaptureFramesTotal counts frames received by interface
	CaptureFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sniff_capture_frames_total",
			Help: "Total number of frames received",
		},
		[]string{"interface"},
	)

	// CaptureBytesTotal counts bytes received by interface
	CaptureBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sniff_capture_bytes_total",
			Help: "Total number of bytes received",
		},
		[]string{"interface"},
	)

	// CaptureErrorsTotal counts failed receive and send calls
	CaptureErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sniff_capture_errors_total",
			Help: "Total number of failed socket operations",
		},
		[]string{"interface", "op"},
	)

	// CaptureCancelledTotal counts receives abandoned before a frame arrived
	CaptureCancelledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sniff_capture_cancelled_total",
			Help: "Total number of receives cancelled before data arrived",
		},
		[]string{"interface"},
	)

	// SendFramesTotal counts frames written to the wire
	SendFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sniff_send_frames_total",
			Help: "Total number of frames sent",
		},
		[]string{"interface"},
	)

	// DecodeTotal counts decode outcomes: ok, truncated, version_mismatch,
	// unsupported, reserved_bit, invalid_header_length, error
	DecodeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sniff_decode_total",
			Help: "Total number of decoded frames by outcome",
		},
		[]string{"outcome"},
	)

	// DecodeLatencySeconds measures decoding time per frame
	DecodeLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sniff_decode_latency_seconds",
			Help:    "Latency of frame decoding in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00000005, 2, 16), // 50ns to ~1.6ms
		},
	)

	// PoolIdleBuffers tracks idle buffers in the receive pool
	PoolIdleBuffers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sniff_pool_idle_buffers",
			Help: "Number of idle buffers in the receive pool",
		},
	)

	// PoolAllocatedBuffers tracks buffers the receive pool has allocated
	PoolAllocatedBuffers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sniff_pool_allocated_buffers",
			Help: "Number of buffers ever allocated by the receive pool",
		},
	)

	// SessionStatus tracks the capture session state
	SessionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sniff_session_status",
			Help: "Current status of the capture session (0=stopped, 1=running, 2=error)",
		},
	)
)

// SessionStatusValue represents session status as a numeric value for Prometheus gauge
const (
	SessionStatusStopped = 0
	SessionStatusRunning = 1
	SessionStatusError   = 2
)
