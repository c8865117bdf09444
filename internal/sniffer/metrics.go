package sniffer

import (
	"sync/atomic"
)

// Metrics contains per-session counters.
type Metrics struct {
	Received     atomic.Uint64
	Decoded      atomic.Uint64
	DecodeErrors atomic.Uint64
	SinkErrors   atomic.Uint64
}

// Stats is a snapshot of Metrics.
type Stats struct {
	Received     uint64
	Decoded      uint64
	DecodeErrors uint64
	SinkErrors   uint64
}
