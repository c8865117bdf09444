// Package sniffer runs a capture session: concurrent receive loops that
// decode each frame, hand it to a sink and return its buffer to the pool.
package sniffer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"firestige.xyz/sniff/internal/buffer"
	"firestige.xyz/sniff/internal/core"
	"firestige.xyz/sniff/internal/core/decoder"
	"firestige.xyz/sniff/internal/log"
	"firestige.xyz/sniff/internal/metrics"
	"firestige.xyz/sniff/internal/sink"
)

// Receiver is the receive half of a capture transport.
type Receiver interface {
	Recv(ctx context.Context) (int, *buffer.Buffer, error)
}

// Config contains session configuration.
type Config struct {
	Receiver Receiver
	Decoder  *decoder.Decoder
	Sink     sink.Sink
	Workers  int    // Concurrent receive loops, default 1
	Limit    uint64 // Stop after this many frames, 0 for no limit
}

// failureWindow is how long identical decode failures are logged only once.
const failureWindow = 10 * time.Second

// Sniffer is one capture session.
type Sniffer struct {
	recv     Receiver
	dec      *decoder.Decoder
	sink     sink.Sink
	workers  int
	limit    uint64
	claimed  atomic.Uint64 // frames taken against limit
	stats    *Metrics
	failures *failureLog
}

// New creates a session. A nil Decoder decodes Ethernet, a nil Sink drops
// every frame.
func New(cfg Config) *Sniffer {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Decoder == nil {
		cfg.Decoder = decoder.New()
	}
	if cfg.Sink == nil {
		cfg.Sink = sink.Discard
	}
	return &Sniffer{
		recv:     cfg.Receiver,
		dec:      cfg.Decoder,
		sink:     cfg.Sink,
		workers:  cfg.Workers,
		limit:    cfg.Limit,
		stats:    &Metrics{},
		failures: newFailureLog(failureWindow, failureWindow),
	}
}

// Run receives until ctx is done, the receiver is closed or the frame limit
// is reached; all three end the session cleanly. Any other receive error
// stops every worker and is returned.
func (s *Sniffer) Run(ctx context.Context) error {
	logger := log.GetLogger()
	logger.WithFields(map[string]interface{}{
		"workers": s.workers,
		"limit":   s.limit,
	}).Info("capture session starting")
	metrics.SessionStatus.Set(metrics.SessionStatusRunning)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.workers; i++ {
		i := i
		g.Go(func() error { return s.receiveLoop(gctx, cancel, i) })
	}
	err := g.Wait()

	st := s.Stats()
	fields := map[string]interface{}{
		"received":      st.Received,
		"decoded":       st.Decoded,
		"decode_errors": st.DecodeErrors,
		"sink_errors":   st.SinkErrors,
	}
	if err != nil {
		metrics.SessionStatus.Set(metrics.SessionStatusError)
		logger.WithFields(fields).WithError(err).Error("capture session failed")
		return err
	}
	metrics.SessionStatus.Set(metrics.SessionStatusStopped)
	logger.WithFields(fields).Info("capture session stopped")
	return nil
}

func (s *Sniffer) receiveLoop(ctx context.Context, stop context.CancelFunc, id int) error {
	for {
		n, buf, err := s.recv.Recv(ctx)
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled),
				errors.Is(err, context.DeadlineExceeded),
				errors.Is(err, core.ErrTransportClosed):
				return nil
			default:
				return fmt.Errorf("worker %d: %w", id, err)
			}
		}

		seq := s.claimed.Add(1)
		if s.limit > 0 && seq > s.limit {
			// Another worker took the last frame; this one is dropped uncounted.
			_ = buf.Release()
			return nil
		}
		s.stats.Received.Add(1)

		raw := core.RawPacket{
			Data:       buf.Bytes()[:n],
			Timestamp:  time.Now(),
			CaptureLen: uint32(n),
			OrigLen:    uint32(n),
		}
		s.Handle(raw)
		if err := buf.Release(); err != nil {
			log.GetLogger().WithError(err).Warn("failed to return receive buffer")
		}

		if s.limit > 0 && seq == s.limit {
			stop()
			return nil
		}
	}
}

// Handle decodes one frame and writes it to the sink. raw.Data is not
// retained.
func (s *Sniffer) Handle(raw core.RawPacket) core.DecodedPacket {
	pkt := Decode(s.dec, raw)
	if pkt.Err != nil {
		s.stats.DecodeErrors.Add(1)
		s.failures.report(pkt.Err)
	} else {
		s.stats.Decoded.Add(1)
	}

	if err := s.sink.Write(pkt); err != nil {
		s.stats.SinkErrors.Add(1)
		log.GetLogger().WithError(err).Warn("sink write failed")
	}
	return pkt
}

// Decode runs dec over raw and records the outcome and latency metrics.
func Decode(dec *decoder.Decoder, raw core.RawPacket) core.DecodedPacket {
	start := time.Now()
	rest, pkt, err := dec.Parse(raw.Data)
	metrics.DecodeLatencySeconds.Observe(time.Since(start).Seconds())
	metrics.DecodeTotal.WithLabelValues(Outcome(err)).Inc()

	if err != nil {
		return core.DecodedPacket{Raw: raw, Err: err}
	}
	return core.DecodedPacket{Raw: raw, Packet: pkt, Remainder: rest}
}

// Outcome classifies a decode result for the sniff_decode_total counter.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrTruncated):
		return "truncated"
	case errors.Is(err, core.ErrVersionMismatch):
		return "version_mismatch"
	case errors.Is(err, core.ErrUnsupportedProtocol):
		return "unsupported"
	case errors.Is(err, core.ErrReservedBitSet):
		return "reserved_bit"
	case errors.Is(err, core.ErrInvalidHeaderLength):
		return "invalid_header_length"
	default:
		return "error"
	}
}

func errorFields(err error) map[string]interface{} {
	var (
		trunc   *core.TruncatedError
		version *core.VersionMismatchError
		unsup   *core.UnsupportedProtocolError
	)
	switch {
	case errors.As(err, &trunc):
		return map[string]interface{}{"layer": trunc.Layer, "needed": trunc.Needed, "available": trunc.Available}
	case errors.As(err, &version):
		return map[string]interface{}{"layer": version.Layer, "expected": version.Expected, "found": version.Found}
	case errors.As(err, &unsup):
		return map[string]interface{}{"layer": unsup.Layer, "code": fmt.Sprintf("0x%04x", unsup.Code)}
	}
	return map[string]interface{}{}
}

// Stats returns session counters.
func (s *Sniffer) Stats() Stats {
	return Stats{
		Received:     s.stats.Received.Load(),
		Decoded:      s.stats.Decoded.Load(),
		DecodeErrors: s.stats.DecodeErrors.Load(),
		SinkErrors:   s.stats.SinkErrors.Load(),
	}
}
