// Package capture moves raw link-layer frames between the kernel and the
// decoding engine.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"firestige.xyz/sniff/internal/buffer"
	"firestige.xyz/sniff/internal/core"
	"firestige.xyz/sniff/internal/log"
	"firestige.xyz/sniff/internal/metrics"
)

// Conn is the OS socket primitive behind a Transport.
//
// Recv blocks until one frame has been copied into p, ctx is done, or the
// Conn is closed. Implementations must be safe for concurrent Recv and Send
// calls, and Close must wake every pending Recv.
type Conn interface {
	Recv(ctx context.Context, p []byte) (int, error)
	Send(p []byte) (int, error)
	Close() error
}

// Transport owns one Conn and shares one buffer pool between any number of
// concurrent receivers.
type Transport struct {
	conn   Conn
	pool   *buffer.Pool
	iface  string
	closed atomic.Bool

	mu       sync.Mutex // orders inflight.Add against Close
	inflight sync.WaitGroup
}

// Open opens the socket selected by opts.Backend on opts.Interface.
func Open(opts Options) (*Transport, error) {
	opts.applyDefaults()

	conn, err := openConn(opts)
	if err != nil {
		return nil, fmt.Errorf("open %s capture on %s: %w", opts.Backend, opts.Interface, err)
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"interface":     opts.Interface,
		"backend":       opts.Backend,
		"send_protocol": fmt.Sprintf("0x%04x", opts.SendProtocol),
		"buffer_size":   opts.Pool.Size(),
	}).Info("capture transport opened")

	return NewTransport(conn, opts.Pool, opts.Interface), nil
}

// NewTransport wraps an already open Conn. iface only labels logs and metrics.
func NewTransport(conn Conn, pool *buffer.Pool, iface string) *Transport {
	if pool == nil {
		pool = buffer.NewPool(0, buffer.DefaultSize)
	}
	return &Transport{conn: conn, pool: pool, iface: iface}
}

// Recv borrows a buffer from the pool and fills it with the next frame.
// It returns the frame length and the buffer; the caller owns the buffer and
// must Release it. On any error, cancellation included, the buffer is
// already back in the pool and nil is returned.
func (t *Transport) Recv(ctx context.Context) (int, *buffer.Buffer, error) {
	if !t.enter() {
		return 0, nil, core.ErrTransportClosed
	}
	defer t.inflight.Done()

	buf := t.pool.Get()
	n, err := t.conn.Recv(ctx, buf.Bytes())
	if err != nil {
		_ = buf.Release()
		t.recordPool()

		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			metrics.CaptureCancelledTotal.WithLabelValues(t.iface).Inc()
		case errors.Is(err, core.ErrTransportClosed):
		default:
			metrics.CaptureErrorsTotal.WithLabelValues(t.iface, "recv").Inc()
			log.GetLogger().WithField("interface", t.iface).WithError(err).Debug("receive failed")
		}
		return 0, nil, err
	}

	metrics.CaptureFramesTotal.WithLabelValues(t.iface).Inc()
	metrics.CaptureBytesTotal.WithLabelValues(t.iface).Add(float64(n))
	t.recordPool()
	return n, buf, nil
}

// Send writes one frame to the wire and returns the number of bytes written.
// It does not take ownership of p.
func (t *Transport) Send(p []byte) (int, error) {
	if t.closed.Load() {
		return 0, core.ErrTransportClosed
	}

	n, err := t.conn.Send(p)
	if err != nil {
		metrics.CaptureErrorsTotal.WithLabelValues(t.iface, "send").Inc()
		log.GetLogger().WithField("interface", t.iface).WithError(err).Debug("send failed")
		return n, err
	}
	metrics.SendFramesTotal.WithLabelValues(t.iface).Inc()
	return n, nil
}

// Close wakes every pending Recv, waits for them to hand their buffers back,
// closes the socket and drops the idle buffers. Close is idempotent.
// Buffers a completed Recv handed to its caller are not tracked; releasing
// one after Close puts it back in the pool.
func (t *Transport) Close() error {
	t.mu.Lock()
	if !t.closed.CompareAndSwap(false, true) {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	err := t.conn.Close()
	t.inflight.Wait()
	dropped := t.pool.Drain()
	t.recordPool()

	log.GetLogger().WithFields(map[string]interface{}{
		"interface":       t.iface,
		"dropped_buffers": dropped,
	}).Info("capture transport closed")
	return err
}

// enter registers one in-flight Recv unless the transport is closed.
func (t *Transport) enter() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.Load() {
		return false
	}
	t.inflight.Add(1)
	return true
}

// Pool returns the buffer pool receives borrow from.
func (t *Transport) Pool() *buffer.Pool { return t.pool }

// Interface returns the interface name the transport was opened on.
func (t *Transport) Interface() string { return t.iface }

func (t *Transport) recordPool() {
	metrics.PoolIdleBuffers.Set(float64(t.pool.Count()))
	metrics.PoolAllocatedBuffers.Set(float64(t.pool.Allocated()))
}
