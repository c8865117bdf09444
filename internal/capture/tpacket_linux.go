//go:build linux

package capture

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/gopacket/afpacket"

	"firestige.xyz/sniff/internal/core"
	"firestige.xyz/sniff/internal/log"
)

// tpacketConn reads from a TPACKET_V3 ring through gopacket/afpacket.
// The ring has no wake-up descriptor, so receivers poll with a bounded
// timeout and re-check cancellation between polls.
type tpacketConn struct {
	tp *afpacket.TPacket

	// readMu serializes ring reads: a zero-copy frame is only valid until
	// the next read.
	readMu sync.Mutex
	// mu is held shared by every call and exclusively by Close.
	mu     sync.RWMutex
	closed atomic.Bool
}

func openTPacketConn(opts Options) (*tpacketConn, error) {
	iface, err := net.InterfaceByName(opts.Interface)
	if err != nil {
		return nil, fmt.Errorf("failed to get interface %s: %w", opts.Interface, err)
	}

	ring, err := computeRing(opts.TPacket.BufferSizeMB, opts.Pool.Size(), os.Getpagesize())
	if err != nil {
		return nil, fmt.Errorf("failed to compute ring geometry: %w", err)
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"interface":    iface.Name,
		"index":        iface.Index,
		"mtu":          iface.MTU,
		"frame_size":   ring.FrameSize,
		"block_size":   ring.BlockSize,
		"num_blocks":   ring.NumBlocks,
		"poll_timeout": opts.TPacket.PollTimeout,
	}).Info("tpacket configuration")

	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(iface.Name),
		afpacket.OptFrameSize(ring.FrameSize),
		afpacket.OptBlockSize(ring.BlockSize),
		afpacket.OptNumBlocks(ring.NumBlocks),
		afpacket.OptPollTimeout(opts.TPacket.PollTimeout),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create TPacket: %w", err)
	}
	return &tpacketConn{tp: tp}, nil
}

func (c *tpacketConn) Recv(ctx context.Context, p []byte) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for {
		if c.closed.Load() {
			return 0, core.ErrTransportClosed
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		c.readMu.Lock()
		data, _, err := c.tp.ZeroCopyReadPacketData()
		n := copy(p, data)
		c.readMu.Unlock()

		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, afpacket.ErrTimeout), errors.Is(err, afpacket.ErrPoll):
			continue
		default:
			return 0, core.NewOSError("tpacket read", err)
		}
	}
}

func (c *tpacketConn) Send(p []byte) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed.Load() {
		return 0, core.ErrTransportClosed
	}

	if err := c.tp.WritePacketData(p); err != nil {
		return 0, core.NewOSError("tpacket write", err)
	}
	return len(p), nil
}

// Close waits up to one poll timeout for pending receives, then releases
// the ring.
func (c *tpacketConn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tp.Close()
	return nil
}
