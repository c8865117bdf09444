package capture

import (
	"time"

	"firestige.xyz/sniff/internal/buffer"
	"firestige.xyz/sniff/internal/config"
)

// Backend selects the socket implementation behind a Transport.
type Backend string

const (
	// BackendRaw is a plain AF_PACKET socket: one recvfrom per frame.
	BackendRaw Backend = "raw"
	// BackendTPacket is an AF_PACKET socket with a TPACKET_V3 mmap ring.
	BackendTPacket Backend = "tpacket"
)

// ParseBackend maps a backend name or alias to a Backend. It accepts
// exactly the names configuration validation accepts.
func ParseBackend(s string) (Backend, error) {
	name, err := config.CanonicalBackend(s)
	if err != nil {
		return "", err
	}
	return Backend(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Backend) UnmarshalText(text []byte) error {
	v, err := ParseBackend(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// ethPAll is ETH_P_ALL in host order.
const ethPAll = 0x0003

// Options configures Open.
type Options struct {
	Interface string
	Backend   Backend

	// SendProtocol is the link-layer protocol (host order) placed in the
	// destination address of every send. Zero selects ETH_P_ALL.
	SendProtocol uint16

	// Pool lends receive buffers. Nil creates an on-demand pool of
	// buffer.DefaultSize buffers.
	Pool *buffer.Pool

	TPacket TPacketOptions
}

// TPacketOptions sizes the TPACKET_V3 ring.
type TPacketOptions struct {
	BufferSizeMB int
	// PollTimeout bounds how long a tpacket receive waits before it re-checks
	// for cancellation.
	PollTimeout time.Duration
}

// DefaultOptions returns options for a raw socket on iface.
func DefaultOptions(iface string) Options {
	return Options{
		Interface:    iface,
		Backend:      BackendRaw,
		SendProtocol: ethPAll,
		TPacket: TPacketOptions{
			BufferSizeMB: 8,
			PollTimeout:  100 * time.Millisecond,
		},
	}
}

func (o *Options) applyDefaults() {
	if o.Backend == "" {
		o.Backend = BackendRaw
	}
	if o.SendProtocol == 0 {
		o.SendProtocol = ethPAll
	}
	if o.Pool == nil {
		o.Pool = buffer.NewPool(0, buffer.DefaultSize)
	}
	if o.TPacket.BufferSizeMB <= 0 {
		o.TPacket.BufferSizeMB = 8
	}
	if o.TPacket.PollTimeout <= 0 {
		o.TPacket.PollTimeout = 100 * time.Millisecond
	}
}
