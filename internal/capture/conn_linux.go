//go:build linux

package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"firestige.xyz/sniff/internal/core"
)

func openConn(opts Options) (Conn, error) {
	switch opts.Backend {
	case BackendRaw:
		return openRawConn(opts.Interface, opts.SendProtocol)
	case BackendTPacket:
		return openTPacketConn(opts)
	default:
		return nil, fmt.Errorf("unknown capture backend: %q", opts.Backend)
	}
}

// rawConn is an AF_PACKET SOCK_RAW socket in non-blocking mode. Receivers
// wait in poll(2) on the socket, on an eventfd signalled by Close and, when
// their context can be cancelled, on a per-call eventfd signalled by the
// context. Each receiver therefore wakes only for its own cancellation.
type rawConn struct {
	fd      int
	closeFd int
	dest    unix.Sockaddr // nil sends on a connected socket

	// Recv and Send hold mu shared for their whole duration; Close takes it
	// exclusively so the descriptors outlive every pending call.
	mu     sync.RWMutex
	closed atomic.Bool
}

// openRawConn opens and binds a packet socket receiving every protocol on
// ifname. Sends go to ifname with the given link-layer protocol.
func openRawConn(ifname string, sendProto uint16) (*rawConn, error) {
	iface, err := net.InterfaceByName(ifname)
	if err != nil {
		return nil, fmt.Errorf("failed to get interface %s: %w", ifname, err)
	}

	proto := htons(unix.ETH_P_ALL)
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, int(proto))
	if err != nil {
		return nil, core.NewOSError("socket", err)
	}

	sll := &unix.SockaddrLinklayer{Protocol: proto, Ifindex: iface.Index}
	if err := unix.Bind(fd, sll); err != nil {
		_ = unix.Close(fd)
		return nil, core.NewOSError("bind", err)
	}

	dest := &unix.SockaddrLinklayer{Protocol: htons(sendProto), Ifindex: iface.Index}
	c, err := newRawConn(fd, dest)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return c, nil
}

// newRawConn takes ownership of fd, which must be non-blocking.
func newRawConn(fd int, dest unix.Sockaddr) (*rawConn, error) {
	closeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, core.NewOSError("eventfd", err)
	}
	return &rawConn{fd: fd, closeFd: closeFd, dest: dest}, nil
}

func (c *rawConn) Recv(ctx context.Context, p []byte) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed.Load() {
		return 0, core.ErrTransportClosed
	}

	fds := []unix.PollFd{
		{Fd: int32(c.fd), Events: unix.POLLIN},
		{Fd: int32(c.closeFd), Events: unix.POLLIN},
	}

	if ctx.Done() != nil {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		cancelFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
		if err != nil {
			return 0, core.NewOSError("eventfd", err)
		}
		fired := make(chan struct{})
		stop := context.AfterFunc(ctx, func() {
			signal(cancelFd)
			close(fired)
		})
		defer func() {
			if !stop() {
				<-fired
			}
			_ = unix.Close(cancelFd)
		}()
		fds = append(fds, unix.PollFd{Fd: int32(cancelFd), Events: unix.POLLIN})
	}

	for {
		n, _, err := unix.Recvfrom(c.fd, p, unix.MSG_DONTWAIT)
		if err == nil {
			return n, nil
		}
		if err != unix.EAGAIN && err != unix.EINTR {
			return 0, core.NewOSError("recvfrom", err)
		}

		if err := c.wait(fds); err != nil {
			if errors.Is(err, errCancelled) {
				return 0, ctx.Err()
			}
			return 0, err
		}
	}
}

func (c *rawConn) Send(p []byte) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed.Load() {
		return 0, core.ErrTransportClosed
	}

	fds := []unix.PollFd{
		{Fd: int32(c.fd), Events: unix.POLLOUT},
		{Fd: int32(c.closeFd), Events: unix.POLLIN},
	}
	for {
		var (
			n   int
			err error
		)
		if c.dest != nil {
			n, err = unix.SendmsgN(c.fd, p, nil, c.dest, unix.MSG_DONTWAIT)
		} else {
			n, err = unix.Write(c.fd, p)
		}
		if err == nil {
			return n, nil
		}
		if err != unix.EAGAIN && err != unix.EINTR {
			return 0, core.NewOSError("sendto", err)
		}
		if err := c.wait(fds); err != nil {
			return 0, err
		}
	}
}

var errCancelled = errors.New("cancelled")

// wait polls fds until fds[0] is ready. fds[1] is the close eventfd and the
// optional fds[2] the cancellation eventfd.
func (c *rawConn) wait(fds []unix.PollFd) error {
	for i := range fds {
		fds[i].Revents = 0
	}
	for {
		_, err := unix.Poll(fds, -1)
		if err == nil {
			break
		}
		if err != unix.EINTR {
			return core.NewOSError("poll", err)
		}
	}
	if fds[1].Revents != 0 {
		return core.ErrTransportClosed
	}
	if len(fds) > 2 && fds[2].Revents != 0 {
		return errCancelled
	}
	return nil
}

// Close wakes all pending calls, waits for them to return and then closes
// the descriptors.
func (c *rawConn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	signal(c.closeFd)

	c.mu.Lock()
	defer c.mu.Unlock()

	err := unix.Close(c.fd)
	_ = unix.Close(c.closeFd)
	if err != nil {
		return core.NewOSError("close", err)
	}
	return nil
}

// signal makes an eventfd readable. The counter is never drained, so every
// poller sees it.
func signal(fd int) {
	var b [8]byte
	binary.NativeEndian.PutUint64(b[:], 1)
	_, _ = unix.Write(fd, b[:])
}

// htons converts a host-order 16-bit value to network order.
func htons(v uint16) uint16 {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return binary.NativeEndian.Uint16(b[:])
}
