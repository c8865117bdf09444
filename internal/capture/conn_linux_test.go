//go:build linux

package capture

import (
	"context"
	"encoding/binary"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"firestige.xyz/sniff/internal/buffer"
	"firestige.xyz/sniff/internal/core"
	"firestige.xyz/sniff/internal/core/decoder"
)

// newPairConn returns a rawConn over one end of a datagram socketpair and
// the peer descriptor. The pair stands in for a packet socket without
// needing CAP_NET_RAW.
func newPairConn(t *testing.T) (*rawConn, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)

	c, err := newRawConn(fds[0], nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Close()
		_ = unix.Close(fds[1])
	})
	return c, fds[1]
}

func recvAsync(ctx context.Context, c *rawConn, p []byte) <-chan error {
	errc := make(chan error, 1)
	go func() {
		_, err := c.Recv(ctx, p)
		errc <- err
	}()
	return errc
}

func waitErr(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("receive did not return")
		return nil
	}
}

func TestRawConnRecv(t *testing.T) {
	c, peer := newPairConn(t)

	_, err := unix.Write(peer, testFrame)
	require.NoError(t, err)

	p := make([]byte, 1514)
	n, err := c.Recv(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, testFrame, p[:n])
}

func TestRawConnRecvWaitsForData(t *testing.T) {
	c, peer := newPairConn(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := make([]byte, 1514)
	done := make(chan int, 1)
	go func() {
		n, err := c.Recv(ctx, p)
		if assert.NoError(t, err) {
			done <- n
		}
	}()

	time.Sleep(20 * time.Millisecond)
	_, err := unix.Write(peer, []byte{1, 2, 3})
	require.NoError(t, err)

	select {
	case n := <-done:
		assert.Equal(t, []byte{1, 2, 3}, p[:n])
	case <-time.After(2 * time.Second):
		t.Fatal("receive did not complete")
	}
}

func TestRawConnRecvTruncatesToBuffer(t *testing.T) {
	c, peer := newPairConn(t)

	_, err := unix.Write(peer, testFrame)
	require.NoError(t, err)

	p := make([]byte, 6)
	n, err := c.Recv(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, testFrame[:6], p)
}

func TestRawConnRecvCancel(t *testing.T) {
	c, _ := newPairConn(t)

	ctx, cancel := context.WithCancel(context.Background())
	errc := recvAsync(ctx, c, make([]byte, 64))

	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, waitErr(t, errc), context.Canceled)
}

func TestRawConnRecvDeadline(t *testing.T) {
	c, _ := newPairConn(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Recv(ctx, make([]byte, 64))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRawConnRecvAlreadyCancelled(t *testing.T) {
	c, peer := newPairConn(t)
	_, err := unix.Write(peer, testFrame)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.Recv(ctx, make([]byte, 64))
	assert.ErrorIs(t, err, context.Canceled)

	// The frame is still queued for the next receiver.
	n, err := c.Recv(context.Background(), make([]byte, 64))
	require.NoError(t, err)
	assert.Equal(t, len(testFrame), n)
}

func TestRawConnCancelOnlyWakesItsOwnReceive(t *testing.T) {
	c, peer := newPairConn(t)

	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()

	p2 := make([]byte, 64)
	errc1 := recvAsync(ctx1, c, make([]byte, 64))
	errc2 := recvAsync(ctx2, c, p2)

	time.Sleep(20 * time.Millisecond)
	cancel1()
	assert.ErrorIs(t, waitErr(t, errc1), context.Canceled)

	select {
	case err := <-errc2:
		t.Fatalf("second receive returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	_, err := unix.Write(peer, []byte{0x42})
	require.NoError(t, err)
	assert.NoError(t, waitErr(t, errc2))
	assert.Equal(t, byte(0x42), p2[0])
}

func TestRawConnCloseWakesAllReceivers(t *testing.T) {
	c, _ := newPairConn(t)

	const receivers = 4
	var errcs []<-chan error
	for i := 0; i < receivers; i++ {
		errcs = append(errcs, recvAsync(context.Background(), c, make([]byte, 64)))
	}

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, c.Close())

	for _, errc := range errcs {
		assert.ErrorIs(t, waitErr(t, errc), core.ErrTransportClosed)
	}

	_, err := c.Recv(context.Background(), make([]byte, 64))
	assert.ErrorIs(t, err, core.ErrTransportClosed)
	_, err = c.Send(testFrame)
	assert.ErrorIs(t, err, core.ErrTransportClosed)
	assert.NoError(t, c.Close())
}

func TestRawConnSend(t *testing.T) {
	c, peer := newPairConn(t)

	n, err := c.Send(testFrame)
	require.NoError(t, err)
	assert.Equal(t, len(testFrame), n)

	p := make([]byte, 64)
	n, err = unix.Read(peer, p)
	require.NoError(t, err)
	assert.Equal(t, testFrame, p[:n])
}

func TestTransportOverSocketpair(t *testing.T) {
	c, peer := newPairConn(t)
	pool := buffer.NewPool(2, 1514)
	tr := NewTransport(c, pool, "pair0")

	frame := append([]byte{}, testFrame...)
	frame = append(frame,
		0x45, 0x00, 0x00, 0x14, 0x00, 0x00, 0x40, 0x00, 0x40, 0x11, 0x00, 0x00,
		192, 168, 0, 1, 192, 168, 0, 2,
	)
	_, err := unix.Write(peer, frame)
	require.NoError(t, err)

	n, buf, err := tr.Recv(context.Background())
	require.NoError(t, err)

	rest, pkt, err := decoder.Parse(buf.Bytes()[:n])
	require.NoError(t, err)
	require.NoError(t, buf.Release())

	assert.Empty(t, rest)
	ip := pkt.Network.(core.IPv4)
	assert.Equal(t, core.ProtocolUDP, ip.Protocol)
	assert.Equal(t, netip.MustParseAddr("192.168.0.2"), ip.Destination)
	assert.Equal(t, 2, pool.Count())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, _, err := tr.Recv(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}()
	wg.Wait()
	assert.Equal(t, 2, pool.Count(), "cancelled receive returned its buffer")

	require.NoError(t, tr.Close())
}

func TestHtons(t *testing.T) {
	var b [2]byte
	binary.NativeEndian.PutUint16(b[:], htons(0x0003))
	assert.Equal(t, [2]byte{0x00, 0x03}, b, "network order in memory")
}
