package pcap

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/sniff/internal/core"
)

func rawPacket(data []byte, ts time.Time) core.DecodedPacket {
	return core.DecodedPacket{Raw: core.RawPacket{
		Data:       data,
		Timestamp:  ts,
		CaptureLen: uint32(len(data)),
		OrigLen:    uint32(len(data)),
	}}
}

func TestSinkWritesReadableFile(t *testing.T) {
	var out bytes.Buffer
	s, err := NewSink(&out, 1514, core.LinkTypeEthernet)
	require.NoError(t, err)

	ts := time.Unix(1700000000, 250000000).UTC()
	frames := [][]byte{
		{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x08, 0x06},
		{0x01, 0x02, 0x03},
	}
	for i, f := range frames {
		require.NoError(t, s.Write(rawPacket(f, ts.Add(time.Duration(i)*time.Millisecond))))
	}
	assert.Equal(t, uint64(2), s.Count())
	require.NoError(t, s.Close())

	r, err := pcapgo.NewReader(&out)
	require.NoError(t, err)
	assert.Equal(t, layers.LinkTypeEthernet, r.LinkType())
	assert.Equal(t, uint32(1514), r.Snaplen())

	for i, want := range frames {
		data, ci, err := r.ReadPacketData()
		require.NoError(t, err)
		assert.Equal(t, want, data)
		assert.Equal(t, len(want), ci.CaptureLength)
		assert.True(t, ts.Add(time.Duration(i)*time.Millisecond).Equal(ci.Timestamp))
	}
	_, _, err = r.ReadPacketData()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSinkTruncatesToSnaplen(t *testing.T) {
	var out bytes.Buffer
	s, err := NewSink(&out, 8, core.LinkTypeEthernet)
	require.NoError(t, err)

	pkt := rawPacket(bytes.Repeat([]byte{0x5A}, 64), time.Now())
	pkt.Raw.OrigLen = 100
	require.NoError(t, s.Write(pkt))

	r, err := pcapgo.NewReader(&out)
	require.NoError(t, err)
	data, ci, err := r.ReadPacketData()
	require.NoError(t, err)
	assert.Len(t, data, 8)
	assert.Equal(t, 100, ci.Length)
}

func TestSinkHonoursCaptureLen(t *testing.T) {
	var out bytes.Buffer
	s, err := NewSink(&out, 1514, core.LinkTypeEthernet)
	require.NoError(t, err)

	buf := make([]byte, 1514)
	copy(buf, []byte{1, 2, 3, 4})
	pkt := rawPacket(buf, time.Now())
	pkt.Raw.CaptureLen = 4
	pkt.Raw.OrigLen = 0
	require.NoError(t, s.Write(pkt))

	r, err := pcapgo.NewReader(&out)
	require.NoError(t, err)
	data, ci, err := r.ReadPacketData()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)
	assert.Equal(t, 4, ci.Length)
}

func TestCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pcap")
	s, err := Create(path, 256, core.LinkTypeEthernet)
	require.NoError(t, err)
	require.NoError(t, s.Write(rawPacket([]byte{0xFF, 0xFE}, time.Now())))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(24+16+2), info.Size())

	_, err = Create(filepath.Join(t.TempDir(), "missing", "out.pcap"), 256, core.LinkTypeEthernet)
	assert.Error(t, err)
}
