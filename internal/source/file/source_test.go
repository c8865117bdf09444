package file

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/sniff/internal/core"
	"firestige.xyz/sniff/internal/core/decoder"
)

var ipv4Frame = []byte{
	0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x08, 0x00,
	0x45, 0x00, 0x00, 0x14, 0x00, 0x00, 0x40, 0x00, 0x40, 0x06, 0xFF, 0xFF,
	10, 0, 0, 1, 10, 0, 0, 2,
}

var arpFrame = []byte{
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x08, 0x06,
	0x00, 0x01,
}

var ts = time.Unix(1700000000, 0).UTC()

func writePcap(t *testing.T, frames ...[]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	require.NoError(t, w.WriteFileHeader(65535, layers.LinkTypeEthernet))
	for i, f := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     ts.Add(time.Duration(i) * time.Second),
			CaptureLength: len(f),
			Length:        len(f),
		}
		require.NoError(t, w.WritePacket(ci, f))
	}
	return buf.Bytes()
}

func writePcapNg(t *testing.T, frames ...[]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := pcapgo.NewNgWriter(&buf, layers.LinkTypeEthernet)
	require.NoError(t, err)
	for i, f := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     ts.Add(time.Duration(i) * time.Second),
			CaptureLength: len(f),
			Length:        len(f),
		}
		require.NoError(t, w.WritePacket(ci, f))
	}
	require.NoError(t, w.Flush())
	return buf.Bytes()
}

func TestOpenAndDecode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.pcap")
	require.NoError(t, os.WriteFile(path, writePcap(t, ipv4Frame, arpFrame), 0o644))

	src, err := Open(path)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, core.LinkTypeEthernet, src.LinkType())
	assert.Equal(t, path, src.Path())

	raw, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, ipv4Frame, raw.Data)
	assert.Equal(t, uint32(len(ipv4Frame)), raw.CaptureLen)
	assert.True(t, ts.Equal(raw.Timestamp))

	rest, pkt, err := decoder.Parse(raw.Data)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, core.ProtocolTCP, pkt.Network.(core.IPv4).Protocol)

	raw, err = src.Next()
	require.NoError(t, err)
	_, _, err = decoder.Parse(raw.Data)
	assert.ErrorIs(t, err, core.ErrUnsupportedProtocol)

	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
	_, err = src.Next()
	assert.Error(t, err)
}

func TestNewSourcePcapNg(t *testing.T) {
	src, err := NewSource(bytes.NewReader(writePcapNg(t, ipv4Frame, arpFrame)))
	require.NoError(t, err)

	assert.Equal(t, core.LinkTypeEthernet, src.LinkType())
	var got [][]byte
	for {
		raw, err := src.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, raw.Data)
	}
	assert.Equal(t, [][]byte{ipv4Frame, arpFrame}, got)
}

func TestOpenErrors(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)

	_, err = Open(filepath.Join(t.TempDir(), "missing.pcap"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	garbage := filepath.Join(t.TempDir(), "garbage.pcap")
	require.NoError(t, os.WriteFile(garbage, []byte("not a capture file"), 0o644))
	_, err = Open(garbage)
	assert.Error(t, err)

	_, err = NewSource(bytes.NewReader([]byte{0x01}))
	assert.Error(t, err)
}
