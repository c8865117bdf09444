package decoder

import (
	"math/rand"
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/sniff/internal/core"
)

func TestParseEthernetBasic(t *testing.T) {
	data := []byte{
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55, // Dst MAC
		0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, // Src MAC
		0x08, 0x00, // EtherType: IPv4
		0x45, 0x00, // Payload (start of IP header)
	}

	rest, eth, err := ParseEthernet(data)
	require.NoError(t, err)

	assert.Equal(t, core.Mac{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}, eth.Destination)
	assert.Equal(t, core.Mac{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}, eth.Source)
	assert.Equal(t, core.EtherTypeIPv4, eth.EtherType)
	assert.Equal(t, []byte{0x45, 0x00}, rest)
}

func TestParseEthernetKnownEtherTypes(t *testing.T) {
	tests := []struct {
		name string
		code [2]byte
		want core.EtherType
	}{
		{"ipv4", [2]byte{0x08, 0x00}, core.EtherTypeIPv4},
		{"arp", [2]byte{0x08, 0x06}, core.EtherTypeARP},
		{"ipv6", [2]byte{0x86, 0xDD}, core.EtherTypeIPv6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]byte, ethernetHeaderLen)
			data[12], data[13] = tt.code[0], tt.code[1]

			rest, eth, err := ParseEthernet(data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, eth.EtherType)
			assert.Empty(t, rest)
		})
	}
}

func TestParseEthernetUnsupportedEtherType(t *testing.T) {
	data := make([]byte, ethernetHeaderLen+4)
	data[12], data[13] = 0x88, 0xCC // LLDP

	rest, eth, err := ParseEthernet(data)
	require.Error(t, err)

	var unsupported *core.UnsupportedProtocolError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "ethernet", unsupported.Layer)
	assert.Equal(t, uint16(0x88CC), unsupported.Code)
	assert.ErrorIs(t, err, core.ErrUnsupportedProtocol)
	assert.ErrorIs(t, err, core.ErrProtocolNotSupported)

	assert.Equal(t, core.Ethernet{}, eth)
	assert.Len(t, rest, len(data))
}

func TestParseEthernetTruncated(t *testing.T) {
	full := make([]byte, ethernetHeaderLen)
	full[12], full[13] = 0x08, 0x00

	for k := 0; k < ethernetHeaderLen; k++ {
		_, _, err := ParseEthernet(full[:k])

		var truncated *core.TruncatedError
		require.ErrorAs(t, err, &truncated, "k=%d", k)
		assert.Equal(t, ethernetHeaderLen, truncated.Needed)
		assert.Equal(t, k, truncated.Available)
		assert.ErrorIs(t, err, core.ErrTruncated)
	}
}

func TestParseMacRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		var want core.Mac
		rng.Read(want[:])

		rest, got, err := ParseMac(append(want[:], 0x01))
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, []byte{0x01}, rest)
	}
}

func TestParseMacTooShort(t *testing.T) {
	_, _, err := ParseMac([]byte{1, 2, 3})

	var truncated *core.TruncatedError
	require.ErrorAs(t, err, &truncated)
	assert.Equal(t, 6, truncated.Needed)
	assert.Equal(t, 3, truncated.Available)
}

func TestParseEtherTypeTooShort(t *testing.T) {
	_, _, err := ParseEtherType([]byte{0x08})
	assert.ErrorIs(t, err, core.ErrTruncated)
}

// gopacket serializes the reference frames; its Ethernet layer pads to the
// 60-byte minimum frame size.
func TestParseEthernetMatchesGopacket(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	types := []layers.EthernetType{
		layers.EthernetTypeIPv4,
		layers.EthernetTypeARP,
		layers.EthernetTypeIPv6,
	}

	for i := 0; i < 50; i++ {
		src := make(net.HardwareAddr, 6)
		dst := make(net.HardwareAddr, 6)
		rng.Read(src)
		rng.Read(dst)
		ethType := types[i%len(types)]

		buf := gopacket.NewSerializeBuffer()
		err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{},
			&layers.Ethernet{SrcMAC: src, DstMAC: dst, EthernetType: ethType},
			gopacket.Payload([]byte{0xde, 0xad, 0xbe, 0xef}),
		)
		require.NoError(t, err)
		frame := buf.Bytes()

		rest, eth, err := ParseEthernet(frame)
		require.NoError(t, err)
		assert.Equal(t, []byte(dst), eth.Destination[:])
		assert.Equal(t, []byte(src), eth.Source[:])
		assert.Equal(t, uint16(ethType), uint16(eth.EtherType))
		assert.Len(t, rest, len(frame)-ethernetHeaderLen)
		assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, rest[:4])
	}
}

func TestParseEthernetDoesNotMutateInput(t *testing.T) {
	data := []byte{
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55,
		0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF,
		0x08, 0x00,
	}
	orig := append([]byte(nil), data...)

	_, eth, err := ParseEthernet(data)
	require.NoError(t, err)
	assert.Equal(t, orig, data)

	data[0] = 0xFF
	assert.Equal(t, byte(0x00), eth.Destination[0], "decoded value must not alias the input")
}

func BenchmarkParseEthernet(b *testing.B) {
	data := []byte{
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55,
		0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF,
		0x08, 0x00,
		0x45, 0x00,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, err := ParseEthernet(data)
		if err != nil {
			b.Fatal(err)
		}
	}
}
