package decoder

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"firestige.xyz/sniff/internal/core"
)

const (
	ipv4HeaderMinLen = 20
	ipv4MinIHL       = 5

	flagReserved       = 0x8000
	flagDontFragment   = 0x4000
	flagMoreFragments  = 0x2000
	fragmentOffsetMask = 0x1FFF
)

// ParseIPv4 decodes the fixed 20-byte IPv4 header.
//
// Options are not skipped: the returned remainder starts right after byte 19
// whatever the IHL says. Use IPv4.HeaderLength to locate the payload.
func ParseIPv4(data []byte) ([]byte, core.IPv4, error) {
	if len(data) < ipv4HeaderMinLen {
		return data, core.IPv4{}, &core.TruncatedError{Layer: "ipv4", Needed: ipv4HeaderMinLen, Available: len(data)}
	}

	var ip core.IPv4

	// Version (high nibble) and IHL (low nibble) of byte 0
	ip.Version = data[0] >> 4
	if ip.Version != 4 {
		return data, core.IPv4{}, &core.VersionMismatchError{Layer: "ipv4", Expected: 4, Found: ip.Version}
	}
	ip.IHL = data[0] & 0x0F

	// DSCP (6 bits) and ECN (2 bits) of byte 1
	ip.DSCP = data[1] >> 2
	ip.ECN = data[1] & 0x03

	ip.TotalLength = binary.BigEndian.Uint16(data[2:4])
	ip.Identification = binary.BigEndian.Uint16(data[4:6])

	// Flags (3 bits) and Fragment Offset (13 bits)
	flagsOffset := binary.BigEndian.Uint16(data[6:8])
	if flagsOffset&flagReserved != 0 {
		return data, core.IPv4{}, core.ErrReservedBitSet
	}
	// Checked after the reserved bit so that one wins when both are bad.
	if ip.IHL < ipv4MinIHL {
		return data, core.IPv4{}, fmt.Errorf("%w: ihl %d", core.ErrInvalidHeaderLength, ip.IHL)
	}
	ip.Flags = core.Flags{
		DontFragment:  flagsOffset&flagDontFragment != 0,
		MoreFragments: flagsOffset&flagMoreFragments != 0,
	}
	ip.FragmentOffset = flagsOffset & fragmentOffsetMask

	ip.TTL = data[8]

	proto := core.Protocol(data[9])
	if !proto.Known() {
		return data, core.IPv4{}, &core.UnsupportedProtocolError{Layer: "ipv4", Code: uint16(proto)}
	}
	ip.Protocol = proto

	ip.Checksum = binary.BigEndian.Uint16(data[10:12])

	ip.Source = netip.AddrFrom4([4]byte(data[12:16]))
	ip.Destination = netip.AddrFrom4([4]byte(data[16:20]))

	return data[ipv4HeaderMinLen:], ip, nil
}

// decodeIPv4Network adapts ParseIPv4 to the NetworkDecoder signature.
func decodeIPv4Network(data []byte) ([]byte, core.Network, error) {
	rest, ip, err := ParseIPv4(data)
	if err != nil {
		return data, nil, err
	}
	return rest, ip, nil
}
