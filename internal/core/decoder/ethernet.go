package decoder

import (
	"encoding/binary"

	"firestige.xyz/sniff/internal/core"
)

const (
	// Ethernet constants
	macLen            = 6
	etherTypeLen      = 2
	ethernetHeaderLen = 2*macLen + etherTypeLen
)

// ParseMac decodes a 6-byte hardware address.
func ParseMac(data []byte) ([]byte, core.Mac, error) {
	var mac core.Mac
	if len(data) < macLen {
		return data, mac, &core.TruncatedError{Layer: "mac", Needed: macLen, Available: len(data)}
	}
	copy(mac[:], data[:macLen])
	return data[macLen:], mac, nil
}

// ParseEtherType decodes a big-endian EtherType and rejects unknown codes.
func ParseEtherType(data []byte) ([]byte, core.EtherType, error) {
	if len(data) < etherTypeLen {
		return data, 0, &core.TruncatedError{Layer: "ethertype", Needed: etherTypeLen, Available: len(data)}
	}
	t := core.EtherType(binary.BigEndian.Uint16(data[:etherTypeLen]))
	if !t.Known() {
		return data, 0, &core.UnsupportedProtocolError{Layer: "ethernet", Code: uint16(t)}
	}
	return data[etherTypeLen:], t, nil
}

// ParseEthernet decodes an Ethernet II header: destination, source, ethertype.
// The whole 14-byte header must be present before any field is decoded.
func ParseEthernet(data []byte) ([]byte, core.Ethernet, error) {
	if len(data) < ethernetHeaderLen {
		return data, core.Ethernet{}, &core.TruncatedError{Layer: "ethernet", Needed: ethernetHeaderLen, Available: len(data)}
	}

	var eth core.Ethernet
	rest, dst, _ := ParseMac(data)
	rest, src, _ := ParseMac(rest)
	eth.Destination = dst
	eth.Source = src

	// Both addresses are decoded before the tag is judged.
	rest, etherType, err := ParseEtherType(rest)
	if err != nil {
		return data, core.Ethernet{}, err
	}
	eth.EtherType = etherType

	return rest, eth, nil
}

// decodeEthernetLink adapts ParseEthernet to the LinkDecoder signature.
func decodeEthernetLink(data []byte) ([]byte, core.DataLink, error) {
	rest, eth, err := ParseEthernet(data)
	if err != nil {
		return data, nil, err
	}
	return rest, eth, nil
}
