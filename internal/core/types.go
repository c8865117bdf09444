// Package core defines core types with zero external dependencies.
package core

import (
	"bytes"
	"fmt"
	"net/netip"
)

// LinkType identifies the data-link framing of a capture (DLT numbering).
type LinkType uint16

const (
	LinkTypeEthernet LinkType = 1 // DLT_EN10MB
)

func (t LinkType) String() string {
	switch t {
	case LinkTypeEthernet:
		return "Ethernet"
	default:
		return fmt.Sprintf("LinkType(%d)", uint16(t))
	}
}

// Mac is a 48-bit hardware address.
type Mac [6]byte

func (m Mac) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// Compare orders addresses bytewise. It returns -1, 0 or +1.
func (m Mac) Compare(o Mac) int {
	return bytes.Compare(m[:], o[:])
}

func (m Mac) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// EtherType is the 16-bit protocol tag of an Ethernet II header.
// Only the constants below are decodable; any other code is rejected.
type EtherType uint16

const (
	EtherTypeIPv4 EtherType = 0x0800
	EtherTypeARP  EtherType = 0x0806
	EtherTypeIPv6 EtherType = 0x86DD
)

// Known reports whether t is one of the decodable EtherType codes.
func (t EtherType) Known() bool {
	switch t {
	case EtherTypeIPv4, EtherTypeARP, EtherTypeIPv6:
		return true
	}
	return false
}

func (t EtherType) String() string {
	switch t {
	case EtherTypeIPv4:
		return "IPv4"
	case EtherTypeARP:
		return "ARP"
	case EtherTypeIPv6:
		return "IPv6"
	default:
		return fmt.Sprintf("EtherType(0x%04x)", uint16(t))
	}
}

func (t EtherType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// DataLink is the closed set of decoded layer-2 headers.
type DataLink interface {
	// LayerName is used in error context, e.g. "ethernet".
	LayerName() string
	// NextLayer is the tag that selects the network-layer decoder.
	NextLayer() EtherType

	isDataLink()
}

// Ethernet is a decoded Ethernet II header (14 bytes on the wire).
type Ethernet struct {
	Destination Mac       `json:"destination" yaml:"destination"`
	Source      Mac       `json:"source" yaml:"source"`
	EtherType   EtherType `json:"ethertype" yaml:"ethertype"`
}

func (Ethernet) LayerName() string      { return "ethernet" }
func (e Ethernet) NextLayer() EtherType { return e.EtherType }
func (Ethernet) isDataLink()            {}

// Network is the closed set of decoded layer-3 headers.
type Network interface {
	LayerName() string

	isNetwork()
}

// Flags holds the IPv4 fragmentation flags. The reserved bit is never stored:
// a set reserved bit fails the decode.
type Flags struct {
	DontFragment  bool `json:"dont_fragment" yaml:"dont_fragment"`
	MoreFragments bool `json:"more_fragments" yaml:"more_fragments"`
}

// IPv4 is a decoded IPv4 fixed header. Options are not decoded.
type IPv4 struct {
	Version        uint8      `json:"version" yaml:"version"`
	IHL            uint8      `json:"ihl" yaml:"ihl"`
	DSCP           uint8      `json:"dscp" yaml:"dscp"`
	ECN            uint8      `json:"ecn" yaml:"ecn"`
	TotalLength    uint16     `json:"total_length" yaml:"total_length"`
	Identification uint16     `json:"identification" yaml:"identification"`
	Flags          Flags      `json:"flags" yaml:"flags"`
	FragmentOffset uint16     `json:"fragment_offset" yaml:"fragment_offset"`
	TTL            uint8      `json:"ttl" yaml:"ttl"`
	Protocol       Protocol   `json:"protocol" yaml:"protocol"`
	Checksum       uint16     `json:"checksum" yaml:"checksum"` // captured, not validated
	Source         netip.Addr `json:"source" yaml:"source"`
	Destination    netip.Addr `json:"destination" yaml:"destination"`
}

func (IPv4) LayerName() string { return "ipv4" }
func (IPv4) isNetwork()        {}

// HeaderLength returns the header size in bytes announced by IHL,
// including any options the decoder left in the remainder.
func (ip IPv4) HeaderLength() int {
	return int(ip.IHL) * 4
}

// IPv6 marks an IPv6 network layer. Its header is not decoded.
type IPv6 struct{}

func (IPv6) LayerName() string { return "ipv6" }
func (IPv6) isNetwork()        {}

// Packet is the root decoded value. A layer is non-nil only if it was
// fully decoded; Packet holds no reference to the source bytes.
type Packet struct {
	DataLink DataLink
	Network  Network
}

func (p Packet) String() string {
	var b bytes.Buffer
	switch dl := p.DataLink.(type) {
	case Ethernet:
		fmt.Fprintf(&b, "%s > %s %s", dl.Source, dl.Destination, dl.EtherType)
	case nil:
		b.WriteString("<no datalink>")
	}
	switch nl := p.Network.(type) {
	case IPv4:
		fmt.Fprintf(&b, " | %s > %s %s ttl=%d len=%d id=%d", nl.Source, nl.Destination,
			nl.Protocol, nl.TTL, nl.TotalLength, nl.Identification)
		if nl.Flags.DontFragment {
			b.WriteString(" DF")
		}
		if nl.Flags.MoreFragments {
			b.WriteString(" MF")
		}
	case IPv6:
		b.WriteString(" | ipv6")
	}
	return b.String()
}
