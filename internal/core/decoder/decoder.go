// Package decoder implements layered packet decoding with protocol-tag dispatch.
//
// Every decode function has the shape
//
//	func(data []byte) (rest []byte, value T, err error)
//
// It consumes a prefix of data and returns the unconsumed suffix. On error the
// value is the zero value and rest is the input unchanged. Decoders never
// mutate or retain data; decoded values copy what they need.
package decoder

import (
	"firestige.xyz/sniff/internal/core"
)

// LinkDecoder decodes one data-link header.
type LinkDecoder func(data []byte) ([]byte, core.DataLink, error)

// NetworkDecoder decodes one network-layer header.
type NetworkDecoder func(data []byte) ([]byte, core.Network, error)

// Decoder dispatches between layers by protocol tag: the link type selects
// the data-link decoder and the data-link's next-layer tag selects the network
// decoder. Both tables are plain maps; a new protocol is one Register call.
//
// A Decoder is safe for concurrent Parse calls once registration is done.
type Decoder struct {
	linkType core.LinkType
	links    map[core.LinkType]LinkDecoder
	networks map[core.EtherType]NetworkDecoder
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLinkType sets the link type of the frames to decode. Default Ethernet.
func WithLinkType(t core.LinkType) Option {
	return func(d *Decoder) { d.linkType = t }
}

// New creates a Decoder with the built-in tables: Ethernet at layer 2 and
// IPv4 at layer 3.
func New(opts ...Option) *Decoder {
	d := &Decoder{
		linkType: core.LinkTypeEthernet,
		links: map[core.LinkType]LinkDecoder{
			core.LinkTypeEthernet: decodeEthernetLink,
		},
		networks: map[core.EtherType]NetworkDecoder{
			core.EtherTypeIPv4: decodeIPv4Network,
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RegisterLink maps a link type to its decoder, replacing any previous entry.
func (d *Decoder) RegisterLink(t core.LinkType, fn LinkDecoder) {
	d.links[t] = fn
}

// Register maps a network-layer tag to its decoder, replacing any previous entry.
func (d *Decoder) Register(t core.EtherType, fn NetworkDecoder) {
	d.networks[t] = fn
}

// LinkType returns the link type this decoder starts from.
func (d *Decoder) LinkType() core.LinkType {
	return d.linkType
}

// Parse decodes the data-link and network layers of one frame.
//
// Failure at any layer aborts the call: the returned Packet is always either
// fully populated or zero.
func (d *Decoder) Parse(data []byte) ([]byte, core.Packet, error) {
	decodeLink, ok := d.links[d.linkType]
	if !ok {
		return data, core.Packet{}, &core.UnsupportedProtocolError{Layer: "datalink", Code: uint16(d.linkType)}
	}
	rest, link, err := decodeLink(data)
	if err != nil {
		return data, core.Packet{}, err
	}

	tag := link.NextLayer()
	decodeNetwork, ok := d.networks[tag]
	if !ok {
		return data, core.Packet{}, &core.UnsupportedProtocolError{Layer: link.LayerName(), Code: uint16(tag)}
	}
	rest, network, err := decodeNetwork(rest)
	if err != nil {
		return data, core.Packet{}, err
	}

	return rest, core.Packet{DataLink: link, Network: network}, nil
}

var defaultDecoder = New()

// Parse decodes an Ethernet frame with the built-in tables.
func Parse(data []byte) ([]byte, core.Packet, error) {
	return defaultDecoder.Parse(data)
}
