// Package file reads frames from pcap and pcapng savefiles.
package file

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/sniff/internal/core"
)

var ngMagic = []byte{0x0A, 0x0D, 0x0D, 0x0A}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
}

// Source yields the frames of one savefile in order.
type Source struct {
	path     string
	f        *os.File
	r        packetReader
	linkType core.LinkType
}

// Open opens path and reads its file header. The format is detected from the
// leading magic number.
func Open(path string) (*Source, error) {
	if path == "" {
		return nil, fmt.Errorf("file path is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap file %s: %w", path, err)
	}

	s, err := NewSource(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to read pcap file %s: %w", path, err)
	}
	s.path = path
	s.f = f
	return s, nil
}

// NewSource reads a savefile from r. The caller keeps ownership of r.
func NewSource(r io.Reader) (*Source, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(ngMagic))
	if err != nil {
		return nil, fmt.Errorf("short file header: %w", err)
	}

	if bytes.Equal(magic, ngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, err
		}
		return &Source{r: ng, linkType: core.LinkType(ng.LinkType())}, nil
	}

	pr, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, err
	}
	return &Source{r: pr, linkType: core.LinkType(pr.LinkType())}, nil
}

// Next returns the next frame. It returns io.EOF after the last one.
// The returned Data is owned by the caller.
func (s *Source) Next() (core.RawPacket, error) {
	if s.r == nil {
		return core.RawPacket{}, fmt.Errorf("file source closed")
	}

	data, ci, err := s.r.ReadPacketData()
	if err != nil {
		if err == io.EOF {
			return core.RawPacket{}, io.EOF
		}
		return core.RawPacket{}, fmt.Errorf("failed to read packet: %w", err)
	}

	return core.RawPacket{
		Data:           data,
		Timestamp:      ci.Timestamp,
		CaptureLen:     uint32(ci.CaptureLength),
		OrigLen:        uint32(ci.Length),
		InterfaceIndex: ci.InterfaceIndex,
	}, nil
}

// LinkType returns the link type announced by the file header.
func (s *Source) LinkType() core.LinkType {
	return s.linkType
}

func (s *Source) Path() string { return s.path }

func (s *Source) Close() error {
	s.r = nil
	if s.f != nil {
		err := s.f.Close()
		s.f = nil
		return err
	}
	return nil
}
