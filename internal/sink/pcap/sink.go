// Package pcap writes captured frames to a libpcap savefile.
package pcap

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/sniff/internal/core"
)

type Sink struct {
	mu      sync.Mutex
	w       *pcapgo.Writer
	snaplen uint32
	closer  io.Closer
	count   uint64
}

// NewSink writes a pcap file header to w and returns a sink appending
// frames to it. Frames longer than snaplen are truncated in the file.
func NewSink(w io.Writer, snaplen uint32, linkType core.LinkType) (*Sink, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snaplen, layers.LinkType(linkType)); err != nil {
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}
	return &Sink{w: pw, snaplen: snaplen}, nil
}

// Create truncates path and opens a sink on it. Close closes the file.
func Create(path string, snaplen uint32, linkType core.LinkType) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	s, err := NewSink(f, snaplen, linkType)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// Write records the raw frame, whether or not it decoded.
func (s *Sink) Write(pkt core.DecodedPacket) error {
	data := pkt.Raw.Data
	if int(pkt.Raw.CaptureLen) < len(data) {
		data = data[:pkt.Raw.CaptureLen]
	}
	origLen := max(int(pkt.Raw.OrigLen), len(data))
	if s.snaplen > 0 && len(data) > int(s.snaplen) {
		data = data[:s.snaplen]
	}
	ci := gopacket.CaptureInfo{
		Timestamp:      pkt.Raw.Timestamp,
		CaptureLength:  len(data),
		Length:         origLen,
		InterfaceIndex: pkt.Raw.InterfaceIndex,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.WritePacket(ci, data); err != nil {
		return fmt.Errorf("failed to write pcap record: %w", err)
	}
	s.count++
	return nil
}

// Count returns the number of frames written.
func (s *Sink) Count() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}
