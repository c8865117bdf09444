package console

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"firestige.xyz/sniff/internal/core"
)

// Format selects how frames are rendered.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Record is the structured form of one frame.
type Record struct {
	Time      time.Time     `json:"time" yaml:"time"`
	Length    uint32        `json:"length" yaml:"length"`
	DataLink  core.DataLink `json:"datalink,omitempty" yaml:"datalink,omitempty"`
	Network   core.Network  `json:"network,omitempty" yaml:"network,omitempty"`
	Remaining int           `json:"remaining" yaml:"remaining"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
}

func NewRecord(pkt core.DecodedPacket) Record {
	r := Record{
		Time:      pkt.Raw.Timestamp,
		Length:    pkt.Raw.CaptureLen,
		DataLink:  pkt.Packet.DataLink,
		Network:   pkt.Packet.Network,
		Remaining: len(pkt.Remainder),
	}
	if pkt.Err != nil {
		r.Error = pkt.Err.Error()
	}
	return r
}

// Sink prints frames to a writer.
type Sink struct {
	mu     sync.Mutex
	w      io.Writer
	format Format
	json   *json.Encoder
	yaml   *yaml.Encoder
}

func NewSink(w io.Writer, format Format) *Sink {
	s := &Sink{w: w, format: format}
	switch format {
	case FormatJSON:
		s.json = json.NewEncoder(w)
	case FormatYAML:
		s.yaml = yaml.NewEncoder(w)
		s.yaml.SetIndent(2)
	}
	return s
}

func (s *Sink) Write(pkt core.DecodedPacket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.format {
	case FormatJSON:
		return s.json.Encode(NewRecord(pkt))
	case FormatYAML:
		return s.yaml.Encode(NewRecord(pkt))
	default:
		_, err := io.WriteString(s.w, FormatLine(pkt)+"\n")
		return err
	}
}

// FormatLine renders pkt as a single line of text.
func FormatLine(pkt core.DecodedPacket) string {
	var b strings.Builder
	if !pkt.Raw.Timestamp.IsZero() {
		b.WriteString(pkt.Raw.Timestamp.Format("15:04:05.000000 "))
	}
	fmt.Fprintf(&b, "len=%d ", pkt.Raw.CaptureLen)
	if pkt.Err != nil {
		fmt.Fprintf(&b, "decode error: %v", pkt.Err)
		return b.String()
	}
	b.WriteString(pkt.Packet.String())
	if len(pkt.Remainder) > 0 {
		fmt.Fprintf(&b, " payload=%d", len(pkt.Remainder))
	}
	return b.String()
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.yaml != nil {
		return s.yaml.Close()
	}
	return nil
}
