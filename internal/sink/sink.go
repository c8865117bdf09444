// Package sink delivers decoded frames to their consumers.
package sink

import (
	"errors"
	"fmt"
	"io"
	"os"

	"firestige.xyz/sniff/internal/config"
	"firestige.xyz/sniff/internal/core"
	"firestige.xyz/sniff/internal/sink/console"
	"firestige.xyz/sniff/internal/sink/kafka"
	"firestige.xyz/sniff/internal/sink/pcap"
)

// Sink consumes decoded frames. Write must be safe for concurrent use, and
// must not retain pkt.Raw.Data or pkt.Remainder after it returns: both
// alias a pooled receive buffer.
type Sink interface {
	Write(pkt core.DecodedPacket) error
	Close() error
}

type tee []Sink

// Tee writes every frame to each sink in order. Errors from individual sinks
// are joined; a failing sink does not stop the others.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

func (t tee) Write(pkt core.DecodedPacket) error {
	var errs []error
	for _, s := range t {
		if err := s.Write(pkt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t tee) Close() error {
	var errs []error
	for _, s := range t {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every frame.
var Discard Sink = discard{}

type discard struct{}

func (discard) Write(core.DecodedPacket) error { return nil }
func (discard) Close() error                   { return nil }

// New builds the sink chain described by cfg: a console sink on w (stdout
// when nil), plus a pcap file when cfg.PcapFile is set and a Kafka topic
// when cfg.Kafka is enabled.
func New(cfg config.OutputConfig, w io.Writer, snaplen uint32, linkType core.LinkType) (Sink, error) {
	if w == nil {
		w = os.Stdout
	}

	format, err := console.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	sinks := []Sink{console.NewSink(w, format)}

	if cfg.PcapFile != "" {
		p, err := pcap.Create(cfg.PcapFile, snaplen, linkType)
		if err != nil {
			return nil, fmt.Errorf("failed to open pcap output: %w", err)
		}
		sinks = append(sinks, p)
	}

	if cfg.Kafka.Enabled {
		k, err := kafka.New(cfg.Kafka)
		if err != nil {
			_ = Tee(sinks...).Close()
			return nil, fmt.Errorf("failed to create kafka output: %w", err)
		}
		sinks = append(sinks, k)
	}

	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return Tee(sinks...), nil
}
