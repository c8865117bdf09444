// Package kafka publishes decoded frames to a Kafka topic as JSON records.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/segmentio/kafka-go"

	"firestige.xyz/sniff/internal/config"
	"firestige.xyz/sniff/internal/core"
	"firestige.xyz/sniff/internal/log"
	"firestige.xyz/sniff/internal/sink/console"
)

// messageWriter is the subset of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink sends one message per frame. Messages are batched and written
// asynchronously; delivery failures are counted and logged.
type Sink struct {
	w     messageWriter
	topic string

	written atomic.Uint64
	failed  atomic.Uint64
}

// New creates an asynchronous writer for cfg.
func New(cfg config.KafkaConfig) (*Sink, error) {
	codec, err := compression(cfg.Compression)
	if err != nil {
		return nil, err
	}

	s := &Sink{topic: cfg.Topic}
	s.w = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		MaxAttempts:  cfg.MaxAttempts,
		Compression:  codec,
		Async:        true,
		Completion:   s.complete,
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"brokers":     cfg.Brokers,
		"topic":       cfg.Topic,
		"compression": cfg.Compression,
	}).Info("kafka output enabled")
	return s, nil
}

func compression(name string) (kafka.Compression, error) {
	switch name {
	case "", "none":
		return 0, nil
	case "gzip":
		return kafka.Gzip, nil
	case "snappy":
		return kafka.Snappy, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	default:
		return 0, fmt.Errorf("invalid compression type: %s", name)
	}
}

func (s *Sink) Write(pkt core.DecodedPacket) error {
	value, err := json.Marshal(console.NewRecord(pkt))
	if err != nil {
		return fmt.Errorf("serialize frame failed: %w", err)
	}

	msg := kafka.Message{
		Key:   messageKey(pkt.Packet),
		Value: value,
		Time:  pkt.Raw.Timestamp,
	}
	if err := s.w.WriteMessages(context.Background(), msg); err != nil {
		s.failed.Add(1)
		return fmt.Errorf("kafka write failed: %w", err)
	}
	return nil
}

// messageKey keeps the frames of one IPv4 host pair on one partition.
// Frames without a network layer get no key.
func messageKey(p core.Packet) []byte {
	if ip, ok := p.Network.(core.IPv4); ok {
		return []byte(ip.Source.String() + ">" + ip.Destination.String())
	}
	return nil
}

func (s *Sink) complete(msgs []kafka.Message, err error) {
	if err != nil {
		s.failed.Add(uint64(len(msgs)))
		log.GetLogger().WithError(err).WithField("messages", len(msgs)).Warn("kafka delivery failed")
		return
	}
	s.written.Add(uint64(len(msgs)))
}

// Stats returns the number of delivered and failed messages.
func (s *Sink) Stats() (written, failed uint64) {
	return s.written.Load(), s.failed.Load()
}

// Close flushes pending messages.
func (s *Sink) Close() error {
	if err := s.w.Close(); err != nil {
		return fmt.Errorf("error closing kafka writer: %w", err)
	}
	written, failed := s.Stats()
	log.GetLogger().WithFields(map[string]interface{}{
		"topic":   s.topic,
		"written": written,
		"failed":  failed,
	}).Info("kafka output closed")
	return nil
}
