package cmd

import (
	"firestige.xyz/sniff/internal/buffer"
	"firestige.xyz/sniff/internal/capture"
	"firestige.xyz/sniff/internal/config"
	"firestige.xyz/sniff/internal/sniffer"
)

// TransportInterface is the part of a capture transport the commands use.
type TransportInterface interface {
	sniffer.Receiver
	Send(p []byte) (int, error)
	Close() error
	Pool() *buffer.Pool
}

// openTransport is replaced in tests.
var openTransport = func(opts capture.Options) (TransportInterface, error) {
	t, err := capture.Open(opts)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func captureOptions(c *config.Config) (capture.Options, error) {
	backend, err := capture.ParseBackend(c.Capture.Backend)
	if err != nil {
		return capture.Options{}, err
	}
	return capture.Options{
		Interface:    c.Capture.Interface,
		Backend:      backend,
		SendProtocol: c.Capture.SendProtocol,
		Pool:         buffer.NewPool(c.Pool.InitialCount, c.Pool.BufferSize),
		TPacket: capture.TPacketOptions{
			BufferSizeMB: c.Capture.TPacket.BufferSizeMB,
			PollTimeout:  c.Capture.TPacket.PollTimeout,
		},
	}, nil
}
