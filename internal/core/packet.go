package core

import "time"

// RawPacket is one frame as delivered by a capture source. Data is borrowed:
// it aliases a pooled buffer or a file reader's scratch space and is only
// valid until the frame is handed back.
type RawPacket struct {
	Data           []byte    // Captured bytes, borrowed
	Timestamp      time.Time // Receive time
	CaptureLen     uint32    // Bytes written into Data
	OrigLen        uint32    // Length on the wire, if known (else CaptureLen)
	InterfaceIndex int
}

// DecodedPacket pairs a raw frame with its decode outcome. Exactly one of
// Packet (with Remainder) or Err is meaningful.
type DecodedPacket struct {
	Raw       RawPacket
	Packet    Packet
	Remainder []byte // Unconsumed suffix of Raw.Data, borrowed like Raw.Data
	Err       error
}
