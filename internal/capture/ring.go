package capture

import (
	"fmt"
)

const (
	tpacketAlignment = 16 // TPACKET_ALIGNMENT
	tpacketHdrLen    = 52 // TPACKET3_HDRLEN, rounded
	maxBlockSize     = 4 << 20
	framesPerBlock   = 128
)

// ringGeometry is the frame/block layout of a TPACKET_V3 ring.
type ringGeometry struct {
	FrameSize int
	BlockSize int
	NumBlocks int
}

// computeRing lays out a ring of roughly bufferSizeMB megabytes for frames of
// up to snapLen bytes. frameSize is a multiple of TPACKET_ALIGNMENT and
// blockSize a multiple of both the page size and frameSize.
func computeRing(bufferSizeMB, snapLen, pageSize int) (ringGeometry, error) {
	if bufferSizeMB <= 0 {
		return ringGeometry{}, fmt.Errorf("ring buffer size must be positive, got %d MB", bufferSizeMB)
	}
	if snapLen <= 0 {
		return ringGeometry{}, fmt.Errorf("snap length must be positive, got %d", snapLen)
	}
	if pageSize <= 0 || pageSize%tpacketAlignment != 0 {
		return ringGeometry{}, fmt.Errorf("page size must be a positive multiple of %d, got %d", tpacketAlignment, pageSize)
	}

	frameSize := alignUp(tpacketHdrLen+snapLen, tpacketAlignment)
	if frameSize <= pageSize {
		// Smallest aligned divisor of the page that holds a frame.
		for pageSize%frameSize != 0 {
			frameSize += tpacketAlignment
		}
	} else {
		frameSize = alignUp(frameSize, pageSize)
	}

	// One of pageSize and frameSize now divides the other.
	base := lcm(pageSize, frameSize)
	k := framesPerBlock * frameSize / base
	for k > 1 && base*k > maxBlockSize {
		k--
	}
	if k < 1 {
		k = 1
	}
	blockSize := base * k

	numBlocks := (bufferSizeMB << 20) / blockSize
	if numBlocks < 1 {
		numBlocks = 1
	}

	return ringGeometry{FrameSize: frameSize, BlockSize: blockSize, NumBlocks: numBlocks}, nil
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	return a / gcd(a, b) * b
}
