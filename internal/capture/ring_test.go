package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeRing(t *testing.T) {
	tests := []struct {
		name         string
		bufferSizeMB int
		snapLen      int
		pageSize     int
		want         ringGeometry
	}{
		{"ethernet", 8, 1514, 4096, ringGeometry{FrameSize: 2048, BlockSize: 262144, NumBlocks: 32}},
		{"small-snap", 1, 64, 4096, ringGeometry{FrameSize: 128, BlockSize: 16384, NumBlocks: 64}},
		{"jumbo", 64, 9000, 4096, ringGeometry{FrameSize: 12288, BlockSize: 1572864, NumBlocks: 42}},
		{"max-snap", 8, 65535, 4096, ringGeometry{FrameSize: 69632, BlockSize: 4177920, NumBlocks: 2}},
		{"tiny-buffer", 1, 65535, 4096, ringGeometry{FrameSize: 69632, BlockSize: 4177920, NumBlocks: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := computeRing(tt.bufferSizeMB, tt.snapLen, tt.pageSize)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeRingAlignment(t *testing.T) {
	for _, pageSize := range []int{4096, 16384, 65536} {
		for snapLen := 1; snapLen <= 70000; snapLen += 997 {
			got, err := computeRing(16, snapLen, pageSize)
			require.NoError(t, err)

			assert.Zero(t, got.FrameSize%tpacketAlignment, "frame alignment snap=%d page=%d", snapLen, pageSize)
			assert.GreaterOrEqual(t, got.FrameSize, tpacketHdrLen+snapLen)
			assert.Zero(t, got.BlockSize%pageSize, "block/page snap=%d page=%d", snapLen, pageSize)
			assert.Zero(t, got.BlockSize%got.FrameSize, "block/frame snap=%d page=%d", snapLen, pageSize)
			assert.GreaterOrEqual(t, got.NumBlocks, 1)
		}
	}
}

func TestComputeRingInvalid(t *testing.T) {
	_, err := computeRing(0, 1514, 4096)
	assert.Error(t, err)
	_, err = computeRing(8, 0, 4096)
	assert.Error(t, err)
	_, err = computeRing(8, 1514, 4095)
	assert.Error(t, err)
}

func TestLCM(t *testing.T) {
	assert.Equal(t, 12, lcm(4, 6))
	assert.Equal(t, 4096, lcm(4096, 2048))
	assert.Equal(t, 0, lcm(0, 16))
}
