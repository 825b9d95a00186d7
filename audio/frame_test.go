package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFrameDuration(t *testing.T) {
	tests := []struct {
		name     string
		frame    Frame
		expected time.Duration
	}{
		{
			name:     "20ms mono at 8kHz",
			frame:    Frame{Samples: make([]int16, 160), Rate: 8000, Channels: 1},
			expected: 20 * time.Millisecond,
		},
		{
			name:     "20ms stereo at 16kHz",
			frame:    Frame{Samples: make([]int16, 640), Rate: 16000, Channels: 2},
			expected: 20 * time.Millisecond,
		},
		{
			name:     "zero rate",
			frame:    Frame{Samples: make([]int16, 160)},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.frame.Duration())
		})
	}
}

func TestPacketSamples(t *testing.T) {
	tests := []struct {
		name     string
		rate     uint32
		channels int
		ptime    time.Duration
		expected int
	}{
		{name: "8kHz mono 20ms", rate: 8000, channels: 1, ptime: 20 * time.Millisecond, expected: 160},
		{name: "16kHz mono 20ms", rate: 16000, channels: 1, ptime: 20 * time.Millisecond, expected: 320},
		{name: "48kHz stereo 20ms", rate: 48000, channels: 2, ptime: 20 * time.Millisecond, expected: 1920},
		{name: "8kHz mono 30ms", rate: 8000, channels: 1, ptime: 30 * time.Millisecond, expected: 240},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PacketSamples(tt.rate, tt.channels, tt.ptime))
		})
	}
}

func TestMaxFrameSamplesCoversAllFormats(t *testing.T) {
	ptime := 20 * time.Millisecond
	maxSamples := MaxFrameSamples(ptime)
	assert.Equal(t, 1920, maxSamples)
	assert.GreaterOrEqual(t, maxSamples, PacketSamples(8000, 1, ptime))
	assert.GreaterOrEqual(t, maxSamples, PacketSamples(48000, 2, ptime))
}
