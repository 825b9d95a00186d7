// Package audio provides the PCM building blocks of the transmit pipeline.
//
// This file defines the Frame value type exchanged between capture devices,
// the ring buffer, the resampler, and the encoder. A frame carries signed
// 16-bit little-endian PCM samples together with the format they were
// produced in, so downstream stages can detect rate or channel mismatches.
package audio

import "time"

// BytesPerSample is the size of one PCM sample (S16LE).
const BytesPerSample = 2

// MaxSampleRate is the highest sample rate the pipeline supports.
const MaxSampleRate = 48000

// MaxChannels is the highest channel count the pipeline supports.
const MaxChannels = 2

// Frame is a block of interleaved PCM audio samples.
//
// Samples are interleaved per channel (L R L R ... for stereo). A frame is
// a value type: stages that mutate sample data do so on scratch buffers
// they own, never on a frame received from another stage.
type Frame struct {
	Samples  []int16 // Interleaved PCM samples
	Rate     uint32  // Sample rate in Hz
	Channels int     // 1 = mono, 2 = stereo
}

// SampleCount returns the number of samples in the frame (all channels).
func (f Frame) SampleCount() int {
	return len(f.Samples)
}

// Duration returns the playback duration the frame represents.
func (f Frame) Duration() time.Duration {
	if f.Rate == 0 || f.Channels == 0 {
		return 0
	}
	perChannel := len(f.Samples) / f.Channels
	return time.Duration(perChannel) * time.Second / time.Duration(f.Rate)
}

// PacketSamples returns the number of interleaved samples one packet of the
// given packet time holds at the given format.
func PacketSamples(rate uint32, channels int, ptime time.Duration) int {
	return int(uint64(rate) * uint64(channels) * uint64(ptime.Milliseconds()) / 1000)
}

// MaxFrameSamples returns the scratch buffer size needed to hold the largest
// frame any supported format can produce for the given packet time.
func MaxFrameSamples(ptime time.Duration) int {
	return PacketSamples(MaxSampleRate, MaxChannels, ptime)
}
