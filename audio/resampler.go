// Package audio provides the PCM building blocks of the transmit pipeline.
//
// This file implements sample rate and channel layout conversion. The
// pipeline sees audio at whatever format the active source produces
// (announcement file or live device) and must hand the encoder frames at
// the codec's working rate. Conversion uses linear interpolation, which is
// adequate for voice and avoids native dependencies.
package audio

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrUnsupportedRatio is returned when the requested conversion ratio is
// not an integer up- or downsampling factor.
var ErrUnsupportedRatio = errors.New("unsupported resampling ratio")

// ErrNotConfigured is returned when Resample is called before a successful
// EnsureConfigured.
var ErrNotConfigured = errors.New("resampler not configured")

// Resampler converts PCM audio between sample rates and channel layouts.
//
// A Resampler is configured lazily: the pipeline calls EnsureConfigured
// with the format of every frame it pulls, and reconfiguration only
// happens when the input format actually changes (typically once, when the
// announcement file hands over to the live device). When input and output
// formats already match, Resample is a pass-through.
//
// Output is written to scratch buffers preallocated at construction, so
// the steady-state path performs no allocation.
type Resampler struct {
	inRate   uint32 // 0 = unconfigured
	inCh     int
	outRate  uint32
	outCh    int
	position float64 // Fractional read position carried across frames

	chanScratch []int16
	rateScratch []int16
}

// NewResampler creates a resampler whose scratch buffers can hold up to
// maxSamples interleaved samples.
func NewResampler(maxSamples int) *Resampler {
	logrus.WithFields(logrus.Fields{
		"function":    "NewResampler",
		"max_samples": maxSamples,
	}).Debug("Creating resampler")

	return &Resampler{
		chanScratch: make([]int16, maxSamples),
		rateScratch: make([]int16, maxSamples),
	}
}

// EnsureConfigured prepares the resampler for the given conversion.
//
// It is a no-op when the requested configuration matches the current one.
// Otherwise interpolation state is re-derived from scratch. Only integer
// up- and downsampling factors are supported; anything else returns
// ErrUnsupportedRatio.
func (r *Resampler) EnsureConfigured(inRate uint32, inCh int, outRate uint32, outCh int) error {
	if r.inRate == inRate && r.inCh == inCh && r.outRate == outRate && r.outCh == outCh {
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"function": "Resampler.EnsureConfigured",
		"in_rate":  inRate,
		"in_ch":    inCh,
		"out_rate": outRate,
		"out_ch":   outCh,
	}).Info("Configuring resampler")

	if inRate == 0 || outRate == 0 {
		return fmt.Errorf("invalid sample rates: %d -> %d", inRate, outRate)
	}
	if inCh < 1 || inCh > MaxChannels || outCh < 1 || outCh > MaxChannels {
		return fmt.Errorf("unsupported channel counts: %d -> %d", inCh, outCh)
	}
	if inRate%outRate != 0 && outRate%inRate != 0 {
		return fmt.Errorf("%w: %d -> %d", ErrUnsupportedRatio, inRate, outRate)
	}

	r.inRate = inRate
	r.inCh = inCh
	r.outRate = outRate
	r.outCh = outCh
	r.position = 0

	return nil
}

// Configured reports the currently configured input format. A zero rate
// means the resampler is unconfigured.
func (r *Resampler) Configured() (inRate uint32, inCh int) {
	return r.inRate, r.inCh
}

// Bypassed reports whether conversion is currently a pass-through.
func (r *Resampler) Bypassed() bool {
	return r.inRate != 0 && r.inRate == r.outRate && r.inCh == r.outCh
}

// Reset drops the configuration so the next EnsureConfigured re-derives
// all state. Called when the pipeline's source changes.
func (r *Resampler) Reset() {
	logrus.WithFields(logrus.Fields{
		"function": "Resampler.Reset",
	}).Debug("Resetting resampler configuration")

	r.inRate = 0
	r.inCh = 0
	r.position = 0
}

// Resample converts an interleaved frame to the configured output format.
//
// When the configured input and output formats match, the input slice is
// returned unchanged. Otherwise the converted samples live in an internal
// scratch buffer that remains valid until the next Resample call.
func (r *Resampler) Resample(in []int16) ([]int16, error) {
	if r.inRate == 0 {
		return nil, ErrNotConfigured
	}
	if r.Bypassed() {
		return in, nil
	}

	samples := in

	// Channel layout first, so rate conversion always runs on the output
	// channel count.
	if r.inCh != r.outCh {
		samples = r.convertChannels(samples)
	}

	if r.inRate != r.outRate {
		samples = r.convertRate(samples)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Resampler.Resample",
		"in":       len(in),
		"out":      len(samples),
	}).Debug("Frame resampled")

	return samples, nil
}

// convertChannels remaps mono to stereo by duplication or stereo to mono
// by averaging, writing into chanScratch.
func (r *Resampler) convertChannels(in []int16) []int16 {
	if r.inCh == 1 && r.outCh == 2 {
		out := r.chanScratch[:len(in)*2]
		for i, s := range in {
			out[2*i] = s
			out[2*i+1] = s
		}
		return out
	}

	out := r.chanScratch[:len(in)/2]
	for i := range out {
		out[i] = int16((int32(in[2*i]) + int32(in[2*i+1])) / 2)
	}
	return out
}

// convertRate performs linear-interpolation rate conversion on interleaved
// samples with the output channel count, writing into rateScratch.
func (r *Resampler) convertRate(in []int16) []int16 {
	ch := r.outCh
	inFrames := len(in) / ch
	outFrames := inFrames * int(r.outRate) / int(r.inRate)
	step := float64(r.inRate) / float64(r.outRate)

	out := r.rateScratch[:outFrames*ch]
	pos := r.position
	for i := 0; i < outFrames; i++ {
		idx := int(pos)
		frac := pos - float64(idx)
		if idx >= inFrames {
			idx = inFrames - 1
			frac = 0
		}
		for c := 0; c < ch; c++ {
			s0 := in[idx*ch+c]
			s1 := s0
			if idx+1 < inFrames {
				s1 = in[(idx+1)*ch+c]
			}
			out[i*ch+c] = int16(float64(s0)*(1-frac) + float64(s1)*frac)
		}
		pos += step
	}

	// Carry the fractional read position across frame boundaries.
	r.position = pos - float64(inFrames)
	if r.position < 0 || r.position >= step {
		r.position = 0
	}

	return out
}
