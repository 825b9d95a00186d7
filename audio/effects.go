// Package audio provides the PCM building blocks of the transmit pipeline.
//
// This file implements the encode-side audio effect chain. Effects are
// lightweight in-place transforms (gain, automatic gain control, noise
// gating) applied to each frame after resampling and before encoding. A
// failing effect never stops the pipeline: its output for that frame is
// discarded and the untouched samples continue down the chain.
package audio

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Effect is an encode-side audio transform.
//
// Effects process interleaved PCM samples and may return the same slice or
// a new one. An effect is owned by exactly one chain and is only invoked
// from the pipeline context, so implementations need no internal locking.
type Effect interface {
	// Process applies the effect to PCM samples.
	Process(samples []int16) ([]int16, error)

	// Name returns a human-readable effect name for logging.
	Name() string

	// Close releases any resources held by the effect.
	Close() error
}

// GainEffect applies a fixed linear gain with clipping protection.
//
// Gain values: 0.0 = silence, 1.0 = unity, >1.0 = amplification. The
// maximum of 4.0 corresponds to roughly +12 dB, beyond which voice audio
// clips constantly.
type GainEffect struct {
	gain float64
}

// NewGainEffect creates a fixed gain effect.
func NewGainEffect(gain float64) (*GainEffect, error) {
	logrus.WithFields(logrus.Fields{
		"function": "NewGainEffect",
		"gain":     gain,
	}).Info("Creating gain effect")

	if gain < 0.0 {
		return nil, fmt.Errorf("gain cannot be negative: %f", gain)
	}
	if gain > 4.0 {
		return nil, fmt.Errorf("gain too high (max 4.0): %f", gain)
	}

	return &GainEffect{gain: gain}, nil
}

// Process applies the gain to all samples with clipping protection.
func (g *GainEffect) Process(samples []int16) ([]int16, error) {
	for i, s := range samples {
		v := float64(s) * g.gain
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		samples[i] = int16(v)
	}
	return samples, nil
}

// Name returns the effect name.
func (g *GainEffect) Name() string { return "gain" }

// Close releases effect resources (no-op for gain).
func (g *GainEffect) Close() error { return nil }

// AutoGainEffect implements automatic gain control.
//
// Follows the signal peak with smoothing and steers the gain toward a
// target level. Attack is faster than release so speech onsets are not
// clipped while pauses do not pump the noise floor up.
type AutoGainEffect struct {
	targetLevel float64
	currentGain float64
	peakLevel   float64
	attackRate  float64
	releaseRate float64
	minGain     float64
	maxGain     float64
}

// NewAutoGainEffect creates an AGC effect with defaults tuned for voice.
func NewAutoGainEffect() *AutoGainEffect {
	agc := &AutoGainEffect{
		targetLevel: 0.3,
		currentGain: 1.0,
		attackRate:  0.001,
		releaseRate: 0.0001,
		minGain:     0.1,
		maxGain:     4.0,
	}

	logrus.WithFields(logrus.Fields{
		"function":     "NewAutoGainEffect",
		"target_level": agc.targetLevel,
		"min_gain":     agc.minGain,
		"max_gain":     agc.maxGain,
	}).Info("Creating auto gain effect")

	return agc
}

// Process applies automatic gain control to the samples in place.
func (a *AutoGainEffect) Process(samples []int16) ([]int16, error) {
	if len(samples) == 0 {
		return samples, nil
	}

	var peak float64
	for _, s := range samples {
		abs := math.Abs(float64(s) / 32768.0)
		if abs > peak {
			peak = abs
		}
	}

	// Smooth the peak follower: rise quickly, decay slowly.
	if peak > a.peakLevel {
		a.peakLevel = a.peakLevel*0.7 + peak*0.3
	} else {
		a.peakLevel = a.peakLevel*0.95 + peak*0.05
	}

	desired := a.currentGain
	if a.peakLevel > 0.001 {
		desired = a.targetLevel / a.peakLevel
	}
	if desired < a.minGain {
		desired = a.minGain
	} else if desired > a.maxGain {
		desired = a.maxGain
	}

	rate := a.releaseRate
	if desired > a.currentGain {
		rate = a.attackRate
	}
	step := rate * float64(len(samples))
	if math.Abs(desired-a.currentGain) < step {
		a.currentGain = desired
	} else if desired > a.currentGain {
		a.currentGain += step
	} else {
		a.currentGain -= step
	}

	for i, s := range samples {
		v := float64(s) * a.currentGain
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		samples[i] = int16(v)
	}

	return samples, nil
}

// Name returns the effect name.
func (a *AutoGainEffect) Name() string { return "agc" }

// Close releases effect resources (no-op for AGC).
func (a *AutoGainEffect) Close() error { return nil }

// NoiseGateEffect mutes frames whose level stays below a threshold.
//
// A simple energy gate: when the frame RMS is under the threshold the
// whole frame is zeroed, keeping comfort-noise-free silence out of the
// encoder. Hold time prevents chattering at word boundaries.
type NoiseGateEffect struct {
	threshold float64 // RMS threshold, 0.0 to 1.0
	holdLeft  int     // Frames left before the gate may close again
	holdTime  int     // Frames the gate stays open after speech
}

// NewNoiseGateEffect creates a noise gate with the given RMS threshold.
func NewNoiseGateEffect(threshold float64) (*NoiseGateEffect, error) {
	logrus.WithFields(logrus.Fields{
		"function":  "NewNoiseGateEffect",
		"threshold": threshold,
	}).Info("Creating noise gate effect")

	if threshold < 0.0 || threshold >= 1.0 {
		return nil, fmt.Errorf("noise gate threshold out of range [0,1): %f", threshold)
	}

	return &NoiseGateEffect{threshold: threshold, holdTime: 10}, nil
}

// Process zeroes the frame when its RMS level is below the threshold.
func (n *NoiseGateEffect) Process(samples []int16) ([]int16, error) {
	if len(samples) == 0 {
		return samples, nil
	}

	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(samples)))

	if rms >= n.threshold {
		n.holdLeft = n.holdTime
		return samples, nil
	}
	if n.holdLeft > 0 {
		n.holdLeft--
		return samples, nil
	}

	for i := range samples {
		samples[i] = 0
	}
	return samples, nil
}

// Name returns the effect name.
func (n *NoiseGateEffect) Name() string { return "noisegate" }

// Close releases effect resources (no-op for the gate).
func (n *NoiseGateEffect) Close() error { return nil }

// EffectChain applies an ordered sequence of effects to each frame.
//
// The chain is built once at source startup and is immutable afterwards.
// Unlike a strict chain, a failing effect does not abort the frame: the
// failure is logged, that effect's output is ignored, and the remaining
// effects still run, so encoding always proceeds.
type EffectChain struct {
	effects []Effect
}

// NewEffectChain creates an empty effect chain.
func NewEffectChain() *EffectChain {
	return &EffectChain{effects: make([]Effect, 0)}
}

// Add appends an effect to the end of the chain. Must not be called once
// the pipeline is running.
func (e *EffectChain) Add(effect Effect) {
	logrus.WithFields(logrus.Fields{
		"function": "EffectChain.Add",
		"effect":   effect.Name(),
		"position": len(e.effects),
	}).Info("Adding effect to chain")

	e.effects = append(e.effects, effect)
}

// Len returns the number of effects in the chain.
func (e *EffectChain) Len() int { return len(e.effects) }

// Process runs the frame through every effect in registration order.
//
// Effect failures are logged and skipped; the samples passed to the next
// effect are the last successful output. Process never returns an error
// to the pipeline.
func (e *EffectChain) Process(samples []int16) []int16 {
	current := samples
	for i, effect := range e.effects {
		processed, err := effect.Process(current)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "EffectChain.Process",
				"effect":   effect.Name(),
				"index":    i,
				"error":    err.Error(),
			}).Warn("Effect failed, skipping for this frame")
			continue
		}
		current = processed
	}
	return current
}

// Close closes every effect in the chain.
func (e *EffectChain) Close() {
	for _, effect := range e.effects {
		if err := effect.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "EffectChain.Close",
				"effect":   effect.Name(),
				"error":    err.Error(),
			}).Warn("Effect close failed")
		}
	}
	e.effects = nil
}
