// Package audio provides the PCM building blocks of the transmit pipeline.
//
// This file implements the bounded sample ring buffer that decouples capture
// timing from transmit timing. Capture callbacks write into it at the
// device's own cadence; the scheduler drains it one packet at a time.
package audio

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// RingBuffer is a bounded FIFO of interleaved PCM samples.
//
// Writers are never blocked: when a write would exceed the configured
// capacity the oldest buffered samples are discarded, capping end-to-end
// latency at roughly capacity worth of audio. Readers are never blocked
// either: a read for more samples than are buffered is padded with silence
// so the caller always receives a full frame.
//
// RingBuffer is safe for one writer and one reader context, which is all
// the pipeline ever has (capture callback and scheduler).
type RingBuffer struct {
	mu       sync.Mutex
	samples  []int16
	capacity int

	// Counters for diagnostics; read via Stats.
	written uint64
	dropped uint64
	padded  uint64
}

// RingBufferStats is a snapshot of ring buffer activity counters.
type RingBufferStats struct {
	SamplesWritten uint64 // Total samples accepted
	SamplesDropped uint64 // Samples discarded due to overrun
	SamplesPadded  uint64 // Silence samples injected on short reads
}

// NewRingBuffer creates a ring buffer bounded at capacity samples.
func NewRingBuffer(capacity int) *RingBuffer {
	logrus.WithFields(logrus.Fields{
		"function": "NewRingBuffer",
		"capacity": capacity,
	}).Debug("Creating audio ring buffer")

	if capacity <= 0 {
		capacity = 1
	}

	return &RingBuffer{
		samples:  make([]int16, 0, capacity),
		capacity: capacity,
	}
}

// Write appends samples to the buffer, discarding the oldest buffered
// samples if the capacity would be exceeded. It returns the number of
// samples that were discarded.
func (b *RingBuffer) Write(samples []int16) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(samples) >= b.capacity {
		// The write alone overflows the buffer; keep only its tail.
		overflow := len(b.samples) + len(samples) - b.capacity
		b.samples = b.samples[:0]
		b.samples = append(b.samples, samples[len(samples)-b.capacity:]...)
		b.written += uint64(len(samples))
		b.dropped += uint64(overflow)
		logrus.WithFields(logrus.Fields{
			"function": "RingBuffer.Write",
			"dropped":  overflow,
			"capacity": b.capacity,
		}).Warn("Ring buffer overrun, oldest audio discarded")
		return overflow
	}

	overflow := len(b.samples) + len(samples) - b.capacity
	if overflow > 0 {
		// Compact the survivors to the front of the backing array so the
		// append below stays within the original allocation.
		kept := copy(b.samples, b.samples[overflow:])
		b.samples = b.samples[:kept]
		b.dropped += uint64(overflow)
		logrus.WithFields(logrus.Fields{
			"function": "RingBuffer.Write",
			"dropped":  overflow,
			"buffered": len(b.samples),
		}).Warn("Ring buffer overrun, oldest audio discarded")
	} else {
		overflow = 0
	}

	b.samples = append(b.samples, samples...)
	b.written += uint64(len(samples))
	return overflow
}

// Read fills dst completely with buffered samples, zero-padding any
// shortfall with silence. It returns the number of real (non-padded)
// samples delivered. Read never blocks.
func (b *RingBuffer) Read(dst []int16) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := copy(dst, b.samples)
	// Compact the remainder to the front of the backing array; advancing
	// the slice base instead would make later appends reallocate.
	rest := copy(b.samples, b.samples[n:])
	b.samples = b.samples[:rest]

	if n < len(dst) {
		for i := n; i < len(dst); i++ {
			dst[i] = 0
		}
		b.padded += uint64(len(dst) - n)
		logrus.WithFields(logrus.Fields{
			"function":  "RingBuffer.Read",
			"requested": len(dst),
			"available": n,
		}).Debug("Short read, frame padded with silence")
	}

	return n
}

// Len returns the number of samples currently buffered.
func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Cap returns the configured capacity in samples.
func (b *RingBuffer) Cap() int {
	return b.capacity
}

// Flush discards all buffered samples. Used when the pipeline switches
// from announcement playback to live capture.
func (b *RingBuffer) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.samples) > 0 {
		logrus.WithFields(logrus.Fields{
			"function": "RingBuffer.Flush",
			"flushed":  len(b.samples),
		}).Debug("Flushing ring buffer")
	}
	b.samples = b.samples[:0]
}

// Stats returns a snapshot of the buffer's activity counters.
func (b *RingBuffer) Stats() RingBufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return RingBufferStats{
		SamplesWritten: b.written,
		SamplesDropped: b.dropped,
		SamplesPadded:  b.padded,
	}
}
