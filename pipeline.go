// Package audiocast implements the transmit-side media engine of a
// multicast audio endpoint.
//
// This file implements one pipeline iteration: pull a packet-sized frame
// from the ring buffer, convert it to the codec's working format, run the
// effect chain, and hand it to the packetizer. Iteration errors are never
// fatal to the source; the frame is dropped and the next scheduled
// iteration proceeds normally.
package audiocast

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audiocast/audio"
	"github.com/opd-ai/audiocast/capture"
)

// activeParams returns the format of the frames currently feeding the
// ring buffer: the announcement file's native format while it plays, the
// live capture format afterwards.
func (s *Source) activeParams() capture.Params {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.announcement != nil && !s.exhausted {
		return s.annPrm
	}
	return s.micPrm
}

// packetReady reports whether the ring buffer holds at least one packet's
// worth of samples at the active format.
func (s *Source) packetReady() bool {
	s.mu.Lock()
	buf := s.buf
	s.mu.Unlock()
	if buf == nil {
		return false
	}
	return buf.Len() >= s.activeParams().FrameSamples()
}

// runPipelineOnce executes one iteration, absorbing errors. Called from
// the scheduler contexts only.
func (s *Source) runPipelineOnce() {
	if err := s.pipelineIteration(); err != nil {
		s.metrics.FramesDropped.Inc()
	}
}

// pipelineIteration pulls, converts, filters, encodes, and sends one
// frame. Returns the error that dropped the frame, if any; errors are
// logged here, callers only count them.
func (s *Source) pipelineIteration() error {
	prm := s.activeParams()

	s.mu.Lock()
	buf := s.buf
	scratch := s.scratch
	s.mu.Unlock()
	if buf == nil {
		return ErrSourceClosed
	}

	sampc := prm.FrameSamples()
	frame := audio.Frame{
		Samples:  scratch[:sampc],
		Rate:     prm.Rate,
		Channels: prm.Channels,
	}
	buf.Read(frame.Samples)

	if frame.Rate != s.workRate || frame.Channels != s.workChannels {
		// Resampler state is shared with the announcement EOF handler
		// (which resets it), so conversion runs under the source lock.
		s.mu.Lock()
		err := s.resampler.EnsureConfigured(frame.Rate, frame.Channels, s.workRate, s.workChannels)
		if err == nil {
			var converted []int16
			converted, err = s.resampler.Resample(frame.Samples)
			if err == nil {
				frame = audio.Frame{
					Samples:  converted,
					Rate:     s.workRate,
					Channels: s.workChannels,
				}
			}
		}
		s.mu.Unlock()

		if err != nil {
			s.metrics.ResampleErrors.Inc()
			logrus.WithFields(logrus.Fields{
				"function": "Source.pipelineIteration",
				"source":   s.id,
				"in_rate":  prm.Rate,
				"out_rate": s.workRate,
				"error":    err.Error(),
			}).Warn("Resampling failed, dropping frame")
			return err
		}
	}

	// Effect failures are absorbed inside the chain; encoding always
	// proceeds.
	frame.Samples = s.effects.Process(frame.Samples)

	sent, err := s.packetizer.EncodeAndSend(frame)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Source.pipelineIteration",
			"source":   s.id,
			"error":    err.Error(),
		}).Warn("Encode/send iteration failed")
		return err
	}

	if sent {
		s.metrics.FramesEncoded.Inc()
	} else {
		s.metrics.PartialConsumes.Inc()
	}

	return nil
}
