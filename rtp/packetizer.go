// Package rtp provides RTP payload staging for the transmit pipeline.
//
// This file implements the packetizer: it drives the codec encoder for
// each frame, interprets the tagged encode result, maintains the extended
// (64-bit) RTP timestamp and the one-shot marker flag, and hands finished
// payloads to the injected send callback. The staging buffer reserves a
// fixed prefix so the transport layer can prepend its header and
// extension without copying the payload.
package rtp

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audiocast/audio"
	"github.com/opd-ai/audiocast/codec"
)

// HeaderReserve is the number of staging bytes reserved ahead of the
// payload for the transport's RTP header and extension.
const HeaderReserve = 16

// stagingSize is the maximum encoded payload size per packet.
const stagingSize = 4096

// SendFunc delivers one encoded payload to the transport.
//
// extLen is the RTP extension length in bytes (currently always 0),
// timestamp is the wrapped 32-bit RTP timestamp, and payload excludes the
// reserved header prefix. A non-nil error fails the current pipeline
// iteration only; no retry is attempted.
type SendFunc func(extLen int, marker bool, timestamp uint32, payload []byte) error

// Packetizer encodes frames and emits RTP-ready payloads.
//
// The extended timestamp starts at a random base and advances by exactly
// the codec-clock duration of every transmitted frame, or by the
// codec-supplied delta when a variable-framing codec consumes samples
// without producing a payload. The marker flag is armed once at creation
// and cleared at the end of the first iteration.
//
// A Packetizer is only invoked from the pipeline context and needs no
// internal locking.
type Packetizer struct {
	enc        codec.Encoder
	sampleRate uint32
	clockRate  uint32
	channels   int
	send       SendFunc

	staging []byte
	marker  bool
	tsExt   uint64
	tsBase  uint32
}

// NewPacketizer creates a packetizer bound to one codec encoder and one
// send callback.
func NewPacketizer(c codec.Codec, enc codec.Encoder, send SendFunc) (*Packetizer, error) {
	if c == nil || enc == nil || send == nil {
		return nil, fmt.Errorf("codec, encoder and send callback are required")
	}

	// Randomize the timestamp base, as RFC 3550 requires.
	baseBytes := make([]byte, 4)
	if _, err := rand.Read(baseBytes); err != nil {
		return nil, fmt.Errorf("failed to generate timestamp base: %w", err)
	}
	base := binary.BigEndian.Uint32(baseBytes)

	logrus.WithFields(logrus.Fields{
		"function":    "NewPacketizer",
		"codec":       c.Name(),
		"sample_rate": c.SampleRate(),
		"clock_rate":  c.ClockRate(),
		"channels":    c.Channels(),
		"ts_base":     base,
	}).Info("Creating RTP packetizer")

	return &Packetizer{
		enc:        enc,
		sampleRate: c.SampleRate(),
		clockRate:  c.ClockRate(),
		channels:   c.Channels(),
		send:       send,
		staging:    make([]byte, HeaderReserve+stagingSize),
		marker:     true,
		tsExt:      uint64(base),
		tsBase:     base,
	}, nil
}

// EncodeAndSend runs one encode/packetize iteration for a frame already
// converted to the codec's working format. It reports whether a payload
// was actually sent.
//
// Outcomes:
//   - payload produced: it is sent; the extended timestamp advances by the
//     frame's duration in codec-clock ticks;
//   - partial consume: nothing is sent; the timestamp advances by the
//     codec-supplied delta;
//   - encode failure: the frame is dropped, the timestamp does not move,
//     and the error is returned for the pipeline to log.
//
// The marker flag is cleared when the iteration ends, whatever happened.
func (p *Packetizer) EncodeAndSend(frame audio.Frame) (bool, error) {
	defer func() { p.marker = false }()

	dst := p.staging[HeaderReserve:]
	result, err := p.enc.Encode(dst, &p.marker, frame.Samples)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Packetizer.EncodeAndSend",
			"samples":  frame.SampleCount(),
			"error":    err.Error(),
		}).Warn("Audio encoding failed, dropping frame")
		return false, err
	}

	if result.Kind == codec.ResultPartialConsume {
		p.tsExt += uint64(result.Delta)
		logrus.WithFields(logrus.Fields{
			"function": "Packetizer.EncodeAndSend",
			"delta":    result.Delta,
			"ts_ext":   p.tsExt,
		}).Debug("Codec consumed samples without payload")
		return false, nil
	}

	sent := false
	if result.Length > 0 {
		timestamp := uint32(p.tsExt)
		if err := p.send(0, p.marker, timestamp, dst[:result.Length]); err != nil {
			return false, fmt.Errorf("send failed: %w", err)
		}
		sent = true
	}

	// Frame duration in codec-clock ticks: samples converted from the
	// working rate to the codec clock, divided by the channel count.
	ticks := uint64(frame.SampleCount()) * uint64(p.clockRate) / uint64(p.sampleRate) / uint64(p.channels)
	p.tsExt += ticks

	return sent, nil
}

// ExtendedTimestamp returns the current 64-bit timestamp counter.
func (p *Packetizer) ExtendedTimestamp() uint64 {
	return p.tsExt
}

// BaseTimestamp returns the randomized timestamp base chosen at creation.
func (p *Packetizer) BaseTimestamp() uint32 {
	return p.tsBase
}

// Marker reports whether the next sent packet will carry the marker flag.
func (p *Packetizer) Marker() bool {
	return p.marker
}
