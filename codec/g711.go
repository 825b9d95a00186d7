// Package codec defines the audio codec contract consumed by the transmit
// pipeline and provides the built-in codecs.
//
// This file implements the G.711 companding codecs (PCMU/mu-law and
// PCMA/A-law, RFC 3551 payload types 0 and 8) in pure Go. Both operate on
// 8 kHz mono PCM and emit one byte per sample.
package codec

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

const (
	ulawBias = 0x84
	ulawClip = 32635
	alawClip = 32635
)

func init() {
	Register(&g711Codec{name: "PCMU", payloadType: 0, compress: linearToUlaw})
	Register(&g711Codec{name: "PCMA", payloadType: 8, compress: linearToAlaw})
}

// g711Codec describes one of the two G.711 companding variants.
type g711Codec struct {
	name        string
	payloadType uint8
	compress    func(int16) uint8
}

func (c *g711Codec) Name() string       { return c.name }
func (c *g711Codec) PayloadType() uint8 { return c.payloadType }
func (c *g711Codec) SampleRate() uint32 { return 8000 }
func (c *g711Codec) ClockRate() uint32  { return 8000 }
func (c *g711Codec) Channels() int      { return 1 }

// NewEncoder allocates G.711 encoder state. The companding transform is
// stateless, so the encoder only carries the compress function.
func (c *g711Codec) NewEncoder() (Encoder, error) {
	logrus.WithFields(logrus.Fields{
		"function": "g711Codec.NewEncoder",
		"codec":    c.name,
	}).Debug("Allocating G.711 encoder state")

	return &g711Encoder{compress: c.compress}, nil
}

type g711Encoder struct {
	compress func(int16) uint8
}

// Encode compands each sample to one byte. The marker flag is left to the
// packetizer; G.711 has no framing of its own.
func (e *g711Encoder) Encode(dst []byte, _ *bool, pcm []int16) (Result, error) {
	if len(dst) < len(pcm) {
		return Result{}, fmt.Errorf("encode buffer too small: %d < %d", len(dst), len(pcm))
	}

	for i, s := range pcm {
		dst[i] = e.compress(s)
	}
	return Encoded(len(pcm)), nil
}

func (e *g711Encoder) Close() error { return nil }

// linearToUlaw compands one 16-bit linear sample to 8-bit mu-law
// (ITU-T G.711).
func linearToUlaw(sample int16) uint8 {
	sign := uint8(0)
	s := int32(sample)
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > ulawClip {
		s = ulawClip
	}
	s += ulawBias

	exponent := uint8(7)
	for mask := int32(0x4000); (s&mask) == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}

	mantissa := uint8((s >> (exponent + 3)) & 0x0F)
	return ^(sign | (exponent << 4) | mantissa)
}

// linearToAlaw compands one 16-bit linear sample to 8-bit A-law
// (ITU-T G.711).
func linearToAlaw(sample int16) uint8 {
	sign := uint8(0x80)
	s := int32(sample)
	if s < 0 {
		s = -s - 1
		sign = 0
	}
	if s > alawClip {
		s = alawClip
	}

	var compressed uint8
	if s < 256 {
		compressed = uint8(s >> 4)
	} else {
		exponent := uint8(7)
		for mask := int32(0x4000); (s & mask) == 0; mask >>= 1 {
			exponent--
		}
		mantissa := uint8((s >> (exponent + 3)) & 0x0F)
		compressed = (exponent << 4) | mantissa
	}

	return (sign | compressed) ^ 0x55
}
