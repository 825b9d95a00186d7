// Package codec defines the audio codec contract consumed by the transmit
// pipeline and provides the built-in codecs.
//
// This file implements L16, uncompressed linear PCM on the wire. RFC 3551
// only assigns static payload types for 44.1 kHz L16, so the 16 kHz
// variant uses a dynamic payload type. Samples are serialized big-endian
// as the RTP audio profile requires.
package codec

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

func init() {
	Register(&l16Codec{})
}

// l16Codec is the 16 kHz mono linear PCM codec used when no compression
// is wanted, e.g. on a LAN-only multicast group.
type l16Codec struct{}

func (c *l16Codec) Name() string       { return "L16" }
func (c *l16Codec) PayloadType() uint8 { return 97 }
func (c *l16Codec) SampleRate() uint32 { return 16000 }
func (c *l16Codec) ClockRate() uint32  { return 16000 }
func (c *l16Codec) Channels() int      { return 1 }

// NewEncoder allocates L16 encoder state.
func (c *l16Codec) NewEncoder() (Encoder, error) {
	logrus.WithFields(logrus.Fields{
		"function": "l16Codec.NewEncoder",
	}).Debug("Allocating L16 encoder state")

	return &l16Encoder{}, nil
}

type l16Encoder struct{}

// Encode serializes samples as big-endian 16-bit words.
func (e *l16Encoder) Encode(dst []byte, _ *bool, pcm []int16) (Result, error) {
	if len(dst) < len(pcm)*2 {
		return Result{}, fmt.Errorf("encode buffer too small: %d < %d", len(dst), len(pcm)*2)
	}

	for i, s := range pcm {
		dst[2*i] = byte(uint16(s) >> 8)
		dst[2*i+1] = byte(uint16(s))
	}
	return Encoded(len(pcm) * 2), nil
}

func (e *l16Encoder) Close() error { return nil }
