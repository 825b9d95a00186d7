// Package codec defines the audio codec contract consumed by the transmit
// pipeline and provides the built-in codecs.
//
// A codec is described by a Codec descriptor (format parameters plus an
// encoder-state allocator) and exercised through the Encoder it allocates.
// Encode outcomes are expressed as an explicit tagged Result rather than a
// bit-packed return code: a codec either produced a payload, consumed
// samples without producing one yet (variable-framing codecs), or failed,
// in which case Encode returns an error and the frame is dropped.
package codec

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// ResultKind distinguishes the two successful encode outcomes.
type ResultKind int

const (
	// ResultEncoded means a payload of Length bytes was produced.
	ResultEncoded ResultKind = iota

	// ResultPartialConsume means the codec absorbed the samples without
	// producing a payload; the RTP timestamp must advance by Delta.
	ResultPartialConsume
)

// Result is the tagged outcome of a successful Encode call.
type Result struct {
	Kind   ResultKind
	Length int    // Payload bytes written, valid for ResultEncoded
	Delta  uint32 // Codec-clock ticks consumed, valid for ResultPartialConsume
}

// Encoded builds a ResultEncoded result.
func Encoded(length int) Result {
	return Result{Kind: ResultEncoded, Length: length}
}

// PartialConsume builds a ResultPartialConsume result.
func PartialConsume(delta uint32) Result {
	return Result{Kind: ResultPartialConsume, Delta: delta}
}

// Encoder is per-source codec state.
//
// Encode writes the encoded payload into dst and reports the outcome. The
// marker pointer lets framing codecs force the RTP marker on specific
// packets; most codecs leave it untouched. Encoders are only invoked from
// the pipeline context, never concurrently.
type Encoder interface {
	Encode(dst []byte, marker *bool, pcm []int16) (Result, error)
	Close() error
}

// Codec describes an audio codec the pipeline can transmit with.
type Codec interface {
	// Name returns the codec's registration name (e.g. "PCMU").
	Name() string

	// PayloadType returns the static RTP payload type, or a dynamic one
	// chosen by the caller's signaling.
	PayloadType() uint8

	// SampleRate returns the working (input PCM) sample rate in Hz.
	SampleRate() uint32

	// ClockRate returns the RTP clock rate in Hz. For most narrowband
	// codecs this equals the sample rate; G.722 famously differs.
	ClockRate() uint32

	// Channels returns the channel count the codec encodes.
	Channels() int

	// NewEncoder allocates encoder state for one source.
	NewEncoder() (Encoder, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Codec)
)

// Register makes a codec available for lookup by name. Built-in codecs
// register themselves at init time.
func Register(c Codec) {
	registryMu.Lock()
	defer registryMu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":     "Register",
		"codec":        c.Name(),
		"payload_type": c.PayloadType(),
		"sample_rate":  c.SampleRate(),
		"clock_rate":   c.ClockRate(),
	}).Debug("Registering audio codec")

	registry[c.Name()] = c
}

// Find returns the codec registered under name.
func Find(name string) (Codec, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	c, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown codec: %q", name)
	}
	return c, nil
}

// Names returns the sorted names of all registered codecs.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
