// Package capture defines the audio capture collaborator contract and the
// built-in capture devices.
//
// Capture devices produce PCM frames asynchronously at their own cadence
// and push them into the pipeline through a read callback. Devices are
// created through a named registry so deployments can select the capture
// module from configuration, mirroring how the encoder selects codecs.
package capture

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audiocast/audio"
)

// CodeEOF is the error-callback code that signals normal end of input
// rather than a device failure. File sources report it once after the
// final frame.
const CodeEOF = 0

// Params describes the format a capture device is opened with.
type Params struct {
	Rate     uint32        // Sample rate in Hz
	Channels int           // 1 or 2
	Ptime    time.Duration // Duration of one delivered frame
	Device   string        // Device-specific selector (path, frequency, ...)
}

// FrameSamples returns the number of interleaved samples in one frame of
// these params.
func (p Params) FrameSamples() int {
	return audio.PacketSamples(p.Rate, p.Channels, p.Ptime)
}

// ReadFunc receives captured frames. It is invoked from the device's own
// context and must not block for long; the pipeline's read handlers only
// deposit the frame into the ring buffer. The frame's sample slice is
// only valid for the duration of the call.
type ReadFunc func(frame audio.Frame)

// ErrorFunc receives device errors. Code CodeEOF signals normal end of
// input; any other code is a device failure the pipeline logs and
// tolerates.
type ErrorFunc func(code int, msg string)

// Device is an open capture handle. Close stops frame delivery and
// releases the device; it must be safe to call more than once.
type Device interface {
	Close() error
}

// Factory opens a capture device with the given parameters and callbacks.
type Factory func(params Params, readFn ReadFunc, errFn ErrorFunc) (Device, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a capture module available under name.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Register",
		"module":   name,
	}).Debug("Registering capture module")

	registry[name] = factory
}

// Find returns the capture factory registered under name.
func Find(name string) (Factory, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown capture module: %q", name)
	}
	return factory, nil
}

// Names returns the sorted names of all registered capture modules.
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
