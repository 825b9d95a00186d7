// Package capture defines the audio capture collaborator contract and the
// built-in capture devices.
//
// This file implements the synthetic generator devices: "tone" produces a
// continuous sine wave, "silence" produces zeros. Both pace themselves
// with a wall-clock ticker at the configured packet time and are used by
// the examples and tests in place of real hardware.
package capture

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audiocast/audio"
)

const defaultToneFrequency = 440.0

func init() {
	Register("tone", openTone)
	Register("silence", openSilence)
}

func openTone(params Params, readFn ReadFunc, errFn ErrorFunc) (Device, error) {
	freq := defaultToneFrequency
	if params.Device != "" {
		parsed, err := strconv.ParseFloat(params.Device, 64)
		if err != nil {
			return nil, err
		}
		freq = parsed
	}
	return newGenerator(params, readFn, freq), nil
}

func openSilence(params Params, readFn ReadFunc, _ ErrorFunc) (Device, error) {
	return newGenerator(params, readFn, 0), nil
}

// generator delivers synthesized frames at packet-time cadence until
// closed.
type generator struct {
	params    Params
	readFn    ReadFunc
	frequency float64 // 0 = silence
	phase     float64

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func newGenerator(params Params, readFn ReadFunc, frequency float64) *generator {
	logrus.WithFields(logrus.Fields{
		"function":  "newGenerator",
		"rate":      params.Rate,
		"channels":  params.Channels,
		"ptime_ms":  params.Ptime.Milliseconds(),
		"frequency": frequency,
	}).Info("Opening generator capture device")

	g := &generator{
		params:    params,
		readFn:    readFn,
		frequency: frequency,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go g.run()
	return g
}

func (g *generator) run() {
	defer close(g.done)

	frame := make([]int16, g.params.FrameSamples())
	ticker := time.NewTicker(g.params.Ptime)
	defer ticker.Stop()

	step := 2 * math.Pi * g.frequency / float64(g.params.Rate)
	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			if g.frequency > 0 {
				perChannel := len(frame) / g.params.Channels
				for i := 0; i < perChannel; i++ {
					s := int16(math.Sin(g.phase) * 0.25 * math.MaxInt16)
					for c := 0; c < g.params.Channels; c++ {
						frame[i*g.params.Channels+c] = s
					}
					g.phase += step
				}
				if g.phase > 2*math.Pi {
					g.phase -= 2 * math.Pi * math.Floor(g.phase/(2*math.Pi))
				}
			}
			g.readFn(audio.Frame{
				Samples:  frame,
				Rate:     g.params.Rate,
				Channels: g.params.Channels,
			})
		}
	}
}

// Close stops frame delivery and waits for the generator goroutine to
// exit, so no read callback runs after Close returns.
func (g *generator) Close() error {
	g.stopOnce.Do(func() {
		logrus.WithFields(logrus.Fields{
			"function": "generator.Close",
		}).Debug("Closing generator capture device")
		close(g.stop)
	})
	<-g.done
	return nil
}
