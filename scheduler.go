// Package audiocast implements the transmit-side media engine of a
// multicast audio endpoint.
//
// This file implements the two scheduling strategies that drive pipeline
// iterations. Poll mode is purely reactive: capture callbacks trigger a
// bounded burst of iterations. Thread mode runs a dedicated goroutine
// with a virtual clock anchored to the first tick, so packet cadence does
// not drift with sleep jitter.
package audiocast

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// maxPollBurst bounds consecutive iterations per capture callback in
	// poll mode, capping catch-up latency after a stall.
	maxPollBurst = 16

	// schedQuantum is the thread-mode sleep interval. Shutdown latency is
	// bounded by roughly one quantum.
	schedQuantum = 4 * time.Millisecond
)

// scheduler drives pipeline iterations in one of the two transmit modes.
type scheduler interface {
	// start begins scheduling. Thread mode spawns its goroutine here.
	start() error

	// stop halts scheduling and joins any scheduling goroutine. After
	// stop returns, no further iteration will touch shared state.
	stop()

	// onFrame notifies the scheduler that a capture source deposited a
	// frame into the ring buffer.
	onFrame()
}

// pollScheduler runs iterations inline from the capture callback context.
type pollScheduler struct {
	src *Source
}

func (p *pollScheduler) start() error {
	logrus.WithFields(logrus.Fields{
		"function": "pollScheduler.start",
		"source":   p.src.id,
	}).Debug("Poll scheduler active")
	return nil
}

func (p *pollScheduler) stop() {}

// onFrame drains up to maxPollBurst packets, each gated on a full
// packet's worth of buffered samples. Iteration errors are already
// logged by the pipeline; the burst keeps going so one bad frame cannot
// stall draining.
func (p *pollScheduler) onFrame() {
	for i := 0; i < maxPollBurst; i++ {
		if !p.src.packetReady() {
			break
		}
		p.src.runPipelineOnce()
	}
}

// threadScheduler paces iterations with a dedicated goroutine.
type threadScheduler struct {
	src   *Source
	ptime time.Duration
	run   atomic.Bool
	wg    sync.WaitGroup
}

func (t *threadScheduler) start() error {
	logrus.WithFields(logrus.Fields{
		"function": "threadScheduler.start",
		"source":   t.src.id,
		"ptime_ms": t.ptime.Milliseconds(),
	}).Debug("Starting transmit scheduling goroutine")

	t.run.Store(true)
	t.wg.Add(1)
	go t.loop()
	return nil
}

// stop flips the run flag and joins the goroutine. The loop observes the
// flag within one quantum and performs no further iteration, so callers
// may release shared state as soon as stop returns.
func (t *threadScheduler) stop() {
	if !t.run.CompareAndSwap(true, false) {
		return
	}
	t.wg.Wait()

	logrus.WithFields(logrus.Fields{
		"function": "threadScheduler.stop",
		"source":   t.src.id,
	}).Debug("Transmit scheduling goroutine joined")
}

func (t *threadScheduler) onFrame() {}

func (t *threadScheduler) loop() {
	defer t.wg.Done()

	// Virtual clock: anchored to the first observed tick, advanced by
	// exactly one ptime per iteration so cadence does not drift.
	var next time.Time

	for t.run.Load() {
		time.Sleep(schedQuantum)
		if !t.run.Load() {
			return
		}

		now := time.Now()
		if next.IsZero() {
			next = now
		}
		if next.After(now) {
			continue
		}

		if t.src.packetReady() {
			t.src.runPipelineOnce()
		}
		next = next.Add(t.ptime)
	}
}
