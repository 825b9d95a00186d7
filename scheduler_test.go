package audiocast

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/audiocast/audio"
	"github.com/opd-ai/audiocast/capture"
	"github.com/opd-ai/audiocast/codec"
	"github.com/opd-ai/audiocast/metrics"
	"github.com/opd-ai/audiocast/rtp"
)

// newBenchSource builds a minimal source around a counting sender, without
// capture devices or a scheduler, so scheduling behavior can be driven by
// hand.
func newBenchSource(t *testing.T, sent *atomic.Int64) *Source {
	t.Helper()

	cdc, err := codec.Find("PCMU")
	require.NoError(t, err)
	enc, err := cdc.NewEncoder()
	require.NoError(t, err)

	ptime := 20 * time.Millisecond
	maxSamples := audio.MaxFrameSamples(ptime)

	s := &Source{
		id:           "test-source",
		cdc:          cdc,
		encoder:      enc,
		workRate:     cdc.SampleRate(),
		workChannels: cdc.Channels(),
		metrics:      metrics.Nop(),
		micPrm:       capture.Params{Rate: 8000, Channels: 1, Ptime: ptime},
		buf:          audio.NewRingBuffer(maxSamples * 30),
		resampler:    audio.NewResampler(maxSamples),
		scratch:      make([]int16, maxSamples),
		effects:      audio.NewEffectChain(),
	}
	s.lifecycle = newLifecycleFSM(s.id)

	s.packetizer, err = rtp.NewPacketizer(cdc, enc, func(int, bool, uint32, []byte) error {
		sent.Add(1)
		return nil
	})
	require.NoError(t, err)

	return s
}

func TestPollSchedulerDrainsBufferedPackets(t *testing.T) {
	var sent atomic.Int64
	src := newBenchSource(t, &sent)
	sched := &pollScheduler{src: src}

	// Five packets' worth of audio queued up.
	src.buf.Write(make([]int16, 5*160))

	sched.onFrame()
	assert.Equal(t, int64(5), sent.Load(), "one callback drains all complete packets")
	assert.Equal(t, 0, src.buf.Len())
}

func TestPollSchedulerBurstIsBounded(t *testing.T) {
	var sent atomic.Int64
	src := newBenchSource(t, &sent)
	sched := &pollScheduler{src: src}

	// More backlog than one burst may drain.
	src.buf.Write(make([]int16, 25*160))

	sched.onFrame()
	assert.Equal(t, int64(maxPollBurst), sent.Load(), "a single callback never exceeds the burst bound")

	// The remainder drains on the next callback.
	sched.onFrame()
	assert.Equal(t, int64(25), sent.Load())
}

func TestPollSchedulerIgnoresPartialPacket(t *testing.T) {
	var sent atomic.Int64
	src := newBenchSource(t, &sent)
	sched := &pollScheduler{src: src}

	src.buf.Write(make([]int16, 100)) // less than one 160-sample packet

	sched.onFrame()
	assert.Equal(t, int64(0), sent.Load())
	assert.Equal(t, 100, src.buf.Len(), "partial packets stay buffered")
}

func TestThreadSchedulerPacesByPacketTime(t *testing.T) {
	var sent atomic.Int64
	src := newBenchSource(t, &sent)

	// Plenty of audio so the pacer, not the buffer, is the limit.
	src.buf.Write(make([]int16, 30*160))

	sched := &threadScheduler{src: src, ptime: 20 * time.Millisecond}
	require.NoError(t, sched.start())
	time.Sleep(130 * time.Millisecond)
	sched.stop()

	// Roughly one packet per 20 ms; allow generous slack for CI jitter.
	count := sent.Load()
	assert.GreaterOrEqual(t, count, int64(3))
	assert.LessOrEqual(t, count, int64(9))
}

func TestThreadSchedulerStopJoins(t *testing.T) {
	var sent atomic.Int64
	src := newBenchSource(t, &sent)

	sched := &threadScheduler{src: src, ptime: 20 * time.Millisecond}
	require.NoError(t, sched.start())

	start := time.Now()
	sched.stop()
	assert.Less(t, time.Since(start), time.Second)

	// A second stop is a no-op.
	sched.stop()

	// No iterations run after stop returns.
	src.buf.Write(make([]int16, 5*160))
	before := sent.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, before, sent.Load())
}
