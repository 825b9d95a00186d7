// Package audiocast implements the transmit-side media engine of a
// multicast audio endpoint.
//
// This file implements the source controller: it binds the codec, opens
// the announcement and live capture sources, allocates the shared
// buffers, builds the effect chain, and starts the scheduler — in that
// order, unwinding completely when any step fails. Teardown runs the
// same steps in reverse, joining the scheduling goroutine before any
// shared buffer is released.
package audiocast

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audiocast/audio"
	"github.com/opd-ai/audiocast/capture"
	"github.com/opd-ai/audiocast/codec"
	"github.com/opd-ai/audiocast/config"
	"github.com/opd-ai/audiocast/metrics"
	"github.com/opd-ai/audiocast/rtp"
)

// referenceRate is the rate family announcements must belong to: a file's
// native rate must equal the codec's working rate or be an integer
// multiple or submultiple of this reference.
const referenceRate = 8000

var (
	// ErrUnsupportedRate rejects announcement files whose sample rate the
	// pipeline cannot convert to the working rate.
	ErrUnsupportedRate = errors.New("unsupported announcement sample rate")

	// ErrUnsupportedTxMode rejects transmit modes other than poll/thread.
	ErrUnsupportedTxMode = errors.New("unsupported transmit mode")

	// ErrSourceClosed is returned by operations on a stopped source.
	ErrSourceClosed = errors.New("source is stopped")
)

// EffectFactory builds an encode-side effect for the working format.
// Factories registered with RegisterEffect are instantiated for every
// started source; a factory error skips that effect with a warning
// instead of failing startup.
type EffectFactory func(rate uint32, channels int) (audio.Effect, error)

type namedEffectFactory struct {
	name    string
	factory EffectFactory
}

var (
	effectFactoriesMu sync.Mutex
	effectFactories   []namedEffectFactory
)

// RegisterEffect adds a globally available effect applied to every
// subsequently started source, in registration order.
func RegisterEffect(name string, factory EffectFactory) {
	effectFactoriesMu.Lock()
	defer effectFactoriesMu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "RegisterEffect",
		"effect":   name,
	}).Debug("Registering global audio effect")

	effectFactories = append(effectFactories, namedEffectFactory{name: name, factory: factory})
}

// Option customizes a starting source.
type Option func(*sourceOptions)

type sourceOptions struct {
	cfg               *config.Config
	metrics           *metrics.Metrics
	onAnnouncementEnd func()
}

// WithConfig supplies the engine configuration. Without it the built-in
// defaults are used.
func WithConfig(cfg *config.Config) Option {
	return func(o *sourceOptions) { o.cfg = cfg }
}

// WithMetrics attaches a Prometheus metric bundle to the source.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *sourceOptions) { o.metrics = m }
}

// WithAnnouncementEndFunc registers a callback invoked once when the
// announcement file finishes and the pipeline hands over to live capture.
func WithAnnouncementEndFunc(fn func()) Option {
	return func(o *sourceOptions) { o.onAnnouncementEnd = fn }
}

// Source is one transmit pipeline instance.
//
// A Source is created running by Start and ends its life with Stop. Two
// execution contexts touch it concurrently: the capture/file callbacks
// and, in thread mode, the scheduling goroutine. All state shared
// between them (ring buffer handle, active source parameters, exhausted
// flag, resampler) is guarded by mu; the pipeline iteration works on
// private scratch once it has pulled a frame.
type Source struct {
	id  string
	cfg *config.Config

	cdc          codec.Codec
	encoder      codec.Encoder
	workRate     uint32
	workChannels int

	packetizer *rtp.Packetizer
	effects    *audio.EffectChain
	sched      scheduler
	lifecycle  *fsm.FSM
	metrics    *metrics.Metrics

	onAnnouncementEnd func()

	mu           sync.Mutex
	buf          *audio.RingBuffer
	resampler    *audio.Resampler
	scratch      []int16
	mic          capture.Device
	micPrm       capture.Params
	announcement *capture.WavFileSource
	annPrm       capture.Params
	exhausted    bool
	micMuted     bool

	stopped atomic.Bool
}

// Start creates and starts a transmit source.
//
// The setup sequence is fixed: codec binding, optional announcement file,
// live capture device, buffers, effect chain, RTP state, scheduler. Every
// step is fatal on failure and unwinds all previously acquired resources;
// Start never returns a partially constructed source.
//
// announcementPath, when non-empty, names a PCM-16 WAV file played once
// before live capture audio is transmitted. send receives every encoded
// payload; it must not retain the payload slice.
func Start(cdc codec.Codec, announcementPath string, send rtp.SendFunc, opts ...Option) (*Source, error) {
	if cdc == nil {
		return nil, fmt.Errorf("codec is required")
	}
	if send == nil {
		return nil, fmt.Errorf("send callback is required")
	}

	var o sourceOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.cfg == nil {
		o.cfg = config.Default()
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	if o.metrics == nil {
		o.metrics = metrics.Nop()
	}

	s := &Source{
		id:                uuid.NewString(),
		cfg:               o.cfg,
		cdc:               cdc,
		workRate:          cdc.SampleRate(),
		workChannels:      cdc.Channels(),
		metrics:           o.metrics,
		onAnnouncementEnd: o.onAnnouncementEnd,
	}
	s.lifecycle = newLifecycleFSM(s.id)
	s.transition(eventConfigure)

	logrus.WithFields(logrus.Fields{
		"function":     "Start",
		"source":       s.id,
		"codec":        cdc.Name(),
		"announcement": announcementPath,
		"txmode":       o.cfg.Audio.TxMode,
	}).Info("Starting transmit source")

	if err := s.setup(announcementPath, send); err != nil {
		s.Stop()
		return nil, err
	}

	s.transition(eventStart)

	logrus.WithFields(logrus.Fields{
		"function": "Start",
		"source":   s.id,
	}).Info("Transmit source running")

	return s, nil
}

// setup runs the ordered startup sequence. On error the caller unwinds
// via Stop, which tolerates partially initialized state.
func (s *Source) setup(announcementPath string, send rtp.SendFunc) error {
	ptime := s.cfg.Ptime()

	// Codec binding and encoder state allocation.
	encoder, err := s.cdc.NewEncoder()
	if err != nil {
		return fmt.Errorf("codec setup failed: %w", err)
	}
	s.encoder = encoder

	// Announcement file, if configured. The file starts delivering
	// frames immediately; until the ring buffer exists they are dropped
	// by the read handler, which matches a capture device warming up.
	if announcementPath != "" {
		s.micMuted = true
		ann, prm, err := capture.OpenWavFile(announcementPath, ptime, s.announcementRead, s.announcementError)
		if err != nil {
			return fmt.Errorf("announcement setup failed: %w", err)
		}
		if !announcementRateSupported(prm.Rate, s.workRate) {
			ann.Close()
			return fmt.Errorf("%w: %d Hz (working rate %d Hz)", ErrUnsupportedRate, prm.Rate, s.workRate)
		}
		s.mu.Lock()
		s.announcement = ann
		s.annPrm = prm
		s.mu.Unlock()
		s.transition(eventAnnouncement)
	}

	// Live capture device.
	factory, err := capture.Find(s.cfg.Capture.Module)
	if err != nil {
		return fmt.Errorf("capture setup failed: %w", err)
	}
	micPrm := capture.Params{
		Rate:     s.cfg.Capture.Rate,
		Channels: s.cfg.Capture.Channels,
		Ptime:    ptime,
		Device:   s.cfg.Capture.Device,
	}
	mic, err := factory(micPrm, s.micRead, s.micError)
	if err != nil {
		return fmt.Errorf("capture setup failed: %w", err)
	}
	s.mu.Lock()
	s.mic = mic
	s.micPrm = micPrm
	s.mu.Unlock()
	s.transition(eventCapture)

	// Shared buffers: ring buffer deep enough for the configured number
	// of outstanding packets, scratch sized for the largest supported
	// frame so a format switch never reallocates.
	maxSamples := audio.MaxFrameSamples(ptime)
	s.mu.Lock()
	s.buf = audio.NewRingBuffer(maxSamples * s.cfg.Audio.BufferPackets)
	s.resampler = audio.NewResampler(maxSamples)
	s.scratch = make([]int16, maxSamples)
	s.mu.Unlock()

	// Effect chain from configuration plus globally registered effects.
	s.effects = s.buildEffectChain()

	// RTP state: randomized timestamp base, marker armed for the first
	// packet, sender wrapped for metrics.
	s.packetizer, err = rtp.NewPacketizer(s.cdc, s.encoder, s.wrapSend(send))
	if err != nil {
		return fmt.Errorf("packetizer setup failed: %w", err)
	}

	// Scheduler, in the configured transmit mode.
	var sched scheduler
	switch s.cfg.Audio.TxMode {
	case "poll":
		sched = &pollScheduler{src: s}
	case "thread":
		sched = &threadScheduler{src: s, ptime: ptime}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedTxMode, s.cfg.Audio.TxMode)
	}
	if err := sched.start(); err != nil {
		return fmt.Errorf("scheduler startup failed: %w", err)
	}
	s.mu.Lock()
	s.sched = sched
	s.mu.Unlock()

	return nil
}

// announcementRateSupported accepts rates equal to the working rate or
// belonging to the 8 kHz reference family with an integer conversion
// ratio to the working rate. Rates above the pipeline ceiling are
// rejected outright: scratch buffers are sized for the maximum supported
// format and a faster file would not fit a packet frame.
func announcementRateSupported(rate, workRate uint32) bool {
	if rate == 0 || rate > audio.MaxSampleRate {
		return false
	}
	if rate == workRate {
		return true
	}
	inFamily := rate%referenceRate == 0 || referenceRate%rate == 0
	integerRatio := rate%workRate == 0 || workRate%rate == 0
	return inFamily && integerRatio
}

// wrapSend decorates the user's sender with transmit metrics.
func (s *Source) wrapSend(send rtp.SendFunc) rtp.SendFunc {
	return func(extLen int, marker bool, timestamp uint32, payload []byte) error {
		if err := send(extLen, marker, timestamp, payload); err != nil {
			s.metrics.SendErrors.Inc()
			return err
		}
		s.metrics.PacketsSent.Inc()
		s.metrics.BytesSent.Add(float64(len(payload)))
		return nil
	}
}

// buildEffectChain assembles the encode-side effect chain. Individual
// effect failures are warnings, never fatal to startup.
func (s *Source) buildEffectChain() *audio.EffectChain {
	chain := audio.NewEffectChain()

	if g := s.cfg.Effects.Gain; g > 0 && g != 1.0 {
		if effect, err := audio.NewGainEffect(g); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Source.buildEffectChain",
				"source":   s.id,
				"error":    err.Error(),
			}).Warn("Gain effect setup failed, continuing without it")
		} else {
			chain.Add(effect)
		}
	}
	if s.cfg.Effects.AutoGain {
		chain.Add(audio.NewAutoGainEffect())
	}
	if th := s.cfg.Effects.NoiseGateThreshold; th > 0 {
		if effect, err := audio.NewNoiseGateEffect(th); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Source.buildEffectChain",
				"source":   s.id,
				"error":    err.Error(),
			}).Warn("Noise gate setup failed, continuing without it")
		} else {
			chain.Add(effect)
		}
	}

	effectFactoriesMu.Lock()
	factories := make([]namedEffectFactory, len(effectFactories))
	copy(factories, effectFactories)
	effectFactoriesMu.Unlock()

	for _, nf := range factories {
		effect, err := nf.factory(s.workRate, s.workChannels)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Source.buildEffectChain",
				"source":   s.id,
				"effect":   nf.name,
				"error":    err.Error(),
			}).Warn("Effect setup failed, continuing with next")
			continue
		}
		chain.Add(effect)
	}

	return chain
}

// micRead deposits live capture frames into the ring buffer. Frames are
// discarded while the announcement still plays.
func (s *Source) micRead(frame audio.Frame) {
	s.mu.Lock()
	buf := s.buf
	muted := s.micMuted
	sched := s.sched
	s.mu.Unlock()

	if buf == nil || muted {
		return
	}

	if dropped := buf.Write(frame.Samples); dropped > 0 {
		s.metrics.BufferOverruns.Inc()
	}
	s.metrics.FramesCaptured.Inc()

	if sched != nil {
		sched.onFrame()
	}
}

// micError logs live capture errors; a running source tolerates them and
// simply starves until the device recovers.
func (s *Source) micError(code int, msg string) {
	logrus.WithFields(logrus.Fields{
		"function": "Source.micError",
		"source":   s.id,
		"code":     code,
		"message":  msg,
	}).Warn("Capture device error")
}

// announcementRead deposits announcement frames into the ring buffer
// until the file is exhausted.
func (s *Source) announcementRead(frame audio.Frame) {
	s.mu.Lock()
	buf := s.buf
	exhausted := s.exhausted
	sched := s.sched
	s.mu.Unlock()

	if buf == nil || exhausted {
		return
	}

	if dropped := buf.Write(frame.Samples); dropped > 0 {
		s.metrics.BufferOverruns.Inc()
	}
	s.metrics.FramesCaptured.Inc()

	if sched != nil {
		sched.onFrame()
	}
}

// announcementError handles the end-of-file notification from the
// announcement source. EOF is the expected handoff to live capture, not
// an error: buffered announcement audio is flushed, the resampler is
// reset for the new input format, the mic is unmuted, and the exhausted
// flag flips exactly once.
func (s *Source) announcementError(code int, msg string) {
	if code != capture.CodeEOF {
		logrus.WithFields(logrus.Fields{
			"function": "Source.announcementError",
			"source":   s.id,
			"code":     code,
			"message":  msg,
		}).Warn("Announcement source error")
		return
	}

	s.mu.Lock()
	if s.exhausted {
		s.mu.Unlock()
		return
	}
	s.exhausted = true
	s.micMuted = false
	if s.buf != nil {
		s.buf.Flush()
	}
	if s.resampler != nil {
		s.resampler.Reset()
	}
	ann := s.announcement
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Source.announcementError",
		"source":   s.id,
	}).Info("Announcement finished, switching to live capture")

	s.metrics.AnnouncementsFinished.Inc()

	// The file source invoked this callback from its own goroutine;
	// closing it synchronously here would deadlock on its join.
	if ann != nil {
		go ann.Close()
	}

	if s.onAnnouncementEnd != nil {
		s.onAnnouncementEnd()
	}
}

// AnnouncementExhausted reports whether the announcement file has
// finished playing. It is always false when no announcement was
// configured and stays true once the handoff to live capture happened.
func (s *Source) AnnouncementExhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exhausted
}

// ID returns the source's unique instance identifier.
func (s *Source) ID() string {
	return s.id
}

// Stats is a snapshot of pipeline activity.
type Stats struct {
	State          string
	Exhausted      bool
	BufferedSample int
	Buffer         audio.RingBufferStats
}

// Stats returns a snapshot of the source's current state and buffer
// counters.
func (s *Source) Stats() Stats {
	s.mu.Lock()
	buf := s.buf
	exhausted := s.exhausted
	s.mu.Unlock()

	stats := Stats{
		State:     s.lifecycle.Current(),
		Exhausted: exhausted,
	}
	if buf != nil {
		stats.BufferedSample = buf.Len()
		stats.Buffer = buf.Stats()
	}
	return stats
}

// Stop tears the source down. The scheduler is stopped and joined before
// anything it could still touch is released, then capture sources, the
// encoder, the effect chain, and finally the shared buffers go away.
// Stop is idempotent and safe to call on a partially started source.
func (s *Source) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}

	s.transition(eventStop)

	logrus.WithFields(logrus.Fields{
		"function": "Source.Stop",
		"source":   s.id,
	}).Info("Stopping transmit source")

	// Join the scheduling goroutine first; afterwards only capture
	// callbacks can run, and closing the devices ends those.
	s.mu.Lock()
	sched := s.sched
	s.mu.Unlock()
	if sched != nil {
		sched.stop()
	}

	s.mu.Lock()
	mic := s.mic
	ann := s.announcement
	s.mic = nil
	s.announcement = nil
	s.mu.Unlock()

	if mic != nil {
		if err := mic.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Source.Stop",
				"source":   s.id,
				"error":    err.Error(),
			}).Warn("Capture close failed")
		}
	}
	if ann != nil {
		if err := ann.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Source.Stop",
				"source":   s.id,
				"error":    err.Error(),
			}).Warn("Announcement close failed")
		}
	}

	if s.encoder != nil {
		if err := s.encoder.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Source.Stop",
				"source":   s.id,
				"error":    err.Error(),
			}).Warn("Encoder close failed")
		}
	}
	if s.effects != nil {
		s.effects.Close()
	}

	// All contexts that could touch the shared buffers are gone.
	s.mu.Lock()
	s.buf = nil
	s.resampler = nil
	s.scratch = nil
	s.mu.Unlock()

	s.transition(eventStopped)

	logrus.WithFields(logrus.Fields{
		"function": "Source.Stop",
		"source":   s.id,
	}).Info("Transmit source stopped")
}
