// Package audiocast implements the transmit side of a multicast audio
// endpoint.
//
// A Source captures PCM audio from a pluggable capture module, optionally
// plays a one-shot WAV announcement first, and pushes packet-sized frames
// through a fixed pipeline: ring buffer, sample-rate/channel conversion,
// effect chain, codec encoding, RTP packetization. Finished payloads are
// handed to an application-supplied send callback, so the transport
// (multicast UDP, unicast, a recorder) stays outside the engine.
//
// # Getting Started
//
// Pick a codec, provide a sender, and start a source:
//
//	cdc, err := codec.Find("PCMU")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	writer, err := rtp.NewRTPWriter(conn, cdc.PayloadType())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	src, err := audiocast.Start(cdc, "announcement.wav", writer.Send,
//	    audiocast.WithConfig(cfg),
//	    audiocast.WithAnnouncementEndFunc(func() {
//	        fmt.Println("announcement done, live audio now")
//	    }),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer src.Stop()
//
// # Core Types
//
//   - [Source]: one running transmit pipeline
//   - [Option]: functional options for Start
//   - [Stats]: snapshot of pipeline and buffer counters
//
// # Transmit Modes
//
// Two scheduling strategies drive the pipeline, selected by configuration:
//
//   - poll: capture callbacks trigger a bounded burst of iterations
//     inline, so packets leave as soon as a full frame is buffered;
//   - thread: a dedicated goroutine paces iterations on a virtual clock
//     anchored at its first tick, one packet interval per iteration.
//
// # Announcements
//
// When Start is given a WAV path, the file's audio is transmitted first
// while the live capture source stays muted. At end of file the buffered
// announcement audio is flushed, the converter state is reset for the
// capture format, and live audio flows; the handoff happens exactly once
// and can be observed through WithAnnouncementEndFunc or
// [Source.AnnouncementExhausted].
//
// # Extending
//
// The engine is extensible at three seams, each a registry keyed by name:
//
//   - [codec.Register]: additional audio codecs
//   - [capture.Register]: additional capture modules
//   - [RegisterEffect]: additional encode-side effects
//
// # Thread Safety
//
// A Source is safe for concurrent use. Capture callbacks, the scheduling
// goroutine, and API calls may run from different goroutines; Stop joins
// the scheduler before releasing anything it could still touch.
package audiocast
