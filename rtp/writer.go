// Package rtp provides RTP payload staging for the transmit pipeline.
//
// This file implements RTPWriter, a ready-made Sender that wraps payloads
// in full RTP packets using pion/rtp and writes them to an io.Writer,
// typically a UDP connection joined to a multicast group. It lives behind
// the SendFunc boundary: deployments with their own transport stack simply
// supply a different callback.
package rtp

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

// RTPWriter marshals payloads into RTP packets and writes them out.
type RTPWriter struct {
	mu          sync.Mutex
	w           io.Writer
	ssrc        uint32
	payloadType uint8
	sequence    uint16

	packetsSent uint64
	bytesSent   uint64
}

// NewRTPWriter creates a writer with a random SSRC for the stream.
func NewRTPWriter(w io.Writer, payloadType uint8) (*RTPWriter, error) {
	if w == nil {
		return nil, fmt.Errorf("writer cannot be nil")
	}

	ssrcBytes := make([]byte, 4)
	if _, err := rand.Read(ssrcBytes); err != nil {
		return nil, fmt.Errorf("failed to generate SSRC: %w", err)
	}
	ssrc := binary.BigEndian.Uint32(ssrcBytes)

	logrus.WithFields(logrus.Fields{
		"function":     "NewRTPWriter",
		"ssrc":         ssrc,
		"payload_type": payloadType,
	}).Info("Creating RTP writer")

	return &RTPWriter{
		w:           w,
		ssrc:        ssrc,
		payloadType: payloadType,
	}, nil
}

// Send implements SendFunc: it builds one RTP packet around the payload
// and writes the marshaled bytes.
func (w *RTPWriter) Send(extLen int, marker bool, timestamp uint32, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	packet := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         marker,
			PayloadType:    w.payloadType,
			SequenceNumber: w.sequence,
			Timestamp:      timestamp,
			SSRC:           w.ssrc,
		},
		Payload: payload,
	}

	data, err := packet.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal RTP packet: %w", err)
	}

	if _, err := w.w.Write(data); err != nil {
		return fmt.Errorf("failed to write RTP packet: %w", err)
	}

	w.sequence++
	w.packetsSent++
	w.bytesSent += uint64(len(data))

	logrus.WithFields(logrus.Fields{
		"function":  "RTPWriter.Send",
		"sequence":  packet.SequenceNumber,
		"timestamp": timestamp,
		"marker":    marker,
		"bytes":     len(data),
	}).Debug("RTP packet written")

	return nil
}

// SSRC returns the stream's synchronization source identifier.
func (w *RTPWriter) SSRC() uint32 {
	return w.ssrc
}

// Stats returns the packets and bytes written so far.
func (w *RTPWriter) Stats() (packets, bytes uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.packetsSent, w.bytesSent
}
