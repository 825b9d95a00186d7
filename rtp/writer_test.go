package rtp

import (
	"bytes"
	"errors"
	"testing"

	pionrtp "github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("socket gone") }

func TestNewRTPWriterValidation(t *testing.T) {
	_, err := NewRTPWriter(nil, 0)
	assert.Error(t, err)
}

func TestRTPWriterProducesValidPackets(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewRTPWriter(&buf, 0)
	require.NoError(t, err)

	payload := []byte{0xAA, 0xBB, 0xCC}
	require.NoError(t, w.Send(0, true, 12345, payload))

	var packet pionrtp.Packet
	require.NoError(t, packet.Unmarshal(buf.Bytes()))

	assert.Equal(t, uint8(2), packet.Version)
	assert.True(t, packet.Marker)
	assert.Equal(t, uint8(0), packet.PayloadType)
	assert.Equal(t, uint32(12345), packet.Timestamp)
	assert.Equal(t, w.SSRC(), packet.SSRC)
	assert.Equal(t, payload, packet.Payload)
}

func TestRTPWriterSequenceIncrements(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewRTPWriter(&buf, 8)
	require.NoError(t, err)

	var sequences []uint16
	for i := 0; i < 3; i++ {
		buf.Reset()
		require.NoError(t, w.Send(0, false, uint32(i*160), []byte{1}))

		var packet pionrtp.Packet
		require.NoError(t, packet.Unmarshal(buf.Bytes()))
		sequences = append(sequences, packet.SequenceNumber)
	}

	assert.Equal(t, sequences[0]+1, sequences[1])
	assert.Equal(t, sequences[1]+1, sequences[2])
}

func TestRTPWriterWriteErrorPropagates(t *testing.T) {
	w, err := NewRTPWriter(failingWriter{}, 0)
	require.NoError(t, err)

	err = w.Send(0, false, 0, []byte{1})
	assert.Error(t, err)

	packets, bytesSent := w.Stats()
	assert.Equal(t, uint64(0), packets)
	assert.Equal(t, uint64(0), bytesSent)
}

func TestRTPWriterStats(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewRTPWriter(&buf, 0)
	require.NoError(t, err)

	require.NoError(t, w.Send(0, false, 0, make([]byte, 160)))
	require.NoError(t, w.Send(0, false, 160, make([]byte, 160)))

	packets, bytesSent := w.Stats()
	assert.Equal(t, uint64(2), packets)
	assert.Equal(t, uint64(2*(12+160)), bytesSent, "12-byte RTP header plus payload per packet")
}
