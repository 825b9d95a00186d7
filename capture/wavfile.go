// Package capture defines the audio capture collaborator contract and the
// built-in capture devices.
//
// This file implements the announcement file source. It reads a PCM-16
// WAV file and delivers one packet-time worth of samples per tick at the
// file's native rate. Reaching the end of the file is a normal event, not
// an error: the final short frame is zero-padded to full length, delivered,
// and then the error callback fires once with CodeEOF so the pipeline can
// hand over to the live capture path.
package capture

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audiocast/audio"
)

// wavFormat is the PCM description parsed from a WAV fmt chunk.
type wavFormat struct {
	AudioFormat   uint16 // 1 = PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// maxWavChunks bounds the chunk walk so a garbage file cannot keep the
// parser busy indefinitely.
const maxWavChunks = 32

// WavFileSource plays a WAV file into the pipeline once.
type WavFileSource struct {
	params Params
	readFn ReadFunc
	errFn  ErrorFunc
	file   *os.File
	data   io.Reader // data chunk, bounded by the header's size

	stopOnce  sync.Once
	closeOnce sync.Once
	closeErr  error
	stop      chan struct{}
	done      chan struct{}
}

// OpenWavFile opens a PCM-16 WAV file as a paced capture source.
//
// The returned Params carry the file's native sample rate and channel
// count; the caller decides whether that format is acceptable before
// frames start flowing (delivery begins immediately after a successful
// open, matching hardware capture devices).
func OpenWavFile(path string, ptime time.Duration, readFn ReadFunc, errFn ErrorFunc) (*WavFileSource, Params, error) {
	logrus.WithFields(logrus.Fields{
		"function": "OpenWavFile",
		"path":     path,
		"ptime_ms": ptime.Milliseconds(),
	}).Info("Opening announcement file")

	file, err := os.Open(path)
	if err != nil {
		return nil, Params{}, fmt.Errorf("failed to open announcement file: %w", err)
	}

	format, dataSize, err := readWavHeader(file)
	if err != nil {
		file.Close()
		return nil, Params{}, err
	}

	params := Params{
		Rate:     format.SampleRate,
		Channels: int(format.NumChannels),
		Ptime:    ptime,
		Device:   path,
	}

	src := &WavFileSource{
		params: params,
		readFn: readFn,
		errFn:  errFn,
		file:   file,
		data:   io.LimitReader(file, int64(dataSize)),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	logrus.WithFields(logrus.Fields{
		"function":   "OpenWavFile",
		"path":       path,
		"rate":       params.Rate,
		"channels":   params.Channels,
		"data_bytes": dataSize,
	}).Info("Announcement file opened")

	go src.run()
	return src, params, nil
}

// readWavHeader parses a RIFF/WAVE stream up to its data chunk and
// validates the PCM format. Unknown chunks between fmt and data (LIST,
// INFO, fact and friends, common from real encoders) are skipped. On
// return the reader is positioned at the first data byte.
func readWavHeader(r io.Reader) (*wavFormat, uint32, error) {
	riff := make([]byte, 12)
	if _, err := io.ReadFull(r, riff); err != nil {
		return nil, 0, fmt.Errorf("WAV header too short: %w", err)
	}
	if string(riff[0:4]) != "RIFF" {
		return nil, 0, fmt.Errorf("invalid WAV file: missing RIFF header")
	}
	if string(riff[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("invalid WAV file: missing WAVE format")
	}

	var format *wavFormat
	chunk := make([]byte, 8)
	for i := 0; i < maxWavChunks; i++ {
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, 0, fmt.Errorf("invalid WAV file: data chunk not found: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("invalid WAV fmt chunk size: %d", size)
			}
			raw := make([]byte, 16)
			if _, err := io.ReadFull(r, raw); err != nil {
				return nil, 0, fmt.Errorf("WAV fmt chunk too short: %w", err)
			}
			format = &wavFormat{}
			if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, format); err != nil {
				return nil, 0, fmt.Errorf("failed to parse WAV fmt chunk: %w", err)
			}
			if err := skipWavBytes(r, size-16); err != nil {
				return nil, 0, err
			}
		case "data":
			if format == nil {
				return nil, 0, fmt.Errorf("invalid WAV file: data chunk before fmt chunk")
			}
			if err := validateWavFormat(format); err != nil {
				return nil, 0, err
			}
			return format, size, nil
		default:
			if err := skipWavBytes(r, size); err != nil {
				return nil, 0, err
			}
		}
	}

	return nil, 0, fmt.Errorf("invalid WAV file: data chunk not found")
}

// skipWavBytes discards a chunk body. RIFF chunks are word aligned, so an
// odd size carries one trailing pad byte.
func skipWavBytes(r io.Reader, size uint32) error {
	skip := int64(size)
	if size%2 == 1 {
		skip++
	}
	if skip == 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, skip); err != nil {
		return fmt.Errorf("truncated WAV chunk: %w", err)
	}
	return nil
}

// validateWavFormat checks the fmt chunk against what the pipeline can
// carry. The sample rate ceiling matters: downstream scratch buffers are
// sized for the maximum supported format, so a faster file must be
// rejected here rather than overflow them later.
func validateWavFormat(f *wavFormat) error {
	if f.AudioFormat != 1 {
		return fmt.Errorf("unsupported WAV audio format: %d (only PCM)", f.AudioFormat)
	}
	if f.BitsPerSample != 16 {
		return fmt.Errorf("unsupported WAV bit depth: %d (only 16)", f.BitsPerSample)
	}
	if f.NumChannels < 1 || f.NumChannels > audio.MaxChannels {
		return fmt.Errorf("unsupported WAV channel count: %d", f.NumChannels)
	}
	if f.SampleRate == 0 || f.SampleRate > audio.MaxSampleRate {
		return fmt.Errorf("unsupported WAV sample rate: %d (max %d)", f.SampleRate, audio.MaxSampleRate)
	}
	return nil
}

func (s *WavFileSource) run() {
	defer close(s.done)

	frameSamples := s.params.FrameSamples()
	raw := make([]byte, frameSamples*audio.BytesPerSample)
	frame := make([]int16, frameSamples)

	ticker := time.NewTicker(s.params.Ptime)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			n, err := io.ReadFull(s.data, raw)
			if n > 0 {
				// Zero-pad a short final frame to full packet length.
				for i := n; i < len(raw); i++ {
					raw[i] = 0
				}
				for i := range frame {
					frame[i] = int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
				}
				s.readFn(audio.Frame{
					Samples:  frame,
					Rate:     s.params.Rate,
					Channels: s.params.Channels,
				})
			}
			if err != nil || n == 0 {
				logrus.WithFields(logrus.Fields{
					"function": "WavFileSource.run",
					"path":     s.params.Device,
				}).Info("Announcement file reached end of data")
				s.errFn(CodeEOF, "end of file")
				return
			}
		}
	}
}

// Close stops playback and releases the file. Safe to call after EOF and
// more than once.
func (s *WavFileSource) Close() error {
	s.stopOnce.Do(func() {
		logrus.WithFields(logrus.Fields{
			"function": "WavFileSource.Close",
			"path":     s.params.Device,
		}).Debug("Closing announcement file source")
		close(s.stop)
	})
	<-s.done
	s.closeOnce.Do(func() {
		s.closeErr = s.file.Close()
	})
	return s.closeErr
}
