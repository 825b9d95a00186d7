package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestG711EncodeProducesOneBytePerSample(t *testing.T) {
	for _, name := range []string{"PCMU", "PCMA"} {
		t.Run(name, func(t *testing.T) {
			c, err := Find(name)
			require.NoError(t, err)
			enc, err := c.NewEncoder()
			require.NoError(t, err)
			defer enc.Close()

			pcm := make([]int16, 160)
			for i := range pcm {
				pcm[i] = int16(i * 50)
			}

			dst := make([]byte, 160)
			marker := true
			result, err := enc.Encode(dst, &marker, pcm)
			require.NoError(t, err)
			assert.Equal(t, ResultEncoded, result.Kind)
			assert.Equal(t, 160, result.Length)
			assert.True(t, marker, "companding codecs never touch the marker")
		})
	}
}

func TestG711EncodeBufferTooSmall(t *testing.T) {
	c, err := Find("PCMU")
	require.NoError(t, err)
	enc, err := c.NewEncoder()
	require.NoError(t, err)

	dst := make([]byte, 10)
	_, err = enc.Encode(dst, nil, make([]int16, 160))
	assert.Error(t, err)
}

func TestLinearToUlawKnownValues(t *testing.T) {
	tests := []struct {
		name     string
		sample   int16
		expected uint8
	}{
		{name: "zero", sample: 0, expected: 0xFF},
		{name: "max positive", sample: 32767, expected: 0x80},
		{name: "max negative", sample: -32768, expected: 0x00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, linearToUlaw(tt.sample))
		})
	}
}

func TestLinearToUlawSymmetry(t *testing.T) {
	// Positive and negative samples of equal magnitude differ only in the
	// sign bit.
	for _, s := range []int16{100, 1000, 10000, 30000} {
		pos := linearToUlaw(s)
		neg := linearToUlaw(-s)
		assert.Equal(t, pos&0x7F, neg&0x7F, "magnitude bits must match for %d", s)
		assert.NotEqual(t, pos&0x80, neg&0x80, "sign bits must differ for %d", s)
	}
}

func TestLinearToAlawKnownValues(t *testing.T) {
	// A-law XORs with 0x55 and uses inverted sign convention relative to
	// mu-law.
	assert.Equal(t, uint8(0xD5), linearToAlaw(0))
	assert.Equal(t, uint8(0xAA), linearToAlaw(32767))
	assert.Equal(t, uint8(0x2A), linearToAlaw(-32768))
}

func TestLinearToAlawMonotoneInMagnitude(t *testing.T) {
	// Companded codes, masked to magnitude bits, never decrease as the
	// linear sample grows.
	var prevMag uint8
	for s := int32(0); s <= 32767; s += 257 {
		code := linearToAlaw(int16(s))
		mag := (code ^ 0x55) & 0x7F
		assert.GreaterOrEqual(t, mag, prevMag, "magnitude code regressed at sample %d", s)
		prevMag = mag
	}
}

func TestL16EncodeBigEndian(t *testing.T) {
	c, err := Find("L16")
	require.NoError(t, err)
	enc, err := c.NewEncoder()
	require.NoError(t, err)
	defer enc.Close()

	dst := make([]byte, 8)
	result, err := enc.Encode(dst, nil, []int16{0x0102, -2})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Length)
	assert.Equal(t, []byte{0x01, 0x02, 0xFF, 0xFE}, dst[:4])
}

func TestL16EncodeBufferTooSmall(t *testing.T) {
	c, err := Find("L16")
	require.NoError(t, err)
	enc, err := c.NewEncoder()
	require.NoError(t, err)

	_, err = enc.Encode(make([]byte, 3), nil, []int16{1, 2})
	assert.Error(t, err)
}
