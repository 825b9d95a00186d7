package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryFindBuiltins(t *testing.T) {
	tests := []struct {
		name        string
		codecName   string
		payloadType uint8
		sampleRate  uint32
	}{
		{name: "mu-law", codecName: "PCMU", payloadType: 0, sampleRate: 8000},
		{name: "a-law", codecName: "PCMA", payloadType: 8, sampleRate: 8000},
		{name: "linear", codecName: "L16", payloadType: 97, sampleRate: 16000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Find(tt.codecName)
			require.NoError(t, err)
			assert.Equal(t, tt.codecName, c.Name())
			assert.Equal(t, tt.payloadType, c.PayloadType())
			assert.Equal(t, tt.sampleRate, c.SampleRate())
			assert.Equal(t, c.SampleRate(), c.ClockRate())
			assert.Equal(t, 1, c.Channels())
		})
	}
}

func TestRegistryFindUnknown(t *testing.T) {
	_, err := Find("G729")
	assert.Error(t, err)
}

func TestRegistryNamesSorted(t *testing.T) {
	names := Names()
	assert.Contains(t, names, "PCMU")
	assert.Contains(t, names, "PCMA")
	assert.Contains(t, names, "L16")
	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}
}

func TestResultConstructors(t *testing.T) {
	encoded := Encoded(160)
	assert.Equal(t, ResultEncoded, encoded.Kind)
	assert.Equal(t, 160, encoded.Length)

	partial := PartialConsume(320)
	assert.Equal(t, ResultPartialConsume, partial.Kind)
	assert.Equal(t, uint32(320), partial.Delta)
}
