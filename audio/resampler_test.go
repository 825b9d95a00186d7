package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResamplerEnsureConfigured(t *testing.T) {
	tests := []struct {
		name    string
		inRate  uint32
		inCh    int
		outRate uint32
		outCh   int
		wantErr error
	}{
		{name: "identity", inRate: 16000, inCh: 1, outRate: 16000, outCh: 1},
		{name: "upsample 8k to 16k", inRate: 8000, inCh: 1, outRate: 16000, outCh: 1},
		{name: "downsample 48k to 16k", inRate: 48000, inCh: 1, outRate: 16000, outCh: 1},
		{name: "stereo to mono", inRate: 16000, inCh: 2, outRate: 16000, outCh: 1},
		{name: "mono to stereo", inRate: 16000, inCh: 1, outRate: 16000, outCh: 2},
		{name: "non-integer ratio rejected", inRate: 44100, inCh: 1, outRate: 16000, outCh: 1, wantErr: ErrUnsupportedRatio},
		{name: "zero input rate rejected", inRate: 0, inCh: 1, outRate: 16000, outCh: 1, wantErr: nil},
		{name: "three channels rejected", inRate: 16000, inCh: 3, outRate: 16000, outCh: 1, wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResampler(4096)
			err := r.EnsureConfigured(tt.inRate, tt.inCh, tt.outRate, tt.outCh)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.inRate == 0 || tt.inCh > MaxChannels:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestResamplerReconfigureIsNoOpForSameFormat(t *testing.T) {
	r := NewResampler(4096)
	require.NoError(t, r.EnsureConfigured(8000, 1, 16000, 1))

	// Advance internal state, then re-request the same configuration.
	_, err := r.Resample(make([]int16, 160))
	require.NoError(t, err)

	require.NoError(t, r.EnsureConfigured(8000, 1, 16000, 1))
	rate, ch := r.Configured()
	assert.Equal(t, uint32(8000), rate)
	assert.Equal(t, 1, ch)
}

func TestResamplerBypass(t *testing.T) {
	r := NewResampler(4096)
	require.NoError(t, r.EnsureConfigured(16000, 1, 16000, 1))
	assert.True(t, r.Bypassed())

	in := []int16{1, 2, 3, 4}
	out, err := r.Resample(in)
	require.NoError(t, err)
	assert.Same(t, &in[0], &out[0], "bypass must return the input slice itself")
}

func TestResamplerNotConfigured(t *testing.T) {
	r := NewResampler(4096)
	_, err := r.Resample([]int16{1, 2, 3})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestResamplerUpsampleDoublesFrameCount(t *testing.T) {
	r := NewResampler(4096)
	require.NoError(t, r.EnsureConfigured(8000, 1, 16000, 1))

	in := make([]int16, 160) // 20 ms at 8 kHz
	for i := range in {
		in[i] = int16(i * 100)
	}

	out, err := r.Resample(in)
	require.NoError(t, err)
	assert.Len(t, out, 320, "8k to 16k doubles the sample count")

	// Linear interpolation preserves the ramp's monotonicity.
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i], out[i-1])
	}
}

func TestResamplerDownsampleHalvesFrameCount(t *testing.T) {
	r := NewResampler(4096)
	require.NoError(t, r.EnsureConfigured(16000, 1, 8000, 1))

	in := make([]int16, 320)
	for i := range in {
		in[i] = int16(i)
	}

	out, err := r.Resample(in)
	require.NoError(t, err)
	assert.Len(t, out, 160)
}

func TestResamplerMonoToStereo(t *testing.T) {
	r := NewResampler(4096)
	require.NoError(t, r.EnsureConfigured(16000, 1, 16000, 2))

	out, err := r.Resample([]int16{100, 200, 300})
	require.NoError(t, err)
	assert.Equal(t, []int16{100, 100, 200, 200, 300, 300}, out)
}

func TestResamplerStereoToMonoAverages(t *testing.T) {
	r := NewResampler(4096)
	require.NoError(t, r.EnsureConfigured(16000, 2, 16000, 1))

	out, err := r.Resample([]int16{100, 200, -100, 100})
	require.NoError(t, err)
	assert.Equal(t, []int16{150, 0}, out)
}

func TestResamplerCombinedRateAndChannelConversion(t *testing.T) {
	r := NewResampler(8192)
	require.NoError(t, r.EnsureConfigured(8000, 2, 16000, 1))

	// 20 ms stereo at 8 kHz: 160 frames, 320 interleaved samples.
	in := make([]int16, 320)
	out, err := r.Resample(in)
	require.NoError(t, err)
	assert.Len(t, out, 320, "160 frames upsampled to 320 mono samples")
}

func TestResamplerResetForcesReconfiguration(t *testing.T) {
	r := NewResampler(4096)
	require.NoError(t, r.EnsureConfigured(8000, 1, 16000, 1))

	r.Reset()
	rate, _ := r.Configured()
	assert.Equal(t, uint32(0), rate)

	_, err := r.Resample([]int16{1, 2})
	assert.ErrorIs(t, err, ErrNotConfigured)

	// A fresh configuration works after the reset.
	require.NoError(t, r.EnsureConfigured(48000, 1, 16000, 1))
	out, err := r.Resample(make([]int16, 960))
	require.NoError(t, err)
	assert.Len(t, out, 320)
}
