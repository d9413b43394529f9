// internal/codec/codec_test.go
package codec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWidthFor(t *testing.T) {
	assert.Equal(t, 1, WidthFor(0, 100))
	assert.Equal(t, 1, WidthFor(1, 256))
	assert.Equal(t, 1, WidthFor(0, 65535))
	assert.Equal(t, 2, WidthFor(0, 65536))
	assert.Equal(t, 2, WidthFor(-5000000, 5000000))
	assert.Equal(t, 2, WidthFor(1, 2560000))
	assert.Equal(t, 2, WidthFor(math.MinInt32, math.MaxInt32))
}

func TestRoundTrip_IntegerFields(t *testing.T) {
	fields := []Field{
		IntField(0x0029, 0, 100),
		IntField(0x0048, 1, 256),
		IntField(0x0078, -5000000, 5000000),
		IntField(0x008B, 1, 2560000),
		IntField(0x0057, math.MinInt32, math.MaxInt32),
	}

	for _, f := range fields {
		for _, v := range []float64{f.Min, f.Max, math.Trunc((f.Min + f.Max) / 2), f.Min + 1} {
			words, packed := f.Encode(v)
			require.Len(t, words, f.Width)
			require.Equal(t, v, packed)

			got, err := f.Decode(words)
			require.NoError(t, err)
			assert.Equal(t, v, got, "field 0x%04X value %g", f.Address, v)
		}
	}
}

func TestRoundTrip_Float32(t *testing.T) {
	f := FloatField(0xA000, 0, math.MaxFloat32)

	for _, v := range []float64{0, 0.5, 1.25, 500, 12345.5, float64(float32(3.3))} {
		words, _ := f.Encode(v)
		got, err := f.Decode(words)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestEncode_Float32BigEndian(t *testing.T) {
	f := FloatField(0xA000, 0, math.MaxFloat32)

	words, packed := f.Encode(500.0)
	assert.Equal(t, []uint16{0x43FA, 0x0000}, words)
	assert.Equal(t, 500.0, packed)
}

func TestEncode_OutOfRangeMatchesClamped(t *testing.T) {
	f := IntField(0x0078, -5000000, 5000000)

	hi, _ := f.Encode(9000000)
	max, _ := f.Encode(5000000)
	assert.Equal(t, max, hi)

	lo, _ := f.Encode(-9000000)
	min, _ := f.Encode(-5000000)
	assert.Equal(t, min, lo)

	single := IntField(0x0029, 0, 100)
	over, packed := single.Encode(250)
	assert.Equal(t, []uint16{100}, over)
	assert.Equal(t, 100.0, packed)
}

func TestEncode_ZeroRangeAlwaysZero(t *testing.T) {
	f := IntField(0x0021, 0, 0)

	words, packed := f.Encode(7)
	assert.Equal(t, []uint16{0}, words)
	assert.Equal(t, 0.0, packed)
}

func TestEncode_LowWordFirst(t *testing.T) {
	f := IntField(0x0078, -5000000, 5000000)

	words, _ := f.Encode(0x00012345)
	assert.Equal(t, []uint16{0x2345, 0x0001}, words)

	neg, _ := f.Encode(-1)
	assert.Equal(t, []uint16{0xFFFF, 0xFFFF}, neg)
}

func TestDecode_SignCorrection(t *testing.T) {
	f := IntField(0x0057, math.MinInt32, math.MaxInt32)

	v, err := f.Decode([]uint16{0xFFFF, 0xFFFF})
	require.NoError(t, err)
	assert.Equal(t, -1.0, v)

	v, err = f.Decode([]uint16{0x0000, 0x8000})
	require.NoError(t, err)
	assert.Equal(t, float64(math.MinInt32), v)
}

func TestDecode_Arity(t *testing.T) {
	f := IntField(0x0057, math.MinInt32, math.MaxInt32)

	_, err := f.Decode([]uint16{1})
	assert.ErrorIs(t, err, ErrArity)

	_, err = f.Decode([]uint16{1, 2, 3})
	assert.ErrorIs(t, err, ErrArity)

	bad := Field{Address: 1, Width: 3}
	_, err = bad.Decode([]uint16{1, 2, 3})
	assert.ErrorIs(t, err, ErrArity)
}

func TestClip(t *testing.T) {
	f := IntField(0x0067, 0, 100)

	v, clipped := f.Clip(50)
	assert.False(t, clipped)
	assert.Equal(t, 50.0, v)

	v, clipped = f.Clip(-3)
	assert.True(t, clipped)
	assert.Equal(t, 0.0, v)

}

func TestClip_NaNGoesToValueNearestZero(t *testing.T) {
	tests := []struct {
		name     string
		min, max float64
		want     float64
	}{
		{"signed range", -5000000, 5000000, 0},
		{"zero floor", 0, 100, 0},
		{"positive range", 1, 256, 1},
		{"negative range", -10, -5, -5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, clipped := IntField(0x0078, tt.min, tt.max).Clip(math.NaN())
			assert.True(t, clipped)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestEncode_NaNNeverPacksMin(t *testing.T) {
	f := IntField(0x0078, -5000000, 5000000)

	words, packed := f.Encode(math.NaN())
	assert.Equal(t, 0.0, packed)
	assert.Equal(t, []uint16{0, 0}, words)
}

func TestRangeError_Message(t *testing.T) {
	err := &RangeError{Value: 120, Min: 0, Max: 100, Clipped: 100}
	assert.Contains(t, err.Error(), "clipped to 100")
}
