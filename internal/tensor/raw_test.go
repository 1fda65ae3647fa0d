package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRaw(t *testing.T) {
	raw, err := NewRaw(Shape{3, 2}, Int64)
	require.NoError(t, err)

	assert.Equal(t, 6, raw.NumElements())
	assert.Equal(t, 48, raw.ByteSize())
	assert.Equal(t, []int{2, 1}, raw.Strides())
	assert.Equal(t, 2, raw.Rank())

	_, err = NewRaw(Shape{3, 0}, Float32)
	assert.Error(t, err)
}

func TestRawTensorAsInt64(t *testing.T) {
	raw, _ := NewRaw(Shape{3, 2}, Int64)
	data := raw.AsInt64()

	if len(data) != 6 {
		t.Errorf("AsInt64 length = %d, want 6", len(data))
	}

	// Modify and verify zero-copy
	data[0] = 42
	if raw.AsInt64()[0] != 42 {
		t.Error("AsInt64 should return zero-copy slice")
	}
}

func TestRawTensorAsWrongType(t *testing.T) {
	raw, _ := NewRaw(Shape{4}, Float32)
	assert.Panics(t, func() { raw.AsFloat64() })
}

func TestRawTensorByteAsUint8(t *testing.T) {
	raw, err := FromBytes([]byte{1, 2, 3}, Shape{3}, Byte)
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 2, 3}, raw.AsUint8())
}

func TestFromSlice(t *testing.T) {
	raw, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	require.NoError(t, err)

	assert.Equal(t, Float32, raw.DType())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, raw.AsFloat32())

	_, err = FromSlice([]float32{1, 2}, Shape{2, 3})
	assert.Error(t, err)
}

func TestFromBytesSizeMismatch(t *testing.T) {
	_, err := FromBytes(make([]byte, 10), Shape{2, 2}, Float32)
	assert.Error(t, err)
}

func TestRawTensorCopyIsDeep(t *testing.T) {
	raw, _ := FromSlice([]int32{1, 2, 3}, Shape{3})
	cp := raw.Copy()
	require.True(t, raw.Equal(cp))

	cp.AsInt32()[0] = 99
	assert.Equal(t, int32(1), raw.AsInt32()[0])
	assert.False(t, raw.Equal(cp))
}

func TestRawTensorEqual(t *testing.T) {
	a, _ := FromSlice([]uint16{1, 2, 3, 4}, Shape{2, 2})
	b, _ := FromSlice([]uint16{1, 2, 3, 4}, Shape{4})
	c, _ := FromSlice([]int16{1, 2, 3, 4}, Shape{2, 2})

	assert.True(t, a.Equal(a.Copy()))
	assert.False(t, a.Equal(b), "shape differs")
	assert.False(t, a.Equal(c), "dtype differs")
	assert.False(t, a.Equal(nil))
}

func TestParseDataType(t *testing.T) {
	for _, dt := range []DataType{Byte, Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64, Float32, Float64, Bool} {
		got, err := ParseDataType(dt.String())
		require.NoError(t, err)
		assert.Equal(t, dt, got)
	}

	got, err := ParseDataType("double")
	require.NoError(t, err)
	assert.Equal(t, Float64, got)

	_, err = ParseDataType("complex128")
	assert.Error(t, err)
}
