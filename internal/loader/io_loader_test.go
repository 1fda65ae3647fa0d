package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/dataset/internal/errors"
	"github.com/born-ml/dataset/internal/options"
	"github.com/born-ml/dataset/internal/source"
	"github.com/born-ml/dataset/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeRaw dumps raw's bytes to dir/name and returns the path.
func writeRaw(t *testing.T, dir, name string, raw *tensor.RawTensor) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, raw.Data(), 0o600))
	return path
}

func TestIOLoaderTemplate(t *testing.T) {
	want := iota(t, tensor.Shape{3, 4}, 1)
	path := writeRaw(t, t.TempDir(), "a.f32", want)

	l := build(t, newTestRegistry(t, nil), IOLoaderID, map[string]interface{}{
		KeyPath:                  path,
		"io_loader:use_template": true,
		"io_loader:dims":         []int{3, 4},
		"io_loader:dtype":        "float32",
	})

	n, err := l.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := l.LoadData(0)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))

	md, err := l.LoadMetadata(0)
	require.NoError(t, err)
	v, _ := md.Get(KeyDims)
	assert.Equal(t, []int{3, 4}, v)
	v, _ = md.Get(KeyDType)
	assert.Equal(t, tensor.Float32, v)
	v, _ = md.Get(KeyPath)
	assert.Equal(t, path, v)

	_, err = l.LoadData(1)
	assert.True(t, errors.Is(err, errors.ErrIndexOutOfRange), "%v", err)
}

func TestIOLoaderWithoutTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.bin")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3, 4, 5}, 0o600))

	l := build(t, newTestRegistry(t, nil), IOLoaderID, map[string]interface{}{KeyPath: path})
	got, err := l.LoadData(0)
	require.NoError(t, err)
	assert.Equal(t, tensor.Byte, got.DType())
	assert.Equal(t, []uint8{1, 2, 3, 4, 5}, got.AsUint8())

	md, err := l.LoadMetadata(0)
	require.NoError(t, err)
	v, _ := md.Get(KeyDims)
	assert.Equal(t, []int{5}, v)
}

func TestIOLoaderSafeTensors(t *testing.T) {
	weights := iota(t, tensor.Shape{2, 3}, 0)
	bias := iota(t, tensor.Shape{3}, 100)
	path := filepath.Join(t.TempDir(), "model.safetensors")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, source.WriteSafeTensors(f, map[string]*tensor.RawTensor{"weights": weights, "bias": bias}, nil))
	require.NoError(t, f.Close())

	l := build(t, newTestRegistry(t, nil), IOLoaderID, map[string]interface{}{
		KeyPath:              path,
		"io_loader:plugin":   source.SafeTensorsID,
		"safetensors:tensor": "bias",
	})
	got, err := l.LoadData(0)
	require.NoError(t, err)
	assert.True(t, bias.Equal(got))

	md, err := l.LoadMetadata(0)
	require.NoError(t, err)
	v, _ := md.Get(KeyDType)
	assert.Equal(t, tensor.Float32, v)
}

func TestIOLoaderErrors(t *testing.T) {
	reg := newTestRegistry(t, nil)

	l := build(t, reg, IOLoaderID, nil)
	_, err := l.LoadData(0)
	assert.True(t, errors.Is(err, errors.ErrInvalidOption), "unset path: %v", err)

	err = l.SetOptions(options.FromMap(map[string]interface{}{"io_loader:plugin": "hdf5"}))
	assert.True(t, errors.Is(err, errors.ErrMissingSubLoader), "%v", err)

	l = build(t, reg, IOLoaderID, map[string]interface{}{
		KeyPath:                  filepath.Join(t.TempDir(), "missing"),
		"io_loader:use_template": true,
	})
	_, err = l.LoadData(0)
	assert.True(t, errors.Is(err, errors.ErrInvalidOption), "template without dims: %v", err)

	require.NoError(t, l.SetOptions(options.FromMap(map[string]interface{}{"io_loader:dims": []int{2}})))
	_, err = l.LoadData(0)
	assert.True(t, errors.Is(err, errors.ErrSourceReadFailed), "missing file: %v", err)

	err = l.SetOptions(options.FromMap(map[string]interface{}{"io_loader:dtype": "complex"}))
	assert.True(t, errors.Is(err, errors.ErrInvalidOption), "%v", err)
}

func TestIOLoaderGGUFPlugin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.gguf")
	require.NoError(t, os.WriteFile(path, make([]byte, 32), 0o600))

	l := build(t, newTestRegistry(t, nil), IOLoaderID, map[string]interface{}{
		KeyPath:            path,
		"io_loader:plugin": source.GGUFID,
		"gguf:tensor":      "token_embd.weight",
	})
	v, _ := l.Options().Get("gguf:tensor")
	assert.Equal(t, "token_embd.weight", v)

	_, err := l.LoadData(0)
	assert.True(t, errors.Is(err, errors.ErrSourceReadFailed), "not a gguf file: %v", err)
}

func TestIOLoaderHDF5Plugin(t *testing.T) {
	want := iota(t, tensor.Shape{2, 3}, 1)
	path := filepath.Join(t.TempDir(), "grid.h5")
	require.NoError(t, source.WriteHDF5(path, map[string]*tensor.RawTensor{
		"temperature": want,
		"pressure":    iota(t, tensor.Shape{4}, 0),
	}))

	l := build(t, newTestRegistry(t, nil), IOLoaderID, map[string]interface{}{
		KeyPath:                  path,
		"io_loader:plugin":       source.HDF5ID,
		"hdf5:dataset":           "temperature",
		"io_loader:use_template": true,
		"io_loader:dims":         []int{2, 3},
		"io_loader:dtype":        tensor.Float32,
	})
	v, _ := l.Options().Get("hdf5:dataset")
	assert.Equal(t, "temperature", v)

	got, err := l.LoadData(0)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))

	require.NoError(t, l.SetOptions(options.FromMap(map[string]interface{}{"hdf5:dataset": "humidity"})))
	_, err = l.LoadData(0)
	assert.True(t, errors.Is(err, errors.ErrSourceReadFailed), "missing dataset: %v", err)
}
