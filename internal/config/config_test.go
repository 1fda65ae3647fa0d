package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/born-ml/dataset/internal/errors"
	"github.com/born-ml/dataset/internal/loader"
	"github.com/born-ml/dataset/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pipelineTOML = `
loader = "block_slicer"
name = "tiles"

[options]
"block_slicer:block_size" = [2, 2]
"block_slicer:loader" = "folder"

[options.folder]
regex = '.*\.f32'

[options.io_loader]
use_template = true
dims = [4, 4]
dtype = "float32"

[options."/tiles".block_slicer]
loader_name = "files"
`

func TestLoadFlattensTables(t *testing.T) {
	p, err := Load(strings.NewReader(pipelineTOML))
	require.NoError(t, err)

	assert.Equal(t, "block_slicer", p.Loader)
	assert.Equal(t, "tiles", p.Name)

	want := []string{
		"/tiles:block_slicer:loader_name",
		"block_slicer:block_size",
		"block_slicer:loader",
		"folder:regex",
		"io_loader:dims",
		"io_loader:dtype",
		"io_loader:use_template",
	}
	assert.Equal(t, want, p.Options.Keys())

	v, _ := p.Options.Get("folder:regex")
	assert.Equal(t, `.*\.f32`, v)
}

func TestBuildPipeline(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		data := make([]float32, 16)
		raw, err := tensor.FromSlice(data, tensor.Shape{4, 4})
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a"+string(rune('0'+i))+".f32"), raw.Data(), 0o600))
	}

	p, err := Load(strings.NewReader(pipelineTOML))
	require.NoError(t, err)
	p.Options.Set("/files:folder:base_dir", dir)

	l, err := p.Build(loader.NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, "tiles", l.Name())

	n, err := l.Count()
	require.NoError(t, err)
	assert.Equal(t, 2*4, n)

	md, err := l.LoadMetadata(0)
	require.NoError(t, err)
	v, ok := md.Get("/tiles:" + loader.KeyDims)
	require.True(t, ok)
	assert.Equal(t, []int{2, 2}, v)
	_, ok = md.Get("/files:" + loader.KeyDims)
	assert.True(t, ok)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.toml")
	require.NoError(t, os.WriteFile(path, []byte(pipelineTOML), 0o600))

	p, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "block_slicer", p.Loader)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.True(t, errors.Is(err, errors.ErrInvalidOption), "%v", err)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no loader", `name = "x"`},
		{"loader not a string", `loader = 3`},
		{"unknown key", "loader = \"cache\"\nextra = 1"},
		{"options not a table", "loader = \"cache\"\noptions = 1"},
		{"syntax", `loader = `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			assert.True(t, errors.Is(err, errors.ErrInvalidOption), "%v", err)
		})
	}
}

func TestBuildUnknownLoader(t *testing.T) {
	p, err := Load(strings.NewReader(`loader = "hdf5"`))
	require.NoError(t, err)
	_, err = p.Build(loader.NewRegistry())
	assert.True(t, errors.Is(err, errors.ErrMissingSubLoader), "%v", err)
}
