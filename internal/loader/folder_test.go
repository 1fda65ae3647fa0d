package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/dataset/internal/errors"
	"github.com/born-ml/dataset/internal/options"
	"github.com/born-ml/dataset/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// folderFixture creates matching files s<i>-<FIELD>.bin holding [2]float32
// arrays plus a few files and directories that should never match.
func folderFixture(t *testing.T) (string, []*tensor.RawTensor) {
	t.Helper()
	dir := t.TempDir()
	fields := []string{"CLOUD", "PRECIP", "TEMP"}
	var arrays []*tensor.RawTensor
	for i, field := range fields {
		raw := iota(t, tensor.Shape{2}, float32(10*i))
		writeRaw(t, dir, "s"+string(rune('1'+i))+"-"+field+".bin", raw)
		arrays = append(arrays, raw)
	}
	writeRaw(t, dir, "README.txt", iota(t, tensor.Shape{1}, 0))
	writeRaw(t, dir, "s9-lower.bin", iota(t, tensor.Shape{1}, 0))
	writeRaw(t, dir, "nested/s4-WIND.bin", iota(t, tensor.Shape{2}, 30))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "s5-DIR.bin"), 0o750))
	return dir, arrays
}

func folderOptions(dir string, extra map[string]interface{}) map[string]interface{} {
	return merge(map[string]interface{}{
		"folder:base_dir":        dir,
		"folder:regex":           `.*/s(\d+)-([A-Z]+)\.bin`,
		"io_loader:use_template": true,
		"io_loader:dims":         []int{2},
		"io_loader:dtype":        tensor.Float32,
	}, extra)
}

func TestFolderMatches(t *testing.T) {
	dir, arrays := folderFixture(t)
	l := build(t, newTestRegistry(t, nil), FolderID, folderOptions(dir, nil))

	n, err := l.Count()
	require.NoError(t, err)
	require.Equal(t, 3, n)

	paths, err := l.(*Folder).Paths()
	require.NoError(t, err)
	assert.Equal(t, dir+string(filepath.Separator)+"s1-CLOUD.bin", paths[0])

	for i, want := range arrays {
		got, err := l.LoadData(i)
		require.NoError(t, err)
		assert.True(t, want.Equal(got), "sample %d", i)
	}

	_, err = l.LoadData(3)
	assert.True(t, errors.Is(err, errors.ErrIndexOutOfRange), "%v", err)
}

func TestFolderGroups(t *testing.T) {
	dir, _ := folderFixture(t)
	l := build(t, newTestRegistry(t, nil), FolderID, folderOptions(dir, map[string]interface{}{
		"folder:groups": []string{"slice", "field"},
	}))

	md, err := l.LoadMetadata(2)
	require.NoError(t, err)

	v, _ := md.Get(KeyGroupPrefix + "slice")
	assert.Equal(t, "3", v)
	v, _ = md.Get(KeyGroupPrefix + "field")
	assert.Equal(t, "TEMP", v)
	v, _ = md.Get(KeyDims)
	assert.Equal(t, []int{2}, v)
	v, _ = md.Get(KeyPath)
	assert.Equal(t, filepath.Join(dir, "s3-TEMP.bin"), v)
}

func TestFolderRecursive(t *testing.T) {
	dir, _ := folderFixture(t)
	l := build(t, newTestRegistry(t, nil), FolderID, folderOptions(dir, map[string]interface{}{
		"folder:recursive": true,
	}))

	n, err := l.Count()
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	paths, err := l.(*Folder).Paths()
	require.NoError(t, err)
	assert.Contains(t, paths, filepath.Join(dir, "nested", "s4-WIND.bin"))
}

func TestFolderRescan(t *testing.T) {
	dir, _ := folderFixture(t)
	l := build(t, newTestRegistry(t, nil), FolderID, folderOptions(dir, nil))

	n, err := l.Count()
	require.NoError(t, err)
	require.Equal(t, 3, n)

	// New files are not seen until a rescan.
	writeRaw(t, dir, "s7-SNOW.bin", iota(t, tensor.Shape{2}, 0))
	n, _ = l.Count()
	assert.Equal(t, 3, n)

	require.NoError(t, l.SetOptions(options.FromMap(map[string]interface{}{"folder:rescan": true})))
	n, err = l.Count()
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// Changing the regex rescans too.
	require.NoError(t, l.SetOptions(options.FromMap(map[string]interface{}{"folder:regex": `.*\.txt`})))
	n, err = l.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFolderBaseDirChange(t *testing.T) {
	dir, _ := folderFixture(t)
	l := build(t, newTestRegistry(t, nil), FolderID, folderOptions(dir, nil))
	n, _ := l.Count()
	require.Equal(t, 3, n)

	require.NoError(t, l.SetOptions(options.FromMap(map[string]interface{}{
		"folder:base_dir": filepath.Join(dir, "nested"),
	})))
	n, err := l.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFolderExplicitPaths(t *testing.T) {
	dir, arrays := folderFixture(t)
	l := build(t, newTestRegistry(t, nil), FolderID, folderOptions(filepath.Join(dir, "missing"), map[string]interface{}{
		"folder:paths": []string{filepath.Join(dir, "s2-PRECIP.bin")},
	}))

	n, err := l.Count()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	got, err := l.LoadData(0)
	require.NoError(t, err)
	assert.True(t, arrays[1].Equal(got))
}

func TestFolderErrors(t *testing.T) {
	dir, _ := folderFixture(t)
	reg := newTestRegistry(t, nil)

	l := build(t, reg, FolderID, folderOptions(dir, nil))
	err := l.SetOptions(options.FromMap(map[string]interface{}{"folder:regex": "(unclosed"}))
	assert.True(t, errors.Is(err, errors.ErrInvalidOption), "%v", err)

	l = build(t, reg, FolderID, folderOptions(filepath.Join(dir, "missing"), nil))
	_, err = l.Count()
	assert.True(t, errors.Is(err, errors.ErrSourceReadFailed), "%v", err)

	err = l.SetOptions(options.FromMap(map[string]interface{}{"folder:plugin": "nope"}))
	assert.True(t, errors.Is(err, errors.ErrMissingSubLoader), "%v", err)
}

func TestFolderDefaults(t *testing.T) {
	l := NewFolder(newTestRegistry(t, nil))
	o := l.Options()

	v, _ := o.Get("folder:base_dir")
	assert.Equal(t, ".", v)
	v, _ = o.Get("folder:regex")
	assert.Equal(t, ".+", v)
	v, _ = o.Get("folder:recursive")
	assert.Equal(t, false, v)
	v, _ = o.Get("folder:plugin")
	assert.Equal(t, IOLoaderID, v)
}
