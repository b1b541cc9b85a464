package facemark

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssets_OpenPackagedResource(t *testing.T) {
	assets := NewFSAssets(fstest.MapFS{"facefinder": {Data: []byte("cascade")}})

	r, err := assets.OpenPackagedResource("facefinder")
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "cascade", string(data))

	_, err = assets.OpenPackagedResource("missing")
	assert.True(t, errors.Is(err, ErrAssetUnavailable))
}

func TestAssets_DirAssets(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "facefinder"), []byte("cascade"), 0600))

	r, err := NewDirAssets(dir).OpenPackagedResource("facefinder")
	require.NoError(t, err)
	assert.NoError(t, r.Close())
}

func TestScratch_PrivateFile(t *testing.T) {
	scratch, err := NewDirScratch(t.TempDir())
	require.NoError(t, err)

	f, err := scratch.OpenPrivateWritableFile("../../model")
	require.NoError(t, err)
	_, err = f.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Equal(t, filepath.Join(scratch.Dir(), "model"), f.Name())

	info, err := os.Stat(scratch.Dir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.True(t, scratch.DeletePath(f.Name()))
	assert.False(t, scratch.DeletePath(f.Name()))
}

func TestScratch_TempRoot(t *testing.T) {
	scratch, err := NewDirScratch("")
	require.NoError(t, err)
	defer scratch.Cleanup()

	f, err := scratch.OpenPrivateWritableFile("facefinder")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, scratch.Cleanup())
	_, err = os.Stat(scratch.Dir())
	assert.True(t, os.IsNotExist(err))
}

func TestStore_MemStore(t *testing.T) {
	full := solidImage(512, 256, black)
	store := NewMemStore(full, 128)

	assert.Same(t, full, store.FullImage())
	assert.Equal(t, 128, store.Thumbnail().Bounds().Dx())
	assert.Equal(t, 64, store.Thumbnail().Bounds().Dy())

	next := solidImage(512, 256, white)
	store.SetFullImage(next)
	assert.Same(t, next, store.FullImage())
	assert.Equal(t, 128, store.Thumbnail().Bounds().Dx())
}
