package txfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileCreatesAndReadFileRoundTrips(t *testing.T) {
	v := dirTestVolume(t)
	data := []byte("hello, txfs")

	require.NoError(t, v.WriteFile("/greeting.txt", data, 0644))
	got, err := v.ReadFile("/greeting.txt")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	info, err := v.Stat("/greeting.txt")
	require.NoError(t, err)
	assert.False(t, info.IsDir())
	assert.Equal(t, int64(len(data)), info.Size())
}

func TestWriteFileOverwritesExisting(t *testing.T) {
	v := dirTestVolume(t)
	require.NoError(t, v.WriteFile("/f", []byte("first version, longer"), 0644))
	require.NoError(t, v.WriteFile("/f", []byte("v2"), 0644))

	got, err := v.ReadFile("/f")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got), "overwrite should truncate")
}

func TestMkdirAndReadDir(t *testing.T) {
	v := dirTestVolume(t)
	require.NoError(t, v.Mkdir("/dir", 0755))
	require.NoError(t, v.WriteFile("/dir/a", []byte("a"), 0644))
	require.NoError(t, v.WriteFile("/dir/b", []byte("b"), 0644))

	entries, err := v.ReadDir("/dir")
	require.NoError(t, err)
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	assert.True(t, names["a"])
	assert.True(t, names["b"])
}

func TestUnlinkRemovesEntryAndRejectsNonEmptyDir(t *testing.T) {
	v := dirTestVolume(t)
	require.NoError(t, v.WriteFile("/x", []byte("x"), 0644))
	require.NoError(t, v.Unlink("/x"))
	_, err := v.Stat("/x")
	assert.Error(t, err)

	require.NoError(t, v.Mkdir("/d", 0755))
	require.NoError(t, v.WriteFile("/d/inner", []byte("v"), 0644))
	assert.Error(t, v.Unlink("/d"), "unlink of a non-empty directory should fail")
}

func TestRenameMovesEntry(t *testing.T) {
	v := dirTestVolume(t)
	require.NoError(t, v.WriteFile("/old", []byte("content"), 0644))
	require.NoError(t, v.Rename("/old", "/new"))

	_, err := v.Stat("/old")
	assert.Error(t, err)

	got, err := v.ReadFile("/new")
	require.NoError(t, err)
	assert.Equal(t, "content", string(got))
}

func TestWriteFilePersistsAcrossRemount(t *testing.T) {
	dev := NewRAMDevice(512, 4096)
	cfg := DefaultConfig()
	cfg.BlockSize = 4096
	require.NoError(t, Format(dev, cfg))

	v, err := Mount(dev, cfg)
	require.NoError(t, err)
	require.NoError(t, v.WriteFile("/persisted", []byte("still here"), 0644))
	require.NoError(t, v.Close())

	v2, err := Mount(dev, cfg)
	require.NoError(t, err)
	defer v2.Close()

	got, err := v2.ReadFile("/persisted")
	require.NoError(t, err)
	assert.Equal(t, "still here", string(got))
}
