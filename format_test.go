package txfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatThenMountProducesUsableRoot(t *testing.T) {
	dev := NewRAMDevice(512, 2048)
	cfg := DefaultConfig()
	cfg.BlockSize = 4096

	require.NoError(t, Format(dev, cfg))
	v, err := Mount(dev, cfg)
	require.NoError(t, err)
	defer v.Close()

	info, err := v.Stat("/")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	entries, err := v.ReadDir("/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFormatRejectsVolumeTooSmall(t *testing.T) {
	dev := NewRAMDevice(512, 4)
	cfg := DefaultConfig()
	cfg.BlockSize = 4096
	assert.Error(t, Format(dev, cfg))
}

func TestFormatRejectsBlockSizeNotMultipleOfSectorSize(t *testing.T) {
	dev := NewRAMDevice(500, 2048)
	cfg := DefaultConfig()
	cfg.BlockSize = 4096
	assert.Error(t, Format(dev, cfg))
}

func TestFormatAutoSizesInodeCountWithFloor(t *testing.T) {
	dev := NewRAMDevice(512, 256)
	cfg := DefaultConfig()
	cfg.BlockSize = 512
	require.NoError(t, Format(dev, cfg))

	v, err := Mount(dev, cfg)
	require.NoError(t, err)
	defer v.Close()
	assert.GreaterOrEqual(t, v.master.InodeCount, uint32(minimumViableInodeCount))
}
