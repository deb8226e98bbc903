package txfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fsckTestDevice(t *testing.T) (*RAMDevice, Config) {
	t.Helper()
	dev := NewRAMDevice(512, 2048)
	cfg := DefaultConfig()
	cfg.BlockSize = 4096
	require.NoError(t, Format(dev, cfg))
	return dev, cfg
}

func TestFsckCleanOnFreshlyFormattedVolume(t *testing.T) {
	dev, cfg := fsckTestDevice(t)

	report, err := Fsck(dev, cfg, 2)
	require.NoError(t, err)
	assert.True(t, report.Clean(), "CRCFailures: %v", report.CRCFailures)
	assert.NotZero(t, report.BlocksScanned)
	assert.Zero(t, report.OrphanListLen)
}

func TestFsckReflectsMountedChanges(t *testing.T) {
	dev, cfg := fsckTestDevice(t)

	v, err := Mount(dev, cfg)
	require.NoError(t, err)
	require.NoError(t, v.WriteFile("/a", []byte("data"), 0644))
	require.NoError(t, v.Close())

	report, err := Fsck(dev, cfg, 4)
	require.NoError(t, err)
	assert.True(t, report.Clean(), "CRCFailures: %v", report.CRCFailures)
	assert.GreaterOrEqual(t, report.InodesScanned, uint32(2))
}

func TestWorkersOrDefault(t *testing.T) {
	assert.Equal(t, 4, workersOrDefault(0))
	assert.Equal(t, 4, workersOrDefault(-3))
	assert.Equal(t, 9, workersOrDefault(9))
}
