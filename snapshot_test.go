package txfs

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	src := NewRAMDevice(512, 2048)
	cfg := DefaultConfig()
	cfg.BlockSize = 4096
	require.NoError(t, Format(src, cfg))

	v, err := Mount(src, cfg)
	require.NoError(t, err)
	require.NoError(t, v.WriteFile("/keepme", []byte("snapshot payload"), 0644))

	var out bytes.Buffer
	require.NoError(t, v.Snapshot(&out, CompNone))
	require.NoError(t, v.Close())

	dst := NewRAMDevice(512, 2048)
	require.NoError(t, Restore(dst, bytes.NewReader(out.Bytes())))

	v2, err := Mount(dst, cfg)
	require.NoError(t, err)
	defer v2.Close()

	got, err := v2.ReadFile("/keepme")
	require.NoError(t, err)
	assert.Equal(t, "snapshot payload", string(got))
}

func TestRestoreRejectsBadMagic(t *testing.T) {
	dst := NewRAMDevice(512, 2048)
	assert.Error(t, Restore(dst, bytes.NewReader(make([]byte, 16))))
}

func TestLookupCodecRejectsUnregistered(t *testing.T) {
	_, err := lookupCodec(SnapshotComp(99))
	assert.Error(t, err)

	_, err = lookupCodec(CompNone)
	assert.NoError(t, err)
}
