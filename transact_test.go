package txfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactNoOpWhenNotBranched(t *testing.T) {
	v := dirTestVolume(t)
	seqBefore := v.committedRoot().Sequence
	require.NoError(t, v.Transact())
	assert.Equal(t, seqBefore, v.committedRoot().Sequence,
		"Transact on an unbranched volume should not touch the committed metaroot")
}

func TestTransactFlipsCommittedAndSyncsWorking(t *testing.T) {
	v := dirTestVolume(t)

	block, err := v.allocBlock()
	require.NoError(t, err)
	oldCommitted := v.committed

	require.NoError(t, v.Transact())
	assert.NotEqual(t, oldCommitted, v.committed, "Transact should flip v.committed")
	assert.False(t, v.branched)

	state, err := v.blockStateOf(block)
	require.NoError(t, err)
	assert.Equal(t, stateUsed, state)

	w := v.workingRoot()
	c := v.committedRoot()
	assert.Equal(t, c.FreeBlocks, w.FreeBlocks)
	assert.Equal(t, c.ForwardAlloc, w.ForwardAlloc)
}

func TestTransactRejectedOnReadOnlyVolume(t *testing.T) {
	v := dirTestVolume(t)
	v.branched = true
	v.readOnly = true
	assert.Error(t, v.Transact())
}

func TestTransactSurvivesRemountAfterCommit(t *testing.T) {
	dev := NewRAMDevice(512, 2048)
	cfg := DefaultConfig()
	cfg.BlockSize = 4096
	require.NoError(t, Format(dev, cfg))

	v, err := Mount(dev, cfg)
	require.NoError(t, err)
	require.NoError(t, v.Mkdir("/sub", 0755))
	require.NoError(t, v.Close())

	v2, err := Mount(dev, cfg)
	require.NoError(t, err)
	defer v2.Close()

	info, err := v2.Stat("/sub")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
