package txfs

import "testing"

func coordTestInode(blockSize, nDirect, nIndirect, nDIndirect int) *CachedInode {
	v := &Volume{master: MasterBlock{BlockSizeLog: log2(blockSize)}}
	return &CachedInode{
		vol: v,
		Ino: &Inode{
			Direct:    make([]uint32, nDirect),
			Indirect:  make([]uint32, nIndirect),
			DIndirect: make([]uint32, nDIndirect),
		},
	}
}

func TestCoordForDirectTier(t *testing.T) {
	ci := coordTestInode(4096, 4, 2, 1)
	for lb := uint32(0); lb < 4; lb++ {
		c := ci.coordFor(lb)
		if c.tier != 0 || c.directIdx != int(lb) {
			t.Errorf("coordFor(%d) = %+v, want tier 0 directIdx %d", lb, c, lb)
		}
	}
}

func TestCoordForIndirectTier(t *testing.T) {
	ci := coordTestInode(4096, 4, 2, 1)
	epi := uint32(indirEntries(4096))

	c := ci.coordFor(4)
	if c.tier != 1 || c.indirIdx != 0 || c.indirSlot != 0 {
		t.Errorf("coordFor(4) = %+v, want tier 1, indirIdx 0, indirSlot 0", c)
	}

	c = ci.coordFor(4 + epi)
	if c.tier != 1 || c.indirIdx != 1 || c.indirSlot != 0 {
		t.Errorf("coordFor(4+epi) = %+v, want tier 1, indirIdx 1, indirSlot 0", c)
	}

	c = ci.coordFor(4 + epi + 5)
	if c.tier != 1 || c.indirIdx != 1 || c.indirSlot != 5 {
		t.Errorf("coordFor(4+epi+5) = %+v, want tier 1, indirIdx 1, indirSlot 5", c)
	}
}

func TestCoordForDoubleIndirectTier(t *testing.T) {
	ci := coordTestInode(4096, 4, 2, 1)
	epi := uint32(indirEntries(4096))
	base := 4 + 2*epi

	c := ci.coordFor(base)
	if c.tier != 2 || c.dindirIdx != 0 || c.dindirSlot != 0 || c.indirSlot != 0 {
		t.Errorf("coordFor(base) = %+v, want tier 2 all-zero indices", c)
	}

	c = ci.coordFor(base + epi + 3)
	if c.tier != 2 || c.dindirIdx != 0 || c.dindirSlot != 1 || c.indirSlot != 3 {
		t.Errorf("coordFor(base+epi+3) = %+v, want tier 2 dindirSlot 1 indirSlot 3", c)
	}
}

func TestMaxLogicalBlocks(t *testing.T) {
	ci := coordTestInode(4096, 4, 2, 1)
	epi := uint32(indirEntries(4096))
	want := uint32(4) + 2*epi + 1*epi*epi
	if got := ci.maxLogicalBlocks(); got != want {
		t.Errorf("maxLogicalBlocks() = %d, want %d", got, want)
	}
}

func TestIndirNodeEncodeDecodeRoundTrip(t *testing.T) {
	n := &indirNode{Owner: 7, Entries: make([]uint32, indirEntries(4096))}
	n.Entries[0] = 100
	n.Entries[len(n.Entries)-1] = 200

	block := n.encode(SigIndir, 4096)
	got := decodeIndirNode(block)

	if got.Owner != 7 {
		t.Errorf("Owner = %d, want 7", got.Owner)
	}
	if got.Entries[0] != 100 || got.Entries[len(got.Entries)-1] != 200 {
		t.Errorf("Entries did not round trip: first=%d last=%d", got.Entries[0], got.Entries[len(got.Entries)-1])
	}
}
