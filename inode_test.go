package txfs

import "testing"

func testMaster(f IncompatFeature) *MasterBlock {
	return &MasterBlock{
		DirectPointers: 4,
		IndirPointers:  8,
		BlockSizeLog:   12,
		Incompat:       f,
	}
}

func TestInodeEncodeDecodeRoundTrip(t *testing.T) {
	cases := []IncompatFeature{
		0,
		FeatureInodeBlocks,
		FeatureInodeTimestamps,
		FeaturePosixAPI,
		FeaturePosixAPI | FeatureDeleteOpen,
		FeaturePosixAPI | FeaturePosixOwnerPerm,
		FeaturePosixAPI | FeatureDeleteOpen | FeaturePosixOwnerPerm | FeatureInodeBlocks | FeatureInodeTimestamps | FeaturePosixLink,
	}

	for _, f := range cases {
		m := testMaster(f)
		ino := &Inode{
			Size:       4096,
			Blocks:     1,
			ATime:      111,
			MTime:      222,
			CTime:      333,
			UID:        1000,
			GID:        1000,
			Mode:       ModeRegular | 0644,
			NLink:      1,
			Parent:     rootInode,
			NextOrphan: 5,
			Direct:     make([]uint32, m.DirectPointers),
			Indirect:   make([]uint32, m.IndirPointers),
		}
		ino.Direct[0] = 50
		ino.Direct[1] = 51

		block := ino.encode(m, 4096)
		got := decodeInode(block, m)

		if got.Size != ino.Size {
			t.Errorf("features=%v: Size = %d, want %d", f, got.Size, ino.Size)
		}
		if got.Mode != ino.Mode {
			t.Errorf("features=%v: Mode = %v, want %v", f, got.Mode, ino.Mode)
		}
		if got.Direct[0] != 50 || got.Direct[1] != 51 {
			t.Errorf("features=%v: Direct pointers did not round trip: %v", f, got.Direct)
		}
		if f&FeatureInodeBlocks != 0 && got.Blocks != ino.Blocks {
			t.Errorf("features=%v: Blocks = %d, want %d", f, got.Blocks, ino.Blocks)
		}
		if f&FeatureInodeTimestamps != 0 && got.MTime != ino.MTime {
			t.Errorf("features=%v: MTime = %d, want %d", f, got.MTime, ino.MTime)
		}
		if f&FeaturePosixAPI != 0 && got.Parent != ino.Parent {
			t.Errorf("features=%v: Parent = %d, want %d", f, got.Parent, ino.Parent)
		}
		if f&FeaturePosixAPI != 0 && f&FeatureDeleteOpen != 0 && got.NextOrphan != ino.NextOrphan {
			t.Errorf("features=%v: NextOrphan = %d, want %d", f, got.NextOrphan, ino.NextOrphan)
		}
		if f&FeaturePosixAPI != 0 && f&FeaturePosixOwnerPerm != 0 && (got.UID != ino.UID || got.GID != ino.GID) {
			t.Errorf("features=%v: UID/GID = %d/%d, want %d/%d", f, got.UID, got.GID, ino.UID, ino.GID)
		}
	}
}

func TestInodeBlockIsDirectMapped(t *testing.T) {
	v := &Volume{inodeTableStart: 10}
	if got := v.inodeBlock(rootInode); got != 10 {
		t.Errorf("inodeBlock(rootInode) = %d, want 10 (table start, no offset wasted)", got)
	}
	if got := v.inodeBlock(rootInode + 1); got != 11 {
		t.Errorf("inodeBlock(rootInode+1) = %d, want 11", got)
	}
}
