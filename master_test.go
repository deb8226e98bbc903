package txfs

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMasterBlockRoundTrip(t *testing.T) {
	m := &MasterBlock{
		Version:        layoutVersion,
		FormatTime:     1234567890,
		InodeCount:     64,
		BlockCount:     9000,
		NameMax:        255,
		DirectPointers: 4,
		IndirPointers:  32,
		BlockSizeLog:   12,
		SectorSizeLog:  9,
		Incompat:       FeaturePosixAPI | FeatureDeleteOpen,
		ReadOnly:       ROFeatureReservedInodes,
	}
	block := m.encode(4096)

	got, err := decodeMasterBlock(block, Caps)
	if err != nil {
		t.Fatalf("decodeMasterBlock: %v", err)
	}
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeMasterBlockRejectsUnknownFeature(t *testing.T) {
	m := &MasterBlock{BlockSizeLog: 12, SectorSizeLog: 9, Incompat: 1 << 31}
	block := m.encode(4096)
	if _, err := decodeMasterBlock(block, Caps); err == nil {
		t.Fatal("want error for an incompat bit outside Caps")
	}
}

func TestDecodeMasterBlockRejectsBadCRC(t *testing.T) {
	m := &MasterBlock{BlockSizeLog: 12, SectorSizeLog: 9}
	block := m.encode(4096)
	block[100] ^= 0xff
	if _, err := decodeMasterBlock(block, Caps); err == nil {
		t.Fatal("want error for corrupted master block")
	}
}
