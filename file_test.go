package txfs

import (
	"bytes"
	"testing"
)

func TestDataWriteReadSpanningMultipleBlocks(t *testing.T) {
	v := dirTestVolume(t)
	size := v.BlockSize()*5 + 37
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}

	if err := v.WriteFile("/big", data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := v.ReadFile("/big")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("multi-block round trip content mismatch")
	}
}

func TestDataTruncateShrinkFreesBlocksAndGrowIsSparse(t *testing.T) {
	v := dirTestVolume(t)
	data := bytes.Repeat([]byte{0x42}, v.BlockSize()*3)
	if err := v.WriteFile("/tr", data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	num, err := v.resolve("/tr")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	ci, err := v.mountInode(num, WantRegular, true)
	if err != nil {
		t.Fatalf("mountInode: %v", err)
	}

	if err := ci.dataTruncate(uint64(v.BlockSize())); err != nil {
		t.Fatalf("dataTruncate shrink: %v", err)
	}
	if ci.Ino.Size != uint64(v.BlockSize()) {
		t.Errorf("Size after shrink = %d, want %d", ci.Ino.Size, v.BlockSize())
	}

	grownSize := uint64(v.BlockSize() * 4)
	if err := ci.dataTruncate(grownSize); err != nil {
		t.Fatalf("dataTruncate grow: %v", err)
	}
	if ci.Ino.Size != grownSize {
		t.Errorf("Size after grow = %d, want %d", ci.Ino.Size, grownSize)
	}

	buf := make([]byte, v.BlockSize())
	n, err := ci.dataRead(uint64(v.BlockSize()*3), buf)
	if err != nil {
		t.Fatalf("dataRead in grown region: %v", err)
	}
	for i := 0; i < n; i++ {
		if buf[i] != 0 {
			t.Fatalf("grown region not sparse-zero at offset %d: %x", i, buf[i])
		}
	}
	ci.release()
}

func TestDataWriteRejectsBeyondMaxFileSize(t *testing.T) {
	v := dirTestVolume(t)
	if err := v.WriteFile("/small", []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	num, err := v.resolve("/small")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	ci, err := v.mountInode(num, WantRegular, true)
	if err != nil {
		t.Fatalf("mountInode: %v", err)
	}
	defer ci.release()

	huge := uint64(ci.maxLogicalBlocks())*uint64(v.BlockSize()) + 1
	if _, err := ci.dataWrite(huge, []byte("z")); err == nil {
		t.Fatal("dataWrite beyond max file size: want error, got nil")
	}
}
