package txfs

import "testing"

func dirTestVolume(t *testing.T) *Volume {
	t.Helper()
	dev := NewRAMDevice(512, 2048)
	cfg := DefaultConfig()
	cfg.BlockSize = 4096
	if err := Format(dev, cfg); err != nil {
		t.Fatalf("Format: %v", err)
	}
	v, err := Mount(dev, cfg)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	t.Cleanup(func() { v.Close() })
	return v
}

func TestDirEntryEncodeDecodeRoundTrip(t *testing.T) {
	e := dirEntry{Inode: 42, Name: "hello.txt"}
	raw := encodeDirEntry(e, 255)
	if len(raw) != dirEntrySize(255) {
		t.Fatalf("encodeDirEntry length = %d, want %d", len(raw), dirEntrySize(255))
	}
	got := decodeDirEntry(raw)
	if got.Inode != e.Inode || got.Name != e.Name {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, e)
	}
}

func TestDirCreateLookupDelete(t *testing.T) {
	v := dirTestVolume(t)
	root, err := v.mountInode(rootInode, WantDir, true)
	if err != nil {
		t.Fatalf("mountInode(root): %v", err)
	}
	defer root.release()

	if err := dirCreate(root, "a", 100); err != nil {
		t.Fatalf("dirCreate(a): %v", err)
	}
	if err := dirCreate(root, "b", 101); err != nil {
		t.Fatalf("dirCreate(b): %v", err)
	}

	if err := dirCreate(root, "a", 102); err == nil {
		t.Fatal("dirCreate(a) again: want Exists error, got nil")
	}

	inode, off, err := dirLookup(root, "a")
	if err != nil {
		t.Fatalf("dirLookup(a): %v", err)
	}
	if inode != 100 {
		t.Errorf("dirLookup(a) inode = %d, want 100", inode)
	}

	if err := dirDelete(root, off); err != nil {
		t.Fatalf("dirDelete(a): %v", err)
	}
	if _, _, err := dirLookup(root, "a"); err == nil {
		t.Fatal("dirLookup(a) after delete: want NoEntry error, got nil")
	}

	if err := dirCreate(root, "c", 103); err != nil {
		t.Fatalf("dirCreate(c) reusing tombstone: %v", err)
	}
	if got, _, err := dirLookup(root, "c"); err != nil || got != 103 {
		t.Errorf("dirLookup(c) = %d, %v, want 103, nil", got, err)
	}
}

func TestDirIsEmpty(t *testing.T) {
	v := dirTestVolume(t)
	root, err := v.mountInode(rootInode, WantDir, true)
	if err != nil {
		t.Fatalf("mountInode(root): %v", err)
	}
	defer root.release()

	empty, err := dirIsEmpty(root)
	if err != nil {
		t.Fatalf("dirIsEmpty: %v", err)
	}
	if !empty {
		t.Error("freshly formatted root should be empty")
	}

	if err := dirCreate(root, "x", 200); err != nil {
		t.Fatalf("dirCreate: %v", err)
	}
	empty, err = dirIsEmpty(root)
	if err != nil {
		t.Fatalf("dirIsEmpty: %v", err)
	}
	if empty {
		t.Error("directory with a live entry reported empty")
	}

	_, off, err := dirLookup(root, "x")
	if err != nil {
		t.Fatalf("dirLookup(x): %v", err)
	}
	if err := dirDelete(root, off); err != nil {
		t.Fatalf("dirDelete: %v", err)
	}
	empty, err = dirIsEmpty(root)
	if err != nil {
		t.Fatalf("dirIsEmpty: %v", err)
	}
	if !empty {
		t.Error("directory with only a tombstone should report empty")
	}
}

func TestDirReadEnumeratesLiveEntriesOnly(t *testing.T) {
	v := dirTestVolume(t)
	root, err := v.mountInode(rootInode, WantDir, true)
	if err != nil {
		t.Fatalf("mountInode(root): %v", err)
	}
	defer root.release()

	names := []string{"one", "two", "three"}
	for i, n := range names {
		if err := dirCreate(root, n, uint32(300+i)); err != nil {
			t.Fatalf("dirCreate(%s): %v", n, err)
		}
	}
	_, off, err := dirLookup(root, "two")
	if err != nil {
		t.Fatalf("dirLookup(two): %v", err)
	}
	if err := dirDelete(root, off); err != nil {
		t.Fatalf("dirDelete(two): %v", err)
	}

	seen := map[string]uint32{}
	cursor := uint64(0)
	for {
		name, inode, next, ok, err := dirRead(root, cursor)
		if err != nil {
			t.Fatalf("dirRead: %v", err)
		}
		if !ok {
			break
		}
		seen[name] = inode
		cursor = next
	}

	if _, present := seen["two"]; present {
		t.Error("dirRead returned a tombstoned entry")
	}
	if seen["one"] != 300 || seen["three"] != 302 {
		t.Errorf("dirRead missing live entries: %v", seen)
	}
}
