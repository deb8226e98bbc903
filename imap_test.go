package txfs

import "testing"

func TestDeriveState(t *testing.T) {
	cases := []struct {
		committed, working bool
		want                blockState
	}{
		{false, false, stateFree},
		{true, true, stateUsed},
		{false, true, stateNew},
		{true, false, stateAfree},
	}
	for _, c := range cases {
		if got := deriveState(c.committed, c.working); got != c.want {
			t.Errorf("deriveState(%v, %v) = %v, want %v", c.committed, c.working, got, c.want)
		}
	}
}

func TestImapSetAndGetRoundTrip(t *testing.T) {
	v := dirTestVolume(t)

	block, err := v.im.findFree(v.firstDataBlock)
	if err != nil {
		t.Fatalf("findFree: %v", err)
	}

	if err := v.im.set(block, true); err != nil {
		t.Fatalf("set(true): %v", err)
	}
	got, err := v.im.get(v.working(), block)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got {
		t.Error("bit not set in working view after set(true)")
	}

	committedBit, err := v.im.get(v.committed, block)
	if err != nil {
		t.Fatalf("get committed: %v", err)
	}
	if committedBit {
		t.Error("committed view changed before any commit")
	}
}

func TestImapSetRejectsRedundantToggle(t *testing.T) {
	v := dirTestVolume(t)

	block, err := v.im.findFree(v.firstDataBlock)
	if err != nil {
		t.Fatalf("findFree: %v", err)
	}
	if err := v.im.set(block, true); err != nil {
		t.Fatalf("set(true): %v", err)
	}
	if err := v.im.set(block, true); err == nil {
		t.Fatal("setting an already-set bit to the same value: want error, got nil")
	}
}

func TestImapFindFreeSkipsAllocatedBlocks(t *testing.T) {
	v := dirTestVolume(t)

	first, err := v.im.findFree(v.firstDataBlock)
	if err != nil {
		t.Fatalf("findFree: %v", err)
	}
	if err := v.im.set(first, true); err != nil {
		t.Fatalf("set: %v", err)
	}

	second, err := v.im.findFree(v.firstDataBlock)
	if err != nil {
		t.Fatalf("findFree after allocating first: %v", err)
	}
	if second == first {
		t.Error("findFree returned a block already marked allocated in the working view")
	}
}
