package txfs

import "testing"

func TestAllocBlockAdvancesForwardAllocAndFreeBlocks(t *testing.T) {
	v := dirTestVolume(t)
	before := v.workingRoot().FreeBlocks

	block, err := v.allocBlock()
	if err != nil {
		t.Fatalf("allocBlock: %v", err)
	}
	if block < v.firstDataBlock {
		t.Errorf("allocBlock returned %d, want >= firstDataBlock %d", block, v.firstDataBlock)
	}
	if v.workingRoot().FreeBlocks != before-1 {
		t.Errorf("FreeBlocks = %d, want %d", v.workingRoot().FreeBlocks, before-1)
	}
	if !v.branched {
		t.Error("allocBlock should mark the volume branched")
	}

	state, err := v.blockStateOf(block)
	if err != nil {
		t.Fatalf("blockStateOf: %v", err)
	}
	if state != stateNew {
		t.Errorf("state of freshly allocated block = %v, want stateNew", state)
	}
}

func TestAllocBlockRejectsBelowReservedFloor(t *testing.T) {
	v := dirTestVolume(t)
	v.workingRoot().FreeBlocks = uint64(v.reservedBlocks)

	if _, err := v.allocBlock(); err == nil {
		t.Fatal("allocBlock at the reserved floor: want NoSpace error, got nil")
	}
}

func TestFreeBlockNewReturnsToFree(t *testing.T) {
	v := dirTestVolume(t)
	before := v.workingRoot().FreeBlocks

	block, err := v.allocBlock()
	if err != nil {
		t.Fatalf("allocBlock: %v", err)
	}
	if err := v.freeBlock(block); err != nil {
		t.Fatalf("freeBlock: %v", err)
	}
	if v.workingRoot().FreeBlocks != before {
		t.Errorf("FreeBlocks after alloc+free = %d, want back to %d", v.workingRoot().FreeBlocks, before)
	}
	state, err := v.blockStateOf(block)
	if err != nil {
		t.Fatalf("blockStateOf: %v", err)
	}
	if state != stateFree {
		t.Errorf("state after freeing a NEW block = %v, want stateFree", state)
	}
}

func TestFreeBlockUsedGoesAfree(t *testing.T) {
	v := dirTestVolume(t)

	block, err := v.allocBlock()
	if err != nil {
		t.Fatalf("allocBlock: %v", err)
	}
	if err := v.transactLocked(); err != nil {
		t.Fatalf("transactLocked: %v", err)
	}

	state, err := v.blockStateOf(block)
	if err != nil {
		t.Fatalf("blockStateOf after commit: %v", err)
	}
	if state != stateUsed {
		t.Fatalf("state after commit = %v, want stateUsed", state)
	}

	if err := v.freeBlock(block); err != nil {
		t.Fatalf("freeBlock: %v", err)
	}
	state, err = v.blockStateOf(block)
	if err != nil {
		t.Fatalf("blockStateOf: %v", err)
	}
	if state != stateAfree {
		t.Errorf("state after freeing a USED block = %v, want stateAfree", state)
	}
}

func TestFreeBlockRejectsAlreadyFreeBlock(t *testing.T) {
	v := dirTestVolume(t)

	block, err := v.im.findFree(v.firstDataBlock)
	if err != nil {
		t.Fatalf("findFree: %v", err)
	}
	if err := v.freeBlock(block); err == nil {
		t.Fatal("freeing an already-free block: want error, got nil")
	}
}
