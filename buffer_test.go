package txfs

import "testing"

func TestBufferCacheGetIsPinnedAndCached(t *testing.T) {
	v := dirTestVolume(t)

	buf, err := v.cache.get(v.firstDataBlock, getNew, 0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if buf.pins != 1 {
		t.Errorf("pins = %d, want 1", buf.pins)
	}
	if !buf.dirty || !buf.isNew {
		t.Error("getNew buffer should be dirty and isNew")
	}

	buf2, err := v.cache.get(v.firstDataBlock, 0, 0)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if buf2 != buf {
		t.Error("second get of the same block should return the same buffer, not reload")
	}
	if buf2.pins != 2 {
		t.Errorf("pins after second get = %d, want 2", buf2.pins)
	}

	v.cache.put(buf)
	v.cache.put(buf2)
	if buf.pins != 0 {
		t.Errorf("pins after two puts = %d, want 0", buf.pins)
	}
}

func TestBufferCacheFlushRangeClearsDirty(t *testing.T) {
	v := dirTestVolume(t)

	block := v.firstDataBlock
	buf, err := v.cache.get(block, getNew, 0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	buf.data[0] = 0xab
	v.cache.put(buf)

	if err := v.cache.flushRange(block, 1); err != nil {
		t.Fatalf("flushRange: %v", err)
	}
	if buf.dirty {
		t.Error("buffer still dirty after flushRange")
	}

	v.cache.discard(buf)
	reread, err := v.cache.get(block, 0, 0)
	if err != nil {
		t.Fatalf("re-get after discard: %v", err)
	}
	if reread.data[0] != 0xab {
		t.Errorf("data[0] = %x after reload, want 0xab", reread.data[0])
	}
	v.cache.put(reread)
}

func TestBufferCacheBranchRetargetsBlock(t *testing.T) {
	v := dirTestVolume(t)

	orig := v.firstDataBlock
	next := v.firstDataBlock + 1
	buf, err := v.cache.get(orig, getNew, 0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	v.cache.branch(buf, next)
	if buf.block != next {
		t.Errorf("block after branch = %d, want %d", buf.block, next)
	}
	if !buf.dirty {
		t.Error("branched buffer should be dirty")
	}
	if _, stillThere := v.cache.byBlock[orig]; stillThere {
		t.Error("original block key should be gone after branch")
	}
	if got := v.cache.byBlock[next]; got != buf {
		t.Error("new block key should map to the branched buffer")
	}
	v.cache.put(buf)
}

func TestBufferCacheEvictRejectsAllPinnedOrDirty(t *testing.T) {
	v := dirTestVolume(t)
	cache := newBufferCache(v, 2)

	b1, err := cache.get(v.firstDataBlock, getNew, 0)
	if err != nil {
		t.Fatalf("get b1: %v", err)
	}
	b2, err := cache.get(v.firstDataBlock+1, getNew, 0)
	if err != nil {
		t.Fatalf("get b2: %v", err)
	}
	_ = b1
	_ = b2

	if _, err := cache.get(v.firstDataBlock+2, getNew, 0); err == nil {
		t.Fatal("get on an exhausted, all-dirty-or-pinned cache: want error, got nil")
	}
}
