package txfs

import "fmt"

// getFlags modifies BufferCache.get's behavior.
type getFlags uint8

const (
	// getNew zeroes the buffer and marks it dirty without reading the
	// block from disk, for a block that was just allocated.
	getNew getFlags = 1 << iota
)

// Buffer is one fixed, block-sized slot in the cache (spec.md §4.3).
type Buffer struct {
	block    uint32
	data     []byte
	dirty    bool
	isNew    bool
	metaType Signature // zero for a non-metadata (raw file data) buffer
	pins     int
	age      uint64
}

// BufferCache is the fixed-count pool of block-sized buffers that mediates
// all metadata I/O (spec.md §4.3). Every access goes through get/put; a
// block is present in at most one buffer at a time.
type BufferCache struct {
	vol     *Volume
	bufs    []*Buffer
	byBlock map[uint32]*Buffer
	clock   uint64
}

func newBufferCache(vol *Volume, count int) *BufferCache {
	bufs := make([]*Buffer, count)
	blockSize := vol.BlockSize()
	for i := range bufs {
		bufs[i] = &Buffer{data: make([]byte, blockSize)}
	}
	return &BufferCache{vol: vol, bufs: bufs, byBlock: make(map[uint32]*Buffer, count)}
}

// get returns a pinned buffer for block, loading or zero-initializing it as
// needed (spec.md §4.3 "get").
func (c *BufferCache) get(block uint32, flags getFlags, metaType Signature) (*Buffer, error) {
	if buf, ok := c.byBlock[block]; ok {
		buf.pins++
		c.clock++
		buf.age = c.clock
		if c.vol.metrics != nil {
			c.vol.metrics.cacheHits.Inc()
		}
		return buf, nil
	}

	if c.vol.metrics != nil {
		c.vol.metrics.cacheMisses.Inc()
	}

	buf, err := c.evict()
	if err != nil {
		return nil, err
	}

	buf.block = block
	buf.metaType = metaType
	buf.pins = 1
	c.clock++
	buf.age = c.clock

	if flags&getNew != 0 {
		for i := range buf.data {
			buf.data[i] = 0
		}
		buf.isNew = true
		buf.dirty = true
	} else {
		buf.isNew = false
		if err := c.vol.ioReadBlock(block, buf.data); err != nil {
			return nil, newErr("buffer.get", Io, err)
		}
		if metaType != 0 {
			if !verifyNode(buf.data, metaType) {
				if c.vol.metrics != nil {
					c.vol.metrics.crcFailures.Inc()
				}
				return nil, newErr("buffer.get", Io, fmt.Errorf("block %d: signature/crc mismatch for %s", block, metaType))
			}
		}
		buf.dirty = false
	}

	c.byBlock[block] = buf
	return buf, nil
}

// evict picks an unpinned, non-dirty buffer to reuse, preferring the oldest
// (LRU). Evicting a dirty buffer without flushing would be an error
// (spec.md §4.3 invariants), so dirty buffers are never eviction
// candidates; if none are free the cache is exhausted.
func (c *BufferCache) evict() (*Buffer, error) {
	var best *Buffer
	for _, b := range c.bufs {
		if b.pins != 0 || b.dirty {
			continue
		}
		if best == nil || b.age < best.age {
			best = b
		}
	}
	if best == nil {
		return nil, newErr("buffer.evict", NoMem, fmt.Errorf("no free buffer (all pinned or dirty)"))
	}
	if old, ok := c.byBlock[best.block]; ok && old == best {
		delete(c.byBlock, best.block)
	}
	if c.vol.metrics != nil {
		c.vol.metrics.cacheEvictions.Inc()
	}
	return best, nil
}

// put unpins buf; it remains in the cache.
func (c *BufferCache) put(buf *Buffer) {
	if buf.pins > 0 {
		buf.pins--
	}
}

// markDirty flags buf as holding a metadata change not yet on disk.
func (c *BufferCache) markDirty(buf *Buffer) {
	buf.dirty = true
}

// branch reassigns a dirty, pinned buffer to newBlock without reloading
// from disk, the mechanic behind copy-on-write (spec.md §4.3 "branch").
func (c *BufferCache) branch(buf *Buffer, newBlock uint32) {
	delete(c.byBlock, buf.block)
	buf.block = newBlock
	buf.dirty = true
	c.byBlock[newBlock] = buf
}

// discard drops buf from the cache without flushing; dirty data is lost.
// Used by format (fresh start) and by error unwinding.
func (c *BufferCache) discard(buf *Buffer) {
	delete(c.byBlock, buf.block)
	buf.dirty = false
	buf.pins = 0
	buf.isNew = false
	buf.metaType = 0
}

// discardRange drops every unpinned buffer whose block falls in
// [start, start+count).
func (c *BufferCache) discardRange(start uint32, count uint32) {
	for _, b := range c.bufs {
		if b.pins != 0 {
			continue
		}
		if _, ok := c.byBlock[b.block]; !ok {
			continue
		}
		if b.block >= start && b.block < start+count {
			c.discard(b)
		}
	}
}

func (c *BufferCache) discardAll() {
	for _, b := range c.bufs {
		if b.pins == 0 {
			c.discard(b)
		}
	}
}

// flushRange writes every dirty buffer in [start, start+count) to disk. A
// dirty metadata buffer has its node header's CRC and sequence number
// stamped immediately before the write; a dirty non-metadata buffer is
// written verbatim (spec.md §4.3 "flush_range").
func (c *BufferCache) flushRange(start uint32, count uint32) error {
	for _, b := range c.bufs {
		if !b.dirty {
			continue
		}
		if _, ok := c.byBlock[b.block]; !ok {
			continue
		}
		if b.block < start || b.block >= start+count {
			continue
		}
		if err := c.flushOne(b); err != nil {
			return err
		}
	}
	return nil
}

func (c *BufferCache) flushOne(b *Buffer) error {
	if b.metaType != 0 {
		stampNode(b.data, b.metaType, c.vol.nextSeq())
	}
	if err := c.vol.ioWriteBlock(b.block, b.data); err != nil {
		return newErr("buffer.flush", Io, err)
	}
	b.dirty = false
	b.isNew = false
	if c.vol.metrics != nil {
		c.vol.metrics.buffersFlushed.Inc()
	}
	return nil
}

// flushAndEvictRange is the coherency step read_range/write_range perform
// before bypassing the cache for a large contiguous transfer: any
// overlapping cached buffer is flushed (if dirty) and then dropped, so the
// bypass I/O sees — and subsequent cached reads see — one consistent view.
func (c *BufferCache) flushAndEvictRange(start uint32, count uint32) error {
	for _, b := range c.bufs {
		if _, ok := c.byBlock[b.block]; !ok {
			continue
		}
		if b.block < start || b.block >= start+count {
			continue
		}
		if b.dirty {
			if err := c.flushOne(b); err != nil {
				return err
			}
		}
		if b.pins == 0 {
			c.discard(b)
		}
	}
	return nil
}

// readRange / writeRange are the bulk pass-throughs that bypass the cache
// for large contiguous file-data transfers (spec.md §4.3).
func (c *BufferCache) readRange(block uint32, buf []byte) error {
	nblocks := uint32(len(buf) / c.vol.BlockSize())
	if err := c.flushAndEvictRange(block, nblocks); err != nil {
		return err
	}
	return c.vol.ioReadBlocks(block, buf)
}

func (c *BufferCache) writeRange(block uint32, buf []byte) error {
	nblocks := uint32(len(buf) / c.vol.BlockSize())
	if err := c.flushAndEvictRange(block, nblocks); err != nil {
		return err
	}
	return c.vol.ioWriteBlocks(block, buf)
}
