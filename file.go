package txfs

import "fmt"

// dataRead implements data_read: copy up to len(buf) bytes starting at
// offset into buf, returning the number of bytes actually read. Reading
// past EOF returns 0 with no error; a sparse block reads as zero bytes
// (spec.md §3 "data_read", §8 round-trip properties).
func (ci *CachedInode) dataRead(offset uint64, buf []byte) (int, error) {
	if offset >= ci.Ino.Size {
		return 0, nil
	}
	if want := ci.Ino.Size - offset; uint64(len(buf)) > want {
		buf = buf[:want]
	}

	blockSize := uint64(ci.vol.BlockSize())
	n := 0
	for n < len(buf) {
		lb := (offset + uint64(n)) / blockSize
		inBlock := (offset + uint64(n)) % blockSize
		chunk := blockSize - inBlock
		if remain := uint64(len(buf) - n); chunk > remain {
			chunk = remain
		}

		phys, err := ci.seekAndRead(uint32(lb))
		if err != nil {
			return n, err
		}
		if phys == 0 {
			for i := uint64(0); i < chunk; i++ {
				buf[n+int(i)] = 0
			}
		} else {
			dbuf, err := ci.vol.cache.get(phys, 0, 0)
			if err != nil {
				return n, err
			}
			copy(buf[n:n+int(chunk)], dbuf.data[inBlock:uint64(inBlock)+chunk])
			ci.vol.cache.put(dbuf)
		}
		n += int(chunk)
	}
	return n, nil
}

// dataWrite implements data_write: write len(buf) bytes at offset,
// CoW-branching and allocating as needed, growing Ino.Size if the write
// extends past the current end (spec.md §3 "data_write").
func (ci *CachedInode) dataWrite(offset uint64, buf []byte) (int, error) {
	if ci.vol.readOnly {
		return 0, newErr("dataWrite", ReadOnly, nil)
	}
	blockSize := uint64(ci.vol.BlockSize())
	maxSize := uint64(ci.maxLogicalBlocks()) * blockSize
	if offset+uint64(len(buf)) > maxSize {
		return 0, newErr("dataWrite", FileTooBig, fmt.Errorf("write would exceed max file size %d", maxSize))
	}

	n := 0
	for n < len(buf) {
		lb := (offset + uint64(n)) / blockSize
		inBlock := (offset + uint64(n)) % blockSize
		chunk := blockSize - inBlock
		if remain := uint64(len(buf) - n); chunk > remain {
			chunk = remain
		}

		phys, err := ci.ensureWritable(uint32(lb))
		if err != nil {
			return n, err
		}
		dbuf, err := ci.vol.cache.get(phys, 0, 0)
		if err != nil {
			return n, err
		}
		copy(dbuf.data[inBlock:uint64(inBlock)+chunk], buf[n:n+int(chunk)])
		ci.vol.cache.markDirty(dbuf)
		ci.vol.cache.put(dbuf)
		n += int(chunk)
	}

	if end := offset + uint64(len(buf)); end > ci.Ino.Size {
		ci.Ino.Size = end
		ci.flushFields()
	}
	return n, nil
}

// dataTruncate implements data_truncate: shrink or grow Ino.Size to size,
// freeing every data/indirect/double-indirect block now past the new end
// (spec.md §3 "data_truncate"). Truncation unlocks the reserved-block pool
// (inTruncate) since it must succeed even on an otherwise-full volume.
func (ci *CachedInode) dataTruncate(size uint64) error {
	v := ci.vol
	if v.readOnly {
		return newErr("dataTruncate", ReadOnly, nil)
	}
	if size >= ci.Ino.Size {
		ci.Ino.Size = size
		ci.flushFields()
		return nil
	}

	v.inTruncate = true
	defer func() { v.inTruncate = false }()

	blockSize := uint64(v.BlockSize())
	firstFreeLB := uint32((size + blockSize - 1) / blockSize)
	lastLB := ci.maxLogicalBlocks()

	for lb := firstFreeLB; lb < lastLB; lb++ {
		if err := ci.freeLogicalBlock(lb); err != nil {
			return err
		}
	}

	ci.Ino.Size = size
	ci.flushFields()
	return nil
}

// freeLogicalBlock frees the data block (and, when it becomes entirely
// empty, the indirect/double-indirect node) addressed by lb, if any is
// allocated there.
func (ci *CachedInode) freeLogicalBlock(lb uint32) error {
	v := ci.vol
	c := ci.coordFor(lb)

	switch c.tier {
	case 0:
		block := ci.Ino.Direct[c.directIdx]
		if block == 0 {
			return nil
		}
		if err := v.freeBlock(block); err != nil {
			return err
		}
		ci.Ino.Direct[c.directIdx] = 0
		ci.Ino.Blocks--
		ci.flushFields()
		return nil

	case 1:
		indirBlock := ci.Ino.Indirect[c.indirIdx]
		if indirBlock == 0 {
			return nil
		}
		return ci.freeEntryInIndirNode(indirBlock, c.indirSlot, func(newBlock uint32) {
			ci.Ino.Indirect[c.indirIdx] = newBlock
			ci.flushFields()
		})

	default:
		dindirBlock := ci.Ino.DIndirect[c.dindirIdx]
		if dindirBlock == 0 {
			return nil
		}
		dbuf, err := v.cache.get(dindirBlock, 0, SigDindir)
		if err != nil {
			return err
		}
		dnode := decodeIndirNode(dbuf.data)
		indirBlock := dnode.Entries[c.dindirSlot]
		if indirBlock == 0 {
			v.cache.put(dbuf)
			return nil
		}

		emptied := false
		err = ci.freeEntryInIndirNode(indirBlock, c.indirSlot, func(newIndirBlock uint32) {
			state, serr := v.blockStateOf(dindirBlock)
			if serr == nil && state == stateUsed {
				_, branched, berr := v.branchBuffer(dbuf)
				if berr == nil {
					dindirBlock = branched
					ci.Ino.DIndirect[c.dindirIdx] = branched
					ci.flushFields()
				}
			}
			dnode.Entries[c.dindirSlot] = newIndirBlock
			copy(dbuf.data, dnode.encode(SigDindir, v.BlockSize()))
			v.cache.markDirty(dbuf)
			if newIndirBlock == 0 {
				emptied = true
				for _, e := range dnode.Entries {
					if e != 0 {
						emptied = false
						break
					}
				}
			}
		})
		v.cache.put(dbuf)
		if err == nil && emptied {
			if err := v.freeBlock(dindirBlock); err != nil {
				return err
			}
			ci.Ino.DIndirect[c.dindirIdx] = 0
			ci.flushFields()
		}
		return err
	}
}

// freeEntryInIndirNode frees indirNode's block-pointer slot idx. If that
// empties the node entirely, the node itself is freed and onUpdate is
// called with 0; otherwise the node is rewritten (CoW-branched first if
// USED) and onUpdate is called with its current block number.
func (ci *CachedInode) freeEntryInIndirNode(nodeBlock uint32, idx int, onUpdate func(newBlock uint32)) error {
	v := ci.vol
	buf, err := v.cache.get(nodeBlock, 0, SigIndir)
	if err != nil {
		return err
	}
	node := decodeIndirNode(buf.data)
	dataBlock := node.Entries[idx]
	if dataBlock != 0 {
		if err := v.freeBlock(dataBlock); err != nil {
			v.cache.put(buf)
			return err
		}
		node.Entries[idx] = 0
		ci.Ino.Blocks--
	}

	empty := true
	for _, e := range node.Entries {
		if e != 0 {
			empty = false
			break
		}
	}

	if empty {
		v.cache.put(buf)
		if err := v.freeBlock(nodeBlock); err != nil {
			return err
		}
		onUpdate(0)
		return nil
	}

	state, err := v.blockStateOf(nodeBlock)
	if err != nil {
		v.cache.put(buf)
		return err
	}
	cur := nodeBlock
	if state == stateUsed {
		_, newBlock, err := v.branchBuffer(buf)
		if err != nil {
			v.cache.put(buf)
			return err
		}
		cur = newBlock
	}
	copy(buf.data, node.encode(SigIndir, v.BlockSize()))
	v.cache.markDirty(buf)
	v.cache.put(buf)
	onUpdate(cur)
	return nil
}

// linkDec implements link_dec (spec.md §3 "link_dec"): decrement the link
// count, and when it reaches zero either free the inode immediately or —
// if delete-while-open is enabled and asOrphan is true — splice it onto
// the per-volume orphan list and defer freeing until the last open handle
// closes.
func (ci *CachedInode) linkDec(asOrphan bool) error {
	v := ci.vol
	if ci.Ino.NLink > 0 {
		ci.Ino.NLink--
	}
	ci.flushFields()

	if ci.Ino.NLink > 0 {
		return nil
	}

	if asOrphan && v.master.Incompat&FeatureDeleteOpen != 0 {
		w := v.workingRoot()
		ci.Ino.NextOrphan = 0
		ci.flushFields()
		if w.OrphanHead == 0 {
			w.OrphanHead = ci.Num
		} else {
			tail, err := v.mountInode(w.OrphanTail, WantAny, true)
			if err != nil {
				return err
			}
			tail.Ino.NextOrphan = ci.Num
			tail.flushFields()
			tail.release()
		}
		w.OrphanTail = ci.Num
		v.branched = true
		return nil
	}

	return ci.freeInode()
}

// freeInode releases every block owned by the inode and returns the slot
// to the free-inode pool.
func (ci *CachedInode) freeInode() error {
	if err := ci.dataTruncate(0); err != nil {
		return err
	}
	ci.Ino.Mode = 0
	ci.flushFields()
	w := ci.vol.workingRoot()
	w.FreeInodes++
	ci.vol.branched = true
	return nil
}
