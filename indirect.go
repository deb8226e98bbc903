package txfs

// indirHeaderSize is the node header plus the owning-inode number
// (original_source/core/include/rednodes.h INDIR_HEADER_SIZE); indirect
// and double-indirect nodes share this layout (spec.md §3 "Indirect /
// double-indirect node").
const indirHeaderSize = nodeHeaderSize + 4

func indirEntries(blockSize int) int {
	return (blockSize - indirHeaderSize) / 4
}

// indirNode is the decoded form of either an indirect or a double-indirect
// node: a node header, the inode that owns it, and an array of
// block-pointer slots. Double-indirect entries point at indirect nodes;
// indirect entries point at file-data blocks (spec.md §3).
type indirNode struct {
	Owner   uint32
	Entries []uint32
}

func decodeIndirNode(block []byte) *indirNode {
	b := block[nodeHeaderSize:]
	owner := order.Uint32(b[0:4])
	raw := b[4:]
	n := &indirNode{Owner: owner, Entries: make([]uint32, len(raw)/4)}
	for i := range n.Entries {
		n.Entries[i] = order.Uint32(raw[i*4 : i*4+4])
	}
	return n
}

func (n *indirNode) encode(sig Signature, blockSize int) []byte {
	block := make([]byte, blockSize)
	order.PutUint32(block[0:4], uint32(sig))
	b := block[nodeHeaderSize:]
	order.PutUint32(b[0:4], n.Owner)
	raw := b[4:]
	for i, v := range n.Entries {
		order.PutUint32(raw[i*4:i*4+4], v)
	}
	return block
}

// blockCoord is the logical-block-to-tree-position mapping shared by
// seek_and_read, data_write's sparse-fill path, and data_truncate (spec.md
// §3 "traversal coordinate"). tier 0 is a direct pointer, 1 an indirect
// pointer, 2 a double-indirect pointer.
type blockCoord struct {
	tier       int
	directIdx  int
	indirIdx   int // index into Inode.Indirect (tier 1 only)
	indirSlot  int // entry index within the resolved indirect node
	dindirIdx  int // index into Inode.DIndirect
	dindirSlot int // entry index within the double-indirect node
}

func (ci *CachedInode) coordFor(lb uint32) blockCoord {
	epi := uint32(indirEntries(ci.vol.BlockSize()))
	nDirect := uint32(len(ci.Ino.Direct))
	nIndirect := uint32(len(ci.Ino.Indirect))

	if lb < nDirect {
		return blockCoord{tier: 0, directIdx: int(lb)}
	}
	lb -= nDirect

	indirSpan := nIndirect * epi
	if lb < indirSpan {
		return blockCoord{tier: 1, indirIdx: int(lb / epi), indirSlot: int(lb % epi)}
	}
	lb -= indirSpan

	dindirIdx := lb / (epi * epi)
	rem := lb % (epi * epi)
	return blockCoord{tier: 2, dindirIdx: int(dindirIdx), dindirSlot: int(rem / epi), indirSlot: int(rem % epi)}
}

// maxLogicalBlocks is the largest logical block number + 1 this inode's
// tree shape can address.
func (ci *CachedInode) maxLogicalBlocks() uint32 {
	epi := uint32(indirEntries(ci.vol.BlockSize()))
	nDirect := uint32(len(ci.Ino.Direct))
	nIndirect := uint32(len(ci.Ino.Indirect))
	nDIndirect := uint32(len(ci.Ino.DIndirect))
	return nDirect + nIndirect*epi + nDIndirect*epi*epi
}

// seekAndRead resolves logical block lb to a physical data block number (0
// if sparse), pinning whatever indirect/double-indirect buffers lie on the
// path and releasing any previously held ones that are no longer needed
// (spec.md §3 "seek_and_read"). It does not allocate; sparse stays sparse.
func (ci *CachedInode) seekAndRead(lb uint32) (uint32, error) {
	c := ci.coordFor(lb)
	v := ci.vol

	releaseDindir := func() {
		if ci.dindirBuf != nil {
			v.cache.put(ci.dindirBuf)
			ci.dindirBuf = nil
			ci.dindirBlock = 0
		}
	}
	releaseIndir := func() {
		if ci.indirBuf != nil {
			v.cache.put(ci.indirBuf)
			ci.indirBuf = nil
			ci.indirBlock = 0
		}
	}

	switch c.tier {
	case 0:
		releaseDindir()
		releaseIndir()
		ci.logicalBlock = lb
		return ci.Ino.Direct[c.directIdx], nil

	case 1:
		releaseDindir()
		block := ci.Ino.Indirect[c.indirIdx]
		if block == 0 {
			releaseIndir()
			ci.logicalBlock = lb
			return 0, nil
		}
		if ci.indirBlock != block {
			releaseIndir()
			buf, err := v.cache.get(block, 0, SigIndir)
			if err != nil {
				return 0, err
			}
			ci.indirBuf = buf
			ci.indirBlock = block
		}
		node := decodeIndirNode(ci.indirBuf.data)
		ci.logicalBlock = lb
		return node.Entries[c.indirSlot], nil

	default: // tier 2
		dblock := ci.Ino.DIndirect[c.dindirIdx]
		if dblock == 0 {
			releaseDindir()
			releaseIndir()
			ci.logicalBlock = lb
			return 0, nil
		}
		if ci.dindirBlock != dblock {
			releaseDindir()
			buf, err := v.cache.get(dblock, 0, SigDindir)
			if err != nil {
				return 0, err
			}
			ci.dindirBuf = buf
			ci.dindirBlock = dblock
		}
		dnode := decodeIndirNode(ci.dindirBuf.data)
		iblock := dnode.Entries[c.dindirSlot]
		if iblock == 0 {
			releaseIndir()
			ci.logicalBlock = lb
			return 0, nil
		}
		if ci.indirBlock != iblock {
			releaseIndir()
			buf, err := v.cache.get(iblock, 0, SigIndir)
			if err != nil {
				return 0, err
			}
			ci.indirBuf = buf
			ci.indirBlock = iblock
		}
		inode := decodeIndirNode(ci.indirBuf.data)
		ci.logicalBlock = lb
		return inode.Entries[c.indirSlot], nil
	}
}

// ensureWritable resolves lb the same way seekAndRead does, but
// CoW-branches every USED node on the path (double-indirect, indirect,
// inode) and allocates any node or data block that's missing, so the
// caller ends up with a data block number it may write to directly
// (spec.md §4.5 "Copy-on-write branch", applied recursively up the tree).
func (ci *CachedInode) ensureWritable(lb uint32) (uint32, error) {
	c := ci.coordFor(lb)
	v := ci.vol

	switch c.tier {
	case 0:
		if ci.Ino.Direct[c.directIdx] == 0 {
			block, err := v.allocBlock()
			if err != nil {
				return 0, err
			}
			ci.Ino.Direct[c.directIdx] = block
			ci.Ino.Blocks++
			ci.flushFields()
		}
		return ci.Ino.Direct[c.directIdx], nil

	case 1:
		indirBlock := ci.Ino.Indirect[c.indirIdx]
		var buf *Buffer
		var err error
		if indirBlock == 0 {
			indirBlock, err = v.allocBlock()
			if err != nil {
				return 0, err
			}
			buf, err = v.cache.get(indirBlock, getNew, SigIndir)
			if err != nil {
				return 0, err
			}
			node := &indirNode{Owner: ci.Num, Entries: make([]uint32, indirEntries(v.BlockSize()))}
			copy(buf.data, node.encode(SigIndir, v.BlockSize()))
			ci.Ino.Indirect[c.indirIdx] = indirBlock
			ci.flushFields()
		} else {
			buf, err = v.cache.get(indirBlock, 0, SigIndir)
			if err != nil {
				return 0, err
			}
			state, err := v.blockStateOf(indirBlock)
			if err != nil {
				v.cache.put(buf)
				return 0, err
			}
			if state == stateUsed {
				_, newBlock, err := v.branchBuffer(buf)
				if err != nil {
					v.cache.put(buf)
					return 0, err
				}
				ci.Ino.Indirect[c.indirIdx] = newBlock
				ci.flushFields()
			}
		}
		defer v.cache.put(buf)

		node := decodeIndirNode(buf.data)
		if node.Entries[c.indirSlot] == 0 {
			dataBlock, err := v.allocBlock()
			if err != nil {
				return 0, err
			}
			node.Entries[c.indirSlot] = dataBlock
			copy(buf.data, node.encode(SigIndir, v.BlockSize()))
			v.cache.markDirty(buf)
			ci.Ino.Blocks++
			ci.flushFields()
		}
		return node.Entries[c.indirSlot], nil

	default:
		dindirBlock := ci.Ino.DIndirect[c.dindirIdx]
		var dbuf *Buffer
		var err error
		if dindirBlock == 0 {
			dindirBlock, err = v.allocBlock()
			if err != nil {
				return 0, err
			}
			dbuf, err = v.cache.get(dindirBlock, getNew, SigDindir)
			if err != nil {
				return 0, err
			}
			dnode := &indirNode{Owner: ci.Num, Entries: make([]uint32, indirEntries(v.BlockSize()))}
			copy(dbuf.data, dnode.encode(SigDindir, v.BlockSize()))
			ci.Ino.DIndirect[c.dindirIdx] = dindirBlock
			ci.flushFields()
		} else {
			dbuf, err = v.cache.get(dindirBlock, 0, SigDindir)
			if err != nil {
				return 0, err
			}
			state, err := v.blockStateOf(dindirBlock)
			if err != nil {
				v.cache.put(dbuf)
				return 0, err
			}
			if state == stateUsed {
				_, newBlock, err := v.branchBuffer(dbuf)
				if err != nil {
					v.cache.put(dbuf)
					return 0, err
				}
				ci.Ino.DIndirect[c.dindirIdx] = newBlock
				ci.flushFields()
			}
		}

		dnode := decodeIndirNode(dbuf.data)
		indirBlock := dnode.Entries[c.dindirSlot]
		var ibuf *Buffer
		if indirBlock == 0 {
			indirBlock, err = v.allocBlock()
			if err != nil {
				v.cache.put(dbuf)
				return 0, err
			}
			ibuf, err = v.cache.get(indirBlock, getNew, SigIndir)
			if err != nil {
				v.cache.put(dbuf)
				return 0, err
			}
			inode := &indirNode{Owner: ci.Num, Entries: make([]uint32, indirEntries(v.BlockSize()))}
			copy(ibuf.data, inode.encode(SigIndir, v.BlockSize()))
			dnode.Entries[c.dindirSlot] = indirBlock
			copy(dbuf.data, dnode.encode(SigDindir, v.BlockSize()))
			v.cache.markDirty(dbuf)
		} else {
			ibuf, err = v.cache.get(indirBlock, 0, SigIndir)
			if err != nil {
				v.cache.put(dbuf)
				return 0, err
			}
			state, err := v.blockStateOf(indirBlock)
			if err != nil {
				v.cache.put(dbuf)
				v.cache.put(ibuf)
				return 0, err
			}
			if state == stateUsed {
				_, newBlock, err := v.branchBuffer(ibuf)
				if err != nil {
					v.cache.put(dbuf)
					v.cache.put(ibuf)
					return 0, err
				}
				dnode.Entries[c.dindirSlot] = newBlock
				copy(dbuf.data, dnode.encode(SigDindir, v.BlockSize()))
				v.cache.markDirty(dbuf)
			}
		}
		v.cache.put(dbuf)
		defer v.cache.put(ibuf)

		inode := decodeIndirNode(ibuf.data)
		if inode.Entries[c.indirSlot] == 0 {
			dataBlock, err := v.allocBlock()
			if err != nil {
				return 0, err
			}
			inode.Entries[c.indirSlot] = dataBlock
			copy(ibuf.data, inode.encode(SigIndir, v.BlockSize()))
			v.cache.markDirty(ibuf)
			ci.Ino.Blocks++
			ci.flushFields()
		}
		return inode.Entries[c.indirSlot], nil
	}
}
