package txfs

import "fmt"

// reservedBlockCount is the RESERVED_BLOCKS macro of original_source's
// redcoremacs.h: the floor under which allocBlock refuses ordinary
// allocations, scaled to the deepest tier a truncate/unlink may need to
// CoW-branch on this volume's inode shape (inode -> dindir -> indir -> data).
// A read-only volume never allocates, so it reserves nothing.
func reservedBlockCount(readOnly, posixAPI bool, directPointers, indirPointers uint16, blockSize int, incompat IncompatFeature) uint32 {
	if readOnly {
		return 0
	}
	entries := (blockSize - inodeHeaderSize(incompat)) / 4
	dindirsExist := entries-int(directPointers)-int(indirPointers) > 0
	hasIndirects := indirPointers > 0

	if posixAPI {
		switch {
		case dindirsExist:
			return 3
		case hasIndirects:
			return 2
		default:
			return 1
		}
	}
	switch {
	case dindirsExist:
		return 2
	case hasIndirects:
		return 1
	default:
		return 0
	}
}

// allocBlock is alloc_block (spec.md §4.5): finds a free block starting at
// the working metaroot's forward-allocation pointer, advances that
// pointer, sets the bit in the working imap, decrements free_blocks, and
// marks the volume branched. The returned block is in state NEW.
func (v *Volume) allocBlock() (uint32, error) {
	w := v.workingRoot()

	if !v.inTruncate && w.FreeBlocks <= uint64(v.reservedBlocks) {
		return 0, newErr("allocBlock", NoSpace, fmt.Errorf("reserved-block floor reached"))
	}

	block, err := v.im.findFree(w.ForwardAlloc)
	if err != nil {
		return 0, err
	}
	w.ForwardAlloc = block + 1
	if err := v.im.set(block, true); err != nil {
		return 0, err
	}
	w.FreeBlocks--
	v.branched = true
	if v.metrics != nil {
		v.metrics.blocksAllocated.Inc()
	}
	return block, nil
}

// freeBlock releases block according to the four-state model (spec.md
// §4.6 "freeing respects the four-state model: USED → AFREE; NEW → FREE").
// Freeing a block that is neither USED nor NEW is a bookkeeping bug.
func (v *Volume) freeBlock(block uint32) error {
	state, err := v.blockStateOf(block)
	if err != nil {
		return err
	}

	switch state {
	case stateUsed:
		if err := v.im.set(block, false); err != nil {
			return err
		}
		v.afreedThisTxn++
		v.branched = true
	case stateNew:
		if err := v.im.set(block, false); err != nil {
			return err
		}
		v.workingRoot().FreeBlocks++
	default:
		return v.fail("freeBlock", fmt.Errorf("block %d freed from state %d", block, state))
	}

	if v.metrics != nil {
		v.metrics.blocksFreed.Inc()
	}
	return nil
}

// branchBuffer performs the copy-on-write branch of a single pinned buffer
// that is currently USED: allocate a new block, move the buffer's identity
// to it via the cache's branch, and free the old block (USED → AFREE). The
// caller is responsible for patching the parent slot to point at the
// returned new block number, and — if the parent block is itself USED —
// branching the parent too (spec.md §4.5 "Copy-on-write branch").
func (v *Volume) branchBuffer(buf *Buffer) (oldBlock, newBlock uint32, err error) {
	oldBlock = buf.block
	newBlock, err = v.allocBlock()
	if err != nil {
		return 0, 0, err
	}
	v.cache.branch(buf, newBlock)
	if err := v.freeBlock(oldBlock); err != nil {
		return 0, 0, err
	}
	return oldBlock, newBlock, nil
}
