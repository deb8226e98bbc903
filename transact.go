package txfs

import "fmt"

// metaRootBlock returns the physical block number of metaroot index idx (0
// or 1); the two metaroots occupy blocks 1 and 2, immediately after the
// master block at block 0 (spec.md §3 "Physical layout").
func metaRootBlock(idx int) uint32 { return uint32(1 + idx) }

// Transact is the commit protocol of spec.md §4.5: every in-memory change
// made since the last commit (block allocations/frees, CoW-branched
// metadata, directory and inode edits) becomes durable, or — on any
// failure along the way — the volume is latched read-only and the caller
// gets back a Fubar error, since a failed commit may have left the two
// device-flush barriers in an indeterminate order.
//
// If the volume isn't branched (no allocation or free happened since the
// last commit, or mount/format just ran), Transact is a cheap no-op.
func (v *Volume) Transact() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.transactLocked()
}

func (v *Volume) transactLocked() error {
	if err := v.checkFubar("transact"); err != nil {
		return err
	}
	if !v.branched {
		return nil
	}
	if v.readOnly {
		return newErr("transact", ReadOnly, nil)
	}

	if err := v.commitSteps(); err != nil {
		if v.metrics != nil {
			v.metrics.transactFailures.Inc()
		}
		return v.fail("transact", err)
	}

	if v.metrics != nil {
		v.metrics.transactions.Inc()
	}
	return nil
}

func (v *Volume) commitSteps() error {
	// Step 1: push every dirty metadata or data buffer other than the
	// metaroots themselves (which aren't cache-resident) to disk.
	firstNonRoot := metaRootBlock(1) + 1
	if err := v.cache.flushRange(firstNonRoot, uint32(v.master.BlockCount)-firstNonRoot); err != nil {
		return fmt.Errorf("flush metadata: %w", err)
	}

	// Step 2: first flush barrier. Everything the new working metaroot will
	// reference is now durable before the metaroot that points to it is.
	if err := v.ioFlush(); err != nil {
		return fmt.Errorf("flush barrier 1: %w", err)
	}

	// Step 3: stamp and write the working metaroot.
	w := v.workingRoot()
	w.FreeBlocks += v.afreedThisTxn
	block := w.encode(v.BlockSize())
	seq := v.nextSeq()
	stampMetaRoot(block, seq, v.sectorSize)
	w.Sequence = seq
	w.FirstSectorCRC = order.Uint32(block[nodeHeaderSize : nodeHeaderSize+4])
	if err := v.ioWriteBlock(metaRootBlock(v.working()), block); err != nil {
		return fmt.Errorf("write working metaroot: %w", err)
	}

	// Step 4: second flush barrier. The new metaroot is now durable; it is
	// the only block whose identity (committed vs. working) has changed, so
	// this is the single atomic instant a power failure splits before/after.
	if err := v.ioFlush(); err != nil {
		return fmt.Errorf("flush barrier 2: %w", err)
	}

	// Step 5: the write just made is the new committed state. Swap, then
	// bring the new working copy (the old committed metaroot, two
	// transactions stale) up to date with it, so the next transaction's
	// CoW branches start from a pair of bit-identical views again (spec.md
	// §4.2 invariant: branched=false implies no NEW or AFREE blocks).
	v.committed = v.working()
	newWorking := &v.metaroots[v.working()]
	*newWorking = *w
	newWorking.Bitmap = append([]byte(nil), w.Bitmap...)

	v.branched = false
	v.afreedThisTxn = 0
	return nil
}
