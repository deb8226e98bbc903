package txfs

import (
	"sync"
)

// Volume is the in-memory handle for a mounted filesystem: the single
// value that used to be a global "current volume" pointer in the source
// this was ported from (spec.md §9 "Re-architecture guidance"). Every core
// operation takes a *Volume; a host embedding multiple volumes holds one
// *Volume per mounted volume, and this package does not index them.
//
// Concurrency: txfs is single-threaded cooperative when the host gives it
// one task, and serialized under mu when multiple tasks may call in
// (spec.md §5). Every exported operation acquires mu for its full
// duration; there is no intra-filesystem concurrency.
type Volume struct {
	mu sync.Mutex

	dev          BlockDevice
	sectorOffset int64
	sectorSize   int
	readOnly     bool

	master MasterBlock
	config Config

	metaroots     [2]MetaRoot
	committed     int // index into metaroots of the currently-committed state
	branched      bool
	afreedThisTxn uint64 // blocks moved USED -> AFREE since the last commit
	seq           uint64 // per-volume monotonic sequence counter
	im            imap
	cache         *BufferCache

	inodeTableStart uint32
	imapStart       uint32
	imapNodeCount   uint32
	firstDataBlock  uint32

	reservedBlocks uint32
	reservedInodes uint32
	inTruncate     bool // reserved-block pool unlocked for this call

	defunctOrphans []uint32 // orphans handed to the application to drain

	metrics *Metrics

	criticalErrors   uint64
	criticalErrorOp  string
	fubar            bool
}

// working returns the index of the working (not-yet-committed) metaroot,
// always the metaroot index that isn't currently committed (spec.md §3
// "exactly one of the two metaroots is the committed state").
func (v *Volume) working() int { return 1 - v.committed }

func (v *Volume) committedRoot() *MetaRoot { return &v.metaroots[v.committed] }
func (v *Volume) workingRoot() *MetaRoot   { return &v.metaroots[v.working()] }

// nextSeq returns the next monotonically increasing sequence number,
// stamped onto metadata buffers as they're flushed (spec.md §4.3).
func (v *Volume) nextSeq() uint64 {
	v.seq++
	return v.seq
}

// fail marks the volume read-only and records a critical-error site; used
// for Fubar-class invariant violations (spec.md §7). Fubar is sticky for
// the lifetime of the mount.
func (v *Volume) fail(op string, err error) error {
	v.fubar = true
	v.readOnly = true
	v.criticalErrors++
	v.criticalErrorOp = op
	if v.metrics != nil {
		v.metrics.criticalErrors.Inc()
	}
	return newErr(op, Fubar, err)
}

// CriticalErrors reports how many Fubar-class errors this mount has hit and
// the operation name of the most recent one, for diagnostics
// (SPEC_FULL.md SUPPLEMENTED "per-volume critical-error latch").
func (v *Volume) CriticalErrors() (count uint64, lastOp string) {
	return v.criticalErrors, v.criticalErrorOp
}

// checkFubar returns the sticky Fubar error if a previous operation on this
// volume already tripped it.
func (v *Volume) checkFubar(op string) error {
	if v.fubar {
		return newErr(op, Fubar, nil)
	}
	return nil
}

// DefunctOrphans returns the inode numbers Mount found on the on-disk
// orphan list when delete_open is enabled in the mount's Config; Mount
// leaves them on the list without freeing them (spec.md §4.9).
func (v *Volume) DefunctOrphans() []uint32 { return v.defunctOrphans }

// BlockSize returns the volume's fixed block size in bytes.
func (v *Volume) BlockSize() int { return v.master.BlockSize() }

// FreeBlocks returns the committed metaroot's free-block count.
func (v *Volume) FreeBlocks() uint64 { return v.committedRoot().FreeBlocks }

// Close discards the buffer cache without writing it and closes the
// underlying device. It does not commit any in-flight transaction; callers
// must Transact first.
func (v *Volume) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cache.discardAll()
	return v.dev.Close()
}
