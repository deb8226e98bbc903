package txfs

import "fmt"

// Caps is the set of incompat features this build understands; Mount
// rejects an on-disk volume that requires more (spec.md §4.9, §3 "An
// older reader refuses to mount if any incompat bit is unknown"). The only
// read-only feature it understands is ROFeatureReservedInodes.
const Caps = FeaturePosixAPI | FeatureInodeTimestamps | FeatureInodeBlocks |
	FeaturePosixLink | FeaturePosixOwnerPerm | FeatureDeleteOpen |
	FeaturePosixSymlink | FeatureExternalImap | FeatureDirBlockCRC

// Mount opens dev, validates the master block, selects the correct
// metaroot, and returns a ready-to-use Volume (spec.md §4.9).
func Mount(dev BlockDevice, cfg Config) (*Volume, error) {
	mode := RDWR
	if cfg.ReadOnly {
		mode = RDONLY
	}
	if err := dev.Open(mode); err != nil {
		return nil, newErr("Mount", Io, err)
	}

	sectorSize, _, err := dev.Geometry()
	if err != nil {
		if cfg.SectorSize == SectorSizeAuto {
			dev.Close()
			return nil, newErr("Mount", NotSupp, err)
		}
		sectorSize = cfg.SectorSize
	} else if cfg.SectorSize != SectorSizeAuto {
		sectorSize = cfg.SectorSize
	}

	v := &Volume{dev: dev, config: cfg, sectorSize: sectorSize, sectorOffset: cfg.SectorOffset, readOnly: cfg.ReadOnly}

	masterBuf := make([]byte, cfg.BlockSize)
	if err := v.dev.ReadAt(v.sectorOffset, cfg.BlockSize/sectorSize, masterBuf); err != nil {
		dev.Close()
		return nil, newErr("Mount", Io, err)
	}
	master, err := decodeMasterBlock(masterBuf, Caps)
	if err != nil {
		dev.Close()
		return nil, err
	}
	v.master = *master

	if master.Incompat&^Caps != 0 {
		dev.Close()
		return nil, newErr("Mount", NotSupp, fmt.Errorf("unsupported incompat features"))
	}
	if master.ReadOnly&^ROFeatureReservedInodes != 0 {
		v.readOnly = true
	}

	// Load both metaroot candidates and select per spec.md §4.5: the one
	// with the higher sequence number whose signature and CRC both
	// validate; if only one validates, that one wins; if neither does,
	// mount fails.
	var candidates [2]*MetaRoot
	var valid [2]bool
	for i := 0; i < 2; i++ {
		block := make([]byte, v.BlockSize())
		if err := v.dev.ReadAt(v.sectorOffset+int64(1+i)*int64(v.sectorsPerBlock()), v.sectorsPerBlock(), block); err != nil {
			dev.Close()
			return nil, newErr("Mount", Io, err)
		}
		if verifyNode(block, SigMetaroot) {
			valid[i] = true
			candidates[i] = decodeMetaRoot(block)
		}
	}

	switch {
	case valid[0] && valid[1]:
		if candidates[0].Sequence == candidates[1].Sequence {
			dev.Close()
			return nil, newErr("Mount", Fubar, fmt.Errorf("both metaroots have identical sequence %d", candidates[0].Sequence))
		}
		if candidates[0].Sequence > candidates[1].Sequence {
			v.committed = 0
		} else {
			v.committed = 1
		}
	case valid[0]:
		v.committed = 0
	case valid[1]:
		v.committed = 1
	default:
		dev.Close()
		return nil, newErr("Mount", Io, fmt.Errorf("neither metaroot validates"))
	}

	// Both in-memory slots start out bit-identical to the committed state
	// (branched=false implies no divergence); the next transaction's
	// CoW branches are what first pull them apart.
	winner := *candidates[v.committed]
	v.metaroots[v.committed] = winner
	other := winner
	other.Bitmap = append([]byte(nil), winner.Bitmap...)
	v.metaroots[1-v.committed] = other
	// Continue the sequence from the committed metaroot, the last node the
	// previous mount stamped, so the next commit outranks it.
	v.seq = winner.Sequence

	if master.Incompat&FeatureExternalImap != 0 {
		inodeTableStart := uint32(3)
		entriesPerNode := uint32(bitmapCapacity(v.BlockSize()))
		approxAllocable := master.BlockCount - uint64(inodeTableStart)
		imapNodeCount := uint32((approxAllocable + uint64(entriesPerNode) - 1) / uint64(entriesPerNode))
		v.imapStart = inodeTableStart
		v.imapNodeCount = imapNodeCount
		v.inodeTableStart = inodeTableStart + imapNodeCount*2
		v.im = externalImap{vol: v}
	} else {
		v.inodeTableStart = 3
		v.im = inlineImap{vol: v}
	}
	v.firstDataBlock = v.inodeTableStart + master.InodeCount

	v.reservedBlocks = reservedBlockCount(v.readOnly, master.Incompat&FeaturePosixAPI != 0,
		master.DirectPointers, master.IndirPointers, v.BlockSize(), master.Incompat)
	v.reservedInodes = 1

	v.cache = newBufferCache(v, 64)

	if master.Incompat&FeatureDeleteOpen != 0 {
		if err := v.drainOrphansAtMount(); err != nil {
			dev.Close()
			return nil, err
		}
	}

	return v, nil
}

// drainOrphansAtMount walks the committed metaroot's orphan list. If
// delete-while-open is disabled for this mount's config, every orphan is
// freed immediately; otherwise the list is left untouched for the
// application to resume draining through DefunctOrphans (spec.md §4.9).
func (v *Volume) drainOrphansAtMount() error {
	w := v.workingRoot()
	if v.config.DeleteOpen {
		for cur := w.OrphanHead; cur != 0; {
			v.defunctOrphans = append(v.defunctOrphans, cur)
			ci, err := v.mountInode(cur, WantAny, false)
			if err != nil {
				return err
			}
			next := ci.Ino.NextOrphan
			ci.release()
			cur = next
		}
		return nil
	}

	for cur := w.OrphanHead; cur != 0; {
		ci, err := v.mountInode(cur, WantAny, true)
		if err != nil {
			return err
		}
		next := ci.Ino.NextOrphan
		if err := ci.freeInode(); err != nil {
			ci.release()
			return err
		}
		ci.release()
		cur = next
	}
	w.OrphanHead = 0
	w.OrphanTail = 0
	v.branched = true
	return v.transactLocked()
}
