package txfs

import (
	"fmt"
	"time"
)

// minimumViableInodeCount is the floor under the auto inode-count formula
// (spec.md §4.8 step 3, §9 Open Question: "auto inode count = max(minimum
// viable count, blocks/18)").
const minimumViableInodeCount = 16

// Format lays out a fresh volume on dev per spec.md §4.8. dev must not be
// open elsewhere; Format opens it itself for the duration of the call.
func Format(dev BlockDevice, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := dev.Open(RDWR); err != nil {
		return newErr("Format", Io, err)
	}

	v := &Volume{dev: dev, config: cfg, sectorOffset: cfg.SectorOffset}
	sectorSize, sectorCount, err := dev.Geometry()
	if err != nil {
		dev.Close()
		return newErr("Format", NotSupp, err)
	}
	if cfg.SectorSize != SectorSizeAuto {
		sectorSize = cfg.SectorSize
	}
	if cfg.SectorCount != SectorCountAuto {
		sectorCount = cfg.SectorCount
	}
	v.sectorSize = sectorSize

	blockSize := cfg.BlockSize
	if blockSize%sectorSize != 0 {
		dev.Close()
		return newErr("Format", Inval, fmt.Errorf("block_size %d not a multiple of sector_size %d", blockSize, sectorSize))
	}
	blockCount := uint64(sectorCount) * uint64(sectorSize) / uint64(blockSize)
	if blockCount < 8 {
		dev.Close()
		return newErr("Format", Inval, fmt.Errorf("volume too small: %d blocks", blockCount))
	}

	// Step 1: zero block 0 and flush. An interrupted format is therefore
	// unmountable, since decodeMasterBlock will reject an all-zero block.
	zero := make([]byte, blockSize)
	v.master.BlockSizeLog = log2(blockSize)
	v.master.SectorSizeLog = log2(sectorSize)
	v.master.BlockCount = blockCount
	if err := v.ioWriteBlock(0, zero); err != nil {
		dev.Close()
		return newErr("Format", Io, err)
	}
	if err := dev.Flush(); err != nil {
		dev.Close()
		return newErr("Format", Io, err)
	}

	// Step 2/3: compute layout and inode count.
	inodeCount := uint32(cfg.InodeCount)
	if inodeCount == 0 {
		auto := blockCount / 18
		if auto < minimumViableInodeCount {
			auto = minimumViableInodeCount
		}
		inodeCount = uint32(auto)
	}

	incompat := cfg.incompatFeatures()
	v.master = MasterBlock{
		Version:        layoutVersion,
		FormatTime:     formatTimeNow(),
		InodeCount:     inodeCount,
		BlockCount:     blockCount,
		NameMax:        uint16(cfg.NameMax),
		DirectPointers: uint16(cfg.DirectPointers),
		IndirPointers:  uint16(cfg.IndirPointers),
		BlockSizeLog:   log2(blockSize),
		SectorSizeLog:  log2(sectorSize),
		Incompat:       incompat,
	}
	if cfg.DeleteOpen {
		v.master.ReadOnly |= ROFeatureReservedInodes
	}

	// Tentatively size the inode table as if imap were inline (no imap
	// region consumes blocks before it), then check whether the resulting
	// bitmap actually fits in the metaroot; fall back to external if not.
	inodeTableStart := uint32(3)
	inlineNeededBits := blockCount - uint64(inodeTableStart+inodeCount)
	useExternal := false
	switch {
	case cfg.ImapInline && uint64(bitmapCapacity(blockSize)) >= inlineNeededBits:
		useExternal = false
	case cfg.ImapExternal:
		useExternal = true
	default:
		dev.Close()
		return newErr("Format", Inval, fmt.Errorf("bitmap does not fit inline and imap_external is disallowed"))
	}
	// Mount reads FeatureExternalImap as "the external layout is in use".
	if !useExternal {
		v.master.Incompat &^= FeatureExternalImap
	}

	var imapStart, imapNodeCount uint32
	if useExternal {
		imapStart = inodeTableStart
		entriesPerNode := uint32(bitmapCapacity(blockSize))
		// first approximation of addressable space; imap nodes themselves
		// are not allocable so don't appear in the bitmap they describe.
		approxAllocable := blockCount - uint64(imapStart)
		imapNodeCount = uint32((approxAllocable + uint64(entriesPerNode) - 1) / uint64(entriesPerNode))
		if imapNodeCount > uint32(bitmapCapacity(blockSize)) {
			dev.Close()
			return newErr("Format", Inval, fmt.Errorf("external imap toggle bitmap does not fit in metaroot"))
		}
		inodeTableStart = imapStart + imapNodeCount*2
	}
	firstDataBlock := inodeTableStart + inodeCount
	if uint64(firstDataBlock) >= blockCount {
		dev.Close()
		return newErr("Format", Inval, fmt.Errorf("volume too small for %d inodes", inodeCount))
	}

	v.inodeTableStart = inodeTableStart
	v.imapStart = imapStart
	v.imapNodeCount = imapNodeCount
	v.firstDataBlock = firstDataBlock
	v.reservedBlocks = reservedBlockCount(cfg.ReadOnly, incompat&FeaturePosixAPI != 0,
		v.master.DirectPointers, v.master.IndirPointers, blockSize, incompat)
	v.reservedInodes = 1

	if useExternal {
		v.im = externalImap{vol: v}
	} else {
		v.im = inlineImap{vol: v}
	}

	v.cache = newBufferCache(v, 64)
	v.metaroots[0] = MetaRoot{ForwardAlloc: firstDataBlock, Bitmap: make([]byte, blockSize-metaRootHeaderSize)}
	v.metaroots[1] = MetaRoot{ForwardAlloc: firstDataBlock, Bitmap: make([]byte, blockSize-metaRootHeaderSize)}
	v.metaroots[0].FreeBlocks = blockCount - uint64(firstDataBlock)
	v.metaroots[1].FreeBlocks = v.metaroots[0].FreeBlocks
	v.metaroots[0].FreeInodes = inodeCount // formatCreateRoot takes the root's slot
	v.metaroots[1].FreeInodes = v.metaroots[0].FreeInodes
	v.committed = 0

	// Step 4: for external imap, zero both copies of every imap node.
	if useExternal {
		for i := uint32(0); i < imapNodeCount; i++ {
			for copyIdx := 0; copyIdx < 2; copyIdx++ {
				buf, err := v.cache.get(externalImap{vol: v}.nodeBlock(i, copyIdx), getNew, SigImap)
				if err != nil {
					formatFail(v)
					return err
				}
				v.cache.put(buf)
			}
		}
		if err := v.cache.flushRange(imapStart, imapNodeCount*2); err != nil {
			formatFail(v)
			return err
		}
	}

	// Step 5: write first metaroot as fully empty, mark branched, transact.
	v.branched = true
	if err := v.transactLocked(); err != nil {
		formatFail(v)
		return err
	}

	// Step 6: create the root directory inode.
	if err := v.formatCreateRoot(); err != nil {
		formatFail(v)
		return err
	}

	// Step 7: transact a second time.
	if err := v.transactLocked(); err != nil {
		formatFail(v)
		return err
	}

	// Step 8: write the master block and flush.
	block := v.master.encode(blockSize)
	if err := v.ioWriteBlock(0, block); err != nil {
		formatFail(v)
		return err
	}
	if err := dev.Flush(); err != nil {
		formatFail(v)
		return err
	}

	v.cache.discardAll()
	return dev.Close()
}

func formatFail(v *Volume) {
	v.cache.discardAll()
	v.dev.Close()
}

// formatCreateRoot builds the root directory inode (inode 2), empty,
// self-owned, with a link count reflecting whether "." is counted
// separately (spec.md §8 S1: "link count equal to 1 (or 2 depending on
// link-count configuration)").
func (v *Volume) formatCreateRoot() error {
	buf, err := v.cache.get(v.inodeBlock(rootInode), getNew, SigInode)
	if err != nil {
		return err
	}
	defer v.cache.put(buf)

	nDirect := int(v.master.DirectPointers)
	nIndirect := int(v.master.IndirPointers)
	entries := (v.BlockSize() - inodeHeaderSize(v.master.Incompat)) / 4
	nDIndirect := entries - nDirect - nIndirect

	ino := &Inode{
		Mode:      ModeDir | 0755,
		NLink:     1,
		Parent:    rootInode,
		Direct:    make([]uint32, nDirect),
		Indirect:  make([]uint32, nIndirect),
		DIndirect: make([]uint32, nDIndirect),
	}
	if v.master.Incompat&FeaturePosixLink != 0 {
		ino.NLink = 2
	}
	if v.master.Incompat&FeatureInodeTimestamps != 0 {
		now := v.master.FormatTime
		ino.ATime, ino.MTime, ino.CTime = now, now, now
	}

	copy(buf.data, ino.encode(&v.master, v.BlockSize()))
	v.cache.markDirty(buf)
	v.branched = true

	w := v.workingRoot()
	w.FreeInodes--
	return nil
}

func log2(n int) uint8 {
	var l uint8
	for 1<<l < n {
		l++
	}
	return l
}

// formatTimeNow stamps the master block's format time.
func formatTimeNow() int64 { return time.Now().Unix() }
