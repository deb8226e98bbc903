package txfs

import "fmt"

// Inode numbers 0 and 1 never exist on disk; 2 is always the root
// directory (spec.md §3 "Inode").
const (
	inodeNumNone = 0
	rootInode    = 2
	firstInode   = rootInode
)

// inodeHeaderSize computes the variable-width inode header in front of the
// block-pointer entries array, mirroring the conditional-compilation sizing
// of INODE_HEADER_SIZE in original_source/core/include/rednodes.h: each
// optional field is only present when its feature bit is set.
func inodeHeaderSize(f IncompatFeature) int {
	size := nodeHeaderSize + 8 // Size
	if f&FeatureInodeBlocks != 0 {
		size += 4 // Blocks
	}
	if f&FeatureInodeTimestamps != 0 {
		size += 12 // ATime, MTime, CTime
	}
	size += 4 // Mode + NLink (or Mode + padding)
	if f&FeaturePosixAPI != 0 {
		size += 4 // Parent
		if f&FeatureDeleteOpen != 0 {
			size += 4 // NextOrphan
		}
		if f&FeaturePosixOwnerPerm != 0 {
			size += 8 // UID, GID
		}
	}
	return size
}

// Inode is the decoded form of one fixed, block-sized inode slot. Which
// optional fields round-trip to disk is governed by the volume's incompat
// feature bitmap (spec.md §3 "Inode").
type Inode struct {
	Size       uint64
	Blocks     uint32
	ATime      int64
	MTime      int64
	CTime      int64
	UID        uint32
	GID        uint32
	Mode       InodeMode
	NLink      uint16
	Parent     uint32
	NextOrphan uint32

	// Direct holds file-data block numbers; Indirect holds indirect-node
	// block numbers; DIndirect holds double-indirect-node block numbers.
	// A zero slot means sparse-or-past-EOF (spec.md §3).
	Direct    []uint32
	Indirect  []uint32
	DIndirect []uint32
}

func decodeInode(block []byte, m *MasterBlock) *Inode {
	f := m.Incompat
	hs := inodeHeaderSize(f)
	b := block[nodeHeaderSize:]
	off := 0

	ino := &Inode{}
	ino.Size = order.Uint64(b[off : off+8])
	off += 8
	if f&FeatureInodeBlocks != 0 {
		ino.Blocks = order.Uint32(b[off : off+4])
		off += 4
	}
	if f&FeatureInodeTimestamps != 0 {
		ino.ATime = int64(order.Uint32(b[off : off+4]))
		off += 4
		ino.MTime = int64(order.Uint32(b[off : off+4]))
		off += 4
		ino.CTime = int64(order.Uint32(b[off : off+4]))
		off += 4
	}
	ino.Mode = InodeMode(order.Uint16(b[off : off+2]))
	off += 2
	if f&FeaturePosixLink != 0 {
		ino.NLink = order.Uint16(b[off : off+2])
	}
	off += 2
	if f&FeaturePosixAPI != 0 {
		ino.Parent = order.Uint32(b[off : off+4])
		off += 4
		if f&FeatureDeleteOpen != 0 {
			ino.NextOrphan = order.Uint32(b[off : off+4])
			off += 4
		}
		if f&FeaturePosixOwnerPerm != 0 {
			ino.UID = order.Uint32(b[off : off+4])
			off += 4
			ino.GID = order.Uint32(b[off : off+4])
			off += 4
		}
	}

	entries := (len(block) - hs) / 4
	nDirect := int(m.DirectPointers)
	nIndirect := int(m.IndirPointers)
	nDIndirect := entries - nDirect - nIndirect

	raw := block[hs:]
	ino.Direct = readEntries(raw, 0, nDirect)
	ino.Indirect = readEntries(raw, nDirect, nIndirect)
	ino.DIndirect = readEntries(raw, nDirect+nIndirect, nDIndirect)
	return ino
}

func readEntries(raw []byte, start, count int) []uint32 {
	out := make([]uint32, count)
	for i := 0; i < count; i++ {
		off := (start + i) * 4
		out[i] = order.Uint32(raw[off : off+4])
	}
	return out
}

func writeEntries(raw []byte, start int, vals []uint32) {
	for i, v := range vals {
		off := (start + i) * 4
		order.PutUint32(raw[off:off+4], v)
	}
}

// encode serializes ino into a full block buffer, per the same variable
// header layout decodeInode expects. The node header's CRC/sequence are
// stamped by the buffer cache at flush time, not here.
func (ino *Inode) encode(m *MasterBlock, blockSize int) []byte {
	f := m.Incompat
	hs := inodeHeaderSize(f)
	block := make([]byte, blockSize)
	order.PutUint32(block[0:4], uint32(SigInode))

	b := block[nodeHeaderSize:]
	off := 0
	order.PutUint64(b[off:off+8], ino.Size)
	off += 8
	if f&FeatureInodeBlocks != 0 {
		order.PutUint32(b[off:off+4], ino.Blocks)
		off += 4
	}
	if f&FeatureInodeTimestamps != 0 {
		order.PutUint32(b[off:off+4], uint32(ino.ATime))
		off += 4
		order.PutUint32(b[off:off+4], uint32(ino.MTime))
		off += 4
		order.PutUint32(b[off:off+4], uint32(ino.CTime))
		off += 4
	}
	order.PutUint16(b[off:off+2], uint16(ino.Mode))
	off += 2
	if f&FeaturePosixLink != 0 {
		order.PutUint16(b[off:off+2], ino.NLink)
	}
	off += 2
	if f&FeaturePosixAPI != 0 {
		order.PutUint32(b[off:off+4], ino.Parent)
		off += 4
		if f&FeatureDeleteOpen != 0 {
			order.PutUint32(b[off:off+4], ino.NextOrphan)
			off += 4
		}
		if f&FeaturePosixOwnerPerm != 0 {
			order.PutUint32(b[off:off+4], ino.UID)
			off += 4
			order.PutUint32(b[off:off+4], ino.GID)
			off += 4
		}
	}

	raw := block[hs:]
	writeEntries(raw, 0, ino.Direct)
	writeEntries(raw, len(ino.Direct), ino.Indirect)
	writeEntries(raw, len(ino.Direct)+len(ino.Indirect), ino.DIndirect)
	return block
}

// inodeBlock returns the physical block holding inode number num: the
// inode table is one block per slot, so the mapping is direct (spec.md §3,
// §4.2 "inode-table start").
func (v *Volume) inodeBlock(num uint32) uint32 { return v.inodeTableStart + (num - firstInode) }

// CachedInode is the in-memory handle for a mounted inode (spec.md §3
// "Cached inode"): the inode number, its pinned buffer, the logical block
// reached by the last seek_and_read, and the pinned double-indirect and
// indirect buffers along that path. All of it is released by unmount/close.
type CachedInode struct {
	vol  *Volume
	Num  uint32
	buf  *Buffer
	Ino  *Inode
	want InodeTypeMask

	// logicalBlock is the block the last seek_and_read resolved; seekAndRead
	// computes the tier indexes with coordFor and does not store them in the
	// index fields below, which keep the values mountInode sets.
	logicalBlock uint32
	directIdx    int // index into Ino.Direct, or -1
	indirIdx     int // index into Ino.Indirect, or -1
	indirSlot    int // entry index within that indirect node
	dindirIdx    int // index into Ino.DIndirect, or -1
	dindirSlot   int // entry index within that double-indirect node
	dindirIndSlot int // entry index within the indirect node it names

	dindirBuf   *Buffer
	dindirBlock uint32
	indirBuf    *Buffer
	indirBlock  uint32
	dataBuf     *Buffer
	dataBlock   uint32

	dirty bool
}

// mountInode pins inode num's buffer, verifies its type against want, and
// returns a CachedInode ready for seek_and_read / data_* calls. Pass
// branch=true when the caller intends to modify the inode, which
// CoW-branches the inode block immediately if it's currently USED.
func (v *Volume) mountInode(num uint32, want InodeTypeMask, branch bool) (*CachedInode, error) {
	if num < firstInode || num >= firstInode+v.master.InodeCount {
		return nil, newErr("mountInode", Inval, fmt.Errorf("inode %d out of range", num))
	}

	block := v.inodeBlock(num)
	buf, err := v.cache.get(block, 0, SigInode)
	if err != nil {
		return nil, err
	}

	ino := decodeInode(buf.data, &v.master)
	if !want.allows(ino.Mode) {
		v.cache.put(buf)
		return nil, newErr("mountInode", Inval, fmt.Errorf("inode %d type %#o not in requested set", num, ino.Mode))
	}

	ci := &CachedInode{vol: v, Num: num, buf: buf, Ino: ino, want: want,
		directIdx: -1, indirIdx: -1, dindirIdx: -1}

	if branch {
		// The inode table is a fixed-position region addressed directly by
		// inode number (inodeBlock), exactly like the master block and the
		// metaroots: it is rewritten in place and never relocated, so there
		// is nothing here for blockStateOf/branchBuffer to CoW-branch (that
		// machinery covers the data/indirect/dindir tree, whose blocks the
		// imap actually tracks starting at firstDataBlock).
		ci.dirty = true
	}

	return ci, nil
}

// flushFields re-encodes Ino into ci's pinned buffer and marks it dirty;
// call after mutating any field.
func (ci *CachedInode) flushFields() {
	data := ci.Ino.encode(&ci.vol.master, ci.vol.BlockSize())
	copy(ci.buf.data, data)
	ci.vol.cache.markDirty(ci.buf)
	ci.vol.branched = true
}

// release unpins every buffer this handle holds (spec.md §3 invariant: "all
// pinned buffers held by a mounted cached inode are released on any path
// that tears down the handle").
func (ci *CachedInode) release() {
	if ci.dataBuf != nil {
		ci.vol.cache.put(ci.dataBuf)
		ci.dataBuf = nil
	}
	if ci.indirBuf != nil {
		ci.vol.cache.put(ci.indirBuf)
		ci.indirBuf = nil
	}
	if ci.dindirBuf != nil {
		ci.vol.cache.put(ci.dindirBuf)
		ci.dindirBuf = nil
	}
	if ci.buf != nil {
		ci.vol.cache.put(ci.buf)
		ci.buf = nil
	}
}
