package txfs

import (
	"hash/crc32"
)

// metaRootFixedSize is the byte length of the metaroot's fixed fields
// immediately after the 16-byte node header: first-sector CRC, free-block
// count, free-inode count, forward-allocation pointer, and the three
// orphan-list anchors (spec.md §3 "Metaroot").
const metaRootFixedSize = 4 + 8 + 4 + 4 + 4 + 4 + 4 // 32
const metaRootHeaderSize = nodeHeaderSize + metaRootFixedSize

// MetaRoot is one of the two per-volume root-of-trust blocks (blocks 1 and
// 2). Exactly one is committed at any moment; the other is the working
// state a transaction mutates. Which is which is tracked in Volume, not
// here — the metaroot itself carries only its own sequence number.
type MetaRoot struct {
	Sequence       uint64
	FirstSectorCRC uint32
	FreeBlocks     uint64
	FreeInodes     uint32
	ForwardAlloc   uint32
	OrphanHead     uint32
	OrphanTail     uint32
	OrphanDefunct  uint32
	// Bitmap fills the remainder of the block. In inline imap mode it is
	// the allocation bitmap directly; in external mode it is the
	// per-imap-node toggle bitmap (imap.go).
	Bitmap []byte
}

func bitmapCapacity(blockSize int) int {
	return (blockSize - metaRootHeaderSize) * 8
}

// decodeMetaRoot parses a raw block (as read from disk) into a MetaRoot. It
// does not itself validate the node header; callers check that via
// verifyNode first so a single validity decision covers both mount-time
// candidates.
func decodeMetaRoot(block []byte) *MetaRoot {
	h := decodeNodeHeader(block)
	b := block[nodeHeaderSize:]
	m := &MetaRoot{
		Sequence:       h.Sequence,
		FirstSectorCRC: order.Uint32(b[0:4]),
		FreeBlocks:     order.Uint64(b[4:12]),
		FreeInodes:     order.Uint32(b[12:16]),
		ForwardAlloc:   order.Uint32(b[16:20]),
		OrphanHead:     order.Uint32(b[20:24]),
		OrphanTail:     order.Uint32(b[24:28]),
		OrphanDefunct:  order.Uint32(b[28:32]),
	}
	bm := make([]byte, len(block)-metaRootHeaderSize)
	copy(bm, block[metaRootHeaderSize:])
	m.Bitmap = bm
	return m
}

// encode serializes m into a full block buffer. The node header's CRC and
// sequence, and the first-sector CRC, are stamped separately by
// Volume.writeMetaRoot (transact.go) at commit time — this only lays out
// the fields.
func (m *MetaRoot) encode(blockSize int) []byte {
	block := make([]byte, blockSize)
	order.PutUint32(block[0:4], uint32(SigMetaroot))

	b := block[nodeHeaderSize:]
	order.PutUint32(b[0:4], m.FirstSectorCRC)
	order.PutUint64(b[4:12], m.FreeBlocks)
	order.PutUint32(b[12:16], m.FreeInodes)
	order.PutUint32(b[16:20], m.ForwardAlloc)
	order.PutUint32(b[20:24], m.OrphanHead)
	order.PutUint32(b[24:28], m.OrphanTail)
	order.PutUint32(b[28:32], m.OrphanDefunct)
	copy(block[metaRootHeaderSize:], m.Bitmap)
	return block
}

// stampMetaRoot finalizes block for commit: sequence number, first-sector
// CRC over the now-final first sectorSize bytes, then the whole-node header
// CRC, which therefore also covers (and validates) the first-sector CRC
// field itself (spec.md §4.5 step 3, §6.1).
func stampMetaRoot(block []byte, seq uint64, sectorSize int) {
	order.PutUint64(block[8:16], seq)

	fsCRCOff := nodeHeaderSize
	order.PutUint32(block[fsCRCOff:fsCRCOff+4], 0)
	fsCRC := crc32.ChecksumIEEE(block[8:sectorSize])
	order.PutUint32(block[fsCRCOff:fsCRCOff+4], fsCRC)

	crc := crcBlock(block)
	order.PutUint32(block[4:8], crc)
}

// verifyMetaRootFirstSector re-checks the first-sector CRC independently of
// the whole-node CRC, allowing a caller to detect a torn write that landed
// the first sector but not the rest (or vice versa).
func verifyMetaRootFirstSector(block []byte, sectorSize int) bool {
	fsCRCOff := nodeHeaderSize
	want := order.Uint32(block[fsCRCOff : fsCRCOff+4])
	tmp := make([]byte, len(block))
	copy(tmp, block)
	order.PutUint32(tmp[fsCRCOff:fsCRCOff+4], 0)
	return crc32.ChecksumIEEE(tmp[8:sectorSize]) == want
}
