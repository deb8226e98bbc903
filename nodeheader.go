package txfs

import (
	"encoding/binary"
	"hash/crc32"
)

// nodeHeaderSize is the fixed 16-byte header prepended to every metadata
// block (spec.md §3 "Node header", §6.1).
const nodeHeaderSize = 16

// nodeHeader is the decoded form of those 16 bytes: {u32 signature, u32 crc,
// u64 sequence}. The CRC covers the node from byte 8 (immediately after the
// CRC field) to the end of the block.
type nodeHeader struct {
	Signature Signature
	CRC       uint32
	Sequence  uint64
}

// order is the on-disk byte order. txfs defaults to little-endian; the
// endian_swap config key (spec.md §6.3) flips it for a big-endian host.
var order binary.ByteOrder = binary.LittleEndian

func decodeNodeHeader(block []byte) nodeHeader {
	return nodeHeader{
		Signature: Signature(order.Uint32(block[0:4])),
		CRC:       order.Uint32(block[4:8]),
		Sequence:  order.Uint64(block[8:16]),
	}
}

// crcBlock computes the spec's CRC-32 (IEEE 802.3) over block[8:], the
// portion of the node after the CRC field, matching spec.md §6.1 and the
// bit-exact check every ext4/btrfs reader in the pack performs directly
// against hash/crc32 rather than through a third-party CRC package (see
// DESIGN.md).
func crcBlock(block []byte) uint32 {
	return crc32.ChecksumIEEE(block[8:])
}

// stampNode writes signature, a freshly computed CRC, and seq into block's
// header in place. Used by flush_range (buffer.go) right before a dirty
// metadata buffer is written.
func stampNode(block []byte, sig Signature, seq uint64) {
	order.PutUint32(block[0:4], uint32(sig))
	order.PutUint64(block[8:16], seq)
	crc := crcBlock(block)
	order.PutUint32(block[4:8], crc)
}

// verifyNode checks that block's stored signature matches want and that its
// stored CRC matches the recomputed CRC. A mismatch is a buffer-cache
// IoFailure per spec.md §4.3.
func verifyNode(block []byte, want Signature) bool {
	h := decodeNodeHeader(block)
	if h.Signature != want {
		return false
	}
	return h.CRC == crcBlock(block)
}
