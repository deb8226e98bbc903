package txfs

import (
	"fmt"
)

// Layout version understood by this build. Mount refuses an on-disk version
// it doesn't recognize via the incompat feature bitmap, not this field —
// this field exists purely for diagnostics (spec.md §3 "Master block").
const layoutVersion uint32 = 1

// IncompatFeature bits change the on-disk layout in a way an older reader
// cannot safely parse; an unknown bit here refuses the mount entirely
// (spec.md §3 "An older reader refuses to mount if any incompat bit is
// unknown").
type IncompatFeature uint32

const (
	FeaturePosixAPI IncompatFeature = 1 << iota
	FeatureInodeTimestamps
	FeatureInodeBlocks
	FeaturePosixLink
	FeaturePosixOwnerPerm
	FeatureDeleteOpen
	FeaturePosixSymlink
	FeatureExternalImap
	FeatureDirBlockCRC
)

// ROFeature bits change semantics in a way an older reader can still parse
// correctly but must not write to; unknown bits force a read-only mount
// (spec.md §3 "mounts read-only if any read-only feature is unknown").
type ROFeature uint32

const (
	ROFeatureReservedInodes ROFeature = 1 << iota
)

// legacy-feature flag byte bit, kept for images written before the
// incompat/ro bitmaps existed (SPEC_FULL.md "Master-block legacy-feature
// flag byte", grounded on original_source/core/include/redcorevol.h).
const legacyPosixOwnerPerm = 0x01

// MasterBlock identifies the volume; it lives at block 0 and is written
// once by Format and re-validated (not rewritten) on every Mount.
type MasterBlock struct {
	Version        uint32
	FormatTime     int64
	InodeCount     uint32
	BlockCount     uint64
	NameMax        uint16
	DirectPointers uint16
	IndirPointers  uint16
	BlockSizeLog   uint8 // block size = 1 << BlockSizeLog
	SectorSizeLog  uint8
	LegacyFlags    uint8
	Incompat       IncompatFeature
	ReadOnly       ROFeature
}

func (m *MasterBlock) BlockSize() int  { return 1 << m.BlockSizeLog }
func (m *MasterBlock) SectorSize() int { return 1 << m.SectorSizeLog }

// encode serializes the master block into a full-size block buffer,
// including its 16-byte node header. There is no sequence number on the
// master block: it is write-once at format time.
func (m *MasterBlock) encode(blockSize int) []byte {
	buf := make([]byte, blockSize)
	order.PutUint32(buf[0:4], uint32(SigMaster))

	b := buf[nodeHeaderSize:]
	order.PutUint32(b[0:4], m.Version)
	order.PutUint64(b[4:12], uint64(m.FormatTime))
	order.PutUint32(b[12:16], m.InodeCount)
	order.PutUint64(b[16:24], m.BlockCount)
	order.PutUint16(b[24:26], m.NameMax)
	order.PutUint16(b[26:28], m.DirectPointers)
	order.PutUint16(b[28:30], m.IndirPointers)
	b[30] = m.BlockSizeLog
	b[31] = m.SectorSizeLog
	b[32] = m.LegacyFlags
	order.PutUint32(b[33:37], uint32(m.Incompat))
	order.PutUint32(b[37:41], uint32(m.ReadOnly))

	crc := crcBlock(buf)
	order.PutUint32(buf[4:8], crc)
	return buf
}

// decodeMasterBlock parses and validates block 0. It returns an Io error if
// the signature or CRC doesn't match (a corrupt or unformatted device), and
// a NotSupp error if the build doesn't recognize a required incompat feature.
func decodeMasterBlock(block []byte, caps IncompatFeature) (*MasterBlock, error) {
	if !verifyNode(block, SigMaster) {
		return nil, newErr("mount", Io, fmt.Errorf("master block signature/crc mismatch"))
	}

	b := block[nodeHeaderSize:]
	m := &MasterBlock{
		Version:        order.Uint32(b[0:4]),
		FormatTime:     int64(order.Uint64(b[4:12])),
		InodeCount:     order.Uint32(b[12:16]),
		BlockCount:     order.Uint64(b[16:24]),
		NameMax:        order.Uint16(b[24:26]),
		DirectPointers: order.Uint16(b[26:28]),
		IndirPointers:  order.Uint16(b[28:30]),
		BlockSizeLog:   b[30],
		SectorSizeLog:  b[31],
		LegacyFlags:    b[32],
		Incompat:       IncompatFeature(order.Uint32(b[33:37])),
		ReadOnly:       ROFeature(order.Uint32(b[37:41])),
	}

	if m.Incompat == 0 && m.ReadOnly == 0 && m.LegacyFlags&legacyPosixOwnerPerm != 0 {
		// pre-feature-bitmap image: fall back to the original upgrade path.
		m.Incompat |= FeaturePosixOwnerPerm
	}

	if unknown := m.Incompat &^ caps; unknown != 0 {
		return nil, newErr("mount", NotSupp, fmt.Errorf("unknown incompat features 0x%x", uint32(unknown)))
	}

	return m, nil
}
