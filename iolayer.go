package txfs

import "fmt"

// ioReadBlock and ioWriteBlock are the I/O layer (spec.md §4.2): they
// translate a filesystem block number into a sector range on the
// underlying BlockDevice, add the volume's sector offset, and reject
// out-of-range accesses. The buffer cache reaches the device through these
// functions (and ioFlush), its bypass read_range/write_range included. Mount
// and Fsck read the master block and metaroots with ReadAt directly, Format
// calls Flush directly, and Restore writes with WriteAt directly.

func (v *Volume) sectorsPerBlock() int {
	return v.master.BlockSize() / v.sectorSize
}

func (v *Volume) blockRange(block uint32, nblocks int) (startSector int64, sectorCount int, err error) {
	if int64(block)+int64(nblocks) > int64(v.master.BlockCount) {
		return 0, 0, newErr("io", Range, fmt.Errorf("block range [%d,%d) exceeds volume of %d blocks", block, uint32(nblocks)+block, v.master.BlockCount))
	}
	spb := v.sectorsPerBlock()
	start := v.sectorOffset + int64(block)*int64(spb)
	return start, nblocks * spb, nil
}

func (v *Volume) ioReadBlock(block uint32, buf []byte) error {
	start, count, err := v.blockRange(block, 1)
	if err != nil {
		return err
	}
	return v.dev.ReadAt(start, count, buf)
}

func (v *Volume) ioWriteBlock(block uint32, buf []byte) error {
	if v.readOnly {
		return newErr("io", ReadOnly, nil)
	}
	start, count, err := v.blockRange(block, 1)
	if err != nil {
		return err
	}
	return v.dev.WriteAt(start, count, buf)
}

// ioReadBlocks / ioWriteBlocks handle a contiguous multi-block range in one
// device call, used by the buffer cache's read_range/write_range bypass for
// large file-data transfers (spec.md §4.3).
func (v *Volume) ioReadBlocks(block uint32, buf []byte) error {
	blockSize := v.master.BlockSize()
	nblocks := len(buf) / blockSize
	start, count, err := v.blockRange(block, nblocks)
	if err != nil {
		return err
	}
	return v.dev.ReadAt(start, count, buf)
}

func (v *Volume) ioWriteBlocks(block uint32, buf []byte) error {
	if v.readOnly {
		return newErr("io", ReadOnly, nil)
	}
	blockSize := v.master.BlockSize()
	nblocks := len(buf) / blockSize
	start, count, err := v.blockRange(block, nblocks)
	if err != nil {
		return err
	}
	return v.dev.WriteAt(start, count, buf)
}

func (v *Volume) ioFlush() error {
	if v.readOnly {
		return nil
	}
	return v.dev.Flush()
}
