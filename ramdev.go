package txfs

import (
	"fmt"
	"io"

	"github.com/orcaman/writerseeker"
)

// RAMDevice is an in-memory BlockDevice, the minimal collaborator needed to
// run format/mount/transact in tests without touching a real disk. Its
// backing store is a github.com/orcaman/writerseeker.WriterSeeker, which
// implements Write+Seek over a growable in-memory buffer and hands out an
// io.ReaderAt-capable snapshot via BytesReader (SPEC_FULL.md DOMAIN STACK
// item 3).
type RAMDevice struct {
	sectorSize  int
	sectorCount int64

	ws        writerseeker.WriterSeeker
	extended  bool
	mode      OpenMode
	open      bool
}

// NewRAMDevice creates a RAM disk of sectorCount sectors of sectorSize bytes.
func NewRAMDevice(sectorSize int, sectorCount int64) *RAMDevice {
	return &RAMDevice{sectorSize: sectorSize, sectorCount: sectorCount}
}

func (d *RAMDevice) Open(mode OpenMode) error {
	if d.open {
		return newErr("ramdev.Open", Busy, nil)
	}
	d.mode = mode
	d.open = true
	if !d.extended {
		// pre-extend the backing buffer to the full device size so that
		// ReadAt of a never-written sector returns zeros, not io.EOF.
		zero := make([]byte, d.sectorSize)
		for i := int64(0); i < d.sectorCount; i++ {
			if _, err := d.ws.Write(zero); err != nil {
				return newErr("ramdev.Open", Io, err)
			}
		}
		d.extended = true
	}
	return nil
}

func (d *RAMDevice) Close() error {
	d.open = false
	return nil
}

func (d *RAMDevice) Geometry() (int, int64, error) {
	return d.sectorSize, d.sectorCount, nil
}

func (d *RAMDevice) checkRange(startSector int64, count int) error {
	if startSector < 0 || count < 0 || startSector+int64(count) > d.sectorCount {
		return newErr("ramdev", Range, fmt.Errorf("sector range [%d,%d) out of bounds (%d sectors)", startSector, startSector+int64(count), d.sectorCount))
	}
	return nil
}

func (d *RAMDevice) ReadAt(startSector int64, count int, buf []byte) error {
	if err := d.checkRange(startSector, count); err != nil {
		return err
	}
	n, err := d.ws.BytesReader().ReadAt(buf, startSector*int64(d.sectorSize))
	if err != nil && err != io.EOF {
		return newErr("ramdev.ReadAt", Io, err)
	}
	if n != len(buf) {
		return newErr("ramdev.ReadAt", Io, io.ErrUnexpectedEOF)
	}
	return nil
}

func (d *RAMDevice) WriteAt(startSector int64, count int, buf []byte) error {
	if d.mode == RDONLY {
		return newErr("ramdev.WriteAt", ReadOnly, nil)
	}
	if err := d.checkRange(startSector, count); err != nil {
		return err
	}
	if _, err := d.ws.Seek(startSector*int64(d.sectorSize), io.SeekStart); err != nil {
		return newErr("ramdev.WriteAt", Io, err)
	}
	if _, err := d.ws.Write(buf); err != nil {
		return newErr("ramdev.WriteAt", Io, err)
	}
	return nil
}

func (d *RAMDevice) Flush() error { return nil }
