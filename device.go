package txfs

// OpenMode selects the access mode a BlockDevice is opened with
// (spec.md §4.1).
type OpenMode int

const (
	RDONLY OpenMode = iota
	WRONLY
	RDWR
)

// SectorSizeAuto / SectorCountAuto request that BlockDevice.Geometry supply
// the value instead of it coming from Config (spec.md §6.4).
const (
	SectorSizeAuto  = 0
	SectorCountAuto = 0
)

// BlockDevice is the narrow interface the core consumes from its host-OS
// collaborator (spec.md §4.1). Implementations in this module
// (ramdev.go, filedev.go) are the minimal test/tooling collaborators the
// spec allows at this boundary, not a general OS block-device shim layer —
// those (raw partition, FreeRTOS/Linux/STM32 drivers) are explicitly out of
// scope.
//
// The core requires that write order within a single call is preserved but
// makes no assumption about ordering between calls until Flush returns.
type BlockDevice interface {
	// Open prepares the device for the given access mode.
	Open(mode OpenMode) error
	// Close releases any resources Open acquired.
	Close() error
	// Geometry reports sector size in bytes and sector count. A device
	// that cannot report them returns an error, and the caller must instead
	// supply the values via Config.
	Geometry() (sectorSize int, sectorCount int64, err error)
	// ReadAt reads count sectors starting at startSector into buf, which
	// must be exactly count*sectorSize bytes.
	ReadAt(startSector int64, count int, buf []byte) error
	// WriteAt writes count sectors starting at startSector from buf.
	// The I/O layer does not call it on a volume mounted read-only
	// (Volume.readOnly); the devices in this module return a ReadOnly
	// error when opened RDONLY.
	WriteAt(startSector int64, count int, buf []byte) error
	// Flush requests that all previously accepted writes reach stable
	// storage before it returns.
	Flush() error
}
