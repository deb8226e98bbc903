package txfs

import (
	"io"

	"github.com/google/renameio"
)

// CreateImageFile creates (or atomically replaces) a file-backed volume
// image of exactly sizeBytes, ready for Format to lay out. It uses
// google/renameio so a process that crashes mid-creation never leaves a
// half-written image visible at path (SPEC_FULL.md DOMAIN STACK "format
// routine's image-file creation").
func CreateImageFile(path string, sizeBytes int64) error {
	t, err := renameio.TempFile("", path)
	if err != nil {
		return newErr("CreateImageFile", Io, err)
	}
	defer t.Cleanup()

	if err := t.Truncate(sizeBytes); err != nil {
		return newErr("CreateImageFile", Io, err)
	}
	if _, err := t.Seek(0, io.SeekStart); err != nil {
		return newErr("CreateImageFile", Io, err)
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return newErr("CreateImageFile", Io, err)
	}
	return nil
}
