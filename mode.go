package txfs

import (
	"io/fs"
)

// Inode mode bits are POSIX-shaped (see https://golang.org/src/os/stat_linux.go)
// even though txfs only ever stores three file types on disk: regular,
// directory, and (posix_symlink) symlink — spec.md §3 "Inode: mode (type
// bits distinguish regular/directory/symlink plus permission bits)".

const (
	sIFREG = 0x8000
	sIFDIR = 0x4000
	sIFLNK = 0xa000

	sISVTX = 0x200
	sISGID = 0x400
	sISUID = 0x800
)

// unixToFSMode converts an on-disk InodeMode (posix_owner_perm enabled) to
// an fs.FileMode for stat-like callers.
func unixToFSMode(mode InodeMode) fs.FileMode {
	res := fs.FileMode(mode & 0777)

	switch {
	case mode.IsDir():
		res |= fs.ModeDir
	case mode.IsSymlink():
		res |= fs.ModeSymlink
	}

	if mode&sISGID == sISGID {
		res |= fs.ModeSetgid
	}
	if mode&sISUID == sISUID {
		res |= fs.ModeSetuid
	}
	if mode&sISVTX == sISVTX {
		res |= fs.ModeSticky
	}

	return res
}

// fsModeToUnix is the inverse, used when creating a new inode from a
// caller-supplied fs.FileMode.
func fsModeToUnix(mode fs.FileMode) InodeMode {
	res := InodeMode(mode.Perm())

	switch {
	case mode&fs.ModeDir == fs.ModeDir:
		res |= sIFDIR
	case mode&fs.ModeSymlink == fs.ModeSymlink:
		res |= sIFLNK
	default:
		res |= sIFREG
	}

	if mode&fs.ModeSetgid == fs.ModeSetgid {
		res |= sISGID
	}
	if mode&fs.ModeSetuid == fs.ModeSetuid {
		res |= sISUID
	}
	if mode&fs.ModeSticky == fs.ModeSticky {
		res |= sISVTX
	}

	return res
}
