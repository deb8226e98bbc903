package txfs

import (
	"errors"
	"fmt"
	"io/fs"
	"time"
)

// FileInfo is the stat result returned by Stat/ReadDir, shaped to satisfy
// io/fs.FileInfo so cmd/txfsfuse and cmd/txfsutil can hand it straight to
// fs.FS-consuming code the way squashfs's own inode.go does.
type FileInfo struct {
	name  string
	inode uint32
	ino   *Inode
}

func (fi FileInfo) Name() string       { return fi.name }
func (fi FileInfo) Size() int64        { return int64(fi.ino.Size) }
func (fi FileInfo) Mode() fs.FileMode  { return unixToFSMode(fi.ino.Mode) }
func (fi FileInfo) ModTime() time.Time { return time.Unix(fi.ino.MTime, 0) }
func (fi FileInfo) IsDir() bool        { return fi.ino.Mode.IsDir() }
func (fi FileInfo) Sys() any           { return fi.ino }
func (fi FileInfo) Inode() uint32      { return fi.inode }

// DirEntry is one entry returned by ReadDir.
type DirEntry struct {
	Name  string
	Inode uint32
}

// Stat resolves path and returns its inode's metadata.
func (v *Volume) Stat(path string) (FileInfo, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.checkFubar("Stat"); err != nil {
		return FileInfo{}, err
	}

	num, err := v.resolve(path)
	if err != nil {
		return FileInfo{}, err
	}
	ci, err := v.mountInode(num, WantAny, false)
	if err != nil {
		return FileInfo{}, err
	}
	defer ci.release()
	return FileInfo{name: baseName(path), inode: num, ino: ci.Ino}, nil
}

// ReadDir resolves path (which must be a directory) and lists its live
// entries.
func (v *Volume) ReadDir(path string) ([]DirEntry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.checkFubar("ReadDir"); err != nil {
		return nil, err
	}

	num, err := v.resolve(path)
	if err != nil {
		return nil, err
	}
	dirCI, err := v.mountInode(num, WantDir, false)
	if err != nil {
		return nil, err
	}
	defer dirCI.release()

	var out []DirEntry
	cursor := uint64(0)
	for {
		name, inode, next, ok, err := dirRead(dirCI, cursor)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, DirEntry{Name: name, Inode: inode})
		cursor = next
	}
	return out, nil
}

// ReadFile reads the entire contents of the regular file at path.
func (v *Volume) ReadFile(path string) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.checkFubar("ReadFile"); err != nil {
		return nil, err
	}

	num, err := v.resolve(path)
	if err != nil {
		return nil, err
	}
	ci, err := v.mountInode(num, WantRegular, false)
	if err != nil {
		return nil, err
	}
	defer ci.release()

	buf := make([]byte, ci.Ino.Size)
	if _, err := ci.dataRead(0, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteFile creates (or truncates and rewrites) a regular file at path
// with the given contents, auto-committing the transaction.
func (v *Volume) WriteFile(path string, data []byte, mode InodeMode) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.checkFubar("WriteFile"); err != nil {
		return err
	}

	num, err := v.resolve(path)
	if err == nil {
		ci, err := v.mountInode(num, WantRegular, true)
		if err != nil {
			return err
		}
		if err := ci.dataTruncate(0); err != nil {
			ci.release()
			return err
		}
		if _, err := ci.dataWrite(0, data); err != nil {
			ci.release()
			return err
		}
		ci.release()
		return v.transactLocked()
	}

	if err := v.createRegular(path, data, mode); err != nil {
		return err
	}
	return v.transactLocked()
}

// Mkdir creates an empty directory at path.
func (v *Volume) Mkdir(path string, mode InodeMode) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.checkFubar("Mkdir"); err != nil {
		return err
	}

	parent, name, err := v.resolveParent(path)
	if err != nil {
		return err
	}
	if err := v.createInode(parent, name, ModeDir|mode); err != nil {
		return err
	}
	return v.transactLocked()
}

// Unlink removes a directory entry, freeing the inode once its link count
// reaches zero (spec.md §3 "link_dec").
func (v *Volume) Unlink(path string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.checkFubar("Unlink"); err != nil {
		return err
	}

	parent, name, err := v.resolveParent(path)
	if err != nil {
		return err
	}
	if parent == rootInode && name == "" {
		return newErr("Unlink", Perm, fmt.Errorf("cannot unlink root"))
	}

	dirCI, err := v.mountInode(parent, WantDir, true)
	if err != nil {
		return err
	}
	defer dirCI.release()

	target, off, err := dirLookup(dirCI, name)
	if err != nil {
		return err
	}
	if target == rootInode {
		return newErr("Unlink", Perm, fmt.Errorf("cannot unlink root"))
	}

	ci, err := v.mountInode(target, WantAny, true)
	if err != nil {
		return err
	}
	if ci.Ino.Mode.IsDir() {
		empty, err := dirIsEmpty(ci)
		if err != nil {
			ci.release()
			return err
		}
		if !empty {
			ci.release()
			return newErr("Unlink", NotEmpty, nil)
		}
	}
	if err := ci.linkDec(true); err != nil {
		ci.release()
		return err
	}
	ci.release()

	if err := dirDelete(dirCI, off); err != nil {
		return err
	}
	return v.transactLocked()
}

// Rename implements the host-facing rename, atomically committed.
func (v *Volume) Rename(srcPath, dstPath string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.checkFubar("Rename"); err != nil {
		return err
	}

	srcParent, srcName, err := v.resolveParent(srcPath)
	if err != nil {
		return err
	}
	dstParent, dstName, err := v.resolveParent(dstPath)
	if err != nil {
		return err
	}
	if err := dirRename(v, srcParent, srcName, dstParent, dstName); err != nil {
		return err
	}
	return v.transactLocked()
}

func (v *Volume) createRegular(path string, data []byte, mode InodeMode) error {
	parent, name, err := v.resolveParent(path)
	if err != nil {
		return err
	}
	if err := v.createInode(parent, name, ModeRegular|mode); err != nil {
		return err
	}
	num, _, err := func() (uint32, uint64, error) {
		dirCI, err := v.mountInode(parent, WantDir, false)
		if err != nil {
			return 0, 0, err
		}
		defer dirCI.release()
		return dirLookup(dirCI, name)
	}()
	if err != nil {
		return err
	}
	ci, err := v.mountInode(num, WantRegular, true)
	if err != nil {
		return err
	}
	defer ci.release()
	_, err = ci.dataWrite(0, data)
	return err
}

// createInode allocates a free inode slot, initializes it as newMode, and
// links it into parent under name.
func (v *Volume) createInode(parent uint32, name string, newMode InodeMode) error {
	dirCI, err := v.mountInode(parent, WantDir, true)
	if err != nil {
		return err
	}
	defer dirCI.release()

	if _, _, err := dirLookup(dirCI, name); err == nil {
		return newErr("createInode", Exists, nil)
	}

	num, err := v.allocInode()
	if err != nil {
		return err
	}

	nDirect := int(v.master.DirectPointers)
	nIndirect := int(v.master.IndirPointers)
	entries := (v.BlockSize() - inodeHeaderSize(v.master.Incompat)) / 4
	nDIndirect := entries - nDirect - nIndirect

	ino := &Inode{
		Mode:      newMode,
		NLink:     1,
		Parent:    parent,
		Direct:    make([]uint32, nDirect),
		Indirect:  make([]uint32, nIndirect),
		DIndirect: make([]uint32, nDIndirect),
	}
	if v.master.Incompat&FeatureInodeTimestamps != 0 {
		now := time.Now().Unix()
		ino.ATime, ino.MTime, ino.CTime = now, now, now
	}

	buf, err := v.cache.get(v.inodeBlock(num), getNew, SigInode)
	if err != nil {
		return err
	}
	copy(buf.data, ino.encode(&v.master, v.BlockSize()))
	v.cache.markDirty(buf)
	v.cache.put(buf)
	v.branched = true

	return dirCreate(dirCI, name, num)
}

// allocInode finds a free inode slot by linear scan of the inode table,
// looking for a slot whose Mode is 0 (spec.md §3 "link_dec... mark the
// inode slot free" — the inverse condition this scans for).
func (v *Volume) allocInode() (uint32, error) {
	w := v.workingRoot()
	if w.FreeInodes == 0 {
		return 0, newErr("allocInode", TooManyFiles, nil)
	}
	for num := uint32(firstInode); num < firstInode+v.master.InodeCount; num++ {
		buf, err := v.cache.get(v.inodeBlock(num), 0, SigInode)
		if err != nil {
			if !errors.Is(err, Io) {
				return 0, err
			}
			// an inode slot whose block has never been written (format
			// only initializes the root) doesn't verify; treat as free.
			w.FreeInodes--
			return num, nil
		}
		mode := decodeInode(buf.data, &v.master).Mode
		v.cache.put(buf)
		if mode == 0 {
			w.FreeInodes--
			return num, nil
		}
	}
	return 0, newErr("allocInode", TooManyFiles, fmt.Errorf("no free inode slot despite free_inodes=%d", w.FreeInodes))
}

func baseName(path string) string {
	parts := splitPath(path)
	if len(parts) == 0 {
		return "/"
	}
	return parts[len(parts)-1]
}
