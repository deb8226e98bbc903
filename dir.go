package txfs

import "fmt"

// dirEntrySize returns the fixed width of one directory entry: a 4-byte
// inode number followed by a null-padded name field nameMax bytes long
// (spec.md §3 "A directory's data is an ordered sequence of fixed-width
// entries").
func dirEntrySize(nameMax int) int { return 4 + nameMax }

type dirEntry struct {
	Inode uint32
	Name  string
}

func decodeDirEntry(raw []byte) dirEntry {
	inode := order.Uint32(raw[0:4])
	nameBytes := raw[4:]
	end := 0
	for end < len(nameBytes) && nameBytes[end] != 0 {
		end++
	}
	return dirEntry{Inode: inode, Name: string(nameBytes[:end])}
}

func encodeDirEntry(e dirEntry, nameMax int) []byte {
	raw := make([]byte, dirEntrySize(nameMax))
	order.PutUint32(raw[0:4], e.Inode)
	copy(raw[4:], e.Name)
	return raw
}

// dirLookup scans dirCI's data for name, returning its inode number and
// byte offset. Returns a NoEntry error if absent (spec.md §3 "lookup").
func dirLookup(dirCI *CachedInode, name string) (uint32, uint64, error) {
	nameMax := int(dirCI.vol.master.NameMax)
	entrySize := dirEntrySize(nameMax)
	raw := make([]byte, entrySize)

	for off := uint64(0); off < dirCI.Ino.Size; off += uint64(entrySize) {
		n, err := dirCI.dataRead(off, raw)
		if err != nil {
			return 0, 0, err
		}
		if n < entrySize {
			break
		}
		e := decodeDirEntry(raw)
		if e.Inode != inodeNumNone && e.Name == name {
			return e.Inode, off, nil
		}
	}
	return 0, 0, newErr("dirLookup", NoEntry, fmt.Errorf("%q not found", name))
}

// dirCreate adds an entry (name -> inodeNum) to dirCI, reusing the first
// tombstone (inode==0 entry) if one exists, else appending (spec.md §3
// "entry with inode=0 is a tombstone and is reused in preference to
// growing the directory"). Returns an Exists error if name is already live.
func dirCreate(dirCI *CachedInode, name string, inodeNum uint32) error {
	if len(name) > int(dirCI.vol.master.NameMax) {
		return newErr("dirCreate", NameTooLong, nil)
	}

	nameMax := int(dirCI.vol.master.NameMax)
	entrySize := dirEntrySize(nameMax)
	raw := make([]byte, entrySize)

	tombstoneOff := int64(-1)
	for off := uint64(0); off < dirCI.Ino.Size; off += uint64(entrySize) {
		n, err := dirCI.dataRead(off, raw)
		if err != nil {
			return err
		}
		if n < entrySize {
			break
		}
		e := decodeDirEntry(raw)
		if e.Inode == inodeNumNone {
			if tombstoneOff < 0 {
				tombstoneOff = int64(off)
			}
			continue
		}
		if e.Name == name {
			return newErr("dirCreate", Exists, nil)
		}
	}

	entry := encodeDirEntry(dirEntry{Inode: inodeNum, Name: name}, nameMax)
	if tombstoneOff >= 0 {
		_, err := dirCI.dataWrite(uint64(tombstoneOff), entry)
		return err
	}
	_, err := dirCI.dataWrite(dirCI.Ino.Size, entry)
	return err
}

// dirDelete tombstones the entry at byte offset off (as returned by
// dirLookup), leaving the slot for reuse by a future dirCreate rather than
// shrinking the directory (spec.md §3 "delete").
func dirDelete(dirCI *CachedInode, off uint64) error {
	nameMax := int(dirCI.vol.master.NameMax)
	entry := encodeDirEntry(dirEntry{Inode: inodeNumNone}, nameMax)
	_, err := dirCI.dataWrite(off, entry)
	return err
}

// dirIsEmpty reports whether dirCI has no live entries (spec.md §3
// "rename"'s destination-directory-must-be-empty check).
func dirIsEmpty(dirCI *CachedInode) (bool, error) {
	nameMax := int(dirCI.vol.master.NameMax)
	entrySize := dirEntrySize(nameMax)
	raw := make([]byte, entrySize)
	for off := uint64(0); off < dirCI.Ino.Size; off += uint64(entrySize) {
		n, err := dirCI.dataRead(off, raw)
		if err != nil {
			return false, err
		}
		if n < entrySize {
			break
		}
		if decodeDirEntry(raw).Inode != inodeNumNone {
			return false, nil
		}
	}
	return true, nil
}

// dirRead enumerates dirCI's live entries starting at byte cursor,
// skipping tombstones, and returns the next entry plus the cursor to
// resume from. ok is false once the directory is exhausted (spec.md §3
// "read").
func dirRead(dirCI *CachedInode, cursor uint64) (name string, inode uint32, next uint64, ok bool, err error) {
	nameMax := int(dirCI.vol.master.NameMax)
	entrySize := dirEntrySize(nameMax)
	raw := make([]byte, entrySize)

	for off := cursor; off < dirCI.Ino.Size; off += uint64(entrySize) {
		n, rerr := dirCI.dataRead(off, raw)
		if rerr != nil {
			return "", 0, 0, false, rerr
		}
		if n < entrySize {
			break
		}
		e := decodeDirEntry(raw)
		if e.Inode != inodeNumNone {
			return e.Name, e.Inode, off + uint64(entrySize), true, nil
		}
	}
	return "", 0, dirCI.Ino.Size, false, nil
}

// dirRename implements rename (spec.md §3 "rename"): if a destination
// entry exists and names a directory, that directory must be empty; the
// destination is unlinked (or orphaned), the source entry is tombstoned,
// and a fresh entry is created under the destination name. Atomicity
// across all of this is the caller's Transact call, not this function.
func dirRename(v *Volume, srcParent uint32, srcName string, dstParent uint32, dstName string) error {
	srcDirCI, err := v.mountInode(srcParent, WantDir, true)
	if err != nil {
		return err
	}
	defer srcDirCI.release()

	srcInode, srcOff, err := dirLookup(srcDirCI, srcName)
	if err != nil {
		return err
	}

	var dstDirCI *CachedInode
	if dstParent == srcParent {
		dstDirCI = srcDirCI
	} else {
		dstDirCI, err = v.mountInode(dstParent, WantDir, true)
		if err != nil {
			return err
		}
		defer dstDirCI.release()
	}

	if dstInode, dstOff, err := dirLookup(dstDirCI, dstName); err == nil {
		victim, err := v.mountInode(dstInode, WantAny, true)
		if err != nil {
			return err
		}
		if victim.Ino.Mode.IsDir() {
			empty, err := dirIsEmpty(victim)
			if err != nil {
				victim.release()
				return err
			}
			if !empty {
				victim.release()
				return newErr("dirRename", NotEmpty, nil)
			}
		}
		if err := victim.linkDec(true); err != nil {
			victim.release()
			return err
		}
		victim.release()
		if err := dirDelete(dstDirCI, dstOff); err != nil {
			return err
		}
	}

	if err := dirDelete(srcDirCI, srcOff); err != nil {
		return err
	}
	return dirCreate(dstDirCI, dstName, srcInode)
}
