package txfs

import (
	"strings"
)

// splitPath breaks a slash-separated path into its non-empty components.
// "." and "" both mean the root directory.
func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" || path == "." {
		return nil
	}
	return strings.Split(path, "/")
}

// resolve walks path from the root directory, returning the inode number
// of its final component, within this one Volume (there is no lookup from
// a path prefix to a volume number). The core itself only ever addresses
// inodes by number; path resolution is a thin collaborator atop it, not
// part of the transactional core.
func (v *Volume) resolve(path string) (uint32, error) {
	parts := splitPath(path)
	cur := uint32(rootInode)
	for _, name := range parts {
		dirCI, err := v.mountInode(cur, WantDir, false)
		if err != nil {
			return 0, err
		}
		next, _, err := dirLookup(dirCI, name)
		dirCI.release()
		if err != nil {
			return 0, err
		}
		cur = next
	}
	return cur, nil
}

// resolveParent walks all but the last component of path, returning the
// parent directory's inode number and the final component's name —
// the shape create/delete/rename need.
func (v *Volume) resolveParent(path string) (parent uint32, name string, err error) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return 0, "", newErr("resolveParent", Inval, nil)
	}
	cur := uint32(rootInode)
	for _, p := range parts[:len(parts)-1] {
		dirCI, err := v.mountInode(cur, WantDir, false)
		if err != nil {
			return 0, "", err
		}
		next, _, err := dirLookup(dirCI, p)
		dirCI.release()
		if err != nil {
			return 0, "", err
		}
		cur = next
	}
	return cur, parts[len(parts)-1], nil
}
