package main

import (
	"context"
	"syscall"

	"github.com/KarpelesLab/txfs"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// txfsNode is a read-only FUSE inode backed by a path into a mounted txfs
// volume. Adapted from squashfs's inode_fuse.go Lookup/ReadDir/Open trio,
// rewritten against go-fuse/v2/fs's high-level Inode API (squashfs predates
// that package and talks to the raw fuse.RawFileSystem protocol directly)
// and against txfs's path-addressed Stat/ReadDir/ReadFile rather than
// squashfs's inode-ref table.
type txfsNode struct {
	fs.Inode
	vol  *txfs.Volume
	path string
}

var (
	_ fs.NodeLookuper   = (*txfsNode)(nil)
	_ fs.NodeReaddirer  = (*txfsNode)(nil)
	_ fs.NodeOpener     = (*txfsNode)(nil)
	_ fs.NodeReader     = (*txfsNode)(nil)
	_ fs.NodeGetattrer  = (*txfsNode)(nil)
)

func joinPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

func attrFromStat(st txfs.FileInfo, out *fuse.Attr) {
	out.Size = uint64(st.Size())
	out.Mode = uint32(st.Mode().Perm())
	if st.IsDir() {
		out.Mode |= syscall.S_IFDIR
	} else {
		out.Mode |= syscall.S_IFREG
	}
	out.Mtime = uint64(st.ModTime().Unix())
	out.Ino = uint64(st.Inode())
}

func (n *txfsNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	st, err := n.vol.Stat(n.path)
	if err != nil {
		return syscall.ENOENT
	}
	attrFromStat(st, &out.Attr)
	return 0
}

func (n *txfsNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	childPath := joinPath(n.path, name)
	st, err := n.vol.Stat(childPath)
	if err != nil {
		return nil, syscall.ENOENT
	}

	mode := uint32(fuse.S_IFREG)
	if st.IsDir() {
		mode = fuse.S_IFDIR
	}
	child := &txfsNode{vol: n.vol, path: childPath}
	stable := fs.StableAttr{Mode: mode, Ino: uint64(st.Inode())}
	ch := n.NewInode(ctx, child, stable)
	attrFromStat(st, &out.Attr)
	return ch, 0
}

func (n *txfsNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries, err := n.vol.ReadDir(n.path)
	if err != nil {
		return nil, syscall.EIO
	}
	list := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		mode := uint32(fuse.S_IFREG)
		if st, err := n.vol.Stat(joinPath(n.path, e.Name)); err == nil && st.IsDir() {
			mode = fuse.S_IFDIR
		}
		list = append(list, fuse.DirEntry{Name: e.Name, Ino: uint64(e.Inode), Mode: mode})
	}
	return fs.NewListDirStream(list), 0
}

func (n *txfsNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

func (n *txfsNode) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	data, err := n.vol.ReadFile(n.path)
	if err != nil {
		return nil, syscall.EIO
	}
	if off >= int64(len(data)) {
		return fuse.ReadResultData(nil), 0
	}
	end := off + int64(len(dest))
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return fuse.ReadResultData(data[off:end]), 0
}
