// Command txfsfuse mounts a txfs volume image read-only through FUSE.
package main

import (
	"flag"
	"log"
	"time"

	"github.com/KarpelesLab/txfs"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

func main() {
	flag.Parse()
	if flag.NArg() != 2 {
		log.Fatal("usage: txfsfuse <image> <mountpoint>")
	}
	imagePath, mountPoint := flag.Arg(0), flag.Arg(1)

	dev := txfs.NewFileDevice(imagePath, 512, txfs.SectorCountAuto)
	cfg := txfs.DefaultConfig()
	cfg.ReadOnly = true
	vol, err := txfs.Mount(dev, cfg)
	if err != nil {
		log.Fatalf("mount %s: %s", imagePath, err)
	}
	defer vol.Close()

	root := &txfsNode{vol: vol, path: "/"}
	server, err := fs.Mount(mountPoint, root, &fs.Options{
		MountOptions: fuse.MountOptions{
			FsName:   "txfs",
			Name:     "txfs",
			ReadOnly: true,
		},
		EntryTimeout: durationPtr(time.Second),
		AttrTimeout:  durationPtr(time.Second),
	})
	if err != nil {
		log.Fatalf("fuse mount: %s", err)
	}
	server.Wait()
}

func durationPtr(d time.Duration) *time.Duration { return &d }
