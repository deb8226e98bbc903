package main

import (
	"github.com/KarpelesLab/txfs"
)

// openVolume mounts the image at path with a default sector size, since a
// plain file has no geometry of its own to report (filedev.go only derives
// sector count automatically, never sector size).
func openVolume(path string, readOnly bool) (*txfs.Volume, error) {
	dev := txfs.NewFileDevice(path, 512, txfs.SectorCountAuto)
	cfg := txfs.DefaultConfig()
	cfg.ReadOnly = readOnly
	return txfs.Mount(dev, cfg)
}
