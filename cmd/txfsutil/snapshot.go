package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/KarpelesLab/txfs"
	"github.com/spf13/cobra"
)

func newSnapshotCmd() *cobra.Command {
	var comp string

	cmd := &cobra.Command{
		Use:   "snapshot <image> <output>",
		Short: "export a compressed backup of a volume image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := parseComp(comp)
			if err != nil {
				return err
			}

			v, err := openVolume(args[0], true)
			if err != nil {
				return err
			}
			defer v.Close()

			out, err := os.Create(args[1])
			if err != nil {
				return err
			}
			defer out.Close()

			return v.Snapshot(out, c)
		},
	}
	cmd.Flags().StringVar(&comp, "comp", "none", "compressor: none, xz, zstd")
	return cmd
}

func newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <snapshot> <image>",
		Short: "rebuild a volume image from a snapshot export",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			// Snapshot's uncompressed header names the exact image size
			// Restore needs, which CreateImageFile must pre-allocate since
			// FileDevice.Open never creates the file itself.
			header := make([]byte, 16)
			if _, err := io.ReadFull(in, header); err != nil {
				return fmt.Errorf("reading snapshot header: %w", err)
			}
			blockSize := binary.BigEndian.Uint32(header[8:12])
			blockCount := binary.BigEndian.Uint32(header[12:16])
			if _, err := in.Seek(0, io.SeekStart); err != nil {
				return err
			}

			if err := txfs.CreateImageFile(args[1], int64(blockSize)*int64(blockCount)); err != nil {
				return err
			}

			dev := txfs.NewFileDevice(args[1], 512, txfs.SectorCountAuto)
			return txfs.Restore(dev, in)
		},
	}
}

func parseComp(s string) (txfs.SnapshotComp, error) {
	switch s {
	case "none", "":
		return txfs.CompNone, nil
	case "xz":
		return txfs.CompXZ, nil
	case "zstd":
		return txfs.CompZstd, nil
	}
	return 0, fmt.Errorf("unknown compressor %q", s)
}
