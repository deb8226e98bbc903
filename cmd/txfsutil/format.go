package main

import (
	"fmt"

	"github.com/KarpelesLab/txfs"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newFormatCmd() *cobra.Command {
	var (
		size        int64
		blockSize   int
		inodeCount  int
		deleteOpen  bool
		posixSymlnk bool
		configFile  string
	)

	cmd := &cobra.Command{
		Use:   "format <image>",
		Short: "create a new volume image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			v := viper.New()
			if configFile != "" {
				v.SetConfigFile(configFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("reading %s: %w", configFile, err)
				}
			}
			cfg, err := txfs.LoadConfig(v)
			if err != nil {
				return err
			}
			if blockSize != 0 {
				cfg.BlockSize = blockSize
			}
			if inodeCount != 0 {
				cfg.InodeCount = inodeCount
			}
			cfg.DeleteOpen = deleteOpen
			cfg.PosixSymlink = posixSymlnk

			if err := txfs.CreateImageFile(path, size); err != nil {
				return err
			}

			sectorSize := cfg.SectorSize
			if sectorSize == 0 {
				sectorSize = 512
			}
			dev := txfs.NewFileDevice(path, sectorSize, txfs.SectorCountAuto)
			if err := txfs.Format(dev, cfg); err != nil {
				return err
			}
			fmt.Printf("formatted %s: %d bytes, block_size=%d\n", path, size, cfg.BlockSize)
			return nil
		},
	}

	cmd.Flags().Int64Var(&size, "size", 64<<20, "image size in bytes")
	cmd.Flags().IntVar(&blockSize, "block-size", 0, "block size in bytes (0 = config default)")
	cmd.Flags().IntVar(&inodeCount, "inode-count", 0, "inode count (0 = auto)")
	cmd.Flags().BoolVar(&deleteOpen, "delete-open", true, "support delete-while-open via orphan list")
	cmd.Flags().BoolVar(&posixSymlnk, "symlinks", true, "enable symlink inodes")
	cmd.Flags().StringVar(&configFile, "config", "", "optional TOML/YAML config file")

	return cmd
}
