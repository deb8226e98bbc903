package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <image> <path>",
		Short: "show an inode's metadata",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVolume(args[0], true)
			if err != nil {
				return err
			}
			defer v.Close()

			st, err := v.Stat(args[1])
			if err != nil {
				return err
			}
			fmt.Printf("inode:  %d\n", st.Inode())
			fmt.Printf("mode:   %s\n", st.Mode())
			fmt.Printf("size:   %d\n", st.Size())
			fmt.Printf("mtime:  %s\n", st.ModTime())
			return nil
		},
	}
}
